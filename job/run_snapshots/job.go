package run_snapshots

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"outreach/config"
	"outreach/entity"
	"outreach/pkg/goutil"
	"outreach/pkg/service"
	"outreach/repo"
)

// RunSnapshots is the daily rollup. Event-driven snapshot updates can drift when
// events arrive out of order or get replayed; this job reconciles each campaign's
// snapshot for the previous day against the dispatch records and recomputes the
// derived rates.
type RunSnapshots struct {
	cfg          *config.Config
	campaignRepo repo.CampaignRepo
	recordRepo   repo.DispatchRecordRepo
	snapshotRepo repo.SnapshotRepo
}

func New(
	cfg *config.Config,
	campaignRepo repo.CampaignRepo,
	recordRepo repo.DispatchRecordRepo,
	snapshotRepo repo.SnapshotRepo,
) service.Job {
	return &RunSnapshots{
		cfg:          cfg,
		campaignRepo: campaignRepo,
		recordRepo:   recordRepo,
		snapshotRepo: snapshotRepo,
	}
}

func (h *RunSnapshots) Init(_ context.Context) error {
	return nil
}

func (h *RunSnapshots) Run(ctx context.Context) error {
	var (
		now       = uint64(time.Now().Unix())
		yesterday = goutil.DayBucket(now - 86400)
	)

	campaigns, err := h.campaignRepo.GetRunnable(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get runnable campaigns failed: %v", err)
		return err
	}

	for _, campaign := range campaigns {
		if err := h.reconcile(ctx, campaign.GetID(), yesterday); err != nil {
			log.Ctx(ctx).Error().Msgf("[campaign ID %d] reconcile snapshot failed: %v", campaign.GetID(), err)
		}
	}

	return nil
}

func (h *RunSnapshots) reconcile(ctx context.Context, campaignID, day uint64) error {
	var (
		sentStatus = uint32(entity.DispatchStatusSent)
		sends      uint64
	)

	records, _, err := h.recordRepo.GetMany(ctx, &repo.DispatchRecordFilter{
		CampaignID: goutil.Uint64(campaignID),
		Status:     &sentStatus,
		Day:        goutil.Uint64(day),
	})
	if err != nil {
		return err
	}
	sends = uint64(len(records))

	snapshot, err := h.snapshotRepo.GetByCampaignDay(ctx, campaignID, day)
	if err != nil {
		if !errors.Is(err, repo.ErrSnapshotNotFound) {
			return err
		}
		if sends == 0 {
			return nil
		}
		snapshot = &entity.PerformanceSnapshot{
			CampaignID:      goutil.Uint64(campaignID),
			Day:             goutil.Uint64(day),
			OpenCount:       goutil.Uint64(0),
			ClickCount:      goutil.Uint64(0),
			ConversionCount: goutil.Uint64(0),
		}
	}

	snapshot.SendCount = goutil.Uint64(sends)

	if sends > 0 {
		snapshot.OpenRate = goutil.Float64(float64(snapshot.GetOpenCount()) / float64(sends))
		snapshot.ClickRate = goutil.Float64(float64(snapshot.GetClickCount()) / float64(sends))
		snapshot.ConversionRate = goutil.Float64(float64(snapshot.GetConversionCount()) / float64(sends))
	} else {
		snapshot.OpenRate = goutil.Float64(0)
		snapshot.ClickRate = goutil.Float64(0)
		snapshot.ConversionRate = goutil.Float64(0)
	}

	prev := 0.0
	if prevSnapshot, err := h.snapshotRepo.GetByCampaignDay(ctx, campaignID, day-86400); err == nil {
		prev = prevSnapshot.GetSmoothedRate()
	}

	w := h.cfg.Pipeline.EwmaWeight
	snapshot.SmoothedRate = goutil.Float64(w*snapshot.GetConversionRate() + (1-w)*prev)
	snapshot.UpdateTime = goutil.Uint64(uint64(time.Now().Unix()))

	if snapshot.ID == nil {
		_, err = h.snapshotRepo.Create(ctx, snapshot)
		return err
	}

	return h.snapshotRepo.Update(ctx, snapshot)
}

func (h *RunSnapshots) CleanUp(_ context.Context) error {
	return nil
}
