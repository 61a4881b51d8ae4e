package handler

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"outreach/config"
	"outreach/entity"
	"outreach/pkg/errutil"
	"outreach/pkg/goutil"
	"outreach/pkg/mq"
	"outreach/pkg/validator"
	"outreach/repo"
)

// conversionParam marks a clicked URL as a conversion event.
const conversionParam = "conv"

const trendEpsilon = 1e-6

var (
	ErrUnknownTrackingID = errors.New("unknown tracking id")
)

// TrackerHandler ingests engagement signals. The HTTP side only validates and
// publishes; counting and smoothing happen on the consumer side so webhook
// latency stays flat.
type TrackerHandler interface {
	OnEmailOpen(ctx context.Context, req *OnEmailOpenRequest, res *OnEmailOpenResponse) error
	OnEmailClick(ctx context.Context, req *OnEmailClickRequest, res *OnEmailClickResponse) error

	HandleEmailOpened(ctx context.Context, msg *mq.Message) error
	HandleEmailClicked(ctx context.Context, msg *mq.Message) error
	HandleDispatchOutcome(ctx context.Context, msg *mq.Message) error

	GetTrend(ctx context.Context, campaignID uint64) (entity.Trend, error)
}

type trackerHandler struct {
	cfg          *config.Config
	recordRepo   repo.DispatchRecordRepo
	variantRepo  repo.VariantRepo
	snapshotRepo repo.SnapshotRepo
	producer     EventProducer
}

func NewTrackerHandler(
	cfg *config.Config,
	recordRepo repo.DispatchRecordRepo,
	variantRepo repo.VariantRepo,
	snapshotRepo repo.SnapshotRepo,
	producer EventProducer,
) TrackerHandler {
	return &trackerHandler{
		cfg:          cfg,
		recordRepo:   recordRepo,
		variantRepo:  variantRepo,
		snapshotRepo: snapshotRepo,
		producer:     producer,
	}
}

type OnEmailOpenRequest struct {
	TrackingID *string `json:"tracking_id,omitempty" schema:"tracking_id"`
}

func (r *OnEmailOpenRequest) GetTrackingID() string {
	if r != nil && r.TrackingID != nil {
		return *r.TrackingID
	}
	return ""
}

type OnEmailOpenResponse struct{}

var OnEmailOpenValidator = validator.MustForm(map[string]validator.Validator{
	"tracking_id": &validator.String{
		UnsetZero: true,
	},
})

func (h *trackerHandler) OnEmailOpen(ctx context.Context, req *OnEmailOpenRequest, _ *OnEmailOpenResponse) error {
	if err := OnEmailOpenValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	return h.producer.SendMessage(&mq.Message{
		Payload: mq.PayloadEmailOpened,
		Key:     req.GetTrackingID(),
		Body: &mq.EmailOpened{
			TrackingID: req.TrackingID,
			EventTime:  goutil.Uint64(uint64(time.Now().Unix())),
		},
	})
}

type OnEmailClickRequest struct {
	TrackingID *string `json:"tracking_id,omitempty" schema:"tracking_id"`
	Url        *string `json:"url,omitempty" schema:"url"`
}

func (r *OnEmailClickRequest) GetTrackingID() string {
	if r != nil && r.TrackingID != nil {
		return *r.TrackingID
	}
	return ""
}

func (r *OnEmailClickRequest) GetUrl() string {
	if r != nil && r.Url != nil {
		return *r.Url
	}
	return ""
}

type OnEmailClickResponse struct{}

var OnEmailClickValidator = validator.MustForm(map[string]validator.Validator{
	"tracking_id": &validator.String{
		UnsetZero: true,
	},
	"url": &validator.String{
		Optional: true,
	},
})

func (h *trackerHandler) OnEmailClick(ctx context.Context, req *OnEmailClickRequest, _ *OnEmailClickResponse) error {
	if err := OnEmailClickValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	return h.producer.SendMessage(&mq.Message{
		Payload: mq.PayloadEmailClicked,
		Key:     req.GetTrackingID(),
		Body: &mq.EmailClicked{
			TrackingID: req.TrackingID,
			Url:        req.Url,
			EventTime:  goutil.Uint64(uint64(time.Now().Unix())),
		},
	})
}

func (h *trackerHandler) HandleEmailOpened(ctx context.Context, msg *mq.Message) error {
	event := new(mq.EmailOpened)
	if err := msg.ParseBody(event); err != nil {
		return err
	}

	record, err := h.getRecord(ctx, event.GetTrackingID())
	if err != nil || record == nil {
		return err
	}

	return h.bumpSnapshot(ctx, record.GetCampaignID(), record.GetDay(), func(s *entity.PerformanceSnapshot) {
		s.OpenCount = goutil.Uint64(s.GetOpenCount() + 1)
	})
}

func (h *trackerHandler) HandleEmailClicked(ctx context.Context, msg *mq.Message) error {
	event := new(mq.EmailClicked)
	if err := msg.ParseBody(event); err != nil {
		return err
	}

	record, err := h.getRecord(ctx, event.GetTrackingID())
	if err != nil || record == nil {
		return err
	}

	isConversion := isConversionUrl(event.GetUrl())

	if record.VariantID != nil {
		if err := h.variantRepo.IncrClickCount(ctx, record.GetVariantID()); err != nil {
			return err
		}
		if isConversion {
			if err := h.variantRepo.IncrConversionCount(ctx, record.GetVariantID()); err != nil {
				return err
			}
		}
	}

	return h.bumpSnapshot(ctx, record.GetCampaignID(), record.GetDay(), func(s *entity.PerformanceSnapshot) {
		s.ClickCount = goutil.Uint64(s.GetClickCount() + 1)
		if isConversion {
			s.ConversionCount = goutil.Uint64(s.GetConversionCount() + 1)
		}
	})
}

func (h *trackerHandler) HandleDispatchOutcome(ctx context.Context, msg *mq.Message) error {
	event := new(mq.DispatchOutcome)
	if err := msg.ParseBody(event); err != nil {
		return err
	}

	if entity.DispatchStatus(event.GetStatus()) != entity.DispatchStatusSent {
		return nil
	}

	record, err := h.getRecord(ctx, event.GetTrackingID())
	if err != nil || record == nil {
		return err
	}

	return h.bumpSnapshot(ctx, record.GetCampaignID(), record.GetDay(), func(s *entity.PerformanceSnapshot) {
		s.SendCount = goutil.Uint64(s.GetSendCount() + 1)
	})
}

// GetTrend classifies the direction of the smoothed conversion rate over the
// most recent snapshots. Too little history reads as stable.
func (h *trackerHandler) GetTrend(ctx context.Context, campaignID uint64) (entity.Trend, error) {
	snapshots, err := h.snapshotRepo.GetLastN(ctx, campaignID, h.cfg.Pipeline.TrendWindow)
	if err != nil {
		return entity.TrendUnknown, err
	}

	if len(snapshots) < 2 {
		return entity.TrendStable, nil
	}

	// snapshots are most recent first
	var slope float64
	for i := 0; i < len(snapshots)-1; i++ {
		slope += snapshots[i].GetSmoothedRate() - snapshots[i+1].GetSmoothedRate()
	}
	slope /= float64(len(snapshots) - 1)

	switch {
	case slope > trendEpsilon:
		return entity.TrendImproving, nil
	case slope < -trendEpsilon:
		return entity.TrendDeclining, nil
	default:
		return entity.TrendStable, nil
	}
}

// getRecord resolves a tracking id, dropping events for ids we never issued.
func (h *trackerHandler) getRecord(ctx context.Context, trackingID string) (*entity.DispatchRecord, error) {
	if trackingID == "" {
		return nil, nil
	}

	record, err := h.recordRepo.GetByTrackingID(ctx, trackingID)
	if err != nil {
		if errors.Is(err, repo.ErrDispatchRecordNotFound) {
			log.Ctx(ctx).Warn().Msgf("event for unknown tracking id: %s", trackingID)
			return nil, nil
		}
		return nil, err
	}

	return record, nil
}

// bumpSnapshot applies a count mutation to the (campaign, day) snapshot, then
// recomputes the derived rates and the EWMA of the conversion rate.
func (h *trackerHandler) bumpSnapshot(ctx context.Context, campaignID, day uint64, mutate func(s *entity.PerformanceSnapshot)) error {
	snapshot, err := h.snapshotRepo.GetByCampaignDay(ctx, campaignID, day)
	if err != nil {
		if !errors.Is(err, repo.ErrSnapshotNotFound) {
			return err
		}
		snapshot = &entity.PerformanceSnapshot{
			CampaignID:      goutil.Uint64(campaignID),
			Day:             goutil.Uint64(day),
			SendCount:       goutil.Uint64(0),
			OpenCount:       goutil.Uint64(0),
			ClickCount:      goutil.Uint64(0),
			ConversionCount: goutil.Uint64(0),
		}
	}

	mutate(snapshot)

	h.recomputeRates(ctx, snapshot)

	snapshot.UpdateTime = goutil.Uint64(uint64(time.Now().Unix()))

	if snapshot.ID == nil {
		_, err = h.snapshotRepo.Create(ctx, snapshot)
		return err
	}

	return h.snapshotRepo.Update(ctx, snapshot)
}

func (h *trackerHandler) recomputeRates(ctx context.Context, snapshot *entity.PerformanceSnapshot) {
	sends := snapshot.GetSendCount()
	if sends > 0 {
		snapshot.OpenRate = goutil.Float64(float64(snapshot.GetOpenCount()) / float64(sends))
		snapshot.ClickRate = goutil.Float64(float64(snapshot.GetClickCount()) / float64(sends))
		snapshot.ConversionRate = goutil.Float64(float64(snapshot.GetConversionCount()) / float64(sends))
	} else {
		snapshot.OpenRate = goutil.Float64(0)
		snapshot.ClickRate = goutil.Float64(0)
		snapshot.ConversionRate = goutil.Float64(0)
	}

	// seed the EWMA from the previous day's smoothed rate
	prev := 0.0
	snapshots, err := h.snapshotRepo.GetLastN(ctx, snapshot.GetCampaignID(), 2)
	if err == nil {
		for _, s := range snapshots {
			if s.GetDay() < snapshot.GetDay() {
				prev = s.GetSmoothedRate()
				break
			}
		}
	} else {
		log.Ctx(ctx).Warn().Msgf("ewma seed lookup failed: %v, campaign_id: %d", err, snapshot.GetCampaignID())
	}

	w := h.cfg.Pipeline.EwmaWeight
	snapshot.SmoothedRate = goutil.Float64(w*snapshot.GetConversionRate() + (1-w)*prev)
}

func isConversionUrl(rawUrl string) bool {
	if rawUrl == "" {
		return false
	}
	u, err := url.Parse(rawUrl)
	if err != nil {
		return false
	}
	return u.Query().Get(conversionParam) != ""
}
