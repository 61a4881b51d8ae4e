package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"outreach/entity"
	"outreach/pkg/goutil"
)

var (
	ErrSnapshotNotFound = errors.New("performance snapshot not found")
)

type PerformanceSnapshot struct {
	ID              *uint64
	CampaignID      *uint64
	Day             *uint64
	SendCount       *uint64
	OpenCount       *uint64
	ClickCount      *uint64
	ConversionCount *uint64
	OpenRate        *float64
	ClickRate       *float64
	ConversionRate  *float64
	SmoothedRate    *float64
	UpdateTime      *uint64
}

func (m *PerformanceSnapshot) TableName() string {
	return "performance_snapshot_tab"
}

func (m *PerformanceSnapshot) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

type SnapshotRepo interface {
	Create(ctx context.Context, snapshot *entity.PerformanceSnapshot) (uint64, error)
	Update(ctx context.Context, snapshot *entity.PerformanceSnapshot) error
	GetByCampaignDay(ctx context.Context, campaignID, day uint64) (*entity.PerformanceSnapshot, error)
	// GetLastN returns up to n snapshots for a campaign, most recent day first.
	GetLastN(ctx context.Context, campaignID uint64, n int) ([]*entity.PerformanceSnapshot, error)
	GetLatest(ctx context.Context, campaignID uint64) (*entity.PerformanceSnapshot, error)
}

type snapshotRepo struct {
	baseRepo BaseRepo
}

func NewSnapshotRepo(_ context.Context, baseRepo BaseRepo) SnapshotRepo {
	return &snapshotRepo{baseRepo: baseRepo}
}

func (r *snapshotRepo) Create(ctx context.Context, snapshot *entity.PerformanceSnapshot) (uint64, error) {
	snapshotModel := ToSnapshotModel(snapshot)

	if err := r.baseRepo.Create(ctx, snapshotModel); err != nil {
		return 0, err
	}

	snapshot.ID = snapshotModel.ID

	return snapshotModel.GetID(), nil
}

func (r *snapshotRepo) Update(ctx context.Context, snapshot *entity.PerformanceSnapshot) error {
	return r.baseRepo.Update(ctx, ToSnapshotModel(snapshot))
}

func (r *snapshotRepo) GetByCampaignDay(ctx context.Context, campaignID, day uint64) (*entity.PerformanceSnapshot, error) {
	snapshotModel := new(PerformanceSnapshot)
	if err := r.baseRepo.Get(ctx, snapshotModel, &Filter{
		Conditions: []*Condition{
			{Field: "campaign_id", Op: OpEq, Value: goutil.Uint64(campaignID), NextLogicalOp: And},
			{Field: "day", Op: OpEq, Value: goutil.Uint64(day)},
		},
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return ToSnapshot(snapshotModel), nil
}

func (r *snapshotRepo) GetLastN(ctx context.Context, campaignID uint64, n int) ([]*entity.PerformanceSnapshot, error) {
	res, _, err := r.baseRepo.GetMany(ctx, new(PerformanceSnapshot), &Filter{
		Conditions: []*Condition{
			{Field: "campaign_id", Op: OpEq, Value: goutil.Uint64(campaignID)},
		},
		Pagination: &Pagination{
			Limit: goutil.Uint32(uint32(n)),
		},
	})
	if err != nil {
		return nil, err
	}

	snapshots := make([]*entity.PerformanceSnapshot, 0, len(res))
	for _, m := range res {
		snapshots = append(snapshots, ToSnapshot(m.(*PerformanceSnapshot)))
	}

	return snapshots, nil
}

func (r *snapshotRepo) GetLatest(ctx context.Context, campaignID uint64) (*entity.PerformanceSnapshot, error) {
	snapshots, err := r.GetLastN(ctx, campaignID, 1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return snapshots[0], nil
}

func ToSnapshot(m *PerformanceSnapshot) *entity.PerformanceSnapshot {
	return &entity.PerformanceSnapshot{
		ID:              m.ID,
		CampaignID:      m.CampaignID,
		Day:             m.Day,
		SendCount:       m.SendCount,
		OpenCount:       m.OpenCount,
		ClickCount:      m.ClickCount,
		ConversionCount: m.ConversionCount,
		OpenRate:        m.OpenRate,
		ClickRate:       m.ClickRate,
		ConversionRate:  m.ConversionRate,
		SmoothedRate:    m.SmoothedRate,
		UpdateTime:      m.UpdateTime,
	}
}

func ToSnapshotModel(snapshot *entity.PerformanceSnapshot) *PerformanceSnapshot {
	return &PerformanceSnapshot{
		ID:              snapshot.ID,
		CampaignID:      snapshot.CampaignID,
		Day:             snapshot.Day,
		SendCount:       snapshot.SendCount,
		OpenCount:       snapshot.OpenCount,
		ClickCount:      snapshot.ClickCount,
		ConversionCount: snapshot.ConversionCount,
		OpenRate:        snapshot.OpenRate,
		ClickRate:       snapshot.ClickRate,
		ConversionRate:  snapshot.ConversionRate,
		SmoothedRate:    snapshot.SmoothedRate,
		UpdateTime:      snapshot.UpdateTime,
	}
}
