package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"outreach/entity"
	"outreach/pkg/goutil"
)

var (
	ErrDispatchRecordNotFound = errors.New("dispatch record not found")
	// ErrDuplicateDispatch means a record already exists for (campaign, recipient, day).
	// Backed by a unique key on those columns, checked atomically with the insert.
	ErrDuplicateDispatch = errors.New("duplicate dispatch for recipient and day")
)

type DispatchRecord struct {
	ID              *uint64
	CampaignID      *uint64
	Recipient       *string
	ChannelID       *uint64
	VariantID       *uint64
	Status          *uint32
	AttemptCount    *uint32
	LastAttemptTime *uint64
	TrackingID      *string
	Day             *uint64
	CreateTime      *uint64
	UpdateTime      *uint64
}

func (m *DispatchRecord) TableName() string {
	return "dispatch_record_tab"
}

func (m *DispatchRecord) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

type DispatchRecordFilter struct {
	CampaignID *uint64
	Recipient  *string
	Status     *uint32
	Day        *uint64
	Pagination *Pagination
}

type DispatchRecordRepo interface {
	Create(ctx context.Context, record *entity.DispatchRecord) (uint64, error)
	Update(ctx context.Context, record *entity.DispatchRecord) error
	GetByID(ctx context.Context, id uint64) (*entity.DispatchRecord, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*entity.DispatchRecord, error)
	GetMany(ctx context.Context, f *DispatchRecordFilter) ([]*entity.DispatchRecord, *Pagination, error)
	CountByCampaignDay(ctx context.Context, campaignID, day uint64) (uint64, error)
}

type dispatchRecordRepo struct {
	baseRepo BaseRepo
}

func NewDispatchRecordRepo(_ context.Context, baseRepo BaseRepo) DispatchRecordRepo {
	return &dispatchRecordRepo{baseRepo: baseRepo}
}

func (r *dispatchRecordRepo) Create(ctx context.Context, record *entity.DispatchRecord) (uint64, error) {
	recordModel := ToDispatchRecordModel(record)

	if err := r.baseRepo.Create(ctx, recordModel); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return 0, ErrDuplicateDispatch
		}
		return 0, err
	}

	record.ID = recordModel.ID

	return recordModel.GetID(), nil
}

func (r *dispatchRecordRepo) Update(ctx context.Context, record *entity.DispatchRecord) error {
	return r.baseRepo.Update(ctx, ToDispatchRecordModel(record))
}

func (r *dispatchRecordRepo) GetByID(ctx context.Context, id uint64) (*entity.DispatchRecord, error) {
	recordModel := new(DispatchRecord)
	if err := r.baseRepo.Get(ctx, recordModel, &Filter{
		Conditions: []*Condition{
			{Field: "id", Op: OpEq, Value: goutil.Uint64(id)},
		},
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDispatchRecordNotFound
		}
		return nil, err
	}
	return ToDispatchRecord(recordModel), nil
}

func (r *dispatchRecordRepo) GetByTrackingID(ctx context.Context, trackingID string) (*entity.DispatchRecord, error) {
	recordModel := new(DispatchRecord)
	if err := r.baseRepo.Get(ctx, recordModel, &Filter{
		Conditions: []*Condition{
			{Field: "tracking_id", Op: OpEq, Value: goutil.String(trackingID)},
		},
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDispatchRecordNotFound
		}
		return nil, err
	}
	return ToDispatchRecord(recordModel), nil
}

func (r *dispatchRecordRepo) GetMany(ctx context.Context, f *DispatchRecordFilter) ([]*entity.DispatchRecord, *Pagination, error) {
	conditions := make([]*Condition, 0)
	if f.CampaignID != nil {
		conditions = append(conditions, &Condition{Field: "campaign_id", Op: OpEq, Value: f.CampaignID, NextLogicalOp: And})
	}
	if f.Recipient != nil {
		conditions = append(conditions, &Condition{Field: "recipient", Op: OpEq, Value: f.Recipient, NextLogicalOp: And})
	}
	if f.Status != nil {
		conditions = append(conditions, &Condition{Field: "status", Op: OpEq, Value: f.Status, NextLogicalOp: And})
	}
	if f.Day != nil {
		conditions = append(conditions, &Condition{Field: "day", Op: OpEq, Value: f.Day, NextLogicalOp: And})
	}

	res, pagination, err := r.baseRepo.GetMany(ctx, new(DispatchRecord), &Filter{
		Conditions: conditions,
		Pagination: f.Pagination,
	})
	if err != nil {
		return nil, nil, err
	}

	records := make([]*entity.DispatchRecord, 0, len(res))
	for _, m := range res {
		records = append(records, ToDispatchRecord(m.(*DispatchRecord)))
	}

	return records, pagination, nil
}

func (r *dispatchRecordRepo) CountByCampaignDay(ctx context.Context, campaignID, day uint64) (uint64, error) {
	return r.baseRepo.Count(ctx, new(DispatchRecord), &Filter{
		Conditions: []*Condition{
			{Field: "campaign_id", Op: OpEq, Value: goutil.Uint64(campaignID), NextLogicalOp: And},
			{Field: "day", Op: OpEq, Value: goutil.Uint64(day)},
		},
	})
}

func ToDispatchRecord(m *DispatchRecord) *entity.DispatchRecord {
	record := &entity.DispatchRecord{
		ID:              m.ID,
		CampaignID:      m.CampaignID,
		Recipient:       m.Recipient,
		ChannelID:       m.ChannelID,
		VariantID:       m.VariantID,
		AttemptCount:    m.AttemptCount,
		LastAttemptTime: m.LastAttemptTime,
		TrackingID:      m.TrackingID,
		Day:             m.Day,
		CreateTime:      m.CreateTime,
		UpdateTime:      m.UpdateTime,
	}
	if m.Status != nil {
		record.Status = entity.DispatchStatus(*m.Status)
	}
	return record
}

func ToDispatchRecordModel(record *entity.DispatchRecord) *DispatchRecord {
	return &DispatchRecord{
		ID:              record.ID,
		CampaignID:      record.CampaignID,
		Recipient:       record.Recipient,
		ChannelID:       record.ChannelID,
		VariantID:       record.VariantID,
		Status:          goutil.Uint32(uint32(record.Status)),
		AttemptCount:    record.AttemptCount,
		LastAttemptTime: record.LastAttemptTime,
		TrackingID:      record.TrackingID,
		Day:             record.Day,
		CreateTime:      record.CreateTime,
		UpdateTime:      record.UpdateTime,
	}
}
