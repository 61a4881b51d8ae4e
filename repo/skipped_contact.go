package repo

import (
	"context"

	"outreach/entity"
	"outreach/pkg/goutil"
)

type SkippedContact struct {
	ID         *uint64
	CampaignID *uint64
	Email      *string
	Stage      *uint32
	Reason     *string
	CreateTime *uint64
}

func (m *SkippedContact) TableName() string {
	return "skipped_contact_tab"
}

func (m *SkippedContact) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

type SkippedContactFilter struct {
	CampaignID *uint64
	Pagination *Pagination
}

type SkippedContactRepo interface {
	Create(ctx context.Context, skipped *entity.SkippedContact) (uint64, error)
	GetMany(ctx context.Context, f *SkippedContactFilter) ([]*entity.SkippedContact, *Pagination, error)
}

type skippedContactRepo struct {
	baseRepo BaseRepo
}

func NewSkippedContactRepo(_ context.Context, baseRepo BaseRepo) SkippedContactRepo {
	return &skippedContactRepo{baseRepo: baseRepo}
}

func (r *skippedContactRepo) Create(ctx context.Context, skipped *entity.SkippedContact) (uint64, error) {
	skippedModel := ToSkippedContactModel(skipped)

	if err := r.baseRepo.Create(ctx, skippedModel); err != nil {
		return 0, err
	}

	skipped.ID = skippedModel.ID

	return skippedModel.GetID(), nil
}

func (r *skippedContactRepo) GetMany(ctx context.Context, f *SkippedContactFilter) ([]*entity.SkippedContact, *Pagination, error) {
	conditions := make([]*Condition, 0)
	if f.CampaignID != nil {
		conditions = append(conditions, &Condition{Field: "campaign_id", Op: OpEq, Value: f.CampaignID})
	}

	res, pagination, err := r.baseRepo.GetMany(ctx, new(SkippedContact), &Filter{
		Conditions: conditions,
		Pagination: f.Pagination,
	})
	if err != nil {
		return nil, nil, err
	}

	skipped := make([]*entity.SkippedContact, 0, len(res))
	for _, m := range res {
		skipped = append(skipped, ToSkippedContact(m.(*SkippedContact)))
	}

	return skipped, pagination, nil
}

func ToSkippedContact(m *SkippedContact) *entity.SkippedContact {
	skipped := &entity.SkippedContact{
		ID:         m.ID,
		CampaignID: m.CampaignID,
		Email:      m.Email,
		Reason:     m.Reason,
		CreateTime: m.CreateTime,
	}
	if m.Stage != nil {
		skipped.Stage = entity.CampaignStage(*m.Stage)
	}
	return skipped
}

func ToSkippedContactModel(skipped *entity.SkippedContact) *SkippedContact {
	return &SkippedContact{
		ID:         skipped.ID,
		CampaignID: skipped.CampaignID,
		Email:      skipped.Email,
		Stage:      goutil.Uint32(uint32(skipped.Stage)),
		Reason:     skipped.Reason,
		CreateTime: skipped.CreateTime,
	}
}
