package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"outreach/entity"
	"outreach/pkg/goutil"
)

var (
	ErrQuotaExceeded = errors.New("daily quota exceeded")
)

// QuotaUsage tracks how many sends a campaign has issued on one day.
type QuotaUsage struct {
	ID         *uint64
	CampaignID *uint64
	Day        *uint64
	Quota      *uint64
	Used       *uint64
	UpdateTime *uint64
}

func (m *QuotaUsage) TableName() string {
	return "quota_usage_tab"
}

func (m *QuotaUsage) GetUsed() uint64 {
	if m != nil && m.Used != nil {
		return *m.Used
	}
	return 0
}

func (m *QuotaUsage) GetQuota() uint64 {
	if m != nil && m.Quota != nil {
		return *m.Quota
	}
	return 0
}

type QuotaRepo interface {
	// CheckAndIncr reserves one send under the campaign's daily quota. The check and
	// the increment are a single UPDATE, so concurrent dispatches cannot overshoot.
	CheckAndIncr(ctx context.Context, campaign *entity.Campaign, day, now uint64) error
	// Release returns one reserved send, e.g. when a dispatch fails before any
	// transport attempt.
	Release(ctx context.Context, campaignID, day uint64) error
	GetUsed(ctx context.Context, campaignID, day uint64) (uint64, error)
}

type quotaRepo struct {
	baseRepo BaseRepo
}

func NewQuotaRepo(_ context.Context, baseRepo BaseRepo) QuotaRepo {
	return &quotaRepo{baseRepo: baseRepo}
}

func (r *quotaRepo) CheckAndIncr(ctx context.Context, campaign *entity.Campaign, day, now uint64) error {
	var (
		campaignID = campaign.GetID()
		quota      = campaign.GetDailyQuota()
	)

	f := &Filter{
		Conditions: []*Condition{
			{Field: "campaign_id", Op: OpEq, Value: goutil.Uint64(campaignID), NextLogicalOp: And},
			{Field: "day", Op: OpEq, Value: goutil.Uint64(day), NextLogicalOp: And},
			{Field: "used", Op: OpLt, Value: goutil.Uint64(quota)},
		},
	}

	rows, err := r.baseRepo.IncrementColumns(ctx, new(QuotaUsage), map[string]interface{}{
		"used":        gorm.Expr("used + ?", 1),
		"update_time": now,
	}, f)
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	// no row for this day yet, seed one and retry once
	usage := new(QuotaUsage)
	err = r.baseRepo.Get(ctx, usage, &Filter{
		Conditions: []*Condition{
			{Field: "campaign_id", Op: OpEq, Value: goutil.Uint64(campaignID), NextLogicalOp: And},
			{Field: "day", Op: OpEq, Value: goutil.Uint64(day)},
		},
	})
	if err == nil {
		return ErrQuotaExceeded
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := r.baseRepo.Create(ctx, &QuotaUsage{
		CampaignID: goutil.Uint64(campaignID),
		Day:        goutil.Uint64(day),
		Quota:      goutil.Uint64(quota),
		Used:       goutil.Uint64(0),
		UpdateTime: goutil.Uint64(now),
	}); err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}

	rows, err = r.baseRepo.IncrementColumns(ctx, new(QuotaUsage), map[string]interface{}{
		"used":        gorm.Expr("used + ?", 1),
		"update_time": now,
	}, f)
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrQuotaExceeded
	}

	return nil
}

func (r *quotaRepo) Release(ctx context.Context, campaignID, day uint64) error {
	_, err := r.baseRepo.IncrementColumns(ctx, new(QuotaUsage), map[string]interface{}{
		"used": gorm.Expr("used - ?", 1),
	}, &Filter{
		Conditions: []*Condition{
			{Field: "campaign_id", Op: OpEq, Value: goutil.Uint64(campaignID), NextLogicalOp: And},
			{Field: "day", Op: OpEq, Value: goutil.Uint64(day), NextLogicalOp: And},
			{Field: "used", Op: OpGt, Value: goutil.Uint64(0)},
		},
	})
	return err
}

func (r *quotaRepo) GetUsed(ctx context.Context, campaignID, day uint64) (uint64, error) {
	usage := new(QuotaUsage)
	if err := r.baseRepo.Get(ctx, usage, &Filter{
		Conditions: []*Condition{
			{Field: "campaign_id", Op: OpEq, Value: goutil.Uint64(campaignID), NextLogicalOp: And},
			{Field: "day", Op: OpEq, Value: goutil.Uint64(day)},
		},
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return usage.GetUsed(), nil
}
