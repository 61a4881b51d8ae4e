package repo

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"outreach/config"
	"outreach/entity"
	"outreach/pkg/goutil"
)

var (
	ErrVariantNotFound = errors.New("affiliate variant not found")
)

type AffiliateVariant struct {
	ID              *uint64
	CampaignID      *uint64
	UrlTemplate     *string
	TrackedParams   *string
	ClickCount      *uint64
	ConversionCount *uint64
}

func (m *AffiliateVariant) TableName() string {
	return "affiliate_variant_tab"
}

func (m *AffiliateVariant) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

func (m *AffiliateVariant) GetTrackedParams() string {
	if m != nil && m.TrackedParams != nil {
		return *m.TrackedParams
	}
	return ""
}

type VariantRepo interface {
	Create(ctx context.Context, variant *entity.AffiliateVariant) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*entity.AffiliateVariant, error)
	GetByCampaign(ctx context.Context, campaignID uint64) ([]*entity.AffiliateVariant, error)
	// IncrClickCount and IncrConversionCount are atomic column increments,
	// independent of any selection read.
	IncrClickCount(ctx context.Context, id uint64) error
	IncrConversionCount(ctx context.Context, id uint64) error
}

type variantRepo struct {
	baseRepo BaseRepo
}

func NewVariantRepo(_ context.Context, baseRepo BaseRepo) VariantRepo {
	return &variantRepo{baseRepo: baseRepo}
}

func (r *variantRepo) Create(ctx context.Context, variant *entity.AffiliateVariant) (uint64, error) {
	variantModel, err := ToVariantModel(variant)
	if err != nil {
		return 0, err
	}

	if err := r.baseRepo.Create(ctx, variantModel); err != nil {
		return 0, err
	}

	variant.ID = variantModel.ID

	return variantModel.GetID(), nil
}

func (r *variantRepo) GetByID(ctx context.Context, id uint64) (*entity.AffiliateVariant, error) {
	variantModel := new(AffiliateVariant)
	if err := r.baseRepo.Get(ctx, variantModel, &Filter{
		Conditions: []*Condition{
			{Field: "id", Op: OpEq, Value: goutil.Uint64(id)},
		},
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVariantNotFound
		}
		return nil, err
	}
	return ToVariant(variantModel)
}

func (r *variantRepo) GetByCampaign(ctx context.Context, campaignID uint64) ([]*entity.AffiliateVariant, error) {
	res, _, err := r.baseRepo.GetMany(ctx, new(AffiliateVariant), &Filter{
		Conditions: []*Condition{
			{Field: "campaign_id", Op: OpEq, Value: goutil.Uint64(campaignID)},
		},
	})
	if err != nil {
		return nil, err
	}

	variants := make([]*entity.AffiliateVariant, 0, len(res))
	for _, m := range res {
		variant, err := ToVariant(m.(*AffiliateVariant))
		if err != nil {
			return nil, err
		}
		variants = append(variants, variant)
	}

	return variants, nil
}

func (r *variantRepo) IncrClickCount(ctx context.Context, id uint64) error {
	return r.incrColumn(ctx, id, "click_count")
}

func (r *variantRepo) IncrConversionCount(ctx context.Context, id uint64) error {
	return r.incrColumn(ctx, id, "conversion_count")
}

func (r *variantRepo) incrColumn(ctx context.Context, id uint64, column string) error {
	rows, err := r.baseRepo.IncrementColumns(ctx, new(AffiliateVariant), map[string]interface{}{
		column: gorm.Expr(column+" + ?", 1),
	}, &Filter{
		Conditions: []*Condition{
			{Field: "id", Op: OpEq, Value: goutil.Uint64(id)},
		},
	})
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVariantNotFound
	}
	return nil
}

func ToVariant(m *AffiliateVariant) (*entity.AffiliateVariant, error) {
	trackedParams := make(map[string]string)
	if m.GetTrackedParams() != "" {
		if err := json.Unmarshal([]byte(m.GetTrackedParams()), &trackedParams); err != nil {
			return nil, err
		}
	}

	return &entity.AffiliateVariant{
		ID:              m.ID,
		CampaignID:      m.CampaignID,
		UrlTemplate:     m.UrlTemplate,
		TrackedParams:   trackedParams,
		ClickCount:      m.ClickCount,
		ConversionCount: m.ConversionCount,
	}, nil
}

func ToVariantModel(variant *entity.AffiliateVariant) (*AffiliateVariant, error) {
	trackedParams := config.EmptyJson
	if variant.TrackedParams != nil {
		var err error
		trackedParams, err = json.Marshal(variant.TrackedParams)
		if err != nil {
			return nil, err
		}
	}

	return &AffiliateVariant{
		ID:              variant.ID,
		CampaignID:      variant.CampaignID,
		UrlTemplate:     variant.UrlTemplate,
		TrackedParams:   goutil.String(string(trackedParams)),
		ClickCount:      variant.ClickCount,
		ConversionCount: variant.ConversionCount,
	}, nil
}
