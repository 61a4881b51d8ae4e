package handler

import (
	"context"
	"errors"
	"math/rand"

	"outreach/config"
	"outreach/entity"
	"outreach/repo"
)

var (
	ErrNoVariants = errors.New("campaign has no affiliate variants")
)

// VariantSelector picks which tracked link variant a send should use, balancing
// exploration and exploitation from live click/conversion feedback.
type VariantSelector interface {
	SelectVariant(ctx context.Context, req *SelectVariantRequest, res *SelectVariantResponse) error
}

type variantSelector struct {
	cfg         *config.Config
	variantRepo repo.VariantRepo
}

func NewVariantSelector(cfg *config.Config, variantRepo repo.VariantRepo) VariantSelector {
	return &variantSelector{
		cfg:         cfg,
		variantRepo: variantRepo,
	}
}

type SelectVariantRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty"`
}

func (r *SelectVariantRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type SelectVariantResponse struct {
	Variant *entity.AffiliateVariant `json:"variant,omitempty"`
}

// SelectVariant is epsilon-greedy: with probability epsilon it explores uniformly;
// otherwise it exploits the best conversion rate among variants with enough clicks,
// falling back to the most-clicked variant when none qualify yet.
func (s *variantSelector) SelectVariant(ctx context.Context, req *SelectVariantRequest, res *SelectVariantResponse) error {
	variants, err := s.variantRepo.GetByCampaign(ctx, req.GetCampaignID())
	if err != nil {
		return err
	}

	if len(variants) == 0 {
		return ErrNoVariants
	}

	if rand.Float64() < s.cfg.Pipeline.Epsilon {
		res.Variant = variants[rand.Intn(len(variants))]
		return nil
	}

	var (
		best       *entity.AffiliateVariant
		mostClicks *entity.AffiliateVariant
	)
	for _, variant := range variants {
		if mostClicks == nil || variant.GetClickCount() > mostClicks.GetClickCount() {
			mostClicks = variant
		}

		if variant.GetClickCount() < s.cfg.Pipeline.MinSampleSize {
			continue
		}

		if best == nil || variant.ConversionRate() > best.ConversionRate() {
			best = variant
		}
	}

	// no variant has enough samples yet
	if best == nil {
		best = mostClicks
	}

	res.Variant = best

	return nil
}
