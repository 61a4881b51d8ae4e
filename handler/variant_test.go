package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/config"
	"outreach/entity"
	"outreach/pkg/goutil"
)

func seedVariants(t *testing.T, variantRepo *fakeVariantRepo, campaignID uint64, stats ...[2]uint64) []*entity.AffiliateVariant {
	t.Helper()

	variants := make([]*entity.AffiliateVariant, 0, len(stats))
	for _, s := range stats {
		variant := &entity.AffiliateVariant{
			CampaignID:      goutil.Uint64(campaignID),
			UrlTemplate:     goutil.String("https://shop.example.com/{tracking_id}"),
			ClickCount:      goutil.Uint64(s[0]),
			ConversionCount: goutil.Uint64(s[1]),
		}
		_, err := variantRepo.Create(context.Background(), variant)
		require.NoError(t, err)
		variants = append(variants, variant)
	}
	return variants
}

func TestSelectVariantNoVariants(t *testing.T) {
	s := NewVariantSelector(config.NewConfig(), new(fakeVariantRepo))

	err := s.SelectVariant(context.Background(), &SelectVariantRequest{
		CampaignID: goutil.Uint64(1),
	}, new(SelectVariantResponse))
	assert.ErrorIs(t, err, ErrNoVariants)
}

func TestSelectVariantExploitsBest(t *testing.T) {
	variantRepo := new(fakeVariantRepo)
	variants := seedVariants(t, variantRepo, 1,
		[2]uint64{100, 5},  // 5%
		[2]uint64{100, 20}, // 20%, best
		[2]uint64{100, 10}, // 10%
	)
	best := variants[1]

	s := NewVariantSelector(config.NewConfig(), variantRepo)

	const runs = 2000
	picks := make(map[uint64]int)
	for i := 0; i < runs; i++ {
		res := new(SelectVariantResponse)
		require.NoError(t, s.SelectVariant(context.Background(), &SelectVariantRequest{
			CampaignID: goutil.Uint64(1),
		}, res))
		picks[res.Variant.GetID()]++
	}

	// epsilon 0.1: best picked ~93% of the time, each variant still explored
	assert.Greater(t, picks[best.GetID()], runs*8/10)
	for _, variant := range variants {
		assert.Greater(t, picks[variant.GetID()], 0)
	}
}

func TestSelectVariantFallsBackToMostClicks(t *testing.T) {
	variantRepo := new(fakeVariantRepo)
	variants := seedVariants(t, variantRepo, 1,
		[2]uint64{5, 4},  // high rate, too few clicks
		[2]uint64{15, 1}, // most clicks, still below min sample
	)
	mostClicked := variants[1]

	cfg := config.NewConfig()
	cfg.Pipeline.Epsilon = 0 // no exploration, deterministic

	s := NewVariantSelector(cfg, variantRepo)

	res := new(SelectVariantResponse)
	require.NoError(t, s.SelectVariant(context.Background(), &SelectVariantRequest{
		CampaignID: goutil.Uint64(1),
	}, res))

	assert.Equal(t, mostClicked.GetID(), res.Variant.GetID())
}

func TestSelectVariantIgnoresUndersampled(t *testing.T) {
	variantRepo := new(fakeVariantRepo)
	variants := seedVariants(t, variantRepo, 1,
		[2]uint64{10, 9},  // 90% but only 10 clicks
		[2]uint64{100, 8}, // 8% with enough clicks
	)
	qualified := variants[1]

	cfg := config.NewConfig()
	cfg.Pipeline.Epsilon = 0

	s := NewVariantSelector(cfg, variantRepo)

	res := new(SelectVariantResponse)
	require.NoError(t, s.SelectVariant(context.Background(), &SelectVariantRequest{
		CampaignID: goutil.Uint64(1),
	}, res))

	assert.Equal(t, qualified.GetID(), res.Variant.GetID())
}
