package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/entity"
	"outreach/pkg/goutil"
)

func TestCampaignModelRoundTrip(t *testing.T) {
	campaign := &entity.Campaign{
		ID:           goutil.Uint64(42),
		Name:         goutil.String("q3 launch"),
		CampaignDesc: goutil.String("launch push"),
		Criteria: &entity.TargetingCriteria{
			Industries: []string{"saas", "fintech"},
			Sizes:      []string{"11-50"},
			Roles:      []string{"cto"},
		},
		Purpose:     goutil.String("product_launch"),
		TemplateID:  goutil.String("tpl-1"),
		DailyQuota:  goutil.Uint64(200),
		Stage:       entity.CampaignStagePaused,
		PausedStage: entity.CampaignStageDispatching,
		StageStats: map[string]*entity.StageStats{
			entity.CampaignStageComplianceChecking.String(): {
				Errors: goutil.Uint64(1),
				Skips:  goutil.Uint64(3),
			},
		},
		Progress:        goutil.Uint64(30),
		DiscoveryCursor: goutil.String("10"),
		CreateTime:      goutil.Uint64(1714521600),
		StartTime:       goutil.Uint64(1714525200),
		CompleteTime:    goutil.Uint64(1714608000),
		UpdateTime:      goutil.Uint64(1714611600),
	}

	m, err := ToCampaignModel(campaign)
	require.NoError(t, err)

	got, err := ToCampaign(m)
	require.NoError(t, err)
	assert.Equal(t, campaign, got)
}

func TestCampaignModelRoundTripSparse(t *testing.T) {
	// criteria and stats unset on a draft: stored as empty json, read back empty
	campaign := &entity.Campaign{
		ID:    goutil.Uint64(1),
		Name:  goutil.String("draft"),
		Stage: entity.CampaignStageDraft,
	}

	m, err := ToCampaignModel(campaign)
	require.NoError(t, err)

	got, err := ToCampaign(m)
	require.NoError(t, err)

	assert.Equal(t, campaign.GetID(), got.GetID())
	assert.Equal(t, campaign.GetName(), got.GetName())
	assert.Equal(t, entity.CampaignStageDraft, got.GetStage())
	assert.Empty(t, got.GetStageStats())
	assert.Nil(t, got.DailyQuota)
	assert.Nil(t, got.DiscoveryCursor)
}
