package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"outreach/pkg/goutil"
)

func TestCampaignStageTransitions(t *testing.T) {
	assert.True(t, CampaignStageDraft.CanTransition(CampaignStageDiscovering))
	assert.True(t, CampaignStageDiscovering.CanTransition(CampaignStageComplianceChecking))
	assert.True(t, CampaignStageComplianceChecking.CanTransition(CampaignStageContentReady))
	assert.True(t, CampaignStageContentReady.CanTransition(CampaignStageDispatching))
	assert.True(t, CampaignStageDispatching.CanTransition(CampaignStageTracking))
	assert.True(t, CampaignStageTracking.CanTransition(CampaignStageCompleted))

	// tracking loops back for the next batch
	assert.True(t, CampaignStageTracking.CanTransition(CampaignStageDiscovering))

	// no skipping forward
	assert.False(t, CampaignStageDraft.CanTransition(CampaignStageDispatching))
	assert.False(t, CampaignStageDiscovering.CanTransition(CampaignStageTracking))

	// no leaving terminal stages
	assert.False(t, CampaignStageCompleted.CanTransition(CampaignStageDiscovering))
	assert.False(t, CampaignStageFailed.CanTransition(CampaignStageDraft))
}

func TestCampaignStageIsTerminal(t *testing.T) {
	assert.True(t, CampaignStageCompleted.IsTerminal())
	assert.True(t, CampaignStageFailed.IsTerminal())
	assert.False(t, CampaignStagePaused.IsTerminal())
	assert.False(t, CampaignStageTracking.IsTerminal())
}

func TestCampaignIsRunnable(t *testing.T) {
	campaign := &Campaign{Stage: CampaignStageDiscovering}
	assert.True(t, campaign.IsRunnable())

	campaign.Stage = CampaignStagePaused
	assert.False(t, campaign.IsRunnable())
	assert.True(t, campaign.IsPaused())

	campaign.Stage = CampaignStageCompleted
	assert.False(t, campaign.IsRunnable())
}

func TestCampaignAddStageStat(t *testing.T) {
	campaign := new(Campaign)

	campaign.AddStageStat(CampaignStageComplianceChecking, 0, 1)
	campaign.AddStageStat(CampaignStageComplianceChecking, 1, 2)
	campaign.AddStageStat(CampaignStageDispatching, 1, 0)

	stats := campaign.GetStageStats()
	assert.Equal(t, uint64(1), stats[CampaignStageComplianceChecking.String()].GetErrors())
	assert.Equal(t, uint64(3), stats[CampaignStageComplianceChecking.String()].GetSkips())
	assert.Equal(t, uint64(1), stats[CampaignStageDispatching.String()].GetErrors())
}

func TestCampaignUpdate(t *testing.T) {
	campaign := &Campaign{
		Name:  goutil.String("q3 outreach"),
		Stage: CampaignStageDiscovering,
	}

	campaign.Update(&Campaign{
		Stage:           CampaignStagePaused,
		PausedStage:     CampaignStageDiscovering,
		DiscoveryCursor: goutil.String("100"),
	})

	assert.Equal(t, CampaignStagePaused, campaign.GetStage())
	assert.Equal(t, CampaignStageDiscovering, campaign.GetPausedStage())
	assert.Equal(t, "100", campaign.GetDiscoveryCursor())
	// untouched fields keep their values
	assert.Equal(t, "q3 outreach", campaign.GetName())
}
