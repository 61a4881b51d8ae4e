package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/config"
	"outreach/entity"
	"outreach/pkg/errutil"
	"outreach/pkg/goutil"
)

type campaignFixture struct {
	campaigns *fakeCampaignRepo
	variants  *fakeVariantRepo
	snapshots *fakeSnapshotRepo
	skipped   *fakeSkippedContactRepo
	handler   CampaignHandler
}

func newCampaignFixture() *campaignFixture {
	f := &campaignFixture{
		campaigns: new(fakeCampaignRepo),
		variants:  new(fakeVariantRepo),
		snapshots: new(fakeSnapshotRepo),
		skipped:   new(fakeSkippedContactRepo),
	}
	tracker := NewTrackerHandler(config.NewConfig(), new(fakeRecordRepo), f.variants, f.snapshots, new(fakeProducer))
	f.handler = NewCampaignHandler(new(fakeTxService), f.campaigns, f.variants, f.snapshots, f.skipped, tracker)
	return f
}

func createCampaignReq() *CreateCampaignRequest {
	return &CreateCampaignRequest{
		Name:       goutil.String("q3 launch"),
		Purpose:    goutil.String("product_launch"),
		TemplateID: goutil.String("tpl-1"),
		DailyQuota: goutil.Uint64(200),
		Variants: []*CreateVariantRequest{
			{UrlTemplate: goutil.String("https://shop.example.com/a")},
			{UrlTemplate: goutil.String("https://shop.example.com/b")},
		},
	}
}

func TestCreateCampaign(t *testing.T) {
	f := newCampaignFixture()

	res := new(CreateCampaignResponse)
	require.NoError(t, f.handler.CreateCampaign(context.Background(), createCampaignReq(), res))

	campaign := res.Campaign
	assert.Equal(t, entity.CampaignStageDraft, campaign.GetStage())
	assert.NotZero(t, campaign.GetID())

	variants, err := f.variants.GetByCampaign(context.Background(), campaign.GetID())
	require.NoError(t, err)
	assert.Len(t, variants, 2)
}

func TestCreateCampaignValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(req *CreateCampaignRequest)
	}{
		{name: "missing name", mutate: func(req *CreateCampaignRequest) { req.Name = nil }},
		{name: "zero quota", mutate: func(req *CreateCampaignRequest) { req.DailyQuota = goutil.Uint64(0) }},
		{name: "no variants", mutate: func(req *CreateCampaignRequest) { req.Variants = nil }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newCampaignFixture()

			req := createCampaignReq()
			tc.mutate(req)

			err := f.handler.CreateCampaign(context.Background(), req, new(CreateCampaignResponse))
			require.Error(t, err)
			assert.True(t, errutil.Is(err, errutil.CodeValidation))
		})
	}
}

func TestPauseResumeCampaign(t *testing.T) {
	f := newCampaignFixture()

	res := new(CreateCampaignResponse)
	require.NoError(t, f.handler.CreateCampaign(context.Background(), createCampaignReq(), res))
	campaign := res.Campaign

	campaign.Stage = entity.CampaignStageDispatching
	require.NoError(t, f.campaigns.Update(context.Background(), campaign))

	pauseRes := new(PauseCampaignResponse)
	require.NoError(t, f.handler.PauseCampaign(context.Background(), &PauseCampaignRequest{
		CampaignID: campaign.ID,
	}, pauseRes))
	assert.Equal(t, entity.CampaignStagePaused, pauseRes.Campaign.GetStage())
	assert.Equal(t, entity.CampaignStageDispatching, pauseRes.Campaign.GetPausedStage())

	// pausing a paused campaign is a no-op
	require.NoError(t, f.handler.PauseCampaign(context.Background(), &PauseCampaignRequest{
		CampaignID: campaign.ID,
	}, new(PauseCampaignResponse)))

	resumeRes := new(ResumeCampaignResponse)
	require.NoError(t, f.handler.ResumeCampaign(context.Background(), &ResumeCampaignRequest{
		CampaignID: campaign.ID,
	}, resumeRes))
	assert.Equal(t, entity.CampaignStageDispatching, resumeRes.Campaign.GetStage())
}

func TestPauseCampaignTerminal(t *testing.T) {
	f := newCampaignFixture()

	res := new(CreateCampaignResponse)
	require.NoError(t, f.handler.CreateCampaign(context.Background(), createCampaignReq(), res))
	campaign := res.Campaign

	campaign.Stage = entity.CampaignStageCompleted
	require.NoError(t, f.campaigns.Update(context.Background(), campaign))

	err := f.handler.PauseCampaign(context.Background(), &PauseCampaignRequest{
		CampaignID: campaign.ID,
	}, new(PauseCampaignResponse))
	require.Error(t, err)
	assert.True(t, errutil.Is(err, errutil.CodeBadRequest))
}

func TestResumeCampaignNotPaused(t *testing.T) {
	f := newCampaignFixture()

	res := new(CreateCampaignResponse)
	require.NoError(t, f.handler.CreateCampaign(context.Background(), createCampaignReq(), res))

	err := f.handler.ResumeCampaign(context.Background(), &ResumeCampaignRequest{
		CampaignID: res.Campaign.ID,
	}, new(ResumeCampaignResponse))
	require.Error(t, err)
	assert.True(t, errutil.Is(err, errutil.CodeBadRequest))
}

func TestGetCampaignNotFound(t *testing.T) {
	f := newCampaignFixture()

	err := f.handler.GetCampaign(context.Background(), &GetCampaignRequest{
		CampaignID: goutil.Uint64(99),
	}, new(GetCampaignResponse))
	require.Error(t, err)
	assert.True(t, errutil.Is(err, errutil.CodeNotFound))
}

func TestGetPerformanceSnapshot(t *testing.T) {
	f := newCampaignFixture()

	for i, rate := range []float64{0.01, 0.03, 0.05} {
		_, err := f.snapshots.Create(context.Background(), &entity.PerformanceSnapshot{
			CampaignID:   goutil.Uint64(1),
			Day:          goutil.Uint64(uint64(i) * 86400),
			SmoothedRate: goutil.Float64(rate),
		})
		require.NoError(t, err)
	}

	res := new(GetPerformanceSnapshotResponse)
	require.NoError(t, f.handler.GetPerformanceSnapshot(context.Background(), &GetPerformanceSnapshotRequest{
		CampaignID: goutil.Uint64(1),
	}, res))

	assert.InDelta(t, 0.05, res.Snapshot.GetSmoothedRate(), 1e-9)
	require.NotNil(t, res.Trend)
	assert.Equal(t, entity.TrendImproving.String(), *res.Trend)
}

func TestGetSkippedContacts(t *testing.T) {
	f := newCampaignFixture()

	_, err := f.skipped.Create(context.Background(), &entity.SkippedContact{
		CampaignID: goutil.Uint64(1),
		Email:      goutil.String("ops@acme.io"),
		Reason:     goutil.String("consent revoked"),
	})
	require.NoError(t, err)

	res := new(GetSkippedContactsResponse)
	require.NoError(t, f.handler.GetSkippedContacts(context.Background(), &GetSkippedContactsRequest{
		CampaignID: goutil.Uint64(1),
	}, res))
	require.Len(t, res.SkippedContacts, 1)
	assert.Equal(t, "ops@acme.io", res.SkippedContacts[0].GetEmail())
}
