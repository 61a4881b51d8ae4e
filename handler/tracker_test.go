package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/config"
	"outreach/entity"
	"outreach/pkg/goutil"
	"outreach/pkg/mq"
)

type trackerFixture struct {
	cfg       *config.Config
	records   *fakeRecordRepo
	variants  *fakeVariantRepo
	snapshots *fakeSnapshotRepo
	producer  *fakeProducer
	handler   TrackerHandler
}

func newTrackerFixture() *trackerFixture {
	f := &trackerFixture{
		cfg:       config.NewConfig(),
		records:   new(fakeRecordRepo),
		variants:  new(fakeVariantRepo),
		snapshots: new(fakeSnapshotRepo),
		producer:  new(fakeProducer),
	}
	f.handler = NewTrackerHandler(f.cfg, f.records, f.variants, f.snapshots, f.producer)
	return f
}

func (f *trackerFixture) seedRecord(t *testing.T, trackingID string, variantID uint64) *entity.DispatchRecord {
	t.Helper()

	day := goutil.DayBucket(uint64(time.Now().Unix()))
	record := &entity.DispatchRecord{
		CampaignID: goutil.Uint64(1),
		Recipient:  goutil.String("ops@acme.io"),
		Status:     entity.DispatchStatusSent,
		TrackingID: goutil.String(trackingID),
		Day:        goutil.Uint64(day),
	}
	if variantID > 0 {
		record.VariantID = goutil.Uint64(variantID)
	}
	_, err := f.records.Create(context.Background(), record)
	require.NoError(t, err)
	return record
}

func event(payload mq.Payload, body interface{}) *mq.Message {
	return &mq.Message{Payload: payload, Body: body}
}

func TestTrackerCountsEngagement(t *testing.T) {
	f := newTrackerFixture()
	record := f.seedRecord(t, "trk-1", 0)

	variant := &entity.AffiliateVariant{
		CampaignID: goutil.Uint64(1),
		ClickCount: goutil.Uint64(0),
	}
	_, err := f.variants.Create(context.Background(), variant)
	require.NoError(t, err)
	record.VariantID = variant.ID
	require.NoError(t, f.records.Update(context.Background(), record))

	ctx := context.Background()
	now := goutil.Uint64(uint64(time.Now().Unix()))

	require.NoError(t, f.handler.HandleDispatchOutcome(ctx, event(mq.PayloadDispatchOutcome, &mq.DispatchOutcome{
		TrackingID: goutil.String("trk-1"),
		Status:     goutil.Uint32(uint32(entity.DispatchStatusSent)),
		EventTime:  now,
	})))
	require.NoError(t, f.handler.HandleEmailOpened(ctx, event(mq.PayloadEmailOpened, &mq.EmailOpened{
		TrackingID: goutil.String("trk-1"),
		EventTime:  now,
	})))
	require.NoError(t, f.handler.HandleEmailClicked(ctx, event(mq.PayloadEmailClicked, &mq.EmailClicked{
		TrackingID: goutil.String("trk-1"),
		Url:        goutil.String("https://shop.example.com/deal?tid=trk-1&conv=1"),
		EventTime:  now,
	})))

	snapshot, err := f.snapshots.GetByCampaignDay(ctx, 1, record.GetDay())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snapshot.GetSendCount())
	assert.Equal(t, uint64(1), snapshot.GetOpenCount())
	assert.Equal(t, uint64(1), snapshot.GetClickCount())
	assert.Equal(t, uint64(1), snapshot.GetConversionCount())

	// click with a conversion marker bumps both variant counters
	assert.Equal(t, uint64(1), variant.GetClickCount())
	assert.Equal(t, uint64(1), variant.GetConversionCount())
}

func TestTrackerPlainClickIsNotConversion(t *testing.T) {
	f := newTrackerFixture()
	f.seedRecord(t, "trk-2", 0)

	ctx := context.Background()
	require.NoError(t, f.handler.HandleEmailClicked(ctx, event(mq.PayloadEmailClicked, &mq.EmailClicked{
		TrackingID: goutil.String("trk-2"),
		Url:        goutil.String("https://shop.example.com/deal?tid=trk-2"),
	})))

	snapshot, err := f.snapshots.GetLatest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snapshot.GetClickCount())
	assert.Equal(t, uint64(0), snapshot.GetConversionCount())
}

func TestTrackerIgnoresUnknownTrackingID(t *testing.T) {
	f := newTrackerFixture()

	err := f.handler.HandleEmailOpened(context.Background(), event(mq.PayloadEmailOpened, &mq.EmailOpened{
		TrackingID: goutil.String("never-issued"),
	}))
	require.NoError(t, err)
	assert.Empty(t, f.snapshots.snapshots)
}

func TestTrackerSmoothedRate(t *testing.T) {
	f := newTrackerFixture()
	record := f.seedRecord(t, "trk-3", 0)

	ctx := context.Background()

	// one send, one conversion click: raw conversion rate 1.0
	require.NoError(t, f.handler.HandleDispatchOutcome(ctx, event(mq.PayloadDispatchOutcome, &mq.DispatchOutcome{
		TrackingID: goutil.String("trk-3"),
		Status:     goutil.Uint32(uint32(entity.DispatchStatusSent)),
	})))
	require.NoError(t, f.handler.HandleEmailClicked(ctx, event(mq.PayloadEmailClicked, &mq.EmailClicked{
		TrackingID: goutil.String("trk-3"),
		Url:        goutil.String("https://shop.example.com/deal?conv=1"),
	})))

	snapshot, err := f.snapshots.GetByCampaignDay(ctx, 1, record.GetDay())
	require.NoError(t, err)

	// no previous day: smoothed = 0.5*1.0 + 0.5*0
	assert.InDelta(t, 1.0, snapshot.GetConversionRate(), 1e-9)
	assert.InDelta(t, 0.5, snapshot.GetSmoothedRate(), 1e-9)
}

func TestGetTrend(t *testing.T) {
	tests := []struct {
		name     string
		smoothed []float64
		want     entity.Trend
	}{
		{name: "improving", smoothed: []float64{0.01, 0.02, 0.04, 0.06, 0.09}, want: entity.TrendImproving},
		{name: "declining", smoothed: []float64{0.09, 0.07, 0.05, 0.02, 0.01}, want: entity.TrendDeclining},
		{name: "flat", smoothed: []float64{0.05, 0.05, 0.05, 0.05, 0.05}, want: entity.TrendStable},
		{name: "too little history", smoothed: []float64{0.05}, want: entity.TrendStable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newTrackerFixture()

			day := goutil.DayBucket(uint64(time.Now().Unix()))
			for i, rate := range tc.smoothed {
				_, err := f.snapshots.Create(context.Background(), &entity.PerformanceSnapshot{
					CampaignID:   goutil.Uint64(1),
					Day:          goutil.Uint64(day + uint64(i)*86400),
					SmoothedRate: goutil.Float64(rate),
				})
				require.NoError(t, err)
			}

			trend, err := f.handler.GetTrend(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, tc.want, trend)
		})
	}
}
