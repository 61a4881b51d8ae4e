package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"outreach/entity"
	"outreach/pkg/goutil"
)

func TestDispatchRecordModelRoundTrip(t *testing.T) {
	record := &entity.DispatchRecord{
		ID:              goutil.Uint64(7),
		CampaignID:      goutil.Uint64(42),
		Recipient:       goutil.String("ops@acme.io"),
		ChannelID:       goutil.Uint64(2),
		VariantID:       goutil.Uint64(3),
		Status:          entity.DispatchStatusSent,
		AttemptCount:    goutil.Uint32(2),
		LastAttemptTime: goutil.Uint64(1714525200),
		TrackingID:      goutil.String("trk-7"),
		Day:             goutil.Uint64(1714521600),
		CreateTime:      goutil.Uint64(1714525100),
		UpdateTime:      goutil.Uint64(1714525200),
	}

	assert.Equal(t, record, ToDispatchRecord(ToDispatchRecordModel(record)))
}

func TestDispatchRecordModelRoundTripSparse(t *testing.T) {
	record := &entity.DispatchRecord{
		CampaignID: goutil.Uint64(1),
		Recipient:  goutil.String("ops@acme.io"),
		Status:     entity.DispatchStatusQueued,
		Day:        goutil.Uint64(1714521600),
	}

	got := ToDispatchRecord(ToDispatchRecordModel(record))
	assert.Equal(t, record, got)
	assert.Nil(t, got.ChannelID)
	assert.Nil(t, got.VariantID)
}
