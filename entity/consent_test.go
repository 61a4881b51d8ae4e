package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"outreach/pkg/goutil"
)

func TestConsentIsValid(t *testing.T) {
	now := uint64(1_700_000_000)

	consent := &Consent{
		Recipient: goutil.String("ops@acme.io"),
		Purpose:   goutil.String("product_launch"),
		Status:    ConsentStatusGranted,
		ExpiresAt: goutil.Uint64(now + 3600),
	}
	assert.True(t, consent.IsValid("product_launch", now))

	// wrong purpose
	assert.False(t, consent.IsValid("newsletter", now))

	// expired
	assert.False(t, consent.IsValid("product_launch", now+7200))

	// revoked
	consent.Status = ConsentStatusRevoked
	assert.False(t, consent.IsValid("product_launch", now))
}

func TestDispatchStatusIsTerminal(t *testing.T) {
	assert.True(t, DispatchStatusSent.IsTerminal())
	assert.True(t, DispatchStatusBounced.IsTerminal())
	assert.True(t, DispatchStatusFailed.IsTerminal())
	assert.False(t, DispatchStatusQueued.IsTerminal())
	assert.False(t, DispatchStatusSending.IsTerminal())
}
