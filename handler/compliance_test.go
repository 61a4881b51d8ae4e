package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/config"
	"outreach/entity"
	"outreach/pkg/goutil"
)

func newComplianceFixture(blocklist *fakeBlocklistRepo, consents *fakeConsentRepo) ComplianceHandler {
	cfg := config.NewConfig()
	cfg.Compliance = config.Compliance{
		DeniedIndustries: []string{"gambling"},
		DeniedDomains:    []string{"gov.example"},
	}
	return NewComplianceHandler(cfg, blocklist, consents)
}

func grantConsent(consents *fakeConsentRepo, email, purpose string) {
	_, _ = consents.Create(context.Background(), &entity.Consent{
		Recipient: goutil.String(email),
		Purpose:   goutil.String(purpose),
		Status:    entity.ConsentStatusGranted,
		ExpiresAt: goutil.Uint64(uint64(time.Now().Unix()) + 86400),
	})
}

func TestCheckEligibilityPasses(t *testing.T) {
	consents := new(fakeConsentRepo)
	grantConsent(consents, "ops@acme.io", "product_launch")

	h := newComplianceFixture(new(fakeBlocklistRepo), consents)

	res := new(CheckEligibilityResponse)
	err := h.CheckEligibility(context.Background(), &CheckEligibilityRequest{
		Contact: &entity.Contact{
			Email:    goutil.String("ops@acme.io"),
			Industry: goutil.String("saas"),
		},
		Purpose: goutil.String("product_launch"),
	}, res)
	require.NoError(t, err)
	assert.True(t, res.GetEligible())
}

func TestCheckEligibilityBlocklisted(t *testing.T) {
	blocklist := &fakeBlocklistRepo{blocked: map[string]bool{"ops@acme.io": true}}
	consents := new(fakeConsentRepo)
	grantConsent(consents, "ops@acme.io", "product_launch")

	h := newComplianceFixture(blocklist, consents)

	res := new(CheckEligibilityResponse)
	err := h.CheckEligibility(context.Background(), &CheckEligibilityRequest{
		Contact: &entity.Contact{Email: goutil.String("ops@acme.io")},
		Purpose: goutil.String("product_launch"),
	}, res)
	require.NoError(t, err)
	assert.False(t, res.GetEligible())
	assert.Equal(t, RuleKindBlocklist, res.Rule)
}

func TestCheckEligibilityRevokedConsent(t *testing.T) {
	consents := new(fakeConsentRepo)
	_, _ = consents.Create(context.Background(), &entity.Consent{
		Recipient: goutil.String("ops@acme.io"),
		Purpose:   goutil.String("product_launch"),
		Status:    entity.ConsentStatusRevoked,
		ExpiresAt: goutil.Uint64(uint64(time.Now().Unix()) + 86400),
	})

	h := newComplianceFixture(new(fakeBlocklistRepo), consents)

	res := new(CheckEligibilityResponse)
	err := h.CheckEligibility(context.Background(), &CheckEligibilityRequest{
		Contact: &entity.Contact{Email: goutil.String("ops@acme.io")},
		Purpose: goutil.String("product_launch"),
	}, res)
	require.NoError(t, err)
	assert.False(t, res.GetEligible())
	assert.Equal(t, RuleKindConsent, res.Rule)
}

func TestCheckEligibilityNoConsentRecord(t *testing.T) {
	h := newComplianceFixture(new(fakeBlocklistRepo), new(fakeConsentRepo))

	res := new(CheckEligibilityResponse)
	err := h.CheckEligibility(context.Background(), &CheckEligibilityRequest{
		Contact: &entity.Contact{Email: goutil.String("ops@acme.io")},
		Purpose: goutil.String("product_launch"),
	}, res)
	require.NoError(t, err)
	assert.False(t, res.GetEligible())
	assert.Equal(t, RuleKindConsent, res.Rule)
}

func TestCheckEligibilityDenylist(t *testing.T) {
	consents := new(fakeConsentRepo)
	grantConsent(consents, "ops@casino.io", "product_launch")
	grantConsent(consents, "clerk@gov.example", "product_launch")

	h := newComplianceFixture(new(fakeBlocklistRepo), consents)

	// denied industry
	res := new(CheckEligibilityResponse)
	err := h.CheckEligibility(context.Background(), &CheckEligibilityRequest{
		Contact: &entity.Contact{
			Email:    goutil.String("ops@casino.io"),
			Industry: goutil.String("gambling"),
		},
		Purpose: goutil.String("product_launch"),
	}, res)
	require.NoError(t, err)
	assert.False(t, res.GetEligible())
	assert.Equal(t, RuleKindDenylist, res.Rule)

	// denied domain
	res = new(CheckEligibilityResponse)
	err = h.CheckEligibility(context.Background(), &CheckEligibilityRequest{
		Contact: &entity.Contact{Email: goutil.String("clerk@gov.example")},
		Purpose: goutil.String("product_launch"),
	}, res)
	require.NoError(t, err)
	assert.False(t, res.GetEligible())
	assert.Equal(t, RuleKindDenylist, res.Rule)
}

func TestCheckEligibilityFailsClosed(t *testing.T) {
	blocklist := &fakeBlocklistRepo{err: errors.New("store down")}
	consents := new(fakeConsentRepo)
	grantConsent(consents, "ops@acme.io", "product_launch")

	h := newComplianceFixture(blocklist, consents)

	res := new(CheckEligibilityResponse)
	err := h.CheckEligibility(context.Background(), &CheckEligibilityRequest{
		Contact: &entity.Contact{Email: goutil.String("ops@acme.io")},
		Purpose: goutil.String("product_launch"),
	}, res)
	require.NoError(t, err)
	assert.False(t, res.GetEligible())
	assert.Equal(t, RuleKindBlocklist, res.Rule)
}

func TestCheckEligibilityRuleOrder(t *testing.T) {
	// blocklisted AND revoked consent: blocklist is checked first and wins
	blocklist := &fakeBlocklistRepo{blocked: map[string]bool{"ops@acme.io": true}}
	consents := new(fakeConsentRepo)
	_, _ = consents.Create(context.Background(), &entity.Consent{
		Recipient: goutil.String("ops@acme.io"),
		Purpose:   goutil.String("product_launch"),
		Status:    entity.ConsentStatusRevoked,
	})

	h := newComplianceFixture(blocklist, consents)

	res := new(CheckEligibilityResponse)
	err := h.CheckEligibility(context.Background(), &CheckEligibilityRequest{
		Contact: &entity.Contact{Email: goutil.String("ops@acme.io")},
		Purpose: goutil.String("product_launch"),
	}, res)
	require.NoError(t, err)
	assert.Equal(t, RuleKindBlocklist, res.Rule)
}
