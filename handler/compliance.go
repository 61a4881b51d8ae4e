package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"outreach/config"
	"outreach/entity"
	"outreach/pkg/goutil"
	"outreach/repo"
)

// RuleSetVersion identifies the eligibility rule set in audit entries.
const RuleSetVersion = "v1"

type RuleKind string

const (
	RuleKindBlocklist RuleKind = "blocklist"
	RuleKindConsent   RuleKind = "consent"
	RuleKindDenylist  RuleKind = "denylist"
)

// rules are evaluated in this order; the first rejection wins.
var ruleOrder = []RuleKind{RuleKindBlocklist, RuleKindConsent, RuleKindDenylist}

var (
	ErrEmptyContact = errors.New("contact is empty")
)

// ComplianceHandler decides whether a contact may be reached for a purpose.
// The check is deterministic and side-effect free besides an audit log entry,
// and rejects by default on any lookup error.
type ComplianceHandler interface {
	CheckEligibility(ctx context.Context, req *CheckEligibilityRequest, res *CheckEligibilityResponse) error
}

type complianceHandler struct {
	cfg           *config.Config
	blocklistRepo repo.BlocklistRepo
	consentRepo   repo.ConsentRepo
}

func NewComplianceHandler(cfg *config.Config, blocklistRepo repo.BlocklistRepo, consentRepo repo.ConsentRepo) ComplianceHandler {
	return &complianceHandler{
		cfg:           cfg,
		blocklistRepo: blocklistRepo,
		consentRepo:   consentRepo,
	}
}

type CheckEligibilityRequest struct {
	Contact *entity.Contact `json:"contact,omitempty"`
	Purpose *string         `json:"purpose,omitempty"`
}

func (r *CheckEligibilityRequest) GetPurpose() string {
	if r != nil && r.Purpose != nil {
		return *r.Purpose
	}
	return ""
}

type CheckEligibilityResponse struct {
	Eligible *bool    `json:"eligible,omitempty"`
	Rule     RuleKind `json:"rule,omitempty"`
	Reason   *string  `json:"reason,omitempty"`
}

func (r *CheckEligibilityResponse) GetEligible() bool {
	if r != nil && r.Eligible != nil {
		return *r.Eligible
	}
	return false
}

func (r *CheckEligibilityResponse) GetReason() string {
	if r != nil && r.Reason != nil {
		return *r.Reason
	}
	return ""
}

func (h *complianceHandler) CheckEligibility(ctx context.Context, req *CheckEligibilityRequest, res *CheckEligibilityResponse) error {
	if req.Contact == nil || req.Contact.GetEmail() == "" {
		return ErrEmptyContact
	}

	var (
		email = req.Contact.GetEmail()
		now   = uint64(time.Now().Unix())
	)

	reject := func(rule RuleKind, reason string) {
		res.Eligible = goutil.Bool(false)
		res.Rule = rule
		res.Reason = goutil.String(reason)
		h.audit(ctx, email, req.GetPurpose(), res)
	}

	for _, rule := range ruleOrder {
		switch rule {
		case RuleKindBlocklist:
			blocked, err := h.blocklistRepo.IsBlocked(ctx, email)
			if err != nil {
				// fail closed
				reject(rule, fmt.Sprintf("blocklist lookup failed: %v", err))
				return nil
			}
			if blocked {
				reject(rule, "recipient is blocklisted")
				return nil
			}
		case RuleKindConsent:
			consent, err := h.consentRepo.GetByRecipientPurpose(ctx, email, req.GetPurpose())
			if err != nil {
				if errors.Is(err, repo.ErrConsentNotFound) {
					reject(rule, "no consent record")
					return nil
				}
				// fail closed
				reject(rule, fmt.Sprintf("consent lookup failed: %v", err))
				return nil
			}
			if !consent.IsValid(req.GetPurpose(), now) {
				reject(rule, fmt.Sprintf("consent not valid, status: %s", consent.GetStatus()))
				return nil
			}
		case RuleKindDenylist:
			if goutil.ContainsStr(h.cfg.Compliance.DeniedIndustries, req.Contact.GetIndustry()) {
				reject(rule, fmt.Sprintf("industry denied: %s", req.Contact.GetIndustry()))
				return nil
			}
			if domain := emailDomain(email); goutil.ContainsStr(h.cfg.Compliance.DeniedDomains, domain) {
				reject(rule, fmt.Sprintf("domain denied: %s", domain))
				return nil
			}
		}
	}

	res.Eligible = goutil.Bool(true)
	h.audit(ctx, email, req.GetPurpose(), res)

	return nil
}

func (h *complianceHandler) audit(ctx context.Context, email, purpose string, res *CheckEligibilityResponse) {
	log.Ctx(ctx).Info().
		Str("rule_set", RuleSetVersion).
		Str("recipient", email).
		Str("purpose", purpose).
		Bool("eligible", res.GetEligible()).
		Str("rule", string(res.Rule)).
		Msgf("eligibility checked: %s", res.GetReason())
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
