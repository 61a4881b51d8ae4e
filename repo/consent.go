package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"outreach/entity"
	"outreach/pkg/goutil"
)

var (
	ErrConsentNotFound = errors.New("consent not found")
)

type Consent struct {
	ID        *uint64
	Recipient *string
	Purpose   *string
	Status    *uint32
	GrantedAt *uint64
	ExpiresAt *uint64
}

func (m *Consent) TableName() string {
	return "consent_tab"
}

func (m *Consent) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

type ConsentRepo interface {
	Create(ctx context.Context, consent *entity.Consent) (uint64, error)
	Update(ctx context.Context, consent *entity.Consent) error
	// GetByRecipientPurpose returns the consent record for a recipient and purpose,
	// or ErrConsentNotFound.
	GetByRecipientPurpose(ctx context.Context, recipient, purpose string) (*entity.Consent, error)
}

type consentRepo struct {
	baseRepo BaseRepo
}

func NewConsentRepo(_ context.Context, baseRepo BaseRepo) ConsentRepo {
	return &consentRepo{baseRepo: baseRepo}
}

func (r *consentRepo) Create(ctx context.Context, consent *entity.Consent) (uint64, error) {
	consentModel := ToConsentModel(consent)

	if err := r.baseRepo.Create(ctx, consentModel); err != nil {
		return 0, err
	}

	consent.ID = consentModel.ID

	return consentModel.GetID(), nil
}

func (r *consentRepo) Update(ctx context.Context, consent *entity.Consent) error {
	return r.baseRepo.Update(ctx, ToConsentModel(consent))
}

func (r *consentRepo) GetByRecipientPurpose(ctx context.Context, recipient, purpose string) (*entity.Consent, error) {
	consentModel := new(Consent)
	if err := r.baseRepo.Get(ctx, consentModel, &Filter{
		Conditions: []*Condition{
			{Field: "recipient", Op: OpEq, Value: goutil.String(recipient), NextLogicalOp: And},
			{Field: "purpose", Op: OpEq, Value: goutil.String(purpose)},
		},
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsentNotFound
		}
		return nil, err
	}

	return ToConsent(consentModel), nil
}

func ToConsent(m *Consent) *entity.Consent {
	consent := &entity.Consent{
		ID:        m.ID,
		Recipient: m.Recipient,
		Purpose:   m.Purpose,
		GrantedAt: m.GrantedAt,
		ExpiresAt: m.ExpiresAt,
	}
	if m.Status != nil {
		consent.Status = entity.ConsentStatus(*m.Status)
	}
	return consent
}

func ToConsentModel(consent *entity.Consent) *Consent {
	return &Consent{
		ID:        consent.ID,
		Recipient: consent.Recipient,
		Purpose:   consent.Purpose,
		Status:    goutil.Uint32(uint32(consent.Status)),
		GrantedAt: consent.GrantedAt,
		ExpiresAt: consent.ExpiresAt,
	}
}
