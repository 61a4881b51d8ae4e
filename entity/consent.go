package entity

type ConsentStatus uint32

const (
	ConsentStatusUnknown ConsentStatus = iota
	ConsentStatusGranted
	ConsentStatusRevoked
	ConsentStatusExpired
)

var ConsentStatuses = map[ConsentStatus]string{
	ConsentStatusGranted: "granted",
	ConsentStatusRevoked: "revoked",
	ConsentStatusExpired: "expired",
}

func (s ConsentStatus) String() string {
	return ConsentStatuses[s]
}

type Consent struct {
	ID        *uint64       `json:"id,omitempty"`
	Recipient *string       `json:"recipient,omitempty"`
	Purpose   *string       `json:"purpose,omitempty"`
	Status    ConsentStatus `json:"status,omitempty"`
	GrantedAt *uint64       `json:"granted_at,omitempty"`
	ExpiresAt *uint64       `json:"expires_at,omitempty"`
}

func (e *Consent) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *Consent) GetRecipient() string {
	if e != nil && e.Recipient != nil {
		return *e.Recipient
	}
	return ""
}

func (e *Consent) GetPurpose() string {
	if e != nil && e.Purpose != nil {
		return *e.Purpose
	}
	return ""
}

func (e *Consent) GetStatus() ConsentStatus {
	if e != nil {
		return e.Status
	}
	return ConsentStatusUnknown
}

func (e *Consent) GetExpiresAt() uint64 {
	if e != nil && e.ExpiresAt != nil {
		return *e.ExpiresAt
	}
	return 0
}

// IsValid reports whether a send is allowed: status granted, purpose matches,
// and now is before expiry.
func (e *Consent) IsValid(purpose string, now uint64) bool {
	if e.GetStatus() != ConsentStatusGranted {
		return false
	}
	if e.GetPurpose() != purpose {
		return false
	}
	return now < e.GetExpiresAt()
}
