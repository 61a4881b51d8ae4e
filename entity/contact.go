package entity

type Contact struct {
	ID         *string  `json:"id,omitempty"`
	Email      *string  `json:"email,omitempty"`
	Industry   *string  `json:"industry,omitempty"`
	Size       *string  `json:"size,omitempty"`
	Role       *string  `json:"role,omitempty"`
	Source     *string  `json:"source,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (e *Contact) GetID() string {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return ""
}

func (e *Contact) GetEmail() string {
	if e != nil && e.Email != nil {
		return *e.Email
	}
	return ""
}

func (e *Contact) GetIndustry() string {
	if e != nil && e.Industry != nil {
		return *e.Industry
	}
	return ""
}

func (e *Contact) GetRole() string {
	if e != nil && e.Role != nil {
		return *e.Role
	}
	return ""
}

func (e *Contact) GetConfidence() float64 {
	if e != nil && e.Confidence != nil {
		return *e.Confidence
	}
	return 0
}

// SkippedContact retains a rejected contact with its rejection reason for audit.
type SkippedContact struct {
	ID         *uint64       `json:"id,omitempty"`
	CampaignID *uint64       `json:"campaign_id,omitempty"`
	Email      *string       `json:"email,omitempty"`
	Stage      CampaignStage `json:"stage,omitempty"`
	Reason     *string       `json:"reason,omitempty"`
	CreateTime *uint64       `json:"create_time,omitempty"`
}

func (e *SkippedContact) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *SkippedContact) GetCampaignID() uint64 {
	if e != nil && e.CampaignID != nil {
		return *e.CampaignID
	}
	return 0
}

func (e *SkippedContact) GetEmail() string {
	if e != nil && e.Email != nil {
		return *e.Email
	}
	return ""
}

func (e *SkippedContact) GetReason() string {
	if e != nil && e.Reason != nil {
		return *e.Reason
	}
	return ""
}
