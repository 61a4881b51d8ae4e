package entity

type DispatchStatus uint32

const (
	DispatchStatusUnknown DispatchStatus = iota
	DispatchStatusQueued
	DispatchStatusSending
	DispatchStatusSent
	DispatchStatusBounced
	DispatchStatusFailed
)

var DispatchStatuses = map[DispatchStatus]string{
	DispatchStatusQueued:  "queued",
	DispatchStatusSending: "sending",
	DispatchStatusSent:    "sent",
	DispatchStatusBounced: "bounced",
	DispatchStatusFailed:  "failed",
}

func (s DispatchStatus) String() string {
	return DispatchStatuses[s]
}

// IsTerminal reports whether the record can no longer change state.
func (s DispatchStatus) IsTerminal() bool {
	return s == DispatchStatusSent || s == DispatchStatusBounced || s == DispatchStatusFailed
}

// DispatchRecord is one attempt, with retries, to deliver content to one recipient.
// At most one non-terminal record may exist per (campaign, recipient, day).
type DispatchRecord struct {
	ID              *uint64        `json:"id,omitempty"`
	CampaignID      *uint64        `json:"campaign_id,omitempty"`
	Recipient       *string        `json:"recipient,omitempty"`
	ChannelID       *uint64        `json:"channel_id,omitempty"`
	VariantID       *uint64        `json:"variant_id,omitempty"`
	Status          DispatchStatus `json:"status,omitempty"`
	AttemptCount    *uint32        `json:"attempt_count,omitempty"`
	LastAttemptTime *uint64        `json:"last_attempt_time,omitempty"`
	TrackingID      *string        `json:"tracking_id,omitempty"`
	Day             *uint64        `json:"day,omitempty"`
	CreateTime      *uint64        `json:"create_time,omitempty"`
	UpdateTime      *uint64        `json:"update_time,omitempty"`
}

func (e *DispatchRecord) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *DispatchRecord) GetCampaignID() uint64 {
	if e != nil && e.CampaignID != nil {
		return *e.CampaignID
	}
	return 0
}

func (e *DispatchRecord) GetRecipient() string {
	if e != nil && e.Recipient != nil {
		return *e.Recipient
	}
	return ""
}

func (e *DispatchRecord) GetChannelID() uint64 {
	if e != nil && e.ChannelID != nil {
		return *e.ChannelID
	}
	return 0
}

func (e *DispatchRecord) GetVariantID() uint64 {
	if e != nil && e.VariantID != nil {
		return *e.VariantID
	}
	return 0
}

func (e *DispatchRecord) GetStatus() DispatchStatus {
	if e != nil {
		return e.Status
	}
	return DispatchStatusUnknown
}

func (e *DispatchRecord) GetAttemptCount() uint32 {
	if e != nil && e.AttemptCount != nil {
		return *e.AttemptCount
	}
	return 0
}

func (e *DispatchRecord) GetTrackingID() string {
	if e != nil && e.TrackingID != nil {
		return *e.TrackingID
	}
	return ""
}

func (e *DispatchRecord) GetDay() uint64 {
	if e != nil && e.Day != nil {
		return *e.Day
	}
	return 0
}

// Update merges non-nil fields of the delta into the record.
func (e *DispatchRecord) Update(delta *DispatchRecord) {
	if delta.Status != DispatchStatusUnknown {
		e.Status = delta.Status
	}
	if delta.ChannelID != nil {
		e.ChannelID = delta.ChannelID
	}
	if delta.AttemptCount != nil {
		e.AttemptCount = delta.AttemptCount
	}
	if delta.LastAttemptTime != nil {
		e.LastAttemptTime = delta.LastAttemptTime
	}
	if delta.TrackingID != nil {
		e.TrackingID = delta.TrackingID
	}
	if delta.UpdateTime != nil {
		e.UpdateTime = delta.UpdateTime
	}
}
