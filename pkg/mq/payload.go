package mq

type Payload uint32

const (
	PayloadUnknown Payload = iota
	PayloadEmailOpened
	PayloadEmailClicked
	PayloadDispatchOutcome
)

var Payloads = map[Payload]string{
	PayloadEmailOpened:     "email_opened",
	PayloadEmailClicked:    "email_clicked",
	PayloadDispatchOutcome: "dispatch_outcome",
}

type EmailOpened struct {
	TrackingID *string `json:"tracking_id,omitempty"`
	EventTime  *uint64 `json:"event_time,omitempty"`
}

func (m *EmailOpened) GetTrackingID() string {
	if m != nil && m.TrackingID != nil {
		return *m.TrackingID
	}
	return ""
}

func (m *EmailOpened) GetEventTime() uint64 {
	if m != nil && m.EventTime != nil {
		return *m.EventTime
	}
	return 0
}

type EmailClicked struct {
	TrackingID *string `json:"tracking_id,omitempty"`
	Url        *string `json:"url,omitempty"`
	EventTime  *uint64 `json:"event_time,omitempty"`
}

func (m *EmailClicked) GetTrackingID() string {
	if m != nil && m.TrackingID != nil {
		return *m.TrackingID
	}
	return ""
}

func (m *EmailClicked) GetUrl() string {
	if m != nil && m.Url != nil {
		return *m.Url
	}
	return ""
}

func (m *EmailClicked) GetEventTime() uint64 {
	if m != nil && m.EventTime != nil {
		return *m.EventTime
	}
	return 0
}

type DispatchOutcome struct {
	DispatchRecordID *uint64 `json:"dispatch_record_id,omitempty"`
	CampaignID       *uint64 `json:"campaign_id,omitempty"`
	TrackingID       *string `json:"tracking_id,omitempty"`
	Status           *uint32 `json:"status,omitempty"`
	EventTime        *uint64 `json:"event_time,omitempty"`
}

func (m *DispatchOutcome) GetDispatchRecordID() uint64 {
	if m != nil && m.DispatchRecordID != nil {
		return *m.DispatchRecordID
	}
	return 0
}

func (m *DispatchOutcome) GetCampaignID() uint64 {
	if m != nil && m.CampaignID != nil {
		return *m.CampaignID
	}
	return 0
}

func (m *DispatchOutcome) GetTrackingID() string {
	if m != nil && m.TrackingID != nil {
		return *m.TrackingID
	}
	return ""
}

func (m *DispatchOutcome) GetStatus() uint32 {
	if m != nil && m.Status != nil {
		return *m.Status
	}
	return 0
}
