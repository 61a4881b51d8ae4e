package entity

type Trend uint32

const (
	TrendUnknown Trend = iota
	TrendImproving
	TrendStable
	TrendDeclining
)

var Trends = map[Trend]string{
	TrendImproving: "improving",
	TrendStable:    "stable",
	TrendDeclining: "declining",
}

func (t Trend) String() string {
	return Trends[t]
}

// PerformanceSnapshot aggregates a campaign's rates for one day. SmoothedRate is an
// exponentially weighted moving average over the daily conversion rate.
type PerformanceSnapshot struct {
	ID              *uint64  `json:"id,omitempty"`
	CampaignID      *uint64  `json:"campaign_id,omitempty"`
	Day             *uint64  `json:"day,omitempty"`
	SendCount       *uint64  `json:"send_count,omitempty"`
	OpenCount       *uint64  `json:"open_count,omitempty"`
	ClickCount      *uint64  `json:"click_count,omitempty"`
	ConversionCount *uint64  `json:"conversion_count,omitempty"`
	OpenRate        *float64 `json:"open_rate,omitempty"`
	ClickRate       *float64 `json:"click_rate,omitempty"`
	ConversionRate  *float64 `json:"conversion_rate,omitempty"`
	SmoothedRate    *float64 `json:"smoothed_rate,omitempty"`
	UpdateTime      *uint64  `json:"update_time,omitempty"`
}

func (e *PerformanceSnapshot) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *PerformanceSnapshot) GetCampaignID() uint64 {
	if e != nil && e.CampaignID != nil {
		return *e.CampaignID
	}
	return 0
}

func (e *PerformanceSnapshot) GetDay() uint64 {
	if e != nil && e.Day != nil {
		return *e.Day
	}
	return 0
}

func (e *PerformanceSnapshot) GetSendCount() uint64 {
	if e != nil && e.SendCount != nil {
		return *e.SendCount
	}
	return 0
}

func (e *PerformanceSnapshot) GetOpenCount() uint64 {
	if e != nil && e.OpenCount != nil {
		return *e.OpenCount
	}
	return 0
}

func (e *PerformanceSnapshot) GetClickCount() uint64 {
	if e != nil && e.ClickCount != nil {
		return *e.ClickCount
	}
	return 0
}

func (e *PerformanceSnapshot) GetConversionCount() uint64 {
	if e != nil && e.ConversionCount != nil {
		return *e.ConversionCount
	}
	return 0
}

func (e *PerformanceSnapshot) GetOpenRate() float64 {
	if e != nil && e.OpenRate != nil {
		return *e.OpenRate
	}
	return 0
}

func (e *PerformanceSnapshot) GetClickRate() float64 {
	if e != nil && e.ClickRate != nil {
		return *e.ClickRate
	}
	return 0
}

func (e *PerformanceSnapshot) GetConversionRate() float64 {
	if e != nil && e.ConversionRate != nil {
		return *e.ConversionRate
	}
	return 0
}

func (e *PerformanceSnapshot) GetSmoothedRate() float64 {
	if e != nil && e.SmoothedRate != nil {
		return *e.SmoothedRate
	}
	return 0
}
