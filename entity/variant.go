package entity

import (
	"net/url"
	"strings"
)

// AffiliateVariant is one trackable URL form of an affiliate link. Click and
// conversion counts are monotonic, updated only by atomic increments.
type AffiliateVariant struct {
	ID              *uint64           `json:"id,omitempty"`
	CampaignID      *uint64           `json:"campaign_id,omitempty"`
	UrlTemplate     *string           `json:"url_template,omitempty"`
	TrackedParams   map[string]string `json:"tracked_params,omitempty"`
	ClickCount      *uint64           `json:"click_count,omitempty"`
	ConversionCount *uint64           `json:"conversion_count,omitempty"`
}

func (e *AffiliateVariant) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *AffiliateVariant) GetCampaignID() uint64 {
	if e != nil && e.CampaignID != nil {
		return *e.CampaignID
	}
	return 0
}

func (e *AffiliateVariant) GetUrlTemplate() string {
	if e != nil && e.UrlTemplate != nil {
		return *e.UrlTemplate
	}
	return ""
}

func (e *AffiliateVariant) GetTrackedParams() map[string]string {
	if e != nil && e.TrackedParams != nil {
		return e.TrackedParams
	}
	return nil
}

func (e *AffiliateVariant) GetClickCount() uint64 {
	if e != nil && e.ClickCount != nil {
		return *e.ClickCount
	}
	return 0
}

func (e *AffiliateVariant) GetConversionCount() uint64 {
	if e != nil && e.ConversionCount != nil {
		return *e.ConversionCount
	}
	return 0
}

func (e *AffiliateVariant) ConversionRate() float64 {
	clicks := e.GetClickCount()
	if clicks == 0 {
		return 0
	}
	return float64(e.GetConversionCount()) / float64(clicks)
}

// BuildTrackedURL expands the url template with the tracking id and appends the
// variant's tracked parameters.
func (e *AffiliateVariant) BuildTrackedURL(trackingID string) string {
	raw := strings.ReplaceAll(e.GetUrlTemplate(), "{tracking_id}", trackingID)

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	q := u.Query()
	for k, v := range e.GetTrackedParams() {
		q.Set(k, v)
	}
	q.Set("tid", trackingID)
	u.RawQuery = q.Encode()

	return u.String()
}
