package config

const (
	PathHealthCheck            = "/"
	PathCreateCampaign         = "/create_campaign"
	PathGetCampaign            = "/get_campaign"
	PathGetCampaigns           = "/get_campaigns"
	PathPauseCampaign          = "/pause_campaign"
	PathResumeCampaign         = "/resume_campaign"
	PathAdvanceCampaign        = "/advance_campaign"
	PathGetPerformanceSnapshot = "/get_performance_snapshot"
	PathGetSkippedContacts     = "/get_skipped_contacts"
	PathOnEmailOpen            = "/on_email_open"
	PathOnEmailClick           = "/on_email_click"
)

const (
	DefaultPort   = 9090
	LogLevelDebug = "DEBUG"
)

var (
	EmptyJson = []byte("{}")
)
