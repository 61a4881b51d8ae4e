package entity

type CampaignStage uint32

const (
	CampaignStageUnknown CampaignStage = iota
	CampaignStageDraft
	CampaignStageDiscovering
	CampaignStageComplianceChecking
	CampaignStageContentReady
	CampaignStageDispatching
	CampaignStageTracking
	CampaignStageCompleted
	CampaignStageFailed
	CampaignStagePaused
)

var CampaignStages = map[CampaignStage]string{
	CampaignStageDraft:              "draft",
	CampaignStageDiscovering:        "discovering",
	CampaignStageComplianceChecking: "compliance_checking",
	CampaignStageContentReady:       "content_ready",
	CampaignStageDispatching:        "dispatching",
	CampaignStageTracking:           "tracking",
	CampaignStageCompleted:          "completed",
	CampaignStageFailed:             "failed",
	CampaignStagePaused:             "paused",
}

// stage transitions are monotonic forward, except pause and resume
var nextStages = map[CampaignStage][]CampaignStage{
	CampaignStageDraft:              {CampaignStageDiscovering, CampaignStageFailed, CampaignStagePaused},
	CampaignStageDiscovering:        {CampaignStageComplianceChecking, CampaignStageFailed, CampaignStagePaused},
	CampaignStageComplianceChecking: {CampaignStageContentReady, CampaignStageFailed, CampaignStagePaused},
	CampaignStageContentReady:       {CampaignStageDispatching, CampaignStageFailed, CampaignStagePaused},
	CampaignStageDispatching:        {CampaignStageTracking, CampaignStageFailed, CampaignStagePaused},
	CampaignStageTracking: {
		CampaignStageDiscovering, // next batch
		CampaignStageCompleted,
		CampaignStageFailed,
		CampaignStagePaused,
	},
}

func (s CampaignStage) String() string {
	return CampaignStages[s]
}

// IsTerminal reports whether no further stage transition is allowed.
func (s CampaignStage) IsTerminal() bool {
	return s == CampaignStageCompleted || s == CampaignStageFailed
}

func (s CampaignStage) CanTransition(to CampaignStage) bool {
	for _, next := range nextStages[s] {
		if next == to {
			return true
		}
	}
	return false
}

// StageStats tracks per-stage error and skip counts for audit.
type StageStats struct {
	Errors *uint64 `json:"errors,omitempty"`
	Skips  *uint64 `json:"skips,omitempty"`
}

func (s *StageStats) GetErrors() uint64 {
	if s != nil && s.Errors != nil {
		return *s.Errors
	}
	return 0
}

func (s *StageStats) GetSkips() uint64 {
	if s != nil && s.Skips != nil {
		return *s.Skips
	}
	return 0
}

type Campaign struct {
	ID              *uint64                `json:"id,omitempty"`
	Name            *string                `json:"name,omitempty"`
	CampaignDesc    *string                `json:"campaign_desc,omitempty"`
	Criteria        *TargetingCriteria     `json:"criteria,omitempty"`
	Purpose         *string                `json:"purpose,omitempty"`
	TemplateID      *string                `json:"template_id,omitempty"`
	DailyQuota      *uint64                `json:"daily_quota,omitempty"`
	Stage           CampaignStage          `json:"stage,omitempty"`
	PausedStage     CampaignStage          `json:"paused_stage,omitempty"`
	StageStats      map[string]*StageStats `json:"stage_stats,omitempty"`
	Progress        *uint64                `json:"progress,omitempty"`
	DiscoveryCursor *string                `json:"discovery_cursor,omitempty"`
	CreateTime      *uint64                `json:"create_time,omitempty"`
	StartTime       *uint64                `json:"start_time,omitempty"`
	CompleteTime    *uint64                `json:"complete_time,omitempty"`
	UpdateTime      *uint64                `json:"update_time,omitempty"`
}

type TargetingCriteria struct {
	Industries []string `json:"industries,omitempty"`
	Sizes      []string `json:"sizes,omitempty"`
	Roles      []string `json:"roles,omitempty"`
}

func (e *Campaign) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *Campaign) GetName() string {
	if e != nil && e.Name != nil {
		return *e.Name
	}
	return ""
}

func (e *Campaign) GetPurpose() string {
	if e != nil && e.Purpose != nil {
		return *e.Purpose
	}
	return ""
}

func (e *Campaign) GetTemplateID() string {
	if e != nil && e.TemplateID != nil {
		return *e.TemplateID
	}
	return ""
}

func (e *Campaign) GetDailyQuota() uint64 {
	if e != nil && e.DailyQuota != nil {
		return *e.DailyQuota
	}
	return 0
}

func (e *Campaign) GetStage() CampaignStage {
	if e != nil {
		return e.Stage
	}
	return CampaignStageUnknown
}

func (e *Campaign) GetPausedStage() CampaignStage {
	if e != nil {
		return e.PausedStage
	}
	return CampaignStageUnknown
}

func (e *Campaign) GetProgress() uint64 {
	if e != nil && e.Progress != nil {
		return *e.Progress
	}
	return 0
}

func (e *Campaign) GetDiscoveryCursor() string {
	if e != nil && e.DiscoveryCursor != nil {
		return *e.DiscoveryCursor
	}
	return ""
}

func (e *Campaign) GetCriteria() *TargetingCriteria {
	if e != nil {
		return e.Criteria
	}
	return nil
}

func (e *Campaign) GetStageStats() map[string]*StageStats {
	if e != nil && e.StageStats != nil {
		return e.StageStats
	}
	return nil
}

func (e *Campaign) IsPaused() bool {
	return e.GetStage() == CampaignStagePaused
}

func (e *Campaign) IsRunnable() bool {
	stage := e.GetStage()
	return !stage.IsTerminal() && stage != CampaignStagePaused && stage != CampaignStageUnknown
}

// AddStageStat bumps the error or skip counter of a stage.
func (e *Campaign) AddStageStat(stage CampaignStage, errs, skips uint64) {
	if e.StageStats == nil {
		e.StageStats = make(map[string]*StageStats)
	}

	stats, ok := e.StageStats[stage.String()]
	if !ok {
		stats = new(StageStats)
		e.StageStats[stage.String()] = stats
	}

	newErrs := stats.GetErrors() + errs
	newSkips := stats.GetSkips() + skips
	stats.Errors = &newErrs
	stats.Skips = &newSkips
}

// Update merges non-nil fields of the delta into the campaign.
func (e *Campaign) Update(delta *Campaign) {
	if delta.Name != nil {
		e.Name = delta.Name
	}
	if delta.CampaignDesc != nil {
		e.CampaignDesc = delta.CampaignDesc
	}
	if delta.Stage != CampaignStageUnknown {
		e.Stage = delta.Stage
	}
	if delta.PausedStage != CampaignStageUnknown {
		e.PausedStage = delta.PausedStage
	}
	if delta.Progress != nil {
		e.Progress = delta.Progress
	}
	if delta.DiscoveryCursor != nil {
		e.DiscoveryCursor = delta.DiscoveryCursor
	}
	if delta.StageStats != nil {
		e.StageStats = delta.StageStats
	}
	if delta.StartTime != nil {
		e.StartTime = delta.StartTime
	}
	if delta.CompleteTime != nil {
		e.CompleteTime = delta.CompleteTime
	}
	if delta.UpdateTime != nil {
		e.UpdateTime = delta.UpdateTime
	}
}
