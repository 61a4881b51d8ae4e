package repo

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"outreach/config"
	"outreach/entity"
	"outreach/pkg/goutil"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
)

type Campaign struct {
	ID              *uint64
	Name            *string
	CampaignDesc    *string
	Criteria        *string
	Purpose         *string
	TemplateID      *string
	DailyQuota      *uint64
	Stage           *uint32
	PausedStage     *uint32
	StageStats      *string
	Progress        *uint64
	DiscoveryCursor *string
	CreateTime      *uint64
	StartTime       *uint64
	CompleteTime    *uint64
	UpdateTime      *uint64
}

func (m *Campaign) TableName() string {
	return "campaign_tab"
}

func (m *Campaign) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

func (m *Campaign) GetCriteria() string {
	if m != nil && m.Criteria != nil {
		return *m.Criteria
	}
	return ""
}

func (m *Campaign) GetStageStats() string {
	if m != nil && m.StageStats != nil {
		return *m.StageStats
	}
	return ""
}

type CampaignFilter struct {
	ID         *uint64
	Stage      *uint32
	StageIn    []uint32
	Pagination *Pagination
}

type CampaignRepo interface {
	Create(ctx context.Context, campaign *entity.Campaign) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*entity.Campaign, error)
	GetMany(ctx context.Context, f *CampaignFilter) ([]*entity.Campaign, *Pagination, error)
	GetRunnable(ctx context.Context) ([]*entity.Campaign, error)
	Update(ctx context.Context, campaign *entity.Campaign) error
}

type campaignRepo struct {
	baseRepo BaseRepo
}

func NewCampaignRepo(_ context.Context, baseRepo BaseRepo) CampaignRepo {
	return &campaignRepo{baseRepo: baseRepo}
}

func (r *campaignRepo) Create(ctx context.Context, campaign *entity.Campaign) (uint64, error) {
	campaignModel, err := ToCampaignModel(campaign)
	if err != nil {
		return 0, err
	}

	if err := r.baseRepo.Create(ctx, campaignModel); err != nil {
		return 0, err
	}

	campaign.ID = campaignModel.ID

	return campaignModel.GetID(), nil
}

func (r *campaignRepo) GetByID(ctx context.Context, id uint64) (*entity.Campaign, error) {
	campaignModel := new(Campaign)
	if err := r.baseRepo.Get(ctx, campaignModel, &Filter{
		Conditions: []*Condition{
			{Field: "id", Op: OpEq, Value: goutil.Uint64(id)},
		},
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}

	return ToCampaign(campaignModel)
}

func (r *campaignRepo) GetMany(ctx context.Context, f *CampaignFilter) ([]*entity.Campaign, *Pagination, error) {
	conditions := make([]*Condition, 0)
	if f.ID != nil {
		conditions = append(conditions, &Condition{Field: "id", Op: OpEq, Value: f.ID, NextLogicalOp: And})
	}
	if f.Stage != nil {
		conditions = append(conditions, &Condition{Field: "stage", Op: OpEq, Value: f.Stage, NextLogicalOp: And})
	}
	if len(f.StageIn) > 0 {
		conditions = append(conditions, &Condition{Field: "stage", Op: OpIn, Value: f.StageIn, NextLogicalOp: And})
	}

	res, pagination, err := r.baseRepo.GetMany(ctx, new(Campaign), &Filter{
		Conditions: conditions,
		Pagination: f.Pagination,
	})
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]*entity.Campaign, 0, len(res))
	for _, m := range res {
		campaign, err := ToCampaign(m.(*Campaign))
		if err != nil {
			return nil, nil, err
		}
		campaigns = append(campaigns, campaign)
	}

	return campaigns, pagination, nil
}

func (r *campaignRepo) GetRunnable(ctx context.Context) ([]*entity.Campaign, error) {
	stages := []uint32{
		uint32(entity.CampaignStageDraft),
		uint32(entity.CampaignStageDiscovering),
		uint32(entity.CampaignStageComplianceChecking),
		uint32(entity.CampaignStageContentReady),
		uint32(entity.CampaignStageDispatching),
		uint32(entity.CampaignStageTracking),
	}

	campaigns, _, err := r.GetMany(ctx, &CampaignFilter{StageIn: stages})
	return campaigns, err
}

func (r *campaignRepo) Update(ctx context.Context, campaign *entity.Campaign) error {
	campaignModel, err := ToCampaignModel(campaign)
	if err != nil {
		return err
	}
	return r.baseRepo.Update(ctx, campaignModel)
}

func ToCampaign(m *Campaign) (*entity.Campaign, error) {
	var criteria *entity.TargetingCriteria
	if m.GetCriteria() != "" {
		criteria = new(entity.TargetingCriteria)
		if err := json.Unmarshal([]byte(m.GetCriteria()), criteria); err != nil {
			return nil, err
		}
	}

	stageStats := make(map[string]*entity.StageStats)
	if m.GetStageStats() != "" {
		if err := json.Unmarshal([]byte(m.GetStageStats()), &stageStats); err != nil {
			return nil, err
		}
	}

	campaign := &entity.Campaign{
		ID:              m.ID,
		Name:            m.Name,
		CampaignDesc:    m.CampaignDesc,
		Criteria:        criteria,
		Purpose:         m.Purpose,
		TemplateID:      m.TemplateID,
		DailyQuota:      m.DailyQuota,
		StageStats:      stageStats,
		Progress:        m.Progress,
		DiscoveryCursor: m.DiscoveryCursor,
		CreateTime:      m.CreateTime,
		StartTime:       m.StartTime,
		CompleteTime:    m.CompleteTime,
		UpdateTime:      m.UpdateTime,
	}
	if m.Stage != nil {
		campaign.Stage = entity.CampaignStage(*m.Stage)
	}
	if m.PausedStage != nil {
		campaign.PausedStage = entity.CampaignStage(*m.PausedStage)
	}

	return campaign, nil
}

func ToCampaignModel(campaign *entity.Campaign) (*Campaign, error) {
	criteria := config.EmptyJson
	if campaign.Criteria != nil {
		var err error
		criteria, err = json.Marshal(campaign.Criteria)
		if err != nil {
			return nil, err
		}
	}

	stageStats := config.EmptyJson
	if campaign.StageStats != nil {
		var err error
		stageStats, err = json.Marshal(campaign.StageStats)
		if err != nil {
			return nil, err
		}
	}

	return &Campaign{
		ID:              campaign.ID,
		Name:            campaign.Name,
		CampaignDesc:    campaign.CampaignDesc,
		Criteria:        goutil.String(string(criteria)),
		Purpose:         campaign.Purpose,
		TemplateID:      campaign.TemplateID,
		DailyQuota:      campaign.DailyQuota,
		Stage:           goutil.Uint32(uint32(campaign.Stage)),
		PausedStage:     goutil.Uint32(uint32(campaign.PausedStage)),
		StageStats:      goutil.String(string(stageStats)),
		Progress:        campaign.Progress,
		DiscoveryCursor: campaign.DiscoveryCursor,
		CreateTime:      campaign.CreateTime,
		StartTime:       campaign.StartTime,
		CompleteTime:    campaign.CompleteTime,
		UpdateTime:      campaign.UpdateTime,
	}, nil
}
