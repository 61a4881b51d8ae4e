package handler

import (
	"context"
	"errors"
	"time"

	"outreach/entity"
	"outreach/pkg/errutil"
	"outreach/pkg/goutil"
	"outreach/pkg/validator"
	"outreach/repo"
)

var (
	ErrCampaignNotPausable = errors.New("campaign cannot be paused")
	ErrCampaignNotPaused   = errors.New("campaign is not paused")
	ErrInvalidResumeStage  = errors.New("campaign has no stage to resume to")
)

// CampaignHandler is the management surface of the pipeline: lifecycle
// operations plus read models for performance and skip audit.
type CampaignHandler interface {
	CreateCampaign(ctx context.Context, req *CreateCampaignRequest, res *CreateCampaignResponse) error
	GetCampaign(ctx context.Context, req *GetCampaignRequest, res *GetCampaignResponse) error
	GetCampaigns(ctx context.Context, req *GetCampaignsRequest, res *GetCampaignsResponse) error
	PauseCampaign(ctx context.Context, req *PauseCampaignRequest, res *PauseCampaignResponse) error
	ResumeCampaign(ctx context.Context, req *ResumeCampaignRequest, res *ResumeCampaignResponse) error
	GetPerformanceSnapshot(ctx context.Context, req *GetPerformanceSnapshotRequest, res *GetPerformanceSnapshotResponse) error
	GetSkippedContacts(ctx context.Context, req *GetSkippedContactsRequest, res *GetSkippedContactsResponse) error
}

type campaignHandler struct {
	txService          repo.TxService
	campaignRepo       repo.CampaignRepo
	variantRepo        repo.VariantRepo
	snapshotRepo       repo.SnapshotRepo
	skippedContactRepo repo.SkippedContactRepo
	tracker            TrackerHandler
}

func NewCampaignHandler(
	txService repo.TxService,
	campaignRepo repo.CampaignRepo,
	variantRepo repo.VariantRepo,
	snapshotRepo repo.SnapshotRepo,
	skippedContactRepo repo.SkippedContactRepo,
	tracker TrackerHandler,
) CampaignHandler {
	return &campaignHandler{
		txService:          txService,
		campaignRepo:       campaignRepo,
		variantRepo:        variantRepo,
		snapshotRepo:       snapshotRepo,
		skippedContactRepo: skippedContactRepo,
		tracker:            tracker,
	}
}

type CreateVariantRequest struct {
	UrlTemplate   *string           `json:"url_template,omitempty"`
	TrackedParams map[string]string `json:"tracked_params,omitempty"`
}

type CreateCampaignRequest struct {
	Name         *string                   `json:"name,omitempty"`
	CampaignDesc *string                   `json:"campaign_desc,omitempty"`
	Criteria     *entity.TargetingCriteria `json:"criteria,omitempty"`
	Purpose      *string                   `json:"purpose,omitempty"`
	TemplateID   *string                   `json:"template_id,omitempty"`
	DailyQuota   *uint64                   `json:"daily_quota,omitempty"`
	Variants     []*CreateVariantRequest   `json:"variants,omitempty"`
}

func (r *CreateCampaignRequest) ToCampaign() *entity.Campaign {
	now := uint64(time.Now().Unix())
	return &entity.Campaign{
		Name:         r.Name,
		CampaignDesc: r.CampaignDesc,
		Criteria:     r.Criteria,
		Purpose:      r.Purpose,
		TemplateID:   r.TemplateID,
		DailyQuota:   r.DailyQuota,
		Stage:        entity.CampaignStageDraft,
		StageStats:   make(map[string]*entity.StageStats),
		Progress:     goutil.Uint64(0),
		CreateTime:   goutil.Uint64(now),
		UpdateTime:   goutil.Uint64(now),
	}
}

type CreateCampaignResponse struct {
	Campaign *entity.Campaign `json:"campaign,omitempty"`
}

var CreateCampaignValidator = validator.MustForm(map[string]validator.Validator{
	"name": &validator.String{
		UnsetZero: true,
		MaxLen:    120,
	},
	"campaign_desc": &validator.String{
		Optional: true,
		MaxLen:   500,
	},
	"purpose": &validator.String{
		UnsetZero: true,
		MaxLen:    60,
	},
	"template_id": &validator.String{
		UnsetZero: true,
	},
	"daily_quota": &validator.UInt64{
		Min: goutil.Uint64(1),
	},
	"variants": &validator.Slice{
		MinLen: 1,
	},
})

func (h *campaignHandler) CreateCampaign(ctx context.Context, req *CreateCampaignRequest, res *CreateCampaignResponse) error {
	if err := CreateCampaignValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	campaign := req.ToCampaign()

	// campaign and its variants are created together or not at all
	if err := h.txService.RunTx(ctx, func(txCtx context.Context) error {
		if _, err := h.campaignRepo.Create(txCtx, campaign); err != nil {
			return err
		}

		for _, v := range req.Variants {
			variant := &entity.AffiliateVariant{
				CampaignID:      campaign.ID,
				UrlTemplate:     v.UrlTemplate,
				TrackedParams:   v.TrackedParams,
				ClickCount:      goutil.Uint64(0),
				ConversionCount: goutil.Uint64(0),
			}
			if _, err := h.variantRepo.Create(txCtx, variant); err != nil {
				return err
			}
		}

		return nil
	}); err != nil {
		return err
	}

	res.Campaign = campaign

	return nil
}

type GetCampaignRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty" schema:"campaign_id"`
}

func (r *GetCampaignRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type GetCampaignResponse struct {
	Campaign *entity.Campaign           `json:"campaign,omitempty"`
	Variants []*entity.AffiliateVariant `json:"variants,omitempty"`
}

var GetCampaignValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": &validator.UInt64{},
})

func (h *campaignHandler) GetCampaign(ctx context.Context, req *GetCampaignRequest, res *GetCampaignResponse) error {
	if err := GetCampaignValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	campaign, err := h.campaignRepo.GetByID(ctx, req.GetCampaignID())
	if err != nil {
		if errors.Is(err, repo.ErrCampaignNotFound) {
			return errutil.NotFoundError(err)
		}
		return err
	}

	variants, err := h.variantRepo.GetByCampaign(ctx, campaign.GetID())
	if err != nil {
		return err
	}

	res.Campaign = campaign
	res.Variants = variants

	return nil
}

type GetCampaignsRequest struct {
	Stage      *uint32          `json:"stage,omitempty" schema:"stage"`
	Pagination *repo.Pagination `json:"pagination,omitempty"`
}

type GetCampaignsResponse struct {
	Campaigns  []*entity.Campaign `json:"campaigns,omitempty"`
	Pagination *repo.Pagination   `json:"pagination,omitempty"`
}

func (h *campaignHandler) GetCampaigns(ctx context.Context, req *GetCampaignsRequest, res *GetCampaignsResponse) error {
	campaigns, pagination, err := h.campaignRepo.GetMany(ctx, &repo.CampaignFilter{
		Stage:      req.Stage,
		Pagination: req.Pagination,
	})
	if err != nil {
		return err
	}

	res.Campaigns = campaigns
	res.Pagination = pagination

	return nil
}

type PauseCampaignRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty" schema:"campaign_id"`
}

func (r *PauseCampaignRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type PauseCampaignResponse struct {
	Campaign *entity.Campaign `json:"campaign,omitempty"`
}

var PauseCampaignValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": &validator.UInt64{},
})

// PauseCampaign stops the orchestrator from advancing the campaign. Dispatches
// already in flight run to completion; only new stage work is held.
func (h *campaignHandler) PauseCampaign(ctx context.Context, req *PauseCampaignRequest, res *PauseCampaignResponse) error {
	if err := PauseCampaignValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	campaign, err := h.campaignRepo.GetByID(ctx, req.GetCampaignID())
	if err != nil {
		if errors.Is(err, repo.ErrCampaignNotFound) {
			return errutil.NotFoundError(err)
		}
		return err
	}

	if campaign.IsPaused() {
		res.Campaign = campaign
		return nil
	}

	if !campaign.GetStage().CanTransition(entity.CampaignStagePaused) {
		return errutil.BadRequestError(ErrCampaignNotPausable)
	}

	campaign.Update(&entity.Campaign{
		Stage:       entity.CampaignStagePaused,
		PausedStage: campaign.GetStage(),
		UpdateTime:  goutil.Uint64(uint64(time.Now().Unix())),
	})
	if err := h.campaignRepo.Update(ctx, campaign); err != nil {
		return err
	}

	res.Campaign = campaign

	return nil
}

type ResumeCampaignRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty" schema:"campaign_id"`
}

func (r *ResumeCampaignRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type ResumeCampaignResponse struct {
	Campaign *entity.Campaign `json:"campaign,omitempty"`
}

var ResumeCampaignValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": &validator.UInt64{},
})

// ResumeCampaign restores the stage the campaign was paused in, so work picks
// up exactly where it stopped.
func (h *campaignHandler) ResumeCampaign(ctx context.Context, req *ResumeCampaignRequest, res *ResumeCampaignResponse) error {
	if err := ResumeCampaignValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	campaign, err := h.campaignRepo.GetByID(ctx, req.GetCampaignID())
	if err != nil {
		if errors.Is(err, repo.ErrCampaignNotFound) {
			return errutil.NotFoundError(err)
		}
		return err
	}

	if !campaign.IsPaused() {
		return errutil.BadRequestError(ErrCampaignNotPaused)
	}

	if campaign.GetPausedStage() == entity.CampaignStageUnknown {
		return errutil.BadRequestError(ErrInvalidResumeStage)
	}

	campaign.Update(&entity.Campaign{
		Stage:      campaign.GetPausedStage(),
		UpdateTime: goutil.Uint64(uint64(time.Now().Unix())),
	})
	if err := h.campaignRepo.Update(ctx, campaign); err != nil {
		return err
	}

	res.Campaign = campaign

	return nil
}

type GetPerformanceSnapshotRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty" schema:"campaign_id"`
}

func (r *GetPerformanceSnapshotRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type GetPerformanceSnapshotResponse struct {
	Snapshot *entity.PerformanceSnapshot `json:"snapshot,omitempty"`
	Trend    *string                     `json:"trend,omitempty"`
}

var GetPerformanceSnapshotValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": &validator.UInt64{},
})

func (h *campaignHandler) GetPerformanceSnapshot(ctx context.Context, req *GetPerformanceSnapshotRequest, res *GetPerformanceSnapshotResponse) error {
	if err := GetPerformanceSnapshotValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	snapshot, err := h.snapshotRepo.GetLatest(ctx, req.GetCampaignID())
	if err != nil {
		if errors.Is(err, repo.ErrSnapshotNotFound) {
			return errutil.NotFoundError(err)
		}
		return err
	}

	trend, err := h.tracker.GetTrend(ctx, req.GetCampaignID())
	if err != nil {
		return err
	}

	res.Snapshot = snapshot
	res.Trend = goutil.String(trend.String())

	return nil
}

type GetSkippedContactsRequest struct {
	CampaignID *uint64          `json:"campaign_id,omitempty" schema:"campaign_id"`
	Pagination *repo.Pagination `json:"pagination,omitempty"`
}

func (r *GetSkippedContactsRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type GetSkippedContactsResponse struct {
	SkippedContacts []*entity.SkippedContact `json:"skipped_contacts,omitempty"`
	Pagination      *repo.Pagination         `json:"pagination,omitempty"`
}

var GetSkippedContactsValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": &validator.UInt64{},
})

func (h *campaignHandler) GetSkippedContacts(ctx context.Context, req *GetSkippedContactsRequest, res *GetSkippedContactsResponse) error {
	if err := GetSkippedContactsValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	skipped, pagination, err := h.skippedContactRepo.GetMany(ctx, &repo.SkippedContactFilter{
		CampaignID: req.CampaignID,
		Pagination: req.Pagination,
	})
	if err != nil {
		return err
	}

	res.SkippedContacts = skipped
	res.Pagination = pagination

	return nil
}
