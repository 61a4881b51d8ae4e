package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"outreach/config"
	"outreach/dep"
	"outreach/entity"
	"outreach/pkg/errutil"
	"outreach/pkg/goutil"
	"outreach/pkg/validator"
	"outreach/repo"
)

// Orchestrator drives a campaign through its stages. Each Advance call processes
// at most one discovery batch end to end; the stage and discovery cursor are
// persisted at every transition so a crash resumes from the last one written.
type Orchestrator interface {
	Advance(ctx context.Context, req *AdvanceRequest, res *AdvanceResponse) error
}

type orchestrator struct {
	cfg                *config.Config
	campaignRepo       repo.CampaignRepo
	variantRepo        repo.VariantRepo
	skippedContactRepo repo.SkippedContactRepo
	discoverySvc       dep.DiscoveryService
	contentSvc         dep.ContentService
	compliance         ComplianceHandler
	variantSelector    VariantSelector
	dispatcher         DispatchHandler
}

func NewOrchestrator(
	cfg *config.Config,
	campaignRepo repo.CampaignRepo,
	variantRepo repo.VariantRepo,
	skippedContactRepo repo.SkippedContactRepo,
	discoverySvc dep.DiscoveryService,
	contentSvc dep.ContentService,
	compliance ComplianceHandler,
	variantSelector VariantSelector,
	dispatcher DispatchHandler,
) Orchestrator {
	return &orchestrator{
		cfg:                cfg,
		campaignRepo:       campaignRepo,
		variantRepo:        variantRepo,
		skippedContactRepo: skippedContactRepo,
		discoverySvc:       discoverySvc,
		contentSvc:         contentSvc,
		compliance:         compliance,
		variantSelector:    variantSelector,
		dispatcher:         dispatcher,
	}
}

type AdvanceRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty" schema:"campaign_id"`
}

func (r *AdvanceRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type AdvanceResponse struct {
	Campaign *entity.Campaign `json:"campaign,omitempty"`
}

var AdvanceValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": &validator.UInt64{},
})

// prepared is one contact that has cleared compliance and has content ready.
type prepared struct {
	contact *entity.Contact
	variant *entity.AffiliateVariant
	content *dep.Content
}

func (o *orchestrator) Advance(ctx context.Context, req *AdvanceRequest, res *AdvanceResponse) error {
	if err := AdvanceValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	campaign, err := o.campaignRepo.GetByID(ctx, req.GetCampaignID())
	if err != nil {
		if errors.Is(err, repo.ErrCampaignNotFound) {
			return errutil.NotFoundError(err)
		}
		return err
	}

	res.Campaign = campaign

	if campaign.GetStage().IsTerminal() || campaign.IsPaused() {
		return nil
	}

	switch campaign.GetStage() {
	case entity.CampaignStageDraft:
		campaign.StartTime = goutil.Uint64(uint64(time.Now().Unix()))
		return o.transition(ctx, campaign, entity.CampaignStageDiscovering)
	case entity.CampaignStageTracking:
		return o.evaluateTracking(ctx, campaign)
	default:
		return o.runBatch(ctx, campaign)
	}
}

// runBatch runs one discovery batch through compliance, content and dispatch.
// A campaign resumed mid-batch restarts from discovery at the persisted cursor,
// which is only moved forward after the batch has been dispatched.
func (o *orchestrator) runBatch(ctx context.Context, campaign *entity.Campaign) error {
	if campaign.GetStage() != entity.CampaignStageDiscovering {
		// resumed mid-batch, restart the batch
		campaign.Stage = entity.CampaignStageDiscovering
		if err := o.saveCampaign(ctx, campaign); err != nil {
			return err
		}
	}

	contacts, nextCursor, err := o.discoverySvc.Discover(
		ctx, campaign.GetCriteria(), campaign.GetDiscoveryCursor(), o.cfg.Pipeline.DiscoveryBatchSize)
	if err != nil {
		return o.fail(ctx, campaign, err)
	}

	if len(contacts) == 0 {
		// contact supply exhausted, hold the campaign for operator review
		log.Ctx(ctx).Info().Msgf("no more contacts, pausing, campaign_id: %d", campaign.GetID())
		return o.pause(ctx, campaign, entity.CampaignStageDiscovering)
	}

	if err := o.transition(ctx, campaign, entity.CampaignStageComplianceChecking); err != nil {
		return err
	}
	eligible := o.filterEligible(ctx, campaign, contacts)

	if err := o.transition(ctx, campaign, entity.CampaignStageContentReady); err != nil {
		return err
	}
	preparedBatch := o.prepareContent(ctx, campaign, eligible)

	if err := o.transition(ctx, campaign, entity.CampaignStageDispatching); err != nil {
		return err
	}
	quotaHit, err := o.dispatchBatch(ctx, campaign, preparedBatch)
	if err != nil {
		return o.fail(ctx, campaign, err)
	}

	if quotaHit {
		// daily quota reached. The cursor stays put so the interrupted batch
		// replays in full on resume; the half already sent is deduplicated by
		// the unique dispatch key.
		return o.pause(ctx, campaign, entity.CampaignStageDispatching)
	}

	campaign.Update(&entity.Campaign{
		DiscoveryCursor: goutil.String(nextCursor),
		Progress:        goutil.Uint64(campaign.GetProgress() + uint64(len(contacts))),
	})

	return o.transition(ctx, campaign, entity.CampaignStageTracking)
}

// filterEligible drops contacts that fail the eligibility rules. A failed rule or
// a failed lookup skips the contact, never the campaign.
func (o *orchestrator) filterEligible(ctx context.Context, campaign *entity.Campaign, contacts []*entity.Contact) []*entity.Contact {
	eligible := make([]*entity.Contact, 0, len(contacts))

	for _, contact := range contacts {
		checkRes := new(CheckEligibilityResponse)
		if err := o.compliance.CheckEligibility(ctx, &CheckEligibilityRequest{
			Contact: contact,
			Purpose: campaign.Purpose,
		}, checkRes); err != nil {
			log.Ctx(ctx).Error().Msgf("eligibility check failed: %v, email: %s", err, contact.GetEmail())
			campaign.AddStageStat(entity.CampaignStageComplianceChecking, 1, 0)
			continue
		}

		if !checkRes.GetEligible() {
			o.skipContact(ctx, campaign, contact, entity.CampaignStageComplianceChecking, checkRes.GetReason())
			continue
		}

		eligible = append(eligible, contact)
	}

	return eligible
}

// prepareContent selects a variant and generates content for each eligible
// contact. The tracked URL carries a placeholder for the tracking id, filled in
// at dispatch time.
func (o *orchestrator) prepareContent(ctx context.Context, campaign *entity.Campaign, contacts []*entity.Contact) []*prepared {
	preparedBatch := make([]*prepared, 0, len(contacts))

	for _, contact := range contacts {
		selectRes := new(SelectVariantResponse)
		if err := o.variantSelector.SelectVariant(ctx, &SelectVariantRequest{
			CampaignID: campaign.ID,
		}, selectRes); err != nil {
			log.Ctx(ctx).Error().Msgf("variant selection failed: %v, campaign_id: %d", err, campaign.GetID())
			campaign.AddStageStat(entity.CampaignStageContentReady, 1, 0)
			continue
		}

		variant := selectRes.Variant
		trackedURL := variant.BuildTrackedURL(TrackingPlaceholder)

		content, err := o.contentSvc.Generate(ctx, contact, campaign.GetTemplateID(), trackedURL)
		if err != nil {
			if errutil.Is(err, errutil.CodeContentPolicy) {
				o.skipContact(ctx, campaign, contact, entity.CampaignStageContentReady, err.Error())
				continue
			}
			log.Ctx(ctx).Error().Msgf("content generation failed: %v, email: %s", err, contact.GetEmail())
			campaign.AddStageStat(entity.CampaignStageContentReady, 1, 0)
			continue
		}

		preparedBatch = append(preparedBatch, &prepared{
			contact: contact,
			variant: variant,
			content: content,
		})
	}

	return preparedBatch
}

// dispatchBatch fans out sends with bounded concurrency. Per-contact failures are
// counted and move on; hitting the daily quota stops the batch.
func (o *orchestrator) dispatchBatch(ctx context.Context, campaign *entity.Campaign, preparedBatch []*prepared) (bool, error) {
	var (
		mu       sync.Mutex
		quotaHit bool
	)

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, o.cfg.Pipeline.DispatchFanOut)

	for _, p := range preparedBatch {
		p := p

		mu.Lock()
		stop := quotaHit
		mu.Unlock()
		if stop {
			break
		}

		sem <- struct{}{}
		g.Go(func() error {
			defer func() {
				<-sem
			}()

			dispatchRes := new(DispatchResponse)
			err := o.dispatcher.Dispatch(gctx, &DispatchRequest{
				Campaign:    campaign,
				Recipient:   p.contact.Email,
				VariantID:   p.variant.ID,
				Subject:     goutil.String(p.content.Subject),
				HtmlContent: goutil.String(p.content.Body),
			}, dispatchRes)
			if err == nil {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()

			switch {
			case errutil.Is(err, errutil.CodeQuotaExceeded):
				quotaHit = true
			case errutil.Is(err, errutil.CodeConflict):
				// already dispatched today
				campaign.AddStageStat(entity.CampaignStageDispatching, 0, 1)
			default:
				log.Ctx(gctx).Error().Msgf("dispatch failed: %v, email: %s", err, p.contact.GetEmail())
				campaign.AddStageStat(entity.CampaignStageDispatching, 1, 0)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return false, err
	}

	return quotaHit, nil
}

// evaluateTracking decides whether a campaign is done or should run another batch.
func (o *orchestrator) evaluateTracking(ctx context.Context, campaign *entity.Campaign) error {
	variants, err := o.variantRepo.GetByCampaign(ctx, campaign.GetID())
	if err != nil {
		return err
	}

	var conversions uint64
	for _, variant := range variants {
		conversions += variant.GetConversionCount()
	}

	if conversions >= o.cfg.Pipeline.CompletionConversions {
		campaign.CompleteTime = goutil.Uint64(uint64(time.Now().Unix()))
		return o.transition(ctx, campaign, entity.CampaignStageCompleted)
	}

	if campaign.GetDiscoveryCursor() == "" && campaign.GetProgress() > 0 {
		// no contacts left to try
		return o.pause(ctx, campaign, entity.CampaignStageTracking)
	}

	return o.transition(ctx, campaign, entity.CampaignStageDiscovering)
}

func (o *orchestrator) skipContact(ctx context.Context, campaign *entity.Campaign, contact *entity.Contact, stage entity.CampaignStage, reason string) {
	campaign.AddStageStat(stage, 0, 1)

	if _, err := o.skippedContactRepo.Create(ctx, &entity.SkippedContact{
		CampaignID: campaign.ID,
		Email:      contact.Email,
		Stage:      stage,
		Reason:     goutil.String(reason),
		CreateTime: goutil.Uint64(uint64(time.Now().Unix())),
	}); err != nil {
		log.Ctx(ctx).Error().Msgf("record skipped contact failed: %v, email: %s", err, contact.GetEmail())
	}
}

func (o *orchestrator) transition(ctx context.Context, campaign *entity.Campaign, to entity.CampaignStage) error {
	if !campaign.GetStage().CanTransition(to) {
		return o.fail(ctx, campaign,
			errors.New("illegal stage transition: "+campaign.GetStage().String()+" -> "+to.String()))
	}

	campaign.Stage = to

	return o.saveCampaign(ctx, campaign)
}

func (o *orchestrator) pause(ctx context.Context, campaign *entity.Campaign, resumeStage entity.CampaignStage) error {
	campaign.Update(&entity.Campaign{
		Stage:       entity.CampaignStagePaused,
		PausedStage: resumeStage,
	})
	return o.saveCampaign(ctx, campaign)
}

func (o *orchestrator) fail(ctx context.Context, campaign *entity.Campaign, cause error) error {
	log.Ctx(ctx).Error().Msgf("campaign failed: %v, campaign_id: %d, stage: %s",
		cause, campaign.GetID(), campaign.GetStage().String())

	campaign.AddStageStat(campaign.GetStage(), 1, 0)
	campaign.Stage = entity.CampaignStageFailed

	if err := o.saveCampaign(ctx, campaign); err != nil {
		return err
	}

	return cause
}

func (o *orchestrator) saveCampaign(ctx context.Context, campaign *entity.Campaign) error {
	campaign.UpdateTime = goutil.Uint64(uint64(time.Now().Unix()))
	return o.campaignRepo.Update(ctx, campaign)
}
