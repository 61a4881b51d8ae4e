package run_campaigns

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"outreach/config"
	"outreach/handler"
	"outreach/pkg/service"
	"outreach/repo"
)

// RunCampaigns advances every runnable campaign by one batch. Campaign failures
// are isolated; one bad campaign never blocks the rest of the sweep.
type RunCampaigns struct {
	cfg          *config.Config
	campaignRepo repo.CampaignRepo
	orchestrator handler.Orchestrator
}

func New(cfg *config.Config, campaignRepo repo.CampaignRepo, orchestrator handler.Orchestrator) service.Job {
	return &RunCampaigns{
		cfg:          cfg,
		campaignRepo: campaignRepo,
		orchestrator: orchestrator,
	}
}

func (h *RunCampaigns) Init(_ context.Context) error {
	return nil
}

func (h *RunCampaigns) Run(ctx context.Context) error {
	var (
		g  = new(errgroup.Group)
		c  = 10
		ch = make(chan struct{}, c)
	)

	campaigns, err := h.campaignRepo.GetRunnable(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get runnable campaigns failed: %v", err)
		return err
	}

	log.Ctx(ctx).Info().Msgf("number of campaigns to be advanced: %d", len(campaigns))

	for _, campaign := range campaigns {
		ch <- struct{}{}

		campaign := campaign
		g.Go(func() error {
			// release go routine
			defer func() {
				<-ch
			}()

			var (
				advanceReq = &handler.AdvanceRequest{
					CampaignID: campaign.ID,
				}
				advanceRes = new(handler.AdvanceResponse)
			)
			if err := h.orchestrator.Advance(ctx, advanceReq, advanceRes); err != nil {
				log.Ctx(ctx).Error().Msgf("[campaign ID %d] advance failed: %v", campaign.GetID(), err)
				return nil
			}

			log.Ctx(ctx).Info().Msgf("[campaign ID %d] advanced to stage: %s",
				campaign.GetID(), advanceRes.Campaign.GetStage().String())

			return nil
		})
	}

	return g.Wait()
}

func (h *RunCampaigns) CleanUp(_ context.Context) error {
	return nil
}
