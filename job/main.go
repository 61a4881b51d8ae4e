package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"outreach/config"
	"outreach/dep"
	"outreach/handler"
	"outreach/job/run_campaigns"
	"outreach/job/run_snapshots"
	"outreach/pkg/logutil"
	"outreach/pkg/mq"
	"outreach/pkg/service"
	"outreach/repo"
)

func main() {
	var (
		opt = config.NewOptions()
		ctx = logutil.InitZeroLog(context.Background(), opt.LogLevel)
	)

	cfg := config.NewConfig()
	if err := cfg.Load(ctx, opt.ConfigPath); err != nil {
		log.Ctx(ctx).Error().Msgf("load config failed: %v", err)
		os.Exit(1)
	}

	// base repo
	baseRepo, err := repo.NewBaseRepo(ctx, cfg.MetadataDB)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("init base repo failed, err: %v", err)
		os.Exit(1)
	}
	defer func() {
		if baseRepo != nil {
			if err := baseRepo.Close(ctx); err != nil {
				log.Ctx(ctx).Error().Msgf("close base repo failed, err: %v", err)
			}
		}
	}()

	// discovery service
	discoverySvc, err := dep.NewDiscoveryService(ctx, cfg.DiscoveryStore)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("init discovery service failed, err: %v", err)
		os.Exit(1)
	}

	// content service
	contentSvc, err := dep.NewContentService(ctx, cfg.ContentService)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("init content service failed, err: %v", err)
		os.Exit(1)
	}

	// mail transport
	transport, err := dep.NewMailTransport(ctx, cfg.Brevo)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("init mail transport failed, err: %v", err)
		os.Exit(1)
	}

	// event producer
	producer, err := mq.NewProducer(ctx, cfg.EventProducer)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("init event producer failed, err: %v", err)
		os.Exit(1)
	}
	defer func() {
		if producer != nil {
			if err := producer.Close(); err != nil {
				log.Ctx(ctx).Error().Msgf("close event producer failed, err: %v", err)
			}
		}
	}()

	var (
		campaignRepo       = repo.NewCampaignRepo(ctx, baseRepo)
		variantRepo        = repo.NewVariantRepo(ctx, baseRepo)
		recordRepo         = repo.NewDispatchRecordRepo(ctx, baseRepo)
		quotaRepo          = repo.NewQuotaRepo(ctx, baseRepo)
		channelRepo        = repo.NewChannelRepo(ctx, baseRepo)
		consentRepo        = repo.NewConsentRepo(ctx, baseRepo)
		blocklistRepo      = repo.NewBlocklistRepo(ctx, baseRepo, repo.NewBaseCache(ctx))
		snapshotRepo       = repo.NewSnapshotRepo(ctx, baseRepo)
		skippedContactRepo = repo.NewSkippedContactRepo(ctx, baseRepo)
	)

	var (
		compliance      = handler.NewComplianceHandler(cfg, blocklistRepo, consentRepo)
		variantSelector = handler.NewVariantSelector(cfg, variantRepo)
		dispatcher      = handler.NewDispatchHandler(cfg, quotaRepo, channelRepo, recordRepo, transport, producer)
		orchestrator    = handler.NewOrchestrator(cfg, campaignRepo, variantRepo, skippedContactRepo,
			discoverySvc, contentSvc, compliance, variantSelector, dispatcher)
	)

	jobs := map[string]service.Job{
		"run-campaigns": run_campaigns.New(cfg, campaignRepo, orchestrator),
		"run-snapshots": run_snapshots.New(cfg, campaignRepo, recordRepo, snapshotRepo),
	}

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go <job_name>")
		os.Exit(1)
	}

	jobName := os.Args[1]
	job, exists := jobs[jobName]
	if !exists {
		log.Ctx(ctx).Error().Msgf("job %s not found", jobName)
		os.Exit(1)
	}

	if err := job.Init(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("init job err: %v", err)
		os.Exit(1)
	}

	if err := job.Run(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("run job err: %v", err)
		os.Exit(1)
	}

	if err := job.CleanUp(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("cleanup job err: %v", err)
		os.Exit(1)
	}

	log.Ctx(ctx).Info().Msg("job executed successfully")
	os.Exit(0)
}
