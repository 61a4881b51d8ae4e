package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"outreach/config"
	"outreach/dep"
	"outreach/handler"
	"outreach/middleware"
	"outreach/pkg/logutil"
	"outreach/pkg/mq"
	"outreach/pkg/router"
	"outreach/pkg/service"
	"outreach/repo"
)

type server struct {
	ctx context.Context
	opt *config.Option
	cfg *config.Config

	baseRepo           repo.BaseRepo
	campaignRepo       repo.CampaignRepo
	variantRepo        repo.VariantRepo
	recordRepo         repo.DispatchRecordRepo
	quotaRepo          repo.QuotaRepo
	channelRepo        repo.ChannelRepo
	consentRepo        repo.ConsentRepo
	blocklistRepo      repo.BlocklistRepo
	snapshotRepo       repo.SnapshotRepo
	skippedContactRepo repo.SkippedContactRepo

	discoverySvc dep.DiscoveryService
	contentSvc   dep.ContentService
	transport    dep.MailTransport
	producer     *mq.Producer
	consumer     *mq.Consumer

	// api handlers
	campaignHandler handler.CampaignHandler
	trackerHandler  handler.TrackerHandler
	orchestrator    handler.Orchestrator
}

func main() {
	rand.Seed(time.Now().UTC().UnixNano())

	s := new(server)
	if err := service.Run(s); err != nil {
		log.Fatal().Msg(err.Error())
	}
}

func (s *server) Init() error {
	opt := config.NewOptions()

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		opt.LogLevel = logLevel
	}

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		opt.ConfigPath = configPath
	}

	if serverPort := os.Getenv("PORT"); serverPort != "" {
		if port, err := strconv.Atoi(serverPort); err == nil {
			opt.Port = port
		}
	}

	s.opt = opt

	return nil
}

func (s *server) Start() error {
	var err error

	// ====== init logger ===== //

	s.ctx = logutil.InitZeroLog(context.Background(), s.opt.LogLevel)

	// ===== init config ===== //

	s.cfg = config.NewConfig()
	if err = s.cfg.Load(s.ctx, s.opt.ConfigPath); err != nil {
		log.Ctx(s.ctx).Error().Msgf("load config failed, err: %v", err)
		return err
	}

	// ===== init repos ===== //

	s.baseRepo, err = repo.NewBaseRepo(s.ctx, s.cfg.MetadataDB)
	if err != nil {
		log.Ctx(s.ctx).Error().Msgf("init base repo failed, err: %v", err)
		return err
	}
	defer func() {
		if err != nil && s.baseRepo != nil {
			if err := s.baseRepo.Close(s.ctx); err != nil {
				log.Ctx(s.ctx).Error().Msgf("close base repo failed, err: %v", err)
				return
			}
		}
	}()

	s.campaignRepo = repo.NewCampaignRepo(s.ctx, s.baseRepo)
	s.variantRepo = repo.NewVariantRepo(s.ctx, s.baseRepo)
	s.recordRepo = repo.NewDispatchRecordRepo(s.ctx, s.baseRepo)
	s.quotaRepo = repo.NewQuotaRepo(s.ctx, s.baseRepo)
	s.channelRepo = repo.NewChannelRepo(s.ctx, s.baseRepo)
	s.consentRepo = repo.NewConsentRepo(s.ctx, s.baseRepo)
	s.blocklistRepo = repo.NewBlocklistRepo(s.ctx, s.baseRepo, repo.NewBaseCache(s.ctx))
	s.snapshotRepo = repo.NewSnapshotRepo(s.ctx, s.baseRepo)
	s.skippedContactRepo = repo.NewSkippedContactRepo(s.ctx, s.baseRepo)

	// ===== init deps ===== //

	s.discoverySvc, err = dep.NewDiscoveryService(s.ctx, s.cfg.DiscoveryStore)
	if err != nil {
		log.Ctx(s.ctx).Error().Msgf("init discovery service failed, err: %v", err)
		return err
	}

	s.contentSvc, err = dep.NewContentService(s.ctx, s.cfg.ContentService)
	if err != nil {
		log.Ctx(s.ctx).Error().Msgf("init content service failed, err: %v", err)
		return err
	}

	s.transport, err = dep.NewMailTransport(s.ctx, s.cfg.Brevo)
	if err != nil {
		log.Ctx(s.ctx).Error().Msgf("init mail transport failed, err: %v", err)
		return err
	}

	s.producer, err = mq.NewProducer(s.ctx, s.cfg.EventProducer)
	if err != nil {
		log.Ctx(s.ctx).Error().Msgf("init event producer failed, err: %v", err)
		return err
	}
	defer func() {
		if err != nil && s.producer != nil {
			if err := s.producer.Close(); err != nil {
				log.Ctx(s.ctx).Error().Msgf("close event producer failed, err: %v", err)
				return
			}
		}
	}()

	// ===== init handlers ===== //

	compliance := handler.NewComplianceHandler(s.cfg, s.blocklistRepo, s.consentRepo)
	variantSelector := handler.NewVariantSelector(s.cfg, s.variantRepo)
	dispatcher := handler.NewDispatchHandler(s.cfg, s.quotaRepo, s.channelRepo, s.recordRepo, s.transport, s.producer)

	s.trackerHandler = handler.NewTrackerHandler(s.cfg, s.recordRepo, s.variantRepo, s.snapshotRepo, s.producer)
	s.campaignHandler = handler.NewCampaignHandler(s.baseRepo, s.campaignRepo, s.variantRepo, s.snapshotRepo,
		s.skippedContactRepo, s.trackerHandler)
	s.orchestrator = handler.NewOrchestrator(s.cfg, s.campaignRepo, s.variantRepo, s.skippedContactRepo,
		s.discoverySvc, s.contentSvc, compliance, variantSelector, dispatcher)

	// ===== init event consumer ===== //

	mq.RegisterHandler(mq.PayloadEmailOpened, s.trackerHandler.HandleEmailOpened)
	mq.RegisterHandler(mq.PayloadEmailClicked, s.trackerHandler.HandleEmailClicked)
	mq.RegisterHandler(mq.PayloadDispatchOutcome, s.trackerHandler.HandleDispatchOutcome)

	s.consumer, err = mq.NewConsumer(s.ctx, s.cfg.EventConsumer)
	if err != nil {
		log.Ctx(s.ctx).Error().Msgf("init event consumer failed, err: %v", err)
		return err
	}

	// ===== start server ===== //

	go func() {
		addr := fmt.Sprintf(":%d", s.opt.Port)

		log.Info().Msgf("starting HTTP server at %s", addr)

		httpServer := &http.Server{
			BaseContext: func(_ net.Listener) context.Context {
				return s.ctx
			},
			Addr:    addr,
			Handler: middleware.Log(cors.AllowAll().Handler(s.registerRoutes())),
		}
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fail to start HTTP server, err: %v", err)
		}
	}()

	return nil
}

func (s *server) Stop() error {
	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close event consumer failed, err: %v", err)
			return err
		}
	}

	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close event producer failed, err: %v", err)
			return err
		}
	}

	if s.transport != nil {
		if err := s.transport.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close mail transport failed, err: %v", err)
			return err
		}
	}

	if s.contentSvc != nil {
		if err := s.contentSvc.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close content service failed, err: %v", err)
			return err
		}
	}

	if s.discoverySvc != nil {
		if err := s.discoverySvc.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close discovery service failed, err: %v", err)
			return err
		}
	}

	if s.baseRepo != nil {
		if err := s.baseRepo.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close base repo failed, err: %v", err)
			return err
		}
	}

	return nil
}

type HealthCheckRequest struct{}

type HealthCheckResponse struct{}

func (s *server) registerRoutes() http.Handler {
	r := &router.HttpRouter{
		Router: mux.NewRouter(),
	}

	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathHealthCheck,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(HealthCheckRequest),
			Res: new(HealthCheckResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return nil
			},
		},
	})

	// create_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathCreateCampaign,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.CreateCampaignRequest),
			Res: new(handler.CreateCampaignResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.CreateCampaign(ctx, req.(*handler.CreateCampaignRequest), res.(*handler.CreateCampaignResponse))
			},
		},
	})

	// get_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetCampaign,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.GetCampaignRequest),
			Res: new(handler.GetCampaignResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.GetCampaign(ctx, req.(*handler.GetCampaignRequest), res.(*handler.GetCampaignResponse))
			},
		},
	})

	// get_campaigns
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetCampaigns,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.GetCampaignsRequest),
			Res: new(handler.GetCampaignsResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.GetCampaigns(ctx, req.(*handler.GetCampaignsRequest), res.(*handler.GetCampaignsResponse))
			},
		},
	})

	// pause_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathPauseCampaign,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.PauseCampaignRequest),
			Res: new(handler.PauseCampaignResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.PauseCampaign(ctx, req.(*handler.PauseCampaignRequest), res.(*handler.PauseCampaignResponse))
			},
		},
	})

	// resume_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathResumeCampaign,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.ResumeCampaignRequest),
			Res: new(handler.ResumeCampaignResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.ResumeCampaign(ctx, req.(*handler.ResumeCampaignRequest), res.(*handler.ResumeCampaignResponse))
			},
		},
	})

	// advance_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathAdvanceCampaign,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.AdvanceRequest),
			Res: new(handler.AdvanceResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.orchestrator.Advance(ctx, req.(*handler.AdvanceRequest), res.(*handler.AdvanceResponse))
			},
		},
	})

	// get_performance_snapshot
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetPerformanceSnapshot,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.GetPerformanceSnapshotRequest),
			Res: new(handler.GetPerformanceSnapshotResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.GetPerformanceSnapshot(ctx, req.(*handler.GetPerformanceSnapshotRequest), res.(*handler.GetPerformanceSnapshotResponse))
			},
		},
	})

	// get_skipped_contacts
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetSkippedContacts,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.GetSkippedContactsRequest),
			Res: new(handler.GetSkippedContactsResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.GetSkippedContacts(ctx, req.(*handler.GetSkippedContactsRequest), res.(*handler.GetSkippedContactsResponse))
			},
		},
	})

	// on_email_open
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathOnEmailOpen,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.OnEmailOpenRequest),
			Res: new(handler.OnEmailOpenResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.trackerHandler.OnEmailOpen(ctx, req.(*handler.OnEmailOpenRequest), res.(*handler.OnEmailOpenResponse))
			},
		},
	})

	// on_email_click
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathOnEmailClick,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.OnEmailClickRequest),
			Res: new(handler.OnEmailClickResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.trackerHandler.OnEmailClick(ctx, req.(*handler.OnEmailClickRequest), res.(*handler.OnEmailClickResponse))
			},
		},
	})

	return r
}
