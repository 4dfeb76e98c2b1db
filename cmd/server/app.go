package main

import (
	"context"
	"fmt"

	"hotelbook/config"
	"hotelbook/internal/database"
	"hotelbook/internal/events"
	"hotelbook/internal/funnel"
	"hotelbook/internal/handler"
	"hotelbook/internal/hotel"
	"hotelbook/internal/middleware"
	"hotelbook/internal/repository"
	"hotelbook/internal/router"
	"hotelbook/internal/service"
	"hotelbook/internal/tasks"
	"hotelbook/internal/ws"
	"hotelbook/pkg/payment"
	"hotelbook/pkg/pms"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type runnableBus interface {
	events.Bus
	Run(ctx context.Context)
}

type app struct {
	cfg      *config.Config
	db       *gorm.DB
	log      *zap.Logger
	handlers router.Handlers
	bus      runnableBus
	worker   *tasks.Worker
	closers  []func()
	stop     chan struct{}
}

func loadCatalog(ctx context.Context, cfg *config.Config, log *zap.Logger) (*hotel.Catalog, *pms.Router, error) {
	catalog, err := hotel.LoadFile(cfg.Hotels.File)
	if err != nil {
		return nil, nil, fmt.Errorf("hotel catalogue: %w", err)
	}
	pmsRouter := pms.NewRouter(catalog)
	if cfg.Cloudbeds.APIKey != "" || cfg.Cloudbeds.RefreshToken != "" {
		ts := pms.CloudbedsTokenSource(ctx, cfg.Cloudbeds.TokenURL, cfg.Cloudbeds.ClientID, cfg.Cloudbeds.ClientSecret, cfg.Cloudbeds.RefreshToken, cfg.Cloudbeds.APIKey)
		pmsRouter.Register(pms.KindCloudbeds, pms.NewCloudbeds(ctx, cfg.Cloudbeds.BaseURL, ts, log))
	} else {
		log.Warn("cloudbeds credentials not configured; cloudbeds hotels are unavailable")
	}
	if cfg.BookingCenter.Endpoint != "" {
		pmsRouter.Register(pms.KindBookingCenter, pms.NewBookingCenter(cfg.BookingCenter.Endpoint, cfg.BookingCenter.SiteID, cfg.BookingCenter.Password, log))
	} else {
		log.Warn("bookingcenter endpoint not configured; bookingcenter hotels are unavailable")
	}
	return catalog, pmsRouter, nil
}

func buildApp(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, db: db, log: log, stop: make(chan struct{})}

	catalog, pmsRouter, err := loadCatalog(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info("hotel catalogue loaded", zap.Int("hotels", len(catalog.List())))
	if cfg.Hotels.ValidateOnBoot {
		for _, res := range hotel.Probe(ctx, catalog, pmsRouter, tomorrow()) {
			if res.OK() {
				log.Info("pms check passed", zap.String("hotel_id", res.HotelID))
			} else {
				log.Warn("pms check failed", zap.String("result", res.String()))
			}
		}
	}

	bookingRepo := repository.NewBookingRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	pushRepo := repository.NewPushRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	crmRepo := repository.NewCRMRepository(db)

	if cfg.Stripe.SecretKey == "" {
		log.Warn("stripe secret key not configured; payment calls will fail")
	}
	gateway := payment.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	// Notification sink.
	hub := ws.NewHub()
	webPush := service.NewWebPushService(cfg.Push, pushRepo, log)
	if !webPush.Enabled() {
		log.Info("web push disabled: set PUSH_VAPID_PUBLIC_KEY and PUSH_VAPID_PRIVATE_KEY to enable")
	}
	fcm := service.NewFCMService(ctx, cfg.Push.FCMCredentialsPath, cfg.Push.FCMTopic, log)
	if fcm == nil {
		log.Info("fcm push disabled")
	}
	marketing := service.NewMarketingForwarder(cfg.Marketing.Webhooks, log)
	notifier := service.NewNotificationService(catalog, webPush, fcm, marketing, hub, log)

	if cfg.RabbitMQ.URL != "" {
		a.bus = events.NewAMQPBus(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, 256, notifier.Handle, log)
		log.Info("notifications via rabbitmq", zap.String("queue", cfg.RabbitMQ.Queue))
	} else {
		a.bus = events.NewLocalBus(256, notifier.Handle, log)
	}

	// Redis-backed parts: backup scheduling and the funnel log.
	var (
		scheduler   service.BackupScheduler
		timer       *tasks.TimerScheduler
		funnelStore funnel.Store
	)
	if cfg.Redis.Addr != "" {
		opt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
		asynqScheduler := tasks.NewAsynqScheduler(opt, cfg.Backup.Delay, log)
		a.closers = append(a.closers, func() { asynqScheduler.Close() })
		scheduler = asynqScheduler

		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, func() { rdb.Close() })
		funnelStore = funnel.NewRedisRing(rdb, cfg.Funnel.RedisKey, cfg.Funnel.Capacity)
		log.Info("redis enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		timer = tasks.NewTimerScheduler(cfg.Backup.Delay, log)
		a.closers = append(a.closers, timer.Stop)
		scheduler = timer
		funnelStore = funnel.NewRing(cfg.Funnel.Capacity)
		log.Info("redis not configured; backup bookings use in-process timers")
	}

	bookingSvc := service.NewBookingService(catalog, pmsRouter, gateway, bookingRepo, leadRepo, a.bus, scheduler, service.BookingConfig{
		Currency:           cfg.Stripe.Currency,
		PreauthAmountCents: cfg.Stripe.PreauthAmountCents,
		RetryAttempts:      cfg.Database.RetryAttempts,
		RetryDelay:         cfg.Database.RetryDelay,
	}, log)
	if timer != nil {
		timer.Bind(bookingSvc)
	} else {
		opt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
		a.worker = tasks.NewWorker(opt, bookingSvc, log)
	}

	availabilitySvc := service.NewAvailabilityService(catalog, pmsRouter, a.bus, log)
	crmAuth := service.NewCRMAuthService(&cfg.CRM)
	if cfg.CRM.Token == "" && cfg.CRM.PasswordHash == "" {
		log.Warn("crm auth not configured; CRM endpoints will reject every request")
	}

	debug := !cfg.IsProduction()
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	a.handlers = router.Handlers{
		Health:       handler.NewHealthHandler(sqlDB.PingContext),
		Availability: handler.NewAvailabilityHandler(availabilitySvc, catalog, debug),
		Booking:      handler.NewBookingHandler(bookingSvc, debug),
		Webhook:      handler.NewStripeWebhookHandler(gateway, bookingSvc, log),
		Push:         handler.NewPushHandler(webPush, debug),
		Track:        handler.NewTrackHandler(funnelStore, a.bus, log, debug),
		CRM:          handler.NewCRMHandler(bookingRepo, leadRepo, crmRepo, auditRepo, bookingSvc, crmAuth, funnelStore, log, debug),
		CRMAuth:      crmAuth,
		Hub:          hub,
		Limiter:      middleware.NewIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
	return a, nil
}

// start launches the background loops; they stop when ctx is cancelled.
func (a *app) start(ctx context.Context) {
	go a.bus.Run(ctx)
	go database.StartKeepAlive(ctx, a.db, a.cfg.Database.KeepAliveInterval, a.log)
	go a.handlers.Limiter.RunSweeper(a.stop)
	if a.worker != nil {
		if err := a.worker.Start(); err != nil {
			a.log.Error("backup worker failed to start", zap.Error(err))
		} else {
			a.closers = append(a.closers, a.worker.Shutdown)
		}
	}
}

func (a *app) close() {
	close(a.stop)
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
