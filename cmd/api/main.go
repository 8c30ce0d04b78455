package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
	"github.com/copp1723/ccl-3-final-sub003/internal/channels"
	"github.com/copp1723/ccl-3-final-sub003/internal/comms"
	"github.com/copp1723/ccl-3-final-sub003/internal/conversations"
	convrepo "github.com/copp1723/ccl-3-final-sub003/internal/conversations/repository"
	"github.com/copp1723/ccl-3-final-sub003/internal/coordination"
	"github.com/copp1723/ccl-3-final-sub003/internal/engine"
	"github.com/copp1723/ccl-3-final-sub003/internal/events"
	"github.com/copp1723/ccl-3-final-sub003/internal/handover"
	apphttp "github.com/copp1723/ccl-3-final-sub003/internal/http"
	"github.com/copp1723/ccl-3-final-sub003/internal/http/router"
	"github.com/copp1723/ccl-3-final-sub003/internal/leads"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/internal/scheduler"
	"github.com/copp1723/ccl-3-final-sub003/platform/ai"
	"github.com/copp1723/ccl-3-final-sub003/platform/breaker"
	"github.com/copp1723/ccl-3-final-sub003/platform/config"
	"github.com/copp1723/ccl-3-final-sub003/platform/db"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
	"github.com/copp1723/ccl-3-final-sub003/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting api", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)

	rdb, err := coordination.NewRedisClient(cfg.RedisURL, cfg.RedisTLSInsecure)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer rdb.Close()

	broadcaster, err := coordination.NewBroadcaster(cfg.BrokerURL, cfg.BrokerExchange, log)
	if err != nil {
		log.Error("failed to connect to broker", "error", err)
		panic("failed to connect to broker: " + err.Error())
	}

	jobs, err := scheduler.NewClient(cfg, cfg)
	if err != nil {
		log.Error("failed to initialize job client", "error", err)
		panic("failed to initialize job client: " + err.Error())
	}
	defer jobs.Close()

	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsRepo := leadsrepo.New(pool)
	campaignsRepo := campaigns.New(pool)
	commsRepo := comms.New(pool)
	conversationsRepo := convrepo.New(pool)
	decisionsRepo := engine.NewRepository(pool)
	handoverRepo := handover.NewRepository(pool)

	store := coordination.NewStore(rdb, cfg.ChannelMinGap)
	hub := coordination.NewHub(store, campaignsRepo, leadsRepo, jobs,
		coordination.CapabilityAdvisor{}, broadcaster, eventBus, cfg.StaggerInterval, log)

	generator, err := ai.New(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize adaptive-text provider", "error", err)
		panic("failed to initialize adaptive-text provider: " + err.Error())
	}
	generator = ai.WithBreaker(generator, breaker.New("ai", ai.FallbackText, breakerOpts(cfg, "ai"), log))

	drivers := channels.NewSet(
		channels.WithBreaker(channels.NewEmailDriver(cfg, generator), breaker.New("email", channels.FallbackReceipt, breakerOpts(cfg, "email"), log)),
		channels.WithBreaker(channels.NewSMSDriver(cfg, generator), breaker.New("sms", channels.FallbackReceipt, breakerOpts(cfg, "sms"), log)),
		channels.WithBreaker(channels.NewChatDriver(cfg, generator), breaker.New("chat", channels.FallbackReceipt, breakerOpts(cfg, "chat"), log)),
	)

	templates, err := conversations.NewTemplateLibrary("")
	if err != nil {
		log.Error("failed to load template packs", "error", err)
		panic("failed to load template packs: " + err.Error())
	}

	evaluator := handover.NewEvaluator(leadsRepo, conversationsRepo, campaignsRepo, store, log)

	conversationSvc := conversations.NewService(leadsRepo, conversationsRepo, commsRepo, campaignsRepo,
		drivers, templates, evaluator, hub, hub, jobs, eventBus, log)
	statusSvc := handover.NewStatusService(handoverRepo, cfg)

	leadsModule := leads.NewModule(pool, campaignsRepo, decisionsRepo, commsRepo, jobs, eventBus, val, log)
	conversationsModule := conversations.NewModule(conversationSvc, val)
	conversationsModule.RegisterHandlers(eventBus)
	handoverModule := handover.NewModule(statusSvc, handoverRepo, val)
	campaignsModule := campaigns.NewHTTPModule(campaignsRepo, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			conversationsModule,
			campaignsModule,
			handoverModule,
		},
	}

	ginEngine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- ginEngine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func breakerOpts(cfg config.BreakerConfig, name string) breaker.Options {
	return breaker.Options{
		FailureThreshold: cfg.GetBreakerFailureThreshold(name),
		Cooldown:         cfg.GetBreakerCooldown(name),
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
