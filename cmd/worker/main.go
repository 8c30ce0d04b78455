package main

import (
	"context"
	"errors"
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
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	leadsservice "github.com/copp1723/ccl-3-final-sub003/internal/leads/service"
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
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	conversations.NewModule(conversationSvc, val).RegisterHandlers(eventBus)

	engineSvc := engine.NewService(leadsRepo, campaignsRepo, decisionsRepo, generator, val, hub, log)
	deliverer := handover.NewDeliverer(leadsRepo, handoverRepo, commsRepo, eventBus, cfg, cfg, log)

	// Inbound email replies route through the same flow as webhook messages.
	if cfg.IsIMAPEnabled() {
		leadsSvc := leadsservice.New(leadsRepo, campaignsRepo, decisionsRepo, commsRepo, jobs, eventBus, val, log)
		poller := channels.NewInboundEmailPoller(cfg, leadsSvc, conversationSvc, log)
		go func() {
			if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("inbound email poller stopped", "error", err)
			}
		}()
		log.Info("inbound email poller started", "host", cfg.IMAPHost)
	}

	worker, err := scheduler.NewWorker(cfg, engineSvc, hub, conversationSvc, deliverer, leadsRepo, jobs, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	worker.Run(ctx)
}

func breakerOpts(cfg config.BreakerConfig, name string) breaker.Options {
	return breaker.Options{
		FailureThreshold: cfg.GetBreakerFailureThreshold(name),
		Cooldown:         cfg.GetBreakerCooldown(name),
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
