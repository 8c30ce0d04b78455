package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/copp1723/ccl-3-final-sub003/internal/conversations"
	"github.com/copp1723/ccl-3-final-sub003/internal/coordination"
	"github.com/copp1723/ccl-3-final-sub003/internal/engine"
	"github.com/copp1723/ccl-3-final-sub003/internal/handover"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/platform/apperr"
	"github.com/copp1723/ccl-3-final-sub003/platform/config"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes pipeline jobs and delegates them to the domain services.
// Every handler tolerates redelivery: stale work resolves as a no-op inside
// the services, so at-least-once execution never double-sends.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	engine    *engine.Service
	hub       *coordination.Hub
	convos    *conversations.Service
	deliverer *handover.Deliverer
	leads     leadsrepo.LeadsRepository
	client    *Client
	log       *logger.Logger
}

func NewWorker(
	cfg config.SchedulerConfig,
	engineSvc *engine.Service,
	hub *coordination.Hub,
	convos *conversations.Service,
	deliverer *handover.Deliverer,
	leads leadsrepo.LeadsRepository,
	client *Client,
	log *logger.Logger,
) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	w := &Worker{
		engine:    engineSvc,
		hub:       hub,
		convos:    convos,
		deliverer: deliverer,
		leads:     leads,
		client:    client,
		log:       log,
	}

	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return backoffDelay(n)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			log.Error("task failed", "task", task.Type(), "error", err)
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskLeadProcess, w.wrap(w.handleLeadProcess))
	mux.HandleFunc(TaskConversationTemplateStep, w.wrap(w.handleTemplateStep))
	mux.HandleFunc(TaskConversationReply, w.wrap(w.handleReply))
	mux.HandleFunc(TaskHandoverDeliver, w.wrap(w.handleHandoverDeliver))
	mux.HandleFunc(TaskCoordinationDispatch, w.wrap(w.handleCoordinationDispatch))
	w.mux = mux

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("pipeline worker stopped", "error", err)
	}
}

// wrap translates typed domain errors into asynq retry semantics: only
// dependency failures and internal errors are worth another attempt.
func (w *Worker) wrap(handler asynq.HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		err := handler(ctx, task)
		if err == nil {
			return nil
		}
		var appErr *apperr.Error
		if errors.As(err, &appErr) && !appErr.Retryable() {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
}

func (w *Worker) handleLeadProcess(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadProcessPayload(task)
	if err != nil {
		return apperr.Validation("malformed lead.process payload: " + err.Error())
	}
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return apperr.Validation("invalid lead id in payload: " + err.Error())
	}

	decision, err := w.engine.Decide(ctx, leadID)
	if err != nil {
		return err
	}

	switch decision.Action {
	case engine.ActionAssignChannel, engine.ActionProcessingError:
		lead, err := w.leads.GetByID(ctx, leadID)
		if err != nil {
			return err
		}
		if lead.CampaignID == nil {
			return nil
		}
		_, err = w.hub.PlanOutreach(ctx, *lead.CampaignID, leadID)
		return err
	case engine.ActionTriggerHandover:
		return w.client.EnqueueHandover(ctx, leadID, decision.Reasoning)
	default:
		return nil
	}
}

func (w *Worker) handleTemplateStep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTemplateStepPayload(task)
	if err != nil {
		return apperr.Validation("malformed conversation.template_step payload: " + err.Error())
	}
	conversationID, err := uuid.Parse(payload.ConversationID)
	if err != nil {
		return apperr.Validation("invalid conversation id in payload: " + err.Error())
	}
	return w.convos.RunTemplateStep(ctx, conversationID, payload.Stage)
}

func (w *Worker) handleReply(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseReplyPayload(task)
	if err != nil {
		return apperr.Validation("malformed conversation.reply payload: " + err.Error())
	}
	conversationID, err := uuid.Parse(payload.ConversationID)
	if err != nil {
		return apperr.Validation("invalid conversation id in payload: " + err.Error())
	}
	return w.convos.GenerateReply(ctx, conversationID)
}

func (w *Worker) handleHandoverDeliver(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseHandoverDeliverPayload(task)
	if err != nil {
		return apperr.Validation("malformed handover.deliver payload: " + err.Error())
	}
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return apperr.Validation("invalid lead id in payload: " + err.Error())
	}
	return w.deliverer.Deliver(ctx, leadID, payload.Reason)
}

func (w *Worker) handleCoordinationDispatch(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCoordinationDispatchPayload(task)
	if err != nil {
		return apperr.Validation("malformed coordination.dispatch payload: " + err.Error())
	}
	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return apperr.Validation("invalid lead id in payload: " + err.Error())
	}

	lead, err := w.leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if lead.CampaignID == nil {
		return nil
	}

	_, err = w.convos.Start(ctx, leadID, *lead.CampaignID, payload.AgentID, payload.Channel)
	return err
}

var (
	_ conversations.Scheduler = (*Client)(nil)
	_ coordination.Dispatcher = (*Client)(nil)
)

// backoffDelay grows exponentially from 30s and caps at 15m so a flapping
// dependency is not hammered while its breaker recovers.
func backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := 30 * time.Second << uint(attempt)
	if delay > 15*time.Minute || delay <= 0 {
		return 15 * time.Minute
	}
	return delay
}
