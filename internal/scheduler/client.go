package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/copp1723/ccl-3-final-sub003/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues pipeline jobs. It satisfies the scheduling ports of the
// conversation and coordination services, so those packages never import
// asynq directly.
type Client struct {
	client              *asynq.Client
	queue               string
	deliveryMaxAttempts int
}

func NewClient(cfg config.SchedulerConfig, hcfg config.HandoverConfig) (*Client, error) {
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

	maxAttempts := hcfg.GetDeliveryMaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 5
	}

	return &Client{
		client:              asynq.NewClient(opt),
		queue:               queue,
		deliveryMaxAttempts: maxAttempts,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueLeadProcess queues a decision-engine pass for a freshly ingested lead.
func (c *Client) EnqueueLeadProcess(ctx context.Context, leadID uuid.UUID) error {
	task, err := NewLeadProcessTask(LeadProcessPayload{LeadID: leadID.String()})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task, asynq.TaskID("process:"+leadID.String()))
}

// EnqueueTemplateStep queues a scripted step for a conversation. The task ID
// keys on (conversation, stage) so a step is queued at most once; a stale
// copy that does slip through is rejected by the stage check downstream.
func (c *Client) EnqueueTemplateStep(ctx context.Context, conversationID uuid.UUID, stage int, delay time.Duration) error {
	task, err := NewTemplateStepTask(TemplateStepPayload{ConversationID: conversationID.String(), Stage: stage})
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.TaskID(fmt.Sprintf("step:%s:%d", conversationID, stage))}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	return c.enqueue(ctx, task, opts...)
}

// EnqueueReply queues adaptive reply generation for a conversation.
func (c *Client) EnqueueReply(ctx context.Context, conversationID uuid.UUID) error {
	task, err := NewReplyTask(ReplyPayload{ConversationID: conversationID.String()})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueHandover queues handover delivery for a lead. Delivery retries up to
// the configured attempt cap; successful destinations are skipped on retry.
func (c *Client) EnqueueHandover(ctx context.Context, leadID uuid.UUID, reason string) error {
	task, err := NewHandoverDeliverTask(HandoverDeliverPayload{LeadID: leadID.String(), Reason: reason})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task,
		asynq.TaskID("handover:"+leadID.String()),
		asynq.MaxRetry(c.deliveryMaxAttempts),
	)
}

// EnqueueCoordinatedDispatch queues the opening of an agent conversation at
// the slot the coordination hub planned.
func (c *Client) EnqueueCoordinatedDispatch(ctx context.Context, leadID uuid.UUID, agentID, channel string, at time.Time) error {
	task, err := NewCoordinationDispatchTask(CoordinationDispatchPayload{
		LeadID:  leadID.String(),
		AgentID: agentID,
		Channel: channel,
	})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task,
		asynq.TaskID(fmt.Sprintf("dispatch:%s:%s:%s", leadID, agentID, channel)),
		asynq.ProcessAt(at),
	)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	if c == nil || c.client == nil {
		return nil
	}
	opts = append(opts, asynq.Queue(c.queue))
	_, err := c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// Already queued; at-least-once semantics are preserved either way.
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
