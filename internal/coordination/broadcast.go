package coordination

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
)

// Envelope is the wire shape broadcast to external coordination consumers.
type Envelope struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// Broadcaster publishes coordination outcomes to a topic exchange so agents
// running in other processes see the same consensus and goal state.
type Broadcaster interface {
	Broadcast(ctx context.Context, key string, kind string, data any) error
	Close() error
}

type amqpBroadcaster struct {
	conn     *amqp091.Connection
	exchange string
	log      *logger.Logger
}

// NewBroadcaster dials the broker and declares the topic exchange. Pass an
// empty URL to get a no-op broadcaster for single-process deployments.
func NewBroadcaster(url, exchange string, log *logger.Logger) (Broadcaster, error) {
	if url == "" {
		return nopBroadcaster{}, nil
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	return &amqpBroadcaster{conn: conn, exchange: exchange, log: log}, nil
}

func (b *amqpBroadcaster) Broadcast(ctx context.Context, key, kind string, data any) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	env := Envelope{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, b.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Body:         body,
	})
	if err == nil {
		b.log.Debug("coordination broadcast", "key", key, "kind", kind)
	}
	return err
}

func (b *amqpBroadcaster) Close() error { return b.conn.Close() }

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(context.Context, string, string, any) error { return nil }
func (nopBroadcaster) Close() error                                         { return nil }
