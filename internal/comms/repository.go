// Package comms records every outbound and inbound message attempt. Records
// are append-only: delivery state changes are written as status updates on
// the original attempt row, never as rewrites of content.
package comms

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Delivery statuses.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusReceived  = "received"
)

type Communication struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	Channel    string
	Direction  string
	Content    string
	Status     string
	ExternalID *string
	Metadata   map[string]any
	CreatedAt  time.Time
}

type CreateParams struct {
	LeadID     uuid.UUID
	Channel    string
	Direction  string
	Content    string
	Status     string
	ExternalID *string
	Metadata   map[string]any
}

// CommsRepository is the persistence boundary for communication records.
type CommsRepository interface {
	Create(ctx context.Context, params CreateParams) (Communication, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, externalID *string) error
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]Communication, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

var _ CommsRepository = (*Repository)(nil)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (Communication, error) {
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return Communication{}, err
	}

	if params.Status == "" {
		params.Status = StatusPending
	}

	comm := Communication{
		LeadID:     params.LeadID,
		Channel:    params.Channel,
		Direction:  params.Direction,
		Content:    params.Content,
		Status:     params.Status,
		ExternalID: params.ExternalID,
		Metadata:   metadata,
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO communications (lead_id, channel, direction, content, status, external_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, params.LeadID, params.Channel, params.Direction, params.Content,
		params.Status, params.ExternalID, metadataJSON,
	).Scan(&comm.ID, &comm.CreatedAt)
	if err != nil {
		return Communication{}, err
	}
	return comm, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, externalID *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE communications
		SET status = $2, external_id = COALESCE($3, external_id)
		WHERE id = $1
	`, id, status, externalID)
	return err
}

func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]Communication, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, channel, direction, content, status, external_id, metadata, created_at
		FROM communications
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Communication, 0)
	for rows.Next() {
		var c Communication
		var metadata []byte
		if err := rows.Scan(&c.ID, &c.LeadID, &c.Channel, &c.Direction, &c.Content,
			&c.Status, &c.ExternalID, &metadata, &c.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
				return nil, err
			}
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
