// Package engine routes leads: it assigns outreach channels, solicits a
// structured decision from the adaptive-text capability, and records every
// decision in an append-only audit trail.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Decision actions.
const (
	ActionAssignChannel        = "assign_channel"
	ActionContinueConversation = "continue_conversation"
	ActionTriggerHandover      = "trigger_handover"
	ActionArchive              = "archive"
	ActionProcessingError      = "processing_error"
)

// Decision is one append-only audit record. Rows are never updated.
type Decision struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	Actor     string
	Action    string
	Reasoning string
	Data      map[string]any
	CreatedAt time.Time
}

// DecisionsRepository is the persistence boundary for the audit trail.
type DecisionsRepository interface {
	Create(ctx context.Context, d Decision) (Decision, error)
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]Decision, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, d Decision) (Decision, error) {
	data := d.Data
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return Decision{}, err
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO agent_decisions (lead_id, actor, action, reasoning, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, d.LeadID, d.Actor, d.Action, d.Reasoning, dataJSON).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}

func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]Decision, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, actor, action, reasoning, data, created_at
		FROM agent_decisions
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Decision, 0)
	for rows.Next() {
		var d Decision
		var data []byte
		if err := rows.Scan(&d.ID, &d.LeadID, &d.Actor, &d.Action, &d.Reasoning, &data, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &d.Data); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

var _ DecisionsRepository = (*Repository)(nil)
