package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

// Lead status values. A lead is archived terminally.
const (
	StatusNew            = "new"
	StatusContacted      = "contacted"
	StatusQualified      = "qualified"
	StatusSentToHandover = "sent_to_handover"
	StatusRejected       = "rejected"
	StatusArchived       = "archived"
)

type Lead struct {
	ID                 uuid.UUID
	Name               string
	Email              *string
	Phone              *string
	Source             string
	CampaignID         *uuid.UUID
	Status             string
	QualificationScore int
	AssignedChannel    *string
	Metadata           map[string]any
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasChannel reports whether the lead has contact info for the channel.
// Chat requires no prior contact info.
func (l Lead) HasChannel(channel string) bool {
	switch channel {
	case "email":
		return l.Email != nil && *l.Email != ""
	case "sms":
		return l.Phone != nil && *l.Phone != ""
	case "chat":
		return true
	default:
		return false
	}
}

type CreateLeadParams struct {
	Name       string
	Email      *string
	Phone      *string
	Source     string
	CampaignID *uuid.UUID
	Metadata   map[string]any
}

// Context is the cross-channel shared context for a lead, visible to all of
// the lead's conversations.
type Context struct {
	LeadID      uuid.UUID
	Notes       string
	Preferences map[string]any
	UpdatedAt   time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, name, email, phone, source, campaign_id, status, qualification_score, assigned_channel, metadata, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	var metadata []byte
	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Source, &lead.CampaignID,
		&lead.Status, &lead.QualificationScore, &lead.AssignedChannel, &metadata,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &lead.Metadata); err != nil {
			return Lead{}, err
		}
	}
	return lead, nil
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	metadata := params.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return Lead{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (name, email, phone, source, campaign_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+leadColumns+`
	`, params.Name, params.Email, params.Phone, params.Source, params.CampaignID, metadataJSON)

	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// GetByEmail resolves the most recent non-archived lead for an email address.
// Inbound reply routing uses this to attach messages to the right lead.
func (r *Repository) GetByEmail(ctx context.Context, email string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE lower(email) = lower($1) AND status <> $2
		ORDER BY created_at DESC
		LIMIT 1
	`, email, StatusArchived)
	return scanLead(row)
}

// UpdateStatus moves the lead to a new status. Archived leads never leave
// that state.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET status = $2, updated_at = now()
		WHERE id = $1 AND status <> $3
	`, id, status, StatusArchived)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAssignedChannel records the channel the decision engine routed the lead to.
func (r *Repository) SetAssignedChannel(ctx context.Context, id uuid.UUID, channel string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET assigned_channel = $2, updated_at = now() WHERE id = $1
	`, id, channel)
	return err
}

// MergeScore merges a recomputed qualification score. The stored score never
// regresses: concurrent writers merge via GREATEST, not last-write-wins.
func (r *Repository) MergeScore(ctx context.Context, id uuid.UUID, score int) (int, error) {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var merged int
	err := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET qualification_score = GREATEST(qualification_score, $2), updated_at = now()
		WHERE id = $1
		RETURNING qualification_score
	`, id, score).Scan(&merged)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return merged, nil
}

// GetContext loads the lead's shared cross-channel context, returning an
// empty context when none has been written yet.
func (r *Repository) GetContext(ctx context.Context, leadID uuid.UUID) (Context, error) {
	var lc Context
	var prefs []byte
	err := r.pool.QueryRow(ctx, `
		SELECT lead_id, notes, preferences, updated_at FROM lead_context WHERE lead_id = $1
	`, leadID).Scan(&lc.LeadID, &lc.Notes, &prefs, &lc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Context{LeadID: leadID, Preferences: map[string]any{}}, nil
		}
		return Context{}, err
	}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &lc.Preferences); err != nil {
			return Context{}, err
		}
	}
	return lc, nil
}

// UpsertContext writes the lead's shared context.
func (r *Repository) UpsertContext(ctx context.Context, lc Context) error {
	prefs := lc.Preferences
	if prefs == nil {
		prefs = map[string]any{}
	}
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO lead_context (lead_id, notes, preferences, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (lead_id)
		DO UPDATE SET notes = EXCLUDED.notes, preferences = EXCLUDED.preferences, updated_at = now()
	`, lc.LeadID, lc.Notes, prefsJSON)
	return err
}
