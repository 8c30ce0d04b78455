package handover

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("handover record not found")

// Destination kinds.
const (
	KindCRM         = "crm"
	KindMarketplace = "marketplace"
	KindWebhook     = "webhook"
	KindEmailNotify = "email_notify"
)

// Destination is one configured delivery target for a campaign's handovers.
type Destination struct {
	ID           uuid.UUID
	CampaignID   uuid.UUID
	Type         string
	Endpoint     string
	Auth         map[string]string
	FieldMapping map[string]string
	Active       bool
	CreatedAt    time.Time
}

// Delivery is the latest result for one (lead, destination) pair. SucceededAt
// is set at most once; a succeeded delivery is never re-attempted.
type Delivery struct {
	LeadID        uuid.UUID
	DestinationID uuid.UUID
	Attempts      int
	LastError     *string
	ExternalID    *string
	SucceededAt   *time.Time
	UpdatedAt     time.Time
}

// Succeeded reports whether this destination has already accepted the lead.
func (d Delivery) Succeeded() bool { return d.SucceededAt != nil }

// HandoverRepository is the persistence boundary for destinations and
// per-destination delivery state.
type HandoverRepository interface {
	CreateDestination(ctx context.Context, dest Destination) (Destination, error)
	ListActiveByCampaign(ctx context.Context, campaignID uuid.UUID) ([]Destination, error)
	RecordAttempt(ctx context.Context, leadID, destinationID uuid.UUID, externalID *string, attemptErr error) (Delivery, error)
	ListDeliveriesByLead(ctx context.Context, leadID uuid.UUID) ([]Delivery, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateDestination(ctx context.Context, dest Destination) (Destination, error) {
	auth, err := json.Marshal(orEmpty(dest.Auth))
	if err != nil {
		return Destination{}, err
	}
	mapping, err := json.Marshal(orEmpty(dest.FieldMapping))
	if err != nil {
		return Destination{}, err
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO handover_destinations (campaign_id, type, endpoint, auth, field_mapping, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, dest.CampaignID, dest.Type, dest.Endpoint, auth, mapping, dest.Active).Scan(&dest.ID, &dest.CreatedAt)
	if err != nil {
		return Destination{}, err
	}
	return dest, nil
}

func (r *Repository) ListActiveByCampaign(ctx context.Context, campaignID uuid.UUID) ([]Destination, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, campaign_id, type, endpoint, auth, field_mapping, active, created_at
		FROM handover_destinations
		WHERE campaign_id = $1 AND active
		ORDER BY created_at ASC
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Destination, 0)
	for rows.Next() {
		var d Destination
		var auth, mapping []byte
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.Type, &d.Endpoint, &auth, &mapping, &d.Active, &d.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(auth, &d.Auth); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(mapping, &d.FieldMapping); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// RecordAttempt upserts the delivery row for (lead, destination). Attempts
// always increment; succeeded_at is only ever written once, so success stays
// final even if a duplicate attempt reports a failure afterwards.
func (r *Repository) RecordAttempt(ctx context.Context, leadID, destinationID uuid.UUID, externalID *string, attemptErr error) (Delivery, error) {
	var lastError *string
	if attemptErr != nil {
		msg := attemptErr.Error()
		lastError = &msg
	}
	succeeded := attemptErr == nil

	row := r.pool.QueryRow(ctx, `
		INSERT INTO handover_deliveries (lead_id, destination_id, attempts, last_error, external_id, succeeded_at, updated_at)
		VALUES ($1, $2, 1, $3, $4, CASE WHEN $5 THEN now() END, now())
		ON CONFLICT (lead_id, destination_id) DO UPDATE SET
			attempts = handover_deliveries.attempts + 1,
			last_error = EXCLUDED.last_error,
			external_id = COALESCE(handover_deliveries.external_id, EXCLUDED.external_id),
			succeeded_at = COALESCE(handover_deliveries.succeeded_at, EXCLUDED.succeeded_at),
			updated_at = now()
		RETURNING lead_id, destination_id, attempts, last_error, external_id, succeeded_at, updated_at
	`, leadID, destinationID, lastError, externalID, succeeded)

	return scanDelivery(row)
}

func (r *Repository) ListDeliveriesByLead(ctx context.Context, leadID uuid.UUID) ([]Delivery, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT lead_id, destination_id, attempts, last_error, external_id, succeeded_at, updated_at
		FROM handover_deliveries
		WHERE lead_id = $1
		ORDER BY updated_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Delivery, 0)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	err := row.Scan(&d.LeadID, &d.DestinationID, &d.Attempts, &d.LastError, &d.ExternalID, &d.SucceededAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Delivery{}, ErrNotFound
		}
		return Delivery{}, err
	}
	return d, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

var _ HandoverRepository = (*Repository)(nil)
