package repository

import (
	"context"

	"github.com/google/uuid"
)

// LeadsRepository is the persistence boundary for leads. Services depend on
// this interface so tests can substitute fakes.
type LeadsRepository interface {
	Create(ctx context.Context, params CreateLeadParams) (Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	GetByEmail(ctx context.Context, email string) (Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SetAssignedChannel(ctx context.Context, id uuid.UUID, channel string) error
	MergeScore(ctx context.Context, id uuid.UUID, score int) (int, error)
	GetContext(ctx context.Context, leadID uuid.UUID) (Context, error)
	UpsertContext(ctx context.Context, lc Context) error
}

var _ LeadsRepository = (*Repository)(nil)
