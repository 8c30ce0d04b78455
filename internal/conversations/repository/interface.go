package repository

import (
	"context"

	"github.com/google/uuid"
)

// ConversationsRepository is the persistence boundary for conversations.
// Mode and stage transitions are compare-and-set so concurrent timer and
// reply paths serialize at the database.
type ConversationsRepository interface {
	EnsureActive(ctx context.Context, leadID, campaignID uuid.UUID, agentID, channel string) (Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (Conversation, error)
	GetActive(ctx context.Context, leadID uuid.UUID, channel string) (Conversation, error)
	ListActiveByLead(ctx context.Context, leadID uuid.UUID) ([]Conversation, error)
	AdvanceStage(ctx context.Context, id uuid.UUID, fromStage int) (bool, error)
	SwitchToAI(ctx context.Context, id uuid.UUID) (bool, error)
	MarkHandoverPending(ctx context.Context, id uuid.UUID) (bool, error)
	Complete(ctx context.Context, id uuid.UUID) (bool, error)
	TouchLastSent(ctx context.Context, id uuid.UUID) error
	MergeGoalProgress(ctx context.Context, id uuid.UUID, goal string, delta int) error
	AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string, scripted bool) (Message, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error)
}

var _ ConversationsRepository = (*Repository)(nil)
