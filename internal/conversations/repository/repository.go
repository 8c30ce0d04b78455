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

var ErrNotFound = errors.New("conversation not found")

// Conversation modes. TEMPLATE_MODE switches to AI_MODE at most once and
// never reverses; COMPLETED is terminal.
const (
	ModeTemplate        = "TEMPLATE_MODE"
	ModeAI              = "AI_MODE"
	ModeHandoverPending = "HANDOVER_PENDING"
	ModeCompleted       = "COMPLETED"
)

// Message roles.
const (
	RoleAgent = "agent"
	RoleLead  = "lead"
)

type Conversation struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	CampaignID    uuid.UUID
	AgentID       string
	Channel       string
	Mode          string
	TemplateStage int
	GoalProgress  map[string]int
	LastSentAt    *time.Time
	StartedAt     time.Time
	CompletedAt   *time.Time
}

type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	IsScripted     bool
	CreatedAt      time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const convColumns = `id, lead_id, campaign_id, agent_id, channel, mode, template_stage, goal_progress, last_sent_at, started_at, completed_at`

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	var progress []byte
	err := row.Scan(
		&c.ID, &c.LeadID, &c.CampaignID, &c.AgentID, &c.Channel, &c.Mode,
		&c.TemplateStage, &progress, &c.LastSentAt, &c.StartedAt, &c.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	c.GoalProgress = map[string]int{}
	if len(progress) > 0 {
		if err := json.Unmarshal(progress, &c.GoalProgress); err != nil {
			return Conversation{}, err
		}
	}
	return c, nil
}

// EnsureActive returns the active conversation for (lead, channel), creating
// it when none exists. The partial unique index guarantees at most one.
func (r *Repository) EnsureActive(ctx context.Context, leadID, campaignID uuid.UUID, agentID, channel string) (Conversation, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversations (lead_id, campaign_id, agent_id, channel)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (lead_id, channel) WHERE mode <> 'COMPLETED' DO NOTHING
	`, leadID, campaignID, agentID, channel)
	if err != nil {
		return Conversation{}, err
	}
	return r.GetActive(ctx, leadID, channel)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Conversation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+convColumns+` FROM conversations WHERE id = $1`, id)
	return scanConversation(row)
}

// GetActive returns the single non-completed conversation for (lead, channel).
func (r *Repository) GetActive(ctx context.Context, leadID uuid.UUID, channel string) (Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+convColumns+` FROM conversations
		WHERE lead_id = $1 AND channel = $2 AND mode <> 'COMPLETED'
	`, leadID, channel)
	return scanConversation(row)
}

// ListActiveByLead returns all non-completed conversations for a lead across
// channels.
func (r *Repository) ListActiveByLead(ctx context.Context, leadID uuid.UUID) ([]Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+convColumns+` FROM conversations
		WHERE lead_id = $1 AND mode <> 'COMPLETED'
		ORDER BY started_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// AdvanceStage is the compare-and-set guard for scripted dispatch: it moves
// template_stage from fromStage to fromStage+1 only while the conversation is
// still in TEMPLATE_MODE at exactly that stage. A false return means the
// caller must not send — the conversation left the mode or the stage was
// already dispatched.
func (r *Repository) AdvanceStage(ctx context.Context, id uuid.UUID, fromStage int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET template_stage = $2 + 1, last_sent_at = now()
		WHERE id = $1 AND mode = $3 AND template_stage = $2
	`, id, fromStage, ModeTemplate)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SwitchToAI transitions TEMPLATE_MODE to AI_MODE. The transition happens at
// most once; a false return means another writer already switched or the
// conversation was never in TEMPLATE_MODE.
func (r *Repository) SwitchToAI(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations SET mode = $2 WHERE id = $1 AND mode = $3
	`, id, ModeAI, ModeTemplate)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkHandoverPending transitions AI_MODE to HANDOVER_PENDING.
func (r *Repository) MarkHandoverPending(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations SET mode = $2 WHERE id = $1 AND mode = $3
	`, id, ModeHandoverPending, ModeAI)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Complete marks the conversation COMPLETED. Terminal; idempotent.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET mode = $2, completed_at = now()
		WHERE id = $1 AND mode <> $2
	`, id, ModeCompleted)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// TouchLastSent records an outbound dispatch outside of stage advancement.
func (r *Repository) TouchLastSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE conversations SET last_sent_at = now() WHERE id = $1`, id)
	return err
}

// MergeGoalProgress adds delta to the named goal counter. Increments are
// additive so concurrent channels never lose progress.
func (r *Repository) MergeGoalProgress(ctx context.Context, id uuid.UUID, goal string, delta int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET goal_progress = jsonb_set(
			goal_progress,
			ARRAY[$2],
			to_jsonb(COALESCE((goal_progress->>$2)::int, 0) + $3)
		)
		WHERE id = $1
	`, id, goal, delta)
	return err
}

// AppendMessage appends to the ordered message list.
func (r *Repository) AppendMessage(ctx context.Context, conversationID uuid.UUID, role, content string, scripted bool) (Message, error) {
	msg := Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		IsScripted:     scripted,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO conversation_messages (conversation_id, role, content, is_scripted)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, conversationID, role, content, scripted).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// ListMessages returns the full ordered history for a conversation.
func (r *Repository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, is_scripted, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.IsScripted, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
