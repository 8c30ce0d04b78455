package campaigns

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("campaign not found")

// CampaignsRepository is the persistence boundary for campaigns.
type CampaignsRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Campaign, error)
	Create(ctx context.Context, campaign Campaign) (Campaign, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

var _ CampaignsRepository = (*Repository)(nil)

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Campaign, error) {
	var c Campaign
	var goals, qual, handover, channels, agents []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, goals, qualification_criteria, handover_criteria,
			channel_preferences, assigned_agents, coordination_strategy,
			template_pack, active, created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Name, &goals, &qual, &handover,
		&channels, &agents, &c.CoordinationStrategy,
		&c.TemplatePack, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}

	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{goals, &c.Goals},
		{qual, &c.QualificationCriteria},
		{handover, &c.HandoverCriteria},
		{channels, &c.ChannelPreferences},
		{agents, &c.AssignedAgents},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return Campaign{}, err
		}
	}

	return c, nil
}

func (r *Repository) Create(ctx context.Context, campaign Campaign) (Campaign, error) {
	goals, err := json.Marshal(campaign.Goals)
	if err != nil {
		return Campaign{}, err
	}
	qual, err := json.Marshal(campaign.QualificationCriteria)
	if err != nil {
		return Campaign{}, err
	}
	handover, err := json.Marshal(campaign.HandoverCriteria)
	if err != nil {
		return Campaign{}, err
	}
	channels, err := json.Marshal(campaign.ChannelPreferences)
	if err != nil {
		return Campaign{}, err
	}
	agents, err := json.Marshal(campaign.AssignedAgents)
	if err != nil {
		return Campaign{}, err
	}

	if campaign.CoordinationStrategy == "" {
		campaign.CoordinationStrategy = StrategyRoundRobin
	}
	if campaign.TemplatePack == "" {
		campaign.TemplatePack = "default"
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (name, goals, qualification_criteria, handover_criteria,
			channel_preferences, assigned_agents, coordination_strategy, template_pack, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING id, created_at, updated_at
	`, campaign.Name, goals, qual, handover, channels, agents,
		campaign.CoordinationStrategy, campaign.TemplatePack,
	).Scan(&campaign.ID, &campaign.CreatedAt, &campaign.UpdatedAt)
	if err != nil {
		return Campaign{}, err
	}

	campaign.Active = true
	return campaign, nil
}
