package coordination

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
	"github.com/copp1723/ccl-3-final-sub003/internal/events"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/platform/apperr"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
)

// Dispatcher schedules a coordinated outbound slot for future execution.
type Dispatcher interface {
	EnqueueCoordinatedDispatch(ctx context.Context, leadID uuid.UUID, agentID, channel string, at time.Time) error
}

// Ballot is a decision submitted for cross-agent review before any one agent
// acts on it.
type Ballot struct {
	LeadID     uuid.UUID
	CampaignID uuid.UUID
	AgentID    string
	Action     string
	Reasoning  string
}

// Feedback is one agent's vote on a ballot.
type Feedback struct {
	AgentID    string
	Agrees     bool
	Confidence float64
}

// Consensus is the aggregated outcome of a coordination round.
type Consensus struct {
	Approved     bool
	Confidence   float64
	Participants int
}

// Advisor produces feedback on a ballot on behalf of one assigned agent.
type Advisor interface {
	Review(ctx context.Context, agent campaigns.Agent, ballot Ballot) (Feedback, error)
}

// Hub serializes multi-agent outreach for a lead and aggregates cross-agent
// decision feedback. State lives in the durable store, so a restarted worker
// picks up where the previous one left off.
type Hub struct {
	store      *Store
	campaigns  campaigns.CampaignsRepository
	leads      leadsrepo.LeadsRepository
	dispatcher Dispatcher
	advisor    Advisor
	broadcast  Broadcaster
	bus        events.Bus
	stagger    time.Duration
	log        *logger.Logger
}

func NewHub(
	store *Store,
	campaignsRepo campaigns.CampaignsRepository,
	leads leadsrepo.LeadsRepository,
	dispatcher Dispatcher,
	advisor Advisor,
	broadcast Broadcaster,
	bus events.Bus,
	stagger time.Duration,
	log *logger.Logger,
) *Hub {
	return &Hub{
		store:      store,
		campaigns:  campaignsRepo,
		leads:      leads,
		dispatcher: dispatcher,
		advisor:    advisor,
		broadcast:  broadcast,
		bus:        bus,
		stagger:    stagger,
		log:        log,
	}
}

// PlanOutreach computes the multi-agent schedule for a lead and enqueues one
// dispatch job per slot at its scheduled time.
func (h *Hub) PlanOutreach(ctx context.Context, campaignID, leadID uuid.UUID) ([]MessageCoordination, error) {
	campaign, err := h.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, apperr.Internal("failed to load campaign", err)
	}
	lead, err := h.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, apperr.Internal("failed to load lead", err)
	}

	plan := PlanSchedule(campaign, lead, time.Now(), h.stagger)
	for _, slot := range plan {
		if err := h.dispatcher.EnqueueCoordinatedDispatch(ctx, leadID, slot.AgentID, slot.Channel, slot.ScheduledTime); err != nil {
			return nil, apperr.Internal("failed to enqueue dispatch", err)
		}
	}

	h.log.WithLeadID(leadID.String()).Info("outreach planned",
		"strategy", campaign.CoordinationStrategy, "slots", len(plan))
	return plan, nil
}

// AllowSend enforces the cross-channel minimum gap for scripted and
// coordinated sends.
func (h *Hub) AllowSend(ctx context.Context, leadID uuid.UUID, channel string) (bool, error) {
	return h.store.ClaimSendSlot(ctx, leadID, channel)
}

// Coordinate solicits feedback from every other assigned agent and aggregates
// it by confidence-weighted majority. The consensus, with the original
// decision attached, goes to the event bus and the broker before the
// submitting agent acts.
func (h *Hub) Coordinate(ctx context.Context, ballot Ballot) (Consensus, error) {
	campaign, err := h.campaigns.GetByID(ctx, ballot.CampaignID)
	if err != nil {
		return Consensus{}, apperr.Internal("failed to load campaign", err)
	}

	var agreeWeight, disagreeWeight float64
	participants := 0
	for _, agent := range campaign.AssignedAgents {
		if agent.ID == ballot.AgentID {
			continue
		}
		fb, err := h.advisor.Review(ctx, agent, ballot)
		if err != nil {
			h.log.Warn("advisor review failed", "agent", agent.ID, "error", err.Error())
			continue
		}
		participants++
		if fb.Agrees {
			agreeWeight += fb.Confidence
		} else {
			disagreeWeight += fb.Confidence
		}
	}

	consensus := Consensus{
		// A lone agent's decision stands unreviewed.
		Approved:     participants == 0 || agreeWeight >= disagreeWeight,
		Participants: participants,
	}
	if total := agreeWeight + disagreeWeight; total > 0 {
		consensus.Confidence = agreeWeight / total
	} else {
		consensus.Confidence = 1
	}

	event := events.ConsensusReached{
		BaseEvent:        events.NewBaseEvent(),
		LeadID:           ballot.LeadID,
		OriginalDecision: ballot.Action,
		Approved:         consensus.Approved,
		Confidence:       consensus.Confidence,
		Participants:     consensus.Participants,
	}
	h.bus.Publish(ctx, event)
	if err := h.broadcast.Broadcast(ctx, "coordination.consensus", "consensus", event); err != nil {
		h.log.Warn("consensus broadcast failed", "error", err.Error())
	}
	return consensus, nil
}

// RecordInbound matches inbound content against the campaign's goal names and
// merges any hits into the shared progress counters. When every required goal
// reaches its target the completion event fires and counters reset.
func (h *Hub) RecordInbound(ctx context.Context, campaignID, leadID uuid.UUID, content string) error {
	campaign, err := h.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return apperr.Internal("failed to load campaign", err)
	}
	if len(campaign.Goals) == 0 {
		return nil
	}

	lowered := strings.ToLower(content)
	for _, goal := range campaign.Goals {
		if !goalMatches(lowered, goal.Name) {
			continue
		}
		current, err := h.store.IncrementGoal(ctx, campaignID, leadID, goal.Name, 1)
		if err != nil {
			return apperr.Unavailable("goal store unavailable", err)
		}

		event := events.GoalProgressUpdated{
			BaseEvent:  events.NewBaseEvent(),
			CampaignID: campaignID,
			LeadID:     leadID,
			Goal:       goal.Name,
			Current:    current,
			Target:     campaign.GoalTarget(goal.Name),
		}
		h.bus.Publish(ctx, event)
		if err := h.broadcast.Broadcast(ctx, "coordination.goal_update", "goal_update", event); err != nil {
			h.log.Warn("goal broadcast failed", "error", err.Error())
		}
	}

	return h.checkCompletion(ctx, campaign, leadID)
}

func (h *Hub) checkCompletion(ctx context.Context, campaign campaigns.Campaign, leadID uuid.UUID) error {
	required := campaign.RequiredGoalNames()
	if len(required) == 0 {
		return nil
	}

	progress, err := h.store.GoalProgress(ctx, campaign.ID, leadID)
	if err != nil {
		return apperr.Unavailable("goal store unavailable", err)
	}
	for _, name := range required {
		if progress[name] < campaign.GoalTarget(name) {
			return nil
		}
	}

	if err := h.store.ClearGoals(ctx, campaign.ID, leadID); err != nil {
		h.log.Warn("failed to clear goal counters", "error", err.Error())
	}

	h.log.WithLeadID(leadID.String()).Info("campaign goals completed", "campaign_id", campaign.ID.String())
	h.bus.Publish(ctx, events.GoalsCompleted{
		BaseEvent:  events.NewBaseEvent(),
		CampaignID: campaign.ID,
		LeadID:     leadID,
	})
	return nil
}

// goalMatches checks whether every word of the goal name appears in the
// content. Goal names read like "test drive scheduled"; underscores and
// hyphens separate words too.
func goalMatches(loweredContent, goalName string) bool {
	normalized := strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(goalName))
	for _, word := range strings.Fields(normalized) {
		if !strings.Contains(loweredContent, word) {
			return false
		}
	}
	return true
}

// CapabilityAdvisor votes by capability overlap: an agent agrees with an
// action it is itself capable of executing, with confidence scaled by its
// priority.
type CapabilityAdvisor struct{}

func (CapabilityAdvisor) Review(_ context.Context, agent campaigns.Agent, ballot Ballot) (Feedback, error) {
	agrees := len(agent.Capabilities) == 0
	for _, capability := range agent.Capabilities {
		if strings.EqualFold(capability, ballot.Action) {
			agrees = true
			break
		}
	}

	confidence := 0.5 + float64(agent.Priority)*0.05
	if confidence > 1 {
		confidence = 1
	}
	return Feedback{AgentID: agent.ID, Agrees: agrees, Confidence: confidence}, nil
}
