package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
	"github.com/copp1723/ccl-3-final-sub003/internal/channels"
	"github.com/copp1723/ccl-3-final-sub003/internal/coordination"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/platform/ai"
	"github.com/copp1723/ccl-3-final-sub003/platform/apperr"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
	"github.com/copp1723/ccl-3-final-sub003/platform/validator"
)

const actorEngine = "decision_engine"

// Coordinator is the slice of the coordination hub the engine consults before
// acting on consequential decisions.
type Coordinator interface {
	Coordinate(ctx context.Context, ballot coordination.Ballot) (coordination.Consensus, error)
}

// aiDecision is the structured payload the adaptive-text capability must
// produce. Anything that fails strict validation is discarded whole; there is
// no partial recovery of a malformed payload.
type aiDecision struct {
	Action    string `json:"action" validate:"required,oneof=assign_channel continue_conversation trigger_handover archive"`
	Channel   string `json:"channel" validate:"omitempty,oneof=email sms chat"`
	Priority  string `json:"priority" validate:"required,oneof=low medium high"`
	Reasoning string `json:"reasoning" validate:"required"`
}

// Service is the decision engine.
type Service struct {
	leads     leadsrepo.LeadsRepository
	campaigns campaigns.CampaignsRepository
	decisions DecisionsRepository
	generator ai.TextGenerator
	validate  *validator.Validator
	hub       Coordinator
	log       *logger.Logger
}

func NewService(
	leads leadsrepo.LeadsRepository,
	campaignsRepo campaigns.CampaignsRepository,
	decisions DecisionsRepository,
	generator ai.TextGenerator,
	validate *validator.Validator,
	hub Coordinator,
	log *logger.Logger,
) *Service {
	return &Service{
		leads:     leads,
		campaigns: campaignsRepo,
		decisions: decisions,
		generator: generator,
		validate:  validate,
		hub:       hub,
		log:       log,
	}
}

// Decide routes a lead: it picks the outreach channel, asks the adaptive
// capability for a structured decision, and persists exactly one audit record
// for this invocation. A malformed or invalid payload never halts the
// pipeline; the engine substitutes the deterministic safe decision and
// records the failure as a processing_error.
func (s *Service) Decide(ctx context.Context, leadID uuid.UUID) (Decision, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return Decision{}, apperr.Internal("failed to load lead", err)
	}
	if lead.CampaignID == nil {
		return Decision{}, apperr.Validation("lead has no campaign")
	}
	campaign, err := s.campaigns.GetByID(ctx, *lead.CampaignID)
	if err != nil {
		return Decision{}, apperr.Internal("failed to load campaign", err)
	}

	channel := s.pickChannel(lead, campaign)

	decision, parseErr := s.solicitDecision(ctx, lead, campaign, channel)
	if parseErr != nil {
		return s.recordProcessingError(ctx, lead, channel, parseErr)
	}

	if requiresCoordination(decision.Action) {
		consensus, err := s.hub.Coordinate(ctx, coordination.Ballot{
			LeadID:     lead.ID,
			CampaignID: campaign.ID,
			AgentID:    actorEngine,
			Action:     decision.Action,
			Reasoning:  decision.Reasoning,
		})
		if err != nil {
			return Decision{}, err
		}
		if !consensus.Approved {
			s.log.WithLeadID(leadID.String()).Info("consensus rejected decision, continuing conversation",
				"action", decision.Action, "confidence", consensus.Confidence)
			decision = aiDecision{
				Action:    ActionContinueConversation,
				Channel:   channel,
				Priority:  "medium",
				Reasoning: fmt.Sprintf("consensus rejected %s (confidence %.2f)", decision.Action, consensus.Confidence),
			}
		}
	}

	if decision.Channel == "" {
		decision.Channel = channel
	}
	if err := s.applySideEffects(ctx, lead, decision); err != nil {
		return Decision{}, err
	}

	record, err := s.decisions.Create(ctx, Decision{
		LeadID:    lead.ID,
		Actor:     actorEngine,
		Action:    decision.Action,
		Reasoning: decision.Reasoning,
		Data: map[string]any{
			"channel":  decision.Channel,
			"priority": decision.Priority,
		},
	})
	if err != nil {
		return Decision{}, apperr.Internal("failed to record decision", err)
	}

	s.log.DecisionEvent(lead.ID.String(), record.Action, record.Reasoning)
	return record, nil
}

// pickChannel intersects the campaign's channel preference order with the
// channels the lead is reachable on. Channel selection never blocks: with no
// overlap the engine falls back to chat, which needs no prior contact info,
// and logs the degraded decision.
func (s *Service) pickChannel(lead leadsrepo.Lead, campaign campaigns.Campaign) string {
	for _, ch := range campaign.ChannelPreferences.Ordered() {
		if channels.IsValid(ch) && lead.HasChannel(ch) {
			return ch
		}
	}
	s.log.WithLeadID(lead.ID.String()).Warn("no preferred channel reachable, degrading to chat",
		"preferences", strings.Join(campaign.ChannelPreferences.Ordered(), ","))
	return channels.ChannelChat
}

// solicitDecision asks the adaptive capability for a structured decision and
// validates it strictly.
func (s *Service) solicitDecision(ctx context.Context, lead leadsrepo.Lead, campaign campaigns.Campaign, channel string) (aiDecision, error) {
	prompt := buildDecisionPrompt(lead, campaign, channel)
	raw, err := s.generator.Generate(ctx, decisionSystemInstructions, prompt)
	if err != nil {
		return aiDecision{}, fmt.Errorf("decision generation failed: %w", err)
	}

	var decision aiDecision
	if err := json.Unmarshal([]byte(stripFences(raw)), &decision); err != nil {
		return aiDecision{}, fmt.Errorf("unparseable decision payload: %w", err)
	}
	if err := s.validate.Struct(decision); err != nil {
		return aiDecision{}, fmt.Errorf("decision payload failed validation: %w", err)
	}
	return decision, nil
}

// recordProcessingError applies the deterministic safe decision and persists
// the failure as this invocation's single audit record.
func (s *Service) recordProcessingError(ctx context.Context, lead leadsrepo.Lead, channel string, cause error) (Decision, error) {
	s.log.WithLeadID(lead.ID.String()).Warn("substituting safe decision", "error", cause.Error())

	safe := aiDecision{
		Action:    ActionAssignChannel,
		Channel:   channel,
		Priority:  "medium",
		Reasoning: "deterministic fallback after malformed decision payload",
	}
	if err := s.applySideEffects(ctx, lead, safe); err != nil {
		return Decision{}, err
	}

	record, err := s.decisions.Create(ctx, Decision{
		LeadID:    lead.ID,
		Actor:     actorEngine,
		Action:    ActionProcessingError,
		Reasoning: cause.Error(),
		Data: map[string]any{
			"applied_action": safe.Action,
			"channel":        safe.Channel,
			"priority":       safe.Priority,
		},
	})
	if err != nil {
		return Decision{}, apperr.Internal("failed to record decision", err)
	}
	return record, nil
}

func (s *Service) applySideEffects(ctx context.Context, lead leadsrepo.Lead, decision aiDecision) error {
	switch decision.Action {
	case ActionAssignChannel:
		if err := s.leads.SetAssignedChannel(ctx, lead.ID, decision.Channel); err != nil {
			return apperr.Internal("failed to assign channel", err)
		}
	case ActionArchive:
		if err := s.leads.UpdateStatus(ctx, lead.ID, leadsrepo.StatusArchived); err != nil {
			return apperr.Internal("failed to archive lead", err)
		}
	}
	return nil
}

// requiresCoordination flags the actions consequential enough to put before
// the other assigned agents first.
func requiresCoordination(action string) bool {
	return action == ActionTriggerHandover || action == ActionArchive
}

const decisionSystemInstructions = `You route car-loan leads for an automated outreach team.
Respond with a single JSON object and nothing else:
{"action": "assign_channel|continue_conversation|trigger_handover|archive", "channel": "email|sms|chat", "priority": "low|medium|high", "reasoning": "one sentence"}`

func buildDecisionPrompt(lead leadsrepo.Lead, campaign campaigns.Campaign, channel string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lead: %s (status %s, score %d)\n", lead.Name, lead.Status, lead.QualificationScore)
	fmt.Fprintf(&b, "Reachable channel: %s\n", channel)
	fmt.Fprintf(&b, "Campaign: %s, strategy %s\n", campaign.Name, campaign.CoordinationStrategy)
	if threshold := campaign.QualificationCriteria.MinScore; threshold > 0 {
		fmt.Fprintf(&b, "Qualification minimum score: %d\n", threshold)
	}
	b.WriteString("Decide the next action for this lead.")
	return b.String()
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one.
func stripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
