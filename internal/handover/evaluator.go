package handover

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
	convrepo "github.com/copp1723/ccl-3-final-sub003/internal/conversations/repository"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/internal/leads/scoring"
	"github.com/copp1723/ccl-3-final-sub003/platform/apperr"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
)

// GoalProgressReader exposes the shared goal counters for a (campaign, lead)
// pair. The coordination store satisfies this.
type GoalProgressReader interface {
	GoalProgress(ctx context.Context, campaignID, leadID uuid.UUID) (map[string]int, error)
}

// snapshot is everything the criteria are checked against.
type snapshot struct {
	Score        int
	MessageCount int
	InboundTexts []string
	GoalProgress map[string]int
	GoalTarget   func(string) int
	Elapsed      time.Duration
}

// Evaluator checks conversations against their campaign's handover criteria.
// Every criterion is evaluated on every call; the reason names all of them.
type Evaluator struct {
	leads     leadsrepo.LeadsRepository
	convos    convrepo.ConversationsRepository
	campaigns campaigns.CampaignsRepository
	goals     GoalProgressReader
	log       *logger.Logger
}

func NewEvaluator(
	leads leadsrepo.LeadsRepository,
	convos convrepo.ConversationsRepository,
	campaignsRepo campaigns.CampaignsRepository,
	goals GoalProgressReader,
	log *logger.Logger,
) *Evaluator {
	return &Evaluator{leads: leads, convos: convos, campaigns: campaignsRepo, goals: goals, log: log}
}

// Evaluate recomputes the lead's qualification score from current
// conversation signal, merges it into the lead record, and then checks all
// five criteria independently.
func (e *Evaluator) Evaluate(ctx context.Context, conversationID uuid.UUID) (bool, string, error) {
	conv, err := e.convos.GetByID(ctx, conversationID)
	if err != nil {
		return false, "", apperr.Internal("failed to load conversation", err)
	}
	lead, err := e.leads.GetByID(ctx, conv.LeadID)
	if err != nil {
		return false, "", apperr.Internal("failed to load lead", err)
	}
	campaign, err := e.campaigns.GetByID(ctx, conv.CampaignID)
	if err != nil {
		return false, "", apperr.Internal("failed to load campaign", err)
	}
	msgs, err := e.convos.ListMessages(ctx, conversationID)
	if err != nil {
		return false, "", apperr.Internal("failed to load messages", err)
	}
	progress, err := e.goals.GoalProgress(ctx, conv.CampaignID, conv.LeadID)
	if err != nil {
		return false, "", apperr.Unavailable("goal store unavailable", err)
	}

	inbound := inboundTexts(msgs)
	goalsDone := completedCount(campaign, progress)

	score := scoring.Compute(scoring.Input{
		HasEmail:       lead.Email != nil && *lead.Email != "",
		HasPhone:       lead.Phone != nil && *lead.Phone != "",
		InboundCount:   len(inbound),
		KeywordMatches: countKeywordHits(inbound, campaign.HandoverCriteria.KeywordTriggers),
		GoalsCompleted: goalsDone,
		GoalsRequired:  len(campaign.RequiredGoalNames()),
	})
	merged, err := e.leads.MergeScore(ctx, lead.ID, score)
	if err != nil {
		return false, "", apperr.Internal("failed to merge score", err)
	}

	triggered, reason := checkCriteria(campaign.HandoverCriteria, snapshot{
		Score:        merged,
		MessageCount: len(msgs),
		InboundTexts: inbound,
		GoalProgress: progress,
		GoalTarget:   campaign.GoalTarget,
		Elapsed:      time.Since(conv.StartedAt),
	})
	if triggered {
		e.log.WithLeadID(lead.ID.String()).Info("handover criteria met",
			"conversation_id", conversationID.String(), "reason", reason, "score", merged)
	}
	return triggered, reason, nil
}

// checkCriteria evaluates all five criteria and joins every one that holds
// into the reason. Criteria with a zero threshold are not configured and
// never fire.
func checkCriteria(c campaigns.HandoverCriteria, s snapshot) (bool, string) {
	var reasons []string

	if c.ScoreThreshold > 0 && s.Score >= c.ScoreThreshold {
		reasons = append(reasons, "qualification_score")
	}
	if c.LengthThreshold > 0 && s.MessageCount >= c.LengthThreshold {
		reasons = append(reasons, "conversation_length")
	}
	if hits := matchedKeywords(s.InboundTexts, c.KeywordTriggers); len(hits) > 0 {
		reasons = append(reasons, fmt.Sprintf("keyword_triggers: %s", strings.Join(hits, ", ")))
	}
	if len(c.RequiredGoals) > 0 && goalsSatisfied(c.RequiredGoals, s.GoalProgress, s.GoalTarget) {
		reasons = append(reasons, "goals_completed")
	}
	if c.TimeThresholdMin > 0 && s.Elapsed >= time.Duration(c.TimeThresholdMin)*time.Minute {
		reasons = append(reasons, "time_threshold")
	}

	return len(reasons) > 0, strings.Join(reasons, ", ")
}

// matchedKeywords returns every trigger with a case-insensitive substring hit
// in any inbound message, in configured order without duplicates.
func matchedKeywords(inbound, triggers []string) []string {
	var hits []string
	for _, trigger := range triggers {
		lowered := strings.ToLower(trigger)
		for _, text := range inbound {
			if strings.Contains(strings.ToLower(text), lowered) {
				hits = append(hits, trigger)
				break
			}
		}
	}
	return hits
}

func countKeywordHits(inbound, triggers []string) int {
	return len(matchedKeywords(inbound, triggers))
}

func goalsSatisfied(required []string, progress map[string]int, target func(string) int) bool {
	for _, name := range required {
		if progress[name] < target(name) {
			return false
		}
	}
	return true
}

func completedCount(campaign campaigns.Campaign, progress map[string]int) int {
	done := 0
	for _, name := range campaign.RequiredGoalNames() {
		if progress[name] >= campaign.GoalTarget(name) {
			done++
		}
	}
	return done
}

func inboundTexts(msgs []convrepo.Message) []string {
	var out []string
	for _, m := range msgs {
		if m.Role == convrepo.RoleLead {
			out = append(out, m.Content)
		}
	}
	return out
}
