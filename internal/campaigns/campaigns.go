// Package campaigns holds the outreach policy configuration: goals,
// qualification and handover criteria, channel preferences, assigned agents,
// and the coordination strategy.
package campaigns

import (
	"time"

	"github.com/google/uuid"
)

// Coordination strategies.
const (
	StrategyRoundRobin      = "round_robin"
	StrategyPriorityBased   = "priority_based"
	StrategyChannelSpecific = "channel_specific"
)

// Goal is a named numeric target tracked per (campaign, lead).
type Goal struct {
	Name   string `json:"name"`
	Target int    `json:"target"`
}

// QualificationCriteria gate a lead before handover is considered.
type QualificationCriteria struct {
	MinScore       int      `json:"minScore"`
	RequiredFields []string `json:"requiredFields"`
	RequiredGoals  []string `json:"requiredGoals"`
}

// HandoverCriteria define when a conversation is handed to a human or
// external system. Each criterion is evaluated independently.
type HandoverCriteria struct {
	ScoreThreshold   int      `json:"scoreThreshold"`
	LengthThreshold  int      `json:"lengthThreshold"`
	KeywordTriggers  []string `json:"keywordTriggers"`
	RequiredGoals    []string `json:"requiredGoals"`
	TimeThresholdMin int      `json:"timeThresholdMinutes"`
}

// ChannelPreferences order the campaign's outreach channels.
type ChannelPreferences struct {
	Primary   string   `json:"primary"`
	Fallbacks []string `json:"fallbacks"`
}

// Ordered returns primary followed by the fallback list.
func (p ChannelPreferences) Ordered() []string {
	out := make([]string, 0, 1+len(p.Fallbacks))
	if p.Primary != "" {
		out = append(out, p.Primary)
	}
	return append(out, p.Fallbacks...)
}

// Agent describes one automated agent assigned to a campaign.
type Agent struct {
	ID           string   `json:"id"`
	Role         string   `json:"role"`
	Capabilities []string `json:"capabilities"`
	Priority     int      `json:"priority"`
}

// Campaign is the configured outreach policy.
type Campaign struct {
	ID                    uuid.UUID             `json:"id"`
	Name                  string                `json:"name"`
	Goals                 []Goal                `json:"goals"`
	QualificationCriteria QualificationCriteria `json:"qualificationCriteria"`
	HandoverCriteria      HandoverCriteria      `json:"handoverCriteria"`
	ChannelPreferences    ChannelPreferences    `json:"channelPreferences"`
	AssignedAgents        []Agent               `json:"assignedAgents"`
	CoordinationStrategy  string                `json:"coordinationStrategy"`
	TemplatePack          string                `json:"templatePack"`
	Active                bool                  `json:"active"`
	CreatedAt             time.Time             `json:"createdAt"`
	UpdatedAt             time.Time             `json:"updatedAt"`
}

// RequiredGoalNames returns the campaign's required goal set for completion
// tracking, falling back to all goal names when none are marked required.
func (c Campaign) RequiredGoalNames() []string {
	if len(c.QualificationCriteria.RequiredGoals) > 0 {
		return c.QualificationCriteria.RequiredGoals
	}
	names := make([]string, 0, len(c.Goals))
	for _, g := range c.Goals {
		names = append(names, g.Name)
	}
	return names
}

// GoalTarget returns the target for a named goal, defaulting to 1 for goals
// tracked without explicit configuration.
func (c Campaign) GoalTarget(name string) int {
	for _, g := range c.Goals {
		if g.Name == name {
			if g.Target > 0 {
				return g.Target
			}
			return 1
		}
	}
	return 1
}
