// Package coordination serializes outreach when a campaign assigns several
// agents and channels to the same lead: it computes per-agent dispatch
// schedules, enforces the cross-channel minimum gap, aggregates cross-agent
// decision feedback, and tracks shared goal progress.
package coordination

import (
	"sort"
	"time"

	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
	"github.com/copp1723/ccl-3-final-sub003/internal/channels"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
)

// MessageCoordination is one planned outbound slot for an agent.
type MessageCoordination struct {
	AgentID       string
	Channel       string
	Priority      int
	ScheduledTime time.Time
}

// PlanSchedule computes the dispatch schedule for every agent assigned to the
// campaign, per its coordination strategy. Channels the lead has no contact
// info for are skipped.
func PlanSchedule(campaign campaigns.Campaign, lead leadsrepo.Lead, now time.Time, stagger time.Duration) []MessageCoordination {
	agents := campaign.AssignedAgents
	if len(agents) == 0 {
		return nil
	}
	chans := campaign.ChannelPreferences.Ordered()
	if len(chans) == 0 {
		return nil
	}

	var plan []MessageCoordination
	switch campaign.CoordinationStrategy {
	case campaigns.StrategyPriorityBased:
		plan = planPriorityBased(agents, chans[0], now, stagger)
	case campaigns.StrategyChannelSpecific:
		plan = planChannelSpecific(agents, chans, now, stagger)
	default:
		plan = planRoundRobin(agents, chans, now, stagger)
	}

	out := plan[:0]
	for _, mc := range plan {
		if lead.HasChannel(mc.Channel) {
			out = append(out, mc)
		}
	}
	return out
}

// planRoundRobin cycles channels across agents by index, staggering each slot
// by a fixed per-index offset.
func planRoundRobin(agents []campaigns.Agent, chans []string, now time.Time, stagger time.Duration) []MessageCoordination {
	out := make([]MessageCoordination, 0, len(agents))
	for i, agent := range agents {
		out = append(out, MessageCoordination{
			AgentID:       agent.ID,
			Channel:       chans[i%len(chans)],
			Priority:      agent.Priority,
			ScheduledTime: now.Add(time.Duration(i) * stagger),
		})
	}
	return out
}

// planPriorityBased points every agent at the primary channel, staggered by
// priority rank so higher-priority agents go first.
func planPriorityBased(agents []campaigns.Agent, primary string, now time.Time, stagger time.Duration) []MessageCoordination {
	ranked := append([]campaigns.Agent(nil), agents...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority > ranked[j].Priority
	})

	out := make([]MessageCoordination, 0, len(ranked))
	for rank, agent := range ranked {
		out = append(out, MessageCoordination{
			AgentID:       agent.ID,
			Channel:       primary,
			Priority:      agent.Priority,
			ScheduledTime: now.Add(time.Duration(rank) * stagger),
		})
	}
	return out
}

// planChannelSpecific assigns agent 0 the primary channel and agent k>0 the
// (k-1)th fallback. Agents beyond the configured list wrap into the default
// channel rotation.
func planChannelSpecific(agents []campaigns.Agent, chans []string, now time.Time, stagger time.Duration) []MessageCoordination {
	rotation := channels.All()
	out := make([]MessageCoordination, 0, len(agents))
	for i, agent := range agents {
		var ch string
		if i < len(chans) {
			ch = chans[i]
		} else {
			ch = rotation[(i-len(chans))%len(rotation)]
		}
		out = append(out, MessageCoordination{
			AgentID:       agent.ID,
			Channel:       ch,
			Priority:      agent.Priority,
			ScheduledTime: now.Add(time.Duration(i) * stagger),
		})
	}
	return out
}
