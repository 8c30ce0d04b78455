package coordination

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
)

func fullyContactable() leadsrepo.Lead {
	email := "lead@example.com"
	phone := "+15550001111"
	return leadsrepo.Lead{ID: uuid.New(), Email: &email, Phone: &phone}
}

func TestRoundRobinStaggersAgentsByInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	campaign := campaigns.Campaign{
		CoordinationStrategy: campaigns.StrategyRoundRobin,
		ChannelPreferences:   campaigns.ChannelPreferences{Primary: "email", Fallbacks: []string{"sms"}},
		AssignedAgents: []campaigns.Agent{
			{ID: "agent-0"},
			{ID: "agent-1"},
		},
	}

	plan := PlanSchedule(campaign, fullyContactable(), now, time.Hour)
	if len(plan) != 2 {
		t.Fatalf("plan size = %d, want 2", len(plan))
	}
	if !plan[0].ScheduledTime.Equal(now) {
		t.Fatalf("agent-0 scheduled at %v, want %v", plan[0].ScheduledTime, now)
	}
	if !plan[1].ScheduledTime.Equal(now.Add(time.Hour)) {
		t.Fatalf("agent-1 scheduled at %v, want %v", plan[1].ScheduledTime, now.Add(time.Hour))
	}
	if plan[0].Channel != "email" || plan[1].Channel != "sms" {
		t.Fatalf("channels = %s, %s; want email, sms", plan[0].Channel, plan[1].Channel)
	}
}

func TestRoundRobinCyclesChannelsPastListLength(t *testing.T) {
	campaign := campaigns.Campaign{
		CoordinationStrategy: campaigns.StrategyRoundRobin,
		ChannelPreferences:   campaigns.ChannelPreferences{Primary: "email", Fallbacks: []string{"sms"}},
		AssignedAgents: []campaigns.Agent{
			{ID: "a"}, {ID: "b"}, {ID: "c"},
		},
	}

	plan := PlanSchedule(campaign, fullyContactable(), time.Now(), time.Minute)
	if plan[2].Channel != "email" {
		t.Fatalf("third agent channel = %s, want wrap back to email", plan[2].Channel)
	}
}

func TestPriorityBasedTargetsPrimaryInRankOrder(t *testing.T) {
	now := time.Now()
	campaign := campaigns.Campaign{
		CoordinationStrategy: campaigns.StrategyPriorityBased,
		ChannelPreferences:   campaigns.ChannelPreferences{Primary: "email", Fallbacks: []string{"sms"}},
		AssignedAgents: []campaigns.Agent{
			{ID: "low", Priority: 1},
			{ID: "high", Priority: 9},
		},
	}

	plan := PlanSchedule(campaign, fullyContactable(), now, 30*time.Minute)
	if plan[0].AgentID != "high" {
		t.Fatalf("first slot = %s, want the higher-priority agent", plan[0].AgentID)
	}
	for i, slot := range plan {
		if slot.Channel != "email" {
			t.Fatalf("slot %d channel = %s, want email", i, slot.Channel)
		}
	}
	if !plan[1].ScheduledTime.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("second slot at %v, want +30m", plan[1].ScheduledTime)
	}
}

func TestChannelSpecificAssignsFallbacksThenRotates(t *testing.T) {
	campaign := campaigns.Campaign{
		CoordinationStrategy: campaigns.StrategyChannelSpecific,
		ChannelPreferences:   campaigns.ChannelPreferences{Primary: "email", Fallbacks: []string{"sms"}},
		AssignedAgents: []campaigns.Agent{
			{ID: "a"}, {ID: "b"}, {ID: "c"},
		},
	}

	plan := PlanSchedule(campaign, fullyContactable(), time.Now(), time.Minute)
	if plan[0].Channel != "email" || plan[1].Channel != "sms" {
		t.Fatalf("first two channels = %s, %s; want email, sms", plan[0].Channel, plan[1].Channel)
	}
	// Agent c exhausted the configured list and falls into the default
	// rotation, which chat is part of.
	if plan[2].Channel != "email" {
		t.Fatalf("third channel = %s, want the rotation's first entry", plan[2].Channel)
	}
}

func TestPlanSkipsChannelsLeadCannotReceive(t *testing.T) {
	campaign := campaigns.Campaign{
		CoordinationStrategy: campaigns.StrategyRoundRobin,
		ChannelPreferences:   campaigns.ChannelPreferences{Primary: "email", Fallbacks: []string{"sms"}},
		AssignedAgents: []campaigns.Agent{
			{ID: "a"}, {ID: "b"},
		},
	}
	email := "lead@example.com"
	emailOnly := leadsrepo.Lead{ID: uuid.New(), Email: &email}

	plan := PlanSchedule(campaign, emailOnly, time.Now(), time.Minute)
	for _, slot := range plan {
		if slot.Channel == "sms" {
			t.Fatal("plan includes sms for a lead with no phone")
		}
	}
}
