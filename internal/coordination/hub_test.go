package coordination

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
	"github.com/copp1723/ccl-3-final-sub003/internal/events"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
)

type stubCampaigns struct {
	campaign campaigns.Campaign
}

func (s *stubCampaigns) GetByID(context.Context, uuid.UUID) (campaigns.Campaign, error) {
	return s.campaign, nil
}

func (s *stubCampaigns) Create(_ context.Context, c campaigns.Campaign) (campaigns.Campaign, error) {
	return c, nil
}

type stubLeads struct {
	lead leadsrepo.Lead
}

func (s *stubLeads) Create(context.Context, leadsrepo.CreateLeadParams) (leadsrepo.Lead, error) {
	return s.lead, nil
}
func (s *stubLeads) GetByID(context.Context, uuid.UUID) (leadsrepo.Lead, error) {
	return s.lead, nil
}
func (s *stubLeads) GetByEmail(context.Context, string) (leadsrepo.Lead, error) {
	return s.lead, nil
}
func (s *stubLeads) UpdateStatus(context.Context, uuid.UUID, string) error       { return nil }
func (s *stubLeads) SetAssignedChannel(context.Context, uuid.UUID, string) error { return nil }
func (s *stubLeads) MergeScore(context.Context, uuid.UUID, int) (int, error)     { return 0, nil }
func (s *stubLeads) GetContext(_ context.Context, id uuid.UUID) (leadsrepo.Context, error) {
	return leadsrepo.Context{LeadID: id}, nil
}
func (s *stubLeads) UpsertContext(context.Context, leadsrepo.Context) error { return nil }

type stubDispatcher struct {
	mu    sync.Mutex
	slots []string
}

func (d *stubDispatcher) EnqueueCoordinatedDispatch(_ context.Context, _ uuid.UUID, agentID, channel string, _ time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.slots = append(d.slots, agentID+"/"+channel)
	return nil
}

type staticAdvisor struct {
	byAgent map[string]Feedback
}

func (a staticAdvisor) Review(_ context.Context, agent campaigns.Agent, _ Ballot) (Feedback, error) {
	return a.byAgent[agent.ID], nil
}

type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Subscribe(string, events.Handler) {}

func (b *captureBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *captureBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *captureBus) find(name string) (events.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e.EventName() == name {
			return e, true
		}
	}
	return nil, false
}

func newTestHub(t *testing.T, campaign campaigns.Campaign, advisor Advisor) (*Hub, *captureBus, *stubDispatcher) {
	t.Helper()
	store, _ := newTestStore(t, time.Minute)
	bus := &captureBus{}
	dispatcher := &stubDispatcher{}

	email := "lead@example.com"
	phone := "+15550001111"
	leads := &stubLeads{lead: leadsrepo.Lead{ID: uuid.New(), Email: &email, Phone: &phone}}

	hub := NewHub(store, &stubCampaigns{campaign: campaign}, leads, dispatcher, advisor,
		nopBroadcaster{}, bus, time.Hour, logger.New("development"))
	return hub, bus, dispatcher
}

func TestCoordinateWeighsFeedbackByConfidence(t *testing.T) {
	campaign := campaigns.Campaign{
		ID: uuid.New(),
		AssignedAgents: []campaigns.Agent{
			{ID: "proposer"},
			{ID: "weak-yes"},
			{ID: "strong-no"},
		},
	}
	advisor := staticAdvisor{byAgent: map[string]Feedback{
		"weak-yes":  {AgentID: "weak-yes", Agrees: true, Confidence: 0.3},
		"strong-no": {AgentID: "strong-no", Agrees: false, Confidence: 0.9},
	}}
	hub, bus, _ := newTestHub(t, campaign, advisor)

	consensus, err := hub.Coordinate(context.Background(), Ballot{
		LeadID:     uuid.New(),
		CampaignID: campaign.ID,
		AgentID:    "proposer",
		Action:     "trigger_handover",
	})
	if err != nil {
		t.Fatalf("Coordinate: %v", err)
	}

	if consensus.Approved {
		t.Fatal("expected rejection: disagree weight 0.9 > agree weight 0.3")
	}
	if consensus.Participants != 2 {
		t.Fatalf("participants = %d, want 2 (proposer excluded)", consensus.Participants)
	}

	e, ok := bus.find("coordination.consensus")
	if !ok {
		t.Fatal("consensus event not published")
	}
	if e.(events.ConsensusReached).OriginalDecision != "trigger_handover" {
		t.Fatal("consensus event must carry the original decision")
	}
}

func TestCoordinateWithNoPeersApproves(t *testing.T) {
	campaign := campaigns.Campaign{
		ID:             uuid.New(),
		AssignedAgents: []campaigns.Agent{{ID: "solo"}},
	}
	hub, _, _ := newTestHub(t, campaign, CapabilityAdvisor{})

	consensus, err := hub.Coordinate(context.Background(), Ballot{
		CampaignID: campaign.ID,
		AgentID:    "solo",
		Action:     "assign_channel",
	})
	if err != nil {
		t.Fatalf("Coordinate: %v", err)
	}
	if !consensus.Approved {
		t.Fatal("a lone agent's decision must stand")
	}
}

func TestRecordInboundFiresCompletionWhenAllGoalsMet(t *testing.T) {
	campaign := campaigns.Campaign{
		ID:    uuid.New(),
		Goals: []campaigns.Goal{{Name: "test drive", Target: 1}},
		QualificationCriteria: campaigns.QualificationCriteria{
			RequiredGoals: []string{"test drive"},
		},
	}
	hub, bus, _ := newTestHub(t, campaign, CapabilityAdvisor{})
	leadID := uuid.New()

	if err := hub.RecordInbound(context.Background(), campaign.ID, leadID, "can we set up a test drive this weekend?"); err != nil {
		t.Fatalf("RecordInbound: %v", err)
	}

	if _, ok := bus.find("coordination.goal_progress"); !ok {
		t.Fatal("goal progress event not published")
	}
	if _, ok := bus.find("coordination.goals_completed"); !ok {
		t.Fatal("completion event not published after required goal hit target")
	}
}

func TestRecordInboundIgnoresUnrelatedContent(t *testing.T) {
	campaign := campaigns.Campaign{
		ID:    uuid.New(),
		Goals: []campaigns.Goal{{Name: "test drive", Target: 1}},
	}
	hub, bus, _ := newTestHub(t, campaign, CapabilityAdvisor{})

	if err := hub.RecordInbound(context.Background(), campaign.ID, uuid.New(), "what color options do you have?"); err != nil {
		t.Fatalf("RecordInbound: %v", err)
	}
	if _, ok := bus.find("coordination.goal_progress"); ok {
		t.Fatal("unrelated content must not advance goals")
	}
}

func TestPlanOutreachEnqueuesEachSlot(t *testing.T) {
	campaign := campaigns.Campaign{
		ID:                   uuid.New(),
		CoordinationStrategy: campaigns.StrategyRoundRobin,
		ChannelPreferences:   campaigns.ChannelPreferences{Primary: "email", Fallbacks: []string{"sms"}},
		AssignedAgents:       []campaigns.Agent{{ID: "a0"}, {ID: "a1"}},
	}
	hub, _, dispatcher := newTestHub(t, campaign, CapabilityAdvisor{})

	plan, err := hub.PlanOutreach(context.Background(), campaign.ID, uuid.New())
	if err != nil {
		t.Fatalf("PlanOutreach: %v", err)
	}
	if len(plan) != 2 || len(dispatcher.slots) != 2 {
		t.Fatalf("plan = %d slots, enqueued = %d, want 2 and 2", len(plan), len(dispatcher.slots))
	}
	if dispatcher.slots[0] != "a0/email" || dispatcher.slots[1] != "a1/sms" {
		t.Fatalf("slots = %v", dispatcher.slots)
	}
}
