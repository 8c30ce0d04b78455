package conversations

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
	"github.com/copp1723/ccl-3-final-sub003/internal/channels"
	"github.com/copp1723/ccl-3-final-sub003/internal/comms"
	convrepo "github.com/copp1723/ccl-3-final-sub003/internal/conversations/repository"
	"github.com/copp1723/ccl-3-final-sub003/internal/events"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
)

type fakeConvoRepo struct {
	mu       sync.Mutex
	convs    map[uuid.UUID]*convrepo.Conversation
	messages map[uuid.UUID][]convrepo.Message
}

func newFakeConvoRepo() *fakeConvoRepo {
	return &fakeConvoRepo{
		convs:    map[uuid.UUID]*convrepo.Conversation{},
		messages: map[uuid.UUID][]convrepo.Message{},
	}
}

func (f *fakeConvoRepo) put(c convrepo.Conversation) convrepo.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.GoalProgress == nil {
		c.GoalProgress = map[string]int{}
	}
	cp := c
	f.convs[c.ID] = &cp
	return c
}

func (f *fakeConvoRepo) EnsureActive(_ context.Context, leadID, campaignID uuid.UUID, agentID, channel string) (convrepo.Conversation, error) {
	f.mu.Lock()
	for _, c := range f.convs {
		if c.LeadID == leadID && c.Channel == channel && c.Mode != convrepo.ModeCompleted {
			f.mu.Unlock()
			return *c, nil
		}
	}
	f.mu.Unlock()
	return f.put(convrepo.Conversation{
		LeadID:     leadID,
		CampaignID: campaignID,
		AgentID:    agentID,
		Channel:    channel,
		Mode:       convrepo.ModeTemplate,
		StartedAt:  time.Now(),
	}), nil
}

func (f *fakeConvoRepo) GetByID(_ context.Context, id uuid.UUID) (convrepo.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return convrepo.Conversation{}, convrepo.ErrNotFound
	}
	return *c, nil
}

func (f *fakeConvoRepo) GetActive(_ context.Context, leadID uuid.UUID, channel string) (convrepo.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.LeadID == leadID && c.Channel == channel && c.Mode != convrepo.ModeCompleted {
			return *c, nil
		}
	}
	return convrepo.Conversation{}, convrepo.ErrNotFound
}

func (f *fakeConvoRepo) ListActiveByLead(_ context.Context, leadID uuid.UUID) ([]convrepo.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []convrepo.Conversation
	for _, c := range f.convs {
		if c.LeadID == leadID && c.Mode != convrepo.ModeCompleted {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeConvoRepo) AdvanceStage(_ context.Context, id uuid.UUID, fromStage int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok || c.Mode != convrepo.ModeTemplate || c.TemplateStage != fromStage {
		return false, nil
	}
	c.TemplateStage = fromStage + 1
	now := time.Now()
	c.LastSentAt = &now
	return true, nil
}

func (f *fakeConvoRepo) SwitchToAI(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok || c.Mode != convrepo.ModeTemplate {
		return false, nil
	}
	c.Mode = convrepo.ModeAI
	return true, nil
}

func (f *fakeConvoRepo) MarkHandoverPending(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok || c.Mode != convrepo.ModeAI {
		return false, nil
	}
	c.Mode = convrepo.ModeHandoverPending
	return true, nil
}

func (f *fakeConvoRepo) Complete(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok || c.Mode == convrepo.ModeCompleted {
		return false, nil
	}
	c.Mode = convrepo.ModeCompleted
	return true, nil
}

func (f *fakeConvoRepo) TouchLastSent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.convs[id]; ok {
		now := time.Now()
		c.LastSentAt = &now
	}
	return nil
}

func (f *fakeConvoRepo) MergeGoalProgress(_ context.Context, id uuid.UUID, goal string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.convs[id]; ok {
		c.GoalProgress[goal] += delta
	}
	return nil
}

func (f *fakeConvoRepo) AppendMessage(_ context.Context, conversationID uuid.UUID, role, content string, scripted bool) (convrepo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := convrepo.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		IsScripted:     scripted,
		CreatedAt:      time.Now(),
	}
	f.messages[conversationID] = append(f.messages[conversationID], msg)
	return msg, nil
}

func (f *fakeConvoRepo) ListMessages(_ context.Context, conversationID uuid.UUID) ([]convrepo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]convrepo.Message(nil), f.messages[conversationID]...), nil
}

type fakeLeadsRepo struct {
	mu    sync.Mutex
	leads map[uuid.UUID]leadsrepo.Lead
}

func newFakeLeadsRepo() *fakeLeadsRepo {
	return &fakeLeadsRepo{leads: map[uuid.UUID]leadsrepo.Lead{}}
}

func (f *fakeLeadsRepo) put(l leadsrepo.Lead) leadsrepo.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = leadsrepo.StatusNew
	}
	f.leads[l.ID] = l
	return l
}

func (f *fakeLeadsRepo) Create(_ context.Context, p leadsrepo.CreateLeadParams) (leadsrepo.Lead, error) {
	return f.put(leadsrepo.Lead{Name: p.Name, Email: p.Email, Phone: p.Phone, Source: p.Source, CampaignID: p.CampaignID}), nil
}

func (f *fakeLeadsRepo) GetByID(_ context.Context, id uuid.UUID) (leadsrepo.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return leadsrepo.Lead{}, leadsrepo.ErrNotFound
	}
	return l, nil
}

func (f *fakeLeadsRepo) GetByEmail(_ context.Context, email string) (leadsrepo.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.leads {
		if l.Email != nil && *l.Email == email {
			return l, nil
		}
	}
	return leadsrepo.Lead{}, leadsrepo.ErrNotFound
}

func (f *fakeLeadsRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[id]
	if !ok {
		return leadsrepo.ErrNotFound
	}
	if l.Status != leadsrepo.StatusArchived {
		l.Status = status
		f.leads[id] = l
	}
	return nil
}

func (f *fakeLeadsRepo) SetAssignedChannel(_ context.Context, id uuid.UUID, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.leads[id]
	l.AssignedChannel = &channel
	f.leads[id] = l
	return nil
}

func (f *fakeLeadsRepo) MergeScore(_ context.Context, id uuid.UUID, score int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.leads[id]
	if score > l.QualificationScore {
		l.QualificationScore = score
	}
	f.leads[id] = l
	return l.QualificationScore, nil
}

func (f *fakeLeadsRepo) GetContext(_ context.Context, leadID uuid.UUID) (leadsrepo.Context, error) {
	return leadsrepo.Context{LeadID: leadID, Preferences: map[string]any{}}, nil
}

func (f *fakeLeadsRepo) UpsertContext(context.Context, leadsrepo.Context) error { return nil }

type fakeCommsRepo struct {
	mu      sync.Mutex
	records []comms.Communication
}

func (f *fakeCommsRepo) Create(_ context.Context, p comms.CreateParams) (comms.Communication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := comms.Communication{
		ID: uuid.New(), LeadID: p.LeadID, Channel: p.Channel, Direction: p.Direction,
		Content: p.Content, Status: p.Status, ExternalID: p.ExternalID, CreatedAt: time.Now(),
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeCommsRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string, externalID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Status = status
			f.records[i].ExternalID = externalID
		}
	}
	return nil
}

func (f *fakeCommsRepo) ListByLead(_ context.Context, leadID uuid.UUID) ([]comms.Communication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []comms.Communication
	for _, r := range f.records {
		if r.LeadID == leadID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeCampaignsRepo struct {
	campaign campaigns.Campaign
}

func (f *fakeCampaignsRepo) GetByID(context.Context, uuid.UUID) (campaigns.Campaign, error) {
	return f.campaign, nil
}

func (f *fakeCampaignsRepo) Create(_ context.Context, c campaigns.Campaign) (campaigns.Campaign, error) {
	return c, nil
}

type fakeDriver struct {
	channel string
	mu      sync.Mutex
	sent    []channels.OutboundMessage
	reply   string
}

func (d *fakeDriver) Channel() string { return d.channel }

func (d *fakeDriver) GenerateMessage(context.Context, channels.GenerateRequest) (string, error) {
	if d.reply == "" {
		return "generated reply", nil
	}
	return d.reply, nil
}

func (d *fakeDriver) Send(_ context.Context, msg channels.OutboundMessage) (channels.Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return channels.Receipt{ExternalID: "ext-1", Status: "sent"}, nil
}

func (d *fakeDriver) sentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fakeScheduler struct {
	mu        sync.Mutex
	steps     []int
	replies   []uuid.UUID
	handovers []string
}

func (f *fakeScheduler) EnqueueTemplateStep(_ context.Context, _ uuid.UUID, stage int, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, stage)
	return nil
}

func (f *fakeScheduler) EnqueueReply(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, id)
	return nil
}

func (f *fakeScheduler) EnqueueHandover(_ context.Context, _ uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handovers = append(f.handovers, reason)
	return nil
}

type fakeEvaluator struct {
	triggered bool
	reason    string
}

func (f *fakeEvaluator) Evaluate(context.Context, uuid.UUID) (bool, string, error) {
	return f.triggered, f.reason, nil
}

type openGate struct{ allow bool }

func (g openGate) AllowSend(context.Context, uuid.UUID, string) (bool, error) {
	return g.allow, nil
}

type noopGoals struct{}

func (noopGoals) RecordInbound(context.Context, uuid.UUID, uuid.UUID, string) error { return nil }

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, e := range b.events {
		out = append(out, e.EventName())
	}
	return out
}

type fixture struct {
	svc    *Service
	convos *fakeConvoRepo
	leads  *fakeLeadsRepo
	comms  *fakeCommsRepo
	driver *fakeDriver
	sched  *fakeScheduler
	eval   *fakeEvaluator
	bus    *recordingBus
}

func newFixture(t *testing.T, eval *fakeEvaluator) *fixture {
	t.Helper()

	lib, err := NewTemplateLibrary("")
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}

	convos := newFakeConvoRepo()
	leads := newFakeLeadsRepo()
	commsRepo := &fakeCommsRepo{}
	driver := &fakeDriver{channel: channels.ChannelEmail}
	sched := &fakeScheduler{}
	bus := &recordingBus{}

	svc := NewService(
		leads, convos, commsRepo,
		&fakeCampaignsRepo{campaign: campaigns.Campaign{TemplatePack: "default"}},
		channels.NewSet(driver, &fakeDriver{channel: channels.ChannelSMS}, &fakeDriver{channel: channels.ChannelChat}),
		lib, eval, openGate{allow: true}, noopGoals{}, sched, bus,
		logger.New("development"),
	)

	return &fixture{svc: svc, convos: convos, leads: leads, comms: commsRepo, driver: driver, sched: sched, eval: eval, bus: bus}
}

func seedLead(f *fixture) leadsrepo.Lead {
	email := "buyer@example.com"
	return f.leads.put(leadsrepo.Lead{Name: "Jordan", Email: &email})
}

func TestFirstReplySwitchesToAdaptiveMode(t *testing.T) {
	f := newFixture(t, &fakeEvaluator{})
	lead := seedLead(f)
	conv := f.convos.put(convrepo.Conversation{
		LeadID: lead.ID, CampaignID: uuid.New(), Channel: channels.ChannelEmail,
		Mode: convrepo.ModeTemplate, TemplateStage: 1,
	})

	if err := f.svc.HandleInbound(context.Background(), lead.ID, channels.ChannelEmail, "yes, tell me more"); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	got, _ := f.convos.GetByID(context.Background(), conv.ID)
	if got.Mode != convrepo.ModeAI {
		t.Fatalf("mode = %s, want %s", got.Mode, convrepo.ModeAI)
	}
	if len(f.sched.replies) != 1 {
		t.Fatalf("reply jobs = %d, want 1", len(f.sched.replies))
	}
}

func TestModeSwitchHappensOnlyOnce(t *testing.T) {
	f := newFixture(t, &fakeEvaluator{})
	lead := seedLead(f)
	conv := f.convos.put(convrepo.Conversation{
		LeadID: lead.ID, CampaignID: uuid.New(), Channel: channels.ChannelEmail,
		Mode: convrepo.ModeAI,
	})

	if err := f.svc.HandleInbound(context.Background(), lead.ID, channels.ChannelEmail, "second message"); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	got, _ := f.convos.GetByID(context.Background(), conv.ID)
	if got.Mode != convrepo.ModeAI {
		t.Fatalf("mode = %s, want it to stay %s", got.Mode, convrepo.ModeAI)
	}
}

func TestStaleTemplateStepSendsNothing(t *testing.T) {
	f := newFixture(t, &fakeEvaluator{})
	lead := seedLead(f)
	// The lead replied and the conversation already left TEMPLATE_MODE, but a
	// timer for stage 1 is still in flight.
	conv := f.convos.put(convrepo.Conversation{
		LeadID: lead.ID, CampaignID: uuid.New(), Channel: channels.ChannelEmail,
		Mode: convrepo.ModeAI, TemplateStage: 1,
	})

	if err := f.svc.RunTemplateStep(context.Background(), conv.ID, 1); err != nil {
		t.Fatalf("RunTemplateStep: %v", err)
	}

	if f.driver.sentCount() != 0 {
		t.Fatalf("sent %d messages, want 0", f.driver.sentCount())
	}
	got, _ := f.convos.GetByID(context.Background(), conv.ID)
	if got.TemplateStage != 1 {
		t.Fatalf("stage = %d, want unchanged 1", got.TemplateStage)
	}
}

func TestStageMismatchSendsNothing(t *testing.T) {
	f := newFixture(t, &fakeEvaluator{})
	lead := seedLead(f)
	conv := f.convos.put(convrepo.Conversation{
		LeadID: lead.ID, CampaignID: uuid.New(), Channel: channels.ChannelEmail,
		Mode: convrepo.ModeTemplate, TemplateStage: 2,
	})

	// A duplicate delivery of the stage-1 job arrives after stage already
	// advanced.
	if err := f.svc.RunTemplateStep(context.Background(), conv.ID, 1); err != nil {
		t.Fatalf("RunTemplateStep: %v", err)
	}
	if f.driver.sentCount() != 0 {
		t.Fatalf("sent %d messages, want 0", f.driver.sentCount())
	}
}

func TestTemplateStepDispatchesAndSchedulesNext(t *testing.T) {
	f := newFixture(t, &fakeEvaluator{})
	lead := seedLead(f)
	conv := f.convos.put(convrepo.Conversation{
		LeadID: lead.ID, CampaignID: uuid.New(), Channel: channels.ChannelEmail,
		Mode: convrepo.ModeTemplate, TemplateStage: 0,
	})

	if err := f.svc.RunTemplateStep(context.Background(), conv.ID, 0); err != nil {
		t.Fatalf("RunTemplateStep: %v", err)
	}

	if f.driver.sentCount() != 1 {
		t.Fatalf("sent %d messages, want 1", f.driver.sentCount())
	}
	got, _ := f.convos.GetByID(context.Background(), conv.ID)
	if got.TemplateStage != 1 {
		t.Fatalf("stage = %d, want 1", got.TemplateStage)
	}
	if len(f.sched.steps) != 1 || f.sched.steps[0] != 1 {
		t.Fatalf("scheduled steps = %v, want [1]", f.sched.steps)
	}
	if len(f.comms.records) != 1 || f.comms.records[0].Direction != comms.DirectionOutbound {
		t.Fatalf("expected one outbound communication record, got %+v", f.comms.records)
	}
}

func TestHandoverPendingSuppressesAdaptiveReplies(t *testing.T) {
	f := newFixture(t, &fakeEvaluator{})
	lead := seedLead(f)
	f.convos.put(convrepo.Conversation{
		LeadID: lead.ID, CampaignID: uuid.New(), Channel: channels.ChannelEmail,
		Mode: convrepo.ModeHandoverPending,
	})

	if err := f.svc.HandleInbound(context.Background(), lead.ID, channels.ChannelEmail, "anyone there?"); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	if len(f.sched.replies) != 0 {
		t.Fatalf("reply jobs = %d, want 0 while handover is pending", len(f.sched.replies))
	}
	if f.driver.sentCount() != 1 {
		t.Fatalf("sent %d messages, want exactly the closing notice", f.driver.sentCount())
	}
	if f.driver.sent[0].Content != closingNotice {
		t.Fatalf("unexpected message body: %q", f.driver.sent[0].Content)
	}
}

func TestOptOutCompletesConversationAndRejectsLead(t *testing.T) {
	f := newFixture(t, &fakeEvaluator{})
	lead := seedLead(f)
	conv := f.convos.put(convrepo.Conversation{
		LeadID: lead.ID, CampaignID: uuid.New(), Channel: channels.ChannelEmail,
		Mode: convrepo.ModeAI,
	})

	if err := f.svc.HandleInbound(context.Background(), lead.ID, channels.ChannelEmail, "STOP"); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	got, _ := f.convos.GetByID(context.Background(), conv.ID)
	if got.Mode != convrepo.ModeCompleted {
		t.Fatalf("mode = %s, want %s", got.Mode, convrepo.ModeCompleted)
	}
	updated, _ := f.leads.GetByID(context.Background(), lead.ID)
	if updated.Status != leadsrepo.StatusRejected {
		t.Fatalf("lead status = %s, want %s", updated.Status, leadsrepo.StatusRejected)
	}
}

func TestReplyGenerationSendsAdaptiveMessage(t *testing.T) {
	f := newFixture(t, &fakeEvaluator{})
	lead := seedLead(f)
	conv := f.convos.put(convrepo.Conversation{
		LeadID: lead.ID, CampaignID: uuid.New(), Channel: channels.ChannelEmail,
		Mode: convrepo.ModeAI,
	})
	f.driver.reply = "Happy to help with financing."

	if err := f.svc.GenerateReply(context.Background(), conv.ID); err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}

	if f.driver.sentCount() != 1 {
		t.Fatalf("sent %d messages, want 1", f.driver.sentCount())
	}
	if f.driver.sent[0].Content != "Happy to help with financing." {
		t.Fatalf("unexpected reply body: %q", f.driver.sent[0].Content)
	}
	msgs, _ := f.convos.ListMessages(context.Background(), conv.ID)
	if len(msgs) != 1 || msgs[0].IsScripted {
		t.Fatalf("expected one unscripted agent message, got %+v", msgs)
	}
}

func TestHandoverCriteriaMetMovesToPendingWithoutReply(t *testing.T) {
	f := newFixture(t, &fakeEvaluator{triggered: true, reason: "qualification_score, keyword_triggers: ready to buy"})
	lead := seedLead(f)
	conv := f.convos.put(convrepo.Conversation{
		LeadID: lead.ID, CampaignID: uuid.New(), Channel: channels.ChannelEmail,
		Mode: convrepo.ModeAI,
	})

	if err := f.svc.GenerateReply(context.Background(), conv.ID); err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}

	got, _ := f.convos.GetByID(context.Background(), conv.ID)
	if got.Mode != convrepo.ModeHandoverPending {
		t.Fatalf("mode = %s, want %s", got.Mode, convrepo.ModeHandoverPending)
	}
	if len(f.sched.handovers) != 1 || f.sched.handovers[0] != "qualification_score, keyword_triggers: ready to buy" {
		t.Fatalf("handover jobs = %v", f.sched.handovers)
	}
	// The only send is the closing notice, not an adaptive reply.
	if f.driver.sentCount() != 1 || f.driver.sent[0].Content != closingNotice {
		t.Fatalf("unexpected sends: %+v", f.driver.sent)
	}

	found := false
	for _, name := range f.bus.names() {
		if name == "handover.triggered" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected handover.triggered event")
	}
}

func TestStaleReplyJobIsNoop(t *testing.T) {
	f := newFixture(t, &fakeEvaluator{})
	lead := seedLead(f)
	conv := f.convos.put(convrepo.Conversation{
		LeadID: lead.ID, CampaignID: uuid.New(), Channel: channels.ChannelEmail,
		Mode: convrepo.ModeCompleted,
	})

	if err := f.svc.GenerateReply(context.Background(), conv.ID); err != nil {
		t.Fatalf("GenerateReply: %v", err)
	}
	if f.driver.sentCount() != 0 {
		t.Fatalf("sent %d messages, want 0 for completed conversation", f.driver.sentCount())
	}
}

func TestCompleteForLeadClosesAllChannels(t *testing.T) {
	f := newFixture(t, &fakeEvaluator{})
	lead := seedLead(f)
	a := f.convos.put(convrepo.Conversation{LeadID: lead.ID, Channel: channels.ChannelEmail, Mode: convrepo.ModeAI})
	b := f.convos.put(convrepo.Conversation{LeadID: lead.ID, Channel: channels.ChannelSMS, Mode: convrepo.ModeTemplate})

	if err := f.svc.CompleteForLead(context.Background(), lead.ID); err != nil {
		t.Fatalf("CompleteForLead: %v", err)
	}

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		got, _ := f.convos.GetByID(context.Background(), id)
		if got.Mode != convrepo.ModeCompleted {
			t.Fatalf("conversation %s mode = %s, want COMPLETED", id, got.Mode)
		}
	}
}

func TestTemplateRenderSubstitutesName(t *testing.T) {
	lib, err := NewTemplateLibrary("")
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	step, ok := lib.Pack("default").Step(0)
	if !ok {
		t.Fatal("default pack has no first step")
	}
	subject, body := step.Render("Jordan")
	if subject == "" || body == "" {
		t.Fatal("rendered step is empty")
	}
	for _, s := range []string{subject, body} {
		if strings.Contains(s, "{{") {
			t.Fatalf("unrendered placeholder in %q", s)
		}
	}
}
