package conversations

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
	"github.com/copp1723/ccl-3-final-sub003/internal/channels"
	"github.com/copp1723/ccl-3-final-sub003/internal/comms"
	convrepo "github.com/copp1723/ccl-3-final-sub003/internal/conversations/repository"
	"github.com/copp1723/ccl-3-final-sub003/internal/events"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/platform/apperr"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
)

// Scheduler is the slice of the job queue the conversation flow needs.
type Scheduler interface {
	EnqueueTemplateStep(ctx context.Context, conversationID uuid.UUID, stage int, delay time.Duration) error
	EnqueueReply(ctx context.Context, conversationID uuid.UUID) error
	EnqueueHandover(ctx context.Context, leadID uuid.UUID, reason string) error
}

// HandoverEvaluator checks a conversation against its campaign's handover
// criteria. Reason joins every satisfied criterion.
type HandoverEvaluator interface {
	Evaluate(ctx context.Context, conversationID uuid.UUID) (triggered bool, reason string, err error)
}

// OutreachGate enforces the cross-channel minimum gap for scripted sends.
// Adaptive replies to an inbound message bypass the gate.
type OutreachGate interface {
	AllowSend(ctx context.Context, leadID uuid.UUID, channel string) (bool, error)
}

// GoalTracker records inbound content against campaign goal counters.
type GoalTracker interface {
	RecordInbound(ctx context.Context, campaignID, leadID uuid.UUID, content string) error
}

const closingNotice = "Thanks for your message! A specialist from our team is taking over from here and will be in touch with you directly."

var optOutPhrases = []string{"stop", "unsubscribe", "opt out", "opt-out", "remove me"}

// Service owns the per-channel conversation lifecycle: scripted template
// dispatch, the one-way switch to adaptive replies, handover suppression, and
// completion.
type Service struct {
	leads     leadsrepo.LeadsRepository
	convos    convrepo.ConversationsRepository
	comms     comms.CommsRepository
	campaigns campaigns.CampaignsRepository
	drivers   *channels.Set
	templates *TemplateLibrary
	evaluator HandoverEvaluator
	gate      OutreachGate
	goals     GoalTracker
	sched     Scheduler
	bus       events.Bus
	log       *logger.Logger
}

func NewService(
	leads leadsrepo.LeadsRepository,
	convos convrepo.ConversationsRepository,
	commsRepo comms.CommsRepository,
	campaignsRepo campaigns.CampaignsRepository,
	drivers *channels.Set,
	templates *TemplateLibrary,
	evaluator HandoverEvaluator,
	gate OutreachGate,
	goals GoalTracker,
	sched Scheduler,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		leads:     leads,
		convos:    convos,
		comms:     commsRepo,
		campaigns: campaignsRepo,
		drivers:   drivers,
		templates: templates,
		evaluator: evaluator,
		gate:      gate,
		goals:     goals,
		sched:     sched,
		bus:       bus,
		log:       log,
	}
}

// Start opens (or returns) the active conversation for (lead, channel) and
// schedules the first scripted step immediately.
func (s *Service) Start(ctx context.Context, leadID, campaignID uuid.UUID, agentID, channel string) (convrepo.Conversation, error) {
	if !channels.IsValid(channel) {
		return convrepo.Conversation{}, apperr.Validation("invalid channel: " + channel)
	}

	conv, err := s.convos.EnsureActive(ctx, leadID, campaignID, agentID, channel)
	if err != nil {
		return convrepo.Conversation{}, apperr.Internal("failed to open conversation", err)
	}

	// Only brand-new conversations get the kickoff step. An existing one is
	// already somewhere in its sequence.
	if conv.Mode == convrepo.ModeTemplate && conv.TemplateStage == 0 && conv.LastSentAt == nil {
		if err := s.sched.EnqueueTemplateStep(ctx, conv.ID, 0, 0); err != nil {
			return convrepo.Conversation{}, apperr.Internal("failed to schedule first step", err)
		}
	}
	return conv, nil
}

// RunTemplateStep dispatches the scripted message for one stage. The stage
// advance is compare-and-set, so a timer that fires after the conversation
// left TEMPLATE_MODE, or after another worker dispatched the same stage,
// sends nothing.
func (s *Service) RunTemplateStep(ctx context.Context, conversationID uuid.UUID, stage int) error {
	conv, err := s.convos.GetByID(ctx, conversationID)
	if err != nil {
		if err == convrepo.ErrNotFound {
			return nil
		}
		return apperr.Internal("failed to load conversation", err)
	}

	log := s.log.WithLeadID(conv.LeadID.String())

	if conv.Mode != convrepo.ModeTemplate || conv.TemplateStage != stage {
		log.Info("skipping stale template step",
			"conversation_id", conversationID.String(), "stage", stage, "mode", conv.Mode)
		return nil
	}

	lead, err := s.leads.GetByID(ctx, conv.LeadID)
	if err != nil {
		return apperr.Internal("failed to load lead", err)
	}
	campaign, err := s.campaigns.GetByID(ctx, conv.CampaignID)
	if err != nil {
		return apperr.Internal("failed to load campaign", err)
	}

	pack := s.templates.Pack(campaign.TemplatePack)
	step, ok := pack.Step(stage)
	if !ok {
		// Sequence exhausted; the conversation waits for a reply.
		log.Info("template sequence exhausted", "conversation_id", conversationID.String(), "stage", stage)
		return nil
	}

	allowed, err := s.gate.AllowSend(ctx, conv.LeadID, conv.Channel)
	if err != nil {
		return apperr.Unavailable("coordination gate unavailable", err)
	}
	if !allowed {
		// Another channel contacted the lead too recently. Push this step
		// out rather than dropping it.
		log.Info("template step deferred by channel gap", "conversation_id", conversationID.String(), "stage", stage)
		return s.sched.EnqueueTemplateStep(ctx, conversationID, stage, 30*time.Minute)
	}

	advanced, err := s.convos.AdvanceStage(ctx, conversationID, stage)
	if err != nil {
		return apperr.Internal("failed to advance stage", err)
	}
	if !advanced {
		log.Info("lost stage race, skipping send", "conversation_id", conversationID.String(), "stage", stage)
		return nil
	}

	subject, body := step.Render(lead.Name)
	if err := s.dispatch(ctx, lead, conv, subject, body, true, stage); err != nil {
		return err
	}

	if next, ok := pack.Step(stage + 1); ok {
		if err := s.sched.EnqueueTemplateStep(ctx, conversationID, stage+1, time.Duration(next.Delay)); err != nil {
			return apperr.Internal("failed to schedule next step", err)
		}
	}
	return nil
}

// HandleInbound records a message from the lead and moves the conversation
// forward: the first reply in TEMPLATE_MODE switches it to AI_MODE for good,
// replies in HANDOVER_PENDING get a closing notice only, and opt-out phrases
// complete the conversation.
func (s *Service) HandleInbound(ctx context.Context, leadID uuid.UUID, channel, content string) error {
	conv, err := s.convos.GetActive(ctx, leadID, channel)
	if err != nil {
		if err == convrepo.ErrNotFound {
			return apperr.NotFound("no active conversation for lead on " + channel)
		}
		return apperr.Internal("failed to load conversation", err)
	}

	log := s.log.WithLeadID(leadID.String())

	if _, err := s.convos.AppendMessage(ctx, conv.ID, convrepo.RoleLead, content, false); err != nil {
		return apperr.Internal("failed to record inbound message", err)
	}
	if _, err := s.comms.Create(ctx, comms.CreateParams{
		LeadID:    leadID,
		Channel:   channel,
		Direction: comms.DirectionInbound,
		Content:   content,
		Status:    comms.StatusReceived,
	}); err != nil {
		return apperr.Internal("failed to record inbound communication", err)
	}

	s.bus.Publish(ctx, events.MessageReceived{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		ConversationID: conv.ID,
		Channel:        channel,
		Content:        content,
	})

	if err := s.goals.RecordInbound(ctx, conv.CampaignID, leadID, content); err != nil {
		log.Warn("goal tracking failed", "error", err.Error())
	}

	if isOptOut(content) {
		return s.completeConversation(ctx, conv, true)
	}

	switch conv.Mode {
	case convrepo.ModeTemplate:
		switched, err := s.convos.SwitchToAI(ctx, conv.ID)
		if err != nil {
			return apperr.Internal("failed to switch conversation mode", err)
		}
		if switched {
			log.Info("conversation switched to adaptive mode", "conversation_id", conv.ID.String(), "channel", channel)
		}
		return s.sched.EnqueueReply(ctx, conv.ID)

	case convrepo.ModeAI:
		return s.sched.EnqueueReply(ctx, conv.ID)

	case convrepo.ModeHandoverPending:
		lead, err := s.leads.GetByID(ctx, leadID)
		if err != nil {
			return apperr.Internal("failed to load lead", err)
		}
		return s.dispatch(ctx, lead, conv, "We'll be in touch", closingNotice, false, conv.TemplateStage)
	}
	return nil
}

// GenerateReply produces and sends the adaptive reply for a conversation.
// Handover criteria are checked first; when they fire the conversation moves
// to HANDOVER_PENDING and no adaptive reply is generated. Stale jobs for a
// conversation that already left AI_MODE are a no-op.
func (s *Service) GenerateReply(ctx context.Context, conversationID uuid.UUID) error {
	conv, err := s.convos.GetByID(ctx, conversationID)
	if err != nil {
		if err == convrepo.ErrNotFound {
			return nil
		}
		return apperr.Internal("failed to load conversation", err)
	}
	if conv.Mode != convrepo.ModeAI {
		s.log.Info("skipping reply for non-adaptive conversation",
			"conversation_id", conversationID.String(), "mode", conv.Mode)
		return nil
	}

	triggered, reason, err := s.evaluator.Evaluate(ctx, conversationID)
	if err != nil {
		return apperr.Internal("handover evaluation failed", err)
	}
	if triggered {
		return s.triggerHandover(ctx, conv, reason)
	}

	lead, err := s.leads.GetByID(ctx, conv.LeadID)
	if err != nil {
		return apperr.Internal("failed to load lead", err)
	}
	campaign, err := s.campaigns.GetByID(ctx, conv.CampaignID)
	if err != nil {
		return apperr.Internal("failed to load campaign", err)
	}
	leadCtx, err := s.leads.GetContext(ctx, conv.LeadID)
	if err != nil {
		return apperr.Internal("failed to load lead context", err)
	}
	msgs, err := s.convos.ListMessages(ctx, conversationID)
	if err != nil {
		return apperr.Internal("failed to load history", err)
	}

	driver, err := s.drivers.ForChannel(conv.Channel)
	if err != nil {
		return apperr.Validation(err.Error())
	}

	req := channels.GenerateRequest{
		LeadName: lead.Name,
		History:  toHistory(msgs),
		Goals:    campaign.RequiredGoalNames(),
		Notes:    leadCtx.Notes,
	}
	reply, err := driver.GenerateMessage(ctx, req)
	if err != nil {
		return apperr.Unavailable("reply generation failed", err)
	}

	return s.dispatch(ctx, lead, conv, "Re: your financing request", reply, false, conv.TemplateStage)
}

// CompleteForLead closes every active conversation the lead has, across all
// channels. Used when campaign goals complete.
func (s *Service) CompleteForLead(ctx context.Context, leadID uuid.UUID) error {
	convs, err := s.convos.ListActiveByLead(ctx, leadID)
	if err != nil {
		return apperr.Internal("failed to list conversations", err)
	}
	for _, conv := range convs {
		if err := s.completeConversation(ctx, conv, false); err != nil {
			return err
		}
	}
	return nil
}

// History returns the ordered message list for one conversation.
func (s *Service) History(ctx context.Context, leadID uuid.UUID, channel string) (convrepo.Conversation, []convrepo.Message, error) {
	conv, err := s.convos.GetActive(ctx, leadID, channel)
	if err != nil {
		if err == convrepo.ErrNotFound {
			return convrepo.Conversation{}, nil, apperr.NotFound("no active conversation for lead on " + channel)
		}
		return convrepo.Conversation{}, nil, apperr.Internal("failed to load conversation", err)
	}
	msgs, err := s.convos.ListMessages(ctx, conv.ID)
	if err != nil {
		return convrepo.Conversation{}, nil, apperr.Internal("failed to load history", err)
	}
	return conv, msgs, nil
}

func (s *Service) triggerHandover(ctx context.Context, conv convrepo.Conversation, reason string) error {
	moved, err := s.convos.MarkHandoverPending(ctx, conv.ID)
	if err != nil {
		return apperr.Internal("failed to mark handover pending", err)
	}
	if !moved {
		// Another worker got there first; the handover job is already queued.
		return nil
	}

	lead, err := s.leads.GetByID(ctx, conv.LeadID)
	if err != nil {
		return apperr.Internal("failed to load lead", err)
	}

	s.bus.Publish(ctx, events.HandoverTriggered{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         conv.LeadID,
		ConversationID: conv.ID,
		Reason:         reason,
		Score:          lead.QualificationScore,
	})

	if err := s.sched.EnqueueHandover(ctx, conv.LeadID, reason); err != nil {
		return apperr.Internal("failed to enqueue handover delivery", err)
	}
	return s.dispatch(ctx, lead, conv, "We'll be in touch", closingNotice, false, conv.TemplateStage)
}

func (s *Service) completeConversation(ctx context.Context, conv convrepo.Conversation, optOut bool) error {
	done, err := s.convos.Complete(ctx, conv.ID)
	if err != nil {
		return apperr.Internal("failed to complete conversation", err)
	}
	if !done {
		return nil
	}
	if optOut {
		if err := s.leads.UpdateStatus(ctx, conv.LeadID, leadsrepo.StatusRejected); err != nil {
			s.log.WithLeadID(conv.LeadID.String()).Error("failed to mark lead rejected", "error", err.Error())
		}
	}
	s.bus.Publish(ctx, events.ConversationCompleted{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         conv.LeadID,
		ConversationID: conv.ID,
		Channel:        conv.Channel,
		OptOut:         optOut,
	})
	return nil
}

// dispatch sends one outbound message on the conversation's channel and
// records it in both the message history and the communication log.
func (s *Service) dispatch(ctx context.Context, lead leadsrepo.Lead, conv convrepo.Conversation, subject, body string, scripted bool, stage int) error {
	driver, err := s.drivers.ForChannel(conv.Channel)
	if err != nil {
		return apperr.Validation(err.Error())
	}

	recipient := recipientFor(lead, conv)
	receipt, sendErr := driver.Send(ctx, channels.OutboundMessage{
		Recipient: recipient,
		Subject:   subject,
		Content:   body,
	})

	status := comms.StatusSent
	var externalID *string
	if sendErr != nil {
		status = comms.StatusFailed
	} else if receipt.ExternalID != "" {
		externalID = &receipt.ExternalID
	}

	if _, err := s.comms.Create(ctx, comms.CreateParams{
		LeadID:     lead.ID,
		Channel:    conv.Channel,
		Direction:  comms.DirectionOutbound,
		Content:    body,
		Status:     status,
		ExternalID: externalID,
	}); err != nil {
		return apperr.Internal("failed to record communication", err)
	}
	if sendErr != nil {
		return apperr.Unavailable("send failed on "+conv.Channel, sendErr)
	}

	if _, err := s.convos.AppendMessage(ctx, conv.ID, convrepo.RoleAgent, body, scripted); err != nil {
		return apperr.Internal("failed to record outbound message", err)
	}
	if !scripted {
		if err := s.convos.TouchLastSent(ctx, conv.ID); err != nil {
			return apperr.Internal("failed to touch conversation", err)
		}
	}

	s.log.DispatchEvent(lead.ID.String(), conv.Channel, stage, scripted)
	s.bus.Publish(ctx, events.MessageSent{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         lead.ID,
		ConversationID: conv.ID,
		Channel:        conv.Channel,
		Scripted:       scripted,
		Stage:          stage,
	})
	return nil
}

func recipientFor(lead leadsrepo.Lead, conv convrepo.Conversation) string {
	switch conv.Channel {
	case channels.ChannelEmail:
		if lead.Email != nil {
			return *lead.Email
		}
	case channels.ChannelSMS:
		if lead.Phone != nil {
			return *lead.Phone
		}
	case channels.ChannelChat:
		return conv.ID.String()
	}
	return ""
}

func toHistory(msgs []convrepo.Message) []channels.HistoryEntry {
	out := make([]channels.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, channels.HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return out
}

func isOptOut(content string) bool {
	normalized := strings.ToLower(strings.TrimSpace(content))
	for _, phrase := range optOutPhrases {
		if normalized == phrase {
			return true
		}
	}
	return false
}
