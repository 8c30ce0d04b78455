package events

import (
	"github.com/google/uuid"
)

// LeadCreated fires when a new lead is ingested.
type LeadCreated struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	CampaignID uuid.UUID `json:"campaignId"`
	Source     string    `json:"source"`
}

// EventName returns the event identifier.
func (e LeadCreated) EventName() string { return "lead.created" }

// MessageReceived fires for every inbound message from a lead, regardless of
// channel. It drives the TEMPLATE_MODE to AI_MODE switch and re-triggers
// handover evaluation.
type MessageReceived struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Channel        string    `json:"channel"`
	Content        string    `json:"content"`
}

// EventName returns the event identifier.
func (e MessageReceived) EventName() string { return "conversation.message_received" }

// MessageSent fires after an outbound message is dispatched on any channel.
type MessageSent struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Channel        string    `json:"channel"`
	Scripted       bool      `json:"scripted"`
	Stage          int       `json:"stage"`
}

// EventName returns the event identifier.
func (e MessageSent) EventName() string { return "conversation.message_sent" }

// HandoverTriggered fires when handover criteria are met for a lead. Reasons
// contains every criterion that evaluated true, not only the first.
type HandoverTriggered struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Reason         string    `json:"reason"`
	Score          int       `json:"score"`
}

// EventName returns the event identifier.
func (e HandoverTriggered) EventName() string { return "handover.triggered" }

// GoalProgressUpdated fires when a campaign goal counter advances for a lead.
type GoalProgressUpdated struct {
	BaseEvent
	CampaignID uuid.UUID `json:"campaignId"`
	LeadID     uuid.UUID `json:"leadId"`
	Goal       string    `json:"goal"`
	Current    int       `json:"current"`
	Target     int       `json:"target"`
}

// EventName returns the event identifier.
func (e GoalProgressUpdated) EventName() string { return "coordination.goal_progress" }

// GoalsCompleted fires once every required goal for a (campaign, lead) pair
// has reached its target. Active conversations transition to COMPLETED.
type GoalsCompleted struct {
	BaseEvent
	CampaignID uuid.UUID `json:"campaignId"`
	LeadID     uuid.UUID `json:"leadId"`
}

// EventName returns the event identifier.
func (e GoalsCompleted) EventName() string { return "coordination.goals_completed" }

// ConsensusReached broadcasts the outcome of cross-agent decision
// coordination, with the original decision attached.
type ConsensusReached struct {
	BaseEvent
	LeadID           uuid.UUID `json:"leadId"`
	OriginalDecision string    `json:"originalDecision"`
	Approved         bool      `json:"approved"`
	Confidence       float64   `json:"confidence"`
	Participants     int       `json:"participants"`
}

// EventName returns the event identifier.
func (e ConsensusReached) EventName() string { return "coordination.consensus" }

// ConversationCompleted fires when a conversation reaches its terminal state.
type ConversationCompleted struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Channel        string    `json:"channel"`
	OptOut         bool      `json:"optOut"`
}

// EventName returns the event identifier.
func (e ConversationCompleted) EventName() string { return "conversation.completed" }
