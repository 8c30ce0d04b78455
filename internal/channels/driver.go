// Package channels implements the outbound communication capability for the
// closed set of channel variants: email, sms, and chat. Drivers share one
// capability interface and are selected by exhaustive match, never by
// runtime type inspection.
package channels

import (
	"context"
	"fmt"
	"strings"
)

// Channel identifiers.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelChat  = "chat"
)

// All lists every channel variant, in default preference order.
func All() []string {
	return []string{ChannelEmail, ChannelSMS, ChannelChat}
}

// IsValid reports whether the name identifies a known channel.
func IsValid(channel string) bool {
	switch channel {
	case ChannelEmail, ChannelSMS, ChannelChat:
		return true
	}
	return false
}

// Generator is the adaptive-text capability the drivers compose prompts for.
// Callers pass a breaker-wrapped implementation.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// HistoryEntry is one turn of the conversation used for adaptive generation.
type HistoryEntry struct {
	Role    string
	Content string
}

// GenerateRequest carries everything an adaptive reply is built from: the
// full ordered history, campaign goals, and the lead's shared context notes.
type GenerateRequest struct {
	LeadName string
	History  []HistoryEntry
	Goals    []string
	Notes    string
}

// OutboundMessage is a channel-agnostic outbound send.
type OutboundMessage struct {
	Recipient string
	Subject   string
	Content   string
}

// Receipt is the delivery acknowledgment for one send attempt.
type Receipt struct {
	ExternalID string
	Status     string
}

// Driver is the per-channel capability: adaptive message generation plus
// delivery.
type Driver interface {
	Channel() string
	GenerateMessage(ctx context.Context, req GenerateRequest) (string, error)
	Send(ctx context.Context, msg OutboundMessage) (Receipt, error)
}

// Set holds one driver per channel variant.
type Set struct {
	email Driver
	sms   Driver
	chat  Driver
}

// NewSet builds the closed driver set.
func NewSet(email, sms, chat Driver) *Set {
	return &Set{email: email, sms: sms, chat: chat}
}

// ForChannel selects the driver for a channel by exhaustive match.
func (s *Set) ForChannel(channel string) (Driver, error) {
	switch channel {
	case ChannelEmail:
		return s.email, nil
	case ChannelSMS:
		return s.sms, nil
	case ChannelChat:
		return s.chat, nil
	default:
		return nil, fmt.Errorf("unknown channel %q", channel)
	}
}

// buildPrompt renders the ordered history and goals into the generation
// prompt shared by all drivers.
func buildPrompt(req GenerateRequest) string {
	var b strings.Builder

	if req.LeadName != "" {
		fmt.Fprintf(&b, "Lead name: %s\n", req.LeadName)
	}
	if req.Notes != "" {
		fmt.Fprintf(&b, "Shared notes: %s\n", req.Notes)
	}
	if len(req.Goals) > 0 {
		fmt.Fprintf(&b, "Campaign goals: %s\n", strings.Join(req.Goals, ", "))
	}

	b.WriteString("\nConversation so far:\n")
	for _, entry := range req.History {
		fmt.Fprintf(&b, "%s: %s\n", entry.Role, entry.Content)
	}
	b.WriteString("\nWrite the next reply from the agent.")

	return b.String()
}
