// Package transport defines the request and response shapes for the leads
// HTTP surface.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// CreateLeadRequest is the body for lead ingestion.
type CreateLeadRequest struct {
	Name       string         `json:"name" validate:"required,min=1,max=200"`
	Email      *string        `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string        `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
	Source     string         `json:"source" validate:"required,min=1,max=100"`
	CampaignID uuid.UUID      `json:"campaignId" validate:"required"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// LeadResponse is the serialized lead.
type LeadResponse struct {
	ID                 uuid.UUID      `json:"id"`
	Name               string         `json:"name"`
	Email              *string        `json:"email,omitempty"`
	Phone              *string        `json:"phone,omitempty"`
	Source             string         `json:"source"`
	CampaignID         *uuid.UUID     `json:"campaignId,omitempty"`
	Status             string         `json:"status"`
	QualificationScore int            `json:"qualificationScore"`
	AssignedChannel    *string        `json:"assignedChannel,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// DecisionResponse is one audit-trail entry.
type DecisionResponse struct {
	ID        uuid.UUID      `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Reasoning string         `json:"reasoning"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// CommunicationResponse is one send/receive attempt.
type CommunicationResponse struct {
	ID        uuid.UUID `json:"id"`
	Channel   string    `json:"channel"`
	Direction string    `json:"direction"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// LeadDetailResponse is the operator status view for a single lead.
type LeadDetailResponse struct {
	Lead           LeadResponse            `json:"lead"`
	Decisions      []DecisionResponse      `json:"decisions"`
	Communications []CommunicationResponse `json:"communications"`
}
