// Package service implements the lead ingestion workflow.
package service

import (
	"context"
	"strings"

	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
	"github.com/copp1723/ccl-3-final-sub003/internal/comms"
	"github.com/copp1723/ccl-3-final-sub003/internal/engine"
	"github.com/copp1723/ccl-3-final-sub003/internal/events"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/internal/leads/transport"
	"github.com/copp1723/ccl-3-final-sub003/platform/apperr"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
	"github.com/copp1723/ccl-3-final-sub003/platform/phone"
	"github.com/copp1723/ccl-3-final-sub003/platform/validator"

	"github.com/google/uuid"
)

// Pipeline is the slice of the job queue lead ingestion needs.
type Pipeline interface {
	EnqueueLeadProcess(ctx context.Context, leadID uuid.UUID) error
}

// Service ingests leads and exposes the operator status view.
type Service struct {
	repo      leadsrepo.LeadsRepository
	campaigns campaigns.CampaignsRepository
	decisions engine.DecisionsRepository
	comms     comms.CommsRepository
	pipeline  Pipeline
	bus       events.Bus
	val       *validator.Validator
	log       *logger.Logger
}

func New(
	repo leadsrepo.LeadsRepository,
	campaignsRepo campaigns.CampaignsRepository,
	decisions engine.DecisionsRepository,
	commsRepo comms.CommsRepository,
	pipeline Pipeline,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		campaigns: campaignsRepo,
		decisions: decisions,
		comms:     commsRepo,
		pipeline:  pipeline,
		bus:       bus,
		val:       val,
		log:       log,
	}
}

// Ingest validates and persists a new lead, announces it on the bus, and
// queues the decision-engine pass. A lead needs at least one way to be
// reached or engaged; with neither email nor phone the chat channel still
// applies, so contact info is optional.
func (s *Service) Ingest(ctx context.Context, req transport.CreateLeadRequest) (leadsrepo.Lead, error) {
	if err := s.val.Struct(req); err != nil {
		return leadsrepo.Lead{}, apperr.Validation(err.Error())
	}

	campaign, err := s.campaigns.GetByID(ctx, req.CampaignID)
	if err != nil {
		return leadsrepo.Lead{}, apperr.NotFound("campaign not found")
	}
	if !campaign.Active {
		return leadsrepo.Lead{}, apperr.Validation("campaign is not active")
	}

	params := leadsrepo.CreateLeadParams{
		Name:       strings.TrimSpace(req.Name),
		Source:     strings.TrimSpace(req.Source),
		CampaignID: &campaign.ID,
		Metadata:   req.Metadata,
	}
	if req.Email != nil && *req.Email != "" {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		params.Email = &email
	}
	if req.Phone != nil && *req.Phone != "" {
		normalized := phone.NormalizeE164(*req.Phone)
		params.Phone = &normalized
	}

	lead, err := s.repo.Create(ctx, params)
	if err != nil {
		return leadsrepo.Lead{}, apperr.Internal("failed to create lead", err)
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     lead.ID,
		CampaignID: campaign.ID,
		Source:     lead.Source,
	})

	if err := s.pipeline.EnqueueLeadProcess(ctx, lead.ID); err != nil {
		// The lead is persisted; a missed processing job is recoverable by
		// re-enqueueing, so ingestion still succeeds.
		s.log.WithLeadID(lead.ID.String()).Error("failed to enqueue lead processing", "error", err)
	}

	s.log.WithLeadID(lead.ID.String()).Info("lead ingested", "campaign", campaign.ID.String(), "source", lead.Source)
	return lead, nil
}

// Get assembles the operator status view: the lead, its decision audit
// trail, and its communication history.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.LeadDetailResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == leadsrepo.ErrNotFound {
			return transport.LeadDetailResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadDetailResponse{}, apperr.Internal("failed to load lead", err)
	}

	decisions, err := s.decisions.ListByLead(ctx, id)
	if err != nil {
		return transport.LeadDetailResponse{}, apperr.Internal("failed to load decisions", err)
	}
	communications, err := s.comms.ListByLead(ctx, id)
	if err != nil {
		return transport.LeadDetailResponse{}, apperr.Internal("failed to load communications", err)
	}

	detail := transport.LeadDetailResponse{
		Lead:           toLeadResponse(lead),
		Decisions:      make([]transport.DecisionResponse, 0, len(decisions)),
		Communications: make([]transport.CommunicationResponse, 0, len(communications)),
	}
	for _, d := range decisions {
		detail.Decisions = append(detail.Decisions, transport.DecisionResponse{
			ID:        d.ID,
			Actor:     d.Actor,
			Action:    d.Action,
			Reasoning: d.Reasoning,
			Data:      d.Data,
			CreatedAt: d.CreatedAt,
		})
	}
	for _, c := range communications {
		detail.Communications = append(detail.Communications, transport.CommunicationResponse{
			ID:        c.ID,
			Channel:   c.Channel,
			Direction: c.Direction,
			Content:   c.Content,
			Status:    c.Status,
			CreatedAt: c.CreatedAt,
		})
	}
	return detail, nil
}

// ResolveByEmail maps a sender address to the lead it belongs to. Used by the
// inbound email poller to route replies.
func (s *Service) ResolveByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	lead, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if err == leadsrepo.ErrNotFound {
			return uuid.Nil, apperr.NotFound("no lead for address")
		}
		return uuid.Nil, apperr.Internal("failed to resolve lead by email", err)
	}
	return lead.ID, nil
}

func toLeadResponse(lead leadsrepo.Lead) transport.LeadResponse {
	return transport.LeadResponse{
		ID:                 lead.ID,
		Name:               lead.Name,
		Email:              lead.Email,
		Phone:              lead.Phone,
		Source:             lead.Source,
		CampaignID:         lead.CampaignID,
		Status:             lead.Status,
		QualificationScore: lead.QualificationScore,
		AssignedChannel:    lead.AssignedChannel,
		Metadata:           lead.Metadata,
		CreatedAt:          lead.CreatedAt,
		UpdatedAt:          lead.UpdatedAt,
	}
}
