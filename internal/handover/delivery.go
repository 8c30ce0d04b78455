package handover

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/copp1723/ccl-3-final-sub003/internal/comms"
	"github.com/copp1723/ccl-3-final-sub003/internal/events"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/platform/apperr"
	"github.com/copp1723/ccl-3-final-sub003/platform/breaker"
	"github.com/copp1723/ccl-3-final-sub003/platform/config"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
)

// attemptResult is what a destination push yields through its breaker. A
// simulated result means the breaker is open; the destination was not
// actually reached.
type attemptResult struct {
	ExternalID string
	Simulated  bool
}

// Deliverer fans a handover out to every configured destination. Destinations
// are fully independent: one failing, timing out, or sitting behind an open
// breaker never blocks the others.
type Deliverer struct {
	leads      leadsrepo.LeadsRepository
	repo       HandoverRepository
	comms      comms.CommsRepository
	bus        events.Bus
	httpClient *http.Client
	emailCfg   config.EmailConfig
	breakers   map[string]*breaker.Breaker[attemptResult]
	log        *logger.Logger
}

func NewDeliverer(
	leads leadsrepo.LeadsRepository,
	repo HandoverRepository,
	commsRepo comms.CommsRepository,
	bus events.Bus,
	emailCfg config.EmailConfig,
	breakerCfg config.BreakerConfig,
	log *logger.Logger,
) *Deliverer {
	breakers := make(map[string]*breaker.Breaker[attemptResult], 4)
	for _, kind := range []string{KindCRM, KindMarketplace, KindWebhook, KindEmailNotify} {
		name := "handover_" + kind
		breakers[kind] = breaker.New(name, attemptResult{Simulated: true}, breaker.Options{
			FailureThreshold: breakerCfg.GetBreakerFailureThreshold(name),
			Cooldown:         breakerCfg.GetBreakerCooldown(name),
		}, log)
	}

	return &Deliverer{
		leads:      leads,
		repo:       repo,
		comms:      commsRepo,
		bus:        bus,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		emailCfg:   emailCfg,
		breakers:   breakers,
		log:        log,
	}
}

// Deliver pushes the lead to every active destination of its campaign. The
// lead's status moves to sent_to_handover before any attempt, so pipeline
// progress never depends on destination availability. Returns a retryable
// error when at least one destination still needs a successful attempt.
func (d *Deliverer) Deliver(ctx context.Context, leadID uuid.UUID, reason string) error {
	lead, err := d.leads.GetByID(ctx, leadID)
	if err != nil {
		return apperr.Internal("failed to load lead", err)
	}
	log := d.log.WithLeadID(leadID.String())

	if err := d.leads.UpdateStatus(ctx, leadID, leadsrepo.StatusSentToHandover); err != nil {
		return apperr.Internal("failed to update lead status", err)
	}

	if lead.CampaignID == nil {
		log.Warn("handover for lead without campaign, nothing to deliver")
		return nil
	}
	dests, err := d.repo.ListActiveByCampaign(ctx, *lead.CampaignID)
	if err != nil {
		return apperr.Internal("failed to list destinations", err)
	}
	if len(dests) == 0 {
		log.Warn("campaign has no active handover destinations")
		return nil
	}

	succeeded := map[uuid.UUID]bool{}
	existing, err := d.repo.ListDeliveriesByLead(ctx, leadID)
	if err != nil {
		return apperr.Internal("failed to load delivery state", err)
	}
	for _, prev := range existing {
		if prev.Succeeded() {
			succeeded[prev.DestinationID] = true
		}
	}

	dossier := Dossier{
		LeadID:   lead.ID,
		Name:     lead.Name,
		Source:   lead.Source,
		Score:    lead.QualificationScore,
		Reason:   reason,
		Metadata: lead.Metadata,
	}
	if lead.Email != nil {
		dossier.Email = *lead.Email
	}
	if lead.Phone != nil {
		dossier.Phone = *lead.Phone
	}

	var (
		mu      sync.Mutex
		pending int
	)

	var g errgroup.Group
	for _, dest := range dests {
		if succeeded[dest.ID] {
			continue
		}
		dest := dest
		g.Go(func() error {
			if ok := d.attempt(ctx, dest, dossier, log); !ok {
				mu.Lock()
				pending++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return apperr.Internal("delivery fan-out failed", err)
	}

	if pending > 0 {
		return apperr.Unavailable(fmt.Sprintf("%d of %d destinations still pending", pending, len(dests)), nil)
	}
	return nil
}

// attempt pushes to one destination and records the outcome. Returns true
// when this destination is settled (a real success, now or previously).
func (d *Deliverer) attempt(ctx context.Context, dest Destination, dossier Dossier, log *logger.Logger) bool {
	carrier, err := d.carrierFor(dest.Type)
	if err != nil {
		// Unknown kind is a configuration error, not retryable.
		log.Error("skipping destination", "destination_id", dest.ID.String(), "error", err.Error())
		return true
	}

	res, pushErr := d.breakers[dest.Type].Execute(ctx, func(ctx context.Context) (attemptResult, error) {
		externalID, err := carrier.Push(ctx, dest, dossier)
		if err != nil {
			return attemptResult{}, err
		}
		return attemptResult{ExternalID: externalID}, nil
	})
	if pushErr == nil && res.Simulated {
		pushErr = fmt.Errorf("destination circuit open, delivery deferred")
	}

	var externalID *string
	if pushErr == nil && res.ExternalID != "" {
		externalID = &res.ExternalID
	}
	if _, err := d.repo.RecordAttempt(ctx, dossier.LeadID, dest.ID, externalID, pushErr); err != nil {
		log.Error("failed to record delivery attempt", "destination_id", dest.ID.String(), "error", err.Error())
	}

	status := comms.StatusSent
	errMsg := ""
	if pushErr != nil {
		status = comms.StatusFailed
		errMsg = pushErr.Error()
	}
	if _, err := d.comms.Create(ctx, comms.CreateParams{
		LeadID:     dossier.LeadID,
		Channel:    dest.Type,
		Direction:  comms.DirectionOutbound,
		Content:    "handover: " + dossier.Reason,
		Status:     status,
		ExternalID: externalID,
		Metadata:   map[string]any{"destination_id": dest.ID.String()},
	}); err != nil {
		log.Error("failed to record handover communication", "destination_id", dest.ID.String(), "error", err.Error())
	}

	log.DeliveryEvent(dossier.LeadID.String(), dest.Type, pushErr == nil, errMsg)
	return pushErr == nil
}
