package handover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/copp1723/ccl-3-final-sub003/internal/comms"
	"github.com/copp1723/ccl-3-final-sub003/internal/events"
	leadsrepo "github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/platform/apperr"
	"github.com/copp1723/ccl-3-final-sub003/platform/config"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
)

type memLeads struct {
	mu    sync.Mutex
	leads map[uuid.UUID]leadsrepo.Lead
}

func (m *memLeads) Create(context.Context, leadsrepo.CreateLeadParams) (leadsrepo.Lead, error) {
	return leadsrepo.Lead{}, nil
}

func (m *memLeads) GetByID(_ context.Context, id uuid.UUID) (leadsrepo.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return leadsrepo.Lead{}, leadsrepo.ErrNotFound
	}
	return l, nil
}

func (m *memLeads) GetByEmail(context.Context, string) (leadsrepo.Lead, error) {
	return leadsrepo.Lead{}, leadsrepo.ErrNotFound
}

func (m *memLeads) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.leads[id]
	l.Status = status
	m.leads[id] = l
	return nil
}

func (m *memLeads) SetAssignedChannel(context.Context, uuid.UUID, string) error { return nil }
func (m *memLeads) MergeScore(context.Context, uuid.UUID, int) (int, error)     { return 0, nil }
func (m *memLeads) GetContext(_ context.Context, id uuid.UUID) (leadsrepo.Context, error) {
	return leadsrepo.Context{LeadID: id}, nil
}
func (m *memLeads) UpsertContext(context.Context, leadsrepo.Context) error { return nil }

type memHandoverRepo struct {
	mu         sync.Mutex
	dests      []Destination
	deliveries map[string]*Delivery
}

func newMemHandoverRepo() *memHandoverRepo {
	return &memHandoverRepo{deliveries: map[string]*Delivery{}}
}

func (m *memHandoverRepo) CreateDestination(_ context.Context, d Destination) (Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	m.dests = append(m.dests, d)
	return d, nil
}

func (m *memHandoverRepo) ListActiveByCampaign(_ context.Context, campaignID uuid.UUID) ([]Destination, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Destination
	for _, d := range m.dests {
		if d.CampaignID == campaignID && d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memHandoverRepo) RecordAttempt(_ context.Context, leadID, destID uuid.UUID, externalID *string, attemptErr error) (Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := leadID.String() + "/" + destID.String()
	d, ok := m.deliveries[key]
	if !ok {
		d = &Delivery{LeadID: leadID, DestinationID: destID}
		m.deliveries[key] = d
	}
	d.Attempts++
	d.UpdatedAt = time.Now()
	if attemptErr != nil {
		msg := attemptErr.Error()
		d.LastError = &msg
	} else {
		d.LastError = nil
		if d.SucceededAt == nil {
			now := time.Now()
			d.SucceededAt = &now
		}
		if d.ExternalID == nil {
			d.ExternalID = externalID
		}
	}
	return *d, nil
}

func (m *memHandoverRepo) ListDeliveriesByLead(_ context.Context, leadID uuid.UUID) ([]Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Delivery
	for _, d := range m.deliveries {
		if d.LeadID == leadID {
			out = append(out, *d)
		}
	}
	return out, nil
}

type memComms struct {
	mu      sync.Mutex
	records []comms.Communication
}

func (m *memComms) Create(_ context.Context, p comms.CreateParams) (comms.Communication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := comms.Communication{ID: uuid.New(), LeadID: p.LeadID, Channel: p.Channel, Direction: p.Direction, Status: p.Status, CreatedAt: time.Now()}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memComms) UpdateStatus(context.Context, uuid.UUID, string, *string) error { return nil }
func (m *memComms) ListByLead(context.Context, uuid.UUID) ([]comms.Communication, error) {
	return nil, nil
}

type silentBus struct{}

func (silentBus) Subscribe(string, events.Handler)               {}
func (silentBus) Publish(context.Context, events.Event)          {}
func (silentBus) PublishSync(context.Context, events.Event) error { return nil }

func testEmailConfig() config.Config {
	return config.Config{}
}

func TestOneDestinationFailingNeverBlocksAnother(t *testing.T) {
	// CRM endpoint times out; webhook endpoint accepts.
	crm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer crm.Close()
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	campaignID := uuid.New()
	repo := newMemHandoverRepo()
	crmDest, _ := repo.CreateDestination(context.Background(), Destination{
		CampaignID: campaignID, Type: KindCRM, Endpoint: crm.URL, Active: true,
	})
	webhookDest, _ := repo.CreateDestination(context.Background(), Destination{
		CampaignID: campaignID, Type: KindWebhook, Endpoint: webhook.URL, Active: true,
	})

	email := "buyer@example.com"
	leadID := uuid.New()
	leads := &memLeads{leads: map[uuid.UUID]leadsrepo.Lead{
		leadID: {ID: leadID, Name: "Jordan", Email: &email, CampaignID: &campaignID, QualificationScore: 80},
	}}

	cfg := testEmailConfig()
	deliverer := NewDeliverer(leads, repo, &memComms{}, silentBus{}, &cfg, &cfg, logger.New("development"))

	err := deliverer.Deliver(context.Background(), leadID, "qualification_score")
	if err == nil {
		t.Fatal("expected a retryable error while the CRM destination is pending")
	}
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("error kind = %v, want unavailable (retryable)", err)
	}

	deliveries, _ := repo.ListDeliveriesByLead(context.Background(), leadID)
	byDest := map[uuid.UUID]Delivery{}
	for _, d := range deliveries {
		byDest[d.DestinationID] = d
	}

	if !byDest[webhookDest.ID].Succeeded() {
		t.Fatal("webhook delivery must succeed despite the CRM failure")
	}
	if byDest[crmDest.ID].Succeeded() {
		t.Fatal("CRM delivery must be recorded as failed")
	}
	if byDest[crmDest.ID].LastError == nil {
		t.Fatal("CRM failure must record its error")
	}

	// Status progressed regardless of delivery outcome.
	lead, _ := leads.GetByID(context.Background(), leadID)
	if lead.Status != leadsrepo.StatusSentToHandover {
		t.Fatalf("lead status = %s, want %s", lead.Status, leadsrepo.StatusSentToHandover)
	}
}

func TestSuccessfulDestinationIsNeverRedelivered(t *testing.T) {
	var hits int
	var mu sync.Mutex
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()

	campaignID := uuid.New()
	repo := newMemHandoverRepo()
	repo.CreateDestination(context.Background(), Destination{
		CampaignID: campaignID, Type: KindWebhook, Endpoint: webhook.URL, Active: true,
	})

	leadID := uuid.New()
	leads := &memLeads{leads: map[uuid.UUID]leadsrepo.Lead{
		leadID: {ID: leadID, Name: "Jordan", CampaignID: &campaignID},
	}}

	cfg := testEmailConfig()
	deliverer := NewDeliverer(leads, repo, &memComms{}, silentBus{}, &cfg, &cfg, logger.New("development"))

	if err := deliverer.Deliver(context.Background(), leadID, "conversation_length"); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	// A retried job must skip the already-succeeded destination.
	if err := deliverer.Deliver(context.Background(), leadID, "conversation_length"); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("webhook hit %d times, want exactly 1", hits)
	}
}
