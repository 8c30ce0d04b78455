package conversations

import (
	"context"

	"github.com/copp1723/ccl-3-final-sub003/internal/events"
	apphttp "github.com/copp1723/ccl-3-final-sub003/internal/http"
	"github.com/copp1723/ccl-3-final-sub003/platform/validator"
)

// Module wraps the conversation service for route and event registration.
// The service itself is assembled in the composition root because its
// dependency set (drivers, breakers, evaluator, hub) spans modules.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates the conversations module around an assembled service.
func NewModule(svc *Service, val *validator.Validator) *Module {
	return &Module{
		handler: NewHandler(svc, val),
		service: svc,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "conversations"
}

// Service returns the service layer for cross-module wiring.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/conversations"))
}

// RegisterHandlers subscribes the module to the domain events it reacts to:
// completed campaign goals close every active conversation for the lead.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.GoalsCompleted{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		completed, ok := event.(events.GoalsCompleted)
		if !ok {
			return nil
		}
		return m.service.CompleteForLead(ctx, completed.LeadID)
	}))
}

var _ apphttp.Module = (*Module)(nil)
