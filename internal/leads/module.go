// Package leads provides the lead ingestion and status domain module.
package leads

import (
	"github.com/copp1723/ccl-3-final-sub003/internal/campaigns"
	"github.com/copp1723/ccl-3-final-sub003/internal/comms"
	"github.com/copp1723/ccl-3-final-sub003/internal/engine"
	"github.com/copp1723/ccl-3-final-sub003/internal/events"
	apphttp "github.com/copp1723/ccl-3-final-sub003/internal/http"
	"github.com/copp1723/ccl-3-final-sub003/internal/leads/handler"
	"github.com/copp1723/ccl-3-final-sub003/internal/leads/repository"
	"github.com/copp1723/ccl-3-final-sub003/internal/leads/service"
	"github.com/copp1723/ccl-3-final-sub003/platform/logger"
	"github.com/copp1723/ccl-3-final-sub003/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module wires the leads repository, service, and handler.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// NewModule creates the leads module with all dependencies wired.
func NewModule(
	pool *pgxpool.Pool,
	campaignsRepo campaigns.CampaignsRepository,
	decisions engine.DecisionsRepository,
	commsRepo comms.CommsRepository,
	pipeline service.Pipeline,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, campaignsRepo, decisions, commsRepo, pipeline, bus, val, log)
	h := handler.New(svc)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for cross-module wiring.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the leads repository for cross-module wiring.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/leads"))
}

var _ apphttp.Module = (*Module)(nil)
