package handover

import (
	apphttp "github.com/copp1723/ccl-3-final-sub003/internal/http"
	"github.com/copp1723/ccl-3-final-sub003/platform/apperr"
	"github.com/copp1723/ccl-3-final-sub003/platform/httpkit"
	"github.com/copp1723/ccl-3-final-sub003/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type statusResponse struct {
	LeadID     uuid.UUID        `json:"leadId"`
	Deliveries []DeliveryStatus `json:"deliveries"`
}

// CreateDestinationRequest is the body for configuring a delivery target.
type CreateDestinationRequest struct {
	CampaignID   uuid.UUID         `json:"campaignId" validate:"required"`
	Type         string            `json:"type" validate:"required,oneof=crm marketplace webhook email_notify"`
	Endpoint     string            `json:"endpoint" validate:"required,min=1,max=2000"`
	Auth         map[string]string `json:"auth,omitempty"`
	FieldMapping map[string]string `json:"fieldMapping,omitempty"`
}

// Module exposes the signed delivery-status endpoint and destination
// configuration.
type Module struct {
	status *StatusService
	repo   HandoverRepository
	val    *validator.Validator
}

// NewModule creates the handover module around the status service.
func NewModule(status *StatusService, repo HandoverRepository, val *validator.Validator) *Module {
	return &Module{status: status, repo: repo, val: val}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "handover"
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/handover/status/:token", m.GetStatus)
	ctx.V1.POST("/handover/status-links", m.CreateStatusLink)
	ctx.V1.POST("/handover/destinations", m.CreateDestination)
}

// CreateStatusLink issues a signed, shareable status token for a lead's
// handover deliveries.
func (m *Module) CreateStatusLink(c *gin.Context) {
	var req struct {
		LeadID uuid.UUID `json:"leadId" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid request", err.Error())
		return
	}
	if err := m.val.Struct(req); err != nil {
		httpkit.Error(c, 400, "validation failed", err.Error())
		return
	}

	token, err := m.status.IssueToken(req.LeadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, gin.H{"token": token, "path": "/api/v1/handover/status/" + token})
}

// CreateDestination configures a new delivery target for a campaign.
func (m *Module) CreateDestination(c *gin.Context) {
	var req CreateDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid request", err.Error())
		return
	}
	if err := m.val.Struct(req); err != nil {
		httpkit.Error(c, 400, "validation failed", err.Error())
		return
	}

	dest, err := m.repo.CreateDestination(c.Request.Context(), Destination{
		CampaignID:   req.CampaignID,
		Type:         req.Type,
		Endpoint:     req.Endpoint,
		Auth:         req.Auth,
		FieldMapping: req.FieldMapping,
		Active:       true,
	})
	if err != nil {
		httpkit.HandleError(c, apperr.Internal("failed to create destination", err))
		return
	}

	httpkit.Created(c, gin.H{"id": dest.ID})
}

// GetStatus resolves a signed status link to per-destination delivery state.
func (m *Module) GetStatus(c *gin.Context) {
	leadID, deliveries, err := m.status.Resolve(c.Request.Context(), c.Param("token"))
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, statusResponse{LeadID: leadID, Deliveries: deliveries})
}

var _ apphttp.Module = (*Module)(nil)
