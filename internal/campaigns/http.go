package campaigns

import (
	apphttp "github.com/copp1723/ccl-3-final-sub003/internal/http"
	"github.com/copp1723/ccl-3-final-sub003/platform/apperr"
	"github.com/copp1723/ccl-3-final-sub003/platform/httpkit"
	"github.com/copp1723/ccl-3-final-sub003/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateCampaignRequest is the body for configuring a new campaign.
type CreateCampaignRequest struct {
	Name                  string                `json:"name" validate:"required,min=1,max=200"`
	Goals                 []Goal                `json:"goals"`
	QualificationCriteria QualificationCriteria `json:"qualificationCriteria"`
	HandoverCriteria      HandoverCriteria      `json:"handoverCriteria"`
	ChannelPreferences    ChannelPreferences    `json:"channelPreferences"`
	AssignedAgents        []Agent               `json:"assignedAgents"`
	CoordinationStrategy  string                `json:"coordinationStrategy" validate:"required,oneof=round_robin priority_based channel_specific"`
	TemplatePack          string                `json:"templatePack"`
	Active                *bool                 `json:"active"`
}

// Module exposes campaign configuration endpoints.
type Module struct {
	repo CampaignsRepository
	val  *validator.Validator
}

// NewHTTPModule creates the campaigns module.
func NewHTTPModule(repo CampaignsRepository, val *validator.Validator) *Module {
	return &Module{repo: repo, val: val}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "campaigns"
}

// RegisterRoutes registers the module's routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	rg := ctx.V1.Group("/campaigns")
	rg.POST("", m.Create)
	rg.GET("/:id", m.GetByID)
}

func (m *Module) Create(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid request", err.Error())
		return
	}
	if err := m.val.Struct(req); err != nil {
		httpkit.Error(c, 400, "validation failed", err.Error())
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	campaign, err := m.repo.Create(c.Request.Context(), Campaign{
		Name:                  req.Name,
		Goals:                 req.Goals,
		QualificationCriteria: req.QualificationCriteria,
		HandoverCriteria:      req.HandoverCriteria,
		ChannelPreferences:    req.ChannelPreferences,
		AssignedAgents:        req.AssignedAgents,
		CoordinationStrategy:  req.CoordinationStrategy,
		TemplatePack:          req.TemplatePack,
		Active:                active,
	})
	if err != nil {
		httpkit.HandleError(c, apperr.Internal("failed to create campaign", err))
		return
	}

	httpkit.Created(c, campaign)
}

func (m *Module) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, 400, "invalid campaign id", nil)
		return
	}

	campaign, err := m.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, apperr.NotFound("campaign not found"))
		return
	}

	httpkit.OK(c, campaign)
}

var _ apphttp.Module = (*Module)(nil)
