package conversations

import (
	"time"

	"github.com/copp1723/ccl-3-final-sub003/platform/httpkit"
	"github.com/copp1723/ccl-3-final-sub003/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InboundMessageRequest is the body for the inbound-message webhook, used by
// the SMS and chat gateways to push lead replies.
type InboundMessageRequest struct {
	Channel string `json:"channel" validate:"required,oneof=email sms chat"`
	Content string `json:"content" validate:"required,min=1"`
}

type messageResponse struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	IsScripted bool      `json:"isScripted"`
	CreatedAt  time.Time `json:"createdAt"`
}

type historyResponse struct {
	ConversationID uuid.UUID         `json:"conversationId"`
	Channel        string            `json:"channel"`
	AgentID        string            `json:"agentId"`
	Mode           string            `json:"mode"`
	Messages       []messageResponse `json:"messages"`
}

// Handler exposes the conversation HTTP endpoints.
type Handler struct {
	svc *Service
	val *validator.Validator
}

// NewHandler creates a new conversations handler.
func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the conversation routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/:leadID/messages", h.PostMessage)
	rg.GET("/:leadID", h.GetHistory)
}

func (h *Handler) PostMessage(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("leadID"))
	if err != nil {
		httpkit.Error(c, 400, "invalid lead id", nil)
		return
	}

	var req InboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, 400, "invalid request", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, 400, "validation failed", err.Error())
		return
	}

	if err := h.svc.HandleInbound(c.Request.Context(), leadID, req.Channel, req.Content); httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, 202, gin.H{"accepted": true})
}

func (h *Handler) GetHistory(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("leadID"))
	if err != nil {
		httpkit.Error(c, 400, "invalid lead id", nil)
		return
	}
	channel := c.DefaultQuery("channel", "chat")

	conv, msgs, err := h.svc.History(c.Request.Context(), leadID, channel)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := historyResponse{
		ConversationID: conv.ID,
		Channel:        conv.Channel,
		AgentID:        conv.AgentID,
		Mode:           conv.Mode,
		Messages:       make([]messageResponse, 0, len(msgs)),
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageResponse{
			Role:       m.Role,
			Content:    m.Content,
			IsScripted: m.IsScripted,
			CreatedAt:  m.CreatedAt,
		})
	}
	httpkit.OK(c, resp)
}
