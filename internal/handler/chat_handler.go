package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/pkg/response"
)

type chatService interface {
	Send(ctx context.Context, actor models.Actor, req models.ChatRequest) (*models.ChatReply, error)
	ListSessions(ctx context.Context, actor models.Actor) ([]models.ChatSessionSummary, error)
	GetSession(ctx context.Context, actor models.Actor, rawID string) (*models.ChatHistory, error)
	DeleteSession(ctx context.Context, actor models.Actor, rawID string) error
}

// ChatHandler exposes the AI study assistant.
type ChatHandler struct {
	service chatService
}

// NewChatHandler constructs the handler.
func NewChatHandler(svc chatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// Send godoc
// @Summary Ask the assistant
// @Description Omit session_id to start a new conversation.
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body models.ChatRequest true "Message"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /chat [post]
func (h *ChatHandler) Send(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.ChatRequest
	if !bindJSON(c, &req, "invalid chat payload") {
		return
	}
	reply, err := h.service.Send(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reply)
}

// ListSessions godoc
// @Summary List chat sessions
// @Tags Chat
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /chat/sessions [get]
func (h *ChatHandler) ListSessions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	sessions, err := h.service.ListSessions(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sessions)
}

// GetSession godoc
// @Summary Get chat session
// @Tags Chat
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /chat/sessions/{id} [get]
func (h *ChatHandler) GetSession(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	session, err := h.service.GetSession(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// DeleteSession godoc
// @Summary Delete chat session
// @Tags Chat
// @Param id path string true "Session ID"
// @Success 204 {object} response.Envelope
// @Router /chat/sessions/{id} [delete]
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.DeleteSession(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
