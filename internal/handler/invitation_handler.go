package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/pkg/response"
)

type invitationService interface {
	Create(ctx context.Context, req models.CreateInvitationRequest, actorID string, meta models.RequestMeta) (*models.InvitationView, error)
	List(ctx context.Context, filter models.InvitationFilter) ([]models.InvitationView, *models.Pagination, error)
	Revoke(ctx context.Context, id, actorID string, meta models.RequestMeta) error
}

// InvitationHandler exposes admin invitation code management.
type InvitationHandler struct {
	service invitationService
}

// NewInvitationHandler constructs the handler.
func NewInvitationHandler(svc invitationService) *InvitationHandler {
	return &InvitationHandler{service: svc}
}

// Create godoc
// @Summary Create invitation code
// @Tags Invitations
// @Accept json
// @Produce json
// @Param payload body models.CreateInvitationRequest true "Invitation payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /invitations [post]
func (h *InvitationHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.CreateInvitationRequest
	if !bindJSON(c, &req, "invalid invitation payload") {
		return
	}

	inv, err := h.service.Create(c.Request.Context(), req, actor.ID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, inv)
}

// List godoc
// @Summary List invitation codes
// @Tags Invitations
// @Produce json
// @Param status query string false "active, used, expired or revoked"
// @Param role query string false "Role filter"
// @Success 200 {object} response.Envelope
// @Router /invitations [get]
func (h *InvitationHandler) List(c *gin.Context) {
	var filter models.InvitationFilter
	filter.Page, filter.PageSize = paging(c)
	filter.Status = models.InvitationStatus(strings.ToLower(c.Query("status")))
	if role := c.Query("role"); role != "" {
		r := models.UserRole(strings.ToUpper(role))
		filter.Role = &r
	}

	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, 200, items, pagination)
}

// Revoke godoc
// @Summary Revoke invitation code
// @Tags Invitations
// @Param id path string true "Invitation ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /invitations/{id} [delete]
func (h *InvitationHandler) Revoke(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.Revoke(c.Request.Context(), c.Param("id"), actor.ID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
