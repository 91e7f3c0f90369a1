package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/pkg/response"
)

type parentService interface {
	LinkChild(ctx context.Context, actor models.Actor, req models.LinkChildRequest) (*models.UserSummary, error)
	ListChildren(ctx context.Context, actor models.Actor, parentID string) ([]models.UserSummary, error)
	UnlinkChild(ctx context.Context, actor models.Actor, parentID, studentID string) error
	ChildOverview(ctx context.Context, actor models.Actor, studentID string) (*models.ChildOverview, error)
}

// ParentHandler manages parent-child links and child overviews.
type ParentHandler struct {
	service parentService
}

// NewParentHandler constructs the handler.
func NewParentHandler(svc parentService) *ParentHandler {
	return &ParentHandler{service: svc}
}

// parentScope is the caller for parents; admins name the parent with ?parent_id=.
func parentScope(c *gin.Context, actor models.Actor) string {
	if id := strings.TrimSpace(c.Query("parent_id")); id != "" && actor.IsAdmin() {
		return id
	}
	return actor.ID
}

// LinkChild godoc
// @Summary Link a child account
// @Description Parents link by student_email; admins pass parent_id and student_id.
// @Tags Parents
// @Accept json
// @Produce json
// @Param payload body models.LinkChildRequest true "Link"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /parents/children [post]
func (h *ParentHandler) LinkChild(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.LinkChildRequest
	if !bindJSON(c, &req, "invalid link payload") {
		return
	}
	child, err := h.service.LinkChild(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, child)
}

// ListChildren godoc
// @Summary List linked children
// @Tags Parents
// @Produce json
// @Param parent_id query string false "Parent ID (admin only)"
// @Success 200 {object} response.Envelope
// @Router /parents/children [get]
func (h *ParentHandler) ListChildren(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	children, err := h.service.ListChildren(c.Request.Context(), actor, parentScope(c, actor))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, children)
}

// UnlinkChild godoc
// @Summary Unlink a child
// @Tags Parents
// @Param studentId path string true "Student ID"
// @Param parent_id query string false "Parent ID (admin only)"
// @Success 204 {object} response.Envelope
// @Router /parents/children/{studentId} [delete]
func (h *ParentHandler) UnlinkChild(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.UnlinkChild(c.Request.Context(), actor, parentScope(c, actor), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChildOverview godoc
// @Summary Child overview
// @Tags Parents
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /parents/children/{studentId}/overview [get]
func (h *ParentHandler) ChildOverview(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	overview, err := h.service.ChildOverview(c.Request.Context(), actor, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, overview)
}
