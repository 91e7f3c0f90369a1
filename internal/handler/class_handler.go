package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/pkg/response"
)

type classService interface {
	Create(ctx context.Context, actor models.Actor, req models.CreateClassRequest) (*models.ClassDetail, error)
	List(ctx context.Context, actor models.Actor, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.ClassDetail, error)
	Update(ctx context.Context, actor models.Actor, id string, req models.UpdateClassRequest) (*models.ClassDetail, error)
	Delete(ctx context.Context, actor models.Actor, id string, meta models.RequestMeta) error
	AddStudents(ctx context.Context, actor models.Actor, classID string, req models.AddStudentsRequest) (*models.AddStudentsResult, error)
	RemoveStudent(ctx context.Context, actor models.Actor, classID, studentID string) error
	ListStudents(ctx context.Context, actor models.Actor, classID string) ([]models.ClassMember, error)
	Join(ctx context.Context, actor models.Actor, req models.JoinClassRequest) (*models.ClassDetail, error)
	RegenerateJoinCode(ctx context.Context, actor models.Actor, classID string) (*models.ClassDetail, error)
}

// ClassHandler exposes class CRUD and roster endpoints.
type ClassHandler struct {
	service classService
}

// NewClassHandler constructs a class handler.
func NewClassHandler(svc classService) *ClassHandler {
	return &ClassHandler{service: svc}
}

// List godoc
// @Summary List classes
// @Description Admins see every class, teachers their own, students enrolled ones and parents their children's.
// @Tags Classes
// @Produce json
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var filter models.ClassFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = paging(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	classes, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// Get godoc
// @Summary Get class detail
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	classDetail, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, classDetail)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body models.CreateClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.CreateClassRequest
	if !bindJSON(c, &req, "invalid class payload") {
		return
	}
	created, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body models.UpdateClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.UpdateClassRequest
	if !bindJSON(c, &req, "invalid class payload") {
		return
	}
	updated, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Delete godoc
// @Summary Delete class
// @Tags Classes
// @Param id path string true "Class ID"
// @Success 204 {object} response.Envelope
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddStudents godoc
// @Summary Enrol students
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body models.AddStudentsRequest true "Student ids"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/students [post]
func (h *ClassHandler) AddStudents(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.AddStudentsRequest
	if !bindJSON(c, &req, "invalid students payload") {
		return
	}
	result, err := h.service.AddStudents(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// RemoveStudent godoc
// @Summary Remove student from class
// @Tags Classes
// @Param id path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Router /classes/{id}/students/{studentId} [delete]
func (h *ClassHandler) RemoveStudent(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.RemoveStudent(c.Request.Context(), actor, c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListStudents godoc
// @Summary List class roster
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/students [get]
func (h *ClassHandler) ListStudents(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	members, err := h.service.ListStudents(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, members)
}

// Join godoc
// @Summary Join class by code
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body models.JoinClassRequest true "Join code"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/join [post]
func (h *ClassHandler) Join(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.JoinClassRequest
	if !bindJSON(c, &req, "invalid join payload") {
		return
	}
	req.JoinCode = strings.ToUpper(strings.TrimSpace(req.JoinCode))
	joined, err := h.service.Join(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, joined)
}

// RegenerateJoinCode godoc
// @Summary Regenerate join code
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/join-code [post]
func (h *ClassHandler) RegenerateJoinCode(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	updated, err := h.service.RegenerateJoinCode(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}
