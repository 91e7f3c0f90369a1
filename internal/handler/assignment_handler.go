package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	"github.com/noah-isme/smart-classroom-api/internal/service"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/response"
)

type assignmentService interface {
	Create(ctx context.Context, actor models.Actor, req models.CreateAssignmentRequest) (*models.AssignmentDetail, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.AssignmentDetail, error)
	ListByClass(ctx context.Context, actor models.Actor, filter models.AssignmentFilter) ([]models.AssignmentDetail, *models.Pagination, error)
	Update(ctx context.Context, actor models.Actor, id string, req models.UpdateAssignmentRequest) (*models.AssignmentDetail, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	Submit(ctx context.Context, actor models.Actor, assignmentID string, req models.SubmitRequest, file *service.UploadedFile) (*models.Submission, error)
	ListSubmissions(ctx context.Context, actor models.Actor, assignmentID string) ([]models.SubmissionDetail, error)
	MySubmissions(ctx context.Context, actor models.Actor) ([]models.SubmissionDetail, error)
	Grade(ctx context.Context, actor models.Actor, submissionID string, req models.GradeRequest, meta models.RequestMeta) (*models.SubmissionDetail, error)
	SubmissionDownloadURL(ctx context.Context, actor models.Actor, submissionID string) (*models.FileDownload, error)
}

// AssignmentHandler exposes coursework, submission and grading endpoints.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(svc assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// Create godoc
// @Summary Create assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body models.CreateAssignmentRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.CreateAssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	created, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List assignments of a class
// @Tags Assignments
// @Produce json
// @Param class_id query string true "Class ID"
// @Param due_after query string false "Due after"
// @Param due_before query string false "Due before"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	classID := strings.TrimSpace(c.Query("class_id"))
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_id is required"))
		return
	}
	filter := models.AssignmentFilter{ClassID: classID}
	filter.Page, filter.PageSize = paging(c)
	var err error
	if filter.DueAfter, err = timeQuery(c, "due_after"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.DueBefore, err = timeQuery(c, "due_before"); err != nil {
		response.Error(c, err)
		return
	}

	items, pagination, err := h.service.ListByClass(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Update godoc
// @Summary Update assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body models.UpdateAssignmentRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.UpdateAssignmentRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
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
// @Summary Delete assignment
// @Tags Assignments
// @Param id path string true "Assignment ID"
// @Success 204 {object} response.Envelope
// @Router /assignments/{id} [delete]
func (h *AssignmentHandler) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Submit godoc
// @Summary Submit work
// @Description Accepts JSON or multipart/form-data with an optional "file" part.
// @Tags Assignments
// @Accept json
// @Accept mpfd
// @Produce json
// @Param id path string true "Assignment ID"
// @Param content formData string false "Answer text"
// @Param file formData file false "Attachment"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /assignments/{id}/submissions [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var (
		req  models.SubmitRequest
		file *service.UploadedFile
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBind(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission form"))
			return
		}
		header, err := c.FormFile("file")
		if err != nil && err != http.ErrMissingFile {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid file upload"))
			return
		}
		if header != nil {
			opened, err := header.Open()
			if err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file upload"))
				return
			}
			defer opened.Close()
			file = &service.UploadedFile{Name: header.Filename, Reader: opened}
		}
	} else if !bindJSON(c, &req, "invalid submission payload") {
		return
	}

	submission, err := h.service.Submit(c.Request.Context(), actor, c.Param("id"), req, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, submission)
}

// ListSubmissions godoc
// @Summary List submissions for an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submissions [get]
func (h *AssignmentHandler) ListSubmissions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	items, err := h.service.ListSubmissions(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// MySubmissions godoc
// @Summary Caller's submissions
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /submissions/me [get]
func (h *AssignmentHandler) MySubmissions(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	items, err := h.service.MySubmissions(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body models.GradeRequest true "Grade"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/grade [post]
func (h *AssignmentHandler) Grade(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.GradeRequest
	if !bindJSON(c, &req, "invalid grade payload") {
		return
	}
	graded, err := h.service.Grade(c.Request.Context(), actor, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, graded)
}

// DownloadURL godoc
// @Summary Signed download link for a submission file
// @Tags Assignments
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/download [get]
func (h *AssignmentHandler) DownloadURL(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	link, err := h.service.SubmissionDownloadURL(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}
