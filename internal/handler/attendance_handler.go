package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/export"
	"github.com/noah-isme/smart-classroom-api/pkg/response"
)

type attendanceService interface {
	IssueToken(ctx context.Context, actor models.Actor, req models.IssueTokenRequest) (*models.AttendanceToken, error)
	SessionQR(ctx context.Context, actor models.Actor, sessionID string) ([]byte, error)
	CheckIn(ctx context.Context, actor models.Actor, req models.CheckInRequest) (*models.Attendance, error)
	Mark(ctx context.Context, actor models.Actor, req models.MarkAttendanceRequest) (*models.Attendance, error)
	ClassRecords(ctx context.Context, actor models.Actor, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error)
	StudentHistory(ctx context.Context, actor models.Actor, studentID string, from, to *time.Time) (*models.StudentAttendanceHistory, error)
	ExportClass(ctx context.Context, actor models.Actor, classID string, from, to *time.Time, format export.Format) ([]byte, string, error)
}

// AttendanceHandler serves the QR check-in flow and attendance reports.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// IssueToken godoc
// @Summary Issue QR attendance token
// @Description Signs a short-lived token for a class session and returns it with a base64 PNG QR code.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.IssueTokenRequest true "Class"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance/token [post]
func (h *AttendanceHandler) IssueToken(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.IssueTokenRequest
	if !bindJSON(c, &req, "invalid token request") {
		return
	}
	token, err := h.service.IssueToken(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, token)
}

// SessionQR godoc
// @Summary QR code image for a live session
// @Tags Attendance
// @Produce png
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Failure 410 {object} response.Envelope
// @Router /attendance/sessions/{id}/qr.png [get]
func (h *AttendanceHandler) SessionQR(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	png, err := h.service.SessionQR(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// CheckIn godoc
// @Summary Check in with a scanned token
// @Description A repeated check-in for the same session returns 409 with the existing record.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.CheckInRequest true "Scanned token"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /attendance/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.CheckInRequest
	if !bindJSON(c, &req, "invalid check-in payload") {
		return
	}
	req.Token = strings.TrimSpace(req.Token)

	record, err := h.service.CheckIn(c.Request.Context(), actor, req)
	if err != nil {
		var appErr *appErrors.Error
		if record != nil && errors.As(err, &appErr) && appErr.Status == http.StatusConflict {
			response.ErrorWithData(c, err, record)
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Mark godoc
// @Summary Mark attendance manually
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.MarkAttendanceRequest true "Mark"
// @Success 200 {object} response.Envelope
// @Router /attendance/mark [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req models.MarkAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance mark") {
		return
	}
	record, err := h.service.Mark(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// ClassRecords godoc
// @Summary List class attendance
// @Tags Attendance
// @Produce json
// @Param classId path string true "Class ID"
// @Param status query string false "PRESENT, LATE, ABSENT or EXCUSED"
// @Param from query string false "Start date"
// @Param to query string false "End date"
// @Success 200 {object} response.Envelope
// @Router /attendance/classes/{classId} [get]
func (h *AttendanceHandler) ClassRecords(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	from, to, ok := timeRange(c)
	if !ok {
		return
	}
	filter := models.AttendanceFilter{ClassID: c.Param("classId"), From: from, To: to}
	filter.Page, filter.PageSize = paging(c)
	if status := strings.ToUpper(strings.TrimSpace(c.Query("status"))); status != "" {
		s := models.AttendanceStatus(status)
		filter.Status = &s
	}

	records, pagination, err := h.service.ClassRecords(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Export godoc
// @Summary Export class attendance
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Param classId path string true "Class ID"
// @Param format query string false "csv or pdf"
// @Param from query string false "Start date"
// @Param to query string false "End date"
// @Success 200 {file} binary
// @Router /attendance/classes/{classId}/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	from, to, ok := timeRange(c)
	if !ok {
		return
	}

	body, filename, err := h.service.ExportClass(c.Request.Context(), actor, c.Param("classId"), from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), body)
}

// StudentHistory godoc
// @Summary Student attendance history
// @Tags Attendance
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/students/{studentId} [get]
func (h *AttendanceHandler) StudentHistory(c *gin.Context) {
	h.history(c, c.Param("studentId"))
}

// MyHistory godoc
// @Summary Caller's attendance history
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/me [get]
func (h *AttendanceHandler) MyHistory(c *gin.Context) {
	h.history(c, "")
}

func (h *AttendanceHandler) history(c *gin.Context, studentID string) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if studentID == "" {
		studentID = actor.ID
	}
	from, to, ok := timeRange(c)
	if !ok {
		return
	}
	history, err := h.service.StudentHistory(c.Request.Context(), actor, studentID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, history)
}
