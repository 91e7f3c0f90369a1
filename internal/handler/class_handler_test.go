package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
)

type fakeClassSrv struct {
	classService
	lastActor  models.Actor
	lastFilter models.ClassFilter
	joinReq    models.JoinClassRequest
	joinErr    error
	addReq     models.AddStudentsRequest
	removed    [2]string
}

func (f *fakeClassSrv) List(_ context.Context, actor models.Actor, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	f.lastActor = actor
	f.lastFilter = filter
	return []models.ClassDetail{{Class: models.Class{ID: "class-1", Name: "Physics"}}}, models.NewPagination(filter.Page, filter.PageSize, 1), nil
}

func (f *fakeClassSrv) Join(_ context.Context, actor models.Actor, req models.JoinClassRequest) (*models.ClassDetail, error) {
	f.lastActor = actor
	f.joinReq = req
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	return &models.ClassDetail{Class: models.Class{ID: "class-1", JoinCode: req.JoinCode}}, nil
}

func (f *fakeClassSrv) AddStudents(_ context.Context, _ models.Actor, _ string, req models.AddStudentsRequest) (*models.AddStudentsResult, error) {
	f.addReq = req
	return &models.AddStudentsResult{Added: len(req.StudentIDs) - 1, Skipped: 1}, nil
}

func (f *fakeClassSrv) RemoveStudent(_ context.Context, _ models.Actor, classID, studentID string) error {
	f.removed = [2]string{classID, studentID}
	return nil
}

func TestClassHandlerListScopesToCaller(t *testing.T) {
	srv := &fakeClassSrv{}
	handler := NewClassHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/classes?page=2&page_size=5&search=%20phys%20", nil, parentClaims)

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RoleParent, srv.lastActor.Role)
	assert.Equal(t, 2, srv.lastFilter.Page)
	assert.Equal(t, 5, srv.lastFilter.PageSize)
	assert.Equal(t, "phys", srv.lastFilter.Search)
	assert.Contains(t, rec.Body.String(), `"total_count":1`)
}

func TestClassHandlerJoinNormalisesCode(t *testing.T) {
	srv := &fakeClassSrv{}
	handler := NewClassHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/classes/join", strings.NewReader(`{"join_code":" ab3xyz "}`), studentClaims)

	handler.Join(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AB3XYZ", srv.joinReq.JoinCode)
}

func TestClassHandlerJoinConflict(t *testing.T) {
	handler := NewClassHandler(&fakeClassSrv{joinErr: appErrors.Clone(appErrors.ErrConflict, "already enrolled")})
	c, rec := newTestContext(http.MethodPost, "/classes/join", strings.NewReader(`{"join_code":"AB3XYZ"}`), studentClaims)

	handler.Join(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestClassHandlerAddStudents(t *testing.T) {
	srv := &fakeClassSrv{}
	handler := NewClassHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/classes/class-1/students", strings.NewReader(`{"student_ids":["s1","s2"]}`), teacherClaims)
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.AddStudents(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s1", "s2"}, srv.addReq.StudentIDs)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, float64(1), envelope.Data["added"])
	assert.Equal(t, float64(1), envelope.Data["skipped"])
}

func TestClassHandlerRemoveStudent(t *testing.T) {
	srv := &fakeClassSrv{}
	handler := NewClassHandler(srv)
	c, rec := newTestContext(http.MethodDelete, "/classes/class-1/students/s1", nil, teacherClaims)
	c.Params = gin.Params{{Key: "id", Value: "class-1"}, {Key: "studentId", Value: "s1"}}

	handler.RemoveStudent(c)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]string{"class-1", "s1"}, srv.removed)
}
