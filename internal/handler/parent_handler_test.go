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
)

type fakeParentSrv struct {
	linkReq     models.LinkChildRequest
	listedFor   string
	unlinked    [2]string
	overviewFor string
}

func (f *fakeParentSrv) LinkChild(_ context.Context, _ models.Actor, req models.LinkChildRequest) (*models.UserSummary, error) {
	f.linkReq = req
	return &models.UserSummary{ID: "student-1", Email: req.StudentEmail, Role: models.RoleStudent}, nil
}

func (f *fakeParentSrv) ListChildren(_ context.Context, _ models.Actor, parentID string) ([]models.UserSummary, error) {
	f.listedFor = parentID
	return []models.UserSummary{}, nil
}

func (f *fakeParentSrv) UnlinkChild(_ context.Context, _ models.Actor, parentID, studentID string) error {
	f.unlinked = [2]string{parentID, studentID}
	return nil
}

func (f *fakeParentSrv) ChildOverview(_ context.Context, _ models.Actor, studentID string) (*models.ChildOverview, error) {
	f.overviewFor = studentID
	return &models.ChildOverview{Student: models.UserSummary{ID: studentID}}, nil
}

func TestParentHandlerLinkByEmail(t *testing.T) {
	srv := &fakeParentSrv{}
	handler := NewParentHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/parents/children", strings.NewReader(`{"student_email":"kid@school.test"}`), parentClaims)

	handler.LinkChild(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "kid@school.test", srv.linkReq.StudentEmail)
}

func TestParentHandlerListChildrenIgnoresParentIDForParents(t *testing.T) {
	srv := &fakeParentSrv{}
	handler := NewParentHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/parents/children?parent_id=someone-else", nil, parentClaims)

	handler.ListChildren(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "parent-1", srv.listedFor)
}

func TestParentHandlerAdminUnlinksForParent(t *testing.T) {
	srv := &fakeParentSrv{}
	handler := NewParentHandler(srv)
	c, rec := newTestContext(http.MethodDelete, "/parents/children/student-1?parent_id=parent-9", nil, adminClaims)
	c.Params = gin.Params{{Key: "studentId", Value: "student-1"}}

	handler.UnlinkChild(c)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]string{"parent-9", "student-1"}, srv.unlinked)
}

func TestParentHandlerChildOverview(t *testing.T) {
	srv := &fakeParentSrv{}
	handler := NewParentHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/parents/children/student-1/overview", nil, parentClaims)
	c.Params = gin.Params{{Key: "studentId", Value: "student-1"}}

	handler.ChildOverview(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "student-1", srv.overviewFor)
}
