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

type fakeChatSrv struct {
	sendReq   models.ChatRequest
	sendErr   error
	deletedID string
}

func (f *fakeChatSrv) Send(_ context.Context, _ models.Actor, req models.ChatRequest) (*models.ChatReply, error) {
	f.sendReq = req
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &models.ChatReply{SessionID: "65f000000000000000000001", Title: "Photosynthesis", Reply: models.ChatMessage{Role: models.ChatRoleAssistant, Content: "Plants make sugar."}}, nil
}

func (f *fakeChatSrv) ListSessions(context.Context, models.Actor) ([]models.ChatSessionSummary, error) {
	return []models.ChatSessionSummary{}, nil
}

func (f *fakeChatSrv) GetSession(context.Context, models.Actor, string) (*models.ChatHistory, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "chat session not found")
}

func (f *fakeChatSrv) DeleteSession(_ context.Context, _ models.Actor, rawID string) error {
	f.deletedID = rawID
	return nil
}

func TestChatHandlerSend(t *testing.T) {
	srv := &fakeChatSrv{}
	handler := NewChatHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/chat", strings.NewReader(`{"message":"what is photosynthesis?"}`), studentClaims)

	handler.Send(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "what is photosynthesis?", srv.sendReq.Message)
	assert.Equal(t, "Photosynthesis", decodeEnvelope(t, rec).Data["title"])
}

func TestChatHandlerSendUpstreamFailure(t *testing.T) {
	handler := NewChatHandler(&fakeChatSrv{sendErr: appErrors.Clone(appErrors.ErrUpstream, "assistant is unavailable")})
	c, rec := newTestContext(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`), studentClaims)

	handler.Send(c)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "UPSTREAM_ERROR", decodeEnvelope(t, rec).Error.Code)
}

func TestChatHandlerGetSessionNotFound(t *testing.T) {
	handler := NewChatHandler(&fakeChatSrv{})
	c, rec := newTestContext(http.MethodGet, "/chat/sessions/x", nil, studentClaims)

	handler.GetSession(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatHandlerDeleteSession(t *testing.T) {
	srv := &fakeChatSrv{}
	handler := NewChatHandler(srv)
	c, rec := newTestContext(http.MethodDelete, "/chat/sessions/65f000000000000000000001", nil, studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "65f000000000000000000001"}}

	handler.DeleteSession(c)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "65f000000000000000000001", srv.deletedID)
}
