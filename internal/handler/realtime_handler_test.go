package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-classroom-api/internal/models"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/middleware/cors"
	"github.com/noah-isme/smart-classroom-api/pkg/realtime"
)

type fakeRealtimeHub struct {
	served bool
	who    realtime.Identity
	opts   realtime.Options
}

func (f *fakeRealtimeHub) Serve(_ http.ResponseWriter, _ *http.Request, who realtime.Identity, opts realtime.Options) error {
	f.served = true
	f.who = who
	f.opts = opts
	return nil
}

type fakeTokenValidator struct {
	claims *models.JWTClaims
}

func (f fakeTokenValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if f.claims == nil || token != "good-token" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return f.claims, nil
}

func TestRealtimeHandlerRequiresToken(t *testing.T) {
	hub := &fakeRealtimeHub{}
	handler := NewRealtimeHandler(hub, fakeTokenValidator{claims: studentClaims}, nil, realtime.Options{}, nil)
	c, rec := newTestContext(http.MethodGet, "/ws", nil, nil)

	handler.Connect(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, hub.served)
}

func TestRealtimeHandlerRejectsBadToken(t *testing.T) {
	hub := &fakeRealtimeHub{}
	handler := NewRealtimeHandler(hub, fakeTokenValidator{claims: studentClaims}, nil, realtime.Options{}, nil)
	c, rec := newTestContext(http.MethodGet, "/ws?token=forged", nil, nil)

	handler.Connect(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, hub.served)
}

func TestRealtimeHandlerServesIdentity(t *testing.T) {
	hub := &fakeRealtimeHub{}
	policy := cors.NewPolicy([]string{"https://classroom.example"})
	handler := NewRealtimeHandler(hub, fakeTokenValidator{claims: studentClaims}, policy, realtime.Options{SendBuffer: 4}, nil)
	c, _ := newTestContext(http.MethodGet, "/ws?token=good-token", nil, nil)

	handler.Connect(c)

	require.True(t, hub.served)
	assert.Equal(t, realtime.Identity{UserID: "student-1", Role: "STUDENT", Name: "Sam Student"}, hub.who)
	assert.Equal(t, 4, hub.opts.SendBuffer)
	require.NotNil(t, hub.opts.CheckOrigin)

	allowed, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	allowed.Header.Set("Origin", "https://classroom.example")
	assert.True(t, hub.opts.CheckOrigin(allowed))
	denied, _ := http.NewRequest(http.MethodGet, "/ws", nil)
	denied.Header.Set("Origin", "https://evil.example")
	assert.False(t, hub.opts.CheckOrigin(denied))
}
