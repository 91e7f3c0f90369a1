package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-classroom-api/pkg/config"
)

func TestNewPicksImplementation(t *testing.T) {
	_, isLog := New(config.MailConfig{}, zap.NewNop()).(*LogMailer)
	assert.True(t, isLog)

	_, isSendgrid := New(config.MailConfig{SendgridAPIKey: "SG.x"}, zap.NewNop()).(*SendgridMailer)
	assert.True(t, isSendgrid)
}

func TestSendgridMailerSend(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &captured))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m := NewSendgridMailer(config.MailConfig{SendgridAPIKey: "SG.test", FromName: "Classroom", FromAddress: "no-reply@example.com"}, srv.URL)
	err := m.Send(context.Background(), Message{
		To:      []Address{{Name: "Ana", Email: "ana@example.com"}},
		Subject: "Reset your password",
		Text:    "follow the link",
	})
	require.NoError(t, err)

	from := captured["from"].(map[string]interface{})
	assert.Equal(t, "no-reply@example.com", from["email"])
	personalizations := captured["personalizations"].([]interface{})
	require.Len(t, personalizations, 1)
	assert.Equal(t, "Reset your password", personalizations[0].(map[string]interface{})["subject"])
}

func TestSendgridMailerRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m := NewSendgridMailer(config.MailConfig{SendgridAPIKey: "bad"}, srv.URL)
	err := m.Send(context.Background(), Message{To: []Address{{Email: "a@example.com"}}, Subject: "x", Text: "y"})
	assert.Error(t, err)
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer(nil)
	assert.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNoRecipients)
	require.NoError(t, m.Send(context.Background(), Message{To: []Address{{Email: "a@example.com"}}, Subject: "hi"}))
	assert.Len(t, m.Sent(), 1)
}
