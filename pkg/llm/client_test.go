package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-classroom-api/pkg/config"
)

func TestGeminiClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("x-goog-api-key"))

		var body geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotNil(t, body.SystemInstruction)
		assert.Equal(t, "be kind", body.SystemInstruction.Parts[0].Text)
		require.Len(t, body.Contents, 3)
		assert.Equal(t, "user", body.Contents[0].Role)
		assert.Equal(t, "model", body.Contents[1].Role)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Photosynthesis "},{"text":"uses light."}]}}],"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":4}}`))
	}))
	defer srv.Close()

	client := NewGeminiClient(config.LLMConfig{BaseURL: srv.URL + "/", APIKey: "key-123", Model: "test-model"}, srv.Client())
	reply, err := client.Complete(context.Background(), Request{
		System: "be kind",
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hello"},
			{Role: RoleUser, Content: "what is photosynthesis?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis uses light.", reply.Text)
	assert.Equal(t, "test-model", reply.Model)
	assert.Equal(t, 12, reply.PromptTokens)
	assert.Equal(t, 4, reply.OutputTokens)
}

func TestGeminiClientUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"quota"}`))
	}))
	defer srv.Close()

	client := NewGeminiClient(config.LLMConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"}, srv.Client())
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Status)
}

func TestGeminiClientEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client := NewGeminiClient(config.LLMConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"}, srv.Client())
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestGeminiClientRequiresKey(t *testing.T) {
	client := NewGeminiClient(config.LLMConfig{}, nil)
	_, err := client.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
