package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int64         `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

const okBody = `{
	"id": "cmpl-1",
	"object": "chat.completion",
	"created": 1,
	"model": "openai/gpt-3.5-turbo",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "PCOD is a hormonal disorder."}
	}]
}`

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newTestClient(url string) *Client {
	return New(Config{
		BaseURL:     url + "/v1",
		APIKey:      "test-key",
		Model:       DefaultModel,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	})
}

func TestCompleteSendsTwoMessageContext(t *testing.T) {
	var got wireRequest
	var auth, path string
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, okBody)
	})

	reply, err := newTestClient(srv.URL).Complete(context.Background(), "What is PCOD?")
	require.NoError(t, err)

	assert.Equal(t, "PCOD is a hormonal disorder.", reply)
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, "Bearer test-key", auth)
	assert.True(t, strings.HasSuffix(path, "/chat/completions"), path)

	assert.Equal(t, DefaultModel, got.Model)
	assert.EqualValues(t, 1000, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	assert.Equal(t, []wireMessage{
		{Role: "system", Content: DefaultSystemPrompt},
		{Role: "user", Content: "What is PCOD?"},
	}, got.Messages)
}

func TestCompleteNonSuccessStatusIsSingleAttempt(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"error":{"message":"boom"}}`)
	})

	_, err := newTestClient(srv.URL).Complete(context.Background(), "hi")

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, http.StatusInternalServerError, cerr.Status)
	assert.EqualValues(t, 1, hits.Load())
}

func TestCompleteUnauthorized(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":{"message":"no key"}}`)
	})

	_, err := newTestClient(srv.URL).Complete(context.Background(), "hi")

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, http.StatusUnauthorized, cerr.Status)
}

func TestCompleteNoChoices(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`)
	})

	_, err := newTestClient(srv.URL).Complete(context.Background(), "hi")

	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, errNoChoices)
}

func TestCompleteEmptyContent(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`)
	})

	_, err := newTestClient(srv.URL).Complete(context.Background(), "hi")

	assert.ErrorIs(t, err, errEmptyContent)
}

func TestCompleteMalformedPayload(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"choices": [`)
	})

	_, err := newTestClient(srv.URL).Complete(context.Background(), "hi")

	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
}

func TestCompleteHonoursContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL).Complete(ctx, "hi")

	var cerr *Error
	assert.ErrorAs(t, err, &cerr)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.EqualValues(t, DefaultMaxTokens, cfg.MaxTokens)
	assert.Equal(t, DefaultSystemPrompt, cfg.SystemPrompt)
	assert.InDelta(t, DefaultTemperature, cfg.Temperature, 1e-9)

	cfg = Config{Temperature: 1.2}.withDefaults()
	assert.InDelta(t, 1.2, cfg.Temperature, 1e-9)

	cfg = Config{ZeroTemperature: true}.withDefaults()
	assert.Zero(t, cfg.Temperature)
}

func TestCompleteMinimalConfigSendsDefaultTemperature(t *testing.T) {
	var got wireRequest
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, okBody)
	})

	c := New(Config{BaseURL: srv.URL + "/v1", APIKey: "test-key"})
	_, err := c.Complete(context.Background(), "Is PCOD curable?")
	require.NoError(t, err)

	assert.InDelta(t, DefaultTemperature, got.Temperature, 1e-9)
	assert.EqualValues(t, DefaultMaxTokens, got.MaxTokens)
}
