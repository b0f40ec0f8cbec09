package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabpilot/tabpilot/pkg/llm"
	"github.com/tabpilot/tabpilot/pkg/models"
	"github.com/tabpilot/tabpilot/pkg/ws"
)

type mockRunner struct {
	resp      models.ChatResponse
	err       error
	chunks    []llm.StreamChunk
	streamErr error
	gotReq    models.AgentRequest
}

func (m *mockRunner) Run(_ context.Context, req models.AgentRequest) (models.ChatResponse, error) {
	m.gotReq = req
	return m.resp, m.err
}

func (m *mockRunner) Stream(_ context.Context, req models.AgentRequest) (<-chan llm.StreamChunk, error) {
	m.gotReq = req
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	out := make(chan llm.StreamChunk, len(m.chunks))
	for _, c := range m.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func (m *mockRunner) ShouldStream(req models.AgentRequest) bool {
	return req.Stream && req.SessionID == ""
}

func newTestServer(runner AgentRunner, memories MemoryService) *Server {
	return NewServer(runner, ws.NewManager(completerStub{}, time.Second), memories)
}

type completerStub struct{}

func (completerStub) Complete(string, models.ActionResult) bool { return false }

func postJSON(s *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAgentHandlerJSONResponse(t *testing.T) {
	runner := &mockRunner{resp: models.ChatResponse{Response: "done"}}
	s := newTestServer(runner, nil)

	rec := postJSON(s, "/agent/run", `{"query":"click submit","session_id":"s1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"done"}`, rec.Body.String())
	assert.Equal(t, "click submit", runner.gotReq.Query)
	assert.Equal(t, "s1", runner.gotReq.SessionID)
}

func TestAgentHandlerTokenCounts(t *testing.T) {
	prompt, response, total := 5, 7, 12
	runner := &mockRunner{resp: models.ChatResponse{
		Response:       "done",
		PromptTokens:   &prompt,
		ResponseTokens: &response,
		TotalTokens:    &total,
	}}
	s := newTestServer(runner, nil)

	rec := postJSON(s, "/api/chat", `{"query":"q"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"done","prompt_tokens":5,"response_tokens":7,"total_tokens":12}`, rec.Body.String())
}

func TestAgentHandlerBothRoutesShareHandler(t *testing.T) {
	runner := &mockRunner{resp: models.ChatResponse{Response: "ok"}}
	s := newTestServer(runner, nil)

	for _, path := range []string{"/api/chat", "/agent/run"} {
		rec := postJSON(s, path, `{"query":"q"}`)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestAgentHandlerValidation(t *testing.T) {
	s := newTestServer(&mockRunner{}, nil)

	t.Run("missing query", func(t *testing.T) {
		rec := postJSON(s, "/agent/run", `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := postJSON(s, "/agent/run", `{"query":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAgentHandlerErrorMapsTo500(t *testing.T) {
	runner := &mockRunner{err: errors.New("provider exploded")}
	s := newTestServer(runner, nil)

	rec := postJSON(s, "/agent/run", `{"query":"q"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "provider exploded")
}

func TestAgentHandlerStream(t *testing.T) {
	runner := &mockRunner{chunks: []llm.StreamChunk{
		{Text: "Hello"},
		{Text: "two\nlines"},
	}}
	s := newTestServer(runner, nil)

	rec := postJSON(s, "/api/chat", `{"query":"q","stream":true}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	body := rec.Body.String()
	assert.Contains(t, body, "data: Hello\n\n")
	// A multi-line chunk becomes multiple data lines in one event.
	assert.Contains(t, body, "data: two\ndata: lines\n\n")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestAgentHandlerStreamError(t *testing.T) {
	runner := &mockRunner{chunks: []llm.StreamChunk{
		{Text: "partial"},
		{Err: errors.New("stream broke")},
	}}
	s := newTestServer(runner, nil)

	rec := postJSON(s, "/api/chat", `{"query":"q","stream":true}`)

	body := rec.Body.String()
	assert.Contains(t, body, "data: partial\n\n")
	assert.Contains(t, body, "event: error\ndata: stream broke\n\n")
	assert.NotContains(t, body, "[DONE]")
}

func TestAgentHandlerStreamWithSessionStaysJSON(t *testing.T) {
	runner := &mockRunner{resp: models.ChatResponse{Response: "tool run"}}
	s := newTestServer(runner, nil)

	rec := postJSON(s, "/agent/run", `{"query":"q","session_id":"s1","stream":true}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"tool run"}`, rec.Body.String())
}

func TestHelloAndHealth(t *testing.T) {
	s := newTestServer(&mockRunner{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	var health map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.NotEmpty(t, health["version"])
}

func TestCORSHeaders(t *testing.T) {
	s := newTestServer(&mockRunner{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/agent/run", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestDebugContext(t *testing.T) {
	s := newTestServer(&mockRunner{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/debug/context", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active_sessions":0,"contexts":{}}`, rec.Body.String())
}
