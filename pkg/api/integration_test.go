package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabpilot/tabpilot/pkg/agent"
	"github.com/tabpilot/tabpilot/pkg/bridge"
	"github.com/tabpilot/tabpilot/pkg/llm"
	"github.com/tabpilot/tabpilot/pkg/models"
	"github.com/tabpilot/tabpilot/pkg/ws"
)

// scriptedLLM drives the agent loop from the test instead of a live model.
type scriptedLLM struct {
	agentFn func(ctx context.Context, preamble, message, image string, tools []llm.Tool) (string, error)
}

func (s *scriptedLLM) Complete(context.Context, string, string, string) (string, *llm.Usage, error) {
	return "", nil, errors.New("complete not scripted")
}

func (s *scriptedLLM) Stream(context.Context, string, string, string) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("stream not scripted")
}

func (s *scriptedLLM) RunAgent(ctx context.Context, preamble, message, image string, tools []llm.Tool) (string, error) {
	return s.agentFn(ctx, preamble, message, image, tools)
}

// harness is a full server stack with a scripted model, backed by a real
// connection manager and tool bridge.
type harness struct {
	srv     *httptest.Server
	manager *ws.Manager
}

func newHarness(t *testing.T, client llm.Client, toolTimeout time.Duration) *harness {
	t.Helper()

	pending := bridge.NewPendingRegistry()
	manager := ws.NewManager(pending, 5*time.Second)
	br := bridge.NewBridgeWithTimeout(manager, pending, toolTimeout)
	orch := agent.New(client, br)

	server := NewServer(orch, manager, nil)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	return &harness{srv: srv, manager: manager}
}

// dialExtension connects like the browser extension would and returns the
// assigned session id alongside the connection.
func (h *harness) dialExtension(t *testing.T, ctx context.Context) (*websocket.Conn, string) {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	init := readFrame(t, ctx, conn)
	require.Equal(t, models.TypeSessionInit, init.Type)
	require.NotNil(t, init.SessionInit)
	return conn, init.SessionInit.SessionID
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) models.WsMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg models.WsMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, msg models.WsMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func (h *harness) postAgent(t *testing.T, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(h.srv.URL+"/agent/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp, readAll(t, resp)
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func toolByName(t *testing.T, tools []llm.Tool, name string) llm.Tool {
	t.Helper()
	for _, tool := range tools {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not offered", name)
	return llm.Tool{}
}

func TestEndToEndClick(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := &scriptedLLM{
		agentFn: func(ctx context.Context, preamble, message, image string, tools []llm.Tool) (string, error) {
			require.Contains(t, preamble, "- Ref 7: Submit (button)")
			out, err := toolByName(t, tools, "click_element").Call(ctx, map[string]any{"ref": float64(7)})
			if err != nil {
				return "", err
			}
			require.Equal(t, "Success. Data: null", out)
			return "Clicked the Submit button.", nil
		},
	}
	h := newHarness(t, client, 5*time.Second)
	conn, sessionID := h.dialExtension(t, ctx)

	// Extension side: answer the click request.
	go func() {
		msg := readFrame(t, ctx, conn)
		if msg.Type != models.TypeActionRequest {
			return
		}
		writeFrame(t, ctx, conn, models.WsMessage{
			Type: models.TypeActionResult,
			ActionResult: &models.ActionResult{
				RequestID: msg.ActionRequest.RequestID,
				Success:   true,
			},
		})
	}()

	body := fmt.Sprintf(`{"query":"click submit","session_id":%q,"interactive_elements":[{"id":7,"name":"Submit","role":"button"}]}`, sessionID)
	resp, respBody := h.postAgent(t, body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, respBody, "Clicked the Submit button.")
}

func TestEndToEndToolTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := &scriptedLLM{
		agentFn: func(ctx context.Context, _, _, _ string, tools []llm.Tool) (string, error) {
			_, err := toolByName(t, tools, "click_element").Call(ctx, map[string]any{"ref": float64(1)})
			require.ErrorIs(t, err, bridge.ErrTimeout)
			return "The page did not respond in time.", nil
		},
	}
	h := newHarness(t, client, 100*time.Millisecond)
	conn, sessionID := h.dialExtension(t, ctx)

	// Extension receives the request but never answers.
	go func() {
		_, _, _ = conn.Read(ctx)
	}()

	resp, respBody := h.postAgent(t, fmt.Sprintf(`{"query":"click","session_id":%q}`, sessionID))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, respBody, "did not respond in time")
}

func TestEndToEndUnknownSession(t *testing.T) {
	client := &scriptedLLM{
		agentFn: func(ctx context.Context, _, _, _ string, tools []llm.Tool) (string, error) {
			_, err := toolByName(t, tools, "navigate_to").Call(ctx, map[string]any{"url": "https://example.com"})
			require.ErrorIs(t, err, bridge.ErrNoSession)
			return "", err
		},
	}
	h := newHarness(t, client, time.Second)

	resp, respBody := h.postAgent(t, `{"query":"open example.com","session_id":"ghost"}`)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, respBody, "no active WebSocket connection")
}

func TestEndToEndForbiddenURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := &scriptedLLM{
		agentFn: func(ctx context.Context, _, _, _ string, tools []llm.Tool) (string, error) {
			_, err := toolByName(t, tools, "navigate_to").Call(ctx, map[string]any{"url": "CHROME://settings"})
			require.ErrorIs(t, err, bridge.ErrForbiddenURL)
			return "I can't open browser system pages.", nil
		},
	}
	h := newHarness(t, client, 5*time.Second)
	conn, sessionID := h.dialExtension(t, ctx)

	// The rejected navigation must never reach the extension. Any frame that
	// does arrive before the deadline fails the test.
	frames := make(chan models.WsMessage, 1)
	go func() {
		readCtx, readCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer readCancel()
		_, data, err := conn.Read(readCtx)
		if err != nil {
			return
		}
		var msg models.WsMessage
		if json.Unmarshal(data, &msg) == nil {
			frames <- msg
		}
	}()

	resp, respBody := h.postAgent(t, fmt.Sprintf(`{"query":"open chrome settings","session_id":%q}`, sessionID))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, respBody, "can't open browser system pages")

	select {
	case msg := <-frames:
		t.Fatalf("extension received unexpected frame %q", msg.Type)
	case <-time.After(600 * time.Millisecond):
	}
}

func TestEndToEndSessionUpdateVisibleInDebug(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	h := newHarness(t, &scriptedLLM{}, time.Second)
	conn, sessionID := h.dialExtension(t, ctx)

	title := "Example Domain"
	writeFrame(t, ctx, conn, models.WsMessage{
		Type: models.TypeSessionUpdate,
		SessionUpdate: &models.SessionUpdate{
			URL:   "https://example.com",
			Title: &title,
		},
	})

	require.Eventually(t, func() bool {
		contexts := h.manager.Contexts()
		pc, ok := contexts[sessionID]
		return ok && pc.URL == "https://example.com"
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get(h.srv.URL + "/debug/context")
	require.NoError(t, err)
	defer resp.Body.Close()
	body := readAll(t, resp)
	assert.Contains(t, body, `"active_sessions":1`)
	assert.Contains(t, body, "https://example.com")
}
