// Package ws owns the WebSocket side of the extension protocol: one session
// per socket, an outbound channel drained by a single writer, and inbound
// dispatch to the pending-action registry.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/tabpilot/tabpilot/pkg/metrics"
	"github.com/tabpilot/tabpilot/pkg/models"
)

// sinkCapacity bounds the outbound queue per session. A full queue fails the
// send instead of blocking the sender; the extension draining frames this far
// behind is effectively gone.
const sinkCapacity = 256

// ErrSinkFull is returned by Sink.TrySend when the outbound queue is full.
var ErrSinkFull = errors.New("outbound queue full")

// Sink is a session's outbound message queue. A Sink handed out by Lookup
// stays usable after the session closes; messages enqueued then are dropped
// with the channel.
type Sink chan models.WsMessage

// TrySend enqueues msg without blocking.
func (s Sink) TrySend(msg models.WsMessage) error {
	select {
	case s <- msg:
		return nil
	default:
		return ErrSinkFull
	}
}

// ActionCompleter resolves inbound action results against pending requests.
// Implemented by bridge.PendingRegistry.
type ActionCompleter interface {
	Complete(requestID string, result models.ActionResult) bool
}

// PageContext is the most recent session_update snapshot for a session.
type PageContext struct {
	URL      string    `json:"url"`
	Title    *string   `json:"title"`
	LastSeen time.Time `json:"last_seen"`
}

// Manager tracks live extension sessions. Each process has one Manager.
type Manager struct {
	// Active sessions keyed by session id.
	sessions map[string]*Session
	mu       sync.RWMutex

	// Last session_update per session; cleared when the session closes
	contexts  map[string]PageContext
	contextMu sync.RWMutex

	completer    ActionCompleter
	writeTimeout time.Duration
}

// Session is one live WebSocket from one browser tab. The read loop in
// HandleConnection is the sole owner of the socket's read side; the writer
// goroutine is the sole owner of the write side.
type Session struct {
	ID       string
	conn     *websocket.Conn
	outbound Sink
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewManager creates a Manager dispatching action results to completer.
func NewManager(completer ActionCompleter, writeTimeout time.Duration) *Manager {
	return &Manager{
		sessions:     make(map[string]*Session),
		contexts:     make(map[string]PageContext),
		completer:    completer,
		writeTimeout: writeTimeout,
	}
}

// HandleConnection manages the lifecycle of a single WebSocket connection.
// Called by the HTTP handler after upgrade. Blocks until the connection
// closes.
func (m *Manager) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	sessionID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	s := &Session{
		ID:       sessionID,
		conn:     conn,
		outbound: make(Sink, sinkCapacity),
		ctx:      ctx,
		cancel:   cancel,
	}

	m.register(s)
	defer m.unregister(s)

	go m.writeLoop(s)

	// The extension learns its id from this frame.
	if err := s.outbound.TrySend(models.NewSessionInit(sessionID)); err != nil {
		slog.Error("Failed to queue session_init", "session_id", sessionID, "error", err)
		return
	}
	slog.Info("WebSocket session connected", "session_id", sessionID)

	// Read loop — dispatch inbound frames until the connection closes.
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			slog.Info("WebSocket session closed", "session_id", sessionID, "error", err)
			return
		}

		var msg models.WsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Invalid WebSocket message",
				"session_id", sessionID, "error", err)
			continue
		}

		m.dispatch(s, msg)
	}
}

// dispatch handles one inbound message. Runs on the read loop, so no two
// handlers execute concurrently for the same session.
func (m *Manager) dispatch(s *Session, msg models.WsMessage) {
	switch msg.Type {
	case models.TypePing:
		if err := s.outbound.TrySend(models.NewPong()); err != nil {
			slog.Warn("Failed to queue pong", "session_id", s.ID, "error", err)
		}

	case models.TypeSessionUpdate:
		m.storeContext(s.ID, msg.SessionUpdate)
		slog.Info("Session update",
			"session_id", s.ID, "url", msg.SessionUpdate.URL)

	case models.TypeActionResult:
		if !m.completer.Complete(msg.ActionResult.RequestID, *msg.ActionResult) {
			// Late reply after timeout, or a request id we never issued.
			slog.Debug("Dropping unmatched action result",
				"session_id", s.ID, "request_id", msg.ActionResult.RequestID)
		}

	case models.TypeActionRequest:
		// Requests originate server-side only.
		slog.Warn("Dropping client-originated action_request",
			"session_id", s.ID, "request_id", msg.ActionRequest.RequestID)

	default:
		slog.Warn("Dropping message with unknown type", "session_id", s.ID)
	}
}

// writeLoop drains the outbound queue onto the socket. Exits when the
// session context is canceled; cancels it on write failure so the read loop
// unwinds too.
func (m *Manager) writeLoop(s *Session) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.outbound:
			data, err := json.Marshal(msg)
			if err != nil {
				slog.Error("Failed to marshal outbound message",
					"session_id", s.ID, "type", msg.Type, "error", err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(s.ctx, m.writeTimeout)
			err = s.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Warn("WebSocket write failed",
					"session_id", s.ID, "error", err)
				s.cancel()
				return
			}
		}
	}
}

// Lookup returns the outbound sink for a session, if connected.
func (m *Manager) Lookup(sessionID string) (Sink, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return s.outbound, true
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Contexts returns a snapshot of the last page context per session.
func (m *Manager) Contexts() map[string]PageContext {
	m.contextMu.RLock()
	defer m.contextMu.RUnlock()
	out := make(map[string]PageContext, len(m.contexts))
	for id, pc := range m.contexts {
		out[id] = pc
	}
	return out
}

func (m *Manager) storeContext(sessionID string, upd *models.SessionUpdate) {
	m.contextMu.Lock()
	defer m.contextMu.Unlock()
	m.contexts[sessionID] = PageContext{
		URL:      upd.URL,
		Title:    upd.Title,
		LastSeen: time.Now().UTC(),
	}
}

func (m *Manager) register(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; exists {
		// Session ids are freshly minted UUIDs; a collision is a bug.
		slog.Error("Duplicate session id, overwriting", "session_id", s.ID)
	}
	m.sessions[s.ID] = s
	metrics.ActiveSessions.Inc()
}

// unregister removes the session. Pending actions for it are left to expire
// via the bridge timeout.
func (m *Manager) unregister(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()

	m.contextMu.Lock()
	delete(m.contexts, s.ID)
	m.contextMu.Unlock()

	metrics.ActiveSessions.Dec()
	s.cancel()
	_ = s.conn.Close(websocket.StatusNormalClosure, "")
}
