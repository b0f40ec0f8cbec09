// Package bridge turns the agent's synchronous tool calls into asynchronous
// request/response round-trips over a session's WebSocket.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tabpilot/tabpilot/pkg/metrics"
	"github.com/tabpilot/tabpilot/pkg/models"
	"github.com/tabpilot/tabpilot/pkg/ws"
)

// defaultTimeout bounds a single tool round-trip. The extension either
// answers within this window or the pending entry is abandoned.
const defaultTimeout = 30 * time.Second

var (
	// ErrNoSession means the named session has no live WebSocket.
	ErrNoSession = errors.New("no active WebSocket connection for this session")

	// ErrTimeout means the extension did not reply within the window.
	ErrTimeout = errors.New("tool execution timed out after 30 seconds")

	// ErrForbiddenURL rejects navigation to browser-internal pages.
	ErrForbiddenURL = errors.New("navigation to system pages (chrome://, about:, file://) is not allowed")
)

// SessionLookup resolves a session id to its outbound sink. Implemented by
// ws.Manager.
type SessionLookup interface {
	Lookup(sessionID string) (ws.Sink, bool)
}

// Bridge executes browser commands against live sessions and awaits their
// results. Safe for concurrent use; each Execute is an independent
// round-trip correlated purely by request id.
type Bridge struct {
	sessions SessionLookup
	pending  *PendingRegistry
	timeout  time.Duration
}

// NewBridge creates a Bridge with the standard 30-second round-trip timeout.
func NewBridge(sessions SessionLookup, pending *PendingRegistry) *Bridge {
	return &Bridge{sessions: sessions, pending: pending, timeout: defaultTimeout}
}

// NewBridgeWithTimeout is NewBridge with a caller-chosen timeout. Used by
// tests that cannot wait 30 seconds for the expiry path.
func NewBridgeWithTimeout(sessions SessionLookup, pending *PendingRegistry, timeout time.Duration) *Bridge {
	return &Bridge{sessions: sessions, pending: pending, timeout: timeout}
}

// Execute sends cmd to the session's extension and blocks until the matching
// action_result arrives, the timeout fires, or ctx is canceled. On success
// the returned string embeds the result payload for the model to read.
func (b *Bridge) Execute(ctx context.Context, sessionID string, cmd models.ActionCommand) (string, error) {
	sink, ok := b.sessions.Lookup(sessionID)
	if !ok {
		metrics.ToolRoundTrips.WithLabelValues(metrics.OutcomeNoSession).Inc()
		return "", ErrNoSession
	}

	requestID := uuid.New().String()

	// Register before sending so a reply can never race the registration.
	reply := b.pending.Register(requestID)

	if err := sink.TrySend(models.NewActionRequest(requestID, cmd)); err != nil {
		b.pending.Remove(requestID)
		metrics.ToolRoundTrips.WithLabelValues(metrics.OutcomeSendFail).Inc()
		return "", fmt.Errorf("failed to send action request: %w", err)
	}
	slog.Info("Sent action request",
		"request_id", requestID, "session_id", sessionID, "command", cmd.Type)

	start := time.Now()
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case result := <-reply:
		metrics.ToolRoundTripSeconds.Observe(time.Since(start).Seconds())
		if !result.Success {
			metrics.ToolRoundTrips.WithLabelValues(metrics.OutcomeRemote).Inc()
			if result.Error != nil {
				return "", errors.New(*result.Error)
			}
			return "", errors.New("action failed without an error message")
		}
		metrics.ToolRoundTrips.WithLabelValues(metrics.OutcomeSuccess).Inc()
		data := "null"
		if len(result.Data) > 0 {
			data = string(result.Data)
		}
		return "Success. Data: " + data, nil

	case <-timer.C:
		b.pending.Remove(requestID)
		metrics.ToolRoundTrips.WithLabelValues(metrics.OutcomeTimeout).Inc()
		slog.Warn("Tool round-trip timed out",
			"request_id", requestID, "session_id", sessionID)
		return "", ErrTimeout

	case <-ctx.Done():
		b.pending.Remove(requestID)
		return "", ctx.Err()
	}
}
