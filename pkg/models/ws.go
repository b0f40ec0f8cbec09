package models

import (
	"encoding/json"
	"fmt"
)

// MessageType is the top-level discriminant of a WebSocket envelope.
// The mixed casing mirrors what the browser extension sends and expects;
// changing any of these values breaks interop.
type MessageType string

const (
	TypePing          MessageType = "Ping"
	TypePong          MessageType = "Pong"
	TypeSessionInit   MessageType = "session_init"
	TypeSessionUpdate MessageType = "SessionUpdate"
	TypeActionRequest MessageType = "action_request"
	TypeActionResult  MessageType = "ActionResult"
	TypeUnknown       MessageType = "unknown"
)

// WsMessage is the tagged envelope exchanged with the browser extension.
// Exactly one payload field is set, matching Type. Unrecognized tags decode
// to TypeUnknown so new client message kinds never kill a connection.
type WsMessage struct {
	Type MessageType

	SessionInit   *SessionInit
	SessionUpdate *SessionUpdate
	ActionRequest *ActionRequest
	ActionResult  *ActionResult
}

// SessionInit tells the extension the id the server assigned to its socket.
type SessionInit struct {
	SessionID string `json:"session_id"`
}

// SessionUpdate is the extension's informational page-context report.
type SessionUpdate struct {
	URL   string  `json:"url"`
	Title *string `json:"title"`
}

// ActionRequest asks the extension to execute one browser command.
type ActionRequest struct {
	RequestID string        `json:"request_id"`
	Command   ActionCommand `json:"command"`
}

// ActionResult is the extension's reply to an ActionRequest. Error and Data
// are serialized even when absent; the extension distinguishes "null" from a
// missing key.
type ActionResult struct {
	RequestID string          `json:"request_id"`
	Success   bool            `json:"success"`
	Error     *string         `json:"error"`
	Data      json.RawMessage `json:"data"`
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewPing returns a keepalive message.
func NewPing() WsMessage { return WsMessage{Type: TypePing} }

// NewPong returns the reply to a Ping.
func NewPong() WsMessage { return WsMessage{Type: TypePong} }

// NewSessionInit wraps a session id for the post-upgrade handshake.
func NewSessionInit(sessionID string) WsMessage {
	return WsMessage{Type: TypeSessionInit, SessionInit: &SessionInit{SessionID: sessionID}}
}

// NewActionRequest wraps a command for dispatch to the extension.
func NewActionRequest(requestID string, cmd ActionCommand) WsMessage {
	return WsMessage{Type: TypeActionRequest, ActionRequest: &ActionRequest{RequestID: requestID, Command: cmd}}
}

// MarshalJSON encodes the envelope with its payload under "data". Ping and
// Pong carry no data key at all.
func (m WsMessage) MarshalJSON() ([]byte, error) {
	env := wsEnvelope{Type: string(m.Type)}

	var payload any
	switch m.Type {
	case TypePing, TypePong:
		payload = nil
	case TypeSessionInit:
		payload = m.SessionInit
	case TypeSessionUpdate:
		payload = m.SessionUpdate
	case TypeActionRequest:
		payload = m.ActionRequest
	case TypeActionResult:
		payload = m.ActionResult
	default:
		return nil, fmt.Errorf("cannot marshal message type %q", m.Type)
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s payload: %w", m.Type, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes the envelope, routing on the "type" tag.
func (m *WsMessage) UnmarshalJSON(b []byte) error {
	var env wsEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	*m = WsMessage{Type: MessageType(env.Type)}
	switch m.Type {
	case TypePing, TypePong:
		return nil
	case TypeSessionInit:
		m.SessionInit = &SessionInit{}
		return json.Unmarshal(env.Data, m.SessionInit)
	case TypeSessionUpdate:
		m.SessionUpdate = &SessionUpdate{}
		return json.Unmarshal(env.Data, m.SessionUpdate)
	case TypeActionRequest:
		m.ActionRequest = &ActionRequest{}
		return json.Unmarshal(env.Data, m.ActionRequest)
	case TypeActionResult:
		m.ActionResult = &ActionResult{}
		return json.Unmarshal(env.Data, m.ActionResult)
	default:
		m.Type = TypeUnknown
		return nil
	}
}
