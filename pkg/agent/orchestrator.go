// Package agent runs user queries against the model, wiring in browser
// tools when the request names a live session.
package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tabpilot/tabpilot/pkg/llm"
	"github.com/tabpilot/tabpilot/pkg/models"
)

// Friendly replacements for the model's occasional refusal to produce any
// message at all during tool runs.
const (
	fallbackEmptyImage = "Sorry, I can't analyze this image in browser automation mode. Try turning off the Browser Agent feature for image analysis."

	fallbackEmptyText = "Sorry, I'm not sure what action to take. Could you be more specific? For example:\n" +
		"- \"fill the email field with test@example.com\"\n" +
		"- \"click the Submit button\"\n" +
		"- \"open google.com\""
)

// ToolProvider supplies the browser tool set for one session. Implemented by
// bridge.Bridge.
type ToolProvider interface {
	Tools(sessionID string) []llm.Tool
}

// Orchestrator decides between the tool-enabled agent path and plain
// completion, and shapes the response.
type Orchestrator struct {
	llm   llm.Client
	tools ToolProvider
}

// New creates an Orchestrator.
func New(client llm.Client, tools ToolProvider) *Orchestrator {
	return &Orchestrator{llm: client, tools: tools}
}

// ShouldStream reports whether the request takes the SSE path. Tool runs are
// never streamed; session requests always resolve to a single response.
func (o *Orchestrator) ShouldStream(req models.AgentRequest) bool {
	return req.Stream && req.SessionID == ""
}

// Run executes a request to completion and returns the response body.
// Errors from this method map to HTTP 500 at the handler.
func (o *Orchestrator) Run(ctx context.Context, req models.AgentRequest) (models.ChatResponse, error) {
	if req.SessionID != "" {
		return o.runWithTools(ctx, req)
	}

	text, usage, err := o.llm.Complete(ctx, req.Query, req.CustomInstruction, req.Image)
	if err != nil {
		return models.ChatResponse{}, err
	}

	resp := models.ChatResponse{Response: text}
	if usage != nil {
		resp.PromptTokens = &usage.PromptTokens
		resp.ResponseTokens = &usage.ResponseTokens
		resp.TotalTokens = &usage.TotalTokens
	}
	return resp, nil
}

// Stream opens the plain-completion chunk stream.
func (o *Orchestrator) Stream(ctx context.Context, req models.AgentRequest) (<-chan llm.StreamChunk, error) {
	return o.llm.Stream(ctx, req.Query, req.CustomInstruction, req.Image)
}

func (o *Orchestrator) runWithTools(ctx context.Context, req models.AgentRequest) (models.ChatResponse, error) {
	slog.Info("Running tool-enabled agent",
		"session_id", req.SessionID, "elements", len(req.InteractiveElements))

	preamble := BuildPreamble(req)
	tools := o.tools.Tools(req.SessionID)

	text, err := o.llm.RunAgent(ctx, preamble, req.Query, req.Image, tools)
	if err != nil {
		if !isEmptyResponseErr(err) {
			return models.ChatResponse{}, err
		}
		slog.Warn("Recovering empty agent response", "error", err)
		if req.Image != "" {
			text = fallbackEmptyImage
		} else {
			text = fallbackEmptyText
		}
	}
	return models.ChatResponse{Response: text}, nil
}

// isEmptyResponseErr matches the model-gave-nothing error class that gets a
// friendly fallback instead of an HTTP 500.
func isEmptyResponseErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "empty") || strings.Contains(msg, "no message")
}
