// Package llm is the narrow facade over the model provider. The rest of the
// backend depends on Client only; a mock satisfies every test.
package llm

import "context"

// Tool is one capability exposed to the model during an agent run. Parameters
// is a JSON-schema object. Call returns a human-readable result string; an
// error is fed back to the model as a tool failure, not surfaced to the user.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Call        func(ctx context.Context, args map[string]any) (string, error)
}

// Usage carries token counts when the provider reports them.
type Usage struct {
	PromptTokens   int
	ResponseTokens int
	TotalTokens    int
}

// StreamChunk is one element of a completion stream. Exactly one of Text or
// Err is set; the channel closes after the final chunk.
type StreamChunk struct {
	Text string
	Err  error
}

// Client is what the orchestrator needs from a model provider.
type Client interface {
	// Complete runs a plain completion. image is an optional data URL or
	// raw base64 payload. Usage may be nil.
	Complete(ctx context.Context, query, customInstruction, image string) (string, *Usage, error)

	// Stream runs a plain completion as a finite, single-consumer chunk
	// stream.
	Stream(ctx context.Context, query, customInstruction, image string) (<-chan StreamChunk, error)

	// RunAgent runs the tool loop: preamble as system instruction, message
	// (plus optional image) as the user turn, tools available for function
	// calling. Returns the model's final text.
	RunAgent(ctx context.Context, preamble, message, image string, tools []Tool) (string, error)
}
