package models

// AgentRequest is the body of POST /api/chat and POST /agent/run. When
// SessionID names a live WebSocket session the tool-enabled path runs;
// otherwise the request is a plain completion.
type AgentRequest struct {
	Query               string               `json:"query"`
	SessionID           string               `json:"session_id,omitempty"`
	Image               string               `json:"image,omitempty"`
	PageContent         string               `json:"page_content,omitempty"`
	InteractiveElements []InteractiveElement `json:"interactive_elements,omitempty"`
	CustomInstruction   string               `json:"custom_instruction,omitempty"`
	Stream              bool                 `json:"stream,omitempty"`
}

// InteractiveElement is one actionable DOM element captured by the
// extension. ID is the extension's opaque ref; the backend only forwards it.
type InteractiveElement struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// ChatResponse is the non-streaming reply body. Token counts appear only
// when the model reported usage.
type ChatResponse struct {
	Response       string `json:"response"`
	PromptTokens   *int   `json:"prompt_tokens,omitempty"`
	ResponseTokens *int   `json:"response_tokens,omitempty"`
	TotalTokens    *int   `json:"total_tokens,omitempty"`
}

// Memory is one saved note from the memory store.
type Memory struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}
