package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/tabpilot/tabpilot/pkg/models"
)

// maxToolIterations caps the agent loop. A model that keeps calling tools
// past this gets its last text returned instead of another round.
const maxToolIterations = 5

// recentMemoryCount is how many saved memories are injected into the plain
// completion system prompt.
const recentMemoryCount = 10

// MemoryStore is what the facade needs from the persistence layer. May be
// nil, which disables the save_memory tool and the memory prompt section.
type MemoryStore interface {
	Add(ctx context.Context, content string) (models.Memory, error)
	Recent(ctx context.Context, limit int) ([]models.Memory, error)
}

// Gemini implements Client on top of the Gemini API.
type Gemini struct {
	client   *genai.Client
	model    string
	memories MemoryStore
}

// NewGemini creates the Gemini-backed client. memories may be nil.
func NewGemini(ctx context.Context, apiKey, model string, memories MemoryStore) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, memories: memories}, nil
}

// Complete runs a plain completion with the assistant system prompt, saved
// memories, and the save_memory tool when a store is attached.
func (g *Gemini) Complete(ctx context.Context, query, customInstruction, image string) (string, *Usage, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: g.completionSystemPrompt(ctx, customInstruction)}},
		},
	}

	var saveMemory []Tool
	if g.memories != nil {
		saveMemory = []Tool{g.saveMemoryTool()}
		config.Tools = buildGenaiTools(saveMemory)
	}

	contents := []*genai.Content{userContent(query, image)}

	var lastText string
	var usage *Usage
	for i := 0; i < maxToolIterations; i++ {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return "", nil, err
		}
		if u := usageFrom(resp); u != nil {
			usage = u
		}

		text, calls, modelContent := splitResponse(resp)
		if text != "" {
			lastText = text
		}
		if len(calls) == 0 {
			if lastText == "" {
				return "", usage, fmt.Errorf("empty response from model")
			}
			return lastText, usage, nil
		}

		contents = append(contents, modelContent)
		contents = append(contents, g.toolResponses(ctx, calls, saveMemory))
	}
	if lastText == "" {
		return "", usage, fmt.Errorf("empty response from model")
	}
	return lastText, usage, nil
}

// Stream runs a plain completion as a chunk stream. The returned channel is
// closed after the final chunk or the first error.
func (g *Gemini) Stream(ctx context.Context, query, customInstruction, image string) (<-chan StreamChunk, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: g.completionSystemPrompt(ctx, customInstruction)}},
		},
	}
	contents := []*genai.Content{userContent(query, image)}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
			if err != nil {
				out <- StreamChunk{Err: err}
				return
			}
			text, _, _ := splitResponse(resp)
			if text != "" {
				out <- StreamChunk{Text: text}
			}
		}
	}()
	return out, nil
}

// RunAgent runs the browser tool loop with preamble as the system
// instruction.
func (g *Gemini) RunAgent(ctx context.Context, preamble, message, image string, tools []Tool) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: preamble}},
		},
		Tools: buildGenaiTools(tools),
	}
	contents := []*genai.Content{userContent(message, image)}

	var lastText string
	for i := 0; i < maxToolIterations; i++ {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return "", err
		}

		text, calls, modelContent := splitResponse(resp)
		if text != "" {
			lastText = text
		}
		if len(calls) == 0 {
			if lastText == "" {
				return "", fmt.Errorf("empty response from model")
			}
			return lastText, nil
		}

		contents = append(contents, modelContent)
		contents = append(contents, g.toolResponses(ctx, calls, tools))
	}

	slog.Warn("Agent hit tool iteration limit", "limit", maxToolIterations)
	if lastText == "" {
		return "", fmt.Errorf("empty response from model after %d tool iterations", maxToolIterations)
	}
	return lastText, nil
}

// completionSystemPrompt builds the plain-completion system prompt: base
// instruction, optional custom instruction, recent memories.
func (g *Gemini) completionSystemPrompt(ctx context.Context, customInstruction string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant. Always answer in the user's language.")

	if customInstruction != "" {
		sb.WriteString("\n\nADDITIONAL INSTRUCTIONS: ")
		sb.WriteString(customInstruction)
	}

	if g.memories != nil {
		memories, err := g.memories.Recent(ctx, recentMemoryCount)
		if err != nil {
			slog.Warn("Failed to load memories for prompt", "error", err)
		} else if len(memories) > 0 {
			sb.WriteString("\n\n## Saved Memories\nThings the user asked you to remember:\n")
			for _, m := range memories {
				sb.WriteString("- ")
				sb.WriteString(m.Content)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// saveMemoryTool persists a note through the attached store.
func (g *Gemini) saveMemoryTool() Tool {
	return Tool{
		Name:        "save_memory",
		Description: "Save a piece of information the user wants remembered for future conversations",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "The information to remember",
				},
			},
			"required": []string{"content"},
		},
		Call: func(ctx context.Context, args map[string]any) (string, error) {
			content, ok := args["content"].(string)
			if !ok || content == "" {
				return "", fmt.Errorf("missing required argument %q", "content")
			}
			mem, err := g.memories.Add(ctx, content)
			if err != nil {
				return "", fmt.Errorf("saving memory: %w", err)
			}
			return fmt.Sprintf("Saved memory %d", mem.ID), nil
		},
	}
}

// toolResponses executes the model's function calls and packs the results
// into one user content. Tool errors go back to the model, not the caller.
func (g *Gemini) toolResponses(ctx context.Context, calls []*genai.FunctionCall, tools []Tool) *genai.Content {
	parts := make([]*genai.Part, 0, len(calls))
	for _, call := range calls {
		response := map[string]any{}
		if tool := findTool(tools, call.Name); tool != nil {
			result, err := tool.Call(ctx, call.Args)
			if err != nil {
				slog.Warn("Tool call failed", "tool", call.Name, "error", err)
				response["error"] = err.Error()
			} else {
				response["result"] = result
			}
		} else {
			response["error"] = fmt.Sprintf("unknown tool %q", call.Name)
		}
		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: response,
			},
		})
	}
	return &genai.Content{Role: genai.RoleUser, Parts: parts}
}

func findTool(tools []Tool, name string) *Tool {
	for i := range tools {
		if tools[i].Name == name {
			return &tools[i]
		}
	}
	return nil
}

// userContent builds the user turn, attaching the image inline when given.
func userContent(text, image string) *genai.Content {
	parts := []*genai.Part{{Text: text}}
	if image != "" {
		mimeType, payload := ParseImageData(image)
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			slog.Warn("Dropping undecodable image payload", "error", err)
		} else {
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{MIMEType: mimeType, Data: decoded},
			})
		}
	}
	return &genai.Content{Role: genai.RoleUser, Parts: parts}
}

// splitResponse pulls the visible text and function calls out of the first
// candidate. Thought parts are skipped.
func splitResponse(resp *genai.GenerateContentResponse) (string, []*genai.FunctionCall, *genai.Content) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil, &genai.Content{Role: genai.RoleModel}
	}
	content := resp.Candidates[0].Content

	var sb strings.Builder
	var calls []*genai.FunctionCall
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return sb.String(), calls, content
}

func usageFrom(resp *genai.GenerateContentResponse) *Usage {
	if resp.UsageMetadata == nil {
		return nil
	}
	return &Usage{
		PromptTokens:   int(resp.UsageMetadata.PromptTokenCount),
		ResponseTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:    int(resp.UsageMetadata.TotalTokenCount),
	}
}

// buildGenaiTools converts the facade tool set into declarations.
func buildGenaiTools(tools []Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toGenaiSchema(tool.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGenaiSchema converts a JSON schema map to the SDK schema type.
func toGenaiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(propMap)
			}
		}
	}
	switch required := schema["required"].(type) {
	case []string:
		s.Required = append(s.Required, required...)
	case []any:
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	return s
}
