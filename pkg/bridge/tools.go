package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabpilot/tabpilot/pkg/llm"
	"github.com/tabpilot/tabpilot/pkg/metrics"
	"github.com/tabpilot/tabpilot/pkg/models"
)

// forbiddenURLPrefixes are browser-internal schemes the agent must never
// open. Matched case-insensitively.
var forbiddenURLPrefixes = []string{"chrome://", "about:", "file://"}

// Tools returns the browser tool set bound to one session. Argument maps
// come straight from the model's function calls, so numbers arrive as
// float64 per encoding/json.
func (b *Bridge) Tools(sessionID string) []llm.Tool {
	return []llm.Tool{
		{
			Name:        "navigate_to",
			Description: "Navigate to a specific URL in the browser",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "The URL to navigate to (e.g., https://google.com)",
					},
				},
				"required": []string{"url"},
			},
			Call: func(ctx context.Context, args map[string]any) (string, error) {
				url, err := stringArg(args, "url")
				if err != nil {
					return "", err
				}
				if isForbiddenURL(url) {
					metrics.ToolRoundTrips.WithLabelValues(metrics.OutcomeRejected).Inc()
					return "", ErrForbiddenURL
				}
				return b.Execute(ctx, sessionID, models.ActionCommand{
					Type: models.CommandNavigateTo,
					URL:  url,
				})
			},
		},
		{
			Name:        "click_element",
			Description: "Click an element on the page using its reference ID",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ref": map[string]any{
						"type":        "integer",
						"description": "The reference ID of the element to click",
					},
				},
				"required": []string{"ref"},
			},
			Call: func(ctx context.Context, args map[string]any) (string, error) {
				ref, err := intArg(args, "ref")
				if err != nil {
					return "", err
				}
				return b.Execute(ctx, sessionID, models.ActionCommand{
					Type:  models.CommandClickElement,
					RefID: ref,
				})
			},
		},
		{
			Name:        "type_text",
			Description: "Type text into an input field using its reference ID",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ref": map[string]any{
						"type":        "integer",
						"description": "The reference ID of the element to type into",
					},
					"text": map[string]any{
						"type":        "string",
						"description": "The text to type",
					},
				},
				"required": []string{"ref", "text"},
			},
			Call: func(ctx context.Context, args map[string]any) (string, error) {
				ref, err := intArg(args, "ref")
				if err != nil {
					return "", err
				}
				text, err := stringArg(args, "text")
				if err != nil {
					return "", err
				}
				return b.Execute(ctx, sessionID, models.ActionCommand{
					Type:  models.CommandTypeText,
					RefID: ref,
					Text:  text,
				})
			},
		},
		{
			Name:        "scroll_to",
			Description: "Scroll the page to specific coordinates (x, y)",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"x": map[string]any{
						"type":        "integer",
						"description": "The x-coordinate to scroll to",
					},
					"y": map[string]any{
						"type":        "integer",
						"description": "The y-coordinate to scroll to",
					},
				},
				"required": []string{"x", "y"},
			},
			Call: func(ctx context.Context, args map[string]any) (string, error) {
				x, err := intArg(args, "x")
				if err != nil {
					return "", err
				}
				y, err := intArg(args, "y")
				if err != nil {
					return "", err
				}
				return b.Execute(ctx, sessionID, models.ActionCommand{
					Type: models.CommandScrollTo,
					X:    x,
					Y:    y,
				})
			},
		},
		{
			Name:        "get_page_content",
			Description: "Get the text content of the current page. Use this when you need to read, summarize, or analyze the page content.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"max_length": map[string]any{
						"type":        "integer",
						"description": "Maximum number of characters to return",
					},
				},
				"required": []string{},
			},
			Call: func(ctx context.Context, args map[string]any) (string, error) {
				return b.Execute(ctx, sessionID, models.ActionCommand{
					Type:      models.CommandGetPageContent,
					MaxLength: optionalIntArg(args, "max_length"),
				})
			},
		},
		{
			Name:        "get_interactive_elements",
			Description: "Scan the page for interactive elements (buttons, inputs, links). Use this when you need to click, type, or interact with page elements. Returns a list of elements with their Ref IDs.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of elements to return",
					},
				},
				"required": []string{},
			},
			Call: func(ctx context.Context, args map[string]any) (string, error) {
				return b.Execute(ctx, sessionID, models.ActionCommand{
					Type:  models.CommandGetInteractiveElements,
					Limit: optionalIntArg(args, "limit"),
				})
			},
		},
	}
}

func isForbiddenURL(url string) bool {
	lower := strings.ToLower(url)
	for _, prefix := range forbiddenURLPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return s, nil
}

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing required argument %q", key)
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("argument %q must be an integer", key)
	}
}

func optionalIntArg(args map[string]any, key string) *int {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case int:
		return &n
	default:
		return nil
	}
}
