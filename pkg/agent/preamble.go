package agent

import (
	"fmt"
	"strings"

	"github.com/tabpilot/tabpilot/pkg/models"
)

// maxPageContentChars caps how much captured page text goes into the
// preamble before truncation.
const maxPageContentChars = 8000

const preamblePrelude = `You are a browser automation assistant. You can control the browser using tools AND see/analyze screenshots.

## Available Tools
- ` + "`navigate_to(url)`" + `: Navigate to a URL (e.g., "https://google.com")
- ` + "`click_element(ref)`" + `: Click an element using its Ref ID number
- ` + "`type_text(ref, text)`" + `: Type text into an input field using its Ref ID
- ` + "`scroll_to(x, y)`" + `: Scroll the page to coordinates

## Your Capabilities
1. **Browser Automation**: Control the browser using the tools above
2. **Visual Analysis**: When a screenshot is provided, you CAN SEE and READ everything visible on screen:
   - Read and analyze any code, text, articles, or content shown
   - Identify UI elements, layouts, buttons, forms
   - Answer questions about what's displayed on the page
   - Help debug code by reading error messages or source code visible on screen

## Instructions
1. When the user asks to fill/type/enter something, use ` + "`type_text`" + ` with the appropriate Ref ID and text
2. When the user asks to click something, use ` + "`click_element`" + ` with the Ref ID
3. When the user asks to go to a website, use ` + "`navigate_to`" + `
4. When the user asks about the page content (with screenshot), read and describe what you see
5. When asked to read/explain code visible on screen, analyze it thoroughly
6. Always respond with a brief confirmation of what you did
7. If no elements are available or you can't find a matching element, explain what you need

## Example Actions
- User: "fill it with 12345" → Find the input field's Ref ID and use type_text(ref, "12345")
- User: "click the submit button" → Find the submit button's Ref ID and use click_element(ref)
- User: "open google" → Use navigate_to("https://google.com")
- User: "explain this code" + [screenshot] → Read and explain the code visible in the screenshot
- User: "what's the error?" + [screenshot] → Read and explain the error message shown
`

// FormatInteractiveElements renders the element listing, one per line.
func FormatInteractiveElements(elements []models.InteractiveElement) string {
	lines := make([]string, 0, len(elements))
	for _, e := range elements {
		lines = append(lines, fmt.Sprintf("- Ref %d: %s (%s)", e.ID, e.Name, e.Role))
	}
	return strings.Join(lines, "\n")
}

// BuildPreamble assembles the agent system prompt from the fixed prelude,
// the captured element listing, and the page text. A nil element slice means
// the extension sent no page context at all; an empty one means it scanned
// and found nothing.
func BuildPreamble(req models.AgentRequest) string {
	var sb strings.Builder
	sb.WriteString(preamblePrelude)

	switch {
	case len(req.InteractiveElements) > 0:
		sb.WriteString("\n## Available Interactive Elements on Current Page\n")
		sb.WriteString(FormatInteractiveElements(req.InteractiveElements))
		sb.WriteString("\n\nMatch user requests to elements above by name/role and use their Ref ID.")
	case req.InteractiveElements != nil:
		sb.WriteString("\n## Note\nNo interactive elements detected on the current page. You may need to navigate to a page first or ask the user for more context.")
	default:
		sb.WriteString("\n## Note\nNo page context provided. Ask the user to refresh the page or provide more details.")
	}

	if req.PageContent != "" {
		content := req.PageContent
		if len(content) > maxPageContentChars {
			content = content[:maxPageContentChars] + "...\n[Content truncated]"
		}
		sb.WriteString("\n## Current Page Text Content\n")
		sb.WriteString("Below is the text content of the page. Use this to answer questions about the page:\n\n")
		sb.WriteString(content)
	}

	return sb.String()
}
