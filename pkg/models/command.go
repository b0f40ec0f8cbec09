package models

import (
	"encoding/json"
	"fmt"
)

// CommandType tags an ActionCommand variant. Values are snake_case on the
// wire, matching the extension's dispatcher.
type CommandType string

const (
	CommandNavigateTo             CommandType = "navigate_to"
	CommandClickElement           CommandType = "click_element"
	CommandTypeText               CommandType = "type_text"
	CommandScrollTo               CommandType = "scroll_to"
	CommandGetPageContent         CommandType = "get_page_content"
	CommandGetInteractiveElements CommandType = "get_interactive_elements"
)

// ActionCommand is the tagged browser-command union nested inside an
// ActionRequest. Only the fields for the active variant are meaningful.
// RefID travels as "ref" on the wire.
type ActionCommand struct {
	Type CommandType

	URL       string // navigate_to
	RefID     int    // click_element, type_text
	Text      string // type_text
	X         int    // scroll_to
	Y         int    // scroll_to
	MaxLength *int   // get_page_content
	Limit     *int   // get_interactive_elements
}

// Per-variant wire shapes. scroll_to always carries x and y, and the
// optional caps always carry their key, null when unset.
type navigateWire struct {
	Type CommandType `json:"type"`
	URL  string      `json:"url"`
}

type clickWire struct {
	Type CommandType `json:"type"`
	Ref  int         `json:"ref"`
}

type typeTextWire struct {
	Type CommandType `json:"type"`
	Ref  int         `json:"ref"`
	Text string      `json:"text"`
}

type scrollWire struct {
	Type CommandType `json:"type"`
	X    int         `json:"x"`
	Y    int         `json:"y"`
}

type pageContentWire struct {
	Type      CommandType `json:"type"`
	MaxLength *int        `json:"max_length"`
}

type elementsWire struct {
	Type  CommandType `json:"type"`
	Limit *int        `json:"limit"`
}

// MarshalJSON encodes the active variant's wire shape.
func (c ActionCommand) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case CommandNavigateTo:
		return json.Marshal(navigateWire{Type: c.Type, URL: c.URL})
	case CommandClickElement:
		return json.Marshal(clickWire{Type: c.Type, Ref: c.RefID})
	case CommandTypeText:
		return json.Marshal(typeTextWire{Type: c.Type, Ref: c.RefID, Text: c.Text})
	case CommandScrollTo:
		return json.Marshal(scrollWire{Type: c.Type, X: c.X, Y: c.Y})
	case CommandGetPageContent:
		return json.Marshal(pageContentWire{Type: c.Type, MaxLength: c.MaxLength})
	case CommandGetInteractiveElements:
		return json.Marshal(elementsWire{Type: c.Type, Limit: c.Limit})
	default:
		return nil, fmt.Errorf("cannot marshal command type %q", c.Type)
	}
}

// UnmarshalJSON routes on the nested "type" tag.
func (c *ActionCommand) UnmarshalJSON(b []byte) error {
	var tag struct {
		Type CommandType `json:"type"`
	}
	if err := json.Unmarshal(b, &tag); err != nil {
		return err
	}

	*c = ActionCommand{Type: tag.Type}
	switch tag.Type {
	case CommandNavigateTo:
		var w navigateWire
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		c.URL = w.URL
	case CommandClickElement:
		var w clickWire
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		c.RefID = w.Ref
	case CommandTypeText:
		var w typeTextWire
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		c.RefID = w.Ref
		c.Text = w.Text
	case CommandScrollTo:
		var w scrollWire
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		c.X = w.X
		c.Y = w.Y
	case CommandGetPageContent:
		var w pageContentWire
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		c.MaxLength = w.MaxLength
	case CommandGetInteractiveElements:
		var w elementsWire
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		c.Limit = w.Limit
	default:
		return fmt.Errorf("unknown command type %q", tag.Type)
	}
	return nil
}
