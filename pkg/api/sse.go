package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/tabpilot/tabpilot/pkg/models"
)

// streamAgent writes the completion as an SSE response. Each chunk becomes
// one event; a chunk error becomes an "error" event and ends the stream; the
// happy path terminates with a literal [DONE] event.
func (s *Server) streamAgent(c *echo.Context, req models.AgentRequest) error {
	stream, err := s.agent.Stream(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	flusher, _ := any(resp).(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	for chunk := range stream {
		if chunk.Err != nil {
			writeSSEEvent(resp, "error", chunk.Err.Error())
			flush()
			return nil
		}
		writeSSEData(resp, chunk.Text)
		flush()
	}

	writeSSEData(resp, "[DONE]")
	flush()
	return nil
}

// writeSSEData writes one data-only event. Multi-line payloads become
// multiple data: lines within the event; consumers rejoin them with \n.
func writeSSEData(w io.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func writeSSEEvent(w io.Writer, event, text string) {
	fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
