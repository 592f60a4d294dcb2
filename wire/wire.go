// Package wire frames canonical events for HTTP transport, either as
// Server-Sent Events or as newline-delimited JSON.
package wire

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

// Format selects a framing.
type Format int

const (
	// SSE frames each event as "data: <json>\n\n".
	SSE Format = iota
	// NDJSON frames each event as "<json>\n".
	NDJSON
)

// Content types
const (
	ContentTypeSSE    = "text/event-stream"
	ContentTypeNDJSON = "application/json"
)

// String returns the format name.
func (f Format) String() string {
	if f == NDJSON {
		return "ndjson"
	}
	return "sse"
}

// ContentType returns the response content type for the format.
func (f Format) ContentType() string {
	if f == NDJSON {
		return ContentTypeNDJSON
	}
	return ContentTypeSSE
}

// Negotiate picks a framing from an Accept header. SSE is the default; the
// NDJSON framing is chosen only when the client asks for JSON and either
// does not list text/event-stream or gives it zero quality.
func Negotiate(accept string) Format {
	if strings.TrimSpace(accept) == "" {
		return SSE
	}

	sseQ, jsonQ := -1.0, -1.0
	for _, part := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		switch mediaType {
		case ContentTypeSSE:
			sseQ = max(sseQ, q)
		case ContentTypeNDJSON, "application/x-ndjson", "application/jsonl":
			jsonQ = max(jsonQ, q)
		}
	}

	if jsonQ > 0 && (sseQ < 0 || sseQ == 0 || jsonQ > sseQ) {
		return NDJSON
	}
	return SSE
}

// Encoder writes framed events to an underlying writer.
type Encoder struct {
	w      io.Writer
	format Format
}

// NewEncoder creates an encoder for the given format.
func NewEncoder(w io.Writer, format Format) *Encoder {
	return &Encoder{w: w, format: format}
}

// Format returns the encoder's framing.
func (e *Encoder) Format() Format {
	return e.format
}

// WriteHeaders sets the streaming response headers.
func (e *Encoder) WriteHeaders(h http.Header) {
	h.Set("Content-Type", e.format.ContentType())
	h.Set("Cache-Control", "no-cache")
	if e.format == SSE {
		h.Set("Connection", "keep-alive")
	}
}

// Encode writes one event and flushes if the writer supports it.
func (e *Encoder) Encode(ev events.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	switch e.format {
	case NDJSON:
		_, err = fmt.Fprintf(e.w, "%s\n", data)
	default:
		_, err = fmt.Fprintf(e.w, "data: %s\n\n", data)
	}
	if err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	if f, ok := e.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
