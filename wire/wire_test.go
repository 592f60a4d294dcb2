package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		accept string
		want   Format
	}{
		{"", SSE},
		{"*/*", SSE},
		{"text/event-stream", SSE},
		{"application/json", NDJSON},
		{"application/x-ndjson", NDJSON},
		{"text/event-stream, application/json", SSE},
		{"text/event-stream;q=0, application/json", NDJSON},
		{"text/event-stream;q=0.5, application/json", NDJSON},
		{"application/json;q=0", SSE},
		{"garbage;;;", SSE},
	}

	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			assert.Equal(t, tt.want, Negotiate(tt.accept))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "sse", SSE.String())
	assert.Equal(t, "ndjson", NDJSON.String())
	assert.Equal(t, "text/event-stream", SSE.ContentType())
	assert.Equal(t, "application/json", NDJSON.ContentType())
}

func TestEncoder_SSE(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, SSE)

	require.NoError(t, enc.Encode(events.NewRunStartedEvent("t1", "r1")))
	require.NoError(t, enc.Encode(events.NewRunFinishedEvent("t1", "r1")))

	frames := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 2)
	for _, frame := range frames {
		require.True(t, strings.HasPrefix(frame, "data: "), frame)
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &m))
	}
	assert.Contains(t, frames[0], `"RUN_STARTED"`)
	assert.Contains(t, frames[1], `"RUN_FINISHED"`)
}

func TestEncoder_NDJSON(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, NDJSON)

	require.NoError(t, enc.Encode(events.NewTextMessageStartEvent("m1", events.WithRole("assistant"))))
	require.NoError(t, enc.Encode(events.NewTextMessageContentEvent("m1", "line\nbreak")))

	scanner := bufio.NewScanner(&buf)
	var lines []map[string]any
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "TEXT_MESSAGE_START", lines[0]["type"])
	assert.Equal(t, "line\nbreak", lines[1]["delta"])
}

func TestEncoder_FlushesResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	enc := NewEncoder(rec, SSE)
	enc.WriteHeaders(rec.Header())

	require.NoError(t, enc.Encode(events.NewRunStartedEvent("t1", "r1")))
	assert.True(t, rec.Flushed)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
}

func TestEncoder_NDJSONHeaders(t *testing.T) {
	h := http.Header{}
	NewEncoder(&bytes.Buffer{}, NDJSON).WriteHeaders(h)
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Empty(t, h.Get("Connection"))
}
