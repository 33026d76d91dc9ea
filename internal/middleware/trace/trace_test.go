package trace_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vandevis/internal/log"
	"vandevis/internal/middleware/trace"
)

func newCaptured(t *testing.T) (*log.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := log.New(log.Config{
		Component: "http",
		Handler:   slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	return logger, &buf
}

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode record %q: %v", line, err)
		}
		records = append(records, record)
	}
	return records
}

func TestMiddlewareLogsStartAndCompletion(t *testing.T) {
	logger, buf := newCaptured(t)
	tracer := trace.NewMiddleware(logger, func(*http.Request) string { return "10.0.0.1" })

	var seenID string
	handler := tracer.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = trace.GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/projects/99", nil))

	if seenID == "" {
		t.Fatal("handler should see a request id in its context")
	}

	records := decodeRecords(t, buf)
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}
	start, end := records[0], records[1]

	if start["msg"] != "HTTP request started" || end["msg"] != "HTTP request completed" {
		t.Errorf("messages = %v / %v", start["msg"], end["msg"])
	}
	if start[log.FieldRequestID] != seenID || end[log.FieldRequestID] != seenID {
		t.Errorf("request ids = %v / %v, want %s on both records", start[log.FieldRequestID], end[log.FieldRequestID], seenID)
	}
	if end["level"] != "WARN" {
		t.Errorf("completion level = %v, want WARN for a 404", end["level"])
	}
	if end[log.FieldStatusCode] != float64(http.StatusNotFound) {
		t.Errorf("status_code = %v, want 404", end[log.FieldStatusCode])
	}
	if end[log.FieldClientIP] != "10.0.0.1" {
		t.Errorf("client_ip = %v, want 10.0.0.1", end[log.FieldClientIP])
	}
}

func TestGenerateRequestIDIsUnique(t *testing.T) {
	a, b := trace.GenerateRequestID(), trace.GenerateRequestID()
	if !strings.HasPrefix(a, "req_") || !strings.HasPrefix(b, "req_") {
		t.Errorf("ids = %q, %q, want req_ prefix", a, b)
	}
	if a == b {
		t.Errorf("ids should differ, both were %q", a)
	}
}
