package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	return &buf
}

func logEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parsing log output: %v", err)
	}
	return entry
}

func TestStructuredLogger(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		handler http.HandlerFunc
		status  float64
	}{
		{
			name:   "implicit 200",
			method: http.MethodGet,
			path:   "/api/v1/state",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"data":{"phone_state":"idle"}}`))
			},
			status: 200,
		},
		{
			name:   "explicit status",
			method: http.MethodPost,
			path:   "/api/v1/calls/dial",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			},
			status: 201,
		},
		{
			name:   "conflict from tracker",
			method: http.MethodPost,
			path:   "/api/v1/calls/accept",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
			},
			status: 409,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)

			h := StructuredLogger(tt.handler)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))

			entry := logEntry(t, buf)
			if entry["msg"] != "api request" {
				t.Errorf("msg = %v, want api request", entry["msg"])
			}
			if entry["method"] != tt.method {
				t.Errorf("method = %v, want %s", entry["method"], tt.method)
			}
			if entry["path"] != tt.path {
				t.Errorf("path = %v, want %s", entry["path"], tt.path)
			}
			if entry["status"] != tt.status {
				t.Errorf("status = %v, want %v", entry["status"], tt.status)
			}
			if _, ok := entry["duration_ms"]; !ok {
				t.Error("duration_ms missing from log entry")
			}
		})
	}
}

func TestStatusWriterKeepsFirstStatus(t *testing.T) {
	buf := captureLog(t)

	h := StructuredLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/calls/dial", nil))

	if got := logEntry(t, buf)["status"]; got != float64(201) {
		t.Errorf("logged status = %v, want 201", got)
	}
}
