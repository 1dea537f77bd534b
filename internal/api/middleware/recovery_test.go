package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecovererPanicBecomesInternalError(t *testing.T) {
	buf := captureLog(t)

	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil slot")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/calls/swap", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
	if body := rr.Body.String(); body == "" || body[0] != '{' {
		t.Errorf("body = %q, want json envelope", body)
	}

	entry := logEntry(t, buf)
	if entry["msg"] != "panic in api handler" {
		t.Errorf("msg = %v, want panic in api handler", entry["msg"])
	}
	if entry["panic"] != "nil slot" {
		t.Errorf("panic = %v, want nil slot", entry["panic"])
	}
	if entry["method"] != "POST" || entry["path"] != "/api/v1/calls/swap" {
		t.Errorf("request fields = %v %v", entry["method"], entry["path"])
	}
	if stack, ok := entry["stack"].(string); !ok || stack == "" {
		t.Error("stack trace missing from log entry")
	}
}

func TestRecovererPassThrough(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Fatalf("body = %q, want ok", rr.Body.String())
	}
}
