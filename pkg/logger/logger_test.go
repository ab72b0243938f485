package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestContextHandlerAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(&ContextHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	handler := middleware.RequestID(NewLoggerMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/42", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["request_id"] == nil || line["request_id"] == "" {
		t.Fatalf("request_id missing: %v", line)
	}
	if line["path"] != "/orders/42" || line["status"] != float64(http.StatusTeapot) {
		t.Fatalf("unexpected log line: %v", line)
	}
}
