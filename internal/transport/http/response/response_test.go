package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corray333/coffeeshop/internal/service/apperr"
)

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		contains string
	}{
		{"not found", apperr.NotFound("product", "P9"), http.StatusNotFound, "not_found", `product "P9" not found`},
		{"wrapped not found", fmt.Errorf("lookup: %w", apperr.NotFound("branch", "B9")), http.StatusNotFound, "not_found", `branch "B9" not found`},
		{"validation", apperr.Validation("item 0: quantity must be positive"), http.StatusBadRequest, "validation", "item 0: quantity must be positive"},
		{"unauthorized", apperr.Unauthorized(errors.New("signature mismatch")), http.StatusUnauthorized, "unauthorized", "unauthorized"},
		{"conflict", apperr.Conflict("email taken"), http.StatusConflict, "conflict", "email taken"},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal", "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}

			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.code || body.Error != tt.contains {
				t.Fatalf("body = %+v", body)
			}
		})
	}
}

func TestUnauthorizedHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodGet, "/", nil), apperr.Unauthorized(errors.New("refresh credential expired")))

	if got := rec.Body.String(); got != "{\"error\":\"unauthorized\",\"code\":\"unauthorized\"}\n" {
		t.Fatalf("body = %q", got)
	}
}
