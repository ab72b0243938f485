// Package response writes JSON bodies and translates service errors into HTTP
// status codes.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/coffeeshop/internal/service/apperr"
)

type errorBody struct {
	Error string            `json:"error"`
	Code  string            `json:"code"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "Error sending response", "error", err)
	}
}

// Error maps err to a status code. Unclassified errors become a 500 with a
// generic body and are logged with their detail.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)

	body := errorBody{
		Error: apperr.PublicMessage(err),
		Code:  string(apperr.KindOf(err)),
	}
	if body.Code == "" {
		body.Code = "internal"
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Kind == apperr.KindNotFound {
		body.Meta = appErr.Metadata
	}

	switch {
	case status >= http.StatusInternalServerError:
		slog.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	case status == http.StatusUnauthorized:
		slog.InfoContext(r.Context(), "Request unauthorized", "method", r.Method, "path", r.URL.Path, "error", err)
	default:
		slog.DebugContext(r.Context(), "Request rejected", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	JSON(w, r, status, body)
}

func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
