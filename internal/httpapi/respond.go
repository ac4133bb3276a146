package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agent-brain/brain/internal/errorsx"
)

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error      string            `json:"error"`
	Kind       string            `json:"kind,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to an HTTP status per spec.md section 7's error
// handling design table and writes a structured JSON error body.
func writeError(w http.ResponseWriter, err error) {
	var be *errorsx.BrainError
	if !errors.As(err, &be) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, statusForKind(be.Kind), errorResponse{
		Error:      be.Error(),
		Kind:       string(be.Kind),
		Suggestion: be.Suggestion,
		Details:    be.Details,
	})
}

// statusForKind is spec.md section 7's Kind -> HTTP status mapping.
func statusForKind(kind errorsx.Kind) int {
	switch kind {
	case errorsx.KindValidation:
		return http.StatusBadRequest
	case errorsx.KindCapacity:
		return http.StatusTooManyRequests
	case errorsx.KindConflict:
		return http.StatusConflict
	case errorsx.KindDuplicate:
		return http.StatusAccepted
	case errorsx.KindStorage, errorsx.KindProvider, errorsx.KindInternal:
		return http.StatusInternalServerError
	case errorsx.KindTimeout:
		return http.StatusGatewayTimeout
	case errorsx.KindCancellation:
		return http.StatusConflict
	case errorsx.KindFingerprint:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, errorsx.Validation(message))
}
