// Package api holds the JSON plumbing shared by the HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/groqtales/groqtales-server/internal/core/domain"
)

// MaxBodyBytes caps request bodies. Stories sent back for analysis fit well
// inside it.
const MaxBodyBytes = 1 << 20

// WriteJSON writes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// DecodeJSON reads a JSON body into v. Malformed or oversized bodies are
// reported as invalid_request errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return domain.ErrInvalidRequest(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, io.EOF):
			return domain.ErrInvalidRequest("request body is required")
		default:
			return domain.ErrInvalidRequest("invalid JSON body: " + err.Error())
		}
	}
	return nil
}

// Classify returns err as an APIError. Errors outside the taxonomy become
// server errors so their text is never sent to clients.
func Classify(err error) *domain.APIError {
	if apiErr, ok := domain.AsAPIError(err); ok {
		return apiErr
	}
	return domain.ErrServer("internal server error", err)
}

// Message is the client-facing text of an APIError, including any revert
// reason.
func Message(apiErr *domain.APIError) string {
	if apiErr.Reason != "" {
		return apiErr.Message + ": " + apiErr.Reason
	}
	return apiErr.Message
}
