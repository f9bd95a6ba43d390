// Package handlers provides JSON response and request helpers shared by domain handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Coder is implemented by errors that carry a stable machine-readable code.
type Coder interface {
	Code() string
}

// ErrorResponse is the body written by RespondError.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RespondJSON writes data as a JSON body with the given status.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError logs err and writes it as an ErrorResponse. When err wraps
// a Coder the code is included so clients can branch without parsing text.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "error", err)
	}

	resp := ErrorResponse{Error: err.Error()}

	var coder Coder
	if errors.As(err, &coder) {
		resp.Code = coder.Code()
	}

	RespondJSON(w, status, resp)
}

// DecodeJSON reads a JSON body of at most limit bytes into T.
// Unknown fields are rejected.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, error) {
	var v T

	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("decode request body: %w", err)
	}
	return v, nil
}
