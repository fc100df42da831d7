package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/blueprints/internal/adapters/repository"
)

// errorResponse is the body of every non-2xx REST answer. Error repeats
// Message for browser clients that read body.error.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, Error: msg})
}

// writeStoreError translates store and validation errors to HTTP.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "conflict", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
