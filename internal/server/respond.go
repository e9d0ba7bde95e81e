package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"savium-invest-go/internal/api"
	"savium-invest-go/internal/auth"
	"savium-invest-go/internal/repository"
	"savium-invest-go/internal/store"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("Failed to write response", zap.Error(err))
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps service errors to HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeDetail(w, http.StatusUnauthorized, "Invalid authentication credentials")
	case errors.Is(err, api.ErrValidation), errors.Is(err, api.ErrInsufficientFunds), errors.Is(err, repository.ErrInvalidTransition):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, api.ErrNotFound), errors.Is(err, store.ErrNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	default:
		zap.L().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", api.ErrValidation)
		}
		return fmt.Errorf("%w: invalid request body: %v", api.ErrValidation, err)
	}
	return nil
}
