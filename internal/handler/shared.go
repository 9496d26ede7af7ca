// Package handler exposes the tax calculator, profile and import operations
// over HTTP for the Azure Functions custom handler.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rocjay1/easytax/internal/config"
	"github.com/rocjay1/easytax/internal/lifecycle"
	"github.com/rocjay1/easytax/internal/records"
)

// UserHeader carries the id of the signed-in user, set by the session
// provider in front of the handler.
const UserHeader = "X-User-ID"

// Dependencies holds the services required by the handlers.
type Dependencies struct {
	Profiles   ProfileStore
	Snapshots  SnapshotStore
	Blob       BlobClient
	Queue      QueueClient
	Email      EmailClient
	Workspaces *Workspaces
	Config     config.Config

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Dependencies) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// requireUser reads the user id header, answering 401 when it is absent.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(UserHeader))
	if userID == "" {
		WriteError(w, http.StatusUnauthorized, "Missing "+UserHeader+" header")
		return "", false
	}
	return userID, true
}

type validationResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

// writeLifecycleError maps calculator errors to HTTP statuses.
func writeLifecycleError(w http.ResponseWriter, err error) {
	var verr *lifecycle.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error:   verr.Error(),
			Missing: verr.Missing,
			Invalid: verr.Invalid,
		})
	case errors.Is(err, records.ErrRecordNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		WriteError(w, http.StatusConflict, err.Error())
	default:
		WriteError(w, http.StatusBadRequest, err.Error())
	}
}
