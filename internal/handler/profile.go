package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rocjay1/easytax/internal/models"
	"github.com/rocjay1/easytax/internal/services"
)

// HandleProfile handles GET and POST requests for the caller's profile.
func (d *Dependencies) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := d.Profiles.GetProfile(r.Context(), userID)
		if err != nil {
			if errors.Is(err, services.ErrProfileNotFound) {
				WriteError(w, http.StatusNotFound, "Profile not found")
				return
			}
			slog.Error("failed to get profile", "user_id", userID, "error", err)
			WriteError(w, http.StatusInternalServerError, "Failed to get profile: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, profile)

	case http.MethodPost:
		var profile models.Profile
		if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
			slog.Warn("invalid profile request body", "error", err)
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		profile.ID = userID

		existing, err := d.Profiles.GetProfile(r.Context(), userID)
		switch {
		case err == nil:
			// History and creation time are owned by the server.
			profile.CreatedAt = existing.CreatedAt
			profile.History = existing.History
		case errors.Is(err, services.ErrProfileNotFound):
			profile.CreatedAt = d.now().UTC()
			profile.History = nil
		default:
			slog.Error("failed to get profile", "user_id", userID, "error", err)
			WriteError(w, http.StatusInternalServerError, "Failed to get profile: "+err.Error())
			return
		}

		if err := d.Profiles.SaveProfile(r.Context(), profile); err != nil {
			slog.Error("failed to save profile", "user_id", userID, "error", err)
			WriteError(w, http.StatusInternalServerError, "Failed to save profile: "+err.Error())
			return
		}
		slog.Info("successfully saved profile", "user_id", userID)
		WriteJSON(w, http.StatusOK, profile)

	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

type noteRequest struct {
	Note string `json:"note"`
}

// HandleProfileNote replaces the calendar note of the caller's profile.
func (d *Dependencies) HandleProfileNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := d.Profiles.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			WriteError(w, http.StatusNotFound, "Profile not found")
			return
		}
		slog.Error("failed to get profile", "user_id", userID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to get profile: "+err.Error())
		return
	}

	profile.Note = req.Note
	if err := d.Profiles.SaveProfile(r.Context(), *profile); err != nil {
		slog.Error("failed to save profile note", "user_id", userID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to save note: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

type statusResponse struct {
	Status      models.ReportStatus      `json:"status"`
	Label       string                   `json:"label"`
	Done        bool                     `json:"done"`
	Information models.ReportInformation `json:"informations"`
}

// HandleStatus returns the report status of the caller. A user without a
// profile has no report.
func (d *Dependencies) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var reports models.Reports
	profile, err := d.Profiles.GetProfile(r.Context(), userID)
	switch {
	case err == nil:
		reports = profile.Reports
	case errors.Is(err, services.ErrProfileNotFound):
	default:
		slog.Error("failed to get profile", "user_id", userID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to get status: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, statusResponse{
		Status:      reports.CurrentStatus,
		Label:       reports.CurrentStatus.Label(),
		Done:        reports.CurrentStatus.Done(),
		Information: reports.Information,
	})
}
