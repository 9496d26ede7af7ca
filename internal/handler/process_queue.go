package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/rocjay1/easytax/internal/csvparse"
	"github.com/rocjay1/easytax/internal/lifecycle"
	"github.com/rocjay1/easytax/internal/services"
)

// invokeRequest represents the payload from Azure Functions Custom Handler.
type invokeRequest struct {
	Data     map[string]any `json:"Data"`
	Metadata map[string]any `json:"Metadata"`
}

// ProcessQueue handles the queue trigger that imports an uploaded CSV into
// its owner's workspace.
func (d *Dependencies) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	var invokeReq invokeRequest
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("failed to read queue request body", "error", err)
		WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := json.Unmarshal(bodyBytes, &invokeReq); err != nil {
		slog.Error("failed to unmarshal queue request", "error", err)
		WriteError(w, http.StatusBadRequest, "Failed to unmarshal request")
		return
	}

	queueItemVal, ok := invokeReq.Data["queueItem"]
	if !ok {
		queueItemVal, ok = invokeReq.Data["queueitem"]
		if !ok {
			WriteError(w, http.StatusBadRequest, "Missing queueItem in Data")
			return
		}
	}

	queueItemStr, ok := queueItemVal.(string)
	if !ok {
		WriteError(w, http.StatusBadRequest, "queueItem is not a string")
		return
	}

	var msg importMessage
	if err := json.Unmarshal([]byte(queueItemStr), &msg); err != nil {
		slog.Error("failed to unmarshal queueItem", "error", err)
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid queueItem JSON: %v", err))
		return
	}

	if msg.BlobName == "" || msg.UserID == "" {
		slog.Warn("queue message missing blob_name or user_id", "job_id", msg.JobID)
		WriteError(w, http.StatusBadRequest, "Missing blob_name or user_id")
		return
	}

	container := d.Config.Storage.UploadContainer
	slog.Info("processing income import", "job_id", msg.JobID, "blob_name", msg.BlobName, "container", container)

	csvContent, err := d.Blob.DownloadText(r.Context(), container, msg.BlobName)
	if err != nil {
		slog.Error("failed to download CSV from blob", "blob_name", msg.BlobName, "container", container, "error", err)
		WriteError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to download CSV: %v", err))
		return
	}

	recs, rowErrors := csvparse.ParseCSV(csvContent)
	slog.Info("parsed CSV content", "job_id", msg.JobID, "records_count", len(recs), "errors_count", len(rowErrors))

	if len(recs) > 0 {
		d.ensureWorkspace(r.Context(), msg.UserID)

		var importErrs []lifecycle.ImportError
		_, _ = d.Workspaces.Update(msg.UserID, func(s lifecycle.State) (lifecycle.State, error) {
			var next lifecycle.State
			next, importErrs = lifecycle.Import(s, recs)
			return next, nil
		})
		for _, ie := range importErrs {
			rowErrors = append(rowErrors, fmt.Sprintf("%s: %v", msg.Filename, ie))
		}
		slog.Info("imported records into workspace", "job_id", msg.JobID, "user_id", msg.UserID,
			"imported", len(recs)-len(importErrs), "rejected", len(importErrs))
	}

	if len(rowErrors) > 0 {
		d.notifyImportErrors(r, msg, rowErrors)
	}

	if err := d.Blob.DeleteBlob(r.Context(), container, msg.BlobName); err != nil {
		slog.Warn("failed to delete imported blob", "blob_name", msg.BlobName, "error", err)
	}

	// Always consume the message so a bad file is not retried forever.
	slog.Info("queue processing complete", "job_id", msg.JobID)
	w.WriteHeader(http.StatusOK)
}

func (d *Dependencies) notifyImportErrors(r *http.Request, msg importMessage, rowErrors []string) {
	if d.Email == nil || d.Profiles == nil {
		return
	}

	profile, err := d.Profiles.GetProfile(r.Context(), msg.UserID)
	if err != nil {
		if !errors.Is(err, services.ErrProfileNotFound) {
			slog.Error("failed to load profile for import errors", "user_id", msg.UserID, "error", err)
		}
		return
	}
	if profile.Email == "" {
		return
	}

	if err := d.Email.SendErrorEmail(r.Context(), []string{profile.Email}, rowErrors); err != nil {
		slog.Error("failed to send import error email", "user_id", msg.UserID, "error", err)
	}
}
