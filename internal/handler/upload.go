package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
)

const maxUploadBytes = 10 << 20

// importMessage is the queue payload linking an uploaded CSV to its owner.
type importMessage struct {
	JobID    string `json:"job_id"`
	UserID   string `json:"user_id"`
	BlobName string `json:"blob_name"`
	Filename string `json:"filename"`
}

// HandleUpload stores an income CSV and queues it for import into the
// caller's workspace.
func (d *Dependencies) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		slog.Warn("upload attempt with invalid method", "method", r.Method, "path", r.URL.Path)
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		slog.Warn("failed to parse multipart form", "error", err, "max_size_mb", maxUploadBytes>>20)
		WriteError(w, http.StatusBadRequest, "File too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Warn("failed to get file from form", "error", err)
		WriteError(w, http.StatusBadRequest, "Failed to get file")
		return
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		slog.Error("failed to read uploaded file", "filename", header.Filename, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}
	slog.Info("received file upload", "filename", header.Filename, "size_bytes", len(bytes), "user_id", userID)

	jobID := uuid.New().String()
	filename := filepath.Base(header.Filename)
	blobName := fmt.Sprintf("%s/%s-%s", userID, jobID, filename)
	container := d.Config.Storage.UploadContainer

	if err := d.Blob.UploadText(r.Context(), container, blobName, string(bytes)); err != nil {
		slog.Error("failed to upload blob", "blob_name", blobName, "container", container, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to upload blob: "+err.Error())
		return
	}

	msg := importMessage{
		JobID:    jobID,
		UserID:   userID,
		BlobName: blobName,
		Filename: filename,
	}
	queue := d.Config.Storage.ImportQueue
	if err := d.Queue.EnqueueMessage(r.Context(), queue, msg); err != nil {
		slog.Error("failed to enqueue message", "queue", queue, "blob_name", blobName, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to enqueue message: "+err.Error())
		return
	}
	slog.Info("queued income import", "job_id", jobID, "queue", queue, "blob_name", blobName)

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":   "queued",
		"jobId":    jobID,
		"blobName": blobName,
	})
}
