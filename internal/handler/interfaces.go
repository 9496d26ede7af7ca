package handler

import (
	"context"
	"time"

	"github.com/rocjay1/easytax/internal/models"
	"github.com/rocjay1/easytax/internal/tax"
)

// ProfileStore defines the profile document operations used by handlers.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, p models.Profile) error
	ListProfiles(ctx context.Context) ([]models.Profile, error)
}

// SnapshotStore defines the saved batch operations used by handlers.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, userID string) (*models.Snapshot, error)
	SaveSnapshot(ctx context.Context, userID string, snap models.Snapshot) error
}

// BlobClient defines the interface for blob storage operations used by handlers.
type BlobClient interface {
	UploadText(ctx context.Context, containerName, blobName, content string) error
	DownloadText(ctx context.Context, containerName, blobName string) (string, error)
	DeleteBlob(ctx context.Context, containerName, blobName string) error
}

// QueueClient defines the interface for queue operations used by handlers.
type QueueClient interface {
	EnqueueMessage(ctx context.Context, queueName string, message any) error
}

// EmailClient defines the interface for email operations used by handlers.
type EmailClient interface {
	SendErrorEmail(ctx context.Context, recipients []string, errors []string) error
	SendSummaryEmail(ctx context.Context, recipients []string, fullName string, snap models.Snapshot, summary tax.Summary) error
	SendReminderEmail(ctx context.Context, recipients []string, fullName string, deadline time.Time, status models.ReportStatus) error
}
