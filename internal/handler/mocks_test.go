package handler

import (
	"context"
	"time"

	"github.com/rocjay1/easytax/internal/models"
	"github.com/rocjay1/easytax/internal/services"
	"github.com/rocjay1/easytax/internal/tax"
)

// MockProfileStore is a mock implementation of ProfileStore
type MockProfileStore struct {
	GetProfileFunc   func(ctx context.Context, userID string) (*models.Profile, error)
	SaveProfileFunc  func(ctx context.Context, p models.Profile) error
	ListProfilesFunc func(ctx context.Context) ([]models.Profile, error)
}

func (m *MockProfileStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, services.ErrProfileNotFound
}

func (m *MockProfileStore) SaveProfile(ctx context.Context, p models.Profile) error {
	if m.SaveProfileFunc != nil {
		return m.SaveProfileFunc(ctx, p)
	}
	return nil
}

func (m *MockProfileStore) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	if m.ListProfilesFunc != nil {
		return m.ListProfilesFunc(ctx)
	}
	return nil, nil
}

// MockSnapshotStore is a mock implementation of SnapshotStore
type MockSnapshotStore struct {
	GetSnapshotFunc  func(ctx context.Context, userID string) (*models.Snapshot, error)
	SaveSnapshotFunc func(ctx context.Context, userID string, snap models.Snapshot) error
}

func (m *MockSnapshotStore) GetSnapshot(ctx context.Context, userID string) (*models.Snapshot, error) {
	if m.GetSnapshotFunc != nil {
		return m.GetSnapshotFunc(ctx, userID)
	}
	return nil, services.ErrSnapshotNotFound
}

func (m *MockSnapshotStore) SaveSnapshot(ctx context.Context, userID string, snap models.Snapshot) error {
	if m.SaveSnapshotFunc != nil {
		return m.SaveSnapshotFunc(ctx, userID, snap)
	}
	return nil
}

// MockBlobClient is a mock implementation of BlobClient
type MockBlobClient struct {
	UploadTextFunc   func(ctx context.Context, containerName, blobName, content string) error
	DownloadTextFunc func(ctx context.Context, containerName, blobName string) (string, error)
	DeleteBlobFunc   func(ctx context.Context, containerName, blobName string) error
}

func (m *MockBlobClient) UploadText(ctx context.Context, containerName, blobName, content string) error {
	if m.UploadTextFunc != nil {
		return m.UploadTextFunc(ctx, containerName, blobName, content)
	}
	return nil
}

func (m *MockBlobClient) DownloadText(ctx context.Context, containerName, blobName string) (string, error) {
	if m.DownloadTextFunc != nil {
		return m.DownloadTextFunc(ctx, containerName, blobName)
	}
	return "", nil
}

func (m *MockBlobClient) DeleteBlob(ctx context.Context, containerName, blobName string) error {
	if m.DeleteBlobFunc != nil {
		return m.DeleteBlobFunc(ctx, containerName, blobName)
	}
	return nil
}

// MockQueueClient is a mock implementation of QueueClient
type MockQueueClient struct {
	EnqueueMessageFunc func(ctx context.Context, queueName string, message any) error
}

func (m *MockQueueClient) EnqueueMessage(ctx context.Context, queueName string, message any) error {
	if m.EnqueueMessageFunc != nil {
		return m.EnqueueMessageFunc(ctx, queueName, message)
	}
	return nil
}

// MockEmailClient is a mock implementation of EmailClient
type MockEmailClient struct {
	SendErrorEmailFunc    func(ctx context.Context, recipients []string, errors []string) error
	SendSummaryEmailFunc  func(ctx context.Context, recipients []string, fullName string, snap models.Snapshot, summary tax.Summary) error
	SendReminderEmailFunc func(ctx context.Context, recipients []string, fullName string, deadline time.Time, status models.ReportStatus) error
}

func (m *MockEmailClient) SendErrorEmail(ctx context.Context, recipients []string, errors []string) error {
	if m.SendErrorEmailFunc != nil {
		return m.SendErrorEmailFunc(ctx, recipients, errors)
	}
	return nil
}

func (m *MockEmailClient) SendSummaryEmail(ctx context.Context, recipients []string, fullName string, snap models.Snapshot, summary tax.Summary) error {
	if m.SendSummaryEmailFunc != nil {
		return m.SendSummaryEmailFunc(ctx, recipients, fullName, snap, summary)
	}
	return nil
}

func (m *MockEmailClient) SendReminderEmail(ctx context.Context, recipients []string, fullName string, deadline time.Time, status models.ReportStatus) error {
	if m.SendReminderEmailFunc != nil {
		return m.SendReminderEmailFunc(ctx, recipients, fullName, deadline, status)
	}
	return nil
}
