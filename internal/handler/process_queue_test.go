package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rocjay1/easytax/internal/lifecycle"
	"github.com/rocjay1/easytax/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func queueRequest(t *testing.T, msg importMessage) *http.Request {
	t.Helper()
	item, err := json.Marshal(msg)
	require.NoError(t, err)
	body, err := json.Marshal(invokeRequest{Data: map[string]any{"queueItem": string(item)}})
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/ProcessQueue", bytes.NewReader(body))
}

var testImport = importMessage{
	JobID:    "job-1",
	UserID:   "user-1",
	BlobName: "user-1/job-1-income.csv",
	Filename: "income.csv",
}

func TestProcessQueue_ImportsIntoWorkspace(t *testing.T) {
	csv := `Date,Source,Description,Amount,Exemption Code
2026-01-31,Gaji / Upah,Gaji Januari,"15,000,000",K/1
2026-03-20,Bonus / THR,THR,9000000,`

	deleted := false
	mockBlob := &MockBlobClient{
		DownloadTextFunc: func(ctx context.Context, containerName, blobName string) (string, error) {
			assert.Equal(t, "easytax-uploads", containerName)
			assert.Equal(t, testImport.BlobName, blobName)
			return csv, nil
		},
		DeleteBlobFunc: func(ctx context.Context, containerName, blobName string) error {
			deleted = true
			return nil
		},
	}
	mockEmail := &MockEmailClient{
		SendErrorEmailFunc: func(ctx context.Context, recipients []string, errors []string) error {
			assert.Fail(t, "no error email expected")
			return nil
		},
	}
	deps := &Dependencies{
		Blob:       mockBlob,
		Email:      mockEmail,
		Profiles:   &MockProfileStore{},
		Snapshots:  &MockSnapshotStore{},
		Workspaces: NewWorkspaces(),
		Config:     testConfig(),
	}

	w := httptest.NewRecorder()
	deps.ProcessQueue(w, queueRequest(t, testImport))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, deleted)

	s, ok := deps.Workspaces.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, lifecycle.PhaseDraft, s.Phase)
	assert.Equal(t, "K/1", s.ExemptionCode)
	recs := s.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, int64(15000000), recs[0].Gross)
	assert.Equal(t, models.SourceBonus, recs[1].Source)
}

func TestProcessQueue_ReportsRowErrors(t *testing.T) {
	csv := `Date,Source,Description,Amount
2026-01-31,Gaji / Upah,Gaji Januari,15000000
31/01/2026,Gaji / Upah,Gaji,100`

	var sentTo []string
	var sentErrors []string
	mockEmail := &MockEmailClient{
		SendErrorEmailFunc: func(ctx context.Context, recipients []string, errs []string) error {
			sentTo = recipients
			sentErrors = errs
			return nil
		},
	}
	mockProfiles := &MockProfileStore{
		GetProfileFunc: func(ctx context.Context, userID string) (*models.Profile, error) {
			return &models.Profile{ID: userID, Email: "wp@example.com"}, nil
		},
	}
	deps := &Dependencies{
		Blob: &MockBlobClient{
			DownloadTextFunc: func(ctx context.Context, containerName, blobName string) (string, error) {
				return csv, nil
			},
		},
		Email:      mockEmail,
		Profiles:   mockProfiles,
		Workspaces: NewWorkspaces(),
		Config:     testConfig(),
	}

	w := httptest.NewRecorder()
	deps.ProcessQueue(w, queueRequest(t, testImport))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"wp@example.com"}, sentTo)
	// Row 3 fails parsing; row 2 parses but has no exemption code for an
	// empty workspace.
	require.Len(t, sentErrors, 2)
	assert.Equal(t, "Row 3: invalid Date format: 31/01/2026", sentErrors[0])
	assert.Contains(t, sentErrors[1], "income.csv: record 1:")

	s, ok := deps.Workspaces.Get("user-1")
	require.True(t, ok)
	assert.Empty(t, s.Records())
}

func TestProcessQueue_DownloadError(t *testing.T) {
	deps := &Dependencies{
		Blob: &MockBlobClient{
			DownloadTextFunc: func(ctx context.Context, containerName, blobName string) (string, error) {
				return "", errors.New("blob missing")
			},
		},
		Config: testConfig(),
	}

	w := httptest.NewRecorder()
	deps.ProcessQueue(w, queueRequest(t, testImport))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestProcessQueue_BadPayloads(t *testing.T) {
	deps := &Dependencies{Config: testConfig()}

	tests := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"missing queue item", `{"Data":{}}`},
		{"queue item not a string", `{"Data":{"queueItem":42}}`},
		{"queue item not json", `{"Data":{"queueItem":"nope"}}`},
		{"missing blob", `{"Data":{"queueitem":"{\"user_id\":\"u\"}"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ProcessQueue", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			deps.ProcessQueue(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
