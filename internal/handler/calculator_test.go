package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rocjay1/easytax/internal/models"
	"github.com/rocjay1/easytax/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type viewResponse struct {
	Phase                string                `json:"phase"`
	ExemptionCode        string                `json:"exemptionCode"`
	Form                 map[string]string     `json:"form"`
	EditingID            int64                 `json:"editingId"`
	SourceFilter         string                `json:"sourceFilter"`
	Records              []models.IncomeRecord `json:"records"`
	Summary              tax.Summary           `json:"summary"`
	EffectiveRatePercent string                `json:"effectiveRatePercent"`
	Persisted            bool                  `json:"persisted"`
	PersistError         string                `json:"persistError"`
	ConfirmationRequired bool                  `json:"confirmationRequired"`
}

type calculatorHarness struct {
	t    *testing.T
	deps *Dependencies
	mux  *http.ServeMux
}

func newCalculatorHarness(t *testing.T, deps *Dependencies) *calculatorHarness {
	if deps.Workspaces == nil {
		deps.Workspaces = NewWorkspaces()
	}
	mux := http.NewServeMux()
	deps.Register(mux)
	return &calculatorHarness{t: t, deps: deps, mux: mux}
}

func (h *calculatorHarness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(UserHeader, "user-1")
	w := httptest.NewRecorder()
	h.mux.ServeHTTP(w, req)
	return w
}

func (h *calculatorHarness) view(method, path string, body any) viewResponse {
	h.t.Helper()
	w := h.do(method, path, body)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	var v viewResponse
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func formBody(code, source, desc, amount string) map[string]string {
	return map[string]string{
		"exemptionCode": code,
		"source":        source,
		"date":          "2026-01-31",
		"description":   desc,
		"amount":        amount,
	}
}

func TestCalculator_RequiresUser(t *testing.T) {
	h := newCalculatorHarness(t, &Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/api/calculator", nil)
	w := httptest.NewRecorder()

	h.mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCalculator_SubmitEditDelete(t *testing.T) {
	h := newCalculatorHarness(t, &Dependencies{})

	v := h.view(http.MethodGet, "/api/calculator", nil)
	assert.Equal(t, "editing", v.Phase)
	assert.Empty(t, v.Records)

	v = h.view(http.MethodPost, "/api/calculator/entries", formBody("TK/0", "Gaji / Upah", "Gaji Januari", "5,000,000"))
	assert.Equal(t, "draft", v.Phase)
	assert.Equal(t, "TK/0", v.ExemptionCode)
	require.Len(t, v.Records, 1)
	assert.True(t, v.Summary.TotalTax.Equal(decimal.NewFromInt(242500)))
	assert.Equal(t, "4.85", v.EffectiveRatePercent)

	v = h.view(http.MethodPost, "/api/calculator/entries", formBody("", "bonus", "THR", "3,000,000"))
	require.Len(t, v.Records, 2)
	assert.True(t, v.Summary.TotalTax.Equal(decimal.NewFromInt(385000)))
	secondID := v.Records[1].ID

	v = h.view(http.MethodPost, "/api/calculator/entries/1/edit", nil)
	assert.Equal(t, "editing", v.Phase)
	assert.Equal(t, int64(1), v.EditingID)
	assert.Equal(t, "5,000,000", v.Form["amount"])

	v = h.view(http.MethodPost, "/api/calculator/entries", formBody("", "Gaji / Upah", "Gaji Januari", "6,000,000"))
	assert.Equal(t, "draft", v.Phase)
	require.Len(t, v.Records, 2)
	assert.Equal(t, int64(1), v.Records[0].ID)
	assert.Equal(t, int64(6000000), v.Records[0].Gross)

	v = h.view(http.MethodDelete, "/api/calculator/entries/1", nil)
	assert.True(t, v.ConfirmationRequired)
	assert.Len(t, v.Records, 2)

	v = h.view(http.MethodDelete, "/api/calculator/entries/1?confirm=true", nil)
	assert.False(t, v.ConfirmationRequired)
	require.Len(t, v.Records, 1)
	assert.Equal(t, secondID, v.Records[0].ID)

	v = h.view(http.MethodDelete, "/api/calculator/entries/2?confirm=true", nil)
	assert.Equal(t, "editing", v.Phase)
	assert.Empty(t, v.ExemptionCode)
	assert.Empty(t, v.Records)
}

func TestCalculator_ErrorStatuses(t *testing.T) {
	h := newCalculatorHarness(t, &Dependencies{})

	w := h.do(http.MethodPost, "/api/calculator/entries", formBody("", "Gaji / Upah", "", "abc"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var verr validationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verr))
	assert.Equal(t, []string{"exemptionCode", "description"}, verr.Missing)
	assert.Equal(t, []string{"amount"}, verr.Invalid)

	w = h.do(http.MethodPost, "/api/calculator/save", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	h.view(http.MethodPost, "/api/calculator/entries", formBody("TK/0", "Gaji / Upah", "Gaji", "5,000,000"))

	w = h.do(http.MethodPost, "/api/calculator/entries/99/edit", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPost, "/api/calculator/entries/abc/edit", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/calculator/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPut, "/api/calculator/exemption", map[string]string{"exemptionCode": "X/9"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/calculator/records?source=dividen", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalculator_SavePersistsAndNotifies(t *testing.T) {
	var stored models.Snapshot
	mockSnapshots := &MockSnapshotStore{
		SaveSnapshotFunc: func(ctx context.Context, userID string, snap models.Snapshot) error {
			assert.Equal(t, "user-1", userID)
			stored = snap
			return nil
		},
	}
	var savedProfile models.Profile
	mockProfiles := &MockProfileStore{
		GetProfileFunc: func(ctx context.Context, userID string) (*models.Profile, error) {
			return &models.Profile{ID: userID, Email: "wp@example.com", FullName: "Budi"}, nil
		},
		SaveProfileFunc: func(ctx context.Context, p models.Profile) error {
			savedProfile = p
			return nil
		},
	}
	emailed := false
	mockEmail := &MockEmailClient{
		SendSummaryEmailFunc: func(ctx context.Context, recipients []string, fullName string, snap models.Snapshot, summary tax.Summary) error {
			emailed = true
			assert.Equal(t, []string{"wp@example.com"}, recipients)
			assert.Equal(t, "Budi", fullName)
			assert.True(t, summary.TotalTax.Equal(decimal.NewFromInt(242500)))
			return nil
		},
	}

	h := newCalculatorHarness(t, &Dependencies{
		Snapshots: mockSnapshots,
		Profiles:  mockProfiles,
		Email:     mockEmail,
		Now:       func() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) },
	})

	h.view(http.MethodPost, "/api/calculator/entries", formBody("TK/0", "Gaji / Upah", "Gaji", "5,000,000"))
	v := h.view(http.MethodPost, "/api/calculator/save", nil)

	assert.Equal(t, "summarized", v.Phase)
	assert.True(t, v.Persisted)
	assert.Empty(t, v.PersistError)
	assert.Equal(t, "TK/0", stored.ExemptionCode)
	require.Len(t, stored.Records, 1)
	assert.False(t, stored.SavedAt.IsZero())

	require.Len(t, savedProfile.History, 1)
	assert.Equal(t, "2026-02-01: 1 catatan disimpan, pajak Rp 242,500 (TK/0)", savedProfile.History[0])
	assert.True(t, emailed)
}

func TestCalculator_SaveFailureKeepsSummary(t *testing.T) {
	mockSnapshots := &MockSnapshotStore{
		SaveSnapshotFunc: func(ctx context.Context, userID string, snap models.Snapshot) error {
			return errors.New("table unavailable")
		},
	}
	mockProfiles := &MockProfileStore{
		SaveProfileFunc: func(ctx context.Context, p models.Profile) error {
			assert.Fail(t, "profile should not change when the save was not stored")
			return nil
		},
	}
	h := newCalculatorHarness(t, &Dependencies{Snapshots: mockSnapshots, Profiles: mockProfiles})

	h.view(http.MethodPost, "/api/calculator/entries", formBody("TK/0", "Gaji / Upah", "Gaji", "5,000,000"))
	v := h.view(http.MethodPost, "/api/calculator/save", nil)

	assert.Equal(t, "summarized", v.Phase)
	assert.False(t, v.Persisted)
	assert.Contains(t, v.PersistError, "table unavailable")
	require.Len(t, v.Records, 1)
}

func TestCalculator_ReopenFilterAndExemption(t *testing.T) {
	saves := 0
	mockSnapshots := &MockSnapshotStore{
		SaveSnapshotFunc: func(ctx context.Context, userID string, snap models.Snapshot) error {
			saves++
			return nil
		},
	}
	h := newCalculatorHarness(t, &Dependencies{Snapshots: mockSnapshots})

	h.view(http.MethodPost, "/api/calculator/entries", formBody("TK/0", "Gaji / Upah", "Gaji", "5,000,000"))
	h.view(http.MethodPost, "/api/calculator/entries", formBody("", "Bonus / THR", "THR", "3,000,000"))
	h.view(http.MethodPost, "/api/calculator/save", nil)
	require.Equal(t, 1, saves)

	v := h.view(http.MethodGet, "/api/calculator/records?source=thr", nil)
	assert.Equal(t, "Bonus / THR", v.SourceFilter)
	require.Len(t, v.Records, 1)
	assert.Equal(t, "THR", v.Records[0].Description)
	assert.Equal(t, 2, v.Summary.RecordCount)

	v = h.view(http.MethodPut, "/api/calculator/exemption", map[string]string{"exemptionCode": "K/1"})
	assert.Equal(t, "summarized", v.Phase)
	assert.Equal(t, "K/1", v.ExemptionCode)
	assert.True(t, v.Summary.TotalTax.Equal(decimal.NewFromInt(382500)))
	assert.True(t, v.Persisted)
	assert.Equal(t, 2, saves)

	v = h.view(http.MethodPost, "/api/calculator/reopen", nil)
	assert.Equal(t, "draft", v.Phase)
	assert.Equal(t, "Bonus / THR", v.SourceFilter)
	require.Len(t, v.Records, 1)
	assert.Equal(t, "THR", v.Records[0].Description)

	v = h.view(http.MethodGet, "/api/calculator/records?source=gaji", nil)
	assert.Equal(t, "draft", v.Phase)
	require.Len(t, v.Records, 1)
	assert.Equal(t, "Gaji", v.Records[0].Description)

	v = h.view(http.MethodGet, "/api/calculator/records", nil)
	assert.Len(t, v.Records, 2)
}

func TestCalculator_OverlappingSaveKeepsNewerOutcome(t *testing.T) {
	var h *calculatorHarness
	calls := 0
	mockSnapshots := &MockSnapshotStore{
		SaveSnapshotFunc: func(ctx context.Context, userID string, snap models.Snapshot) error {
			calls++
			if calls == 1 {
				// The user reopens and saves a larger batch while this write is in flight.
				h.do(http.MethodPost, "/api/calculator/reopen", nil)
				h.do(http.MethodPost, "/api/calculator/entries", formBody("", "Bonus / THR", "THR", "3,000,000"))
				h.do(http.MethodPost, "/api/calculator/save", nil)
				return nil
			}
			return errors.New("table unavailable")
		},
	}
	h = newCalculatorHarness(t, &Dependencies{Snapshots: mockSnapshots})

	h.view(http.MethodPost, "/api/calculator/entries", formBody("TK/0", "Gaji / Upah", "Gaji", "5,000,000"))
	h.view(http.MethodPost, "/api/calculator/save", nil)
	require.Equal(t, 2, calls)

	v := h.view(http.MethodGet, "/api/calculator", nil)
	assert.Equal(t, "summarized", v.Phase)
	assert.Len(t, v.Records, 2)
	assert.False(t, v.Persisted)
}

func TestCalculator_RestoresSavedBatch(t *testing.T) {
	mockSnapshots := &MockSnapshotStore{
		GetSnapshotFunc: func(ctx context.Context, userID string) (*models.Snapshot, error) {
			return &models.Snapshot{
				ExemptionCode: "TK/0",
				Records: []models.IncomeRecord{
					{ID: 4, ExemptionCode: "TK/0", Source: models.SourceSalary, Date: "2026-01-31", Description: "Gaji", Gross: 5000000},
				},
			}, nil
		},
	}
	h := newCalculatorHarness(t, &Dependencies{Snapshots: mockSnapshots})

	v := h.view(http.MethodGet, "/api/calculator", nil)
	assert.Equal(t, "summarized", v.Phase)
	assert.True(t, v.Persisted)
	require.Len(t, v.Records, 1)

	h.view(http.MethodPost, "/api/calculator/reopen", nil)
	v = h.view(http.MethodPost, "/api/calculator/entries", formBody("", "Bonus / THR", "THR", "1,000,000"))
	require.Len(t, v.Records, 2)
	assert.Equal(t, int64(5), v.Records[1].ID)
}

func TestHandleComputeTax(t *testing.T) {
	h := newCalculatorHarness(t, &Dependencies{})

	w := h.do(http.MethodPost, "/api/tax/compute", map[string]string{"exemptionCode": "TK/0", "amount": "5,000,000"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Gross           int64           `json:"gross"`
		PeriodExemption decimal.Decimal `json:"periodExemption"`
		Taxable         decimal.Decimal `json:"taxable"`
		TaxRounded      decimal.Decimal `json:"taxRounded"`
		TaxFormatted    string          `json:"taxFormatted"`
		Breakdown       []tax.BandTax   `json:"breakdown"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(5000000), resp.Gross)
	assert.True(t, resp.PeriodExemption.Equal(decimal.NewFromInt(150000)))
	assert.True(t, resp.Taxable.Equal(decimal.NewFromInt(4850000)))
	assert.True(t, resp.TaxRounded.Equal(decimal.NewFromInt(242500)))
	assert.Equal(t, "Rp 242,500", resp.TaxFormatted)
	assert.Len(t, resp.Breakdown, 1)

	w = h.do(http.MethodPost, "/api/tax/compute", map[string]string{"exemptionCode": "X/9", "amount": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/tax/compute", map[string]string{"exemptionCode": "TK/0", "amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleExemptions(t *testing.T) {
	h := newCalculatorHarness(t, &Dependencies{})

	w := h.do(http.MethodGet, "/api/exemptions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Exemptions []models.ExemptionOption `json:"exemptions"`
		Sources    []string                 `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Exemptions, 8)
	assert.Equal(t, "TK/0", resp.Exemptions[0].Code)
	assert.Equal(t, []string{"Gaji / Upah", "Bonus / THR"}, resp.Sources)
}
