package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/rocjay1/easytax/internal/lifecycle"
	"github.com/rocjay1/easytax/internal/models"
	"github.com/rocjay1/easytax/internal/money"
	"github.com/rocjay1/easytax/internal/services"
	"github.com/rocjay1/easytax/internal/tax"
	"github.com/shopspring/decimal"
)

// calculatorView is the workspace as the client renders it.
type calculatorView struct {
	Phase                lifecycle.Phase       `json:"phase"`
	ExemptionCode        string                `json:"exemptionCode"`
	Form                 lifecycle.Form        `json:"form"`
	EditingID            int64                 `json:"editingId,omitempty"`
	SourceFilter         models.IncomeSource   `json:"sourceFilter"`
	Records              []models.IncomeRecord `json:"records"`
	Summary              tax.Summary           `json:"summary"`
	EffectiveRatePercent string                `json:"effectiveRatePercent"`
	Persisted            bool                  `json:"persisted"`
	PersistError         string                `json:"persistError,omitempty"`
	ConfirmationRequired bool                  `json:"confirmationRequired,omitempty"`
}

func newCalculatorView(s lifecycle.State) calculatorView {
	recs := s.VisibleRecords()
	if recs == nil {
		recs = []models.IncomeRecord{}
	}
	summary := s.Summary()
	return calculatorView{
		Phase:                s.Phase,
		ExemptionCode:        s.ExemptionCode,
		Form:                 s.Form,
		EditingID:            s.EditingID,
		SourceFilter:         s.SourceFilter,
		Records:              recs,
		Summary:              summary,
		EffectiveRatePercent: summary.EffectiveRatePercent(),
		Persisted:            s.Persisted,
	}
}

// HandleExemptions lists the exemption codes and income sources.
func (d *Dependencies) HandleExemptions(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"exemptions": models.ExemptionOptions(),
		"sources":    models.IncomeSources(),
	})
}

type computeRequest struct {
	ExemptionCode string `json:"exemptionCode"`
	Amount        string `json:"amount"`
}

type computeResponse struct {
	ExemptionCode   string          `json:"exemptionCode"`
	Gross           int64           `json:"gross"`
	PeriodExemption decimal.Decimal `json:"periodExemption"`
	Taxable         decimal.Decimal `json:"taxable"`
	Tax             decimal.Decimal `json:"tax"`
	TaxRounded      decimal.Decimal `json:"taxRounded"`
	TaxFormatted    string          `json:"taxFormatted"`
	Breakdown       []tax.BandTax   `json:"breakdown"`
}

// HandleComputeTax computes the tax on one amount without touching the
// workspace.
func (d *Dependencies) HandleComputeTax(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	calc := tax.Default()
	exemption, ok := calc.PeriodExemption(req.ExemptionCode)
	if !ok {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unknown exemption code: %s", req.ExemptionCode))
		return
	}
	gross, err := money.ParseAmount(req.Amount)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	owed := calc.ComputeTax(req.ExemptionCode, gross)
	breakdown := calc.Breakdown(req.ExemptionCode, gross)
	if breakdown == nil {
		breakdown = []tax.BandTax{}
	}

	WriteJSON(w, http.StatusOK, computeResponse{
		ExemptionCode:   req.ExemptionCode,
		Gross:           gross,
		PeriodExemption: exemption,
		Taxable:         calc.Taxable(req.ExemptionCode, gross),
		Tax:             owed,
		TaxRounded:      money.Round(owed),
		TaxFormatted:    money.FormatRupiah(owed),
		Breakdown:       breakdown,
	})
}

// ensureWorkspace loads the user's last saved batch the first time the
// workspace is touched in this process.
func (d *Dependencies) ensureWorkspace(ctx context.Context, userID string) {
	if _, ok := d.Workspaces.Get(userID); ok {
		return
	}

	initial := lifecycle.New()
	if d.Snapshots != nil {
		snap, err := d.Snapshots.GetSnapshot(ctx, userID)
		switch {
		case err == nil:
			initial = lifecycle.Restore(*snap)
			slog.Info("restored saved batch", "user_id", userID, "records", len(snap.Records))
		case errors.Is(err, services.ErrSnapshotNotFound):
		default:
			slog.Warn("failed to load saved batch, starting empty", "user_id", userID, "error", err)
		}
	}
	d.Workspaces.LoadOrStore(userID, initial)
}

// apply runs one lifecycle transition against the caller's workspace.
func (d *Dependencies) apply(w http.ResponseWriter, r *http.Request, op string, fn func(lifecycle.State) (lifecycle.State, error)) (lifecycle.State, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return lifecycle.State{}, false
	}
	d.ensureWorkspace(r.Context(), userID)

	s, err := d.Workspaces.Update(userID, fn)
	if err != nil {
		slog.Warn("calculator operation rejected", "op", op, "user_id", userID, "error", err)
		writeLifecycleError(w, err)
		return s, false
	}
	slog.Info("calculator operation applied", "op", op, "user_id", userID, "phase", s.Phase.String())
	return s, true
}

// HandleCalculator returns the current workspace.
func (d *Dependencies) HandleCalculator(w http.ResponseWriter, r *http.Request) {
	s, ok := d.apply(w, r, "view", func(s lifecycle.State) (lifecycle.State, error) { return s, nil })
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, newCalculatorView(s))
}

// HandleSubmitEntry adds a record, or replaces the one being edited.
func (d *Dependencies) HandleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	var form lifecycle.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, ok := d.apply(w, r, "submit", func(s lifecycle.State) (lifecycle.State, error) {
		return lifecycle.Submit(s, form)
	})
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, newCalculatorView(s))
}

// HandleBeginEdit loads a record into the form.
func (d *Dependencies) HandleBeginEdit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid record id")
		return
	}

	s, ok := d.apply(w, r, "edit", func(s lifecycle.State) (lifecycle.State, error) {
		return lifecycle.BeginEdit(s, id)
	})
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, newCalculatorView(s))
}

// HandleCancelEdit drops the edit in progress.
func (d *Dependencies) HandleCancelEdit(w http.ResponseWriter, r *http.Request) {
	s, ok := d.apply(w, r, "cancel", lifecycle.CancelEdit)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, newCalculatorView(s))
}

// HandleDeleteEntry removes a record. Without confirm=true the workspace is
// left as is and the response asks for confirmation.
func (d *Dependencies) HandleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid record id")
		return
	}
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	s, ok := d.apply(w, r, "delete", func(s lifecycle.State) (lifecycle.State, error) {
		return lifecycle.Delete(s, id, confirmed)
	})
	if !ok {
		return
	}
	view := newCalculatorView(s)
	view.ConfirmationRequired = !confirmed
	WriteJSON(w, http.StatusOK, view)
}

// HandleSave freezes the draft, stores it and records the save on the
// user's profile.
func (d *Dependencies) HandleSave(w http.ResponseWriter, r *http.Request) {
	s, ok := d.apply(w, r, "save", lifecycle.Save)
	if !ok {
		return
	}
	userID := r.Header.Get(UserHeader)

	s, persistErr := d.persist(r.Context(), userID, s)
	view := newCalculatorView(s)
	if persistErr != nil {
		view.PersistError = persistErr.Error()
	} else if d.Snapshots != nil {
		d.afterSave(r.Context(), userID, s)
	}
	WriteJSON(w, http.StatusOK, view)
}

// HandleReopen returns a saved batch to draft.
func (d *Dependencies) HandleReopen(w http.ResponseWriter, r *http.Request) {
	s, ok := d.apply(w, r, "reopen", lifecycle.Reopen)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, newCalculatorView(s))
}

type exemptionRequest struct {
	ExemptionCode string `json:"exemptionCode"`
}

// HandleChangeExemption switches the batch exemption code. A saved batch is
// stored again with the new code.
func (d *Dependencies) HandleChangeExemption(w http.ResponseWriter, r *http.Request) {
	var req exemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, ok := d.apply(w, r, "exemption", func(s lifecycle.State) (lifecycle.State, error) {
		return lifecycle.ChangeExemption(s, req.ExemptionCode)
	})
	if !ok {
		return
	}

	view := newCalculatorView(s)
	if s.Phase == lifecycle.PhaseSummarized && !s.Persisted {
		var persistErr error
		s, persistErr = d.persist(r.Context(), r.Header.Get(UserHeader), s)
		view = newCalculatorView(s)
		if persistErr != nil {
			view.PersistError = persistErr.Error()
		}
	}
	WriteJSON(w, http.StatusOK, view)
}

// HandleRecords returns the records of the workspace filtered by source.
func (d *Dependencies) HandleRecords(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = string(models.SourceAll)
	}

	s, ok := d.apply(w, r, "filter", func(s lifecycle.State) (lifecycle.State, error) {
		return lifecycle.SetSourceFilter(s, source)
	})
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, newCalculatorView(s))
}

// persist stores the saved batch and applies the outcome to the workspace.
// Only the persisted flag changes, and only while the same batch is still saved.
func (d *Dependencies) persist(ctx context.Context, userID string, s lifecycle.State) (lifecycle.State, error) {
	if d.Snapshots == nil {
		return s, nil
	}

	res := <-lifecycle.Persist(ctx, d.Snapshots, userID, s)
	if !res.OK() {
		slog.Error("failed to persist saved batch", "user_id", userID, "error", res.Err)
	}

	next, _ := d.Workspaces.Update(userID, func(cur lifecycle.State) (lifecycle.State, error) {
		return lifecycle.MarkPersisted(cur, res), nil
	})
	return next, res.Err
}

// afterSave appends a history entry to the profile and emails the summary.
// Failures are logged; the save itself has already succeeded.
func (d *Dependencies) afterSave(ctx context.Context, userID string, s lifecycle.State) {
	if d.Profiles == nil {
		return
	}

	profile, err := d.Profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, services.ErrProfileNotFound) {
			slog.Error("failed to load profile after save", "user_id", userID, "error", err)
		}
		return
	}

	summary := s.Summary()
	profile.AddHistory(fmt.Sprintf("%s: %d catatan disimpan, pajak %s (%s)",
		d.now().Format("2006-01-02"), summary.RecordCount, money.FormatRupiah(summary.TotalTax), s.ExemptionCode))
	if err := d.Profiles.SaveProfile(ctx, *profile); err != nil {
		slog.Error("failed to append profile history", "user_id", userID, "error", err)
	}

	if d.Email == nil || profile.Email == "" {
		return
	}
	snap, err := s.Snapshot()
	if err != nil {
		return
	}
	if err := d.Email.SendSummaryEmail(ctx, []string{profile.Email}, profile.FullName, snap, summary); err != nil {
		slog.Error("failed to send summary email", "user_id", userID, "error", err)
	} else {
		slog.Info("summary email sent", "user_id", userID)
	}
}
