// Package lifecycle drives an income batch through editing, draft and
// summarized phases. Every operation takes a State and returns a new one;
// the input is never modified.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rocjay1/easytax/internal/models"
	"github.com/rocjay1/easytax/internal/records"
	"github.com/rocjay1/easytax/internal/tax"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnknownExemption  = errors.New("unknown exemption code")
)

// Phase is the workflow position of a batch.
type Phase int

const (
	// PhaseEditing shows the entry form. With EditingID set it is prefilled
	// from an existing record.
	PhaseEditing Phase = iota
	// PhaseDraft shows the table of unsaved records.
	PhaseDraft
	// PhaseSummarized shows the saved snapshot with totals.
	PhaseSummarized
)

func (p Phase) String() string {
	switch p {
	case PhaseEditing:
		return "editing"
	case PhaseDraft:
		return "draft"
	case PhaseSummarized:
		return "summarized"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Form is the raw entry form as typed by the user.
type Form struct {
	ExemptionCode string `json:"exemptionCode"`
	Source        string `json:"source"`
	Date          string `json:"date"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
}

// clearEntry keeps the exemption code and blanks the entry fields.
func (f Form) clearEntry() Form {
	return Form{ExemptionCode: f.ExemptionCode}
}

// ValidationError lists the form fields that blocked a submission.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "all fields are required, missing: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// State is the whole calculator workspace of one user.
type State struct {
	Phase         Phase
	ExemptionCode string
	Form          Form
	EditingID     int64
	Saved         []models.IncomeRecord
	SourceFilter  models.IncomeSource
	Persisted     bool

	batch *records.Batch
	// revision changes whenever the saved batch or its code changes.
	revision uint64
}

// New returns the initial state: editing, empty batch, no exemption code.
func New() State {
	return State{
		Phase:        PhaseEditing,
		SourceFilter: models.SourceAll,
		batch:        records.NewBatch(nil),
	}
}

// Restore rebuilds a summarized state from a stored snapshot.
func Restore(snap models.Snapshot) State {
	s := New()
	if len(snap.Records) == 0 {
		return s
	}
	s.Phase = PhaseSummarized
	s.ExemptionCode = snap.ExemptionCode
	s.Form = Form{ExemptionCode: snap.ExemptionCode}
	s.batch = records.NewBatch(snap.Records)
	s.Saved = s.batch.Records()
	s.Persisted = true
	return s
}

// Records returns the live batch in insertion order.
func (s State) Records() []models.IncomeRecord {
	return s.batch.Records()
}

// Editing reports whether an existing record is loaded into the form.
func (s State) Editing() bool {
	return s.EditingID != 0
}

// VisibleRecords is what the current phase displays, narrowed by the source
// filter: the snapshot once summarized, the live batch otherwise.
func (s State) VisibleRecords() []models.IncomeRecord {
	if s.Phase == PhaseSummarized {
		return records.FilterBySource(s.Saved, s.SourceFilter)
	}
	return s.batch.FilterBySource(s.SourceFilter)
}

// Summary recomputes the totals for the phase's records.
func (s State) Summary() tax.Summary {
	if s.Phase == PhaseSummarized {
		return tax.Summarize(s.Saved, s.ExemptionCode)
	}
	return tax.Summarize(s.batch.Records(), s.ExemptionCode)
}

// Snapshot captures the saved batch for persistence.
func (s State) Snapshot() (models.Snapshot, error) {
	if s.Phase != PhaseSummarized {
		return models.Snapshot{}, fmt.Errorf("%w: snapshot requires a saved batch, phase is %s", ErrInvalidTransition, s.Phase)
	}
	return models.Snapshot{
		ExemptionCode: s.ExemptionCode,
		Records:       append([]models.IncomeRecord{}, s.Saved...),
	}, nil
}
