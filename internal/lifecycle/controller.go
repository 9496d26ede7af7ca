package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/rocjay1/easytax/internal/models"
	"github.com/rocjay1/easytax/internal/money"
	"github.com/rocjay1/easytax/internal/records"
)

const dateLayout = "2006-01-02"

// Submit validates the form and either adds a record or, when a record is
// being edited, replaces it. The first record of a batch fixes the batch
// exemption code.
func Submit(s State, f Form) (State, error) {
	if s.Phase == PhaseSummarized {
		return s, fmt.Errorf("%w: cannot submit while summarized", ErrInvalidTransition)
	}

	rec, err := validate(f, s.batch.Len() == 0)
	if err != nil {
		return s, err
	}

	next := s
	next.batch = s.batch.Clone()

	if s.Editing() {
		if rec.ExemptionCode == "" {
			rec.ExemptionCode = s.ExemptionCode
		}
		if err := next.batch.Update(s.EditingID, rec); err != nil {
			return s, err
		}
		next.EditingID = 0
	} else {
		if next.batch.Len() == 0 {
			next.ExemptionCode = rec.ExemptionCode
		} else if rec.ExemptionCode == "" {
			rec.ExemptionCode = s.ExemptionCode
		}
		next.batch.Add(rec)
	}

	next.Phase = PhaseDraft
	next.Form = f.clearEntry()
	if next.Form.ExemptionCode == "" {
		next.Form.ExemptionCode = next.ExemptionCode
	}
	next.Persisted = false
	return next, nil
}

// BeginEdit loads a record into the form.
func BeginEdit(s State, id int64) (State, error) {
	if s.Phase == PhaseSummarized || s.batch.Len() == 0 {
		return s, fmt.Errorf("%w: nothing to edit in phase %s", ErrInvalidTransition, s.Phase)
	}

	rec, ok := s.batch.Get(id)
	if !ok {
		return s, fmt.Errorf("failed to edit record %d: %w", id, records.ErrRecordNotFound)
	}

	next := s
	next.Phase = PhaseEditing
	next.EditingID = id
	next.Form = Form{
		ExemptionCode: rec.ExemptionCode,
		Source:        string(rec.Source),
		Date:          rec.Date,
		Description:   rec.Description,
		Amount:        money.FormatInt(rec.Gross),
	}
	return next, nil
}

// CancelEdit drops the edit in progress without touching the batch.
func CancelEdit(s State) (State, error) {
	if !s.Editing() {
		return s, fmt.Errorf("%w: no edit in progress", ErrInvalidTransition)
	}

	next := s
	next.EditingID = 0
	next.Phase = PhaseDraft
	next.Form = s.Form.clearEntry()
	return next, nil
}

// Delete removes a record once the user has confirmed. A declined
// confirmation returns s unchanged. Removing the last record resets the
// workspace to its initial editing state.
func Delete(s State, id int64, confirmed bool) (State, error) {
	if s.Phase == PhaseSummarized || s.batch.Len() == 0 {
		return s, fmt.Errorf("%w: nothing to delete in phase %s", ErrInvalidTransition, s.Phase)
	}
	if !confirmed {
		return s, nil
	}

	next := s
	next.batch = s.batch.Clone()
	if err := next.batch.Remove(id); err != nil {
		return s, fmt.Errorf("failed to delete record %d: %w", id, err)
	}
	next.Persisted = false

	if next.batch.Len() == 0 {
		reset := New()
		reset.SourceFilter = s.SourceFilter
		return reset, nil
	}

	if s.EditingID == id {
		next.EditingID = 0
		next.Phase = PhaseDraft
		next.Form = s.Form.clearEntry()
	}
	return next, nil
}

// Save freezes the draft batch into the summarized snapshot.
func Save(s State) (State, error) {
	if s.Phase != PhaseDraft || s.batch.Len() == 0 {
		return s, fmt.Errorf("%w: save requires a draft batch, phase is %s", ErrInvalidTransition, s.Phase)
	}

	next := s
	next.Saved = s.batch.Records()
	next.Phase = PhaseSummarized
	next.Persisted = false
	next.revision++
	return next, nil
}

// Reopen returns a summarized batch to draft for further edits. The
// snapshot is dropped until the next save.
func Reopen(s State) (State, error) {
	if s.Phase != PhaseSummarized {
		return s, fmt.Errorf("%w: reopen requires a saved batch, phase is %s", ErrInvalidTransition, s.Phase)
	}

	next := s
	next.Phase = PhaseDraft
	next.Saved = nil
	next.Form = Form{ExemptionCode: s.ExemptionCode}
	next.Persisted = false
	return next, nil
}

// ChangeExemption switches the code the whole batch is taxed with.
func ChangeExemption(s State, code string) (State, error) {
	if _, ok := models.LookupExemption(code); !ok {
		return s, fmt.Errorf("%w: %s", ErrUnknownExemption, code)
	}

	next := s
	next.Form.ExemptionCode = code
	if s.batch.Len() > 0 {
		next.ExemptionCode = code
		next.Persisted = false
		next.revision++
	}
	return next, nil
}

// SetSourceFilter selects which records the draft and summarized tables show.
func SetSourceFilter(s State, source string) (State, error) {
	src, err := models.ParseIncomeSource(source)
	if err != nil {
		return s, err
	}
	next := s
	next.SourceFilter = src
	return next, nil
}

// MarkPersisted applies the outcome of a persistence attempt. It is the only
// state change a persistence result can cause. A result for a batch that has
// since been reopened, saved again or re-coded is ignored.
func MarkPersisted(s State, r PersistResult) State {
	if s.Phase != PhaseSummarized || r.Revision != s.revision {
		return s
	}
	next := s
	next.Persisted = r.Err == nil
	return next
}

func validate(f Form, needExemption bool) (models.IncomeRecord, error) {
	verr := &ValidationError{}
	code := strings.TrimSpace(f.ExemptionCode)

	if needExemption && code == "" {
		verr.Missing = append(verr.Missing, "exemptionCode")
	} else if code != "" {
		if _, ok := models.LookupExemption(code); !ok {
			verr.Invalid = append(verr.Invalid, "exemptionCode")
		}
	}

	var source models.IncomeSource
	if strings.TrimSpace(f.Source) == "" {
		verr.Missing = append(verr.Missing, "source")
	} else if src, err := models.ParseIncomeSource(f.Source); err != nil || src == models.SourceAll {
		verr.Invalid = append(verr.Invalid, "source")
	} else {
		source = src
	}

	date := strings.TrimSpace(f.Date)
	if date == "" {
		verr.Missing = append(verr.Missing, "date")
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		verr.Invalid = append(verr.Invalid, "date")
	}

	desc := strings.TrimSpace(f.Description)
	if desc == "" {
		verr.Missing = append(verr.Missing, "description")
	}

	var gross int64
	if strings.TrimSpace(f.Amount) == "" {
		verr.Missing = append(verr.Missing, "amount")
	} else if v, err := money.ParseAmount(f.Amount); err != nil {
		verr.Invalid = append(verr.Invalid, "amount")
	} else {
		gross = v
	}

	if len(verr.Missing) > 0 || len(verr.Invalid) > 0 {
		return models.IncomeRecord{}, verr
	}

	return models.IncomeRecord{
		ExemptionCode: code,
		Source:        source,
		Date:          date,
		Description:   desc,
		Gross:         gross,
	}, nil
}
