package lifecycle

import (
	"fmt"

	"github.com/rocjay1/easytax/internal/models"
	"github.com/rocjay1/easytax/internal/money"
)

// ImportError ties a rejected imported record to its position in the input.
type ImportError struct {
	Index int
	Err   error
}

func (e ImportError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index+1, e.Err)
}

// Import submits recs one by one as if typed into the form. A saved batch is
// reopened and an edit in progress is cancelled first. Records that fail
// validation are skipped and reported; the rest are added in order.
func Import(s State, recs []models.IncomeRecord) (State, []ImportError) {
	next := s
	if next.Phase == PhaseSummarized && len(recs) > 0 {
		next, _ = Reopen(next)
	}
	if next.Editing() {
		next, _ = CancelEdit(next)
	}

	var errs []ImportError
	for i, rec := range recs {
		f := Form{
			ExemptionCode: rec.ExemptionCode,
			Source:        string(rec.Source),
			Date:          rec.Date,
			Description:   rec.Description,
			Amount:        money.FormatInt(rec.Gross),
		}
		if f.ExemptionCode == "" {
			f.ExemptionCode = next.ExemptionCode
		}

		added, err := Submit(next, f)
		if err != nil {
			errs = append(errs, ImportError{Index: i, Err: err})
			continue
		}
		next = added
	}
	return next, errs
}
