// Package records holds the ordered, in-memory batch of income records.
package records

import (
	"errors"

	"github.com/rocjay1/easytax/internal/models"
)

// ErrRecordNotFound is returned when no record has the requested id.
var ErrRecordNotFound = errors.New("record not found")

// Batch is an insertion-ordered collection of income records. Ids are
// assigned by the batch, increase monotonically and are never reused.
type Batch struct {
	records []models.IncomeRecord
	lastID  int64
}

// NewBatch returns a batch holding a copy of recs. The id sequence resumes
// after the highest id in recs.
func NewBatch(recs []models.IncomeRecord) *Batch {
	b := &Batch{records: append([]models.IncomeRecord(nil), recs...)}
	for _, r := range recs {
		if r.ID > b.lastID {
			b.lastID = r.ID
		}
	}
	return b
}

// Clone returns an independent copy.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return &Batch{}
	}
	return &Batch{
		records: append([]models.IncomeRecord(nil), b.records...),
		lastID:  b.lastID,
	}
}

// Len reports the number of records.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.records)
}

// LastID is the most recently assigned id.
func (b *Batch) LastID() int64 {
	if b == nil {
		return 0
	}
	return b.lastID
}

// Records returns a copy of the records in insertion order.
func (b *Batch) Records() []models.IncomeRecord {
	if b == nil {
		return []models.IncomeRecord{}
	}
	return append([]models.IncomeRecord{}, b.records...)
}

// Get returns the record with id.
func (b *Batch) Get(id int64) (models.IncomeRecord, bool) {
	if i := b.index(id); i >= 0 {
		return b.records[i], true
	}
	return models.IncomeRecord{}, false
}

// Add assigns a fresh id to rec and appends it.
func (b *Batch) Add(rec models.IncomeRecord) models.IncomeRecord {
	b.lastID++
	rec.ID = b.lastID
	b.records = append(b.records, rec)
	return rec
}

// Update replaces every field of the record with id, keeping its id and
// position.
func (b *Batch) Update(id int64, rec models.IncomeRecord) error {
	i := b.index(id)
	if i < 0 {
		return ErrRecordNotFound
	}
	rec.ID = id
	b.records[i] = rec
	return nil
}

// Remove deletes the record with id.
func (b *Batch) Remove(id int64) error {
	i := b.index(id)
	if i < 0 {
		return ErrRecordNotFound
	}
	b.records = append(b.records[:i:i], b.records[i+1:]...)
	return nil
}

// FilterBySource returns the records from source, or all of them for
// models.SourceAll. The batch is not modified.
func (b *Batch) FilterBySource(source models.IncomeSource) []models.IncomeRecord {
	return FilterBySource(b.Records(), source)
}

// FilterBySource filters an arbitrary record slice the same way.
func FilterBySource(recs []models.IncomeRecord, source models.IncomeSource) []models.IncomeRecord {
	out := []models.IncomeRecord{}
	for _, r := range recs {
		if source == models.SourceAll || r.Source == source {
			out = append(out, r)
		}
	}
	return out
}

func (b *Batch) index(id int64) int {
	if b == nil {
		return -1
	}
	for i, r := range b.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}
