package records

import (
	"testing"

	"github.com/rocjay1/easytax/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salary(desc string, gross int64) models.IncomeRecord {
	return models.IncomeRecord{
		ExemptionCode: "TK/0",
		Source:        models.SourceSalary,
		Date:          "2024-01-31",
		Description:   desc,
		Gross:         gross,
	}
}

func bonus(desc string, gross int64) models.IncomeRecord {
	r := salary(desc, gross)
	r.Source = models.SourceBonus
	return r
}

func TestBatch_AddAssignsMonotonicIDs(t *testing.T) {
	b := NewBatch(nil)

	r1 := b.Add(salary("January", 5_000_000))
	r2 := b.Add(salary("February", 5_000_000))

	assert.Equal(t, int64(1), r1.ID)
	assert.Equal(t, int64(2), r2.ID)
	assert.Equal(t, 2, b.Len())

	require.NoError(t, b.Remove(r2.ID))
	r3 := b.Add(salary("March", 5_000_000))
	assert.Equal(t, int64(3), r3.ID, "ids are not reused")
}

func TestBatch_AddIgnoresCallerID(t *testing.T) {
	b := NewBatch(nil)
	rec := salary("x", 1)
	rec.ID = 99

	got := b.Add(rec)
	assert.Equal(t, int64(1), got.ID)
}

func TestBatch_UpdatePreservesPosition(t *testing.T) {
	b := NewBatch(nil)
	b.Add(salary("a", 1))
	r2 := b.Add(salary("b", 2))
	b.Add(salary("c", 3))

	require.NoError(t, b.Update(r2.ID, bonus("b2", 20)))

	recs := b.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, r2.ID, recs[1].ID)
	assert.Equal(t, "b2", recs[1].Description)
	assert.Equal(t, models.SourceBonus, recs[1].Source)
	assert.Equal(t, int64(20), recs[1].Gross)
}

func TestBatch_UpdateMissing(t *testing.T) {
	b := NewBatch(nil)
	b.Add(salary("a", 1))

	err := b.Update(42, salary("z", 1))
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestBatch_Remove(t *testing.T) {
	b := NewBatch(nil)
	r1 := b.Add(salary("a", 1))
	r2 := b.Add(salary("b", 2))

	require.NoError(t, b.Remove(r1.ID))
	recs := b.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, r2.ID, recs[0].ID)

	assert.ErrorIs(t, b.Remove(r1.ID), ErrRecordNotFound)

	require.NoError(t, b.Remove(r2.ID))
	assert.Equal(t, 0, b.Len())
}

func TestBatch_FilterBySource(t *testing.T) {
	b := NewBatch(nil)
	b.Add(salary("jan", 1))
	b.Add(bonus("thr", 2))
	b.Add(salary("feb", 3))

	assert.Len(t, b.FilterBySource(models.SourceAll), 3)

	sal := b.FilterBySource(models.SourceSalary)
	require.Len(t, sal, 2)
	assert.Equal(t, "jan", sal[0].Description)
	assert.Equal(t, "feb", sal[1].Description)

	assert.Len(t, b.FilterBySource(models.SourceBonus), 1)
	assert.Empty(t, b.FilterBySource("dividend"))
	assert.Equal(t, 3, b.Len(), "filter is a view")
}

func TestBatch_CloneIsIndependent(t *testing.T) {
	b := NewBatch(nil)
	r := b.Add(salary("a", 1))

	c := b.Clone()
	require.NoError(t, c.Update(r.ID, salary("changed", 9)))
	c.Add(salary("b", 2))

	orig, ok := b.Get(r.ID)
	require.True(t, ok)
	assert.Equal(t, "a", orig.Description)
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, int64(2), c.LastID())
	assert.Equal(t, int64(1), b.LastID())
}

func TestNewBatch_ResumesIDs(t *testing.T) {
	b := NewBatch([]models.IncomeRecord{{ID: 7}, {ID: 3}})
	assert.Equal(t, int64(8), b.Add(salary("next", 1)).ID)
}

func TestBatch_NilSafe(t *testing.T) {
	var b *Batch
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Records())
	_, ok := b.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, b.Clone().Len())
}
