package tax

import (
	"github.com/rocjay1/easytax/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Summary holds the totals of a batch. It is derived data and is never
// stored; callers recompute it from the records.
type Summary struct {
	RecordCount   int             `json:"recordCount"`
	TotalGross    decimal.Decimal `json:"totalGross"`
	TotalTax      decimal.Decimal `json:"totalTax"`
	EffectiveRate decimal.Decimal `json:"effectiveRate"`
	NetIncome     decimal.Decimal `json:"netIncome"`
}

// EffectiveRatePercent renders the effective rate as a percentage with two
// decimals, e.g. "4.85".
func (s Summary) EffectiveRatePercent() string {
	return s.EffectiveRate.Mul(hundred).StringFixed(2)
}

// Summarize is Default().Summarize.
func Summarize(records []models.IncomeRecord, code string) Summary {
	return defaultCalculator.Summarize(records, code)
}

// Summarize totals records using one exemption code for every record,
// whatever code each record was captured with.
func (c *Calculator) Summarize(records []models.IncomeRecord, code string) Summary {
	gross := decimal.Zero
	rawTax := decimal.Zero
	for _, r := range records {
		gross = gross.Add(decimal.NewFromInt(r.Gross))
		rawTax = rawTax.Add(c.ComputeTax(code, r.Gross))
	}

	totalTax := rawTax.Round(0)
	rate := decimal.Zero
	if !gross.IsZero() {
		rate = totalTax.DivRound(gross, 8)
	}

	return Summary{
		RecordCount:   len(records),
		TotalGross:    gross,
		TotalTax:      totalTax,
		EffectiveRate: rate,
		NetIncome:     gross.Sub(totalTax),
	}
}
