// Package tax computes progressive income tax for income records and
// aggregates it into batch summaries.
package tax

import (
	"github.com/rocjay1/easytax/internal/models"
	"github.com/shopspring/decimal"
)

// BandTax is the part of a taxable amount falling in one band.
type BandTax struct {
	Band    models.TaxBand  `json:"band"`
	Taxable decimal.Decimal `json:"taxable"`
	Tax     decimal.Decimal `json:"tax"`
}

// Calculator applies a schedule. The zero value is not usable; use
// NewCalculator or Default.
type Calculator struct {
	schedule models.Schedule
}

// NewCalculator builds a calculator over s.
func NewCalculator(s models.Schedule) *Calculator {
	return &Calculator{schedule: s}
}

var defaultCalculator = NewCalculator(models.DefaultSchedule())

// Default returns the calculator for the compiled-in schedule.
func Default() *Calculator {
	return defaultCalculator
}

// ComputeTax is Default().ComputeTax.
func ComputeTax(code string, gross int64) decimal.Decimal {
	return defaultCalculator.ComputeTax(code, gross)
}

func (c *Calculator) lookup(code string) (models.ExemptionOption, bool) {
	for _, e := range c.schedule.Exemptions {
		if e.Code == code {
			return e, true
		}
	}
	return models.ExemptionOption{}, false
}

// PeriodExemption is the annual exemption for code spread over the fixed
// period divisor.
func (c *Calculator) PeriodExemption(code string) (decimal.Decimal, bool) {
	opt, ok := c.lookup(code)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(opt.AnnualAmount).Div(decimal.NewFromInt(c.schedule.PeriodDivisor)), true
}

// Taxable returns gross minus the period exemption, floored at zero.
// Unknown codes yield zero.
func (c *Calculator) Taxable(code string, gross int64) decimal.Decimal {
	exemption, ok := c.PeriodExemption(code)
	if !ok {
		return decimal.Zero
	}
	g := decimal.NewFromInt(gross)
	if g.LessThanOrEqual(exemption) {
		return decimal.Zero
	}
	return g.Sub(exemption)
}

// ComputeTax returns the tax owed on gross. An unknown exemption code is
// not an error: no tax is computed. The result is unrounded.
func (c *Calculator) ComputeTax(code string, gross int64) decimal.Decimal {
	total := decimal.Zero
	for _, b := range c.Breakdown(code, gross) {
		total = total.Add(b.Tax)
	}
	return total
}

// Breakdown splits the taxable amount over the bands. Bands the amount does
// not reach are omitted.
func (c *Calculator) Breakdown(code string, gross int64) []BandTax {
	taxable := c.Taxable(code, gross)
	if !taxable.IsPositive() {
		return nil
	}

	var out []BandTax
	lower := decimal.Zero
	for _, band := range c.schedule.Bands {
		if taxable.LessThanOrEqual(lower) {
			break
		}
		portion := taxable.Sub(lower)
		if !band.Unbounded() {
			upper := decimal.NewFromInt(band.Upper)
			portion = decimal.Min(taxable, upper).Sub(lower)
			lower = upper
		}
		out = append(out, BandTax{
			Band:    band,
			Taxable: portion,
			Tax:     portion.Mul(band.Rate),
		})
		if band.Unbounded() {
			break
		}
	}
	return out
}
