package models

import (
	_ "embed"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed schedule.yaml
var scheduleYAML []byte

// ExemptionOption is a taxpayer status code (PTKP) and its annual exemption.
type ExemptionOption struct {
	Code         string `json:"code" yaml:"code"`
	AnnualAmount int64  `json:"annualAmount" yaml:"annual_amount"`
	Label        string `json:"label" yaml:"label"`
}

// TaxBand is one marginal bracket. Upper is the cumulative ceiling of the
// band in whole currency units; zero marks the unbounded top band.
type TaxBand struct {
	Upper int64           `json:"upper,omitempty"`
	Rate  decimal.Decimal `json:"rate"`
}

// Unbounded reports whether the band has no ceiling.
func (b TaxBand) Unbounded() bool {
	return b.Upper == 0
}

// Schedule is the compiled-in exemption table and bracket schedule.
type Schedule struct {
	PeriodDivisor int64
	Exemptions    []ExemptionOption
	Bands         []TaxBand
}

type scheduleFile struct {
	PeriodDivisor int64             `yaml:"period_divisor"`
	Exemptions    []ExemptionOption `yaml:"exemptions"`
	Brackets      []struct {
		Upper int64  `yaml:"upper"`
		Rate  string `yaml:"rate"`
	} `yaml:"brackets"`
}

var defaultSchedule = mustParseSchedule(scheduleYAML)

func mustParseSchedule(raw []byte) Schedule {
	s, err := ParseSchedule(raw)
	if err != nil {
		panic(fmt.Sprintf("invalid embedded tax schedule: %v", err))
	}
	return s
}

// ParseSchedule decodes and validates a schedule document.
func ParseSchedule(raw []byte) (Schedule, error) {
	var file scheduleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Schedule{}, fmt.Errorf("failed to decode schedule: %w", err)
	}

	if file.PeriodDivisor <= 0 {
		return Schedule{}, fmt.Errorf("period_divisor must be positive, got %d", file.PeriodDivisor)
	}
	if len(file.Exemptions) == 0 {
		return Schedule{}, fmt.Errorf("schedule has no exemptions")
	}

	seen := make(map[string]bool, len(file.Exemptions))
	for _, e := range file.Exemptions {
		if e.Code == "" {
			return Schedule{}, fmt.Errorf("exemption with empty code")
		}
		if seen[e.Code] {
			return Schedule{}, fmt.Errorf("duplicate exemption code %s", e.Code)
		}
		if e.AnnualAmount < 0 {
			return Schedule{}, fmt.Errorf("exemption %s has negative amount", e.Code)
		}
		seen[e.Code] = true
	}

	if len(file.Brackets) == 0 {
		return Schedule{}, fmt.Errorf("schedule has no brackets")
	}

	bands := make([]TaxBand, 0, len(file.Brackets))
	var prev int64
	for i, b := range file.Brackets {
		rate, err := decimal.NewFromString(b.Rate)
		if err != nil {
			return Schedule{}, fmt.Errorf("bracket %d: invalid rate %q: %w", i, b.Rate, err)
		}
		if rate.IsNegative() {
			return Schedule{}, fmt.Errorf("bracket %d: negative rate", i)
		}

		last := i == len(file.Brackets)-1
		switch {
		case last && b.Upper != 0:
			return Schedule{}, fmt.Errorf("top bracket must be unbounded")
		case !last && b.Upper <= prev:
			return Schedule{}, fmt.Errorf("bracket %d: upper %d must exceed %d", i, b.Upper, prev)
		}
		prev = b.Upper
		bands = append(bands, TaxBand{Upper: b.Upper, Rate: rate})
	}

	return Schedule{
		PeriodDivisor: file.PeriodDivisor,
		Exemptions:    file.Exemptions,
		Bands:         bands,
	}, nil
}

// DefaultSchedule returns a copy of the compiled-in schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		PeriodDivisor: defaultSchedule.PeriodDivisor,
		Exemptions:    ExemptionOptions(),
		Bands:         append([]TaxBand(nil), defaultSchedule.Bands...),
	}
}

// ExemptionOptions returns the exemption table in display order.
func ExemptionOptions() []ExemptionOption {
	return append([]ExemptionOption(nil), defaultSchedule.Exemptions...)
}

// LookupExemption finds the option for code.
func LookupExemption(code string) (ExemptionOption, bool) {
	for _, e := range defaultSchedule.Exemptions {
		if e.Code == code {
			return e, true
		}
	}
	return ExemptionOption{}, false
}
