package models

import (
	"fmt"
	"strings"
)

// IncomeSource is the category of an income entry (sumber dana).
type IncomeSource string

const (
	SourceSalary IncomeSource = "Gaji / Upah"
	SourceBonus  IncomeSource = "Bonus / THR"

	// SourceAll is the filter sentinel that matches every source.
	SourceAll IncomeSource = "all"
)

// IncomeSources lists the selectable sources, without the filter sentinel.
func IncomeSources() []IncomeSource {
	return []IncomeSource{SourceSalary, SourceBonus}
}

// ParseIncomeSource accepts a display value or its short alias.
func ParseIncomeSource(s string) (IncomeSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case strings.ToLower(string(SourceSalary)), "salary", "gaji":
		return SourceSalary, nil
	case strings.ToLower(string(SourceBonus)), "bonus", "thr":
		return SourceBonus, nil
	case string(SourceAll):
		return SourceAll, nil
	default:
		return "", fmt.Errorf("unknown income source: %s", s)
	}
}

// IncomeRecord is a single income entry in a batch.
type IncomeRecord struct {
	ID            int64        `json:"id"`
	ExemptionCode string       `json:"exemptionCode"`
	Source        IncomeSource `json:"source"`
	Date          string       `json:"date"` // ISO 8601 date, 2006-01-02
	Description   string       `json:"description"`
	Gross         int64        `json:"gross"`
}
