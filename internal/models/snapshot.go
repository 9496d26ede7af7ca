package models

import "time"

// Snapshot is a saved batch: the records frozen by a save and the exemption
// code the batch is summarized with. Totals are never stored.
type Snapshot struct {
	ExemptionCode string         `json:"exemptionCode"`
	Records       []IncomeRecord `json:"records"`
	SavedAt       time.Time      `json:"savedAt"`
}
