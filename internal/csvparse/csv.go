// Package csvparse reads bulk income imports.
package csvparse

import (
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/rocjay1/easytax/internal/models"
	"github.com/rocjay1/easytax/internal/money"
)

// Column headers of an import file. Exemption Code is optional.
const (
	ColDate          = "Date"
	ColSource        = "Source"
	ColDescription   = "Description"
	ColAmount        = "Amount"
	ColExemptionCode = "Exemption Code"
)

// ParseCSV parses income records from a CSV string.
// It returns the valid records and a list of error messages for invalid rows.
// Records carry no id; ids are assigned when they join a batch.
func ParseCSV(content string) ([]models.IncomeRecord, []string) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, []string{fmt.Sprintf("Failed to read CSV: %v", err)}
	}

	if len(rows) < 2 {
		return []models.IncomeRecord{}, nil
	}

	headers := parseHeaders(rows[0])
	if missing := missingColumns(headers); len(missing) > 0 {
		return nil, []string{fmt.Sprintf("Missing columns: %s", strings.Join(missing, ", "))}
	}

	var records []models.IncomeRecord
	var errors []string

	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}
		if len(row) < len(headers) {
			errors = append(errors, fmt.Sprintf("Row %d: Not enough fields", rowNum))
			continue
		}

		rowMap := make(map[string]string, len(headers))
		for j, header := range headers {
			rowMap[header] = strings.TrimSpace(row[j])
		}

		rec, err := mapToRecord(rowMap)
		if err != nil {
			errors = append(errors, fmt.Sprintf("Row %d: %v", rowNum, err))
			continue
		}
		records = append(records, rec)
	}

	return records, errors
}

func parseHeaders(row []string) []string {
	headers := make([]string, len(row))
	for i, h := range row {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return headers
}

func missingColumns(headers []string) []string {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var missing []string
	for _, col := range []string{ColDate, ColSource, ColDescription, ColAmount} {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func mapToRecord(row map[string]string) (models.IncomeRecord, error) {
	dateStr := row[ColDate]
	if dateStr == "" {
		return models.IncomeRecord{}, fmt.Errorf("missing Date")
	}
	if _, err := time.Parse("2006-01-02", dateStr); err != nil {
		return models.IncomeRecord{}, fmt.Errorf("invalid Date format: %s", dateStr)
	}

	sourceStr := row[ColSource]
	if sourceStr == "" {
		return models.IncomeRecord{}, fmt.Errorf("missing Source")
	}
	source, err := models.ParseIncomeSource(sourceStr)
	if err != nil || source == models.SourceAll {
		return models.IncomeRecord{}, fmt.Errorf("invalid Source: %s", sourceStr)
	}

	description := row[ColDescription]
	if description == "" {
		return models.IncomeRecord{}, fmt.Errorf("missing Description")
	}

	amountStr := row[ColAmount]
	if amountStr == "" {
		return models.IncomeRecord{}, fmt.Errorf("missing Amount")
	}
	gross, err := money.ParseAmount(amountStr)
	if err != nil {
		return models.IncomeRecord{}, fmt.Errorf("invalid Amount: %s", amountStr)
	}

	code := row[ColExemptionCode]
	if code != "" {
		if _, ok := models.LookupExemption(code); !ok {
			return models.IncomeRecord{}, fmt.Errorf("invalid Exemption Code: %s", code)
		}
	}

	return models.IncomeRecord{
		ExemptionCode: code,
		Source:        source,
		Date:          dateStr,
		Description:   description,
		Gross:         gross,
	}, nil
}
