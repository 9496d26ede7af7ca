package models

import (
	"fmt"
	"time"
)

// ReportStatus is the filing state of the user's annual report.
type ReportStatus int

const (
	ReportStatusNone ReportStatus = iota
	ReportStatusNotStarted
	ReportStatusOnProgress
	ReportStatusCompleted
)

// ParseReportStatus maps the stored wire value to a status.
func ParseReportStatus(s string) (ReportStatus, error) {
	switch s {
	case "none", "":
		return ReportStatusNone, nil
	case "not_started":
		return ReportStatusNotStarted, nil
	case "on_progress":
		return ReportStatusOnProgress, nil
	case "completed":
		return ReportStatusCompleted, nil
	default:
		return ReportStatusNone, fmt.Errorf("unknown report status: %q", s)
	}
}

func (s ReportStatus) String() string {
	switch s {
	case ReportStatusNone:
		return "none"
	case ReportStatusNotStarted:
		return "not_started"
	case ReportStatusOnProgress:
		return "on_progress"
	case ReportStatusCompleted:
		return "completed"
	}
	return fmt.Sprintf("ReportStatus(%d)", int(s))
}

// Label is the user-facing text for the status viewer.
func (s ReportStatus) Label() string {
	switch s {
	case ReportStatusNone:
		return "Belum ada laporan"
	case ReportStatusNotStarted:
		return "Belum dimulai"
	case ReportStatusOnProgress:
		return "Sedang diproses"
	case ReportStatusCompleted:
		return "Selesai"
	}
	return "Tidak diketahui"
}

// Done reports whether nothing is left to file.
func (s ReportStatus) Done() bool {
	return s == ReportStatusCompleted
}

func (s ReportStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ReportStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseReportStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ReportInformation describes the latest submitted report.
type ReportInformation struct {
	Date   *time.Time `json:"date"`
	Name   string     `json:"name"`
	NPWP   string     `json:"npwp"`
	Number string     `json:"number"`
	Period *time.Time `json:"period"`
	Type   string     `json:"type"`
}

// Reports holds the status viewer data.
type Reports struct {
	CurrentStatus ReportStatus      `json:"currentStatus"`
	Information   ReportInformation `json:"informations"`
}

// Profile is the user document kept in the external store.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullname"`
	PhotoURL  string    `json:"photoURL"`
	Documents []string  `json:"documents"`
	Reports   Reports   `json:"reports"`
	History   []string  `json:"history"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// AddHistory appends an entry to the history list.
func (p *Profile) AddHistory(entry string) {
	p.History = append(p.History, entry)
}
