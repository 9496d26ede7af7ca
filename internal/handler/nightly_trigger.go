package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// nextFilingDeadline returns the annual individual return deadline, 31 March,
// on or after the day of now.
func nextFilingDeadline(now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	deadline := time.Date(now.Year(), time.March, 31, 0, 0, 0, 0, now.Location())
	if today.After(deadline) {
		deadline = deadline.AddDate(1, 0, 0)
	}
	return deadline
}

// daysUntil counts calendar days from the day of now to deadline.
func daysUntil(now, deadline time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	due := time.Date(deadline.Year(), deadline.Month(), deadline.Day(), 0, 0, 0, 0, time.UTC)
	return int(due.Sub(today).Hours() / 24)
}

// HandleNightlyTrigger emails a filing reminder to every user whose report is
// not completed when the deadline is the configured number of days away.
func (d *Dependencies) HandleNightlyTrigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slog.Info("starting nightly trigger processing")

	if d.Email == nil {
		slog.Warn("email service is not configured; skipping filing reminders")
		w.WriteHeader(http.StatusOK)
		return
	}

	now := d.now()
	deadline := nextFilingDeadline(now)
	daysLeft := daysUntil(now, deadline)
	if daysLeft != d.Config.ReminderDaysBefore {
		slog.Info("no reminders due today", "deadline", deadline.Format("2006-01-02"), "days_left", daysLeft)
		w.WriteHeader(http.StatusOK)
		return
	}

	profiles, err := d.Profiles.ListProfiles(ctx)
	if err != nil {
		slog.Error("failed to list profiles", "error", err)
		http.Error(w, "Failed to list profiles", http.StatusInternalServerError)
		return
	}

	sent := 0
	for _, p := range profiles {
		if p.Reports.CurrentStatus.Done() || p.Email == "" {
			continue
		}
		if err := d.Email.SendReminderEmail(ctx, []string{p.Email}, p.FullName, deadline, p.Reports.CurrentStatus); err != nil {
			// Continue with the next user even if one email fails
			slog.Error("failed to send filing reminder", "user_id", p.ID, "error", err)
			continue
		}
		sent++
	}

	slog.Info("nightly trigger processing complete", "deadline", deadline.Format("2006-01-02"), "profiles", len(profiles), "reminders_sent", sent)
	w.WriteHeader(http.StatusOK)
}
