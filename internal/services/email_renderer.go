package services

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/rocjay1/easytax/internal/models"
	"github.com/rocjay1/easytax/internal/money"
	"github.com/rocjay1/easytax/internal/tax"
	"github.com/shopspring/decimal"
)

const emailShell = `
		<html>
		<body style="font-family: 'Segoe UI', sans-serif; color: #333; line-height: 1.6; background-color: #f4f4f4; margin: 0; padding: 20px;">
			<div style="max-width: 600px; margin: 0 auto; background: white; border-radius: 8px; overflow: hidden; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
				<div style="background-color: %s; padding: 20px; text-align: center; color: white;">
					<h2 style="margin: 0;">%s</h2>
				</div>
				<div style="padding: 20px;">
					%s
				</div>
			</div>
		</body>
		</html>
	`

// RenderErrorSection renders the error section HTML.
func RenderErrorSection(errors []string) string {
	if len(errors) == 0 {
		return ""
	}

	var errorItems strings.Builder
	for _, e := range errors {
		fmt.Fprintf(&errorItems, "<li>%s</li>", html.EscapeString(e))
	}

	return fmt.Sprintf(`
		<div style="background-color: #fff4f4; border-left: 5px solid #d13438; padding: 15px; margin-bottom: 20px;">
			<h3 style="color: #d13438; margin-top: 0; font-size: 18px;">Beberapa baris dilewati</h3>
			<ul style="margin-bottom: 0; padding-left: 20px;">
				%s
			</ul>
		</div>
	`, errorItems.String())
}

// RenderErrorBody renders the full HTML body for an import error email.
func RenderErrorBody(errors []string) string {
	content := "<p>File CSV tidak dapat diproses karena kesalahan berikut:</p>" + RenderErrorSection(errors)
	return fmt.Sprintf(emailShell, "#d13438", "Import Gagal", content)
}

// RenderSummaryBody renders the totals and records of a saved batch.
func RenderSummaryBody(fullName string, snap models.Snapshot, summary tax.Summary) string {
	var rows strings.Builder
	for _, r := range snap.Records {
		fmt.Fprintf(&rows, `<tr><td style="padding: 6px;">%s</td><td style="padding: 6px;">%s</td><td style="padding: 6px;">%s</td><td style="padding: 6px; text-align: right;">%s</td></tr>`,
			html.EscapeString(r.Date),
			html.EscapeString(string(r.Source)),
			html.EscapeString(r.Description),
			money.FormatRupiah(decimal.NewFromInt(r.Gross)),
		)
	}

	content := fmt.Sprintf(`
					<p>Halo %s,</p>
					<p>Perhitungan pajak Anda dengan status PTKP <b>%s</b> telah disimpan.</p>
					<table style="width: 100%%; border-collapse: collapse; margin-bottom: 20px;">
						<tr style="background-color: #f0f0f0;"><th style="padding: 6px; text-align: left;">Tanggal</th><th style="padding: 6px; text-align: left;">Sumber</th><th style="padding: 6px; text-align: left;">Keterangan</th><th style="padding: 6px; text-align: right;">Bruto</th></tr>
						%s
					</table>
					<p>Total penghasilan: <b>%s</b></p>
					<p>Total pajak: <b>%s</b></p>
					<p>Tarif efektif: <b>%s%%</b></p>
					<p>Penghasilan bersih: <b>%s</b></p>
	`,
		html.EscapeString(greetingName(fullName)),
		html.EscapeString(snap.ExemptionCode),
		rows.String(),
		money.FormatRupiah(summary.TotalGross),
		money.FormatRupiah(summary.TotalTax),
		summary.EffectiveRatePercent(),
		money.FormatRupiah(summary.NetIncome),
	)
	return fmt.Sprintf(emailShell, "#0078d4", "Ringkasan Pajak", content)
}

// RenderReminderBody renders the filing deadline reminder.
func RenderReminderBody(fullName string, deadline time.Time, status models.ReportStatus) string {
	content := fmt.Sprintf(`
					<p>Halo %s,</p>
					<p>Batas waktu pelaporan SPT Tahunan orang pribadi jatuh pada <b>%s</b>.</p>
					<p>Status laporan Anda saat ini: <b>%s</b></p>
	`,
		html.EscapeString(greetingName(fullName)),
		deadline.Format("2 January 2006"),
		html.EscapeString(status.Label()),
	)
	return fmt.Sprintf(emailShell, "#ca5010", "Pengingat Batas Lapor", content)
}

func greetingName(fullName string) string {
	if strings.TrimSpace(fullName) == "" {
		return "Wajib Pajak"
	}
	return fullName
}
