package anomaly

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
)

// RenderReportPDF lays the report out as an A4 document, one section per bucket.
func RenderReportPDF(report *anomaly.AnomalyReport, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Anomaly report")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Work days: %s to %s (cutoff %02d:00)", report.PeriodStart, report.PeriodEnd, report.CutoffHour))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Computed at: %s", report.ComputedAt.In(loc).Format("2006-01-02 15:04")))
	pdf.Ln(8)

	if report.Degraded {
		pdf.SetTextColor(200, 0, 0)
		pdf.MultiCell(0, 6, fmt.Sprintf("Incomplete data for employees %v: their anomalies are not included.", report.DataIncomplete), "", "", false)
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}
	if !report.HasAnomalies {
		pdf.Cell(0, 7, "No anomalies.")
		pdf.Ln(8)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Counts")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	for _, t := range anomaly.DeviationTypes {
		pdf.Cell(60, 6, string(t))
		pdf.Cell(20, 6, fmt.Sprintf("%d", report.Counts[t]))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	sections := []struct {
		title   string
		entries []anomaly.AnomalyEntry
	}{
		{"Unplanned absences", report.Buckets.AbsencesNonPlanifiees},
		{"Late arrivals", report.Buckets.Retards},
		{"Early departures", report.Buckets.DepartsAnticipes},
		{"Out of window", report.Buckets.HorsPlage},
		{"Overtime", report.Overtime},
	}
	for _, section := range sections {
		if len(section.entries) == 0 {
			continue
		}
		writeHeading(pdf, section.title)
		for _, e := range section.entries {
			pdf.Cell(25, 6, e.WorkDay)
			pdf.Cell(55, 6, tr(e.EmployeeName))
			pdf.Cell(20, 6, string(e.Severity))
			pdf.Cell(15, 6, fmt.Sprintf("%d min", e.DeltaMinutes))
			pdf.Cell(0, 6, tr(e.Message))
			pdf.Ln(6)
		}
		pdf.Ln(3)
	}

	if len(report.Replacements) > 0 {
		writeHeading(pdf, "Replacements needed")
		for _, r := range report.Replacements {
			pdf.Cell(35, 6, r.PlannedStart.In(loc).Format("2006-01-02 15:04"))
			pdf.Cell(25, 6, string(r.Urgency))
			pdf.Cell(25, 6, string(r.Reason))
			pdf.Cell(0, 6, tr(fmt.Sprintf("shift %d %s %s-%s", r.Shift.ShiftID, r.Shift.Label, r.Shift.Window.Start, r.Shift.Window.End)))
			pdf.Ln(6)
		}
		pdf.Ln(3)
	}

	if len(report.Conflicts) > 0 {
		writeHeading(pdf, "Shift conflicts")
		for _, c := range report.Conflicts {
			pdf.Cell(0, 6, fmt.Sprintf("%s employee %d: shift %d (%s-%s) overlaps shift %d (%s-%s) by %d min",
				c.Date, c.EmployeeID,
				c.First.ShiftID, c.First.Window.Start, c.First.Window.End,
				c.Second.ShiftID, c.Second.Window.Start, c.Second.Window.End,
				c.OverlapMinutes))
			pdf.Ln(6)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render anomaly report: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeading(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 9)
}
