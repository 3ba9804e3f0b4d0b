// Command anomaly-report prints the anomaly report of a period to the terminal.
//
// Usage:
//
//	anomaly-report [-start YYYY-MM-DD] [-end YYYY-MM-DD] [-json]
//
// The exit code is 1 on error and 2 when some employees could not be loaded.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/resto-planning/pointage-backend-go/internal/config"
	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/database"
	"github.com/resto-planning/pointage-backend-go/internal/repository/postgresql"
	anomalyService "github.com/resto-planning/pointage-backend-go/internal/service/anomaly"
)

const exitDegraded = 2

func main() {
	start := flag.String("start", "", "first work day, YYYY-MM-DD (default: current work day)")
	end := flag.String("end", "", "last work day, YYYY-MM-DD (default: start)")
	asJSON := flag.Bool("json", false, "print the raw report as JSON")
	noColor := flag.Bool("no-color", false, "disable colors")
	flag.Parse()

	if *noColor {
		color.NoColor = true
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	report, err := fetch(anomaly.ReportFilter{StartDate: *start, EndDate: *end})
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	} else {
		printReport(color.Output, report)
	}

	if report.Degraded {
		os.Exit(exitDegraded)
	}
}

func fetch(filter anomaly.ReportFilter) (*anomaly.AnomalyReport, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{MaxConns: 4})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	defer db.Close()

	svc := anomalyService.NewAnomalyService(
		postgresql.NewShiftRepository(db),
		postgresql.NewPointageRepository(db),
		postgresql.NewEmployeeRepository(db),
		rules,
		anomalyService.WithRetry(uint(cfg.Anomaly.FetchRetryAttempts), 200*time.Millisecond),
		anomalyService.WithReadTx(postgresql.ReadSnapshot(db)),
	)
	return svc.GetReport(ctx, filter)
}

var (
	bold      = color.New(color.Bold)
	faint     = color.New(color.Faint)
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow, color.Bold)
)

func severityColor(s anomaly.Severity) *color.Color {
	switch s {
	case anomaly.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case anomaly.SeverityHigh:
		return color.New(color.FgRed)
	case anomaly.SeverityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func urgencyColor(u anomaly.Urgency) *color.Color {
	switch u {
	case anomaly.UrgencyOngoing, anomaly.UrgencyUrgent:
		return color.New(color.FgRed, color.Bold)
	case anomaly.UrgencySoon:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}

func printReport(w io.Writer, r *anomaly.AnomalyReport) {
	bold.Fprintf(w, "Anomalies %s → %s", r.PeriodStart, r.PeriodEnd)
	faint.Fprintf(w, "  (cutoff %02d:00, computed %s)\n", r.CutoffHour, r.ComputedAt.Format(time.RFC3339))

	if r.Degraded {
		warnColor.Fprintf(w, "Incomplete data for employees %v\n", r.DataIncomplete)
	}
	if !r.HasAnomalies {
		okColor.Fprintln(w, "No anomalies.")
	}

	printEntries(w, "Unplanned absences", r.Buckets.AbsencesNonPlanifiees)
	printEntries(w, "Late arrivals", r.Buckets.Retards)
	printEntries(w, "Early departures", r.Buckets.DepartsAnticipes)
	printEntries(w, "Out of window", r.Buckets.HorsPlage)
	printEntries(w, "Overtime", r.Overtime)

	if len(r.Buckets.NonAssignes) > 0 {
		bold.Fprintf(w, "\nUnassigned shifts (%d)\n", len(r.Buckets.NonAssignes))
		for _, s := range r.Buckets.NonAssignes {
			fmt.Fprintf(w, "  #%d %s %s-%s %s\n", s.ShiftID, s.Date, s.Window.Start, s.Window.End, s.Label)
		}
	}
	if len(r.Replacements) > 0 {
		bold.Fprintf(w, "\nReplacements needed (%d)\n", len(r.Replacements))
		for _, rep := range r.Replacements {
			urgencyColor(rep.Urgency).Fprintf(w, "  %-9s", rep.Urgency)
			fmt.Fprintf(w, " #%d %s %s-%s (%s, starts in %d min)\n",
				rep.Shift.ShiftID, rep.Shift.Date, rep.Shift.Window.Start, rep.Shift.Window.End, rep.Reason, rep.MinutesUntilStart)
		}
	}
	if len(r.Conflicts) > 0 {
		bold.Fprintf(w, "\nShift conflicts (%d)\n", len(r.Conflicts))
		for _, c := range r.Conflicts {
			severityColor(anomaly.SeverityHigh).Fprintf(w, "  employee %d %s: #%d %s-%s overlaps #%d %s-%s by %d min\n",
				c.EmployeeID, c.Date,
				c.First.ShiftID, c.First.Window.Start, c.First.Window.End,
				c.Second.ShiftID, c.Second.Window.Start, c.Second.Window.End,
				c.OverlapMinutes)
		}
	}
	if len(r.OpenSessions) > 0 {
		bold.Fprintf(w, "\nOpen sessions (%d)\n", len(r.OpenSessions))
		for _, o := range r.OpenSessions {
			fmt.Fprintf(w, "  employee %d since %s\n", o.EmployeeID, o.Since.Format("15:04"))
		}
	}
	if len(r.InvalidShifts) > 0 {
		warnColor.Fprintf(w, "\nShifts with invalid segments: %v\n", r.InvalidShifts)
	}
}

func printEntries(w io.Writer, title string, entries []anomaly.AnomalyEntry) {
	if len(entries) == 0 {
		return
	}
	bold.Fprintf(w, "\n%s (%d)\n", title, len(entries))
	for _, e := range entries {
		severityColor(e.Severity).Fprintf(w, "  %-8s", e.Severity)
		fmt.Fprintf(w, " %s %-20s %s\n", e.WorkDay, e.EmployeeName, e.Message)
	}
}
