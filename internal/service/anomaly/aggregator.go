package anomaly

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/domain/employee"
	"github.com/resto-planning/pointage-backend-go/internal/domain/pointage"
	"github.com/resto-planning/pointage-backend-go/internal/domain/shift"
)

// Snapshot is a consistent point-in-time read of everything a report needs.
// PeriodStart and PeriodEnd are work day keys, both inclusive. Incomplete
// holds employees whose data could not be resolved by the caller.
type Snapshot struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Employees   []employee.Employee
	Shifts      []shift.Shift
	Pointages   []pointage.Pointage
	Incomplete  map[int64]error
}

// Aggregate reconciles every employee over the period and builds the report.
// It fails only on caller bugs: invalid rules, or a pointage from an employee
// that is neither in the roster nor marked incomplete.
func Aggregate(snap Snapshot, rules Rules, now time.Time) (*anomaly.AnomalyReport, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	loc := rules.location()

	first := WorkDayOf(snap.PeriodStart, rules.CutoffHour, loc)
	last := WorkDayOf(snap.PeriodEnd, rules.CutoffHour, loc)
	if last.Start.Before(first.Start) {
		return nil, anomaly.ErrInvalidPeriod
	}
	days := []WorkDay{}
	for wd := first; !wd.Start.After(last.Start); wd = wd.Next() {
		days = append(days, wd)
	}
	inPeriod := make(map[string]WorkDay, len(days))
	for _, wd := range days {
		inPeriod[wd.Key()] = wd
	}

	roster := make(map[int64]employee.Employee, len(snap.Employees))
	for _, e := range snap.Employees {
		roster[e.ID] = e
	}
	incomplete := make(map[int64]error, len(snap.Incomplete))
	for id, err := range snap.Incomplete {
		incomplete[id] = err
	}

	type dayKey struct {
		employeeID int64
		workDay    string
	}
	shiftsByDay := make(map[dayKey][]shift.Shift)
	var periodShifts, assigned []shift.Shift
	for _, s := range snap.Shifts {
		if _, ok := inPeriod[s.DateKey()]; !ok {
			continue
		}
		periodShifts = append(periodShifts, s)
		if !s.IsAssigned() {
			continue
		}
		id := *s.EmployeeID
		if _, ok := roster[id]; !ok {
			if _, known := incomplete[id]; !known {
				incomplete[id] = fmt.Errorf("%w: shift %d references employee %d", anomaly.ErrMissingEmployeeData, s.ID, id)
			}
		}
		if _, bad := incomplete[id]; bad {
			continue
		}
		assigned = append(assigned, s)
		k := dayKey{employeeID: id, workDay: s.DateKey()}
		shiftsByDay[k] = append(shiftsByDay[k], s)
	}

	pointagesByDay := make(map[dayKey][]pointage.Pointage)
	for _, p := range snap.Pointages {
		if _, ok := roster[p.EmployeeID]; !ok {
			if _, known := incomplete[p.EmployeeID]; !known {
				return nil, fmt.Errorf("%w: employee %d (pointage %d)", anomaly.ErrUnknownEmployee, p.EmployeeID, p.ID)
			}
		}
		if _, bad := incomplete[p.EmployeeID]; bad {
			continue
		}
		wd := ResolveWorkDay(p.Timestamp.In(loc), rules.CutoffHour)
		if _, ok := inPeriod[wd.Key()]; !ok {
			continue
		}
		k := dayKey{employeeID: p.EmployeeID, workDay: wd.Key()}
		pointagesByDay[k] = append(pointagesByDay[k], p)
	}

	report := newReport(first, last, rules.CutoffHour, now)

	ids := make([]int64, 0, len(roster))
	for id := range roster {
		if _, bad := incomplete[id]; !bad {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var deviations []anomaly.AnomalyEntry
	for _, id := range ids {
		name := roster[id].FullName
		for _, wd := range days {
			k := dayKey{employeeID: id, workDay: wd.Key()}
			shifts, events := shiftsByDay[k], pointagesByDay[k]
			if len(shifts) == 0 && len(events) == 0 {
				continue
			}
			day := ReconcileDay(id, wd, shifts, events, rules, now)
			for _, d := range day.Deviations {
				deviations = append(deviations, anomaly.AnomalyEntry{EmployeeName: name, Deviation: d})
			}
			if day.OpenSince != nil {
				report.OpenSessions = append(report.OpenSessions, anomaly.OpenSession{
					EmployeeID: id,
					WorkDay:    wd.Key(),
					Since:      *day.OpenSince,
				})
			}
			report.InvalidShifts = append(report.InvalidShifts, day.InvalidShiftIDs...)
		}
	}
	slices.SortStableFunc(deviations, func(a, b anomaly.AnomalyEntry) int {
		return compareDeviations(a.Deviation, b.Deviation)
	})

	for _, entry := range deviations {
		report.Counts[entry.Type]++
		switch entry.Type {
		case anomaly.DeviationUnplannedAbsence:
			report.Buckets.AbsencesNonPlanifiees = append(report.Buckets.AbsencesNonPlanifiees, entry)
		case anomaly.DeviationLateArrival:
			report.Buckets.Retards = append(report.Buckets.Retards, entry)
		case anomaly.DeviationEarlyDeparture:
			report.Buckets.DepartsAnticipes = append(report.Buckets.DepartsAnticipes, entry)
		case anomaly.DeviationOutOfWindow, anomaly.DeviationUnplannedPresence:
			report.Buckets.HorsPlage = append(report.Buckets.HorsPlage, entry)
		case anomaly.DeviationOvertime:
			report.Overtime = append(report.Overtime, entry)
		}
	}

	slices.SortStableFunc(periodShifts, func(a, b shift.Shift) int {
		return cmp.Or(cmp.Compare(a.DateKey(), b.DateKey()), cmp.Compare(a.ID, b.ID))
	})
	for _, s := range periodShifts {
		c := ClassifyWithGap(s.Segments, rules.SplitGapMinutes)
		if !s.IsAssigned() && !c.InvalidSegments && c.IsWorking() {
			report.Buckets.NonAssignes = append(report.Buckets.NonAssignes, shiftRef(s, c))
		}
		if r, ok := replacementFor(s, c, rules, now); ok {
			report.Replacements = append(report.Replacements, r)
		}
	}
	slices.SortStableFunc(report.Replacements, func(a, b anomaly.Replacement) int {
		return cmp.Or(a.PlannedStart.Compare(b.PlannedStart), cmp.Compare(a.Shift.ShiftID, b.Shift.ShiftID))
	})

	detection := Detect(assigned, rules.SplitGapMinutes)
	report.Conflicts = detection.Conflicts
	report.Merged = detection.Merged

	slices.Sort(report.InvalidShifts)
	for id := range incomplete {
		report.DataIncomplete = append(report.DataIncomplete, id)
	}
	slices.Sort(report.DataIncomplete)
	report.Degraded = len(report.DataIncomplete) > 0

	b := report.Buckets
	report.HasAnomalies = len(b.AbsencesNonPlanifiees) > 0 ||
		len(b.Retards) > 0 ||
		len(b.HorsPlage) > 0 ||
		len(b.DepartsAnticipes) > 0 ||
		len(b.NonAssignes) > 0

	return report, nil
}

func newReport(first, last WorkDay, cutoffHour int, now time.Time) *anomaly.AnomalyReport {
	counts := make(map[anomaly.DeviationType]int, len(anomaly.DeviationTypes))
	for _, t := range anomaly.DeviationTypes {
		counts[t] = 0
	}
	return &anomaly.AnomalyReport{
		PeriodStart: first.Key(),
		PeriodEnd:   last.Key(),
		CutoffHour:  cutoffHour,
		ComputedAt:  now,
		Counts:      counts,
		Buckets: anomaly.AnomalyBuckets{
			AbsencesNonPlanifiees: []anomaly.AnomalyEntry{},
			Retards:               []anomaly.AnomalyEntry{},
			HorsPlage:             []anomaly.AnomalyEntry{},
			DepartsAnticipes:      []anomaly.AnomalyEntry{},
			NonAssignes:           []anomaly.ShiftRef{},
		},
		Overtime:       []anomaly.AnomalyEntry{},
		Conflicts:      []anomaly.ShiftConflict{},
		Merged:         []anomaly.MergedShift{},
		Replacements:   []anomaly.Replacement{},
		OpenSessions:   []anomaly.OpenSession{},
		InvalidShifts:  []int64{},
		DataIncomplete: []int64{},
	}
}

// replacementFor reports shifts that still need someone: unassigned or
// flagged, working, and not over yet.
func replacementFor(s shift.Shift, c Classification, rules Rules, now time.Time) (anomaly.Replacement, bool) {
	if s.IsAssigned() && !s.NeedsReplacement {
		return anomaly.Replacement{}, false
	}
	if c.InvalidSegments || !c.IsWorking() {
		return anomaly.Replacement{}, false
	}
	start := rules.plannedInstant(s.Date, c.EffectiveStart)
	end := rules.plannedInstant(s.Date, c.EffectiveEnd)
	if !now.Before(end) {
		return anomaly.Replacement{}, false
	}

	reason := anomaly.ReplacementFlagged
	if !s.IsAssigned() {
		reason = anomaly.ReplacementUnassigned
	}
	until := start.Sub(now)
	return anomaly.Replacement{
		Shift:             shiftRef(s, c),
		Reason:            reason,
		Urgency:           urgencyFor(until, rules),
		PlannedStart:      start,
		MinutesUntilStart: wholeMinutes(until),
	}, true
}

func urgencyFor(untilStart time.Duration, rules Rules) anomaly.Urgency {
	switch {
	case untilStart <= 0:
		return anomaly.UrgencyOngoing
	case untilStart <= rules.ReplacementUrgent:
		return anomaly.UrgencyUrgent
	case untilStart <= rules.ReplacementSoon:
		return anomaly.UrgencySoon
	default:
		return anomaly.UrgencyScheduled
	}
}

// IsContractViolation reports whether err is a caller bug rather than dirty data.
func IsContractViolation(err error) bool {
	return errors.Is(err, anomaly.ErrUnknownEmployee) ||
		errors.Is(err, anomaly.ErrInvalidRules) ||
		errors.Is(err, anomaly.ErrInvalidCutoffHour)
}
