package anomaly

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/domain/pointage"
	"github.com/resto-planning/pointage-backend-go/internal/domain/shift"
)

// DayReconciliation is the outcome of comparing one employee's shifts and
// pointages over one work day.
type DayReconciliation struct {
	EmployeeID      int64
	WorkDay         WorkDay
	Deviations      []anomaly.Deviation
	Informational   []anomaly.Deviation
	Blocks          []anomaly.WorkBlock
	OpenSince       *time.Time
	InvalidShiftIDs []int64
}

// plannedShift is a valid working shift placed on the absolute timeline.
// blocks are the completed blocks that end in it and drive the departure
// checks. arrival is the first clock-in judged against its start, covered is
// set when the employee was already on site from an earlier shift.
type plannedShift struct {
	shift   shift.Shift
	start   time.Time
	end     time.Time
	blocks  []anomaly.WorkBlock
	open    *time.Time
	arrival *time.Time
	covered bool
}

// presence is a completed block or the open session, with every shift it
// satisfies on the arrival side.
type presence struct {
	from, to time.Time
	shifts   []*plannedShift
	claimed  bool
}

func (p *plannedShift) overlap(from, to time.Time) time.Duration {
	start := p.start
	if from.After(start) {
		start = from
	}
	end := p.end
	if to.Before(end) {
		end = to
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}

func (p *plannedShift) distance(from, to time.Time) time.Duration {
	switch {
	case to.Before(p.start):
		return p.start.Sub(to)
	case from.After(p.end):
		return from.Sub(p.end)
	default:
		return 0
	}
}

// Reconcile compares a single shift with the pointages of its work day.
func Reconcile(s shift.Shift, pointages []pointage.Pointage, rules Rules, now time.Time) DayReconciliation {
	var employeeID int64
	if s.EmployeeID != nil {
		employeeID = *s.EmployeeID
	}
	workDay := WorkDayOf(s.Date, rules.CutoffHour, rules.location())
	return ReconcileDay(employeeID, workDay, []shift.Shift{s}, pointages, rules, now)
}

// ReconcileDay pairs the employee's pointages into work blocks, matches them
// with the planned shifts and emits deviations. A block counts as an arrival
// for every shift it overlaps, its departure only for the shift it ends in.
// Pointages of other employees or outside the work day are ignored.
func ReconcileDay(
	employeeID int64,
	workDay WorkDay,
	shifts []shift.Shift,
	pointages []pointage.Pointage,
	rules Rules,
	now time.Time,
) DayReconciliation {
	result := DayReconciliation{
		EmployeeID:      employeeID,
		WorkDay:         workDay,
		Deviations:      []anomaly.Deviation{},
		Informational:   []anomaly.Deviation{},
		Blocks:          []anomaly.WorkBlock{},
		InvalidShiftIDs: []int64{},
	}
	key := workDay.Key()

	events := make([]pointage.Pointage, 0, len(pointages))
	for _, p := range pointages {
		if p.EmployeeID == employeeID && workDay.Contains(p.Timestamp) {
			events = append(events, p)
		}
	}
	slices.SortStableFunc(events, func(a, b pointage.Pointage) int {
		return cmp.Or(a.Timestamp.Compare(b.Timestamp), cmp.Compare(a.ID, b.ID))
	})

	blocks, open := pairBlocks(events)
	result.Blocks = blocks
	result.OpenSince = open

	attributable := blocks
	if len(blocks) > rules.MaxBlocksPerWorkDay {
		attributable = blocks[:rules.MaxBlocksPerWorkDay]
		for _, extra := range blocks[rules.MaxBlocksPerWorkDay:] {
			actual := extra.Arrival
			result.Deviations = append(result.Deviations, anomaly.Deviation{
				Type:         anomaly.DeviationOutOfWindow,
				DeltaMinutes: extra.Minutes,
				Severity:     anomaly.SeverityHigh,
				Message: fmt.Sprintf("work block %s-%s exceeds the %d blocks allowed per work day",
					extra.Arrival.Format("15:04"), extra.Departure.Format("15:04"), rules.MaxBlocksPerWorkDay),
				EmployeeID: employeeID,
				WorkDay:    key,
				ActualAt:   &actual,
			})
		}
	}

	var planned []*plannedShift
	for _, s := range shifts {
		c := ClassifyWithGap(s.Segments, rules.SplitGapMinutes)
		if c.InvalidSegments {
			result.InvalidShiftIDs = append(result.InvalidShiftIDs, s.ID)
			continue
		}
		if !c.IsWorking() {
			continue
		}
		planned = append(planned, &plannedShift{
			shift: s,
			start: rules.plannedInstant(s.Date, c.EffectiveStart),
			end:   rules.plannedInstant(s.Date, c.EffectiveEnd),
		})
	}
	slices.SortFunc(planned, func(a, b *plannedShift) int {
		return cmp.Or(a.start.Compare(b.start), cmp.Compare(a.shift.ID, b.shift.ID))
	})
	slices.Sort(result.InvalidShiftIDs)

	if len(planned) == 0 {
		if len(result.InvalidShiftIDs) == 0 && len(events) > 0 {
			result.Deviations = append(result.Deviations, unplannedPresence(employeeID, key, events, attributable))
		}
		sortDeviations(result.Deviations)
		return result
	}

	presences := make([]*presence, 0, len(attributable)+1)
	for _, b := range attributable {
		target := endingShift(planned, b.Arrival, b.Departure)
		target.blocks = append(target.blocks, b)
		presences = append(presences, newPresence(planned, b.Arrival, b.Departure, target))
	}
	if open != nil {
		until := now
		if until.Before(*open) {
			until = *open
		}
		pr := newPresence(planned, *open, until, nil)
		for _, p := range pr.shifts {
			p.open = open
		}
		presences = append(presences, pr)
	}
	assignArrivals(planned, presences)

	for _, p := range planned {
		devs, info := compareShift(p, employeeID, key, rules, now)
		result.Deviations = append(result.Deviations, devs...)
		result.Informational = append(result.Informational, info...)
	}

	sortDeviations(result.Deviations)
	sortDeviations(result.Informational)
	return result
}

// pairBlocks turns sorted pointages into completed blocks. A repeated arrival
// keeps the earliest one, a departure without arrival is dropped and a
// trailing arrival is returned as the open session.
func pairBlocks(events []pointage.Pointage) ([]anomaly.WorkBlock, *time.Time) {
	blocks := []anomaly.WorkBlock{}
	var open *time.Time
	for _, p := range events {
		switch p.Kind {
		case pointage.KindArrival:
			if open == nil {
				ts := p.Timestamp
				open = &ts
			}
		case pointage.KindDeparture:
			if open == nil {
				continue
			}
			blocks = append(blocks, anomaly.WorkBlock{
				Arrival:   *open,
				Departure: p.Timestamp,
				Minutes:   minutesBetween(*open, p.Timestamp),
			})
			open = nil
		}
	}
	return blocks, open
}

// newPresence links [from, to) to every shift it overlaps, or to fallback
// (the nearest shift when nil) when it overlaps none.
func newPresence(planned []*plannedShift, from, to time.Time, fallback *plannedShift) *presence {
	pr := &presence{from: from, to: to}
	for _, p := range planned {
		if p.overlap(from, to) > 0 {
			pr.shifts = append(pr.shifts, p)
		}
	}
	if len(pr.shifts) == 0 {
		if fallback == nil {
			fallback = attribute(planned, from, to)
		}
		pr.shifts = []*plannedShift{fallback}
	}
	return pr
}

// endingShift picks, among the shifts a block overlaps, the one its departure
// falls in or is closest to. Earlier shifts win ties.
func endingShift(planned []*plannedShift, from, to time.Time) *plannedShift {
	var best *plannedShift
	var bestDistance time.Duration
	for _, p := range planned {
		if p.overlap(from, to) == 0 {
			continue
		}
		if d := p.distance(to, to); best == nil || d < bestDistance {
			best, bestDistance = p, d
		}
	}
	if best != nil {
		return best
	}
	return attribute(planned, from, to)
}

// assignArrivals gives each shift, in start order, the first presence not yet
// used by an earlier shift. A presence already running when a later shift
// starts covers it: the employee stayed on site. planned and presences are
// both in chronological order.
func assignArrivals(planned []*plannedShift, presences []*presence) {
	for _, p := range planned {
		var unclaimed, claimed *presence
		for _, pr := range presences {
			if !slices.Contains(pr.shifts, p) {
				continue
			}
			switch {
			case pr.claimed && !pr.from.After(p.start):
				p.covered = true
			case pr.claimed:
				if claimed == nil {
					claimed = pr
				}
			case unclaimed == nil:
				unclaimed = pr
			}
		}
		if p.covered {
			continue
		}
		if unclaimed != nil {
			unclaimed.claimed = true
			claimed = unclaimed
		}
		if claimed != nil {
			a := claimed.from
			p.arrival = &a
		}
	}
}

func attribute(planned []*plannedShift, from, to time.Time) *plannedShift {
	var best *plannedShift
	var bestOverlap time.Duration
	for _, p := range planned {
		if o := p.overlap(from, to); o > bestOverlap {
			best, bestOverlap = p, o
		}
	}
	if best != nil {
		return best
	}

	bestDistance := time.Duration(-1)
	for _, p := range planned {
		if d := p.distance(from, to); bestDistance < 0 || d < bestDistance {
			best, bestDistance = p, d
		}
	}
	return best
}

func compareShift(p *plannedShift, employeeID int64, key string, rules Rules, now time.Time) ([]anomaly.Deviation, []anomaly.Deviation) {
	var devs, info []anomaly.Deviation
	shiftID := p.shift.ID
	plannedStart, plannedEnd := p.start, p.end

	base := func(t anomaly.DeviationType, planned time.Time) anomaly.Deviation {
		return anomaly.Deviation{
			Type:       t,
			EmployeeID: employeeID,
			ShiftID:    &shiftID,
			WorkDay:    key,
			PlannedAt:  &planned,
		}
	}

	arrival := p.arrival

	if arrival == nil && !p.covered {
		if now.After(plannedStart.Add(rules.AbsenceGrace)) {
			until := plannedEnd
			if now.Before(until) {
				until = now
			}
			d := base(anomaly.DeviationUnplannedAbsence, plannedStart)
			d.DeltaMinutes = minutesBetween(plannedStart, until)
			d.Severity = anomaly.SeverityCritical
			d.Message = fmt.Sprintf("no arrival recorded for shift starting at %s", plannedStart.Format("15:04"))
			devs = append(devs, d)
		}
		return devs, info
	}

	var lateness time.Duration
	if arrival != nil {
		lateness = arrival.Sub(plannedStart)
	}
	switch {
	case lateness >= rules.DeviationThreshold:
		d := base(anomaly.DeviationLateArrival, plannedStart)
		d.DeltaMinutes = wholeMinutes(lateness)
		d.Severity = anomaly.SeverityMedium
		if lateness >= rules.LateHighThreshold {
			d.Severity = anomaly.SeverityHigh
		}
		d.ActualAt = arrival
		d.Message = fmt.Sprintf("arrived at %s, %d min after %s",
			arrival.Format("15:04"), d.DeltaMinutes, plannedStart.Format("15:04"))
		devs = append(devs, d)
	case -lateness >= rules.DeviationThreshold:
		d := base(anomaly.DeviationEarlyArrival, plannedStart)
		d.DeltaMinutes = wholeMinutes(lateness)
		d.Severity = anomaly.SeverityInfo
		d.ActualAt = arrival
		d.Message = fmt.Sprintf("arrived at %s, %d min before %s",
			arrival.Format("15:04"), -d.DeltaMinutes, plannedStart.Format("15:04"))
		info = append(info, d)
	}

	if p.open != nil || len(p.blocks) == 0 || now.Before(plannedEnd) {
		return devs, info
	}

	departure := p.blocks[0].Departure
	for _, b := range p.blocks[1:] {
		if b.Departure.After(departure) {
			departure = b.Departure
		}
	}
	diff := departure.Sub(plannedEnd)
	switch {
	case -diff >= rules.DeviationThreshold:
		d := base(anomaly.DeviationEarlyDeparture, plannedEnd)
		d.DeltaMinutes = wholeMinutes(-diff)
		d.Severity = anomaly.SeverityHigh
		d.ActualAt = &departure
		d.Message = fmt.Sprintf("left at %s, %d min before %s",
			departure.Format("15:04"), d.DeltaMinutes, plannedEnd.Format("15:04"))
		devs = append(devs, d)
	case diff >= rules.DeviationThreshold:
		d := base(anomaly.DeviationOvertime, plannedEnd)
		d.DeltaMinutes = wholeMinutes(diff)
		d.Severity = anomaly.SeverityMedium
		d.ActualAt = &departure
		d.Message = fmt.Sprintf("left at %s, %d min after %s",
			departure.Format("15:04"), d.DeltaMinutes, plannedEnd.Format("15:04"))
		devs = append(devs, d)
	}
	return devs, info
}

func unplannedPresence(employeeID int64, key string, events []pointage.Pointage, blocks []anomaly.WorkBlock) anomaly.Deviation {
	worked := 0
	for _, b := range blocks {
		worked += b.Minutes
	}
	first := events[0].Timestamp
	return anomaly.Deviation{
		Type:         anomaly.DeviationUnplannedPresence,
		DeltaMinutes: worked,
		Severity:     anomaly.SeverityMedium,
		Message:      fmt.Sprintf("clocked in at %s without a planned shift", first.Format("15:04")),
		EmployeeID:   employeeID,
		WorkDay:      key,
		ActualAt:     &first,
	}
}

// sortDeviations orders by severity, then work day, employee, shift and time.
func sortDeviations(devs []anomaly.Deviation) {
	slices.SortStableFunc(devs, compareDeviations)
}

func compareDeviations(a, b anomaly.Deviation) int {
	return cmp.Or(
		cmp.Compare(a.Severity.Rank(), b.Severity.Rank()),
		cmp.Compare(a.WorkDay, b.WorkDay),
		cmp.Compare(a.EmployeeID, b.EmployeeID),
		cmp.Compare(derefID(a.ShiftID), derefID(b.ShiftID)),
		compareInstant(deviationTime(a), deviationTime(b)),
		cmp.Compare(a.Type, b.Type),
	)
}

func deviationTime(d anomaly.Deviation) *time.Time {
	if d.ActualAt != nil {
		return d.ActualAt
	}
	return d.PlannedAt
}

func compareInstant(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func wholeMinutes(d time.Duration) int {
	return int(d / time.Minute)
}

func minutesBetween(from, to time.Time) int {
	return wholeMinutes(to.Sub(from))
}
