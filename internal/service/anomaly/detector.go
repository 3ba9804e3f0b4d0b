package anomaly

import (
	"cmp"
	"slices"

	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/domain/shift"
)

// Detection groups an employee's same-date shifts into conflicts (overlapping
// windows) and merged double shifts (two or more that do not overlap).
type Detection struct {
	Conflicts []anomaly.ShiftConflict
	Merged    []anomaly.MergedShift
}

type classifiedShift struct {
	shift shift.Shift
	class Classification
}

type dayGroup struct {
	employeeID int64
	date       string
}

// Detect ignores unassigned shifts, shifts with invalid segments and rest days.
// Shifts are classified with the given split gap, as the report does.
func Detect(shifts []shift.Shift, splitGapMinutes int) Detection {
	result := Detection{
		Conflicts: []anomaly.ShiftConflict{},
		Merged:    []anomaly.MergedShift{},
	}

	groups := make(map[dayGroup][]classifiedShift)
	for _, s := range shifts {
		if !s.IsAssigned() {
			continue
		}
		c := ClassifyWithGap(s.Segments, splitGapMinutes)
		if c.InvalidSegments || !c.IsWorking() {
			continue
		}
		g := dayGroup{employeeID: *s.EmployeeID, date: s.DateKey()}
		groups[g] = append(groups[g], classifiedShift{shift: s, class: c})
	}

	keys := make([]dayGroup, 0, len(groups))
	for g := range groups {
		keys = append(keys, g)
	}
	slices.SortFunc(keys, func(a, b dayGroup) int {
		return cmp.Or(cmp.Compare(a.employeeID, b.employeeID), cmp.Compare(a.date, b.date))
	})

	for _, g := range keys {
		members := groups[g]
		if len(members) < 2 {
			continue
		}
		slices.SortFunc(members, func(a, b classifiedShift) int {
			return cmp.Or(
				cmp.Compare(a.class.EffectiveStart, b.class.EffectiveStart),
				cmp.Compare(a.shift.ID, b.shift.ID),
			)
		})

		conflicting := make([]bool, len(members))
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				overlap := members[i].class.Effective().overlap(members[j].class.Effective())
				if overlap == 0 {
					continue
				}
				conflicting[i], conflicting[j] = true, true
				result.Conflicts = append(result.Conflicts, anomaly.ShiftConflict{
					EmployeeID:     g.employeeID,
					Date:           g.date,
					First:          shiftRef(members[i].shift, members[i].class),
					Second:         shiftRef(members[j].shift, members[j].class),
					OverlapMinutes: overlap,
				})
			}
		}

		merged := anomaly.MergedShift{
			EmployeeID: g.employeeID,
			Date:       g.date,
			ShiftIDs:   []int64{},
			Windows:    []anomaly.TimeWindow{},
		}
		for i, m := range members {
			if conflicting[i] {
				continue
			}
			merged.ShiftIDs = append(merged.ShiftIDs, m.shift.ID)
			merged.NetMinutes += m.class.NetMinutes
			merged.MealCount++
			for _, w := range m.class.WorkWindows {
				merged.Windows = append(merged.Windows, w.timeWindow())
			}
		}
		if len(merged.ShiftIDs) >= 2 {
			result.Merged = append(result.Merged, merged)
		}
	}
	return result
}

func shiftRef(s shift.Shift, c Classification) anomaly.ShiftRef {
	ref := anomaly.ShiftRef{
		ShiftID:    s.ID,
		EmployeeID: s.EmployeeID,
		Date:       s.DateKey(),
		Label:      s.Label,
	}
	if c.IsWorking() {
		ref.Window = c.Effective().timeWindow()
	}
	return ref
}
