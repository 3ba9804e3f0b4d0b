package anomaly

import (
	"fmt"
	"time"

	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
)

// WorkDay is the business day [Start, End) anchored at the cutoff hour.
type WorkDay struct {
	Start time.Time
	End   time.Time
}

// ResolveWorkDay maps an instant, read in its own location, to its work day.
// Instants before the cutoff hour belong to the previous calendar day's work day.
// An out-of-range cutoff is a programming error and panics.
func ResolveWorkDay(instant time.Time, cutoffHour int) WorkDay {
	if cutoffHour < 0 || cutoffHour > 23 {
		panic(fmt.Errorf("%w: got %d", anomaly.ErrInvalidCutoffHour, cutoffHour))
	}

	y, m, d := instant.Date()
	if instant.Hour() < cutoffHour {
		d--
	}
	return workDayAt(y, m, d, cutoffHour, instant.Location())
}

// WorkDayOf resolves a work day from its key (the calendar date it starts on).
func WorkDayOf(date time.Time, cutoffHour int, loc *time.Location) WorkDay {
	y, m, d := date.Date()
	return workDayAt(y, m, d, cutoffHour, loc)
}

// End is the next cutoff on the wall clock: 24h apart except across a DST
// change, where this keeps consecutive work days contiguous.
func workDayAt(y int, m time.Month, d, cutoffHour int, loc *time.Location) WorkDay {
	start := time.Date(y, m, d, cutoffHour, 0, 0, 0, loc)
	end := time.Date(y, m, d+1, cutoffHour, 0, 0, 0, loc)
	return WorkDay{Start: start, End: end}
}

func (w WorkDay) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Key is the calendar date the work day starts on, YYYY-MM-DD.
func (w WorkDay) Key() string {
	return w.Start.Format("2006-01-02")
}

func (w WorkDay) Next() WorkDay {
	return WorkDayOf(w.Start.AddDate(0, 0, 1), w.Start.Hour(), w.Start.Location())
}
