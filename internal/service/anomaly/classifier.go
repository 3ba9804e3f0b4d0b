package anomaly

import (
	"fmt"

	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/domain/shift"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/validator"
)

// Slot thresholds, in whole hours of the first work start and last work end.
// They follow the lunch and dinner services of the restaurant.
const (
	middayStartBefore  = 14 // lunch service starts before 14h
	middayEndAtMost    = 17 // and is over by 17h
	eveningStartFrom   = 16 // anything starting from 16h is dinner service
	eveningEndAfter    = 22 // late finish with an afternoon start is dinner too
	minutesPerDay      = 24 * 60
	sameDayWrapMinimum = minutesPerDay / 2
)

// Window is a span in minutes from midnight of the shift date. End may exceed
// a day when the span runs past midnight.
type Window struct {
	Start int
	End   int
}

func (w Window) Minutes() int {
	return w.End - w.Start
}

func (w Window) overlap(o Window) int {
	start := max(w.Start, o.Start)
	end := min(w.End, o.End)
	if end <= start {
		return 0
	}
	return end - start
}

func (w Window) timeWindow() anomaly.TimeWindow {
	return anomaly.TimeWindow{Start: FormatClock(w.Start), End: FormatClock(w.End)}
}

// Classification is what a shift's raw segments say about it.
type Classification struct {
	Slot            anomaly.Slot
	NetMinutes      int
	BreakMinutes    int
	HasGap          bool
	EffectiveStart  int
	EffectiveEnd    int
	WorkWindows     []Window
	InvalidSegments bool
	Err             error
}

// IsWorking reports whether at least one work segment could be read.
func (c Classification) IsWorking() bool {
	return len(c.WorkWindows) > 0
}

func (c Classification) Effective() Window {
	return Window{Start: c.EffectiveStart, End: c.EffectiveEnd}
}

// ParseClock reads a "HH:MM" wall-clock time into minutes from midnight.
func ParseClock(value string) (int, error) {
	t, ok := validator.IsValidClock(value)
	if !ok {
		return 0, fmt.Errorf("%w: %q", shift.ErrInvalidSegmentTime, value)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders a minute offset as "HH:MM", folding offsets past midnight.
func FormatClock(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Classify uses the default split gap.
func Classify(segments []shift.Segment) Classification {
	return ClassifyWithGap(segments, DefaultSplitGapMinutes)
}

// ClassifyWithGap derives slot and durations from segments ordered by start.
// Malformed or overlapping segments are skipped and flag the result invalid.
func ClassifyWithGap(segments []shift.Segment, splitGapMinutes int) Classification {
	var c Classification

	var (
		dayOffset int
		cursor    = -1
		prevWork  *Window
	)
	for _, seg := range segments {
		span, err := placeSegment(seg, dayOffset, cursor)
		if err != nil {
			c.InvalidSegments = true
			if c.Err == nil {
				c.Err = err
			}
			continue
		}
		dayOffset = span.End / minutesPerDay * minutesPerDay
		cursor = span.End

		if seg.Kind == shift.SegmentKindBreak {
			c.BreakMinutes += span.Minutes()
			continue
		}

		c.NetMinutes += span.Minutes()
		if prevWork != nil && span.Start-prevWork.End >= splitGapMinutes {
			c.HasGap = true
		}
		c.WorkWindows = append(c.WorkWindows, span)
		prevWork = &c.WorkWindows[len(c.WorkWindows)-1]
	}

	if !c.IsWorking() {
		c.Slot = anomaly.SlotNone
		return c
	}

	c.EffectiveStart = c.WorkWindows[0].Start
	c.EffectiveEnd = c.WorkWindows[len(c.WorkWindows)-1].End
	if c.HasGap {
		c.Slot = anomaly.SlotSplitShift
	} else {
		c.Slot = slotFor(c.EffectiveStart/60, c.EffectiveEnd/60)
	}
	return c
}

// placeSegment puts a segment on the shift timeline. A segment starting well
// before the previous end continues on the next day; a small step back is an overlap.
func placeSegment(seg shift.Segment, dayOffset, cursor int) (Window, error) {
	if !validator.IsInSlice(string(seg.Kind), shift.SegmentKindValues) {
		return Window{}, fmt.Errorf("%w: %q", shift.ErrInvalidSegmentKind, seg.Kind)
	}
	start, err := ParseClock(seg.Start)
	if err != nil {
		return Window{}, err
	}
	end, err := ParseClock(seg.End)
	if err != nil {
		return Window{}, err
	}

	start += dayOffset
	end += dayOffset
	if dayOffset > 0 && start-cursor >= sameDayWrapMinimum {
		// still the evening the previous segment crossed midnight from
		start -= minutesPerDay
		end -= minutesPerDay
	}
	if cursor >= 0 && start < cursor {
		if cursor-start < sameDayWrapMinimum {
			return Window{}, fmt.Errorf("%w: %s-%s", shift.ErrOverlappingSegments, seg.Start, seg.End)
		}
		start += minutesPerDay
		end += minutesPerDay
	}
	if end < start {
		end += minutesPerDay
	}
	return Window{Start: start, End: end}, nil
}

func slotFor(s, e int) anomaly.Slot {
	switch {
	case s < middayStartBefore && e <= middayEndAtMost:
		return anomaly.SlotMidday
	case s >= eveningStartFrom || (e > eveningEndAfter && s > middayStartBefore):
		return anomaly.SlotEvening
	case s < middayStartBefore && e > middayEndAtMost:
		return anomaly.SlotContinuous
	case s < eveningStartFrom:
		return anomaly.SlotMidday
	default:
		return anomaly.SlotEvening
	}
}
