package anomaly

import (
	"fmt"
	"time"

	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
)

const (
	// DefaultCutoffHour anchors the work day. It must sit where no real shift
	// starts or ends, so late services past midnight stay on the day they began.
	DefaultCutoffHour = 6

	// DefaultSplitGapMinutes is the idle time between two work segments above
	// which a shift is a "coupure" (split shift) rather than one with a break.
	DefaultSplitGapMinutes = 120

	// DefaultDeviationThreshold is the tolerance on either side of a planned
	// start or end before a clock event counts as a deviation.
	DefaultDeviationThreshold = 5 * time.Minute

	// DefaultLateHighThreshold promotes a late arrival from medium to high.
	DefaultLateHighThreshold = 15 * time.Minute

	// DefaultAbsenceGrace is how long after the planned start a missing
	// arrival becomes an unplanned absence.
	DefaultAbsenceGrace = 15 * time.Minute

	// DefaultMaxBlocksPerWorkDay caps completed arrival/departure pairs per
	// work day (lunch and dinner service).
	DefaultMaxBlocksPerWorkDay = 2

	DefaultReplacementUrgent = 120 * time.Minute
	DefaultReplacementSoon   = 360 * time.Minute
)

// Rules carries every tunable of the reconciliation. The zero value is not
// usable, start from DefaultRules.
type Rules struct {
	CutoffHour          int
	Location            *time.Location
	SplitGapMinutes     int
	DeviationThreshold  time.Duration
	LateHighThreshold   time.Duration
	AbsenceGrace        time.Duration
	MaxBlocksPerWorkDay int
	ReplacementUrgent   time.Duration
	ReplacementSoon     time.Duration
}

func DefaultRules() Rules {
	return Rules{
		CutoffHour:          DefaultCutoffHour,
		Location:            time.UTC,
		SplitGapMinutes:     DefaultSplitGapMinutes,
		DeviationThreshold:  DefaultDeviationThreshold,
		LateHighThreshold:   DefaultLateHighThreshold,
		AbsenceGrace:        DefaultAbsenceGrace,
		MaxBlocksPerWorkDay: DefaultMaxBlocksPerWorkDay,
		ReplacementUrgent:   DefaultReplacementUrgent,
		ReplacementSoon:     DefaultReplacementSoon,
	}
}

// Validate rejects configurations that indicate a caller bug.
func (r Rules) Validate() error {
	if r.CutoffHour < 0 || r.CutoffHour > 23 {
		return fmt.Errorf("%w: got %d", anomaly.ErrInvalidCutoffHour, r.CutoffHour)
	}
	if r.SplitGapMinutes <= 0 {
		return fmt.Errorf("%w: split gap must be positive", anomaly.ErrInvalidRules)
	}
	if r.DeviationThreshold < 0 || r.AbsenceGrace < 0 {
		return fmt.Errorf("%w: thresholds must not be negative", anomaly.ErrInvalidRules)
	}
	if r.LateHighThreshold < r.DeviationThreshold {
		return fmt.Errorf("%w: late high threshold below deviation threshold", anomaly.ErrInvalidRules)
	}
	if r.MaxBlocksPerWorkDay < 1 {
		return fmt.Errorf("%w: at least one work block per day is required", anomaly.ErrInvalidRules)
	}
	if r.ReplacementSoon < r.ReplacementUrgent {
		return fmt.Errorf("%w: replacement 'soon' window shorter than 'urgent'", anomaly.ErrInvalidRules)
	}
	return nil
}

func (r Rules) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// plannedInstant places a wrap-adjusted minute offset on the shift's calendar date.
func (r Rules) plannedInstant(date time.Time, minutes int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, minutes, 0, 0, r.location())
}
