package shift

import "time"

type SegmentKind string

const (
	SegmentKindWork  SegmentKind = "work"
	SegmentKindBreak SegmentKind = "break"
)

var SegmentKindValues = []string{
	string(SegmentKindWork),
	string(SegmentKindBreak),
}

// Segment is one contiguous span of a shift, in local wall-clock "HH:MM".
// End may be numerically before Start when the span crosses midnight.
type Segment struct {
	Start string
	End   string
	Kind  SegmentKind
}

// Shift is the planned attendance of one employee on the calendar Date the
// shift begins. EmployeeID is nil when the shift is not assigned yet.
type Shift struct {
	ID               int64
	EmployeeID       *int64
	Date             time.Time
	Label            string
	Segments         []Segment
	NeedsReplacement bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsAssigned reports whether an employee holds the shift.
func (s Shift) IsAssigned() bool {
	return s.EmployeeID != nil
}

// DateKey returns the shift date as YYYY-MM-DD.
func (s Shift) DateKey() string {
	return s.Date.Format("2006-01-02")
}
