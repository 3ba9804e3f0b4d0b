package pointage

import "time"

type Kind string

const (
	KindArrival   Kind = "arrival"
	KindDeparture Kind = "departure"
)

// Pointage is one clock event from the time clock. Immutable once recorded.
type Pointage struct {
	ID         int64
	EmployeeID int64
	Timestamp  time.Time
	Kind       Kind
}
