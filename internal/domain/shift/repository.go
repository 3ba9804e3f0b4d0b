package shift

import (
	"context"
	"time"
)

// ShiftRepository is the read side of the planning store. Shifts are edited by
// the scheduling collaborator; this service never writes them.
type ShiftRepository interface {
	// ListByPeriod returns every shift whose Date falls in [from, to], segments included,
	// ordered by date then ID.
	ListByPeriod(ctx context.Context, from, to time.Time) ([]Shift, error)

	// ListByEmployee returns the shifts of one employee whose Date falls in [from, to].
	ListByEmployee(ctx context.Context, employeeID int64, from, to time.Time) ([]Shift, error)
}
