package pointage

import (
	"context"
	"time"
)

type PointageRepository interface {
	// ListBetween returns every clock event with from <= timestamp < to, ordered by timestamp.
	ListBetween(ctx context.Context, from, to time.Time) ([]Pointage, error)

	// ListByEmployeeBetween is ListBetween restricted to one employee.
	ListByEmployeeBetween(ctx context.Context, employeeID int64, from, to time.Time) ([]Pointage, error)
}
