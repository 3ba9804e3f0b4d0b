package employee

import "context"

type EmployeeRepository interface {
	// ListActive returns the current roster ordered by ID.
	ListActive(ctx context.Context) ([]Employee, error)

	// GetByIDs returns the employees found among ids. Missing IDs are simply
	// absent from the result.
	GetByIDs(ctx context.Context, ids []int64) ([]Employee, error)

	GetByID(ctx context.Context, id int64) (Employee, error)
}
