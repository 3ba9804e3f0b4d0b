package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/resto-planning/pointage-backend-go/internal/domain/shift"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/database"
)

type shiftRepositoryImpl struct {
	db *database.DB
}

func NewShiftRepository(db *database.DB) shift.ShiftRepository {
	return &shiftRepositoryImpl{db: db}
}

// Segment kinds are stored as typed by the planning tool, French labels included.
const shiftSelect = `
	SELECT s.id, s.employee_id, s.shift_date, COALESCE(s.label, ''), s.needs_replacement,
		s.created_at, s.updated_at,
		seg.start_time, seg.end_time,
		CASE lower(seg.kind)
			WHEN 'travail' THEN 'work'
			WHEN 'pause' THEN 'break'
			ELSE lower(seg.kind)
		END
	FROM shifts s
	LEFT JOIN shift_segments seg ON seg.shift_id = s.id
`

// ListByPeriod implements shift.ShiftRepository.
func (r *shiftRepositoryImpl) ListByPeriod(ctx context.Context, from, to time.Time) ([]shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	query := shiftSelect + `
		WHERE s.shift_date BETWEEN $1 AND $2 AND s.deleted_at IS NULL
		ORDER BY s.shift_date, s.id, seg.position
	`

	rows, err := q.Query(ctx, query, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return scanShifts(rows)
}

// ListByEmployee implements shift.ShiftRepository.
func (r *shiftRepositoryImpl) ListByEmployee(ctx context.Context, employeeID int64, from, to time.Time) ([]shift.Shift, error) {
	q := GetQuerier(ctx, r.db)

	query := shiftSelect + `
		WHERE s.employee_id = $1 AND s.shift_date BETWEEN $2 AND $3 AND s.deleted_at IS NULL
		ORDER BY s.shift_date, s.id, seg.position
	`

	rows, err := q.Query(ctx, query, employeeID, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts for employee %d: %w", employeeID, err)
	}
	return scanShifts(rows)
}

// scanShifts folds the one-row-per-segment join back into shifts. Rows must be
// ordered by shift.
func scanShifts(rows pgx.Rows) ([]shift.Shift, error) {
	defer rows.Close()

	shifts := []shift.Shift{}
	for rows.Next() {
		var (
			s                shift.Shift
			start, end, kind *string
		)
		err := rows.Scan(
			&s.ID, &s.EmployeeID, &s.Date, &s.Label, &s.NeedsReplacement,
			&s.CreatedAt, &s.UpdatedAt,
			&start, &end, &kind,
		)
		if err != nil {
			return nil, err
		}

		if n := len(shifts); n == 0 || shifts[n-1].ID != s.ID {
			s.Segments = []shift.Segment{}
			shifts = append(shifts, s)
		}
		if start == nil || end == nil || kind == nil {
			continue
		}
		current := &shifts[len(shifts)-1]
		current.Segments = append(current.Segments, shift.Segment{
			Start: *start,
			End:   *end,
			Kind:  shift.SegmentKind(*kind),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shifts, nil
}

func dateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}
