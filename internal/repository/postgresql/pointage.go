package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/resto-planning/pointage-backend-go/internal/domain/pointage"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/database"
)

type pointageRepositoryImpl struct {
	db *database.DB
}

func NewPointageRepository(db *database.DB) pointage.PointageRepository {
	return &pointageRepositoryImpl{db: db}
}

const pointageSelect = `
	SELECT id, employee_id, recorded_at,
		CASE lower(kind)
			WHEN 'entree' THEN 'arrival'
			WHEN 'sortie' THEN 'departure'
			ELSE lower(kind)
		END
	FROM pointages
`

// ListBetween implements pointage.PointageRepository.
func (r *pointageRepositoryImpl) ListBetween(ctx context.Context, from, to time.Time) ([]pointage.Pointage, error) {
	q := GetQuerier(ctx, r.db)

	query := pointageSelect + `
		WHERE recorded_at >= $1 AND recorded_at < $2
		ORDER BY recorded_at, id
	`

	rows, err := q.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list pointages: %w", err)
	}
	return scanPointages(rows)
}

// ListByEmployeeBetween implements pointage.PointageRepository.
func (r *pointageRepositoryImpl) ListByEmployeeBetween(ctx context.Context, employeeID int64, from, to time.Time) ([]pointage.Pointage, error) {
	q := GetQuerier(ctx, r.db)

	query := pointageSelect + `
		WHERE employee_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at, id
	`

	rows, err := q.Query(ctx, query, employeeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list pointages for employee %d: %w", employeeID, err)
	}
	return scanPointages(rows)
}

func scanPointages(rows pgx.Rows) ([]pointage.Pointage, error) {
	defer rows.Close()

	pointages := []pointage.Pointage{}
	for rows.Next() {
		var p pointage.Pointage
		if err := rows.Scan(&p.ID, &p.EmployeeID, &p.Timestamp, &p.Kind); err != nil {
			return nil, err
		}
		pointages = append(pointages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pointages, nil
}
