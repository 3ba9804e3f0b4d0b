package anomaly

import "errors"

var (
	// Caller contract violations, these abort the call.
	ErrInvalidCutoffHour = errors.New("cutoff hour must be between 0 and 23")
	ErrUnknownEmployee   = errors.New("pointage supplied for an employee missing from the roster")
	ErrInvalidRules      = errors.New("invalid reconciliation rules")

	// Degradations, reported inside the AnomalyReport rather than returned.
	ErrMissingEmployeeData = errors.New("employee data could not be resolved")

	// Request errors
	ErrInvalidPeriod   = errors.New("end date must not be before start date")
	ErrPeriodTooLong   = errors.New("period must not exceed 31 days")
	ErrInvalidEmployee = errors.New("invalid employee ID")
)
