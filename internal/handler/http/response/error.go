package response

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/domain/auth"
	"github.com/resto-planning/pointage-backend-go/internal/domain/employee"
	"github.com/resto-planning/pointage-backend-go/internal/domain/shift"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, auth.ErrManagerAccessRequired):
		Forbidden(w, "Manager access required")
	case errors.Is(err, auth.ErrEmployeeAccessDenied):
		Forbidden(w, "You can only view your own attendance")

	// Request
	case errors.Is(err, anomaly.ErrInvalidPeriod),
		errors.Is(err, anomaly.ErrPeriodTooLong),
		errors.Is(err, anomaly.ErrInvalidEmployee):
		BadRequest(w, err.Error(), nil)

	// Lookups
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, shift.ErrShiftNotFound):
		NotFound(w, "Shift not found")

	// Storage unreachable after retries, or client gone
	case errors.Is(err, context.DeadlineExceeded):
		ServiceUnavailable(w, "Attendance data is temporarily unavailable")
	case errors.Is(err, context.Canceled):
		return

	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
