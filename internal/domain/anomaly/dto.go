package anomaly

import (
	"time"

	"github.com/resto-planning/pointage-backend-go/internal/pkg/validator"
)

// ========================================
// REQUEST FILTERS
// ========================================

// ReportFilter selects the work days of a report. Both dates are work day keys (YYYY-MM-DD).
type ReportFilter struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (f *ReportFilter) Validate() error {
	var errs validator.ValidationErrors
	start, end, ok := validatePeriod(f.StartDate, f.EndDate, &errs)
	if len(errs) > 0 {
		return errs
	}
	if ok && end.Before(start) {
		return ErrInvalidPeriod
	}
	if ok && end.Sub(start) > 30*24*time.Hour {
		return ErrPeriodTooLong
	}
	return nil
}

// Period returns the parsed bounds. Call Validate first.
func (f ReportFilter) Period() (time.Time, time.Time) {
	start, _ := validator.IsValidDate(f.StartDate)
	end, _ := validator.IsValidDate(f.EndDate)
	return start, end
}

type EmployeeDayFilter struct {
	EmployeeID int64  `json:"employee_id"`
	Date       string `json:"date"` // work day key, YYYY-MM-DD
}

func (f *EmployeeDayFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.EmployeeID <= 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id must be a positive number",
		})
	}
	if _, ok := validator.IsValidDate(f.Date); !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "date",
			Message: "date must use YYYY-MM-DD",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ShiftOverviewFilter struct {
	EmployeeID int64  `json:"employee_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

func (f *ShiftOverviewFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.EmployeeID <= 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "employee_id",
			Message: "employee_id must be a positive number",
		})
	}
	start, end, ok := validatePeriod(f.StartDate, f.EndDate, &errs)
	if len(errs) > 0 {
		return errs
	}
	if ok && end.Before(start) {
		return ErrInvalidPeriod
	}
	if ok && end.Sub(start) > 30*24*time.Hour {
		return ErrPeriodTooLong
	}
	return nil
}

func validatePeriod(startDate, endDate string, errs *validator.ValidationErrors) (time.Time, time.Time, bool) {
	start, startOK := validator.IsValidDate(startDate)
	if !startOK {
		*errs = append(*errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date must use YYYY-MM-DD",
		})
	}
	end, endOK := validator.IsValidDate(endDate)
	if !endOK {
		*errs = append(*errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date must use YYYY-MM-DD",
		})
	}
	return start, end, startOK && endOK
}

// ========================================
// RECONCILIATION OUTPUT
// ========================================

// Deviation is one finding comparing planned and actual attendance.
type Deviation struct {
	Type         DeviationType `json:"type"`
	DeltaMinutes int           `json:"delta_minutes"`
	Severity     Severity      `json:"severity"`
	Message      string        `json:"message"`
	EmployeeID   int64         `json:"employee_id"`
	ShiftID      *int64        `json:"shift_id,omitempty"`
	WorkDay      string        `json:"work_day"`
	PlannedAt    *time.Time    `json:"planned_at,omitempty"`
	ActualAt     *time.Time    `json:"actual_at,omitempty"`
}

// WorkBlock is a completed arrival/departure pair.
type WorkBlock struct {
	Arrival   time.Time `json:"arrival"`
	Departure time.Time `json:"departure"`
	Minutes   int       `json:"minutes"`
}

// TimeWindow is a planned window in wall-clock HH:MM.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ShiftRef identifies a shift and its effective window.
type ShiftRef struct {
	ShiftID    int64      `json:"shift_id"`
	EmployeeID *int64     `json:"employee_id,omitempty"`
	Date       string     `json:"date"`
	Label      string     `json:"label,omitempty"`
	Window     TimeWindow `json:"window"`
}

type ShiftConflict struct {
	EmployeeID     int64    `json:"employee_id"`
	Date           string   `json:"date"`
	First          ShiftRef `json:"first"`
	Second         ShiftRef `json:"second"`
	OverlapMinutes int      `json:"overlap_minutes"`
}

// MergedShift is a read-time grouping of non-overlapping shifts of one employee on one date.
type MergedShift struct {
	EmployeeID int64        `json:"employee_id"`
	Date       string       `json:"date"`
	ShiftIDs   []int64      `json:"shift_ids"`
	NetMinutes int          `json:"net_minutes"`
	MealCount  int          `json:"meal_count"`
	Windows    []TimeWindow `json:"windows"`
}

type Replacement struct {
	Shift             ShiftRef          `json:"shift"`
	Reason            ReplacementReason `json:"reason"`
	Urgency           Urgency           `json:"urgency"`
	PlannedStart      time.Time         `json:"planned_start"`
	MinutesUntilStart int               `json:"minutes_until_start"`
}

type OpenSession struct {
	EmployeeID int64     `json:"employee_id"`
	WorkDay    string    `json:"work_day"`
	Since      time.Time `json:"since"`
}

type AnomalyEntry struct {
	EmployeeName string `json:"employee_name"`
	Deviation
}

type AnomalyBuckets struct {
	AbsencesNonPlanifiees []AnomalyEntry `json:"absencesNonPlanifiees"`
	Retards               []AnomalyEntry `json:"retards"`
	HorsPlage             []AnomalyEntry `json:"horsPlage"`
	DepartsAnticipes      []AnomalyEntry `json:"departsAnticipes"`
	NonAssignes           []ShiftRef     `json:"nonAssignes"`
}

// AnomalyReport is the full-roster aggregation over a period of work days.
type AnomalyReport struct {
	PeriodStart    string                `json:"period_start"`
	PeriodEnd      string                `json:"period_end"`
	CutoffHour     int                   `json:"cutoff_hour"`
	ComputedAt     time.Time             `json:"computed_at"`
	HasAnomalies   bool                  `json:"has_anomalies"`
	Degraded       bool                  `json:"degraded"`
	Counts         map[DeviationType]int `json:"counts"`
	Buckets        AnomalyBuckets        `json:"buckets"`
	Overtime       []AnomalyEntry        `json:"overtime"`
	Conflicts      []ShiftConflict       `json:"conflicts"`
	Merged         []MergedShift         `json:"merged"`
	Replacements   []Replacement         `json:"replacements"`
	OpenSessions   []OpenSession         `json:"open_sessions"`
	InvalidShifts  []int64               `json:"invalid_shifts"`
	DataIncomplete []int64               `json:"data_incomplete"`
}

// ========================================
// EMPLOYEE VIEWS
// ========================================

type EmployeeDayResponse struct {
	EmployeeID      int64         `json:"employee_id"`
	WorkDay         string        `json:"work_day"`
	WorkDayStart    time.Time     `json:"work_day_start"`
	WorkDayEnd      time.Time     `json:"work_day_end"`
	Deviations      []Deviation   `json:"deviations"`
	Informational   []Deviation   `json:"informational"`
	Blocks          []WorkBlock   `json:"blocks"`
	OpenSince       *time.Time    `json:"open_since,omitempty"`
	Shifts          []ShiftDetail `json:"shifts"`
	InvalidShiftIDs []int64       `json:"invalid_shift_ids"`
}

// ShiftDetail is a shift annotated by the segment classifier.
type ShiftDetail struct {
	ShiftRef
	Slot            Slot `json:"slot"`
	NetMinutes      int  `json:"net_minutes"`
	BreakMinutes    int  `json:"break_minutes"`
	HasGap          bool `json:"has_gap"`
	InvalidSegments bool `json:"invalid_segments"`
}

type ShiftOverviewResponse struct {
	EmployeeID int64           `json:"employee_id"`
	StartDate  string          `json:"start_date"`
	EndDate    string          `json:"end_date"`
	Shifts     []ShiftDetail   `json:"shifts"`
	Conflicts  []ShiftConflict `json:"conflicts"`
	Merged     []MergedShift   `json:"merged"`
	NetMinutes int             `json:"net_minutes"`
}
