package anomaly

import "context"

// AnomalyService serves reconciliation results to the dashboard.
type AnomalyService interface {
	// GetReport runs the aggregation over every employee for a period of work days.
	GetReport(ctx context.Context, filter ReportFilter) (*AnomalyReport, error)

	// GetEmployeeDay reconciles one employee over one work day.
	GetEmployeeDay(ctx context.Context, filter EmployeeDayFilter) (*EmployeeDayResponse, error)

	// GetShiftOverview returns classified shifts, conflicts and double shifts of one employee.
	GetShiftOverview(ctx context.Context, filter ShiftOverviewFilter) (*ShiftOverviewResponse, error)

	// ExportReportPDF renders GetReport as a printable document.
	ExportReportPDF(ctx context.Context, filter ReportFilter) ([]byte, error)
}
