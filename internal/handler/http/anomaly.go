package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/domain/auth"
	"github.com/resto-planning/pointage-backend-go/internal/handler/http/middleware"
	"github.com/resto-planning/pointage-backend-go/internal/handler/http/response"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/jwt"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/sse"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/validator"
)

type AnomalyHandler interface {
	// GetReport returns the anomaly report of a period of work days
	GetReport(w http.ResponseWriter, r *http.Request)
	// ExportReportPDF returns the same report as a PDF document
	ExportReportPDF(w http.ResponseWriter, r *http.Request)
	// Stream pushes live reports over server-sent events
	Stream(w http.ResponseWriter, r *http.Request)
	// GetEmployeeDeviations returns the reconciliation of one employee's work day
	GetEmployeeDeviations(w http.ResponseWriter, r *http.Request)
	// GetShiftOverview returns classified shifts and double shifts of one employee
	GetShiftOverview(w http.ResponseWriter, r *http.Request)
}

type anomalyHandlerImpl struct {
	anomalyService anomaly.AnomalyService
	jwtService     jwt.Service
	hub            *sse.Hub
	keepalive      time.Duration
}

func NewAnomalyHandler(anomalyService anomaly.AnomalyService, jwtService jwt.Service, hub *sse.Hub) AnomalyHandler {
	return &anomalyHandlerImpl{
		anomalyService: anomalyService,
		jwtService:     jwtService,
		hub:            hub,
		keepalive:      30 * time.Second,
	}
}

// GetReport handles GET /anomalies
func (h *anomalyHandlerImpl) GetReport(w http.ResponseWriter, r *http.Request) {
	filter := anomaly.ReportFilter{
		StartDate: r.URL.Query().Get("start"),
		EndDate:   r.URL.Query().Get("end"),
	}

	report, err := h.anomalyService.GetReport(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if report.Degraded {
		response.SuccessWithMessage(w, "Some employees could not be fully loaded", report)
		return
	}
	response.Success(w, report)
}

// ExportReportPDF handles GET /anomalies/export.pdf
func (h *anomalyHandlerImpl) ExportReportPDF(w http.ResponseWriter, r *http.Request) {
	filter := anomaly.ReportFilter{
		StartDate: r.URL.Query().Get("start"),
		EndDate:   r.URL.Query().Get("end"),
	}

	doc, err := h.anomalyService.ExportReportPDF(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	name := "anomalies"
	if filter.StartDate != "" {
		name += "-" + filter.StartDate
	}
	response.File(w, "application/pdf", name+".pdf", doc)
}

// Stream handles GET /anomalies/stream
func (h *anomalyHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// EventSource cannot send headers, the token comes in the query string
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		response.HandleError(w, auth.ErrInvalidToken)
		return
	}

	principal, err := h.jwtService.ValidateStreamToken(tokenStr)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if !principal.IsManager() {
		response.HandleError(w, auth.ErrManagerAccessRequired)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(sse.TopicDashboard)
	defer cleanup()
	slog.Info("Dashboard stream opened", "user_id", principal.UserID, "subscribers", h.hub.TotalSubscribers())

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"user_id\":%q}\n\n", principal.UserID)
	flusher.Flush()

	// Send the current state so the dashboard does not wait for the next tick.
	if report, err := h.anomalyService.GetReport(r.Context(), anomaly.ReportFilter{}); err == nil {
		writeEvent(w, sse.Event{Event: "report", Data: report})
		flusher.Flush()
	} else {
		slog.Warn("Failed to compute initial report for stream", "user_id", principal.UserID, "error", err)
	}

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, event)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event sse.Event) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		slog.Error("Failed to encode stream event", "event", event.Event, "error", err)
		return
	}
	if event.ID != "" {
		fmt.Fprintf(w, "id: %s\n", event.ID)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
}

// GetEmployeeDeviations handles GET /employees/{employeeID}/deviations
func (h *anomalyHandlerImpl) GetEmployeeDeviations(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.authorizedEmployee(w, r)
	if !ok {
		return
	}

	filter := anomaly.EmployeeDayFilter{
		EmployeeID: employeeID,
		Date:       r.URL.Query().Get("date"),
	}

	result, err := h.anomalyService.GetEmployeeDay(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// GetShiftOverview handles GET /employees/{employeeID}/shifts/overview
func (h *anomalyHandlerImpl) GetShiftOverview(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.authorizedEmployee(w, r)
	if !ok {
		return
	}

	filter := anomaly.ShiftOverviewFilter{
		EmployeeID: employeeID,
		StartDate:  r.URL.Query().Get("start"),
		EndDate:    r.URL.Query().Get("end"),
	}

	result, err := h.anomalyService.GetShiftOverview(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// authorizedEmployee parses the employeeID URL param and checks the caller may read it.
func (h *anomalyHandlerImpl) authorizedEmployee(w http.ResponseWriter, r *http.Request) (int64, bool) {
	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil || employeeID <= 0 {
		response.HandleError(w, validator.ValidationErrors{{
			Field:   "employee_id",
			Message: "employee_id must be a positive number",
		}})
		return 0, false
	}

	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		response.HandleError(w, auth.ErrInvalidToken)
		return 0, false
	}
	if !principal.CanSee(employeeID) {
		response.HandleError(w, auth.ErrEmployeeAccessDenied)
		return 0, false
	}
	return employeeID, true
}
