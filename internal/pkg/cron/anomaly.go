package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/sse"
)

// EventReport is the SSE event name carrying a live AnomalyReport.
const EventReport = "report"

type AnomalyJobs struct {
	anomalyService anomaly.AnomalyService
	hub            *sse.Hub
	interval       time.Duration
}

func NewAnomalyJobs(anomalyService anomaly.AnomalyService, hub *sse.Hub, interval time.Duration) *AnomalyJobs {
	return &AnomalyJobs{
		anomalyService: anomalyService,
		hub:            hub,
		interval:       interval,
	}
}

func (j *AnomalyJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob(Job{
		Name:     "publish_live_anomalies",
		Interval: j.interval,
		Timeout:  j.interval,
		Fn:       j.PublishLiveReport,
	})
}

// PublishLiveReport computes the report of the current work day and pushes it
// to dashboard subscribers. Nothing is computed while nobody listens.
func (j *AnomalyJobs) PublishLiveReport(ctx context.Context) error {
	if j.hub.SubscriberCount(sse.TopicDashboard) == 0 {
		return nil
	}

	report, err := j.anomalyService.GetReport(ctx, anomaly.ReportFilter{})
	if err != nil {
		return fmt.Errorf("failed to compute live report: %w", err)
	}

	delivered := j.hub.Publish(sse.TopicDashboard, sse.Event{Event: EventReport, Data: report})
	slog.Debug("Cron: live anomaly report published",
		"work_day", report.PeriodStart,
		"has_anomalies", report.HasAnomalies,
		"degraded", report.Degraded,
		"delivered", delivered,
	)
	return nil
}
