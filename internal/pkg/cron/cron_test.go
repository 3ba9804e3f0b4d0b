package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnomalyService struct {
	anomaly.AnomalyService
	calls  atomic.Int32
	err    error
	report *anomaly.AnomalyReport
}

func (f *fakeAnomalyService) GetReport(ctx context.Context, filter anomaly.ReportFilter) (*anomaly.AnomalyReport, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func TestPublishLiveReport_NoSubscribers(t *testing.T) {
	// Setup
	svc := &fakeAnomalyService{report: &anomaly.AnomalyReport{}}
	jobs := NewAnomalyJobs(svc, sse.NewHub(), time.Minute)

	// Act
	err := jobs.PublishLiveReport(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int32(0), svc.calls.Load())
}

func TestPublishLiveReport_Delivers(t *testing.T) {
	// Setup
	report := &anomaly.AnomalyReport{PeriodStart: "2025-03-14", HasAnomalies: true}
	svc := &fakeAnomalyService{report: report}
	hub := sse.NewHub()
	events, cleanup := hub.Subscribe(sse.TopicDashboard)
	defer cleanup()
	jobs := NewAnomalyJobs(svc, hub, time.Minute)

	// Act
	err := jobs.PublishLiveReport(context.Background())

	// Assert
	require.NoError(t, err)
	select {
	case ev := <-events:
		assert.Equal(t, EventReport, ev.Event)
		assert.Same(t, report, ev.Data)
		assert.NotEmpty(t, ev.ID)
	default:
		t.Fatal("expected a report event")
	}
}

func TestPublishLiveReport_ServiceError(t *testing.T) {
	svc := &fakeAnomalyService{err: errors.New("db down")}
	hub := sse.NewHub()
	_, cleanup := hub.Subscribe(sse.TopicDashboard)
	defer cleanup()

	err := NewAnomalyJobs(svc, hub, time.Minute).PublishLiveReport(context.Background())

	assert.ErrorContains(t, err, "db down")
}

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	// Setup
	var runs atomic.Int32
	s := NewScheduler()
	s.AddJob(Job{Name: "count", Interval: time.Hour, Fn: func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}})

	// Act
	s.Start(context.Background())
	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	// Assert
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_RunOnceRecoversPanic(t *testing.T) {
	s := NewScheduler()
	var after bool
	s.AddJob(Job{Name: "boom", Interval: time.Hour, Fn: func(ctx context.Context) error {
		panic("unexpected")
	}})
	s.AddJob(Job{Name: "after", Interval: time.Hour, Fn: func(ctx context.Context) error {
		after = true
		return nil
	}})

	err := s.RunOnce(context.Background())

	assert.ErrorContains(t, err, "boom: panic: unexpected")
	assert.True(t, after)
}

func TestScheduler_JobTimeout(t *testing.T) {
	s := NewScheduler()
	s.AddJob(Job{Name: "slow", Interval: time.Hour, Timeout: 10 * time.Millisecond, Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	err := s.RunOnce(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
