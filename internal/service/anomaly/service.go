package anomaly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/maypok86/otter/v2"
	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/domain/employee"
	"github.com/resto-planning/pointage-backend-go/internal/domain/pointage"
	"github.com/resto-planning/pointage-backend-go/internal/domain/shift"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCacheSize     = 1_000
	defaultCacheTTL      = 10 * time.Minute
	defaultRetryAttempts = 3
	defaultRetryDelay    = 200 * time.Millisecond
	maxRetryDelay        = 5 * time.Second
)

type AnomalyServiceImpl struct {
	shift.ShiftRepository
	pointage.PointageRepository
	employee.EmployeeRepository

	rules         Rules
	now           func() time.Time
	cache         *otter.Cache[string, *anomaly.AnomalyReport]
	retryAttempts uint
	retryDelay    time.Duration
	readTx        ReadTx
}

// ReadTx runs fn inside one read-only transaction. Repositories called with
// the context handed to fn read from that transaction.
type ReadTx func(ctx context.Context, fn func(ctx context.Context) error) error

type Option func(*AnomalyServiceImpl)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *AnomalyServiceImpl) {
		s.now = now
	}
}

// WithReportCache sizes the cache of reports over past periods. A zero ttl
// disables caching.
func WithReportCache(size int, ttl time.Duration) Option {
	return func(s *AnomalyServiceImpl) {
		if ttl <= 0 {
			s.cache = nil
			return
		}
		s.cache = newReportCache(size, ttl)
	}
}

func WithRetry(attempts uint, delay time.Duration) Option {
	return func(s *AnomalyServiceImpl) {
		s.retryAttempts = max(attempts, 1)
		s.retryDelay = delay
	}
}

// WithReadTx makes report snapshots read shifts, pointages and roster in one
// transaction. Without it the three reads run one after another on the pool.
func WithReadTx(readTx ReadTx) Option {
	return func(s *AnomalyServiceImpl) {
		s.readTx = readTx
	}
}

func NewAnomalyService(
	shiftRepo shift.ShiftRepository,
	pointageRepo pointage.PointageRepository,
	employeeRepo employee.EmployeeRepository,
	rules Rules,
	opts ...Option,
) anomaly.AnomalyService {
	s := &AnomalyServiceImpl{
		ShiftRepository:    shiftRepo,
		PointageRepository: pointageRepo,
		EmployeeRepository: employeeRepo,
		rules:              rules,
		now:                time.Now,
		cache:              newReportCache(defaultCacheSize, defaultCacheTTL),
		retryAttempts:      defaultRetryAttempts,
		retryDelay:         defaultRetryDelay,
		readTx:             runDirect,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newReportCache(size int, ttl time.Duration) *otter.Cache[string, *anomaly.AnomalyReport] {
	return otter.Must(&otter.Options[string, *anomaly.AnomalyReport]{
		MaximumSize:      max(size, 1),
		ExpiryCalculator: otter.ExpiryWriting[string, *anomaly.AnomalyReport](ttl),
	})
}

// currentWorkDay is the work day "now" falls in, in the configured location.
func (s *AnomalyServiceImpl) currentWorkDay() WorkDay {
	return ResolveWorkDay(s.now().In(s.rules.location()), s.rules.CutoffHour)
}

// GetReport aggregates anomalies over a period of work days. Empty dates
// default to the current work day.
func (s *AnomalyServiceImpl) GetReport(ctx context.Context, filter anomaly.ReportFilter) (*anomaly.AnomalyReport, error) {
	now := s.now()
	today := s.currentWorkDay().Key()
	switch {
	case filter.StartDate == "" && filter.EndDate == "":
		filter.StartDate, filter.EndDate = today, today
	case filter.StartDate == "":
		filter.StartDate = filter.EndDate
	case filter.EndDate == "":
		filter.EndDate = filter.StartDate
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	start, end := filter.Period()
	loc := s.rules.location()
	first := WorkDayOf(start, s.rules.CutoffHour, loc)
	last := WorkDayOf(end, s.rules.CutoffHour, loc)

	// Past periods cannot change any more, live ones move with the clock.
	cacheKey := first.Key() + "/" + last.Key()
	historical := !now.Before(last.End)
	if historical && s.cache != nil {
		if report, ok := s.cache.GetIfPresent(cacheKey); ok {
			return report, nil
		}
	}

	snap, err := s.loadSnapshot(ctx, first, last)
	if err != nil {
		return nil, err
	}

	report, err := Aggregate(snap, s.rules, now)
	if err != nil {
		if IsContractViolation(err) {
			slog.Error("Anomaly aggregation rejected its input", "period_start", first.Key(), "period_end", last.Key(), "error", err)
		}
		return nil, fmt.Errorf("failed to aggregate anomalies: %w", err)
	}
	if report.Degraded {
		slog.Warn("Anomaly report degraded", "period_start", report.PeriodStart, "period_end", report.PeriodEnd, "data_incomplete", report.DataIncomplete)
	}

	if historical && s.cache != nil {
		s.cache.Set(cacheKey, report)
	}
	return report, nil
}

func runDirect(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// loadSnapshot reads shifts, pointages and roster inside one read transaction
// so the aggregation never compares shifts and pointages from different
// moments. The reads run sequentially since a transaction serves one query at
// a time. A failed read aborts the transaction, so retries replay all of it.
func (s *AnomalyServiceImpl) loadSnapshot(ctx context.Context, first, last WorkDay) (Snapshot, error) {
	snap, err := withRetry(ctx, s, "snapshot", func(ctx context.Context) (Snapshot, error) {
		snap := Snapshot{
			PeriodStart: first.Start,
			PeriodEnd:   last.Start,
			Incomplete:  map[int64]error{},
		}
		err := s.readTx(ctx, func(ctx context.Context) error {
			shifts, err := s.ShiftRepository.ListByPeriod(ctx, first.Start, last.Start)
			if err != nil {
				return fmt.Errorf("failed to load shifts: %w", err)
			}
			// Pointages are grouped by their own work day, so the window has to
			// reach the end of the last work day to see after-midnight departures.
			pointages, err := s.PointageRepository.ListBetween(ctx, first.Start, last.End)
			if err != nil {
				return fmt.Errorf("failed to load pointages: %w", err)
			}
			roster, err := s.EmployeeRepository.ListActive(ctx)
			if err != nil {
				return fmt.Errorf("failed to load roster: %w", err)
			}
			snap.Shifts, snap.Pointages, snap.Employees = shifts, pointages, roster
			return nil
		})
		return snap, err
	})
	if err != nil {
		return Snapshot{}, err
	}

	s.resolveMissingEmployees(ctx, &snap)
	return snap, nil
}

// resolveMissingEmployees looks up employees referenced by shifts or pointages
// but absent from the active roster (left since, or deactivated). Whoever
// still cannot be found is marked incomplete instead of failing the report.
func (s *AnomalyServiceImpl) resolveMissingEmployees(ctx context.Context, snap *Snapshot) {
	known := make(map[int64]bool, len(snap.Employees))
	for _, e := range snap.Employees {
		known[e.ID] = true
	}

	var missing []int64
	note := func(id int64) {
		if !known[id] && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	for _, sh := range snap.Shifts {
		if sh.EmployeeID != nil {
			note(*sh.EmployeeID)
		}
	}
	for _, p := range snap.Pointages {
		note(p.EmployeeID)
	}
	if len(missing) == 0 {
		return
	}
	slices.Sort(missing)

	found, err := withRetry(ctx, s, "employees", func(ctx context.Context) ([]employee.Employee, error) {
		return s.EmployeeRepository.GetByIDs(ctx, missing)
	})
	if err != nil {
		slog.Warn("Failed to resolve employees outside the roster", "employee_ids", missing, "error", err)
		for _, id := range missing {
			snap.Incomplete[id] = fmt.Errorf("%w: %w", anomaly.ErrMissingEmployeeData, err)
		}
		return
	}

	for _, e := range found {
		known[e.ID] = true
		snap.Employees = append(snap.Employees, e)
	}
	for _, id := range missing {
		if !known[id] {
			snap.Incomplete[id] = fmt.Errorf("%w: employee %d: %w", anomaly.ErrMissingEmployeeData, id, employee.ErrEmployeeNotFound)
		}
	}
}

// GetEmployeeDay reconciles one employee over one work day.
func (s *AnomalyServiceImpl) GetEmployeeDay(ctx context.Context, filter anomaly.EmployeeDayFilter) (*anomaly.EmployeeDayResponse, error) {
	if filter.Date == "" {
		filter.Date = s.currentWorkDay().Key()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	date, _ := time.Parse("2006-01-02", filter.Date)
	workDay := WorkDayOf(date, s.rules.CutoffHour, s.rules.location())

	var (
		shifts    []shift.Shift
		pointages []pointage.Pointage
	)

	// Unlike report snapshots, these reads run concurrently on the pool.
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := withRetry(gCtx, s, "employee", func(ctx context.Context) (employee.Employee, error) {
			return s.EmployeeRepository.GetByID(ctx, filter.EmployeeID)
		})
		return err
	})
	g.Go(func() error {
		var err error
		shifts, err = withRetry(gCtx, s, "shifts", func(ctx context.Context) ([]shift.Shift, error) {
			return s.ShiftRepository.ListByEmployee(ctx, filter.EmployeeID, date, date)
		})
		if err != nil {
			return fmt.Errorf("failed to load shifts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		pointages, err = withRetry(gCtx, s, "pointages", func(ctx context.Context) ([]pointage.Pointage, error) {
			return s.PointageRepository.ListByEmployeeBetween(ctx, filter.EmployeeID, workDay.Start, workDay.End)
		})
		if err != nil {
			return fmt.Errorf("failed to load pointages: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	day := ReconcileDay(filter.EmployeeID, workDay, shifts, pointages, s.rules, s.now())

	details := make([]anomaly.ShiftDetail, 0, len(shifts))
	for _, sh := range shifts {
		details = append(details, shiftDetail(sh, ClassifyWithGap(sh.Segments, s.rules.SplitGapMinutes)))
	}

	return &anomaly.EmployeeDayResponse{
		EmployeeID:      filter.EmployeeID,
		WorkDay:         workDay.Key(),
		WorkDayStart:    workDay.Start,
		WorkDayEnd:      workDay.End,
		Deviations:      day.Deviations,
		Informational:   day.Informational,
		Blocks:          day.Blocks,
		OpenSince:       day.OpenSince,
		Shifts:          details,
		InvalidShiftIDs: day.InvalidShiftIDs,
	}, nil
}

// GetShiftOverview lists one employee's classified shifts with conflicts and double shifts.
func (s *AnomalyServiceImpl) GetShiftOverview(ctx context.Context, filter anomaly.ShiftOverviewFilter) (*anomaly.ShiftOverviewResponse, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	start, _ := time.Parse("2006-01-02", filter.StartDate)
	end, _ := time.Parse("2006-01-02", filter.EndDate)

	if _, err := withRetry(ctx, s, "employee", func(ctx context.Context) (employee.Employee, error) {
		return s.EmployeeRepository.GetByID(ctx, filter.EmployeeID)
	}); err != nil {
		return nil, err
	}

	shifts, err := withRetry(ctx, s, "shifts", func(ctx context.Context) ([]shift.Shift, error) {
		return s.ShiftRepository.ListByEmployee(ctx, filter.EmployeeID, start, end)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load shifts: %w", err)
	}

	resp := &anomaly.ShiftOverviewResponse{
		EmployeeID: filter.EmployeeID,
		StartDate:  filter.StartDate,
		EndDate:    filter.EndDate,
		Shifts:     make([]anomaly.ShiftDetail, 0, len(shifts)),
	}
	for _, sh := range shifts {
		c := ClassifyWithGap(sh.Segments, s.rules.SplitGapMinutes)
		resp.Shifts = append(resp.Shifts, shiftDetail(sh, c))
		if !c.InvalidSegments {
			resp.NetMinutes += c.NetMinutes
		}
	}

	detection := Detect(shifts, s.rules.SplitGapMinutes)
	resp.Conflicts = detection.Conflicts
	resp.Merged = detection.Merged
	return resp, nil
}

// ExportReportPDF renders the same report GetReport would return.
func (s *AnomalyServiceImpl) ExportReportPDF(ctx context.Context, filter anomaly.ReportFilter) ([]byte, error) {
	report, err := s.GetReport(ctx, filter)
	if err != nil {
		return nil, err
	}
	return RenderReportPDF(report, s.rules.location())
}

func shiftDetail(sh shift.Shift, c Classification) anomaly.ShiftDetail {
	return anomaly.ShiftDetail{
		ShiftRef:        shiftRef(sh, c),
		Slot:            c.Slot,
		NetMinutes:      c.NetMinutes,
		BreakMinutes:    c.BreakMinutes,
		HasGap:          c.HasGap,
		InvalidSegments: c.InvalidSegments,
	}
}

// withRetry retries transient read failures. Not-found and cancellation are final.
func withRetry[T any](ctx context.Context, s *AnomalyServiceImpl, what string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := retry.Do(
		func() error {
			v, err := fn(ctx)
			if err != nil {
				if isPermanent(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			result = v
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.retryAttempts),
		retry.Delay(s.retryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying snapshot read", "source", what, "attempt", n+1, "error", err)
		}),
	)
	return result, err
}

func isPermanent(err error) bool {
	return errors.Is(err, employee.ErrEmployeeNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
