package anomaly

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/domain/employee"
	"github.com/resto-planning/pointage-backend-go/internal/domain/pointage"
	"github.com/resto-planning/pointage-backend-go/internal/domain/shift"
	"github.com/resto-planning/pointage-backend-go/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("connection reset by peer")

type snapshotTxKey struct{}

// txOf reports the snapshot transaction a fake read went through, 0 for none.
func txOf(ctx context.Context) int32 {
	n, _ := ctx.Value(snapshotTxKey{}).(int32)
	return n
}

type fakeShiftRepo struct {
	shifts []shift.Shift
	calls  atomic.Int32
	tx     atomic.Int32
}

func (f *fakeShiftRepo) ListByPeriod(ctx context.Context, from, to time.Time) ([]shift.Shift, error) {
	f.calls.Add(1)
	f.tx.Store(txOf(ctx))
	var out []shift.Shift
	for _, s := range f.shifts {
		if s.DateKey() >= from.Format("2006-01-02") && s.DateKey() <= to.Format("2006-01-02") {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeShiftRepo) ListByEmployee(ctx context.Context, employeeID int64, from, to time.Time) ([]shift.Shift, error) {
	all, _ := f.ListByPeriod(ctx, from, to)
	var out []shift.Shift
	for _, s := range all {
		if s.EmployeeID != nil && *s.EmployeeID == employeeID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakePointageRepo struct {
	pointages []pointage.Pointage
	failures  atomic.Int32
	calls     atomic.Int32
	tx        atomic.Int32
}

func (f *fakePointageRepo) ListBetween(ctx context.Context, from, to time.Time) ([]pointage.Pointage, error) {
	f.calls.Add(1)
	f.tx.Store(txOf(ctx))
	if f.failures.Add(-1) >= 0 {
		return nil, errFlaky
	}
	var out []pointage.Pointage
	for _, p := range f.pointages {
		if !p.Timestamp.Before(from) && p.Timestamp.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePointageRepo) ListByEmployeeBetween(ctx context.Context, employeeID int64, from, to time.Time) ([]pointage.Pointage, error) {
	all, err := f.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var out []pointage.Pointage
	for _, p := range all {
		if p.EmployeeID == employeeID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeEmployeeRepo struct {
	active    []employee.Employee
	former    []employee.Employee
	lookupErr error
	getCalls  atomic.Int32
	tx        atomic.Int32
}

func (f *fakeEmployeeRepo) ListActive(ctx context.Context) ([]employee.Employee, error) {
	f.tx.Store(txOf(ctx))
	return f.active, nil
}

func (f *fakeEmployeeRepo) GetByIDs(_ context.Context, ids []int64) ([]employee.Employee, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	var out []employee.Employee
	for _, e := range append(f.active, f.former...) {
		for _, id := range ids {
			if e.ID == id {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (f *fakeEmployeeRepo) GetByID(_ context.Context, id int64) (employee.Employee, error) {
	f.getCalls.Add(1)
	for _, e := range append(f.active, f.former...) {
		if e.ID == id {
			return e, nil
		}
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

type serviceFixture struct {
	shifts    *fakeShiftRepo
	pointages *fakePointageRepo
	employees *fakeEmployeeRepo
	service   anomaly.AnomalyService
}

func newFixture(now time.Time, opts ...Option) *serviceFixture {
	snap := busyDay()
	f := &serviceFixture{
		shifts:    &fakeShiftRepo{shifts: snap.Shifts},
		pointages: &fakePointageRepo{pointages: snap.Pointages},
		employees: &fakeEmployeeRepo{active: snap.Employees},
	}
	opts = append([]Option{WithClock(func() time.Time { return now }), WithRetry(3, time.Millisecond)}, opts...)
	f.service = NewAnomalyService(f.shifts, f.pointages, f.employees, DefaultRules(), opts...)
	return f
}

func TestAnomalyService_GetReport_DefaultsToCurrentWorkDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(15, 2, 0))

	report, err := f.service.GetReport(ctx, anomaly.ReportFilter{})

	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", report.PeriodStart)
	assert.Equal(t, "2025-03-14", report.PeriodEnd)
	assert.Len(t, report.Buckets.Retards, 1)
}

func TestAnomalyService_GetReport_CachesPastPeriods(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(20, 12, 0))
	filter := anomaly.ReportFilter{StartDate: "2025-03-14", EndDate: "2025-03-14"}

	first, err := f.service.GetReport(ctx, filter)
	require.NoError(t, err)
	second, err := f.service.GetReport(ctx, filter)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), f.shifts.calls.Load())
}

func TestAnomalyService_GetReport_LivePeriodIsRecomputed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(14, 17, 0))
	filter := anomaly.ReportFilter{StartDate: "2025-03-14", EndDate: "2025-03-14"}

	_, err := f.service.GetReport(ctx, filter)
	require.NoError(t, err)
	_, err = f.service.GetReport(ctx, filter)
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.shifts.calls.Load())
}

func TestAnomalyService_GetReport_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(14, 17, 0))
	f.pointages.failures.Store(1)

	report, err := f.service.GetReport(ctx, anomaly.ReportFilter{StartDate: "2025-03-14"})

	require.NoError(t, err)
	assert.Equal(t, int32(2), f.pointages.calls.Load())
	assert.Len(t, report.Buckets.HorsPlage, 1)
}

func TestAnomalyService_GetReport_GivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(14, 17, 0))
	f.pointages.failures.Store(10)

	_, err := f.service.GetReport(ctx, anomaly.ReportFilter{StartDate: "2025-03-14"})

	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, int32(3), f.pointages.calls.Load())
}

func TestAnomalyService_GetReport_ReadsOneSnapshotPerAttempt(t *testing.T) {
	ctx := context.Background()
	var txCount atomic.Int32
	readTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(context.WithValue(ctx, snapshotTxKey{}, txCount.Add(1)))
	}
	f := newFixture(at(14, 17, 0), WithReadTx(readTx))
	f.pointages.failures.Store(1)

	report, err := f.service.GetReport(ctx, anomaly.ReportFilter{StartDate: "2025-03-14"})

	require.NoError(t, err)
	assert.Equal(t, int32(2), txCount.Load())
	assert.Equal(t, int32(2), f.shifts.tx.Load())
	assert.Equal(t, int32(2), f.pointages.tx.Load())
	assert.Equal(t, int32(2), f.employees.tx.Load())
	assert.Len(t, report.Buckets.HorsPlage, 1)
}

func TestAnomalyService_GetReport_ResolvesFormerEmployees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(14, 17, 0))
	leaver := int64(3)
	f.employees.former = []employee.Employee{{ID: leaver, FullName: "Chloé Petit"}}
	f.shifts.shifts = append(f.shifts.shifts, newShift(11, leaver, work("09:00", "12:00")))

	report, err := f.service.GetReport(ctx, anomaly.ReportFilter{StartDate: "2025-03-14"})

	require.NoError(t, err)
	assert.False(t, report.Degraded)
	require.Len(t, report.Buckets.AbsencesNonPlanifiees, 1)
	assert.Equal(t, "Chloé Petit", report.Buckets.AbsencesNonPlanifiees[0].EmployeeName)
}

func TestAnomalyService_GetReport_DegradesWhenLookupFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(14, 17, 0))
	f.employees.lookupErr = errors.New("profile service down")
	f.pointages.pointages = append(f.pointages.pointages, clock(3, pointage.KindArrival, at(14, 9, 0)))

	report, err := f.service.GetReport(ctx, anomaly.ReportFilter{StartDate: "2025-03-14"})

	require.NoError(t, err)
	assert.True(t, report.Degraded)
	assert.Equal(t, []int64{3}, report.DataIncomplete)
	assert.Len(t, report.Buckets.Retards, 1)
}

func TestAnomalyService_GetReport_ValidatesFilter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(14, 17, 0))

	_, err := f.service.GetReport(ctx, anomaly.ReportFilter{StartDate: "14/03/2025", EndDate: "2025-03-14"})
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.ToMap(), "start_date")

	_, err = f.service.GetReport(ctx, anomaly.ReportFilter{StartDate: "2025-03-14", EndDate: "2025-03-10"})
	assert.ErrorIs(t, err, anomaly.ErrInvalidPeriod)

	_, err = f.service.GetReport(ctx, anomaly.ReportFilter{StartDate: "2025-01-01", EndDate: "2025-03-10"})
	assert.ErrorIs(t, err, anomaly.ErrPeriodTooLong)
}

func TestAnomalyService_GetEmployeeDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(14, 17, 0))

	day, err := f.service.GetEmployeeDay(ctx, anomaly.EmployeeDayFilter{EmployeeID: alice, Date: "2025-03-14"})

	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", day.WorkDay)
	assert.Equal(t, at(14, 6, 0), day.WorkDayStart)
	require.Len(t, day.Deviations, 1)
	assert.Equal(t, anomaly.DeviationLateArrival, day.Deviations[0].Type)
	require.NotNil(t, day.OpenSince)
	require.Len(t, day.Shifts, 2)
	assert.Equal(t, anomaly.SlotMidday, day.Shifts[0].Slot)
	assert.Equal(t, anomaly.SlotEvening, day.Shifts[1].Slot)
}

func TestAnomalyService_GetEmployeeDay_UnknownEmployeeIsNotRetried(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(14, 17, 0))

	_, err := f.service.GetEmployeeDay(ctx, anomaly.EmployeeDayFilter{EmployeeID: 404, Date: "2025-03-14"})

	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
	assert.Equal(t, int32(1), f.employees.getCalls.Load())
}

func TestAnomalyService_GetShiftOverview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(14, 17, 0))
	f.shifts.shifts = append(f.shifts.shifts, newShift(12, alice, work("16:00", "20:00")))

	overview, err := f.service.GetShiftOverview(ctx, anomaly.ShiftOverviewFilter{
		EmployeeID: alice,
		StartDate:  "2025-03-14",
		EndDate:    "2025-03-14",
	})

	require.NoError(t, err)
	assert.Len(t, overview.Shifts, 3)
	assert.Equal(t, 480+210+240, overview.NetMinutes)
	require.Len(t, overview.Conflicts, 2)
	assert.Empty(t, overview.Merged)
}

func TestAnomalyService_ExportReportPDF(t *testing.T) {
	ctx := context.Background()
	f := newFixture(at(14, 17, 0))

	doc, err := f.service.ExportReportPDF(ctx, anomaly.ReportFilter{StartDate: "2025-03-14"})

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}
