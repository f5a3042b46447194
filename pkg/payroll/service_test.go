package payroll

import (
	"context"
	"testing"
	"time"

	"github.com/buildledger/buildledger/internal/config"
	"github.com/buildledger/buildledger/internal/event_bus"
	"github.com/buildledger/buildledger/internal/utils"
	"github.com/buildledger/buildledger/pkg/employee"
	"github.com/buildledger/buildledger/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantId = 10

var ctx = user.WithUser(context.Background(), user.User{Id: 1, TenantId: tenantId})

type fixture struct {
	service   *ServiceImpl
	repo      *RepositoryStub
	employees *employee.RepositoryStub
	clock     *utils.MockClock
}

func setup(t *testing.T) fixture {
	repo := NewRepositoryStub()
	employees := employee.NewRepositoryStub()
	t.Cleanup(repo.Cleanup)
	t.Cleanup(employees.Cleanup)
	clock := &utils.MockClock{}
	clock.SetNow(time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC))
	cfg := config.Defaults().Payroll
	return fixture{
		service:   NewService(repo, employees, clock, cfg),
		repo:      repo,
		employees: employees,
		clock:     clock,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// March 3rd 2025 is a Monday, so the period covers exactly two ISO weeks.
func (f fixture) period(t *testing.T) PayrollPeriod {
	p, err := f.service.CreatePeriod(ctx, PayrollPeriod{Name: "2025-03 A", Start: day(2025, 3, 3), End: day(2025, 3, 16)})
	require.NoError(t, err)
	return p
}

func (f fixture) employee(t *testing.T, rate string) int {
	id, err := f.employees.Create(ctx, tenantId, employee.Employee{Name: "Ada", HourlyRate: dec(rate), Active: true})
	require.NoError(t, err)
	return id
}

func TestServiceImpl_RecomputePeriod(t *testing.T) {
	t.Run("should compute pay, tax and per-project entries", func(t *testing.T) {
		// given
		f := setup(t)
		period := f.period(t)
		emp := f.employee(t, "20")
		rec, err := f.service.AddRecord(ctx, period.Id, emp, dec("50"))
		require.NoError(t, err)
		profile := tiered(TaxBracket{UpTo: decPtr("1000"), Rate: dec("10")}, TaxBracket{Rate: dec("20")})
		profile.EmployeeId = emp
		_, err = f.service.SaveTaxProfile(ctx, profile)
		require.NoError(t, err)
		// week 1: 45h (5 overtime), week 2: 10h
		f.repo.AddWorkedTime(tenantId, emp, WorkedTime{EntryId: 101, ProjectId: 1, Date: day(2025, 3, 3), Hours: dec("25")})
		f.repo.AddWorkedTime(tenantId, emp, WorkedTime{EntryId: 102, ProjectId: 2, Date: day(2025, 3, 5), Hours: dec("20")})
		f.repo.AddWorkedTime(tenantId, emp, WorkedTime{EntryId: 103, ProjectId: 1, Date: day(2025, 3, 12), Hours: dec("10")})
		f.repo.AddWorkedTime(tenantId, emp, WorkedTime{EntryId: 104, ProjectId: 1, Date: day(2025, 3, 17), Hours: dec("8")})

		// when
		result, err := f.service.RecomputePeriod(ctx, period.Id, false)

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, result.Recomputed)
		assert.NotEmpty(t, result.RunId)
		records, err := f.service.ListRecords(ctx, period.Id)
		require.NoError(t, err)
		require.Len(t, records, 1)
		got := records[0]
		assert.Equal(t, rec.Id, got.Id)
		assert.Equal(t, "50.00", got.RegularHours.StringFixed(2))
		assert.Equal(t, "5.00", got.OvertimeHours.StringFixed(2))
		assert.Equal(t, "1000.00", got.RegularPay.StringFixed(2))
		assert.Equal(t, "150.00", got.OvertimePay.StringFixed(2))
		assert.Equal(t, "1200.00", got.GrossPay.StringFixed(2))
		assert.Equal(t, "140.00", got.Tax.StringFixed(2))
		assert.Equal(t, "1060.00", got.NetPay.StringFixed(2))
		require.Len(t, got.Entries, 2)
		assert.Equal(t, 1, got.Entries[0].ProjectId)
		assert.Equal(t, "35", got.Entries[0].Hours.String())
		assert.Equal(t, "20", got.Entries[1].Hours.String())
		assert.Equal(t, rec.Id, *f.repo.LinkedRecord(101))
		assert.Nil(t, f.repo.LinkedRecord(104), "entry outside the period stays unrolled")
	})

	t.Run("should reject a locked period unless forced", func(t *testing.T) {
		// given
		f := setup(t)
		period := f.period(t)
		emp := f.employee(t, "20")
		_, err := f.service.AddRecord(ctx, period.Id, emp, decimal.Zero)
		require.NoError(t, err)
		require.NoError(t, f.service.LockPeriod(ctx, period.Id))

		// when
		_, err = f.service.RecomputePeriod(ctx, period.Id, false)

		// then
		assert.ErrorIs(t, err, ErrPeriodLocked)
		stored, _ := f.service.GetPeriod(ctx, period.Id)
		assert.Nil(t, stored.RecomputedAt)

		// when forced
		f.clock.SetNow(time.Date(2025, 3, 21, 8, 30, 0, 0, time.UTC))
		result, err := f.service.RecomputePeriod(ctx, period.Id, true)

		// then
		require.NoError(t, err)
		stored, _ = f.service.GetPeriod(ctx, period.Id)
		require.NotNil(t, stored.RecomputedAt)
		assert.Equal(t, f.clock.Now(), *stored.RecomputedAt)
		assert.Equal(t, result.RecomputedAt, *stored.RecomputedAt)
		records, _ := f.service.ListRecords(ctx, period.Id)
		for _, rec := range records {
			require.NotNil(t, rec.RecomputedAt)
			assert.Equal(t, f.clock.Now(), *rec.RecomputedAt)
		}
	})

	t.Run("should skip locked records unless forced", func(t *testing.T) {
		f := setup(t)
		period := f.period(t)
		locked, _ := f.service.AddRecord(ctx, period.Id, f.employee(t, "20"), decimal.Zero)
		open, _ := f.service.AddRecord(ctx, period.Id, f.employee(t, "30"), decimal.Zero)
		require.NoError(t, f.service.SetRecordLock(ctx, locked.Id, true))

		result, err := f.service.RecomputePeriod(ctx, period.Id, false)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Recomputed)
		assert.Equal(t, 1, result.Skipped)
		lockedRec, _ := f.repo.GetRecord(ctx, tenantId, locked.Id)
		openRec, _ := f.repo.GetRecord(ctx, tenantId, open.Id)
		assert.Nil(t, lockedRec.RecomputedAt)
		assert.NotNil(t, openRec.RecomputedAt)

		result, err = f.service.RecomputePeriod(ctx, period.Id, true)

		require.NoError(t, err)
		assert.Equal(t, 2, result.Recomputed)
	})

	t.Run("should roll back every record when one fails", func(t *testing.T) {
		// given
		f := setup(t)
		period := f.period(t)
		first, _ := f.service.AddRecord(ctx, period.Id, f.employee(t, "20"), decimal.Zero)
		second, _ := f.service.AddRecord(ctx, period.Id, f.employee(t, "30"), decimal.Zero)
		f.repo.AddWorkedTime(tenantId, first.EmployeeId, WorkedTime{EntryId: 1, ProjectId: 1, Date: day(2025, 3, 4), Hours: dec("8")})
		f.repo.FailSavingRecord(second.Id)

		// when
		_, err := f.service.RecomputePeriod(ctx, period.Id, false)

		// then
		require.Error(t, err)
		firstRec, _ := f.repo.GetRecord(ctx, tenantId, first.Id)
		assert.Nil(t, firstRec.RecomputedAt)
		assert.Empty(t, firstRec.Entries)
		assert.Nil(t, f.repo.LinkedRecord(1))
		stored, _ := f.service.GetPeriod(ctx, period.Id)
		assert.Nil(t, stored.RecomputedAt)
		assert.True(t, stored.NeedsRecompute)
	})

	t.Run("should not pick up entries rolled into another record", func(t *testing.T) {
		f := setup(t)
		emp := f.employee(t, "20")
		first := f.period(t)
		overlapping, err := f.service.CreatePeriod(ctx, PayrollPeriod{Name: "overlap", Start: day(2025, 3, 10), End: day(2025, 3, 23)})
		require.NoError(t, err)
		firstRec, _ := f.service.AddRecord(ctx, first.Id, emp, decimal.Zero)
		otherRec, _ := f.service.AddRecord(ctx, overlapping.Id, emp, decimal.Zero)
		f.repo.AddWorkedTime(tenantId, emp, WorkedTime{EntryId: 7, ProjectId: 1, Date: day(2025, 3, 11), Hours: dec("6")})

		_, err = f.service.RecomputePeriod(ctx, first.Id, false)
		require.NoError(t, err)
		_, err = f.service.RecomputePeriod(ctx, overlapping.Id, false)
		require.NoError(t, err)

		assert.Equal(t, firstRec.Id, *f.repo.LinkedRecord(7))
		other, _ := f.repo.GetRecord(ctx, tenantId, otherRec.Id)
		assert.True(t, other.RegularHours.IsZero())
	})

	t.Run("should return not found for another tenant's period", func(t *testing.T) {
		f := setup(t)
		period := f.period(t)
		other := user.WithUser(context.Background(), user.User{Id: 2, TenantId: 20})

		_, err := f.service.RecomputePeriod(other, period.Id, false)

		assert.ErrorIs(t, err, ErrPeriodNotFound)
	})
}

func TestServiceImpl_AddRecord(t *testing.T) {
	t.Run("should flag the period and reject duplicates", func(t *testing.T) {
		f := setup(t)
		period := f.period(t)
		emp := f.employee(t, "20")

		_, err := f.service.AddRecord(ctx, period.Id, emp, decimal.Zero)
		require.NoError(t, err)
		_, err = f.service.AddRecord(ctx, period.Id, emp, decimal.Zero)

		assert.ErrorIs(t, err, ErrDuplicateRecord)
		stored, _ := f.service.GetPeriod(ctx, period.Id)
		assert.True(t, stored.NeedsRecompute)
	})

	t.Run("should refuse a locked period", func(t *testing.T) {
		f := setup(t)
		period := f.period(t)
		require.NoError(t, f.service.LockPeriod(ctx, period.Id))

		_, err := f.service.AddRecord(ctx, period.Id, f.employee(t, "20"), decimal.Zero)

		assert.ErrorIs(t, err, ErrPeriodLocked)
	})

	t.Run("should refuse an unknown employee", func(t *testing.T) {
		f := setup(t)
		period := f.period(t)

		_, err := f.service.AddRecord(ctx, period.Id, 999, decimal.Zero)

		assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
	})
}

func TestServiceImpl_RecomputeStalePeriods(t *testing.T) {
	t.Run("should recompute flagged periods and leave locked ones flagged", func(t *testing.T) {
		// given
		f := setup(t)
		bus := event_bus.NewEventBus()
		f.service.Subscribe(bus)
		open := f.period(t)
		locked, err := f.service.CreatePeriod(ctx, PayrollPeriod{Name: "locked", Start: day(2025, 3, 1), End: day(2025, 3, 31)})
		require.NoError(t, err)
		untouched, err := f.service.CreatePeriod(ctx, PayrollPeriod{Name: "april", Start: day(2025, 4, 1), End: day(2025, 4, 30)})
		require.NoError(t, err)
		require.NoError(t, f.service.LockPeriod(ctx, locked.Id))

		// when
		err = bus.Publish(event_bus.NewEvent(ctx, event_bus.TimeEntryCreated, event_bus.TimeEntryCreatedData{
			Id: 1, TenantId: tenantId, EmployeeId: 1, ProjectId: 1, Date: day(2025, 3, 5),
		}))
		require.NoError(t, err)
		count, err := f.service.RecomputeStalePeriods(context.Background())

		// then
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		openStored, _ := f.service.GetPeriod(ctx, open.Id)
		lockedStored, _ := f.service.GetPeriod(ctx, locked.Id)
		untouchedStored, _ := f.service.GetPeriod(ctx, untouched.Id)
		assert.False(t, openStored.NeedsRecompute)
		assert.NotNil(t, openStored.RecomputedAt)
		assert.True(t, lockedStored.NeedsRecompute)
		assert.Nil(t, lockedStored.RecomputedAt)
		assert.False(t, untouchedStored.NeedsRecompute)
	})
}

func TestServiceImpl_PreviewTax(t *testing.T) {
	t.Run("should preview with the stored profile", func(t *testing.T) {
		f := setup(t)
		emp := f.employee(t, "20")
		_, err := f.service.SaveTaxProfile(ctx, TaxProfile{EmployeeId: emp, Method: TaxMethodFlat, Active: true, FlatRate: dec("10")})
		require.NoError(t, err)

		breakdown, err := f.service.PreviewTax(ctx, emp, dec("1500"))

		require.NoError(t, err)
		assert.Equal(t, "150.00", breakdown.Total.StringFixed(2))
		require.Len(t, breakdown.Lines, 1)
	})

	t.Run("should preview zero without a profile", func(t *testing.T) {
		f := setup(t)

		breakdown, err := f.service.PreviewTax(ctx, f.employee(t, "20"), dec("1500"))

		require.NoError(t, err)
		assert.True(t, breakdown.Total.IsZero())
		assert.Empty(t, breakdown.Lines)
	})

	t.Run("should reject an invalid profile", func(t *testing.T) {
		f := setup(t)

		_, err := f.service.SaveTaxProfile(ctx, TaxProfile{EmployeeId: f.employee(t, "20"), Method: TaxMethodFlat, FlatRate: dec("150")})

		assert.ErrorIs(t, err, ErrInvalidTaxProfile)
	})
}

func TestSplitOvertime(t *testing.T) {
	worked := []WorkedTime{
		{Date: day(2025, 3, 3), Hours: dec("30")},
		{Date: day(2025, 3, 9), Hours: dec("12.5")},
		{Date: day(2025, 3, 10), Hours: dec("40")},
	}

	regular, overtime := SplitOvertime(worked, dec("40"))

	assert.Equal(t, "80", regular.String())
	assert.Equal(t, "2.5", overtime.String())
}
