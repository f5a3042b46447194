//go:build integration

package payroll

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/buildledger/buildledger/internal/config"
	"github.com/buildledger/buildledger/internal/test_utils"
	"github.com/buildledger/buildledger/internal/utils"
	"github.com/buildledger/buildledger/pkg/employee"
	"github.com/buildledger/buildledger/pkg/project"
	"github.com/buildledger/buildledger/pkg/timeentry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var pgContainer *postgres.PostgresContainer
var openDb func() *pgxpool.Pool

func TestMain(m *testing.M) {
	pgContainer, openDb = test_utils.TestWithDB()
	code := m.Run()
	if err := testcontainers.TerminateContainer(pgContainer); err != nil {
		log.Errorf("failed to terminate container: %s", err)
	}
	os.Exit(code)
}

type dbFixture struct {
	repo       Repository
	service    *ServiceImpl
	entries    *timeentry.RepositoryImpl
	employeeId int
	projectId  int
}

func setupTestRepository(t *testing.T) (context.Context, dbFixture) {
	ctx := test_utils.TenantContext(tenantId)
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		err := pgContainer.Restore(context.Background())
		require.NoError(t, err)
	})

	employees := employee.NewRepository(db)
	employeeId, err := employees.Create(ctx, tenantId, employee.Employee{Name: "Grace", HourlyRate: dec("20"), Active: true})
	require.NoError(t, err)
	projectId, err := project.NewRepository(db).CreateProject(ctx, tenantId, project.Project{Name: "Harbor Bridge"})
	require.NoError(t, err)

	clock := &utils.MockClock{}
	clock.SetNow(time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC))
	repo := NewRepo(db)
	return ctx, dbFixture{
		repo:       repo,
		service:    NewService(repo, employees, clock, config.Defaults().Payroll),
		entries:    timeentry.NewRepository(db),
		employeeId: employeeId,
		projectId:  projectId,
	}
}

func (f dbFixture) logHours(t *testing.T, ctx context.Context, date time.Time, hours string) timeentry.TimeEntry {
	e, err := f.entries.Create(ctx, tenantId, timeentry.TimeEntry{
		EmployeeId: f.employeeId,
		ProjectId:  f.projectId,
		Date:       date,
		Start:      timeentry.NewClockTime(7, 0, 0),
		End:        timeentry.NewClockTime(15, 0, 0),
		Hours:      dec(hours),
		CostRate:   dec("20"),
	})
	require.NoError(t, err)
	return e
}

func TestRepositoryImpl_Recompute(t *testing.T) {
	t.Run("should roll up time entries and move cost out of unrolled time", func(t *testing.T) {
		// given
		ctx, f := setupTestRepository(t)
		period, err := f.service.CreatePeriod(ctx, PayrollPeriod{Name: "March A", Start: day(2025, 3, 3), End: day(2025, 3, 16)})
		require.NoError(t, err)
		rec, err := f.service.AddRecord(ctx, period.Id, f.employeeId, decimal.Zero)
		require.NoError(t, err)
		f.logHours(t, ctx, day(2025, 3, 3), "30")
		f.logHours(t, ctx, day(2025, 3, 4), "12")
		asOf := day(2025, 3, 31)
		unrolledBefore, err := f.entries.SumUnrolledCost(ctx, tenantId, f.projectId, asOf)
		require.NoError(t, err)

		// when
		_, err = f.service.RecomputePeriod(ctx, period.Id, false)

		// then
		require.NoError(t, err)
		stored, err := f.repo.GetRecord(ctx, tenantId, rec.Id)
		require.NoError(t, err)
		assert.Equal(t, "40.00", stored.RegularHours.StringFixed(2))
		assert.Equal(t, "2.00", stored.OvertimeHours.StringFixed(2))
		assert.Equal(t, "860.00", stored.GrossPay.StringFixed(2))
		require.Len(t, stored.Entries, 1)
		assert.Equal(t, "42.00", stored.Entries[0].Hours.StringFixed(2))

		unrolledAfter, err := f.entries.SumUnrolledCost(ctx, tenantId, f.projectId, asOf)
		require.NoError(t, err)
		payrollCost, err := f.repo.SumEntryCost(ctx, tenantId, f.projectId, asOf)
		require.NoError(t, err)
		assert.Equal(t, "840.00", unrolledBefore.StringFixed(2))
		assert.True(t, unrolledAfter.IsZero())
		assert.Equal(t, "840.00", payrollCost.StringFixed(2))

		periodAfter, err := f.repo.GetPeriod(ctx, tenantId, period.Id)
		require.NoError(t, err)
		assert.False(t, periodAfter.NeedsRecompute)
		require.NotNil(t, periodAfter.RecomputedAt)
	})

	t.Run("should reject a locked period and leave it untouched", func(t *testing.T) {
		ctx, f := setupTestRepository(t)
		period, err := f.service.CreatePeriod(ctx, PayrollPeriod{Name: "March A", Start: day(2025, 3, 3), End: day(2025, 3, 16)})
		require.NoError(t, err)
		_, err = f.service.AddRecord(ctx, period.Id, f.employeeId, decimal.Zero)
		require.NoError(t, err)
		require.NoError(t, f.service.LockPeriod(ctx, period.Id))

		_, err = f.service.RecomputePeriod(ctx, period.Id, false)

		assert.ErrorIs(t, err, ErrPeriodLocked)
		stored, err := f.repo.GetPeriod(ctx, tenantId, period.Id)
		require.NoError(t, err)
		assert.Nil(t, stored.RecomputedAt)
	})
}

func TestRepositoryImpl_LaborCostAsOf(t *testing.T) {
	t.Run("should count each hour once for an as-of inside and after the period", func(t *testing.T) {
		// given
		ctx, f := setupTestRepository(t)
		period, err := f.service.CreatePeriod(ctx, PayrollPeriod{Name: "March A", Start: day(2025, 3, 3), End: day(2025, 3, 16)})
		require.NoError(t, err)
		_, err = f.service.AddRecord(ctx, period.Id, f.employeeId, decimal.Zero)
		require.NoError(t, err)
		f.logHours(t, ctx, day(2025, 3, 4), "8")
		labor := func(asOf time.Time) (string, string) {
			entries, err := f.entries.SumUnrolledCost(ctx, tenantId, f.projectId, asOf)
			require.NoError(t, err)
			payroll, err := f.repo.SumEntryCost(ctx, tenantId, f.projectId, asOf)
			require.NoError(t, err)
			return entries.StringFixed(2), payroll.StringFixed(2)
		}
		inside := day(2025, 3, 10)
		entriesBefore, payrollBefore := labor(inside)

		// when
		_, err = f.service.RecomputePeriod(ctx, period.Id, false)
		require.NoError(t, err)

		// then
		assert.Equal(t, "160.00", entriesBefore)
		assert.Equal(t, "0.00", payrollBefore)

		entriesInside, payrollInside := labor(inside)
		assert.Equal(t, "160.00", entriesInside)
		assert.Equal(t, "0.00", payrollInside)

		entriesAtEnd, payrollAtEnd := labor(day(2025, 3, 16))
		assert.Equal(t, "0.00", entriesAtEnd)
		assert.Equal(t, "160.00", payrollAtEnd)

		entriesBeforeWork, payrollBeforeWork := labor(day(2025, 3, 3))
		assert.Equal(t, "0.00", entriesBeforeWork)
		assert.Equal(t, "0.00", payrollBeforeWork)
	})
}

func TestRepositoryImpl_CreateRecord(t *testing.T) {
	t.Run("should map the unique violation to ErrDuplicateRecord", func(t *testing.T) {
		ctx, f := setupTestRepository(t)
		period, err := f.repo.CreatePeriod(ctx, tenantId, PayrollPeriod{Name: "March A", Start: day(2025, 3, 3), End: day(2025, 3, 16)})
		require.NoError(t, err)

		_, err = f.repo.CreateRecord(ctx, tenantId, PayrollRecord{PeriodId: period.Id, EmployeeId: f.employeeId})
		require.NoError(t, err)
		_, err = f.repo.CreateRecord(ctx, tenantId, PayrollRecord{PeriodId: period.Id, EmployeeId: f.employeeId})

		assert.ErrorIs(t, err, ErrDuplicateRecord)
	})
}

func TestRepositoryImpl_TaxProfile(t *testing.T) {
	t.Run("should replace brackets on save", func(t *testing.T) {
		// given
		ctx, f := setupTestRepository(t)
		first := tiered(TaxBracket{UpTo: decPtr("1000"), Rate: dec("10")}, TaxBracket{Rate: dec("20")})
		first.EmployeeId = f.employeeId
		require.NoError(t, f.repo.WithTransaction(ctx, func(repo Repository) error {
			return repo.SaveTaxProfile(ctx, tenantId, first)
		}))

		// when
		second := TaxProfile{EmployeeId: f.employeeId, Method: TaxMethodFlat, Active: true, FlatRate: dec("12.5")}
		require.NoError(t, f.repo.WithTransaction(ctx, func(repo Repository) error {
			return repo.SaveTaxProfile(ctx, tenantId, second)
		}))

		// then
		stored, err := f.repo.GetTaxProfile(ctx, tenantId, f.employeeId)
		require.NoError(t, err)
		assert.Equal(t, TaxMethodFlat, stored.Method)
		assert.Equal(t, "12.5", stored.FlatRate.String())
		assert.Empty(t, stored.Brackets)
	})

	t.Run("should return ErrTaxProfileNotFound for an employee without profile", func(t *testing.T) {
		ctx, f := setupTestRepository(t)

		_, err := f.repo.GetTaxProfile(ctx, tenantId, f.employeeId)

		assert.ErrorIs(t, err, ErrTaxProfileNotFound)
	})
}
