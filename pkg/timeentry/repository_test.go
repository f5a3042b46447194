//go:build integration

package timeentry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/buildledger/buildledger/internal/test_utils"
	"github.com/buildledger/buildledger/pkg/employee"
	"github.com/buildledger/buildledger/pkg/project"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const dbTenantId = 10

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
	db         *pgxpool.Pool
	repo       *RepositoryImpl
	employeeId int
	projectId  int
}

func setupTestRepository(t *testing.T) (context.Context, dbFixture) {
	ctx := test_utils.TenantContext(dbTenantId)
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		require.NoError(t, pgContainer.Restore(context.Background()))
	})

	employeeId, err := employee.NewRepository(db).Create(ctx, dbTenantId, employee.Employee{Name: "Grace", HourlyRate: dec("20"), Active: true})
	require.NoError(t, err)
	projectId, err := project.NewRepository(db).CreateProject(ctx, dbTenantId, project.Project{Name: "Harbor Bridge"})
	require.NoError(t, err)
	return ctx, dbFixture{db: db, repo: NewRepository(db), employeeId: employeeId, projectId: projectId}
}

func (f dbFixture) create(t *testing.T, ctx context.Context, date time.Time, hours string, rate string) TimeEntry {
	e, err := f.repo.Create(ctx, dbTenantId, TimeEntry{
		EmployeeId: f.employeeId,
		ProjectId:  f.projectId,
		Date:       date,
		Start:      NewClockTime(7, 0, 0),
		End:        NewClockTime(15, 0, 0),
		Hours:      dec(hours),
		CostRate:   dec(rate),
	})
	require.NoError(t, err)
	return e
}

// linkToPeriod attaches the entry to a payroll record of a period ending on end.
func (f dbFixture) linkToPeriod(t *testing.T, ctx context.Context, entryId int, end time.Time) {
	var periodId, recordId int
	err := f.db.QueryRow(ctx, `INSERT INTO payroll_period (tenant_id, name, start_date, end_date)
			VALUES ($1, 'March A', $2, $3) RETURNING id`, dbTenantId, end.AddDate(0, 0, -13), end).Scan(&periodId)
	require.NoError(t, err)
	err = f.db.QueryRow(ctx, `INSERT INTO payroll_record (tenant_id, period_id, employee_id)
			VALUES ($1, $2, $3) RETURNING id`, dbTenantId, periodId, f.employeeId).Scan(&recordId)
	require.NoError(t, err)
	_, err = f.db.Exec(ctx, `UPDATE time_entry SET payroll_record_id = $1 WHERE id = $2`, recordId, entryId)
	require.NoError(t, err)
}

func TestRepositoryImpl_SumUnrolledCost(t *testing.T) {
	t.Run("should count priced entries dated on or before the cutoff", func(t *testing.T) {
		// given
		ctx, f := setupTestRepository(t)
		f.create(t, ctx, workday.AddDate(0, 0, -1), "8", "20")
		f.create(t, ctx, workday, "4", "20")
		f.create(t, ctx, workday.AddDate(0, 0, 1), "8", "20")
		f.create(t, ctx, workday, "8", "0")

		// when
		onCutoff, err := f.repo.SumUnrolledCost(ctx, dbTenantId, f.projectId, workday)
		require.NoError(t, err)
		beforeAll, err := f.repo.SumUnrolledCost(ctx, dbTenantId, f.projectId, workday.AddDate(0, 0, -2))
		require.NoError(t, err)

		// then
		assert.Equal(t, "240.00", onCutoff.StringFixed(2))
		assert.True(t, beforeAll.IsZero())
	})

	t.Run("should hand linked entries over to payroll once their period has ended", func(t *testing.T) {
		// given
		ctx, f := setupTestRepository(t)
		e := f.create(t, ctx, workday, "8", "20")
		periodEnd := workday.AddDate(0, 0, 6)
		f.linkToPeriod(t, ctx, e.Id, periodEnd)

		// when
		inside, err := f.repo.SumUnrolledCost(ctx, dbTenantId, f.projectId, periodEnd.AddDate(0, 0, -1))
		require.NoError(t, err)
		atEnd, err := f.repo.SumUnrolledCost(ctx, dbTenantId, f.projectId, periodEnd)
		require.NoError(t, err)

		// then
		assert.Equal(t, "160.00", inside.StringFixed(2))
		assert.True(t, atEnd.IsZero())
	})
}

func TestRepositoryImpl_DeleteUnrolled(t *testing.T) {
	t.Run("should keep entries linked to payroll", func(t *testing.T) {
		ctx, f := setupTestRepository(t)
		e := f.create(t, ctx, workday, "8", "20")
		f.linkToPeriod(t, ctx, e.Id, workday.AddDate(0, 0, 6))

		deleted, err := f.repo.DeleteUnrolled(ctx, dbTenantId, e.Id)

		require.NoError(t, err)
		assert.False(t, deleted)
		_, err = f.repo.Get(ctx, dbTenantId, e.Id)
		assert.NoError(t, err)
	})
}
