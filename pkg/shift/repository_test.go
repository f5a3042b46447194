//go:build integration

package shift

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/buildledger/buildledger/internal/test_utils"
	"github.com/buildledger/buildledger/pkg/employee"
	"github.com/buildledger/buildledger/pkg/project"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
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

func setupTestRepository(t *testing.T) (context.Context, Repository, int, int) {
	ctx := test_utils.TenantContext(dbTenantId)
	db := openDb()
	t.Cleanup(func() {
		db.Close()
		require.NoError(t, pgContainer.Restore(context.Background()))
	})

	employeeId, err := employee.NewRepository(db).Create(ctx, dbTenantId, employee.Employee{Name: "Lin", HourlyRate: decimal.NewFromInt(28), Active: true})
	require.NoError(t, err)
	projectId, err := project.NewRepository(db).CreateProject(ctx, dbTenantId, project.Project{Name: "Pump Station"})
	require.NoError(t, err)
	return ctx, NewRepository(db), employeeId, projectId
}

func TestRepositoryImpl_ReplaceShift(t *testing.T) {
	t.Run("should keep a single open shift per employee", func(t *testing.T) {
		// given
		ctx, repo, employeeId, projectId := setupTestRepository(t)
		first := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		second := first.Add(3 * time.Hour)
		_, err := repo.ReplaceShift(ctx, dbTenantId, Shift{EmployeeId: employeeId, ProjectId: projectId, StartTime: first, Notes: "pour"})
		require.NoError(t, err)

		// when
		_, err = repo.ReplaceShift(ctx, dbTenantId, Shift{EmployeeId: employeeId, ProjectId: projectId, StartTime: second, Notes: "strip forms"})
		require.NoError(t, err)

		// then
		shifts, err := repo.ListShifts(ctx, dbTenantId)
		require.NoError(t, err)
		require.Len(t, shifts, 1)
		assert.True(t, second.Equal(shifts[0].StartTime))
		assert.Equal(t, "strip forms", shifts[0].Notes)
	})

	t.Run("should return a zero shift after delete", func(t *testing.T) {
		// given
		ctx, repo, employeeId, projectId := setupTestRepository(t)
		_, err := repo.ReplaceShift(ctx, dbTenantId, Shift{EmployeeId: employeeId, ProjectId: projectId, StartTime: time.Now().UTC()})
		require.NoError(t, err)

		// when
		require.NoError(t, repo.DeleteShift(ctx, dbTenantId, employeeId))

		// then
		shift, err := repo.FindShift(ctx, dbTenantId, employeeId)
		require.NoError(t, err)
		assert.Zero(t, shift.Id)
	})

	t.Run("should not see shifts of another tenant", func(t *testing.T) {
		ctx, repo, employeeId, projectId := setupTestRepository(t)
		_, err := repo.ReplaceShift(ctx, dbTenantId, Shift{EmployeeId: employeeId, ProjectId: projectId, StartTime: time.Now().UTC()})
		require.NoError(t, err)

		shift, err := repo.FindShift(ctx, dbTenantId+1, employeeId)

		require.NoError(t, err)
		assert.Zero(t, shift.Id)
	})
}
