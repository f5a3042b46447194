package shift

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/buildledger/buildledger/internal/event_bus"
	"github.com/buildledger/buildledger/internal/utils"
	"github.com/buildledger/buildledger/pkg/employee"
	"github.com/buildledger/buildledger/pkg/project"
	"github.com/buildledger/buildledger/pkg/timeentry"
	"github.com/buildledger/buildledger/pkg/user"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = user.WithUser(context.Background(), user.User{Id: 1, TenantId: 10})
var location, _ = time.LoadLocation("America/Chicago")

type fixture struct {
	service    *ServiceImpl
	repo       *RepositoryStub
	entries    *timeentry.RepositoryStub
	clock      *utils.MockClock
	employeeId int
	projectId  int
	employees  *employee.ServiceImpl
}

func setup(t *testing.T) fixture {
	repo := NewRepositoryStub()
	entryRepo := timeentry.NewRepositoryStub()
	employeeRepo := employee.NewRepositoryStub()
	projectRepo := project.NewRepositoryStub()
	t.Cleanup(repo.Cleanup)
	t.Cleanup(entryRepo.Cleanup)
	t.Cleanup(employeeRepo.Cleanup)
	t.Cleanup(projectRepo.Cleanup)

	employees := employee.NewService(employeeRepo)
	projects := project.NewService(projectRepo)
	entries := timeentry.NewService(entryRepo, employees, projects, event_bus.NewEventBus())
	clock := &utils.MockClock{FixedNow: time.Date(2025, 3, 10, 7, 0, 0, 0, location)}

	emp, err := employees.CreateEmployee(ctx, employee.Employee{Name: "Ada", HourlyRate: decimal.NewFromInt(30)})
	require.NoError(t, err)
	p, err := projects.CreateProject(ctx, project.Project{Name: "Depot"})
	require.NoError(t, err)

	return fixture{
		service:    NewService(repo, entries, employees, clock, location),
		repo:       repo,
		entries:    entryRepo,
		clock:      clock,
		employeeId: emp.Id,
		projectId:  p.Id,
		employees:  employees,
	}
}

func TestServiceImpl_ClockOut(t *testing.T) {
	t.Run("should record the shift as a time entry in local wall clock time", func(t *testing.T) {
		// given
		f := setup(t)
		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId, Notes: "rebar"})
		require.NoError(t, err)
		f.clock.SetNow(time.Date(2025, 3, 10, 16, 0, 0, 0, location))

		// when
		entry, err := f.service.ClockOut(ctx, f.employeeId)

		// then
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), entry.Date)
		assert.Equal(t, "07:00", entry.Start.String())
		assert.Equal(t, "16:00", entry.End.String())
		assert.Equal(t, "8.5", entry.Hours.String())
		assert.Equal(t, "rebar", entry.Notes)
		_, err = f.service.CurrentShift(ctx, f.employeeId)
		assert.ErrorIs(t, err, ErrNoOpenShift)
	})

	t.Run("should keep the start date for a shift across midnight", func(t *testing.T) {
		f := setup(t)
		f.clock.SetNow(time.Date(2025, 3, 10, 22, 0, 0, 0, location))
		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId})
		require.NoError(t, err)
		f.clock.SetNow(time.Date(2025, 3, 11, 2, 0, 0, 0, location))

		entry, err := f.service.ClockOut(ctx, f.employeeId)

		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), entry.Date)
		assert.Equal(t, "4", entry.Hours.String())
	})

	t.Run("should discard a shift shorter than a minute", func(t *testing.T) {
		f := setup(t)
		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId})
		require.NoError(t, err)
		f.clock.SetNow(f.clock.Now().Add(30 * time.Second))

		_, err = f.service.ClockOut(ctx, f.employeeId)

		assert.ErrorIs(t, err, ErrShiftTooShort)
		_, err = f.service.CurrentShift(ctx, f.employeeId)
		assert.ErrorIs(t, err, ErrNoOpenShift)
	})

	t.Run("should keep a shift of a day or more open", func(t *testing.T) {
		f := setup(t)
		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId})
		require.NoError(t, err)
		f.clock.SetNow(f.clock.Now().Add(25 * time.Hour))

		_, err = f.service.ClockOut(ctx, f.employeeId)

		assert.ErrorIs(t, err, ErrShiftTooLong)
		_, err = f.service.CurrentShift(ctx, f.employeeId)
		assert.NoError(t, err)
	})

	t.Run("should fail without an open shift", func(t *testing.T) {
		f := setup(t)

		_, err := f.service.ClockOut(ctx, f.employeeId)

		assert.ErrorIs(t, err, ErrNoOpenShift)
	})
}

func TestServiceImpl_ClockIn(t *testing.T) {
	t.Run("should close the open shift when switching projects", func(t *testing.T) {
		// given
		f := setup(t)
		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId})
		require.NoError(t, err)
		f.clock.SetNow(time.Date(2025, 3, 10, 9, 30, 0, 0, location))

		// when
		second, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId, Notes: "formwork"})

		// then
		require.NoError(t, err)
		assert.Equal(t, f.clock.Now(), second.StartTime)
		entries, err := f.entries.List(ctx, 10, timeentry.Filter{From: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "2.5", entries[0].Hours.String())
		current, err := f.service.CurrentShift(ctx, f.employeeId)
		require.NoError(t, err)
		assert.Equal(t, "formwork", current.Notes)
	})

	t.Run("should honour a start in the past", func(t *testing.T) {
		// given
		f := setup(t)
		start := time.Date(2025, 3, 10, 6, 15, 0, 0, location)

		// when
		shift, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId, StartTime: start})

		// then
		require.NoError(t, err)
		assert.Equal(t, start, shift.StartTime)
	})

	t.Run("should close the open shift at the new start", func(t *testing.T) {
		// given
		f := setup(t)
		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId})
		require.NoError(t, err)
		f.clock.SetNow(time.Date(2025, 3, 10, 12, 0, 0, 0, location))

		// when
		_, err = f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId,
			StartTime: time.Date(2025, 3, 10, 10, 0, 0, 0, location)})

		// then
		require.NoError(t, err)
		entries, err := f.entries.List(ctx, 10, timeentry.Filter{From: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "10:00", entries[0].End.String())
		assert.Equal(t, "3", entries[0].Hours.String())
	})

	t.Run("should reject a start in the future", func(t *testing.T) {
		f := setup(t)

		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId, StartTime: f.clock.Now().Add(time.Minute)})

		assert.ErrorIs(t, err, ErrStartInFuture)
		_, err = f.service.CurrentShift(ctx, f.employeeId)
		assert.ErrorIs(t, err, ErrNoOpenShift)
	})

	t.Run("should reject a start before the open shift", func(t *testing.T) {
		f := setup(t)
		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId})
		require.NoError(t, err)

		_, err = f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId, StartTime: f.clock.Now().Add(-time.Hour)})

		assert.ErrorIs(t, err, ErrStartBeforeOpenShift)
	})

	t.Run("should refuse an inactive employee", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.employees.Deactivate(ctx, f.employeeId))

		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId})

		assert.ErrorIs(t, err, timeentry.ErrInactiveEmployee)
	})
}

func TestServiceImpl_AdjustStart(t *testing.T) {
	t.Run("should move the start backwards", func(t *testing.T) {
		f := setup(t)
		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId})
		require.NoError(t, err)
		earlier := f.clock.Now().Add(-time.Hour)

		adjusted, err := f.service.AdjustStart(ctx, f.employeeId, earlier)

		require.NoError(t, err)
		assert.Equal(t, earlier, adjusted.StartTime)
	})

	t.Run("should reject a start in the future", func(t *testing.T) {
		f := setup(t)
		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId})
		require.NoError(t, err)

		_, err = f.service.AdjustStart(ctx, f.employeeId, f.clock.Now().Add(time.Minute))

		assert.ErrorIs(t, err, ErrStartInFuture)
	})
}

func TestServiceImpl_ClockInWithoutProject(t *testing.T) {
	f := setup(t)

	_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId})

	assert.ErrorIs(t, err, timeentry.ErrInvalidEntry)
}

type failingRecorder struct{}

func (failingRecorder) CreateEntry(ctx context.Context, entry timeentry.TimeEntry) (timeentry.TimeEntry, error) {
	return timeentry.TimeEntry{}, errors.New("could not execute query: connection reset")
}

func TestServiceImpl_ClockOutFailures(t *testing.T) {
	t.Run("should not record an entry when the shift cannot be removed", func(t *testing.T) {
		// given
		f := setup(t)
		_, err := f.service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId})
		require.NoError(t, err)
		f.clock.SetNow(f.clock.Now().Add(2 * time.Hour))
		f.repo.FailDeleting = true

		// when
		_, err = f.service.ClockOut(ctx, f.employeeId)

		// then
		require.Error(t, err)
		entries, err := f.entries.List(ctx, 10, timeentry.Filter{To: time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)})
		require.NoError(t, err)
		assert.Empty(t, entries)
		_, err = f.service.CurrentShift(ctx, f.employeeId)
		assert.NoError(t, err)
	})

	t.Run("should reopen the shift when the entry cannot be recorded", func(t *testing.T) {
		// given
		f := setup(t)
		service := NewService(f.repo, failingRecorder{}, f.employees, f.clock, location)
		opened, err := service.ClockIn(ctx, Shift{EmployeeId: f.employeeId, ProjectId: f.projectId, Notes: "pour"})
		require.NoError(t, err)
		f.clock.SetNow(f.clock.Now().Add(2 * time.Hour))

		// when
		_, err = service.ClockOut(ctx, f.employeeId)

		// then
		require.Error(t, err)
		current, err := service.CurrentShift(ctx, f.employeeId)
		require.NoError(t, err)
		assert.Equal(t, opened.StartTime, current.StartTime)
		assert.Equal(t, "pour", current.Notes)
	})
}
