package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/buildledger/internal/utils"
	"github.com/buildledger/buildledger/pkg/timeentry"
	"github.com/buildledger/buildledger/pkg/user"
	log "github.com/sirupsen/logrus"
)

var ErrNoOpenShift = errors.New("employee has no open shift")
var ErrShiftTooShort = errors.New("shift was shorter than a minute and was discarded")
var ErrShiftTooLong = errors.New("shift is 24 hours or longer, adjust its start before clocking out")
var ErrStartInFuture = errors.New("shift start cannot be in the future")
var ErrStartBeforeOpenShift = errors.New("shift start is before the start of the open shift")

const (
	minShiftLength = time.Minute
	maxShiftLength = 24 * time.Hour
)

type Service interface {
	CurrentShift(ctx context.Context, employeeId int) (Shift, error)
	ListOpenShifts(ctx context.Context) ([]Shift, error)
	ClockIn(ctx context.Context, shift Shift) (Shift, error)
	ClockOut(ctx context.Context, employeeId int) (timeentry.TimeEntry, error)
	AdjustStart(ctx context.Context, employeeId int, start time.Time) (Shift, error)
}

// EntryRecorder turns a finished shift into a time entry.
type EntryRecorder interface {
	CreateEntry(ctx context.Context, entry timeentry.TimeEntry) (timeentry.TimeEntry, error)
}

type ServiceImpl struct {
	repo      Repository
	entries   EntryRecorder
	employees timeentry.EmployeeReader
	clock     utils.Clock
	location  *time.Location
}

// NewService creates the shift service. Shift timestamps are converted to wall clock
// times in location when they become time entries.
func NewService(repo Repository, entries EntryRecorder, employees timeentry.EmployeeReader, clock utils.Clock, location *time.Location) *ServiceImpl {
	return &ServiceImpl{repo: repo, entries: entries, employees: employees, clock: clock, location: location}
}

func (s *ServiceImpl) CurrentShift(ctx context.Context, employeeId int) (Shift, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return Shift{}, fmt.Errorf("failed to get current user: %w", err)
	}
	shift, err := s.repo.FindShift(ctx, tenantId, employeeId)
	if err != nil {
		return Shift{}, err
	}
	if shift.Id == 0 {
		return Shift{}, ErrNoOpenShift
	}
	return shift, nil
}

func (s *ServiceImpl) ListOpenShifts(ctx context.Context) ([]Shift, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListShifts(ctx, tenantId)
}

// ClockIn opens a shift for the employee, starting at shift.StartTime or now when it is
// zero. A shift that is still open is clocked out at the new start first, so switching
// projects needs a single call.
func (s *ServiceImpl) ClockIn(ctx context.Context, shift Shift) (Shift, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return Shift{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if shift.ProjectId <= 0 {
		return Shift{}, fmt.Errorf("%w: project is required", timeentry.ErrInvalidEntry)
	}
	now := s.clock.Now()
	if shift.StartTime.IsZero() {
		shift.StartTime = now
	} else if shift.StartTime.After(now) {
		return Shift{}, ErrStartInFuture
	}
	emp, err := s.employees.GetEmployee(ctx, shift.EmployeeId)
	if err != nil {
		return Shift{}, err
	}
	if !emp.Active {
		return Shift{}, timeentry.ErrInactiveEmployee
	}

	previous, err := s.repo.FindShift(ctx, tenantId, shift.EmployeeId)
	if err != nil {
		return Shift{}, err
	}
	if previous.Id != 0 {
		if shift.StartTime.Before(previous.StartTime) {
			return Shift{}, ErrStartBeforeOpenShift
		}
		_, err := s.close(ctx, tenantId, previous, shift.StartTime)
		if errors.Is(err, ErrShiftTooShort) {
			log.Debugf("discarding short shift of employee %d", previous.EmployeeId)
		} else if err != nil {
			return Shift{}, err
		}
	}

	return s.repo.ReplaceShift(ctx, tenantId, shift)
}

// ClockOut closes the employee's open shift into a time entry. Shorter than a minute
// the shift is dropped and ErrShiftTooShort returned; 24 hours or longer it stays open
// and ErrShiftTooLong is returned.
func (s *ServiceImpl) ClockOut(ctx context.Context, employeeId int) (timeentry.TimeEntry, error) {
	shift, err := s.CurrentShift(ctx, employeeId)
	if err != nil {
		return timeentry.TimeEntry{}, err
	}
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return timeentry.TimeEntry{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.close(ctx, tenantId, shift, s.clock.Now())
}

// close ends shift at end. The open shift is removed before the entry is recorded and
// put back if recording fails, so a shift never turns into two entries.
func (s *ServiceImpl) close(ctx context.Context, tenantId int, shift Shift, end time.Time) (timeentry.TimeEntry, error) {
	length := end.Sub(shift.StartTime)
	if length >= maxShiftLength {
		return timeentry.TimeEntry{}, ErrShiftTooLong
	}
	if err := s.repo.DeleteShift(ctx, tenantId, shift.EmployeeId); err != nil {
		return timeentry.TimeEntry{}, err
	}
	if length < minShiftLength {
		return timeentry.TimeEntry{}, ErrShiftTooShort
	}

	entry, err := s.entries.CreateEntry(ctx, toEntry(shift, end, s.location))
	if err != nil {
		if _, restoreErr := s.repo.ReplaceShift(ctx, tenantId, shift); restoreErr != nil {
			log.Errorf("could not reopen shift of employee %d after failed clock out: %v", shift.EmployeeId, restoreErr)
		}
		return timeentry.TimeEntry{}, err
	}
	log.Debugf("shift of employee %d closed into time entry %d", shift.EmployeeId, entry.Id)
	return entry, nil
}

// AdjustStart moves the start of the open shift, for employees who forgot to clock in.
func (s *ServiceImpl) AdjustStart(ctx context.Context, employeeId int, start time.Time) (Shift, error) {
	if start.After(s.clock.Now()) {
		return Shift{}, ErrStartInFuture
	}
	shift, err := s.CurrentShift(ctx, employeeId)
	if err != nil {
		return Shift{}, err
	}
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return Shift{}, fmt.Errorf("failed to get current user: %w", err)
	}
	shift.StartTime = start
	return s.repo.ReplaceShift(ctx, tenantId, shift)
}

// toEntry maps the shift onto wall clock times in loc. A shift across midnight keeps its
// start date; the end clock time before the start marks the rollover.
func toEntry(shift Shift, end time.Time, loc *time.Location) timeentry.TimeEntry {
	from := shift.StartTime.In(loc)
	to := end.In(loc)
	return timeentry.TimeEntry{
		EmployeeId:    shift.EmployeeId,
		ProjectId:     shift.ProjectId,
		ChangeOrderId: shift.ChangeOrderId,
		Date:          utils.DateOf(from),
		Start:         timeentry.NewClockTime(from.Hour(), from.Minute(), from.Second()),
		End:           timeentry.NewClockTime(to.Hour(), to.Minute(), to.Second()),
		Notes:         shift.Notes,
	}
}
