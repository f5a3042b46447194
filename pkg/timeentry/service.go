package timeentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/buildledger/internal/event_bus"
	"github.com/buildledger/buildledger/internal/utils"
	"github.com/buildledger/buildledger/pkg/employee"
	"github.com/buildledger/buildledger/pkg/project"
	"github.com/buildledger/buildledger/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidEntry = errors.New("invalid time entry")
var ErrInactiveEmployee = errors.New("employee is not active")
var ErrChangeOrderProjectMismatch = errors.New("change order belongs to another project")
var ErrEntryInPayroll = errors.New("time entry is already part of a payroll record")

type Service interface {
	CreateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error)
	GetEntry(ctx context.Context, id int) (TimeEntry, error)
	ListEntries(ctx context.Context, filter Filter) ([]TimeEntry, error)
	UpdateNotes(ctx context.Context, id int, notes string) (TimeEntry, error)
	DeleteEntry(ctx context.Context, id int) error
}

type EmployeeReader interface {
	GetEmployee(ctx context.Context, id int) (employee.Employee, error)
}

type ProjectReader interface {
	GetProject(ctx context.Context, id int) (project.Project, error)
	GetChangeOrder(ctx context.Context, id int) (project.ChangeOrder, error)
}

type ServiceImpl struct {
	repo      Repository
	employees EmployeeReader
	projects  ProjectReader
	eventBus  *event_bus.EventBus
}

func NewService(repo Repository, employees EmployeeReader, projects ProjectReader, eventBus *event_bus.EventBus) *ServiceImpl {
	return &ServiceImpl{repo: repo, employees: employees, projects: projects, eventBus: eventBus}
}

// CreateEntry derives the worked hours and freezes the employee's cost rate and the
// billable rate as they are right now. None of the three values is recomputed later.
func (s *ServiceImpl) CreateEntry(ctx context.Context, entry TimeEntry) (TimeEntry, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return TimeEntry{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := validate(entry); err != nil {
		return TimeEntry{}, err
	}

	emp, err := s.employees.GetEmployee(ctx, entry.EmployeeId)
	if err != nil {
		return TimeEntry{}, err
	}
	if !emp.Active {
		return TimeEntry{}, ErrInactiveEmployee
	}

	var changeOrder *project.ChangeOrder
	if entry.ChangeOrderId != nil {
		co, err := s.projects.GetChangeOrder(ctx, *entry.ChangeOrderId)
		if err != nil {
			return TimeEntry{}, err
		}
		if entry.ProjectId != 0 && entry.ProjectId != co.ProjectId {
			return TimeEntry{}, ErrChangeOrderProjectMismatch
		}
		entry.ProjectId = co.ProjectId
		changeOrder = &co
	}
	proj, err := s.projects.GetProject(ctx, entry.ProjectId)
	if err != nil {
		return TimeEntry{}, err
	}

	entry.Date = utils.DateOf(entry.Date)
	entry.Hours = CalculateHours(entry.Start, entry.End)
	entry.CostRate = emp.HourlyRate
	entry.BillableRate = BillableRate(proj, changeOrder)
	entry.PayrollRecordId = nil

	created, err := s.repo.Create(ctx, tenantId, entry)
	if err != nil {
		return TimeEntry{}, err
	}
	log.Debugf("time entry %d created: %s hours, cost rate %s, billable rate %s",
		created.Id, created.Hours, created.CostRate, created.BillableRate)

	// The entry is committed at this point; subscribers only flag payroll periods for
	// recomputation, so a failure is logged rather than returned.
	err = s.eventBus.Publish(event_bus.NewEvent(ctx, event_bus.TimeEntryCreated, event_bus.TimeEntryCreatedData{
		Id:         created.Id,
		TenantId:   tenantId,
		EmployeeId: created.EmployeeId,
		ProjectId:  created.ProjectId,
		Date:       created.Date,
	}))
	if err != nil {
		log.Warnf("failed to publish time entry created event: %v", err)
	}
	return created, nil
}

// BillableRate picks the change order's override rate when there is one, then the
// project's default labor rate, then zero.
func BillableRate(p project.Project, co *project.ChangeOrder) decimal.Decimal {
	if co != nil && co.OverrideRate != nil {
		return *co.OverrideRate
	}
	if p.DefaultLaborRate != nil {
		return *p.DefaultLaborRate
	}
	return decimal.Zero
}

func (s *ServiceImpl) GetEntry(ctx context.Context, id int) (TimeEntry, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return TimeEntry{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.Get(ctx, tenantId, id)
}

func (s *ServiceImpl) ListEntries(ctx context.Context, filter Filter) ([]TimeEntry, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if filter.To.Before(filter.From) {
		return nil, fmt.Errorf("%w: range ends before it starts", ErrInvalidEntry)
	}
	return s.repo.List(ctx, tenantId, filter)
}

func (s *ServiceImpl) UpdateNotes(ctx context.Context, id int, notes string) (TimeEntry, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return TimeEntry{}, fmt.Errorf("failed to get current user: %w", err)
	}
	updated, err := s.repo.UpdateNotes(ctx, tenantId, id, notes)
	if err != nil {
		return TimeEntry{}, err
	}
	if !updated {
		return TimeEntry{}, ErrEntryNotFound
	}
	return s.repo.Get(ctx, tenantId, id)
}

func (s *ServiceImpl) DeleteEntry(ctx context.Context, id int) error {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	entry, err := s.repo.Get(ctx, tenantId, id)
	if err != nil {
		return err
	}
	if entry.PayrollRecordId != nil {
		return ErrEntryInPayroll
	}
	deleted, err := s.repo.DeleteUnrolled(ctx, tenantId, id)
	if err != nil {
		return err
	}
	if !deleted {
		// rolled up by a recompute between the read and the delete
		return ErrEntryInPayroll
	}
	return nil
}

func validate(e TimeEntry) error {
	switch {
	case e.EmployeeId <= 0:
		return fmt.Errorf("%w: employee is required", ErrInvalidEntry)
	case e.ProjectId <= 0 && e.ChangeOrderId == nil:
		return fmt.Errorf("%w: project or change order is required", ErrInvalidEntry)
	case e.Date.IsZero():
		return fmt.Errorf("%w: date is required", ErrInvalidEntry)
	case !e.Start.Valid() || !e.End.Valid():
		return fmt.Errorf("%w: start and end must be times of day", ErrInvalidEntry)
	}
	return nil
}

// dayRange is the filter range covering whole calendar days from..to.
func dayRange(from, to time.Time) Filter {
	return Filter{From: utils.DateOf(from), To: utils.DateOf(to)}
}
