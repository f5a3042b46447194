package employee

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildledger/buildledger/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrNegativeRate = errors.New("hourly rate must not be negative")

type Service interface {
	CreateEmployee(ctx context.Context, e Employee) (Employee, error)
	GetEmployee(ctx context.Context, id int) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	UpdateRate(ctx context.Context, id int, rate decimal.Decimal) (Employee, error)
	Deactivate(ctx context.Context, id int) error
}

type ServiceImpl struct {
	repo Repository
}

func NewService(repo Repository) *ServiceImpl {
	return &ServiceImpl{repo: repo}
}

func (s *ServiceImpl) CreateEmployee(ctx context.Context, e Employee) (Employee, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return Employee{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if e.HourlyRate.IsNegative() {
		return Employee{}, ErrNegativeRate
	}
	e.Active = true
	id, err := s.repo.Create(ctx, tenantId, e)
	if err != nil {
		return Employee{}, err
	}
	e.Id = id
	e.TenantId = tenantId
	return e, nil
}

func (s *ServiceImpl) GetEmployee(ctx context.Context, id int) (Employee, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return Employee{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.Get(ctx, tenantId, id)
}

func (s *ServiceImpl) ListEmployees(ctx context.Context) ([]Employee, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.List(ctx, tenantId)
}

// UpdateRate changes the employee's cost rate for future time entries and payroll runs.
func (s *ServiceImpl) UpdateRate(ctx context.Context, id int, rate decimal.Decimal) (Employee, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return Employee{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if rate.IsNegative() {
		return Employee{}, ErrNegativeRate
	}
	updated, err := s.repo.UpdateRate(ctx, tenantId, id, rate)
	if err != nil {
		return Employee{}, err
	}
	if !updated {
		return Employee{}, ErrEmployeeNotFound
	}
	log.Debugf("employee %d hourly rate set to %s", id, rate)
	return s.repo.Get(ctx, tenantId, id)
}

func (s *ServiceImpl) Deactivate(ctx context.Context, id int) error {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	updated, err := s.repo.SetActive(ctx, tenantId, id, false)
	if err != nil {
		return err
	}
	if !updated {
		return ErrEmployeeNotFound
	}
	return nil
}
