package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/buildledger/pkg/user"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("amount must be positive")
var ErrNegativeRate = errors.New("rate must not be negative")

type Service interface {
	CreateProject(ctx context.Context, p Project) (Project, error)
	GetProject(ctx context.Context, id int) (Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	UpdateProject(ctx context.Context, p Project) (Project, error)
	CreateChangeOrder(ctx context.Context, co ChangeOrder) (ChangeOrder, error)
	GetChangeOrder(ctx context.Context, id int) (ChangeOrder, error)
	ListChangeOrders(ctx context.Context, projectId int) ([]ChangeOrder, error)
	RecordExpense(ctx context.Context, e Expense) (Expense, error)
	ListExpenses(ctx context.Context, projectId int) ([]Expense, error)
}

type ServiceImpl struct {
	repo Repository
}

func NewService(repo Repository) *ServiceImpl {
	return &ServiceImpl{repo: repo}
}

func (s *ServiceImpl) CreateProject(ctx context.Context, p Project) (Project, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return Project{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := checkRate(p.DefaultLaborRate); err != nil {
		return Project{}, err
	}
	id, err := s.repo.CreateProject(ctx, tenantId, p)
	if err != nil {
		return Project{}, err
	}
	p.Id = id
	p.TenantId = tenantId
	return p, nil
}

func (s *ServiceImpl) GetProject(ctx context.Context, id int) (Project, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return Project{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetProject(ctx, tenantId, id)
}

func (s *ServiceImpl) ListProjects(ctx context.Context) ([]Project, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListProjects(ctx, tenantId)
}

// UpdateProject renames the project and sets its default labor rate. Time entries
// already recorded keep their billable rate snapshot.
func (s *ServiceImpl) UpdateProject(ctx context.Context, p Project) (Project, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return Project{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := checkRate(p.DefaultLaborRate); err != nil {
		return Project{}, err
	}
	updated, err := s.repo.UpdateProject(ctx, tenantId, p)
	if err != nil {
		return Project{}, err
	}
	if !updated {
		return Project{}, ErrProjectNotFound
	}
	p.TenantId = tenantId
	return p, nil
}

func (s *ServiceImpl) CreateChangeOrder(ctx context.Context, co ChangeOrder) (ChangeOrder, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return ChangeOrder{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := checkRate(co.OverrideRate); err != nil {
		return ChangeOrder{}, err
	}
	if _, err := s.repo.GetProject(ctx, tenantId, co.ProjectId); err != nil {
		return ChangeOrder{}, err
	}
	id, err := s.repo.CreateChangeOrder(ctx, tenantId, co)
	if err != nil {
		return ChangeOrder{}, err
	}
	co.Id = id
	return co, nil
}

func (s *ServiceImpl) GetChangeOrder(ctx context.Context, id int) (ChangeOrder, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return ChangeOrder{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetChangeOrder(ctx, tenantId, id)
}

func (s *ServiceImpl) ListChangeOrders(ctx context.Context, projectId int) ([]ChangeOrder, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListChangeOrders(ctx, tenantId, projectId)
}

func (s *ServiceImpl) RecordExpense(ctx context.Context, e Expense) (Expense, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return Expense{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if !e.Amount.IsPositive() {
		return Expense{}, ErrInvalidAmount
	}
	if _, err := s.repo.GetProject(ctx, tenantId, e.ProjectId); err != nil {
		return Expense{}, err
	}
	y, m, d := e.Date.Date()
	e.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	id, err := s.repo.CreateExpense(ctx, tenantId, e)
	if err != nil {
		return Expense{}, err
	}
	e.Id = id
	return e, nil
}

func (s *ServiceImpl) ListExpenses(ctx context.Context, projectId int) ([]Expense, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListExpenses(ctx, tenantId, projectId)
}

func checkRate(rate *decimal.Decimal) error {
	if rate != nil && rate.IsNegative() {
		return ErrNegativeRate
	}
	return nil
}
