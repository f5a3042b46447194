package project

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type RepositoryStub struct {
	nextId       int
	projects     map[int]Project
	changeOrders map[int]ChangeOrder
	coTenants    map[int]int
	expenses     map[int]Expense
	expTenants   map[int]int
}

func NewRepositoryStub() *RepositoryStub {
	s := &RepositoryStub{}
	s.Cleanup()
	return s
}

func (s *RepositoryStub) Cleanup() {
	s.nextId = 0
	s.projects = map[int]Project{}
	s.changeOrders = map[int]ChangeOrder{}
	s.coTenants = map[int]int{}
	s.expenses = map[int]Expense{}
	s.expTenants = map[int]int{}
}

func (s *RepositoryStub) CreateProject(ctx context.Context, tenantId int, p Project) (int, error) {
	s.nextId++
	p.Id = s.nextId
	p.TenantId = tenantId
	s.projects[p.Id] = p
	return p.Id, nil
}

func (s *RepositoryStub) GetProject(ctx context.Context, tenantId int, id int) (Project, error) {
	p, ok := s.projects[id]
	if !ok || p.TenantId != tenantId {
		return Project{}, ErrProjectNotFound
	}
	return p, nil
}

func (s *RepositoryStub) ListProjects(ctx context.Context, tenantId int) ([]Project, error) {
	result := make([]Project, 0)
	for _, p := range s.projects {
		if p.TenantId == tenantId {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}

func (s *RepositoryStub) UpdateProject(ctx context.Context, tenantId int, p Project) (bool, error) {
	if _, err := s.GetProject(ctx, tenantId, p.Id); err != nil {
		return false, nil
	}
	p.TenantId = tenantId
	s.projects[p.Id] = p
	return true, nil
}

func (s *RepositoryStub) CreateChangeOrder(ctx context.Context, tenantId int, co ChangeOrder) (int, error) {
	s.nextId++
	co.Id = s.nextId
	s.changeOrders[co.Id] = co
	s.coTenants[co.Id] = tenantId
	return co.Id, nil
}

func (s *RepositoryStub) GetChangeOrder(ctx context.Context, tenantId int, id int) (ChangeOrder, error) {
	co, ok := s.changeOrders[id]
	if !ok || s.coTenants[id] != tenantId {
		return ChangeOrder{}, ErrChangeOrderNotFound
	}
	return co, nil
}

func (s *RepositoryStub) ListChangeOrders(ctx context.Context, tenantId int, projectId int) ([]ChangeOrder, error) {
	result := make([]ChangeOrder, 0)
	for id, co := range s.changeOrders {
		if s.coTenants[id] == tenantId && co.ProjectId == projectId {
			result = append(result, co)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}

func (s *RepositoryStub) CreateExpense(ctx context.Context, tenantId int, e Expense) (int, error) {
	s.nextId++
	e.Id = s.nextId
	s.expenses[e.Id] = e
	s.expTenants[e.Id] = tenantId
	return e.Id, nil
}

func (s *RepositoryStub) ListExpenses(ctx context.Context, tenantId int, projectId int) ([]Expense, error) {
	result := make([]Expense, 0)
	for id, e := range s.expenses {
		if s.expTenants[id] == tenantId && e.ProjectId == projectId {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Id < result[j].Id
	})
	return result, nil
}

func (s *RepositoryStub) SumExpenses(ctx context.Context, tenantId int, projectId int, asOf time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	expenses, _ := s.ListExpenses(ctx, tenantId, projectId)
	for _, e := range expenses {
		if !e.Date.After(asOf) {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}
