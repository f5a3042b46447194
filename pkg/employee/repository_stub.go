package employee

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

type RepositoryStub struct {
	nextId    int
	employees map[int]Employee
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{employees: map[int]Employee{}}
}

func (s *RepositoryStub) Create(ctx context.Context, tenantId int, e Employee) (int, error) {
	s.nextId++
	e.Id = s.nextId
	e.TenantId = tenantId
	s.employees[e.Id] = e
	return e.Id, nil
}

func (s *RepositoryStub) Get(ctx context.Context, tenantId int, id int) (Employee, error) {
	e, ok := s.employees[id]
	if !ok || e.TenantId != tenantId {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, nil
}

func (s *RepositoryStub) List(ctx context.Context, tenantId int) ([]Employee, error) {
	result := make([]Employee, 0)
	for _, e := range s.employees {
		if e.TenantId == tenantId {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}

func (s *RepositoryStub) UpdateRate(ctx context.Context, tenantId int, id int, rate decimal.Decimal) (bool, error) {
	e, err := s.Get(ctx, tenantId, id)
	if err != nil {
		return false, nil
	}
	e.HourlyRate = rate
	s.employees[id] = e
	return true, nil
}

func (s *RepositoryStub) SetActive(ctx context.Context, tenantId int, id int, active bool) (bool, error) {
	e, err := s.Get(ctx, tenantId, id)
	if err != nil {
		return false, nil
	}
	e.Active = active
	s.employees[id] = e
	return true, nil
}

func (s *RepositoryStub) Cleanup() {
	s.nextId = 0
	s.employees = map[int]Employee{}
}
