package timeentry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type RepositoryStub struct {
	mu      sync.Mutex
	nextId  int
	entries map[int]TimeEntry
	// periodEnds holds the payroll period end of every rolled-up entry.
	periodEnds map[int]time.Time
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{entries: map[int]TimeEntry{}, periodEnds: map[int]time.Time{}}
}

func (s *RepositoryStub) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId = 0
	s.entries = map[int]TimeEntry{}
	s.periodEnds = map[int]time.Time{}
}

func (s *RepositoryStub) Create(ctx context.Context, tenantId int, e TimeEntry) (TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	e.Id = s.nextId
	e.TenantId = tenantId
	e.Created = time.Now()
	s.entries[e.Id] = e
	return e, nil
}

func (s *RepositoryStub) Get(ctx context.Context, tenantId int, id int) (TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.TenantId != tenantId {
		return TimeEntry{}, ErrEntryNotFound
	}
	return e, nil
}

func (s *RepositoryStub) List(ctx context.Context, tenantId int, filter Filter) ([]TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]TimeEntry, 0)
	for _, e := range s.entries {
		if e.TenantId != tenantId || e.Date.Before(filter.From) || e.Date.After(filter.To) {
			continue
		}
		if filter.EmployeeId != nil && e.EmployeeId != *filter.EmployeeId {
			continue
		}
		if filter.ProjectId != nil && e.ProjectId != *filter.ProjectId {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Id < result[j].Id
	})
	return result, nil
}

func (s *RepositoryStub) UpdateNotes(ctx context.Context, tenantId int, id int, notes string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.TenantId != tenantId {
		return false, nil
	}
	e.Notes = notes
	s.entries[id] = e
	return true, nil
}

func (s *RepositoryStub) DeleteUnrolled(ctx context.Context, tenantId int, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.TenantId != tenantId || e.PayrollRecordId != nil {
		return false, nil
	}
	delete(s.entries, id)
	return true, nil
}

func (s *RepositoryStub) SumUnrolledCost(ctx context.Context, tenantId int, projectId int, asOf time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, e := range s.entries {
		if e.TenantId == tenantId && e.ProjectId == projectId && !e.Date.After(asOf) &&
			e.CostRate.IsPositive() && (e.PayrollRecordId == nil || s.periodEnds[e.Id].After(asOf)) {
			total = total.Add(e.Cost())
		}
	}
	return total, nil
}

// MarkRolledUp simulates a payroll recompute linking the entry to a record of a period
// ending on periodEnd.
func (s *RepositoryStub) MarkRolledUp(id int, recordId int, periodEnd time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[id]
	e.PayrollRecordId = &recordId
	s.entries[id] = e
	s.periodEnds[id] = periodEnd
}
