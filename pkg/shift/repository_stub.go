package shift

import (
	"context"
	"errors"
	"sort"
)

type RepositoryStub struct {
	shifts map[[2]int]Shift // {tenant, employee}
	nextId int
	// FailDeleting makes DeleteShift fail, simulating a lost connection.
	FailDeleting bool
}

func NewRepositoryStub() *RepositoryStub {
	r := &RepositoryStub{}
	r.Cleanup()
	return r
}

func (s *RepositoryStub) ReplaceShift(ctx context.Context, tenantId int, shift Shift) (Shift, error) {
	key := [2]int{tenantId, shift.EmployeeId}
	if existing, ok := s.shifts[key]; ok {
		shift.Id = existing.Id
	} else {
		s.nextId++
		shift.Id = s.nextId
	}
	s.shifts[key] = shift
	return shift, nil
}

func (s *RepositoryStub) DeleteShift(ctx context.Context, tenantId int, employeeId int) error {
	if s.FailDeleting {
		return errors.New("could not execute query: connection reset")
	}
	delete(s.shifts, [2]int{tenantId, employeeId})
	return nil
}

func (s *RepositoryStub) FindShift(ctx context.Context, tenantId int, employeeId int) (Shift, error) {
	return s.shifts[[2]int{tenantId, employeeId}], nil
}

func (s *RepositoryStub) ListShifts(ctx context.Context, tenantId int) ([]Shift, error) {
	result := make([]Shift, 0)
	for key, shift := range s.shifts {
		if key[0] == tenantId {
			result = append(result, shift)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

func (s *RepositoryStub) Cleanup() {
	s.shifts = map[[2]int]Shift{}
	s.nextId = 0
	s.FailDeleting = false
}
