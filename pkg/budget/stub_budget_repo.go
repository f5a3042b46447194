package budget

import (
	"context"
	"sort"
)

type StubBudgetRepo struct {
	nextId         int
	nextProgressId int
	data           map[int]BudgetLine
}

func NewStubBudgetRepo() *StubBudgetRepo {
	return &StubBudgetRepo{data: map[int]BudgetLine{}}
}

func (s *StubBudgetRepo) Cleanup() {
	s.nextId = 0
	s.nextProgressId = 0
	s.data = map[int]BudgetLine{}
}

func (s *StubBudgetRepo) Store(ctx context.Context, tenantId int, line BudgetLine) (int, error) {
	s.nextId++
	line.Id = s.nextId
	line.TenantId = tenantId
	line.Progress = nil
	s.data[line.Id] = line
	return line.Id, nil
}

func (s *StubBudgetRepo) Get(ctx context.Context, tenantId int, id int) (BudgetLine, error) {
	line, ok := s.data[id]
	if !ok || line.TenantId != tenantId {
		return BudgetLine{}, ErrBudgetLineNotFound
	}
	return withSortedProgress(line), nil
}

func (s *StubBudgetRepo) GetAllForProject(ctx context.Context, tenantId int, projectId int) ([]BudgetLine, error) {
	lines := make([]BudgetLine, 0)
	for _, line := range s.data {
		if line.TenantId == tenantId && line.ProjectId == projectId {
			lines = append(lines, withSortedProgress(line))
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Id < lines[j].Id })
	return lines, nil
}

func (s *StubBudgetRepo) Update(ctx context.Context, tenantId int, line BudgetLine) (bool, error) {
	existing, ok := s.data[line.Id]
	if !ok || existing.TenantId != tenantId {
		return false, nil
	}
	existing.Name = line.Name
	existing.PlannedStart = line.PlannedStart
	existing.PlannedFinish = line.PlannedFinish
	existing.BaselineAmount = line.BaselineAmount
	s.data[line.Id] = existing
	return true, nil
}

func (s *StubBudgetRepo) Delete(ctx context.Context, tenantId int, id int) (bool, error) {
	line, ok := s.data[id]
	if !ok || line.TenantId != tenantId {
		return false, nil
	}
	delete(s.data, id)
	return true, nil
}

func (s *StubBudgetRepo) StoreProgress(ctx context.Context, tenantId int, progress BudgetProgress) (int, error) {
	line, ok := s.data[progress.BudgetLineId]
	if !ok || line.TenantId != tenantId {
		return 0, ErrBudgetLineNotFound
	}
	s.nextProgressId++
	progress.Id = s.nextProgressId
	line.Progress = append(line.Progress, progress)
	s.data[line.Id] = line
	return progress.Id, nil
}

func withSortedProgress(line BudgetLine) BudgetLine {
	progress := make([]BudgetProgress, len(line.Progress))
	copy(progress, line.Progress)
	sort.Slice(progress, func(i, j int) bool {
		if !progress[i].Date.Equal(progress[j].Date) {
			return progress[i].Date.Before(progress[j].Date)
		}
		return progress[i].Id < progress[j].Id
	})
	line.Progress = progress
	return line
}
