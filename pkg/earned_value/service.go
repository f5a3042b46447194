package earned_value

import (
	"context"
	"fmt"
	"time"

	"github.com/buildledger/buildledger/pkg/budget"
	"github.com/buildledger/buildledger/pkg/project"
	"github.com/buildledger/buildledger/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// CostFunc sums one kind of actual cost booked on a project up to and including asOf.
type CostFunc func(ctx context.Context, tenantId int, projectId int, asOf time.Time) (decimal.Decimal, error)

type CostSource struct {
	Name string
	Sum  CostFunc
}

type Service interface {
	ComputeProjectEV(ctx context.Context, projectId int, asOf time.Time) (Snapshot, error)
}

type BudgetReader interface {
	ListLines(ctx context.Context, projectId int) ([]budget.BudgetLine, error)
}

type ProjectReader interface {
	GetProject(ctx context.Context, id int) (project.Project, error)
}

type ServiceImpl struct {
	projects ProjectReader
	budgets  BudgetReader
	sources  []CostSource
}

func NewService(projects ProjectReader, budgets BudgetReader, sources ...CostSource) *ServiceImpl {
	return &ServiceImpl{projects: projects, budgets: budgets, sources: sources}
}

// ComputeProjectEV reads the project's budget lines and actual costs and computes its
// earned-value snapshot. It does not write anything.
func (s *ServiceImpl) ComputeProjectEV(ctx context.Context, projectId int, asOf time.Time) (Snapshot, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if _, err := s.projects.GetProject(ctx, projectId); err != nil {
		return Snapshot{}, err
	}
	lines, err := s.budgets.ListLines(ctx, projectId)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load budget lines: %w", err)
	}

	actualCost, costs := s.actualCost(ctx, tenantId, projectId, asOf)
	snapshot := Compute(lines, actualCost, asOf)
	snapshot.ProjectId = projectId
	snapshot.Costs = costs
	return snapshot, nil
}

// actualCost never fails: a source that errors is logged and counted as zero.
func (s *ServiceImpl) actualCost(ctx context.Context, tenantId int, projectId int, asOf time.Time) (decimal.Decimal, []CostContribution) {
	total := decimal.Zero
	costs := make([]CostContribution, 0, len(s.sources))
	for _, source := range s.sources {
		amount, err := s.sum(ctx, source, tenantId, projectId, asOf)
		if err != nil {
			log.Warnf("actual cost source %s failed for project %d, counting it as zero: %v", source.Name, projectId, err)
			costs = append(costs, CostContribution{Source: source.Name, Amount: decimal.Zero, Failed: true})
			continue
		}
		total = total.Add(amount)
		costs = append(costs, CostContribution{Source: source.Name, Amount: amount.Round(2)})
	}
	return total, costs
}

func (s *ServiceImpl) sum(ctx context.Context, source CostSource, tenantId int, projectId int, asOf time.Time) (amount decimal.Decimal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cost source panic: %v", r)
		}
	}()
	return source.Sum(ctx, tenantId, projectId, asOf)
}
