package budget

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildledger/buildledger/internal/utils"
	"github.com/buildledger/buildledger/pkg/user"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrNegativeBaseline = errors.New("baseline amount must not be negative")
var ErrInvalidPercent = errors.New("percent complete must be between 0 and 100")

var hundred = decimal.NewFromInt(100)

type Service interface {
	CreateLine(ctx context.Context, line BudgetLine) (BudgetLine, error)
	GetLine(ctx context.Context, id int) (BudgetLine, error)
	ListLines(ctx context.Context, projectId int) ([]BudgetLine, error)
	UpdateLine(ctx context.Context, line BudgetLine) (BudgetLine, error)
	DeleteLine(ctx context.Context, id int) error
	RecordProgress(ctx context.Context, progress BudgetProgress) (BudgetProgress, error)
}

type ServiceImpl struct {
	repo BudgetRepo
}

func NewBudgetService(repo BudgetRepo) *ServiceImpl {
	return &ServiceImpl{repo: repo}
}

func (s *ServiceImpl) CreateLine(ctx context.Context, line BudgetLine) (BudgetLine, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return BudgetLine{}, fmt.Errorf("failed to get current user: %w", err)
	}
	line = normalize(line)
	if err := validateLine(line); err != nil {
		return BudgetLine{}, err
	}
	id, err := s.repo.Store(ctx, tenantId, line)
	if err != nil {
		return BudgetLine{}, err
	}
	line.Id = id
	line.TenantId = tenantId
	line.Progress = []BudgetProgress{}
	return line, nil
}

func (s *ServiceImpl) GetLine(ctx context.Context, id int) (BudgetLine, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return BudgetLine{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.Get(ctx, tenantId, id)
}

func (s *ServiceImpl) ListLines(ctx context.Context, projectId int) ([]BudgetLine, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetAllForProject(ctx, tenantId, projectId)
}

func (s *ServiceImpl) UpdateLine(ctx context.Context, line BudgetLine) (BudgetLine, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return BudgetLine{}, fmt.Errorf("failed to get current user: %w", err)
	}
	line = normalize(line)
	if err := validateLine(line); err != nil {
		return BudgetLine{}, err
	}
	updated, err := s.repo.Update(ctx, tenantId, line)
	if err != nil {
		return BudgetLine{}, err
	}
	if !updated {
		return BudgetLine{}, ErrBudgetLineNotFound
	}
	return s.repo.Get(ctx, tenantId, line.Id)
}

func (s *ServiceImpl) DeleteLine(ctx context.Context, id int) error {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	deleted, err := s.repo.Delete(ctx, tenantId, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrBudgetLineNotFound
	}
	return nil
}

// RecordProgress appends a percent-complete observation to a line.
func (s *ServiceImpl) RecordProgress(ctx context.Context, progress BudgetProgress) (BudgetProgress, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return BudgetProgress{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if progress.PercentComplete.IsNegative() || progress.PercentComplete.GreaterThan(hundred) {
		return BudgetProgress{}, ErrInvalidPercent
	}
	progress.Date = utils.DateOf(progress.Date)
	id, err := s.repo.StoreProgress(ctx, tenantId, progress)
	if err != nil {
		return BudgetProgress{}, err
	}
	progress.Id = id
	log.Debugf("budget line %d progress %s%% on %s", progress.BudgetLineId, progress.PercentComplete,
		progress.Date.Format("2006-01-02"))
	return progress, nil
}

func normalize(line BudgetLine) BudgetLine {
	if line.PlannedStart != nil {
		d := utils.DateOf(*line.PlannedStart)
		line.PlannedStart = &d
	}
	if line.PlannedFinish != nil {
		d := utils.DateOf(*line.PlannedFinish)
		line.PlannedFinish = &d
	}
	return line
}

func validateLine(line BudgetLine) error {
	if line.BaselineAmount.IsNegative() {
		return ErrNegativeBaseline
	}
	if line.IsScheduled() && line.PlannedFinish.Before(*line.PlannedStart) {
		log.Warnf("budget line %q finishes before it starts, it counts as fully planned", line.Name)
	}
	return nil
}
