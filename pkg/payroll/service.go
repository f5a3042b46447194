package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/buildledger/internal/config"
	"github.com/buildledger/buildledger/internal/event_bus"
	"github.com/buildledger/buildledger/internal/utils"
	"github.com/buildledger/buildledger/pkg/employee"
	"github.com/buildledger/buildledger/pkg/user"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrPeriodLocked = errors.New("payroll period is locked")
var ErrInvalidPeriod = errors.New("invalid payroll period")

type Service interface {
	CreatePeriod(ctx context.Context, period PayrollPeriod) (PayrollPeriod, error)
	GetPeriod(ctx context.Context, id int) (PayrollPeriod, error)
	ListPeriods(ctx context.Context) ([]PayrollPeriod, error)
	ListRecords(ctx context.Context, periodId int) ([]PayrollRecord, error)
	AddRecord(ctx context.Context, periodId int, employeeId int, adjustments decimal.Decimal) (PayrollRecord, error)
	LockPeriod(ctx context.Context, id int) error
	UnlockPeriod(ctx context.Context, id int) error
	SetRecordLock(ctx context.Context, recordId int, locked bool) error
	RecomputePeriod(ctx context.Context, periodId int, force bool) (RecomputeResult, error)
	RecomputeStalePeriods(ctx context.Context) (int, error)
	GetTaxProfile(ctx context.Context, employeeId int) (TaxProfile, error)
	SaveTaxProfile(ctx context.Context, profile TaxProfile) (TaxProfile, error)
	PreviewTax(ctx context.Context, employeeId int, gross decimal.Decimal) (TaxBreakdown, error)
}

// EmployeeRates provides the hourly rate paid to an employee.
type EmployeeRates interface {
	Get(ctx context.Context, tenantId int, id int) (employee.Employee, error)
}

type ServiceImpl struct {
	repo               Repository
	employees          EmployeeRates
	clock              utils.Clock
	overtimeThreshold  decimal.Decimal
	overtimeMultiplier decimal.Decimal
}

func NewService(repo Repository, employees EmployeeRates, clock utils.Clock, cfg config.Payroll) *ServiceImpl {
	return &ServiceImpl{
		repo:               repo,
		employees:          employees,
		clock:              clock,
		overtimeThreshold:  decimal.NewFromFloat(cfg.OvertimeThreshold),
		overtimeMultiplier: decimal.NewFromFloat(cfg.OvertimeMultiplier),
	}
}

// Subscribe flags payroll periods for recomputation whenever time is logged in them.
func (s *ServiceImpl) Subscribe(bus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped(bus, event_bus.TimeEntryCreated, func(e event_bus.EventT[event_bus.TimeEntryCreatedData]) error {
		count, err := s.repo.MarkStale(e.Context(), e.Data.TenantId, e.Data.Date)
		if err != nil {
			return fmt.Errorf("failed to flag payroll periods for time entry %d: %w", e.Data.Id, err)
		}
		if count > 0 {
			log.Debugf("time entry %d flagged %d payroll period(s) for recompute", e.Data.Id, count)
		}
		return nil
	})
}

func (s *ServiceImpl) CreatePeriod(ctx context.Context, period PayrollPeriod) (PayrollPeriod, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return PayrollPeriod{}, fmt.Errorf("failed to get current user: %w", err)
	}
	period.Start = utils.DateOf(period.Start)
	period.End = utils.DateOf(period.End)
	if period.Name == "" {
		return PayrollPeriod{}, fmt.Errorf("%w: name is required", ErrInvalidPeriod)
	}
	if period.End.Before(period.Start) {
		return PayrollPeriod{}, fmt.Errorf("%w: end before start", ErrInvalidPeriod)
	}
	return s.repo.CreatePeriod(ctx, tenantId, period)
}

func (s *ServiceImpl) GetPeriod(ctx context.Context, id int) (PayrollPeriod, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return PayrollPeriod{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetPeriod(ctx, tenantId, id)
}

func (s *ServiceImpl) ListPeriods(ctx context.Context) ([]PayrollPeriod, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.ListPeriods(ctx, tenantId)
}

func (s *ServiceImpl) ListRecords(ctx context.Context, periodId int) ([]PayrollRecord, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if _, err := s.repo.GetPeriod(ctx, tenantId, periodId); err != nil {
		return nil, err
	}
	return s.repo.ListRecords(ctx, tenantId, periodId)
}

// AddRecord puts an employee on an unlocked period. Pay is filled in by the next
// recompute, which the period is flagged for.
func (s *ServiceImpl) AddRecord(ctx context.Context, periodId int, employeeId int, adjustments decimal.Decimal) (PayrollRecord, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return PayrollRecord{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if _, err := s.employees.Get(ctx, tenantId, employeeId); err != nil {
		return PayrollRecord{}, err
	}

	var created PayrollRecord
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		period, err := repo.LockPeriodForUpdate(ctx, tenantId, periodId)
		if err != nil {
			return err
		}
		if period.Locked {
			return ErrPeriodLocked
		}
		created, err = repo.CreateRecord(ctx, tenantId, PayrollRecord{
			PeriodId:    periodId,
			EmployeeId:  employeeId,
			Adjustments: adjustments,
		})
		if err != nil {
			return err
		}
		return repo.MarkPeriodStale(ctx, tenantId, periodId)
	})
	if err != nil {
		return PayrollRecord{}, err
	}
	return created, nil
}

func (s *ServiceImpl) LockPeriod(ctx context.Context, id int) error {
	return s.setPeriodLocked(ctx, id, true)
}

func (s *ServiceImpl) UnlockPeriod(ctx context.Context, id int) error {
	return s.setPeriodLocked(ctx, id, false)
}

func (s *ServiceImpl) setPeriodLocked(ctx context.Context, id int, locked bool) error {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	updated, err := s.repo.SetPeriodLocked(ctx, tenantId, id, locked)
	if err != nil {
		return err
	}
	if !updated {
		return ErrPeriodNotFound
	}
	log.Infof("payroll period %d locked=%t", id, locked)
	return nil
}

func (s *ServiceImpl) SetRecordLock(ctx context.Context, recordId int, locked bool) error {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	updated, err := s.repo.SetRecordLocked(ctx, tenantId, recordId, locked)
	if err != nil {
		return err
	}
	if !updated {
		return ErrRecordNotFound
	}
	return nil
}

// RecomputePeriod recomputes every record of the period in a single transaction. A
// locked period is rejected with ErrPeriodLocked unless force is set; force also
// recomputes individually locked records.
func (s *ServiceImpl) RecomputePeriod(ctx context.Context, periodId int, force bool) (RecomputeResult, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return RecomputeResult{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.recompute(ctx, tenantId, periodId, force)
}

func (s *ServiceImpl) recompute(ctx context.Context, tenantId int, periodId int, force bool) (RecomputeResult, error) {
	now := s.clock.Now().UTC()
	result := RecomputeResult{RunId: uuid.NewString(), PeriodId: periodId, RecomputedAt: now}
	logger := log.WithFields(log.Fields{"run": result.RunId, "tenant": tenantId, "period": periodId})

	err := s.repo.WithTransaction(ctx, func(repo Repository) error {
		period, err := repo.LockPeriodForUpdate(ctx, tenantId, periodId)
		if err != nil {
			return err
		}
		if period.Locked && !force {
			return ErrPeriodLocked
		}
		if period.Locked {
			logger.Warn("recomputing locked payroll period on explicit override")
		}

		records, err := repo.ListRecords(ctx, tenantId, periodId)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if rec.Locked && !force {
				logger.Debugf("skipping locked payroll record %d", rec.Id)
				result.Skipped++
				continue
			}
			if err := s.recomputeRecord(ctx, repo, tenantId, period, rec, now); err != nil {
				return fmt.Errorf("payroll record %d: %w", rec.Id, err)
			}
			result.Recomputed++
		}
		return repo.FinishRecompute(ctx, tenantId, periodId, now)
	})
	if err != nil {
		if !errors.Is(err, ErrPeriodLocked) {
			logger.Errorf("payroll recompute rolled back: %v", err)
		}
		return RecomputeResult{}, err
	}
	logger.Infof("payroll period recomputed: %d record(s), %d skipped", result.Recomputed, result.Skipped)
	return result, nil
}

func (s *ServiceImpl) recomputeRecord(ctx context.Context, repo Repository, tenantId int, period PayrollPeriod, rec PayrollRecord, now time.Time) error {
	emp, err := s.employees.Get(ctx, tenantId, rec.EmployeeId)
	if err != nil {
		return err
	}
	profile, err := repo.GetTaxProfile(ctx, tenantId, rec.EmployeeId)
	if err != nil && !errors.Is(err, ErrTaxProfileNotFound) {
		return err
	}
	worked, err := repo.ListWorkedTime(ctx, tenantId, rec.EmployeeId, rec.Id, period.Start, period.End)
	if err != nil {
		return err
	}

	rate := emp.HourlyRate
	regular, overtime := SplitOvertime(worked, s.overtimeThreshold)
	rec.HourlyRate = rate
	rec.RegularHours = regular
	rec.OvertimeHours = overtime
	rec.RegularPay = regular.Mul(rate).Round(2)
	rec.OvertimePay = overtime.Mul(rate).Mul(s.overtimeMultiplier).Round(2)
	rec.GrossPay = rec.RegularPay.Add(rec.OvertimePay).Add(rec.Adjustments)
	rec.Tax = CalculateTax(profile, rec.GrossPay)
	rec.NetPay = rec.GrossPay.Sub(rec.Tax)
	rec.RecomputedAt = &now

	if err := repo.ReplaceEntries(ctx, tenantId, rec.Id, projectEntries(rec.Id, worked, rate)); err != nil {
		return err
	}
	entryIds := make([]int, 0, len(worked))
	for _, w := range worked {
		entryIds = append(entryIds, w.EntryId)
	}
	if err := repo.LinkTimeEntries(ctx, tenantId, rec.Id, entryIds); err != nil {
		return err
	}
	return repo.SaveRecordTotals(ctx, tenantId, rec)
}

// RecomputeStalePeriods recomputes every flagged period across tenants. Locked periods
// are left flagged. A failing period does not stop the others.
func (s *ServiceImpl) RecomputeStalePeriods(ctx context.Context) (int, error) {
	periods, err := s.repo.ListStalePeriods(ctx)
	if err != nil {
		return 0, err
	}
	recomputed := 0
	var errs []error
	for _, period := range periods {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if period.Locked {
			log.Infof("payroll period %d (tenant %d) needs recompute but is locked, skipping", period.Id, period.TenantId)
			continue
		}
		_, err := s.recompute(ctx, period.TenantId, period.Id, false)
		if errors.Is(err, ErrPeriodLocked) {
			log.Infof("payroll period %d was locked before recompute, skipping", period.Id)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("period %d: %w", period.Id, err))
			continue
		}
		recomputed++
	}
	return recomputed, errors.Join(errs...)
}

func (s *ServiceImpl) GetTaxProfile(ctx context.Context, employeeId int) (TaxProfile, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return TaxProfile{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetTaxProfile(ctx, tenantId, employeeId)
}

func (s *ServiceImpl) SaveTaxProfile(ctx context.Context, profile TaxProfile) (TaxProfile, error) {
	tenantId, err := user.CurrentTenant(ctx)
	if err != nil {
		return TaxProfile{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := ValidateProfile(profile); err != nil {
		return TaxProfile{}, err
	}
	if _, err := s.employees.Get(ctx, tenantId, profile.EmployeeId); err != nil {
		return TaxProfile{}, err
	}
	if profile.Method == TaxMethodFlat {
		profile.Brackets = nil
	} else {
		profile.FlatRate = decimal.Zero
		profile.Brackets = sortedBrackets(profile.Brackets)
	}
	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		return repo.SaveTaxProfile(ctx, tenantId, profile)
	})
	if err != nil {
		return TaxProfile{}, err
	}
	return s.repo.GetTaxProfile(ctx, tenantId, profile.EmployeeId)
}

// PreviewTax shows how gross would be taxed under the employee's profile without
// touching any record. Employees without a profile preview as untaxed.
func (s *ServiceImpl) PreviewTax(ctx context.Context, employeeId int, gross decimal.Decimal) (TaxBreakdown, error) {
	profile, err := s.GetTaxProfile(ctx, employeeId)
	if err != nil && !errors.Is(err, ErrTaxProfileNotFound) {
		return TaxBreakdown{}, err
	}
	return PreviewTax(profile, gross), nil
}
