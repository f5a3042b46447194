package app

import (
	"time"

	"github.com/buildledger/buildledger/internal/config"
	"github.com/buildledger/buildledger/internal/event_bus"
	"github.com/buildledger/buildledger/internal/utils"
	"github.com/buildledger/buildledger/pkg/budget"
	"github.com/buildledger/buildledger/pkg/earned_value"
	"github.com/buildledger/buildledger/pkg/employee"
	"github.com/buildledger/buildledger/pkg/payroll"
	"github.com/buildledger/buildledger/pkg/project"
	"github.com/buildledger/buildledger/pkg/shift"
	"github.com/buildledger/buildledger/pkg/timeentry"
	"github.com/buildledger/buildledger/pkg/user"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Cost source names reported in earned value snapshots.
const (
	CostSourceExpenses    = "expenses"
	CostSourcePayroll     = "payroll"
	CostSourceTimeEntries = "time_entries"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock    utils.Clock
	EventBus *event_bus.EventBus

	UserService user.Service
	UserHandler *user.Handler

	EmployeeRepo    *employee.RepositoryImpl
	EmployeeService *employee.ServiceImpl
	EmployeeHandler *employee.Handler

	ProjectRepo    *project.RepositoryImpl
	ProjectService *project.ServiceImpl
	ProjectHandler *project.Handler

	TimeEntryRepo    *timeentry.RepositoryImpl
	TimeEntryService *timeentry.ServiceImpl
	TimeEntryHandler *timeentry.Handler

	ShiftService *shift.ServiceImpl
	ShiftHandler *shift.Handler

	BudgetRepo    budget.BudgetRepo
	BudgetService *budget.ServiceImpl
	BudgetHandler *budget.BudgetHandler

	PayrollRepo      payroll.Repository
	PayrollService   *payroll.ServiceImpl
	PayrollHandler   *payroll.Handler
	PayrollScheduler *payroll.Scheduler

	EarnedValueService *earned_value.ServiceImpl
	EarnedValueHandler *earned_value.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = &utils.SystemClock{}
	deps.EventBus = event_bus.NewEventBus()

	deps.UserService = user.NewUserService(user.NewUserRepo(db))
	deps.UserHandler = user.NewHandler(deps.UserService)

	deps.EmployeeRepo = employee.NewRepository(db)
	deps.EmployeeService = employee.NewService(deps.EmployeeRepo)
	deps.EmployeeHandler = employee.NewHandler(deps.EmployeeService)

	deps.ProjectRepo = project.NewRepository(db)
	deps.ProjectService = project.NewService(deps.ProjectRepo)
	deps.ProjectHandler = project.NewHandler(deps.ProjectService)

	deps.TimeEntryRepo = timeentry.NewRepository(db)
	deps.TimeEntryService = timeentry.NewService(deps.TimeEntryRepo, deps.EmployeeService, deps.ProjectService, deps.EventBus)
	deps.TimeEntryHandler = timeentry.NewHandler(deps.TimeEntryService)

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warnf("unknown timezone %q, using UTC for shifts: %v", cfg.Timezone, err)
		location = time.UTC
	}
	deps.ShiftService = shift.NewService(shift.NewRepository(db), deps.TimeEntryService, deps.EmployeeService, deps.Clock, location)
	deps.ShiftHandler = shift.NewHandler(deps.ShiftService)

	deps.BudgetRepo = budget.NewBudgetRepo(db)
	deps.BudgetService = budget.NewBudgetService(deps.BudgetRepo)
	deps.BudgetHandler = budget.NewBudgetHandler(deps.BudgetService)

	deps.PayrollRepo = payroll.NewRepo(db)
	deps.PayrollService = payroll.NewService(deps.PayrollRepo, deps.EmployeeRepo, deps.Clock, cfg.Payroll)
	deps.PayrollService.Subscribe(deps.EventBus)
	deps.PayrollHandler = payroll.NewHandler(deps.PayrollService)
	if cfg.Payroll.Scheduler.Enabled {
		deps.PayrollScheduler = payroll.NewScheduler(deps.PayrollService, cfg.Payroll.Scheduler.Interval)
	}

	deps.EarnedValueService = earned_value.NewService(deps.ProjectService, deps.BudgetService,
		earned_value.CostSource{Name: CostSourceExpenses, Sum: deps.ProjectRepo.SumExpenses},
		earned_value.CostSource{Name: CostSourcePayroll, Sum: deps.PayrollRepo.SumEntryCost},
		earned_value.CostSource{Name: CostSourceTimeEntries, Sum: deps.TimeEntryRepo.SumUnrolledCost},
	)
	deps.EarnedValueHandler = earned_value.NewHandler(deps.EarnedValueService, deps.Clock)

	return deps
}
