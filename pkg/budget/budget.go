package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetLine is a baseline amount of work on a project, optionally scheduled between
// PlannedStart and PlannedFinish.
type BudgetLine struct {
	Id             int
	TenantId       int
	ProjectId      int
	Name           string
	PlannedStart   *time.Time
	PlannedFinish  *time.Time
	BaselineAmount decimal.Decimal
	// Progress is ordered by Date, then Id.
	Progress []BudgetProgress
}

// BudgetProgress is a point-in-time percent-complete observation. Records are never
// edited; a correction is a newer record.
type BudgetProgress struct {
	Id              int
	BudgetLineId    int
	Date            time.Time
	PercentComplete decimal.Decimal
}

// IsScheduled reports whether both planned dates are known.
func (l BudgetLine) IsScheduled() bool {
	return l.PlannedStart != nil && l.PlannedFinish != nil
}
