package earned_value

import (
	"time"

	"github.com/buildledger/buildledger/internal/utils"
	"github.com/buildledger/buildledger/pkg/budget"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Snapshot is a project's earned-value position on AsOf. SPI, CPI and
// PercentCompleteCost are nil when their denominator is zero.
type Snapshot struct {
	ProjectId           int
	AsOf                time.Time
	BaselineTotal       decimal.Decimal
	PV                  decimal.Decimal
	EV                  decimal.Decimal
	AC                  decimal.Decimal
	SPI                 *decimal.Decimal
	CPI                 *decimal.Decimal
	PercentCompleteCost *decimal.Decimal
	Lines               []LineSnapshot
	Costs               []CostContribution
}

type LineSnapshot struct {
	LineId          int
	Name            string
	Baseline        decimal.Decimal
	PlannedFraction decimal.Decimal
	EarnedFraction  decimal.Decimal
	PV              decimal.Decimal
	EV              decimal.Decimal
}

// CostContribution is one actual-cost source's share of AC. Failed sources report zero.
type CostContribution struct {
	Source string
	Amount decimal.Decimal
	Failed bool
}

// PlannedFraction is the share of the line's baseline scheduled to be done by asOf,
// interpolated linearly over whole days between planned start and finish. Lines
// without both dates, or finishing before they start, are fully planned.
func PlannedFraction(line budget.BudgetLine, asOf time.Time) decimal.Decimal {
	if !line.IsScheduled() {
		return decimal.NewFromInt(1)
	}
	asOf = utils.DateOf(asOf)
	start, finish := utils.DateOf(*line.PlannedStart), utils.DateOf(*line.PlannedFinish)
	if finish.Before(start) {
		return decimal.NewFromInt(1)
	}
	if !asOf.After(start) {
		return decimal.Zero
	}
	if !asOf.Before(finish) {
		return decimal.NewFromInt(1)
	}
	total := wholeDays(start, finish)
	if total <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(wholeDays(start, asOf)).Div(decimal.NewFromInt(total))
}

// EarnedFraction is the latest reported percent complete on or before asOf, as a
// fraction. Progress on the same date resolves to the higher Id.
func EarnedFraction(line budget.BudgetLine, asOf time.Time) decimal.Decimal {
	asOf = utils.DateOf(asOf)
	var latest *budget.BudgetProgress
	for i := range line.Progress {
		p := &line.Progress[i]
		if utils.DateOf(p.Date).After(asOf) {
			continue
		}
		if latest == nil || p.Date.After(latest.Date) || (p.Date.Equal(latest.Date) && p.Id > latest.Id) {
			latest = p
		}
	}
	if latest == nil {
		return decimal.Zero
	}
	return latest.PercentComplete.Div(hundred)
}

// Compute derives PV, EV and the performance indices for lines against actualCost.
// Money is rounded to cents and ratios to four places only after summation.
func Compute(lines []budget.BudgetLine, actualCost decimal.Decimal, asOf time.Time) Snapshot {
	snapshot := Snapshot{
		AsOf:  utils.DateOf(asOf),
		Lines: make([]LineSnapshot, 0, len(lines)),
	}
	baselineTotal, pv, ev := decimal.Zero, decimal.Zero, decimal.Zero
	for _, line := range lines {
		planned := PlannedFraction(line, asOf)
		earned := EarnedFraction(line, asOf)
		linePV := line.BaselineAmount.Mul(planned)
		lineEV := line.BaselineAmount.Mul(earned)

		baselineTotal = baselineTotal.Add(line.BaselineAmount)
		pv = pv.Add(linePV)
		ev = ev.Add(lineEV)
		snapshot.Lines = append(snapshot.Lines, LineSnapshot{
			LineId:          line.Id,
			Name:            line.Name,
			Baseline:        line.BaselineAmount,
			PlannedFraction: planned.Round(4),
			EarnedFraction:  earned.Round(4),
			PV:              linePV.Round(2),
			EV:              lineEV.Round(2),
		})
	}

	snapshot.BaselineTotal = baselineTotal.Round(2)
	snapshot.PV = pv.Round(2)
	snapshot.EV = ev.Round(2)
	snapshot.AC = actualCost.Round(2)
	snapshot.SPI = ratio(ev, pv, decimal.NewFromInt(1))
	snapshot.CPI = ratio(ev, actualCost, decimal.NewFromInt(1))
	snapshot.PercentCompleteCost = ratio(ev, baselineTotal, hundred)
	return snapshot
}

func ratio(numerator, denominator, scale decimal.Decimal) *decimal.Decimal {
	if denominator.IsZero() {
		return nil
	}
	r := numerator.Mul(scale).Div(denominator).Round(4)
	return &r
}

func wholeDays(from, to time.Time) int64 {
	return int64(to.Sub(from).Hours() / 24)
}
