package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type TaxMethod string

const (
	TaxMethodFlat   TaxMethod = "flat"
	TaxMethodTiered TaxMethod = "tiered"
)

// TaxProfile describes how tax is withheld from one employee's gross pay. Rates are
// percentages.
type TaxProfile struct {
	EmployeeId int
	Method     TaxMethod
	Active     bool
	FlatRate   decimal.Decimal
	Brackets   []TaxBracket
}

// TaxBracket taxes the part of gross pay up to UpTo at Rate. A nil UpTo is unbounded.
type TaxBracket struct {
	UpTo *decimal.Decimal
	Rate decimal.Decimal
}

type PayrollPeriod struct {
	Id       int
	TenantId int
	Name     string
	Start    time.Time
	End      time.Time
	// Locked periods are only recomputed when forced.
	Locked         bool
	NeedsRecompute bool
	RecomputedAt   *time.Time
}

// Covers reports whether date falls within the period, both ends included.
func (p PayrollPeriod) Covers(date time.Time) bool {
	return !date.Before(p.Start) && !date.After(p.End)
}

type PayrollRecord struct {
	Id            int
	PeriodId      int
	EmployeeId    int
	HourlyRate    decimal.Decimal
	RegularHours  decimal.Decimal
	OvertimeHours decimal.Decimal
	RegularPay    decimal.Decimal
	OvertimePay   decimal.Decimal
	Adjustments   decimal.Decimal
	GrossPay      decimal.Decimal
	Tax           decimal.Decimal
	NetPay        decimal.Decimal
	Locked        bool
	RecomputedAt  *time.Time
	Entries       []PayrollEntry
}

// PayrollEntry is the part of a record's hours worked on one project. Its
// Hours x HourlyRate is the payroll share of the project's actual cost.
type PayrollEntry struct {
	RecordId   int
	ProjectId  int
	Hours      decimal.Decimal
	HourlyRate decimal.Decimal
}

func (e PayrollEntry) Cost() decimal.Decimal {
	return e.Hours.Mul(e.HourlyRate)
}

// WorkedTime is a time entry as seen by the payroll recompute.
type WorkedTime struct {
	EntryId   int
	ProjectId int
	Date      time.Time
	Hours     decimal.Decimal
}

type TaxBreakdown struct {
	Method TaxMethod
	Gross  decimal.Decimal
	Lines  []BracketLine
	Total  decimal.Decimal
}

// BracketLine is one bracket's share of a tiered (or flat) computation.
type BracketLine struct {
	Lower decimal.Decimal
	Upper *decimal.Decimal
	Span  decimal.Decimal
	Rate  decimal.Decimal
	Tax   decimal.Decimal
}

// RecomputeResult summarises one run of a period recompute.
type RecomputeResult struct {
	RunId        string
	PeriodId     int
	Recomputed   int
	Skipped      int
	RecomputedAt time.Time
}
