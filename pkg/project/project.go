package project

import (
	"time"

	"github.com/shopspring/decimal"
)

type Project struct {
	Id       int
	TenantId int
	Name     string
	// DefaultLaborRate is billed for time entries without a change order override.
	DefaultLaborRate *decimal.Decimal
}

type ChangeOrder struct {
	Id        int
	ProjectId int
	Title     string
	// OverrideRate replaces the project's default labor rate for time booked on this
	// change order.
	OverrideRate *decimal.Decimal
}

// Expense is an append-only cost observation counted into actual cost from its date on.
type Expense struct {
	Id          int
	ProjectId   int
	Date        time.Time
	Amount      decimal.Decimal
	Description string
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
