package timeentry

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ClockTime is a wall-clock time of day, stored as seconds since midnight.
type ClockTime int

const secondsPerDay = 24 * 60 * 60

func NewClockTime(hour, minute, second int) ClockTime {
	return ClockTime(hour*3600 + minute*60 + second)
}

// ParseClockTime accepts "15:04" and "15:04:05".
func ParseClockTime(s string) (ClockTime, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return NewClockTime(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q, expected HH:MM or HH:MM:SS", s)
}

func (c ClockTime) Valid() bool {
	return c >= 0 && c < secondsPerDay
}

func (c ClockTime) String() string {
	s := int(c)
	if s%60 != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%02d:%02d", s/3600, s%3600/60)
}

type TimeEntry struct {
	Id            int
	TenantId      int
	EmployeeId    int
	ProjectId     int
	ChangeOrderId *int
	Date          time.Time
	Start         ClockTime
	End           ClockTime
	Notes         string
	// Hours, CostRate and BillableRate are fixed when the entry is created.
	Hours        decimal.Decimal
	CostRate     decimal.Decimal
	BillableRate decimal.Decimal
	// PayrollRecordId is set once a payroll recompute has rolled the entry up.
	PayrollRecordId *int
	Created         time.Time
}

// Cost is the entry's labor cost at its frozen cost rate.
func (e TimeEntry) Cost() decimal.Decimal {
	return e.Hours.Mul(e.CostRate)
}

// Billable is the amount billable to the client at the frozen billable rate.
func (e TimeEntry) Billable() decimal.Decimal {
	return e.Hours.Mul(e.BillableRate)
}
