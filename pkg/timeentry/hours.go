package timeentry

import "github.com/shopspring/decimal"

var (
	lunchStart         = NewClockTime(12, 30, 0)
	lunchBreak         = decimal.RequireFromString("0.5")
	lunchMinShiftHours = decimal.NewFromInt(5)
	secondsPerHour     = decimal.NewFromInt(3600)
)

// CalculateHours returns the paid hours between start and end. An end before the start
// means the shift ran past midnight. Shifts of at least five hours that run from before
// 12:30 to 12:30 or later lose half an hour of unpaid lunch. The result is never
// negative and is rounded half-up to two decimal places.
func CalculateHours(start, end ClockTime) decimal.Decimal {
	from, to := int64(start), int64(end)
	if to < from {
		to += secondsPerDay
	}

	hours := decimal.NewFromInt(to - from).Div(secondsPerHour)
	if from < int64(lunchStart) && to >= int64(lunchStart) && hours.GreaterThanOrEqual(lunchMinShiftHours) {
		hours = hours.Sub(lunchBreak)
	}
	if hours.IsNegative() {
		hours = decimal.Zero
	}
	return hours.Round(2)
}
