package shift

import (
	"time"
)

// Shift is an employee's open clock-in. Each employee has at most one; clocking out
// turns it into a time entry.
type Shift struct {
	Id            int
	EmployeeId    int
	ProjectId     int
	ChangeOrderId *int
	StartTime     time.Time
	Notes         string
}
