package event_bus

import "time"

const TimeEntryCreated EventType = "time_entry.created"

type TimeEntryCreatedData struct {
	Id         int
	TenantId   int
	EmployeeId int
	ProjectId  int
	Date       time.Time
}
