package employee

import "github.com/shopspring/decimal"

type Employee struct {
	Id       int
	TenantId int
	Name     string
	// HourlyRate is the employee's current cost rate. Time entries copy it when they are
	// created, so changing it only affects entries recorded afterwards.
	HourlyRate decimal.Decimal
	Active     bool
}
