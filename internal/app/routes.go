package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Users
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")
	r.HandleFunc("/api/user", deps.UserHandler.ListUsers).Methods("GET")

	// Employees
	r.HandleFunc("/api/employee", deps.EmployeeHandler.CreateEmployee).Methods("POST")
	r.HandleFunc("/api/employee", deps.EmployeeHandler.ListEmployees).Methods("GET")
	r.HandleFunc("/api/employee/{employeeId}", deps.EmployeeHandler.GetEmployee).Methods("GET")
	r.HandleFunc("/api/employee/{employeeId}/rate", deps.EmployeeHandler.UpdateRate).Methods("PUT")
	r.HandleFunc("/api/employee/{employeeId}", deps.EmployeeHandler.DeactivateEmployee).Methods("DELETE")

	// Projects, change orders and expenses
	r.HandleFunc("/api/project", deps.ProjectHandler.CreateProject).Methods("POST")
	r.HandleFunc("/api/project", deps.ProjectHandler.ListProjects).Methods("GET")
	r.HandleFunc("/api/project/{projectId}", deps.ProjectHandler.GetProject).Methods("GET")
	r.HandleFunc("/api/project/{projectId}", deps.ProjectHandler.UpdateProject).Methods("PUT")
	r.HandleFunc("/api/project/{projectId}/changeorder", deps.ProjectHandler.CreateChangeOrder).Methods("POST")
	r.HandleFunc("/api/project/{projectId}/changeorder", deps.ProjectHandler.ListChangeOrders).Methods("GET")
	r.HandleFunc("/api/project/{projectId}/expense", deps.ProjectHandler.RecordExpense).Methods("POST")
	r.HandleFunc("/api/project/{projectId}/expense", deps.ProjectHandler.ListExpenses).Methods("GET")

	// Shifts
	r.HandleFunc("/api/shift", deps.ShiftHandler.ListOpenShifts).Methods("GET")
	r.HandleFunc("/api/employee/{employeeId}/shift", deps.ShiftHandler.GetShift).Methods("GET")
	r.HandleFunc("/api/employee/{employeeId}/shift", deps.ShiftHandler.ClockIn).Methods("POST")
	r.HandleFunc("/api/employee/{employeeId}/shift", deps.ShiftHandler.ClockOut).Methods("DELETE")
	r.HandleFunc("/api/employee/{employeeId}/shift/start", deps.ShiftHandler.AdjustStart).Methods("PATCH")

	// Budget lines
	r.HandleFunc("/api/project/{projectId}/budget", deps.BudgetHandler.Register).Methods("POST")
	r.HandleFunc("/api/project/{projectId}/budget", deps.BudgetHandler.GetAll).Methods("GET")
	r.HandleFunc("/api/budget/{lineId}", deps.BudgetHandler.Get).Methods("GET")
	r.HandleFunc("/api/budget/{lineId}", deps.BudgetHandler.Update).Methods("PUT")
	r.HandleFunc("/api/budget/{lineId}", deps.BudgetHandler.Delete).Methods("DELETE")
	r.HandleFunc("/api/budget/{lineId}/progress", deps.BudgetHandler.RecordProgress).Methods("POST")

	// Earned value
	r.HandleFunc("/api/project/{projectId}/earnedvalue", deps.EarnedValueHandler.GetProjectEV).Methods("GET")

	// Time entries
	r.HandleFunc("/api/timeentry", deps.TimeEntryHandler.CreateEntry).Methods("POST")
	r.HandleFunc("/api/timeentry", deps.TimeEntryHandler.ListEntries).Queries("from", "{from}", "to", "{to}").Methods("GET")
	r.HandleFunc("/api/timeentry/{entryId}", deps.TimeEntryHandler.GetEntry).Methods("GET")
	r.HandleFunc("/api/timeentry/{entryId}/notes", deps.TimeEntryHandler.UpdateNotes).Methods("PUT")
	r.HandleFunc("/api/timeentry/{entryId}", deps.TimeEntryHandler.DeleteEntry).Methods("DELETE")

	// Payroll
	r.HandleFunc("/api/payroll/period", deps.PayrollHandler.CreatePeriod).Methods("POST")
	r.HandleFunc("/api/payroll/period", deps.PayrollHandler.ListPeriods).Methods("GET")
	r.HandleFunc("/api/payroll/period/{periodId}", deps.PayrollHandler.GetPeriod).Methods("GET")
	r.HandleFunc("/api/payroll/period/{periodId}/record", deps.PayrollHandler.AddRecord).Methods("POST")
	r.HandleFunc("/api/payroll/period/{periodId}/recompute", deps.PayrollHandler.RecomputePeriod).Methods("POST")
	r.HandleFunc("/api/payroll/period/{periodId}/lock", deps.PayrollHandler.LockPeriod).Methods("PUT")
	r.HandleFunc("/api/payroll/period/{periodId}/export", deps.PayrollHandler.ExportPeriod).Methods("GET")
	r.HandleFunc("/api/payroll/record/{recordId}/lock", deps.PayrollHandler.LockRecord).Methods("PUT")
	r.HandleFunc("/api/payroll/taxprofile/{employeeId}", deps.PayrollHandler.GetTaxProfile).Methods("GET")
	r.HandleFunc("/api/payroll/taxprofile/{employeeId}", deps.PayrollHandler.SaveTaxProfile).Methods("PUT")
	r.HandleFunc("/api/payroll/taxprofile/{employeeId}/preview", deps.PayrollHandler.PreviewTax).Queries("gross", "{gross}").Methods("GET")
}
