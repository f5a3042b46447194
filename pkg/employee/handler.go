package employee

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/buildledger/buildledger/internal/rest"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type EmployeeDTO struct {
	Id         int             `json:"id"`
	Name       string          `json:"name"`
	HourlyRate decimal.Decimal `json:"hourlyRate"`
	Active     bool            `json:"active"`
}

type CreateEmployeeDTO struct {
	Name       string `json:"name" validate:"required,max=128"`
	HourlyRate string `json:"hourlyRate" validate:"required,numeric"`
}

type RateDTO struct {
	HourlyRate string `json:"hourlyRate" validate:"required,numeric"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreateEmployee godoc
// @Summary Create an employee
// @Tags Employee
// @Accept json
// @Produce json
// @Param employee body CreateEmployeeDTO true "Employee"
// @Success 201 {object} EmployeeDTO
// @Failure 400 {object} rest.ErrorResponse
// @Router /api/employee [post]
// @Security XUserId
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating employee")
	var dto CreateEmployeeDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid employee", err.Error())
		return
	}
	rate, _ := decimal.NewFromString(dto.HourlyRate)
	created, err := h.service.CreateEmployee(r.Context(), Employee{Name: dto.Name, HourlyRate: rate})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(created))
}

// ListEmployees godoc
// @Summary List employees of the current tenant
// @Tags Employee
// @Produce json
// @Success 200 {array} EmployeeDTO
// @Router /api/employee [get]
// @Security XUserId
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.ListEmployees(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]EmployeeDTO, 0, len(employees))
	for _, e := range employees {
		dtos = append(dtos, toDTO(e))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// GetEmployee godoc
// @Summary Get an employee
// @Tags Employee
// @Produce json
// @Param employeeId path int true "Employee ID"
// @Success 200 {object} EmployeeDTO
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/employee/{employeeId} [get]
// @Security XUserId
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["employeeId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid employee id", err.Error())
		return
	}
	e, err := h.service.GetEmployee(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(e))
}

// UpdateRate godoc
// @Summary Change the hourly cost rate of an employee
// @Description Existing time entries keep the rate they were recorded with.
// @Tags Employee
// @Accept json
// @Produce json
// @Param employeeId path int true "Employee ID"
// @Param rate body RateDTO true "New rate"
// @Success 200 {object} EmployeeDTO
// @Router /api/employee/{employeeId}/rate [put]
// @Security XUserId
func (h *Handler) UpdateRate(w http.ResponseWriter, r *http.Request) {
	log.Debug("Updating employee rate")
	id, err := strconv.Atoi(mux.Vars(r)["employeeId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid employee id", err.Error())
		return
	}
	var dto RateDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid rate", err.Error())
		return
	}
	rate, _ := decimal.NewFromString(dto.HourlyRate)
	updated, err := h.service.UpdateRate(r.Context(), id, rate)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(updated))
}

// DeactivateEmployee godoc
// @Summary Deactivate an employee
// @Tags Employee
// @Param employeeId path int true "Employee ID"
// @Success 204 "No Content"
// @Router /api/employee/{employeeId} [delete]
// @Security XUserId
func (h *Handler) DeactivateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["employeeId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid employee id", err.Error())
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmployeeNotFound):
		rest.WriteError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrNegativeRate):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), "")
	default:
		rest.WriteError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func toDTO(e Employee) EmployeeDTO {
	return EmployeeDTO{Id: e.Id, Name: e.Name, HourlyRate: e.HourlyRate, Active: e.Active}
}
