package shift

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/buildledger/buildledger/internal/rest"
	"github.com/buildledger/buildledger/pkg/employee"
	"github.com/buildledger/buildledger/pkg/project"
	"github.com/buildledger/buildledger/pkg/timeentry"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type ShiftDTO struct {
	Id            int    `json:"id"`
	EmployeeId    int    `json:"employeeId"`
	ProjectId     int    `json:"projectId"`
	ChangeOrderId *int   `json:"changeOrderId,omitempty"`
	StartTime     string `json:"startTime"`
	Notes         string `json:"notes"`
}

type ClockInDTO struct {
	ProjectId     int    `json:"projectId" validate:"required,gt=0"`
	ChangeOrderId *int   `json:"changeOrderId,omitempty"`
	// StartTime is optional (RFC3339); the shift starts now when it is empty.
	StartTime string `json:"startTime,omitempty"`
	Notes     string `json:"notes" validate:"max=1000"`
}

type StartTimeDTO struct {
	StartTime string `json:"startTime" validate:"required"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListOpenShifts godoc
// @Summary List employees currently clocked in
// @Tags Shift
// @Produce json
// @Success 200 {array} ShiftDTO
// @Router /api/shift [get]
// @Security XUserId
func (h *Handler) ListOpenShifts(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.service.ListOpenShifts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]ShiftDTO, 0, len(shifts))
	for _, s := range shifts {
		dtos = append(dtos, shiftToDTO(s))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// GetShift godoc
// @Summary Get an employee's open shift
// @Tags Shift
// @Produce json
// @Param employeeId path int true "Employee ID"
// @Success 200 {object} ShiftDTO
// @Failure 404 {object} rest.ErrorResponse
// @Router /api/employee/{employeeId}/shift [get]
// @Security XUserId
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	employeeId, ok := employeeIdFromPath(w, r)
	if !ok {
		return
	}
	shift, err := h.service.CurrentShift(r.Context(), employeeId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, shiftToDTO(shift))
}

// ClockIn godoc
// @Summary Clock an employee in, closing any open shift first
// @Tags Shift
// @Accept json
// @Produce json
// @Param employeeId path int true "Employee ID"
// @Param shift body ClockInDTO true "Shift"
// @Success 201 {object} ShiftDTO
// @Router /api/employee/{employeeId}/shift [post]
// @Security XUserId
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	employeeId, ok := employeeIdFromPath(w, r)
	if !ok {
		return
	}
	var dto ClockInDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid shift", err.Error())
		return
	}
	var start time.Time
	if dto.StartTime != "" {
		parsed, err := time.Parse(time.RFC3339, dto.StartTime)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid startTime format", "Start time must be in RFC3339 format")
			return
		}
		start = parsed
	}
	log.Debugf("clocking in employee %d", employeeId)
	shift, err := h.service.ClockIn(r.Context(), Shift{
		EmployeeId:    employeeId,
		ProjectId:     dto.ProjectId,
		ChangeOrderId: dto.ChangeOrderId,
		StartTime:     start,
		Notes:         dto.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, shiftToDTO(shift))
}

// ClockOut godoc
// @Summary Clock an employee out and record the shift as a time entry
// @Tags Shift
// @Produce json
// @Param employeeId path int true "Employee ID"
// @Success 201 {object} timeentry.TimeEntryDTO
// @Success 204 "Shift shorter than a minute, discarded"
// @Failure 409 {object} rest.ErrorResponse
// @Router /api/employee/{employeeId}/shift [delete]
// @Security XUserId
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	employeeId, ok := employeeIdFromPath(w, r)
	if !ok {
		return
	}
	entry, err := h.service.ClockOut(r.Context(), employeeId)
	if errors.Is(err, ErrShiftTooShort) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, timeentry.EntryToDTO(entry))
}

// AdjustStart godoc
// @Summary Move the start of an employee's open shift
// @Tags Shift
// @Accept json
// @Produce json
// @Param employeeId path int true "Employee ID"
// @Param start body StartTimeDTO true "New start time (RFC3339)"
// @Success 200 {object} ShiftDTO
// @Router /api/employee/{employeeId}/shift/start [patch]
// @Security XUserId
func (h *Handler) AdjustStart(w http.ResponseWriter, r *http.Request) {
	employeeId, ok := employeeIdFromPath(w, r)
	if !ok {
		return
	}
	var dto StartTimeDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid start time", err.Error())
		return
	}
	start, err := time.Parse(time.RFC3339, dto.StartTime)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid startTime format", "Start time must be in RFC3339 format")
		return
	}
	shift, err := h.service.AdjustStart(r.Context(), employeeId, start)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, shiftToDTO(shift))
}

func employeeIdFromPath(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["employeeId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid employee id", err.Error())
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNoOpenShift), errors.Is(err, employee.ErrEmployeeNotFound),
		errors.Is(err, project.ErrProjectNotFound), errors.Is(err, project.ErrChangeOrderNotFound):
		rest.WriteError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrStartInFuture), errors.Is(err, timeentry.ErrInvalidEntry),
		errors.Is(err, timeentry.ErrInactiveEmployee), errors.Is(err, timeentry.ErrChangeOrderProjectMismatch):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, ErrShiftTooLong), errors.Is(err, ErrStartBeforeOpenShift):
		rest.WriteError(w, http.StatusConflict, err.Error(), "")
	default:
		rest.WriteError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func shiftToDTO(s Shift) ShiftDTO {
	return ShiftDTO{
		Id:            s.Id,
		EmployeeId:    s.EmployeeId,
		ProjectId:     s.ProjectId,
		ChangeOrderId: s.ChangeOrderId,
		StartTime:     s.StartTime.Format(time.RFC3339),
		Notes:         s.Notes,
	}
}
