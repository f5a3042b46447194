package timeentry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/buildledger/buildledger/internal/rest"
	"github.com/buildledger/buildledger/pkg/employee"
	"github.com/buildledger/buildledger/pkg/project"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type TimeEntryDTO struct {
	Id              int    `json:"id"`
	EmployeeId      int    `json:"employeeId" validate:"required,gt=0"`
	ProjectId       int    `json:"projectId" validate:"required_without=ChangeOrderId"`
	ChangeOrderId   *int   `json:"changeOrderId,omitempty"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Start           string `json:"start" validate:"required"`
	End             string `json:"end" validate:"required"`
	Notes           string `json:"notes" validate:"max=1000"`
	Hours           string `json:"hours"`
	CostRate        string `json:"costRate"`
	BillableRate    string `json:"billableRate"`
	PayrollRecordId *int   `json:"payrollRecordId,omitempty"`
}

type NotesDTO struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreateEntry godoc
// @Summary Log worked time
// @Description Hours, cost rate and billable rate are computed on creation and never change afterwards
// @Tags TimeEntry
// @Accept json
// @Produce json
// @Param entry body TimeEntryDTO true "Time entry"
// @Success 201 {object} TimeEntryDTO
// @Router /api/timeentry [post]
// @Security XUserId
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating time entry")
	var dto TimeEntryDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid time entry", err.Error())
		return
	}
	entry, err := dtoToEntry(dto)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid time entry", err.Error())
		return
	}
	created, err := h.service.CreateEntry(r.Context(), entry)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, EntryToDTO(created))
}

// ListEntries godoc
// @Summary List time entries in a date range
// @Tags TimeEntry
// @Produce json
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string true "Last day (YYYY-MM-DD)"
// @Param employeeId query int false "Employee ID"
// @Param projectId query int false "Project ID"
// @Success 200 {array} TimeEntryDTO
// @Router /api/timeentry [get]
// @Security XUserId
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, err := time.Parse(dateLayout, query.Get("from"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid from date", err.Error())
		return
	}
	to, err := time.Parse(dateLayout, query.Get("to"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid to date", err.Error())
		return
	}
	filter := dayRange(from, to)
	if filter.EmployeeId, err = optionalInt(query.Get("employeeId")); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid employee id", err.Error())
		return
	}
	if filter.ProjectId, err = optionalInt(query.Get("projectId")); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid project id", err.Error())
		return
	}

	entries, err := h.service.ListEntries(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]TimeEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, EntryToDTO(e))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// GetEntry godoc
// @Summary Get a time entry
// @Tags TimeEntry
// @Produce json
// @Param entryId path int true "Time entry ID"
// @Success 200 {object} TimeEntryDTO
// @Router /api/timeentry/{entryId} [get]
// @Security XUserId
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIdFromPath(w, r)
	if !ok {
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, EntryToDTO(entry))
}

// UpdateNotes godoc
// @Summary Replace a time entry's notes
// @Tags TimeEntry
// @Accept json
// @Produce json
// @Param entryId path int true "Time entry ID"
// @Param notes body NotesDTO true "Notes"
// @Success 200 {object} TimeEntryDTO
// @Router /api/timeentry/{entryId}/notes [put]
// @Security XUserId
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIdFromPath(w, r)
	if !ok {
		return
	}
	var dto NotesDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid notes", err.Error())
		return
	}
	updated, err := h.service.UpdateNotes(r.Context(), id, dto.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, EntryToDTO(updated))
}

// DeleteEntry godoc
// @Summary Delete a time entry that is not yet part of payroll
// @Tags TimeEntry
// @Param entryId path int true "Time entry ID"
// @Success 204
// @Failure 409 {object} rest.ErrorResponse
// @Router /api/timeentry/{entryId} [delete]
// @Security XUserId
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryIdFromPath(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteEntry(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func entryIdFromPath(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["entryId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid time entry id", err.Error())
		return 0, false
	}
	return id, true
}

func optionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound), errors.Is(err, employee.ErrEmployeeNotFound),
		errors.Is(err, project.ErrProjectNotFound), errors.Is(err, project.ErrChangeOrderNotFound):
		rest.WriteError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrInvalidEntry), errors.Is(err, ErrInactiveEmployee), errors.Is(err, ErrChangeOrderProjectMismatch):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, ErrEntryInPayroll):
		rest.WriteError(w, http.StatusConflict, err.Error(), "")
	default:
		rest.WriteError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func dtoToEntry(dto TimeEntryDTO) (TimeEntry, error) {
	date, err := time.Parse(dateLayout, dto.Date)
	if err != nil {
		return TimeEntry{}, err
	}
	start, err := ParseClockTime(dto.Start)
	if err != nil {
		return TimeEntry{}, err
	}
	end, err := ParseClockTime(dto.End)
	if err != nil {
		return TimeEntry{}, err
	}
	return TimeEntry{
		EmployeeId:    dto.EmployeeId,
		ProjectId:     dto.ProjectId,
		ChangeOrderId: dto.ChangeOrderId,
		Date:          date,
		Start:         start,
		End:           end,
		Notes:         dto.Notes,
	}, nil
}

func EntryToDTO(e TimeEntry) TimeEntryDTO {
	return TimeEntryDTO{
		Id:              e.Id,
		EmployeeId:      e.EmployeeId,
		ProjectId:       e.ProjectId,
		ChangeOrderId:   e.ChangeOrderId,
		Date:            e.Date.Format(dateLayout),
		Start:           e.Start.String(),
		End:             e.End.String(),
		Notes:           e.Notes,
		Hours:           e.Hours.StringFixed(2),
		CostRate:        e.CostRate.StringFixed(2),
		BillableRate:    e.BillableRate.StringFixed(2),
		PayrollRecordId: e.PayrollRecordId,
	}
}
