package budget

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/buildledger/buildledger/internal/rest"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type BudgetLineDTO struct {
	Id             int                 `json:"id"`
	ProjectId      int                 `json:"projectId"`
	Name           string              `json:"name" validate:"required,max=200"`
	PlannedStart   string              `json:"plannedStart,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PlannedFinish  string              `json:"plannedFinish,omitempty" validate:"omitempty,datetime=2006-01-02"`
	BaselineAmount string              `json:"baselineAmount" validate:"required,numeric"`
	Progress       []BudgetProgressDTO `json:"progress"`
}

type BudgetProgressDTO struct {
	Id              int    `json:"id"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	PercentComplete string `json:"percentComplete" validate:"required,numeric"`
}

type BudgetHandler struct {
	service Service
}

func NewBudgetHandler(service Service) *BudgetHandler {
	return &BudgetHandler{service: service}
}

// Register godoc
// @Summary Create a budget line on a project
// @Tags Budget
// @Accept json
// @Produce json
// @Param projectId path int true "Project ID"
// @Param line body BudgetLineDTO true "Budget line"
// @Success 201 {object} BudgetLineDTO
// @Router /api/project/{projectId}/budget [post]
// @Security XUserId
func (h *BudgetHandler) Register(w http.ResponseWriter, r *http.Request) {
	log.Debug("Registering budget line")
	projectId, ok := intFromPath(w, r, "projectId")
	if !ok {
		return
	}
	line, ok := decodeLine(w, r)
	if !ok {
		return
	}
	line.ProjectId = projectId
	created, err := h.service.CreateLine(r.Context(), line)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, lineToDTO(created))
}

// GetAll godoc
// @Summary List a project's budget lines with progress
// @Tags Budget
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {array} BudgetLineDTO
// @Router /api/project/{projectId}/budget [get]
// @Security XUserId
func (h *BudgetHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	projectId, ok := intFromPath(w, r, "projectId")
	if !ok {
		return
	}
	lines, err := h.service.ListLines(r.Context(), projectId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]BudgetLineDTO, 0, len(lines))
	for _, line := range lines {
		dtos = append(dtos, lineToDTO(line))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// Get godoc
// @Summary Get a budget line
// @Tags Budget
// @Produce json
// @Param lineId path int true "Budget line ID"
// @Success 200 {object} BudgetLineDTO
// @Router /api/budget/{lineId} [get]
// @Security XUserId
func (h *BudgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	lineId, ok := intFromPath(w, r, "lineId")
	if !ok {
		return
	}
	line, err := h.service.GetLine(r.Context(), lineId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, lineToDTO(line))
}

// Update godoc
// @Summary Update a budget line's name, schedule and baseline
// @Tags Budget
// @Accept json
// @Produce json
// @Param lineId path int true "Budget line ID"
// @Param line body BudgetLineDTO true "Budget line"
// @Success 200 {object} BudgetLineDTO
// @Router /api/budget/{lineId} [put]
// @Security XUserId
func (h *BudgetHandler) Update(w http.ResponseWriter, r *http.Request) {
	lineId, ok := intFromPath(w, r, "lineId")
	if !ok {
		return
	}
	line, ok := decodeLine(w, r)
	if !ok {
		return
	}
	line.Id = lineId
	updated, err := h.service.UpdateLine(r.Context(), line)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, lineToDTO(updated))
}

// Delete godoc
// @Summary Delete a budget line and its progress
// @Tags Budget
// @Param lineId path int true "Budget line ID"
// @Success 204
// @Router /api/budget/{lineId} [delete]
// @Security XUserId
func (h *BudgetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	lineId, ok := intFromPath(w, r, "lineId")
	if !ok {
		return
	}
	if err := h.service.DeleteLine(r.Context(), lineId); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecordProgress godoc
// @Summary Append a percent-complete observation to a budget line
// @Tags Budget
// @Accept json
// @Produce json
// @Param lineId path int true "Budget line ID"
// @Param progress body BudgetProgressDTO true "Progress"
// @Success 201 {object} BudgetProgressDTO
// @Router /api/budget/{lineId}/progress [post]
// @Security XUserId
func (h *BudgetHandler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	lineId, ok := intFromPath(w, r, "lineId")
	if !ok {
		return
	}
	var dto BudgetProgressDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid progress", err.Error())
		return
	}
	date, _ := time.Parse(dateLayout, dto.Date)
	percent, _ := decimal.NewFromString(dto.PercentComplete)
	created, err := h.service.RecordProgress(r.Context(), BudgetProgress{
		BudgetLineId:    lineId,
		Date:            date,
		PercentComplete: percent,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, progressToDTO(created))
}

func decodeLine(w http.ResponseWriter, r *http.Request) (BudgetLine, bool) {
	var dto BudgetLineDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid budget line", err.Error())
		return BudgetLine{}, false
	}
	baseline, _ := decimal.NewFromString(dto.BaselineAmount)
	return BudgetLine{
		Name:           dto.Name,
		PlannedStart:   parseDate(dto.PlannedStart),
		PlannedFinish:  parseDate(dto.PlannedFinish),
		BaselineAmount: baseline,
	}, true
}

func intFromPath(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid "+name, err.Error())
		return 0, false
	}
	return v, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBudgetLineNotFound):
		rest.WriteError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrNegativeBaseline), errors.Is(err, ErrInvalidPercent):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), "")
	default:
		rest.WriteError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func lineToDTO(line BudgetLine) BudgetLineDTO {
	progress := make([]BudgetProgressDTO, 0, len(line.Progress))
	for _, p := range line.Progress {
		progress = append(progress, progressToDTO(p))
	}
	return BudgetLineDTO{
		Id:             line.Id,
		ProjectId:      line.ProjectId,
		Name:           line.Name,
		PlannedStart:   formatDate(line.PlannedStart),
		PlannedFinish:  formatDate(line.PlannedFinish),
		BaselineAmount: line.BaselineAmount.StringFixed(2),
		Progress:       progress,
	}
}

func progressToDTO(p BudgetProgress) BudgetProgressDTO {
	return BudgetProgressDTO{Id: p.Id, Date: p.Date.Format(dateLayout), PercentComplete: p.PercentComplete.String()}
}
