package project

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

type ProjectDTO struct {
	Id               int    `json:"id"`
	Name             string `json:"name" validate:"required,max=200"`
	DefaultLaborRate string `json:"defaultLaborRate,omitempty" validate:"omitempty,numeric"`
}

type ChangeOrderDTO struct {
	Id           int    `json:"id"`
	ProjectId    int    `json:"projectId"`
	Title        string `json:"title" validate:"required,max=200"`
	OverrideRate string `json:"overrideRate,omitempty" validate:"omitempty,numeric"`
}

type ExpenseDTO struct {
	Id          int    `json:"id"`
	ProjectId   int    `json:"projectId"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Amount      string `json:"amount" validate:"required,numeric"`
	Description string `json:"description" validate:"max=500"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreateProject godoc
// @Summary Create a project
// @Tags Project
// @Accept json
// @Produce json
// @Param project body ProjectDTO true "Project"
// @Success 201 {object} ProjectDTO
// @Router /api/project [post]
// @Security XUserId
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating project")
	var dto ProjectDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid project", err.Error())
		return
	}
	created, err := h.service.CreateProject(r.Context(), Project{Name: dto.Name, DefaultLaborRate: parseOptional(dto.DefaultLaborRate)})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, projectToDTO(created))
}

// ListProjects godoc
// @Summary List projects
// @Tags Project
// @Produce json
// @Success 200 {array} ProjectDTO
// @Router /api/project [get]
// @Security XUserId
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]ProjectDTO, 0, len(projects))
	for _, p := range projects {
		dtos = append(dtos, projectToDTO(p))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// GetProject godoc
// @Summary Get a project
// @Tags Project
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {object} ProjectDTO
// @Router /api/project/{projectId} [get]
// @Security XUserId
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectId, ok := projectIdFromPath(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetProject(r.Context(), projectId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, projectToDTO(p))
}

// UpdateProject godoc
// @Summary Update a project's name and default labor rate
// @Tags Project
// @Accept json
// @Produce json
// @Param projectId path int true "Project ID"
// @Param project body ProjectDTO true "Project"
// @Success 200 {object} ProjectDTO
// @Router /api/project/{projectId} [put]
// @Security XUserId
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	log.Debug("Updating project")
	projectId, ok := projectIdFromPath(w, r)
	if !ok {
		return
	}
	var dto ProjectDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid project", err.Error())
		return
	}
	updated, err := h.service.UpdateProject(r.Context(), Project{Id: projectId, Name: dto.Name, DefaultLaborRate: parseOptional(dto.DefaultLaborRate)})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, projectToDTO(updated))
}

// CreateChangeOrder godoc
// @Summary Add a change order to a project
// @Tags Project
// @Accept json
// @Produce json
// @Param projectId path int true "Project ID"
// @Param changeOrder body ChangeOrderDTO true "Change order"
// @Success 201 {object} ChangeOrderDTO
// @Router /api/project/{projectId}/changeorder [post]
// @Security XUserId
func (h *Handler) CreateChangeOrder(w http.ResponseWriter, r *http.Request) {
	projectId, ok := projectIdFromPath(w, r)
	if !ok {
		return
	}
	var dto ChangeOrderDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid change order", err.Error())
		return
	}
	created, err := h.service.CreateChangeOrder(r.Context(), ChangeOrder{
		ProjectId:    projectId,
		Title:        dto.Title,
		OverrideRate: parseOptional(dto.OverrideRate),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, changeOrderToDTO(created))
}

// ListChangeOrders godoc
// @Summary List a project's change orders
// @Tags Project
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {array} ChangeOrderDTO
// @Router /api/project/{projectId}/changeorder [get]
// @Security XUserId
func (h *Handler) ListChangeOrders(w http.ResponseWriter, r *http.Request) {
	projectId, ok := projectIdFromPath(w, r)
	if !ok {
		return
	}
	orders, err := h.service.ListChangeOrders(r.Context(), projectId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]ChangeOrderDTO, 0, len(orders))
	for _, co := range orders {
		dtos = append(dtos, changeOrderToDTO(co))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// RecordExpense godoc
// @Summary Record a project expense
// @Tags Project
// @Accept json
// @Produce json
// @Param projectId path int true "Project ID"
// @Param expense body ExpenseDTO true "Expense"
// @Success 201 {object} ExpenseDTO
// @Router /api/project/{projectId}/expense [post]
// @Security XUserId
func (h *Handler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	projectId, ok := projectIdFromPath(w, r)
	if !ok {
		return
	}
	var dto ExpenseDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid expense", err.Error())
		return
	}
	date, _ := time.Parse(dateLayout, dto.Date)
	amount, _ := decimal.NewFromString(dto.Amount)
	created, err := h.service.RecordExpense(r.Context(), Expense{
		ProjectId:   projectId,
		Date:        date,
		Amount:      amount,
		Description: dto.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, expenseToDTO(created))
}

// ListExpenses godoc
// @Summary List a project's expenses
// @Tags Project
// @Produce json
// @Param projectId path int true "Project ID"
// @Success 200 {array} ExpenseDTO
// @Router /api/project/{projectId}/expense [get]
// @Security XUserId
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	projectId, ok := projectIdFromPath(w, r)
	if !ok {
		return
	}
	expenses, err := h.service.ListExpenses(r.Context(), projectId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]ExpenseDTO, 0, len(expenses))
	for _, e := range expenses {
		dtos = append(dtos, expenseToDTO(e))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func projectIdFromPath(w http.ResponseWriter, r *http.Request) (int, bool) {
	projectId, err := strconv.Atoi(mux.Vars(r)["projectId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid project id", err.Error())
		return 0, false
	}
	return projectId, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProjectNotFound), errors.Is(err, ErrChangeOrderNotFound):
		rest.WriteError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrNegativeRate):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), "")
	default:
		rest.WriteError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func parseOptional(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func formatOptional(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}

func projectToDTO(p Project) ProjectDTO {
	return ProjectDTO{Id: p.Id, Name: p.Name, DefaultLaborRate: formatOptional(p.DefaultLaborRate)}
}

func changeOrderToDTO(co ChangeOrder) ChangeOrderDTO {
	return ChangeOrderDTO{Id: co.Id, ProjectId: co.ProjectId, Title: co.Title, OverrideRate: formatOptional(co.OverrideRate)}
}

func expenseToDTO(e Expense) ExpenseDTO {
	return ExpenseDTO{
		Id:          e.Id,
		ProjectId:   e.ProjectId,
		Date:        e.Date.Format(dateLayout),
		Amount:      e.Amount.StringFixed(2),
		Description: e.Description,
	}
}
