package payroll

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/buildledger/buildledger/internal/rest"
	"github.com/buildledger/buildledger/pkg/employee"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type PeriodDTO struct {
	Id             int     `json:"id"`
	Name           string  `json:"name" validate:"required,max=100"`
	Start          string  `json:"start" validate:"required,datetime=2006-01-02"`
	End            string  `json:"end" validate:"required,datetime=2006-01-02"`
	Locked         bool    `json:"locked"`
	NeedsRecompute bool    `json:"needsRecompute"`
	RecomputedAt   *string `json:"recomputedAt"`
}

type PeriodDetailsDTO struct {
	PeriodDTO
	Records []RecordDTO `json:"records"`
}

type RecordDTO struct {
	Id            int        `json:"id"`
	EmployeeId    int        `json:"employeeId"`
	HourlyRate    string     `json:"hourlyRate"`
	RegularHours  string     `json:"regularHours"`
	OvertimeHours string     `json:"overtimeHours"`
	RegularPay    string     `json:"regularPay"`
	OvertimePay   string     `json:"overtimePay"`
	Adjustments   string     `json:"adjustments"`
	GrossPay      string     `json:"grossPay"`
	Tax           string     `json:"tax"`
	NetPay        string     `json:"netPay"`
	Locked        bool       `json:"locked"`
	RecomputedAt  *string    `json:"recomputedAt"`
	Entries       []EntryDTO `json:"entries"`
}

type EntryDTO struct {
	ProjectId  int    `json:"projectId"`
	Hours      string `json:"hours"`
	HourlyRate string `json:"hourlyRate"`
}

type NewRecordDTO struct {
	EmployeeId  int    `json:"employeeId" validate:"required,gt=0"`
	Adjustments string `json:"adjustments" validate:"omitempty,numeric"`
}

type LockDTO struct {
	Locked bool `json:"locked"`
}

type RecomputeResultDTO struct {
	RunId        string `json:"runId"`
	PeriodId     int    `json:"periodId"`
	Recomputed   int    `json:"recomputed"`
	Skipped      int    `json:"skipped"`
	RecomputedAt string `json:"recomputedAt"`
}

type TaxProfileDTO struct {
	EmployeeId int             `json:"employeeId"`
	Method     string          `json:"method" validate:"required,oneof=flat tiered"`
	Active     bool            `json:"active"`
	FlatRate   string          `json:"flatRate,omitempty" validate:"omitempty,numeric"`
	Brackets   []TaxBracketDTO `json:"brackets" validate:"dive"`
}

type TaxBracketDTO struct {
	UpTo string `json:"upTo,omitempty" validate:"omitempty,numeric"`
	Rate string `json:"rate" validate:"required,numeric"`
}

type TaxBreakdownDTO struct {
	Method string           `json:"method"`
	Gross  string           `json:"gross"`
	Lines  []BracketLineDTO `json:"lines"`
	Total  string           `json:"total"`
}

type BracketLineDTO struct {
	Lower string  `json:"lower"`
	Upper *string `json:"upper"`
	Span  string  `json:"span"`
	Rate  string  `json:"rate"`
	Tax   string  `json:"tax"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreatePeriod godoc
// @Summary Create a payroll period
// @Tags Payroll
// @Accept json
// @Produce json
// @Param period body PeriodDTO true "Period"
// @Success 201 {object} PeriodDTO
// @Router /api/payroll/period [post]
// @Security XUserId
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating payroll period")
	var dto PeriodDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid payroll period", err.Error())
		return
	}
	start, _ := time.Parse(dateLayout, dto.Start)
	end, _ := time.Parse(dateLayout, dto.End)
	created, err := h.service.CreatePeriod(r.Context(), PayrollPeriod{Name: dto.Name, Start: start, End: end})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, periodToDTO(created))
}

// ListPeriods godoc
// @Summary List payroll periods
// @Tags Payroll
// @Produce json
// @Success 200 {array} PeriodDTO
// @Router /api/payroll/period [get]
// @Security XUserId
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.service.ListPeriods(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dtos := make([]PeriodDTO, 0, len(periods))
	for _, p := range periods {
		dtos = append(dtos, periodToDTO(p))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

// GetPeriod godoc
// @Summary Get a payroll period with its records
// @Tags Payroll
// @Produce json
// @Param periodId path int true "Period ID"
// @Success 200 {object} PeriodDetailsDTO
// @Router /api/payroll/period/{periodId} [get]
// @Security XUserId
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	periodId, ok := intFromPath(w, r, "periodId")
	if !ok {
		return
	}
	period, err := h.service.GetPeriod(r.Context(), periodId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	records, err := h.service.ListRecords(r.Context(), periodId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	dto := PeriodDetailsDTO{PeriodDTO: periodToDTO(period), Records: make([]RecordDTO, 0, len(records))}
	for _, rec := range records {
		dto.Records = append(dto.Records, recordToDTO(rec))
	}
	rest.WriteJSON(w, http.StatusOK, dto)
}

// AddRecord godoc
// @Summary Add an employee to a payroll period
// @Tags Payroll
// @Accept json
// @Produce json
// @Param periodId path int true "Period ID"
// @Param record body NewRecordDTO true "Record"
// @Success 201 {object} RecordDTO
// @Failure 409 {object} rest.ErrorResponse
// @Router /api/payroll/period/{periodId}/record [post]
// @Security XUserId
func (h *Handler) AddRecord(w http.ResponseWriter, r *http.Request) {
	periodId, ok := intFromPath(w, r, "periodId")
	if !ok {
		return
	}
	var dto NewRecordDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid payroll record", err.Error())
		return
	}
	adjustments := decimal.Zero
	if dto.Adjustments != "" {
		adjustments, _ = decimal.NewFromString(dto.Adjustments)
	}
	created, err := h.service.AddRecord(r.Context(), periodId, dto.EmployeeId, adjustments)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusCreated, recordToDTO(created))
}

// RecomputePeriod godoc
// @Summary Recompute every record of a payroll period
// @Description Locked periods are rejected with 409 unless force=true.
// @Tags Payroll
// @Produce json
// @Param periodId path int true "Period ID"
// @Param force query bool false "Recompute even if locked"
// @Success 200 {object} RecomputeResultDTO
// @Failure 409 {object} rest.ErrorResponse
// @Router /api/payroll/period/{periodId}/recompute [post]
// @Security XUserId
func (h *Handler) RecomputePeriod(w http.ResponseWriter, r *http.Request) {
	periodId, ok := intFromPath(w, r, "periodId")
	if !ok {
		return
	}
	force := false
	if s := r.URL.Query().Get("force"); s != "" {
		var err error
		if force, err = strconv.ParseBool(s); err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid force flag", err.Error())
			return
		}
	}
	result, err := h.service.RecomputePeriod(r.Context(), periodId, force)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, RecomputeResultDTO{
		RunId:        result.RunId,
		PeriodId:     result.PeriodId,
		Recomputed:   result.Recomputed,
		Skipped:      result.Skipped,
		RecomputedAt: result.RecomputedAt.Format(time.RFC3339),
	})
}

// LockPeriod godoc
// @Summary Lock or unlock a payroll period
// @Tags Payroll
// @Accept json
// @Param periodId path int true "Period ID"
// @Param lock body LockDTO true "Lock state"
// @Success 204
// @Router /api/payroll/period/{periodId}/lock [put]
// @Security XUserId
func (h *Handler) LockPeriod(w http.ResponseWriter, r *http.Request) {
	periodId, ok := intFromPath(w, r, "periodId")
	if !ok {
		return
	}
	var dto LockDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid lock request", err.Error())
		return
	}
	var err error
	if dto.Locked {
		err = h.service.LockPeriod(r.Context(), periodId)
	} else {
		err = h.service.UnlockPeriod(r.Context(), periodId)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LockRecord godoc
// @Summary Lock or unlock a single payroll record
// @Tags Payroll
// @Accept json
// @Param recordId path int true "Record ID"
// @Param lock body LockDTO true "Lock state"
// @Success 204
// @Router /api/payroll/record/{recordId}/lock [put]
// @Security XUserId
func (h *Handler) LockRecord(w http.ResponseWriter, r *http.Request) {
	recordId, ok := intFromPath(w, r, "recordId")
	if !ok {
		return
	}
	var dto LockDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid lock request", err.Error())
		return
	}
	if err := h.service.SetRecordLock(r.Context(), recordId, dto.Locked); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportPeriod godoc
// @Summary Export a payroll period's records as CSV
// @Tags Payroll
// @Produce text/csv
// @Param periodId path int true "Period ID"
// @Success 200 {string} string "CSV file"
// @Router /api/payroll/period/{periodId}/export [get]
// @Security XUserId
func (h *Handler) ExportPeriod(w http.ResponseWriter, r *http.Request) {
	periodId, ok := intFromPath(w, r, "periodId")
	if !ok {
		return
	}
	period, err := h.service.GetPeriod(r.Context(), periodId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	records, err := h.service.ListRecords(r.Context(), periodId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+exportFilename(period))
	if err := WriteRecordsCSV(records, w); err != nil {
		log.Errorf("failed to write payroll csv: %v", err)
	}
}

// GetTaxProfile godoc
// @Summary Get an employee's tax profile
// @Tags Payroll
// @Produce json
// @Param employeeId path int true "Employee ID"
// @Success 200 {object} TaxProfileDTO
// @Router /api/payroll/taxprofile/{employeeId} [get]
// @Security XUserId
func (h *Handler) GetTaxProfile(w http.ResponseWriter, r *http.Request) {
	employeeId, ok := intFromPath(w, r, "employeeId")
	if !ok {
		return
	}
	profile, err := h.service.GetTaxProfile(r.Context(), employeeId)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, profileToDTO(profile))
}

// SaveTaxProfile godoc
// @Summary Create or replace an employee's tax profile
// @Tags Payroll
// @Accept json
// @Produce json
// @Param employeeId path int true "Employee ID"
// @Param profile body TaxProfileDTO true "Tax profile"
// @Success 200 {object} TaxProfileDTO
// @Router /api/payroll/taxprofile/{employeeId} [put]
// @Security XUserId
func (h *Handler) SaveTaxProfile(w http.ResponseWriter, r *http.Request) {
	employeeId, ok := intFromPath(w, r, "employeeId")
	if !ok {
		return
	}
	var dto TaxProfileDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid tax profile", err.Error())
		return
	}
	profile := dtoToProfile(dto)
	profile.EmployeeId = employeeId
	saved, err := h.service.SaveTaxProfile(r.Context(), profile)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, profileToDTO(saved))
}

// PreviewTax godoc
// @Summary Show how a gross amount would be taxed for an employee
// @Description Read-only. Returns each bracket's span, rate and tax.
// @Tags Payroll
// @Produce json
// @Param employeeId path int true "Employee ID"
// @Param gross query string true "Gross pay"
// @Success 200 {object} TaxBreakdownDTO
// @Router /api/payroll/taxprofile/{employeeId}/preview [get]
// @Security XUserId
func (h *Handler) PreviewTax(w http.ResponseWriter, r *http.Request) {
	employeeId, ok := intFromPath(w, r, "employeeId")
	if !ok {
		return
	}
	gross, err := decimal.NewFromString(r.URL.Query().Get("gross"))
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid gross amount", err.Error())
		return
	}
	breakdown, err := h.service.PreviewTax(r.Context(), employeeId, gross)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rest.WriteJSON(w, http.StatusOK, BreakdownToDTO(breakdown))
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
	case errors.Is(err, ErrPeriodNotFound), errors.Is(err, ErrRecordNotFound),
		errors.Is(err, ErrTaxProfileNotFound), errors.Is(err, employee.ErrEmployeeNotFound):
		rest.WriteError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrPeriodLocked), errors.Is(err, ErrDuplicateRecord):
		rest.WriteError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, ErrInvalidPeriod), errors.Is(err, ErrInvalidTaxProfile):
		rest.WriteError(w, http.StatusBadRequest, err.Error(), "")
	default:
		rest.WriteError(w, http.StatusInternalServerError, err.Error(), "")
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func periodToDTO(p PayrollPeriod) PeriodDTO {
	return PeriodDTO{
		Id:             p.Id,
		Name:           p.Name,
		Start:          p.Start.Format(dateLayout),
		End:            p.End.Format(dateLayout),
		Locked:         p.Locked,
		NeedsRecompute: p.NeedsRecompute,
		RecomputedAt:   formatTime(p.RecomputedAt),
	}
}

func recordToDTO(rec PayrollRecord) RecordDTO {
	entries := make([]EntryDTO, 0, len(rec.Entries))
	for _, e := range rec.Entries {
		entries = append(entries, EntryDTO{ProjectId: e.ProjectId, Hours: e.Hours.StringFixed(2), HourlyRate: e.HourlyRate.StringFixed(2)})
	}
	return RecordDTO{
		Id:            rec.Id,
		EmployeeId:    rec.EmployeeId,
		HourlyRate:    rec.HourlyRate.StringFixed(2),
		RegularHours:  rec.RegularHours.StringFixed(2),
		OvertimeHours: rec.OvertimeHours.StringFixed(2),
		RegularPay:    rec.RegularPay.StringFixed(2),
		OvertimePay:   rec.OvertimePay.StringFixed(2),
		Adjustments:   rec.Adjustments.StringFixed(2),
		GrossPay:      rec.GrossPay.StringFixed(2),
		Tax:           rec.Tax.StringFixed(2),
		NetPay:        rec.NetPay.StringFixed(2),
		Locked:        rec.Locked,
		RecomputedAt:  formatTime(rec.RecomputedAt),
		Entries:       entries,
	}
}

func dtoToProfile(dto TaxProfileDTO) TaxProfile {
	profile := TaxProfile{Method: TaxMethod(dto.Method), Active: dto.Active, Brackets: make([]TaxBracket, 0, len(dto.Brackets))}
	profile.FlatRate, _ = decimal.NewFromString(dto.FlatRate)
	for _, b := range dto.Brackets {
		rate, _ := decimal.NewFromString(b.Rate)
		bracket := TaxBracket{Rate: rate}
		if b.UpTo != "" {
			upTo, _ := decimal.NewFromString(b.UpTo)
			bracket.UpTo = &upTo
		}
		profile.Brackets = append(profile.Brackets, bracket)
	}
	return profile
}

func profileToDTO(p TaxProfile) TaxProfileDTO {
	dto := TaxProfileDTO{EmployeeId: p.EmployeeId, Method: string(p.Method), Active: p.Active, Brackets: make([]TaxBracketDTO, 0, len(p.Brackets))}
	if p.Method == TaxMethodFlat {
		dto.FlatRate = p.FlatRate.String()
	}
	for _, b := range p.Brackets {
		bracket := TaxBracketDTO{Rate: b.Rate.String()}
		if b.UpTo != nil {
			bracket.UpTo = b.UpTo.String()
		}
		dto.Brackets = append(dto.Brackets, bracket)
	}
	return dto
}

// BreakdownToDTO is shared with the command line preview.
func BreakdownToDTO(b TaxBreakdown) TaxBreakdownDTO {
	lines := make([]BracketLineDTO, 0, len(b.Lines))
	for _, l := range b.Lines {
		var upper *string
		if l.Upper != nil {
			s := l.Upper.StringFixed(2)
			upper = &s
		}
		lines = append(lines, BracketLineDTO{
			Lower: l.Lower.StringFixed(2),
			Upper: upper,
			Span:  l.Span.StringFixed(2),
			Rate:  l.Rate.String(),
			Tax:   l.Tax.StringFixed(2),
		})
	}
	return TaxBreakdownDTO{Method: string(b.Method), Gross: b.Gross.StringFixed(2), Lines: lines, Total: b.Total.StringFixed(2)}
}
