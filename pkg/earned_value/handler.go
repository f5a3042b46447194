package earned_value

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/buildledger/buildledger/internal/rest"
	"github.com/buildledger/buildledger/internal/utils"
	"github.com/buildledger/buildledger/pkg/project"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type SnapshotDTO struct {
	ProjectId           int               `json:"projectId"`
	AsOf                string            `json:"asOf"`
	BaselineTotal       string            `json:"baselineTotal"`
	PV                  string            `json:"pv"`
	EV                  string            `json:"ev"`
	AC                  string            `json:"ac"`
	SPI                 *string           `json:"spi"`
	CPI                 *string           `json:"cpi"`
	PercentCompleteCost *string           `json:"percentCompleteCost"`
	Lines               []LineSnapshotDTO `json:"lines"`
	Costs               []CostDTO         `json:"costs"`
}

type LineSnapshotDTO struct {
	LineId          int    `json:"lineId"`
	Name            string `json:"name"`
	Baseline        string `json:"baseline"`
	PlannedFraction string `json:"plannedFraction"`
	EarnedFraction  string `json:"earnedFraction"`
	PV              string `json:"pv"`
	EV              string `json:"ev"`
}

type CostDTO struct {
	Source string `json:"source"`
	Amount string `json:"amount"`
	Failed bool   `json:"failed,omitempty"`
}

type Handler struct {
	service Service
	clock   utils.Clock
}

func NewHandler(service Service, clock utils.Clock) *Handler {
	return &Handler{service: service, clock: clock}
}

// GetProjectEV godoc
// @Summary Earned-value snapshot of a project
// @Description PV, EV, AC, SPI and CPI as of a date. SPI, CPI and percentCompleteCost are null when undefined.
// @Tags EarnedValue
// @Produce json
// @Produce text/csv
// @Param projectId path int true "Project ID"
// @Param asOf query string false "As-of date (YYYY-MM-DD), defaults to today"
// @Param format query string false "json (default) or csv"
// @Success 200 {object} SnapshotDTO
// @Router /api/project/{projectId}/earnedvalue [get]
// @Security XUserId
func (h *Handler) GetProjectEV(w http.ResponseWriter, r *http.Request) {
	projectId, err := strconv.Atoi(mux.Vars(r)["projectId"])
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid project id", err.Error())
		return
	}
	asOf := utils.Today(h.clock)
	if s := r.URL.Query().Get("asOf"); s != "" {
		asOf, err = time.Parse(dateLayout, s)
		if err != nil {
			rest.WriteError(w, http.StatusBadRequest, "Invalid asOf date", err.Error())
			return
		}
	}
	log.Debugf("Computing earned value of project %d as of %s", projectId, asOf.Format(dateLayout))

	snapshot, err := h.service.ComputeProjectEV(r.Context(), projectId, asOf)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			rest.WriteError(w, http.StatusNotFound, err.Error(), "")
			return
		}
		rest.WriteError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=earned-value-"+strconv.Itoa(projectId)+".csv")
		if err := WriteCSV(snapshot, w); err != nil {
			log.Errorf("failed to write earned value csv: %v", err)
		}
		return
	}
	rest.WriteJSON(w, http.StatusOK, SnapshotToDTO(snapshot))
}

// SnapshotToDTO is shared with the command line report.
func SnapshotToDTO(s Snapshot) SnapshotDTO {
	lines := make([]LineSnapshotDTO, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, LineSnapshotDTO{
			LineId:          l.LineId,
			Name:            l.Name,
			Baseline:        l.Baseline.StringFixed(2),
			PlannedFraction: l.PlannedFraction.StringFixed(4),
			EarnedFraction:  l.EarnedFraction.StringFixed(4),
			PV:              l.PV.StringFixed(2),
			EV:              l.EV.StringFixed(2),
		})
	}
	costs := make([]CostDTO, 0, len(s.Costs))
	for _, c := range s.Costs {
		costs = append(costs, CostDTO{Source: c.Source, Amount: c.Amount.StringFixed(2), Failed: c.Failed})
	}
	return SnapshotDTO{
		ProjectId:           s.ProjectId,
		AsOf:                s.AsOf.Format(dateLayout),
		BaselineTotal:       s.BaselineTotal.StringFixed(2),
		PV:                  s.PV.StringFixed(2),
		EV:                  s.EV.StringFixed(2),
		AC:                  s.AC.StringFixed(2),
		SPI:                 optionalString(s.SPI),
		CPI:                 optionalString(s.CPI),
		PercentCompleteCost: optionalString(s.PercentCompleteCost),
		Lines:               lines,
		Costs:               costs,
	}
}

func optionalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(4)
	return &s
}
