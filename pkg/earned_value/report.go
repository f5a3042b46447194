package earned_value

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

const (
	totalRowName = "TOTAL"
	costRowName  = "AC"
	failedMarker = "failed"
)

type reportRow struct {
	LineId              string `csv:"line_id"`
	Name                string `csv:"name"`
	Source              string `csv:"source"`
	Baseline            string `csv:"baseline"`
	PlannedFraction     string `csv:"planned_fraction"`
	EarnedFraction      string `csv:"earned_fraction"`
	PV                  string `csv:"pv"`
	EV                  string `csv:"ev"`
	AC                  string `csv:"ac"`
	SPI                 string `csv:"spi"`
	CPI                 string `csv:"cpi"`
	PercentCompleteCost string `csv:"percent_complete_cost"`
	Status              string `csv:"status"`
}

// WriteCSV renders one row per budget line, a project total row and then one
// AC row per cost source.
func WriteCSV(snapshot Snapshot, w io.Writer) error {
	rows := make([]*reportRow, 0, len(snapshot.Lines)+1)
	for _, line := range snapshot.Lines {
		rows = append(rows, &reportRow{
			LineId:          strconv.Itoa(line.LineId),
			Name:            line.Name,
			Baseline:        line.Baseline.StringFixed(2),
			PlannedFraction: line.PlannedFraction.StringFixed(4),
			EarnedFraction:  line.EarnedFraction.StringFixed(4),
			PV:              line.PV.StringFixed(2),
			EV:              line.EV.StringFixed(2),
		})
	}
	rows = append(rows, &reportRow{
		Name:                totalRowName,
		Baseline:            snapshot.BaselineTotal.StringFixed(2),
		PV:                  snapshot.PV.StringFixed(2),
		EV:                  snapshot.EV.StringFixed(2),
		AC:                  snapshot.AC.StringFixed(2),
		SPI:                 optional(snapshot.SPI),
		CPI:                 optional(snapshot.CPI),
		PercentCompleteCost: optional(snapshot.PercentCompleteCost),
	})
	for _, cost := range snapshot.Costs {
		row := &reportRow{Name: costRowName, Source: cost.Source, AC: cost.Amount.StringFixed(2)}
		if cost.Failed {
			row.Status = failedMarker
		}
		rows = append(rows, row)
	}
	return gocsv.Marshal(rows, w)
}

func optional(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(4)
}
