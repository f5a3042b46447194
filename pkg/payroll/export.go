package payroll

import (
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
)

type recordRow struct {
	RecordId      int    `csv:"record_id"`
	EmployeeId    int    `csv:"employee_id"`
	HourlyRate    string `csv:"hourly_rate"`
	RegularHours  string `csv:"regular_hours"`
	OvertimeHours string `csv:"overtime_hours"`
	RegularPay    string `csv:"regular_pay"`
	OvertimePay   string `csv:"overtime_pay"`
	Adjustments   string `csv:"adjustments"`
	GrossPay      string `csv:"gross_pay"`
	Tax           string `csv:"tax"`
	NetPay        string `csv:"net_pay"`
	Locked        bool   `csv:"locked"`
	RecomputedAt  string `csv:"recomputed_at"`
}

// WriteRecordsCSV writes one row per payroll record of the period.
func WriteRecordsCSV(records []PayrollRecord, w io.Writer) error {
	rows := make([]*recordRow, 0, len(records))
	for _, rec := range records {
		row := &recordRow{
			RecordId:      rec.Id,
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
		}
		if rec.RecomputedAt != nil {
			row.RecomputedAt = rec.RecomputedAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		rows = append(rows, row)
	}
	return gocsv.Marshal(rows, w)
}

func exportFilename(period PayrollPeriod) string {
	return "payroll-" + strconv.Itoa(period.Id) + "-" + period.Start.Format("20060102") + ".csv"
}
