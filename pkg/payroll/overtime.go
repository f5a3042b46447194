package payroll

import (
	"github.com/shopspring/decimal"
)

// SplitOvertime splits worked hours into regular and overtime hours. The threshold
// applies to each ISO week separately, so a period spanning two weeks can reach it
// twice.
func SplitOvertime(worked []WorkedTime, weeklyThreshold decimal.Decimal) (regular, overtime decimal.Decimal) {
	type isoWeek struct{ year, week int }
	perWeek := make(map[isoWeek]decimal.Decimal)
	order := make([]isoWeek, 0)
	for _, w := range worked {
		year, week := w.Date.ISOWeek()
		key := isoWeek{year, week}
		if _, ok := perWeek[key]; !ok {
			order = append(order, key)
		}
		perWeek[key] = perWeek[key].Add(w.Hours)
	}

	regular, overtime = decimal.Zero, decimal.Zero
	for _, key := range order {
		hours := perWeek[key]
		if hours.GreaterThan(weeklyThreshold) {
			regular = regular.Add(weeklyThreshold)
			overtime = overtime.Add(hours.Sub(weeklyThreshold))
		} else {
			regular = regular.Add(hours)
		}
	}
	return regular, overtime
}

// projectEntries rolls worked hours up per project, in order of first appearance.
func projectEntries(recordId int, worked []WorkedTime, rate decimal.Decimal) []PayrollEntry {
	entries := make([]PayrollEntry, 0)
	index := make(map[int]int)
	for _, w := range worked {
		i, ok := index[w.ProjectId]
		if !ok {
			i = len(entries)
			index[w.ProjectId] = i
			entries = append(entries, PayrollEntry{RecordId: recordId, ProjectId: w.ProjectId, Hours: decimal.Zero, HourlyRate: rate})
		}
		entries[i].Hours = entries[i].Hours.Add(w.Hours)
	}
	return entries
}
