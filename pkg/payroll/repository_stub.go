package payroll

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type stubWorkedTime struct {
	WorkedTime
	tenantId   int
	employeeId int
	recordId   *int
}

type stubState struct {
	nextId   int
	periods  map[int]PayrollPeriod
	records  map[int]PayrollRecord
	tenants  map[int]int // record id -> tenant id
	worked   map[int]stubWorkedTime
	profiles map[[2]int]TaxProfile // {tenant, employee}
}

func (s stubState) clone() stubState {
	c := stubState{
		nextId:   s.nextId,
		periods:  make(map[int]PayrollPeriod, len(s.periods)),
		records:  make(map[int]PayrollRecord, len(s.records)),
		tenants:  make(map[int]int, len(s.tenants)),
		worked:   make(map[int]stubWorkedTime, len(s.worked)),
		profiles: make(map[[2]int]TaxProfile, len(s.profiles)),
	}
	for k, v := range s.periods {
		c.periods[k] = v
	}
	for k, v := range s.records {
		v.Entries = append([]PayrollEntry(nil), v.Entries...)
		c.records[k] = v
	}
	for k, v := range s.tenants {
		c.tenants[k] = v
	}
	for k, v := range s.worked {
		c.worked[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	return c
}

type RepositoryStub struct {
	mu            sync.Mutex
	state         stubState
	inTransaction bool
	failRecordId  int
}

func NewRepositoryStub() *RepositoryStub {
	r := &RepositoryStub{}
	r.Cleanup()
	return r
}

func (r *RepositoryStub) Cleanup() {
	r.state = stubState{}.clone()
	r.failRecordId = 0
}

var errStubFailure = errors.New("stub: simulated write failure")

// FailSavingRecord makes SaveRecordTotals fail for recordId.
func (r *RepositoryStub) FailSavingRecord(recordId int) {
	r.failRecordId = recordId
}

// AddWorkedTime registers a time entry the recompute can roll up.
func (r *RepositoryStub) AddWorkedTime(tenantId int, employeeId int, w WorkedTime) {
	r.state.worked[w.EntryId] = stubWorkedTime{WorkedTime: w, tenantId: tenantId, employeeId: employeeId}
}

// LinkedRecord returns the record a time entry is rolled into, if any.
func (r *RepositoryStub) LinkedRecord(entryId int) *int {
	return r.state.worked[entryId].recordId
}

func (r *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	if r.inTransaction {
		return fn(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy the current state for rollback
	original := r.state.clone()
	r.inTransaction = true
	err := fn(r)
	r.inTransaction = false
	if err != nil {
		r.state = original
		return err
	}
	return nil
}

func (r *RepositoryStub) CreatePeriod(ctx context.Context, tenantId int, period PayrollPeriod) (PayrollPeriod, error) {
	r.state.nextId++
	period.Id = r.state.nextId
	period.TenantId = tenantId
	r.state.periods[period.Id] = period
	return period, nil
}

func (r *RepositoryStub) GetPeriod(ctx context.Context, tenantId int, id int) (PayrollPeriod, error) {
	p, ok := r.state.periods[id]
	if !ok || p.TenantId != tenantId {
		return PayrollPeriod{}, ErrPeriodNotFound
	}
	return p, nil
}

func (r *RepositoryStub) LockPeriodForUpdate(ctx context.Context, tenantId int, id int) (PayrollPeriod, error) {
	return r.GetPeriod(ctx, tenantId, id)
}

func (r *RepositoryStub) ListPeriods(ctx context.Context, tenantId int) ([]PayrollPeriod, error) {
	return r.filterPeriods(func(p PayrollPeriod) bool { return p.TenantId == tenantId }), nil
}

func (r *RepositoryStub) ListStalePeriods(ctx context.Context) ([]PayrollPeriod, error) {
	return r.filterPeriods(func(p PayrollPeriod) bool { return p.NeedsRecompute }), nil
}

func (r *RepositoryStub) filterPeriods(keep func(PayrollPeriod) bool) []PayrollPeriod {
	result := make([]PayrollPeriod, 0)
	for _, p := range r.state.periods {
		if keep(p) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Start.Equal(result[j].Start) {
			return result[i].Start.Before(result[j].Start)
		}
		return result[i].Id < result[j].Id
	})
	return result
}

func (r *RepositoryStub) SetPeriodLocked(ctx context.Context, tenantId int, id int, locked bool) (bool, error) {
	p, err := r.GetPeriod(ctx, tenantId, id)
	if err != nil {
		return false, nil
	}
	p.Locked = locked
	r.state.periods[id] = p
	return true, nil
}

func (r *RepositoryStub) MarkStale(ctx context.Context, tenantId int, date time.Time) (int, error) {
	count := 0
	for id, p := range r.state.periods {
		if p.TenantId == tenantId && p.Covers(date) {
			p.NeedsRecompute = true
			r.state.periods[id] = p
			count++
		}
	}
	return count, nil
}

func (r *RepositoryStub) MarkPeriodStale(ctx context.Context, tenantId int, id int) error {
	p, err := r.GetPeriod(ctx, tenantId, id)
	if err != nil {
		return nil
	}
	p.NeedsRecompute = true
	r.state.periods[id] = p
	return nil
}

func (r *RepositoryStub) FinishRecompute(ctx context.Context, tenantId int, id int, at time.Time) error {
	p, err := r.GetPeriod(ctx, tenantId, id)
	if err != nil {
		return err
	}
	p.RecomputedAt = &at
	p.NeedsRecompute = false
	r.state.periods[id] = p
	return nil
}

func (r *RepositoryStub) CreateRecord(ctx context.Context, tenantId int, record PayrollRecord) (PayrollRecord, error) {
	for id, existing := range r.state.records {
		if r.state.tenants[id] == tenantId && existing.PeriodId == record.PeriodId && existing.EmployeeId == record.EmployeeId {
			return PayrollRecord{}, ErrDuplicateRecord
		}
	}
	r.state.nextId++
	record.Id = r.state.nextId
	record.Entries = []PayrollEntry{}
	r.state.records[record.Id] = record
	r.state.tenants[record.Id] = tenantId
	return record, nil
}

func (r *RepositoryStub) GetRecord(ctx context.Context, tenantId int, id int) (PayrollRecord, error) {
	rec, ok := r.state.records[id]
	if !ok || r.state.tenants[id] != tenantId {
		return PayrollRecord{}, ErrRecordNotFound
	}
	rec.Entries = append([]PayrollEntry{}, rec.Entries...)
	return rec, nil
}

func (r *RepositoryStub) ListRecords(ctx context.Context, tenantId int, periodId int) ([]PayrollRecord, error) {
	result := make([]PayrollRecord, 0)
	for id, rec := range r.state.records {
		if r.state.tenants[id] == tenantId && rec.PeriodId == periodId {
			rec.Entries = append([]PayrollEntry{}, rec.Entries...)
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].EmployeeId != result[j].EmployeeId {
			return result[i].EmployeeId < result[j].EmployeeId
		}
		return result[i].Id < result[j].Id
	})
	return result, nil
}

func (r *RepositoryStub) SaveRecordTotals(ctx context.Context, tenantId int, rec PayrollRecord) error {
	if r.failRecordId != 0 && rec.Id == r.failRecordId {
		return errStubFailure
	}
	existing, err := r.GetRecord(ctx, tenantId, rec.Id)
	if err != nil {
		return err
	}
	rec.PeriodId = existing.PeriodId
	rec.EmployeeId = existing.EmployeeId
	rec.Adjustments = existing.Adjustments
	rec.Locked = existing.Locked
	rec.Entries = existing.Entries
	r.state.records[rec.Id] = rec
	return nil
}

func (r *RepositoryStub) SetRecordLocked(ctx context.Context, tenantId int, id int, locked bool) (bool, error) {
	rec, err := r.GetRecord(ctx, tenantId, id)
	if err != nil {
		return false, nil
	}
	rec.Locked = locked
	r.state.records[id] = rec
	return true, nil
}

func (r *RepositoryStub) ReplaceEntries(ctx context.Context, tenantId int, recordId int, entries []PayrollEntry) error {
	rec, err := r.GetRecord(ctx, tenantId, recordId)
	if err != nil {
		return err
	}
	rec.Entries = make([]PayrollEntry, 0, len(entries))
	for _, e := range entries {
		e.RecordId = recordId
		rec.Entries = append(rec.Entries, e)
	}
	r.state.records[recordId] = rec
	return nil
}

func (r *RepositoryStub) SumEntryCost(ctx context.Context, tenantId int, projectId int, asOf time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for id, rec := range r.state.records {
		period, ok := r.state.periods[rec.PeriodId]
		if r.state.tenants[id] != tenantId || !ok || period.End.After(asOf) {
			continue
		}
		for _, e := range rec.Entries {
			if e.ProjectId == projectId {
				total = total.Add(e.Cost())
			}
		}
	}
	return total, nil
}

func (r *RepositoryStub) ListWorkedTime(ctx context.Context, tenantId int, employeeId int, recordId int, from, to time.Time) ([]WorkedTime, error) {
	result := make([]WorkedTime, 0)
	for _, w := range r.state.worked {
		if w.tenantId != tenantId || w.employeeId != employeeId || w.Date.Before(from) || w.Date.After(to) {
			continue
		}
		if w.recordId != nil && *w.recordId != recordId {
			continue
		}
		result = append(result, w.WorkedTime)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].EntryId < result[j].EntryId
	})
	return result, nil
}

func (r *RepositoryStub) LinkTimeEntries(ctx context.Context, tenantId int, recordId int, entryIds []int) error {
	for id, w := range r.state.worked {
		if w.tenantId == tenantId && w.recordId != nil && *w.recordId == recordId {
			w.recordId = nil
			r.state.worked[id] = w
		}
	}
	for _, id := range entryIds {
		w, ok := r.state.worked[id]
		if !ok || w.tenantId != tenantId {
			continue
		}
		rid := recordId
		w.recordId = &rid
		r.state.worked[id] = w
	}
	return nil
}

func (r *RepositoryStub) GetTaxProfile(ctx context.Context, tenantId int, employeeId int) (TaxProfile, error) {
	profile, ok := r.state.profiles[[2]int{tenantId, employeeId}]
	if !ok {
		return TaxProfile{}, ErrTaxProfileNotFound
	}
	profile.Brackets = append([]TaxBracket{}, profile.Brackets...)
	return profile, nil
}

func (r *RepositoryStub) SaveTaxProfile(ctx context.Context, tenantId int, profile TaxProfile) error {
	profile.Brackets = append([]TaxBracket{}, profile.Brackets...)
	r.state.profiles[[2]int{tenantId, profile.EmployeeId}] = profile
	return nil
}
