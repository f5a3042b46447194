package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildledger/buildledger/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrPeriodNotFound = errors.New("payroll period not found")
var ErrRecordNotFound = errors.New("payroll record not found")
var ErrTaxProfileNotFound = errors.New("tax profile not found")
var ErrDuplicateRecord = errors.New("employee already has a record in this period")

type Repository interface {
	WithTransaction(ctx context.Context, fn func(repo Repository) error) error

	CreatePeriod(ctx context.Context, tenantId int, period PayrollPeriod) (PayrollPeriod, error)
	GetPeriod(ctx context.Context, tenantId int, id int) (PayrollPeriod, error)
	// LockPeriodForUpdate reads the period and holds its row lock until the surrounding
	// transaction ends.
	LockPeriodForUpdate(ctx context.Context, tenantId int, id int) (PayrollPeriod, error)
	ListPeriods(ctx context.Context, tenantId int) ([]PayrollPeriod, error)
	SetPeriodLocked(ctx context.Context, tenantId int, id int, locked bool) (bool, error)
	// MarkStale flags every period of the tenant covering date for recomputation.
	MarkStale(ctx context.Context, tenantId int, date time.Time) (int, error)
	MarkPeriodStale(ctx context.Context, tenantId int, id int) error
	// ListStalePeriods returns flagged periods across all tenants.
	ListStalePeriods(ctx context.Context) ([]PayrollPeriod, error)
	FinishRecompute(ctx context.Context, tenantId int, id int, at time.Time) error

	CreateRecord(ctx context.Context, tenantId int, record PayrollRecord) (PayrollRecord, error)
	GetRecord(ctx context.Context, tenantId int, id int) (PayrollRecord, error)
	ListRecords(ctx context.Context, tenantId int, periodId int) ([]PayrollRecord, error)
	SaveRecordTotals(ctx context.Context, tenantId int, record PayrollRecord) error
	SetRecordLocked(ctx context.Context, tenantId int, id int, locked bool) (bool, error)
	ReplaceEntries(ctx context.Context, tenantId int, recordId int, entries []PayrollEntry) error
	// SumEntryCost totals payroll entry cost on the project for periods ending on or
	// before asOf.
	SumEntryCost(ctx context.Context, tenantId int, projectId int, asOf time.Time) (decimal.Decimal, error)

	// ListWorkedTime returns the employee's time entries dated within [from, to] that
	// are not yet rolled into a record other than recordId.
	ListWorkedTime(ctx context.Context, tenantId int, employeeId int, recordId int, from, to time.Time) ([]WorkedTime, error)
	// LinkTimeEntries makes entryIds the exact set of time entries rolled into recordId.
	LinkTimeEntries(ctx context.Context, tenantId int, recordId int, entryIds []int) error

	GetTaxProfile(ctx context.Context, tenantId int, employeeId int) (TaxProfile, error)
	SaveTaxProfile(ctx context.Context, tenantId int, profile TaxProfile) error
}

type repositoryImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewRepo(db *pgxpool.Pool) Repository {
	return &repositoryImpl{db: db}
}

// getQueryer returns the appropriate database interface for queries (either tx or db)
func (r *repositoryImpl) getQueryer() database.Queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *repositoryImpl) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// The Rollback will be a no-op if the transaction was already committed
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	txRepo := &repositoryImpl{db: r.db, tx: tx}
	if err := fn(txRepo); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const periodColumns = `id, tenant_id, name, start_date, end_date, locked, needs_recompute, recomputed_at`

func (r *repositoryImpl) CreatePeriod(ctx context.Context, tenantId int, period PayrollPeriod) (PayrollPeriod, error) {
	query := `INSERT INTO payroll_period (tenant_id, name, start_date, end_date)
			  VALUES ($1, $2, $3, $4) RETURNING ` + periodColumns
	created, err := scanPeriod(r.getQueryer().QueryRow(ctx, query, tenantId, period.Name, period.Start, period.End))
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return PayrollPeriod{}, err
	}
	return created, nil
}

func (r *repositoryImpl) GetPeriod(ctx context.Context, tenantId int, id int) (PayrollPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM payroll_period WHERE tenant_id = $1 AND id = $2`
	return r.getPeriod(ctx, query, tenantId, id)
}

func (r *repositoryImpl) LockPeriodForUpdate(ctx context.Context, tenantId int, id int) (PayrollPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM payroll_period WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	return r.getPeriod(ctx, query, tenantId, id)
}

func (r *repositoryImpl) getPeriod(ctx context.Context, query string, tenantId int, id int) (PayrollPeriod, error) {
	period, err := scanPeriod(r.getQueryer().QueryRow(ctx, query, tenantId, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PayrollPeriod{}, ErrPeriodNotFound
		}
		err := fmt.Errorf("error scanning row: %w", err)
		log.Error(err)
		return PayrollPeriod{}, err
	}
	return period, nil
}

func (r *repositoryImpl) ListPeriods(ctx context.Context, tenantId int) ([]PayrollPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM payroll_period WHERE tenant_id = $1 ORDER BY start_date, id`
	return r.listPeriods(ctx, query, tenantId)
}

func (r *repositoryImpl) ListStalePeriods(ctx context.Context) ([]PayrollPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM payroll_period WHERE needs_recompute ORDER BY tenant_id, start_date, id`
	return r.listPeriods(ctx, query)
}

func (r *repositoryImpl) listPeriods(ctx context.Context, query string, args ...any) ([]PayrollPeriod, error) {
	rows, err := r.getQueryer().Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query payroll periods: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	periods := make([]PayrollPeriod, 0)
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		periods = append(periods, period)
	}
	return periods, rows.Err()
}

func (r *repositoryImpl) SetPeriodLocked(ctx context.Context, tenantId int, id int, locked bool) (bool, error) {
	return r.exec(ctx, `UPDATE payroll_period SET locked = $1 WHERE tenant_id = $2 AND id = $3`, locked, tenantId, id)
}

func (r *repositoryImpl) MarkStale(ctx context.Context, tenantId int, date time.Time) (int, error) {
	query := `UPDATE payroll_period SET needs_recompute = TRUE
			  WHERE tenant_id = $1 AND start_date <= $2 AND end_date >= $2`
	result, err := r.getQueryer().Exec(ctx, query, tenantId, date)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return 0, err
	}
	return int(result.RowsAffected()), nil
}

func (r *repositoryImpl) MarkPeriodStale(ctx context.Context, tenantId int, id int) error {
	_, err := r.exec(ctx, `UPDATE payroll_period SET needs_recompute = TRUE WHERE tenant_id = $1 AND id = $2`, tenantId, id)
	return err
}

func (r *repositoryImpl) FinishRecompute(ctx context.Context, tenantId int, id int, at time.Time) error {
	updated, err := r.exec(ctx, `UPDATE payroll_period SET recomputed_at = $1, needs_recompute = FALSE
								WHERE tenant_id = $2 AND id = $3`, at, tenantId, id)
	if err != nil {
		return err
	}
	if !updated {
		return ErrPeriodNotFound
	}
	return nil
}

const recordColumns = `r.id, r.period_id, r.employee_id, r.hourly_rate, r.regular_hours, r.overtime_hours,
	r.regular_pay, r.overtime_pay, r.adjustments, r.gross_pay, r.tax, r.net_pay, r.locked, r.recomputed_at`

func (r *repositoryImpl) CreateRecord(ctx context.Context, tenantId int, record PayrollRecord) (PayrollRecord, error) {
	query := `INSERT INTO payroll_record (tenant_id, period_id, employee_id, adjustments)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`
	var id int
	err := r.getQueryer().QueryRow(ctx, query, tenantId, record.PeriodId, record.EmployeeId, record.Adjustments).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return PayrollRecord{}, ErrDuplicateRecord
		}
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return PayrollRecord{}, err
	}
	return r.GetRecord(ctx, tenantId, id)
}

func (r *repositoryImpl) GetRecord(ctx context.Context, tenantId int, id int) (PayrollRecord, error) {
	records, err := r.listRecords(ctx, `WHERE r.tenant_id = $1 AND r.id = $2`, tenantId, id)
	if err != nil {
		return PayrollRecord{}, err
	}
	if len(records) == 0 {
		return PayrollRecord{}, ErrRecordNotFound
	}
	return records[0], nil
}

func (r *repositoryImpl) ListRecords(ctx context.Context, tenantId int, periodId int) ([]PayrollRecord, error) {
	return r.listRecords(ctx, `WHERE r.tenant_id = $1 AND r.period_id = $2`, tenantId, periodId)
}

func (r *repositoryImpl) listRecords(ctx context.Context, where string, args ...any) ([]PayrollRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM payroll_record r ` + where + ` ORDER BY r.employee_id, r.id`
	rows, err := r.getQueryer().Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query payroll records: %w", err)
		log.Error(err)
		return nil, err
	}
	records := make([]PayrollRecord, 0)
	byId := make(map[int]int)
	for rows.Next() {
		var rec PayrollRecord
		var recomputedAt *time.Time
		if err := rows.Scan(&rec.Id, &rec.PeriodId, &rec.EmployeeId, &rec.HourlyRate, &rec.RegularHours,
			&rec.OvertimeHours, &rec.RegularPay, &rec.OvertimePay, &rec.Adjustments, &rec.GrossPay, &rec.Tax,
			&rec.NetPay, &rec.Locked, &recomputedAt); err != nil {
			rows.Close()
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		rec.RecomputedAt = recomputedAt
		rec.Entries = make([]PayrollEntry, 0)
		byId[rec.Id] = len(records)
		records = append(records, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return records, nil
	}

	ids := make([]int, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.Id)
	}
	entryRows, err := r.getQueryer().Query(ctx,
		`SELECT record_id, project_id, hours, hourly_rate FROM payroll_entry
		 WHERE record_id = ANY($1) ORDER BY record_id, project_id`, ids)
	if err != nil {
		err := fmt.Errorf("could not query payroll entries: %w", err)
		log.Error(err)
		return nil, err
	}
	defer entryRows.Close()
	for entryRows.Next() {
		var e PayrollEntry
		if err := entryRows.Scan(&e.RecordId, &e.ProjectId, &e.Hours, &e.HourlyRate); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		idx := byId[e.RecordId]
		records[idx].Entries = append(records[idx].Entries, e)
	}
	return records, entryRows.Err()
}

func (r *repositoryImpl) SaveRecordTotals(ctx context.Context, tenantId int, rec PayrollRecord) error {
	query := `UPDATE payroll_record SET
				hourly_rate = $1, regular_hours = $2, overtime_hours = $3, regular_pay = $4, overtime_pay = $5,
				gross_pay = $6, tax = $7, net_pay = $8, recomputed_at = $9
			  WHERE tenant_id = $10 AND id = $11`
	updated, err := r.exec(ctx, query, rec.HourlyRate, rec.RegularHours, rec.OvertimeHours, rec.RegularPay,
		rec.OvertimePay, rec.GrossPay, rec.Tax, rec.NetPay, rec.RecomputedAt, tenantId, rec.Id)
	if err != nil {
		return err
	}
	if !updated {
		return ErrRecordNotFound
	}
	return nil
}

func (r *repositoryImpl) SetRecordLocked(ctx context.Context, tenantId int, id int, locked bool) (bool, error) {
	return r.exec(ctx, `UPDATE payroll_record SET locked = $1 WHERE tenant_id = $2 AND id = $3`, locked, tenantId, id)
}

func (r *repositoryImpl) ReplaceEntries(ctx context.Context, tenantId int, recordId int, entries []PayrollEntry) error {
	_, err := r.getQueryer().Exec(ctx,
		`DELETE FROM payroll_entry WHERE record_id = (SELECT id FROM payroll_record WHERE tenant_id = $1 AND id = $2)`,
		tenantId, recordId)
	if err != nil {
		err := fmt.Errorf("could not delete payroll entries: %w", err)
		log.Error(err)
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{recordId, e.ProjectId, e.Hours, e.HourlyRate})
	}
	_, err = r.copyFrom(ctx, pgx.Identifier{"payroll_entry"}, []string{"record_id", "project_id", "hours", "hourly_rate"}, pgx.CopyFromRows(rows))
	if err != nil {
		err := fmt.Errorf("could not insert payroll entries: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *repositoryImpl) copyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	if r.tx != nil {
		return r.tx.CopyFrom(ctx, table, columns, src)
	}
	return r.db.CopyFrom(ctx, table, columns, src)
}

func (r *repositoryImpl) SumEntryCost(ctx context.Context, tenantId int, projectId int, asOf time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(e.hours * e.hourly_rate), 0)
			  FROM payroll_entry e
			  JOIN payroll_record r ON r.id = e.record_id
			  JOIN payroll_period p ON p.id = r.period_id
			  WHERE r.tenant_id = $1 AND e.project_id = $2 AND p.end_date <= $3`
	var total decimal.Decimal
	if err := r.getQueryer().QueryRow(ctx, query, tenantId, projectId, asOf).Scan(&total); err != nil {
		err := fmt.Errorf("could not sum payroll entries: %w", err)
		log.Error(err)
		return decimal.Zero, err
	}
	return total, nil
}

func (r *repositoryImpl) ListWorkedTime(ctx context.Context, tenantId int, employeeId int, recordId int, from, to time.Time) ([]WorkedTime, error) {
	query := `SELECT id, project_id, entry_date, hours FROM time_entry
			  WHERE tenant_id = $1 AND employee_id = $2 AND entry_date BETWEEN $3 AND $4
			    AND (payroll_record_id IS NULL OR payroll_record_id = $5)
			  ORDER BY entry_date, id
			  FOR UPDATE`
	rows, err := r.getQueryer().Query(ctx, query, tenantId, employeeId, from, to, recordId)
	if err != nil {
		err := fmt.Errorf("could not query time entries: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	worked := make([]WorkedTime, 0)
	for rows.Next() {
		var w WorkedTime
		if err := rows.Scan(&w.EntryId, &w.ProjectId, &w.Date, &w.Hours); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		worked = append(worked, w)
	}
	return worked, rows.Err()
}

func (r *repositoryImpl) LinkTimeEntries(ctx context.Context, tenantId int, recordId int, entryIds []int) error {
	_, err := r.getQueryer().Exec(ctx,
		`UPDATE time_entry SET payroll_record_id = NULL WHERE tenant_id = $1 AND payroll_record_id = $2`,
		tenantId, recordId)
	if err != nil {
		err := fmt.Errorf("could not unlink time entries: %w", err)
		log.Error(err)
		return err
	}
	if len(entryIds) == 0 {
		return nil
	}
	_, err = r.getQueryer().Exec(ctx,
		`UPDATE time_entry SET payroll_record_id = $1 WHERE tenant_id = $2 AND id = ANY($3)`,
		recordId, tenantId, entryIds)
	if err != nil {
		err := fmt.Errorf("could not link time entries: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (r *repositoryImpl) GetTaxProfile(ctx context.Context, tenantId int, employeeId int) (TaxProfile, error) {
	query := `SELECT employee_id, method, active, flat_rate FROM tax_profile WHERE tenant_id = $1 AND employee_id = $2`
	var profile TaxProfile
	var method string
	err := r.getQueryer().QueryRow(ctx, query, tenantId, employeeId).Scan(&profile.EmployeeId, &method, &profile.Active, &profile.FlatRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TaxProfile{}, ErrTaxProfileNotFound
		}
		err := fmt.Errorf("error scanning row: %w", err)
		log.Error(err)
		return TaxProfile{}, err
	}
	profile.Method = TaxMethod(method)

	rows, err := r.getQueryer().Query(ctx,
		`SELECT up_to, rate FROM tax_bracket WHERE tenant_id = $1 AND employee_id = $2 ORDER BY up_to NULLS LAST`,
		tenantId, employeeId)
	if err != nil {
		err := fmt.Errorf("could not query tax brackets: %w", err)
		log.Error(err)
		return TaxProfile{}, err
	}
	defer rows.Close()
	profile.Brackets = make([]TaxBracket, 0)
	for rows.Next() {
		var upTo decimal.NullDecimal
		var b TaxBracket
		if err := rows.Scan(&upTo, &b.Rate); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return TaxProfile{}, err
		}
		if upTo.Valid {
			v := upTo.Decimal
			b.UpTo = &v
		}
		profile.Brackets = append(profile.Brackets, b)
	}
	return profile, rows.Err()
}

// SaveTaxProfile upserts the profile and replaces its brackets. Run it inside
// WithTransaction so the two writes land together.
func (r *repositoryImpl) SaveTaxProfile(ctx context.Context, tenantId int, profile TaxProfile) error {
	query := `INSERT INTO tax_profile (tenant_id, employee_id, method, active, flat_rate)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (tenant_id, employee_id) DO UPDATE
			  SET method = EXCLUDED.method, active = EXCLUDED.active, flat_rate = EXCLUDED.flat_rate`
	if _, err := r.getQueryer().Exec(ctx, query, tenantId, profile.EmployeeId, string(profile.Method), profile.Active, profile.FlatRate); err != nil {
		err := fmt.Errorf("could not save tax profile: %w", err)
		log.Error(err)
		return err
	}
	if _, err := r.getQueryer().Exec(ctx, `DELETE FROM tax_bracket WHERE tenant_id = $1 AND employee_id = $2`, tenantId, profile.EmployeeId); err != nil {
		err := fmt.Errorf("could not delete tax brackets: %w", err)
		log.Error(err)
		return err
	}
	for _, b := range profile.Brackets {
		var upTo decimal.NullDecimal
		if b.UpTo != nil {
			upTo = decimal.NullDecimal{Decimal: *b.UpTo, Valid: true}
		}
		if _, err := r.getQueryer().Exec(ctx,
			`INSERT INTO tax_bracket (tenant_id, employee_id, up_to, rate) VALUES ($1, $2, $3, $4)`,
			tenantId, profile.EmployeeId, upTo, b.Rate); err != nil {
			err := fmt.Errorf("could not insert tax bracket: %w", err)
			log.Error(err)
			return err
		}
	}
	return nil
}

func (r *repositoryImpl) exec(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.getQueryer().Exec(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func scanPeriod(row pgx.Row) (PayrollPeriod, error) {
	var p PayrollPeriod
	var recomputedAt *time.Time
	err := row.Scan(&p.Id, &p.TenantId, &p.Name, &p.Start, &p.End, &p.Locked, &p.NeedsRecompute, &recomputedAt)
	if err != nil {
		return PayrollPeriod{}, err
	}
	p.RecomputedAt = recomputedAt
	return p, nil
}
