package timeentry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrEntryNotFound = errors.New("time entry not found")

type Filter struct {
	From       time.Time
	To         time.Time
	EmployeeId *int
	ProjectId  *int
}

type Repository interface {
	Create(ctx context.Context, tenantId int, e TimeEntry) (TimeEntry, error)
	Get(ctx context.Context, tenantId int, id int) (TimeEntry, error)
	List(ctx context.Context, tenantId int, filter Filter) ([]TimeEntry, error)
	UpdateNotes(ctx context.Context, tenantId int, id int, notes string) (bool, error)
	// DeleteUnrolled deletes the entry unless payroll has already rolled it up.
	DeleteUnrolled(ctx context.Context, tenantId int, id int) (bool, error)
	// SumUnrolledCost sums hours × cost rate of the project's entries dated on or before
	// asOf that carry a cost rate and are not yet costed by payroll as of asOf: either
	// unlinked, or linked to a record whose period ends after asOf.
	SumUnrolledCost(ctx context.Context, tenantId int, projectId int, asOf time.Time) (decimal.Decimal, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

const entryColumns = `id, tenant_id, employee_id, project_id, change_order_id, entry_date, start_time, end_time,
			notes, hours, cost_rate, billable_rate, payroll_record_id, created`

func (r *RepositoryImpl) Create(ctx context.Context, tenantId int, e TimeEntry) (TimeEntry, error) {
	query := `INSERT INTO time_entry (
					tenant_id,
					employee_id,
					project_id,
					change_order_id,
					entry_date,
					start_time,
					end_time,
					notes,
					hours,
					cost_rate,
					billable_rate
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id, created`

	err := r.db.QueryRow(ctx, query,
		tenantId,
		e.EmployeeId,
		e.ProjectId,
		e.ChangeOrderId,
		e.Date,
		toPgTime(e.Start),
		toPgTime(e.End),
		e.Notes,
		e.Hours,
		e.CostRate,
		e.BillableRate,
	).Scan(&e.Id, &e.Created)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return TimeEntry{}, err
	}
	e.TenantId = tenantId
	return e, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, tenantId int, id int) (TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entry WHERE tenant_id = $1 AND id = $2`
	e, err := scanEntry(r.db.QueryRow(ctx, query, tenantId, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TimeEntry{}, ErrEntryNotFound
		}
		err := fmt.Errorf("error scanning row: %w", err)
		log.Error(err)
		return TimeEntry{}, err
	}
	return e, nil
}

func (r *RepositoryImpl) List(ctx context.Context, tenantId int, filter Filter) ([]TimeEntry, error) {
	conditions := []string{"tenant_id = $1", "entry_date >= $2", "entry_date <= $3"}
	args := []any{tenantId, filter.From, filter.To}
	if filter.EmployeeId != nil {
		args = append(args, *filter.EmployeeId)
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.ProjectId != nil {
		args = append(args, *filter.ProjectId)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	query := `SELECT ` + entryColumns + ` FROM time_entry WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY entry_date, start_time, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query time entries: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	entries := make([]TimeEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return entries, nil
}

func (r *RepositoryImpl) UpdateNotes(ctx context.Context, tenantId int, id int, notes string) (bool, error) {
	query := `UPDATE time_entry SET notes = $1 WHERE tenant_id = $2 AND id = $3`
	result, err := r.db.Exec(ctx, query, notes, tenantId, id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) DeleteUnrolled(ctx context.Context, tenantId int, id int) (bool, error) {
	query := `DELETE FROM time_entry WHERE tenant_id = $1 AND id = $2 AND payroll_record_id IS NULL`
	result, err := r.db.Exec(ctx, query, tenantId, id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) SumUnrolledCost(ctx context.Context, tenantId int, projectId int, asOf time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(hours * cost_rate), 0) FROM time_entry
			  WHERE tenant_id = $1 AND project_id = $2 AND entry_date <= $3
			  AND cost_rate > 0
			  AND (payroll_record_id IS NULL OR NOT EXISTS (
			      SELECT 1 FROM payroll_record r
			      JOIN payroll_period p ON p.id = r.period_id
			      WHERE r.id = time_entry.payroll_record_id AND p.end_date <= $3))`
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, tenantId, projectId, asOf).Scan(&total); err != nil {
		err := fmt.Errorf("could not sum time entry cost: %w", err)
		log.Error(err)
		return decimal.Zero, err
	}
	return total, nil
}

func scanEntry(row pgx.Row) (TimeEntry, error) {
	var (
		e               TimeEntry
		start, end      pgtype.Time
		changeOrderId   *int
		payrollRecordId *int
	)
	err := row.Scan(
		&e.Id,
		&e.TenantId,
		&e.EmployeeId,
		&e.ProjectId,
		&changeOrderId,
		&e.Date,
		&start,
		&end,
		&e.Notes,
		&e.Hours,
		&e.CostRate,
		&e.BillableRate,
		&payrollRecordId,
		&e.Created,
	)
	if err != nil {
		return TimeEntry{}, err
	}
	e.ChangeOrderId = changeOrderId
	e.PayrollRecordId = payrollRecordId
	e.Start = fromPgTime(start)
	e.End = fromPgTime(end)
	return e, nil
}

func toPgTime(c ClockTime) pgtype.Time {
	return pgtype.Time{Microseconds: int64(c) * 1_000_000, Valid: true}
}

func fromPgTime(t pgtype.Time) ClockTime {
	return ClockTime(t.Microseconds / 1_000_000)
}
