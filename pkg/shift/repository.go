package shift

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	// ReplaceShift stores shift as the employee's open shift, replacing any previous one.
	ReplaceShift(ctx context.Context, tenantId int, shift Shift) (Shift, error)
	DeleteShift(ctx context.Context, tenantId int, employeeId int) error
	// FindShift returns the employee's open shift or a zero Shift when there is none.
	FindShift(ctx context.Context, tenantId int, employeeId int) (Shift, error)
	ListShifts(ctx context.Context, tenantId int) ([]Shift, error)
}

type repositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) ReplaceShift(ctx context.Context, tenantId int, shift Shift) (Shift, error) {
	query := `INSERT INTO open_shift (tenant_id, employee_id, project_id, change_order_id, start_time, notes)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (tenant_id, employee_id) DO UPDATE SET
					project_id = EXCLUDED.project_id,
					change_order_id = EXCLUDED.change_order_id,
					start_time = EXCLUDED.start_time,
					notes = EXCLUDED.notes
				RETURNING id`

	err := r.db.QueryRow(ctx, query, tenantId, shift.EmployeeId, shift.ProjectId, shift.ChangeOrderId, shift.StartTime, shift.Notes).
		Scan(&shift.Id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return Shift{}, err
	}
	return shift, nil
}

func (r *repositoryImpl) DeleteShift(ctx context.Context, tenantId int, employeeId int) error {
	_, err := r.db.Exec(ctx, "DELETE FROM open_shift WHERE tenant_id = $1 AND employee_id = $2", tenantId, employeeId)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

const shiftColumns = `id, employee_id, project_id, change_order_id, start_time, notes`

func (r *repositoryImpl) FindShift(ctx context.Context, tenantId int, employeeId int) (Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM open_shift WHERE tenant_id = $1 AND employee_id = $2`

	shift, err := scanShift(r.db.QueryRow(ctx, query, tenantId, employeeId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shift{}, nil
		}
		err := fmt.Errorf("failed when trying to find open shift: %w", err)
		log.Error(err)
		return Shift{}, err
	}
	return shift, nil
}

func (r *repositoryImpl) ListShifts(ctx context.Context, tenantId int) ([]Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM open_shift WHERE tenant_id = $1 ORDER BY start_time, employee_id`
	rows, err := r.db.Query(ctx, query, tenantId)
	if err != nil {
		err := fmt.Errorf("could not query open shifts: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	shifts := make([]Shift, 0)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		shifts = append(shifts, shift)
	}
	return shifts, rows.Err()
}

func scanShift(row pgx.Row) (Shift, error) {
	var s Shift
	err := row.Scan(&s.Id, &s.EmployeeId, &s.ProjectId, &s.ChangeOrderId, &s.StartTime, &s.Notes)
	return s, err
}
