package employee

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrEmployeeNotFound = errors.New("employee not found")

type Repository interface {
	Create(ctx context.Context, tenantId int, e Employee) (int, error)
	Get(ctx context.Context, tenantId int, id int) (Employee, error)
	List(ctx context.Context, tenantId int) ([]Employee, error)
	UpdateRate(ctx context.Context, tenantId int, id int, rate decimal.Decimal) (bool, error)
	SetActive(ctx context.Context, tenantId int, id int, active bool) (bool, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Create(ctx context.Context, tenantId int, e Employee) (int, error) {
	query := `INSERT INTO employee (tenant_id, name, hourly_rate, active) VALUES ($1, $2, $3, $4) RETURNING id`
	var id int
	err := r.db.QueryRow(ctx, query, tenantId, e.Name, e.HourlyRate, e.Active).Scan(&id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return 0, err
	}
	return id, nil
}

func (r *RepositoryImpl) Get(ctx context.Context, tenantId int, id int) (Employee, error) {
	query := `SELECT id, tenant_id, name, hourly_rate, active FROM employee WHERE tenant_id = $1 AND id = $2`
	var e Employee
	err := r.db.QueryRow(ctx, query, tenantId, id).Scan(&e.Id, &e.TenantId, &e.Name, &e.HourlyRate, &e.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrEmployeeNotFound
		}
		err := fmt.Errorf("error scanning row: %w", err)
		log.Error(err)
		return Employee{}, err
	}
	return e, nil
}

func (r *RepositoryImpl) List(ctx context.Context, tenantId int) ([]Employee, error) {
	query := `SELECT id, tenant_id, name, hourly_rate, active FROM employee WHERE tenant_id = $1 ORDER BY name, id`
	rows, err := r.db.Query(ctx, query, tenantId)
	if err != nil {
		err := fmt.Errorf("could not query employees: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	employees := make([]Employee, 0)
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.Id, &e.TenantId, &e.Name, &e.HourlyRate, &e.Active); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return employees, nil
}

func (r *RepositoryImpl) UpdateRate(ctx context.Context, tenantId int, id int, rate decimal.Decimal) (bool, error) {
	query := `UPDATE employee SET hourly_rate = $1 WHERE tenant_id = $2 AND id = $3`
	result, err := r.db.Exec(ctx, query, rate, tenantId, id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) SetActive(ctx context.Context, tenantId int, id int, active bool) (bool, error) {
	query := `UPDATE employee SET active = $1 WHERE tenant_id = $2 AND id = $3`
	result, err := r.db.Exec(ctx, query, active, tenantId, id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}
