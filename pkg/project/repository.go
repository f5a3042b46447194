package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrProjectNotFound = errors.New("project not found")
var ErrChangeOrderNotFound = errors.New("change order not found")

type Repository interface {
	CreateProject(ctx context.Context, tenantId int, p Project) (int, error)
	GetProject(ctx context.Context, tenantId int, id int) (Project, error)
	ListProjects(ctx context.Context, tenantId int) ([]Project, error)
	UpdateProject(ctx context.Context, tenantId int, p Project) (bool, error)
	CreateChangeOrder(ctx context.Context, tenantId int, co ChangeOrder) (int, error)
	GetChangeOrder(ctx context.Context, tenantId int, id int) (ChangeOrder, error)
	ListChangeOrders(ctx context.Context, tenantId int, projectId int) ([]ChangeOrder, error)
	CreateExpense(ctx context.Context, tenantId int, e Expense) (int, error)
	ListExpenses(ctx context.Context, tenantId int, projectId int) ([]Expense, error)
	// SumExpenses returns the total of the project's expenses dated on or before asOf.
	SumExpenses(ctx context.Context, tenantId int, projectId int, asOf time.Time) (decimal.Decimal, error)
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) CreateProject(ctx context.Context, tenantId int, p Project) (int, error) {
	query := `INSERT INTO project (tenant_id, name, default_labor_rate) VALUES ($1, $2, $3) RETURNING id`
	var id int
	if err := r.db.QueryRow(ctx, query, tenantId, p.Name, nullDecimal(p.DefaultLaborRate)).Scan(&id); err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return 0, err
	}
	return id, nil
}

func (r *RepositoryImpl) GetProject(ctx context.Context, tenantId int, id int) (Project, error) {
	query := `SELECT id, tenant_id, name, default_labor_rate FROM project WHERE tenant_id = $1 AND id = $2`
	var p Project
	var rate decimal.NullDecimal
	err := r.db.QueryRow(ctx, query, tenantId, id).Scan(&p.Id, &p.TenantId, &p.Name, &rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrProjectNotFound
		}
		err := fmt.Errorf("error scanning row: %w", err)
		log.Error(err)
		return Project{}, err
	}
	p.DefaultLaborRate = decimalPtr(rate)
	return p, nil
}

func (r *RepositoryImpl) ListProjects(ctx context.Context, tenantId int) ([]Project, error) {
	query := `SELECT id, tenant_id, name, default_labor_rate FROM project WHERE tenant_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, tenantId)
	if err != nil {
		err := fmt.Errorf("could not query projects: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	projects := make([]Project, 0)
	for rows.Next() {
		var p Project
		var rate decimal.NullDecimal
		if err := rows.Scan(&p.Id, &p.TenantId, &p.Name, &rate); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		p.DefaultLaborRate = decimalPtr(rate)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *RepositoryImpl) UpdateProject(ctx context.Context, tenantId int, p Project) (bool, error) {
	query := `UPDATE project SET name = $1, default_labor_rate = $2 WHERE tenant_id = $3 AND id = $4`
	result, err := r.db.Exec(ctx, query, p.Name, nullDecimal(p.DefaultLaborRate), tenantId, p.Id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (r *RepositoryImpl) CreateChangeOrder(ctx context.Context, tenantId int, co ChangeOrder) (int, error) {
	query := `INSERT INTO change_order (tenant_id, project_id, title, override_rate) VALUES ($1, $2, $3, $4) RETURNING id`
	var id int
	err := r.db.QueryRow(ctx, query, tenantId, co.ProjectId, co.Title, nullDecimal(co.OverrideRate)).Scan(&id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return 0, err
	}
	return id, nil
}

func (r *RepositoryImpl) GetChangeOrder(ctx context.Context, tenantId int, id int) (ChangeOrder, error) {
	query := `SELECT id, project_id, title, override_rate FROM change_order WHERE tenant_id = $1 AND id = $2`
	var co ChangeOrder
	var rate decimal.NullDecimal
	err := r.db.QueryRow(ctx, query, tenantId, id).Scan(&co.Id, &co.ProjectId, &co.Title, &rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChangeOrder{}, ErrChangeOrderNotFound
		}
		err := fmt.Errorf("error scanning row: %w", err)
		log.Error(err)
		return ChangeOrder{}, err
	}
	co.OverrideRate = decimalPtr(rate)
	return co, nil
}

func (r *RepositoryImpl) ListChangeOrders(ctx context.Context, tenantId int, projectId int) ([]ChangeOrder, error) {
	query := `SELECT id, project_id, title, override_rate FROM change_order WHERE tenant_id = $1 AND project_id = $2 ORDER BY id`
	rows, err := r.db.Query(ctx, query, tenantId, projectId)
	if err != nil {
		err := fmt.Errorf("could not query change orders: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	orders := make([]ChangeOrder, 0)
	for rows.Next() {
		var co ChangeOrder
		var rate decimal.NullDecimal
		if err := rows.Scan(&co.Id, &co.ProjectId, &co.Title, &rate); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		co.OverrideRate = decimalPtr(rate)
		orders = append(orders, co)
	}
	return orders, rows.Err()
}

func (r *RepositoryImpl) CreateExpense(ctx context.Context, tenantId int, e Expense) (int, error) {
	query := `INSERT INTO expense (tenant_id, project_id, expense_date, amount, description) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	var id int
	err := r.db.QueryRow(ctx, query, tenantId, e.ProjectId, e.Date, e.Amount, e.Description).Scan(&id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return 0, err
	}
	return id, nil
}

func (r *RepositoryImpl) ListExpenses(ctx context.Context, tenantId int, projectId int) ([]Expense, error) {
	query := `SELECT id, project_id, expense_date, amount, description FROM expense
			  WHERE tenant_id = $1 AND project_id = $2 ORDER BY expense_date, id`
	rows, err := r.db.Query(ctx, query, tenantId, projectId)
	if err != nil {
		err := fmt.Errorf("could not query expenses: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	expenses := make([]Expense, 0)
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.Id, &e.ProjectId, &e.Date, &e.Amount, &e.Description); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *RepositoryImpl) SumExpenses(ctx context.Context, tenantId int, projectId int, asOf time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM expense WHERE tenant_id = $1 AND project_id = $2 AND expense_date <= $3`
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, tenantId, projectId, asOf).Scan(&total); err != nil {
		err := fmt.Errorf("could not sum expenses: %w", err)
		log.Error(err)
		return decimal.Zero, err
	}
	return total, nil
}
