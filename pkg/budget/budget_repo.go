package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrBudgetLineNotFound = errors.New("budget line not found")

type BudgetRepo interface {
	Store(ctx context.Context, tenantId int, line BudgetLine) (int, error)
	Get(ctx context.Context, tenantId int, id int) (BudgetLine, error)
	// GetAllForProject returns the project's lines, each with its full progress history.
	GetAllForProject(ctx context.Context, tenantId int, projectId int) ([]BudgetLine, error)
	Update(ctx context.Context, tenantId int, line BudgetLine) (bool, error)
	Delete(ctx context.Context, tenantId int, id int) (bool, error)
	StoreProgress(ctx context.Context, tenantId int, progress BudgetProgress) (int, error)
}

type BudgetRepoImpl struct {
	db *pgxpool.Pool
}

func NewBudgetRepo(db *pgxpool.Pool) *BudgetRepoImpl {
	return &BudgetRepoImpl{db: db}
}

func (bi *BudgetRepoImpl) Store(ctx context.Context, tenantId int, line BudgetLine) (int, error) {
	query := `INSERT INTO budget_line (
                    tenant_id,
                    project_id,
                    name,
                    planned_start,
                    planned_finish,
                    baseline_amount
				) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	var id int
	err := bi.db.QueryRow(ctx, query,
		tenantId,
		line.ProjectId,
		line.Name,
		toPgDate(line.PlannedStart),
		toPgDate(line.PlannedFinish),
		line.BaselineAmount,
	).Scan(&id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return 0, err
	}
	return id, nil
}

func (bi *BudgetRepoImpl) Get(ctx context.Context, tenantId int, id int) (BudgetLine, error) {
	lines, err := bi.query(ctx, `WHERE l.tenant_id = $1 AND l.id = $2`, tenantId, id)
	if err != nil {
		return BudgetLine{}, err
	}
	if len(lines) == 0 {
		return BudgetLine{}, ErrBudgetLineNotFound
	}
	return lines[0], nil
}

func (bi *BudgetRepoImpl) GetAllForProject(ctx context.Context, tenantId int, projectId int) ([]BudgetLine, error) {
	return bi.query(ctx, `WHERE l.tenant_id = $1 AND l.project_id = $2`, tenantId, projectId)
}

// query loads lines joined with their progress and folds the rows back into lines.
func (bi *BudgetRepoImpl) query(ctx context.Context, where string, args ...any) ([]BudgetLine, error) {
	query := `SELECT
				l.id, l.tenant_id, l.project_id, l.name, l.planned_start, l.planned_finish, l.baseline_amount,
				p.id, p.progress_date, p.percent_complete
			  FROM budget_line l
			  LEFT JOIN budget_progress p ON p.budget_line_id = l.id
			  ` + where + `
			  ORDER BY l.id, p.progress_date, p.id`
	rows, err := bi.db.Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query budget lines: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	lines := make([]BudgetLine, 0)
	for rows.Next() {
		var (
			line            BudgetLine
			start, finish   pgtype.Date
			progressId      pgtype.Int8
			progressDate    pgtype.Date
			progressPercent decimal.NullDecimal
		)
		if err := rows.Scan(&line.Id, &line.TenantId, &line.ProjectId, &line.Name, &start, &finish,
			&line.BaselineAmount, &progressId, &progressDate, &progressPercent); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		if len(lines) == 0 || lines[len(lines)-1].Id != line.Id {
			line.PlannedStart = fromPgDate(start)
			line.PlannedFinish = fromPgDate(finish)
			line.Progress = make([]BudgetProgress, 0)
			lines = append(lines, line)
		}
		if progressId.Valid {
			current := &lines[len(lines)-1]
			current.Progress = append(current.Progress, BudgetProgress{
				Id:              int(progressId.Int64),
				BudgetLineId:    current.Id,
				Date:            progressDate.Time,
				PercentComplete: progressPercent.Decimal,
			})
		}
	}
	return lines, rows.Err()
}

func (bi *BudgetRepoImpl) Update(ctx context.Context, tenantId int, line BudgetLine) (bool, error) {
	query := `UPDATE budget_line SET name = $1, planned_start = $2, planned_finish = $3, baseline_amount = $4
			  WHERE tenant_id = $5 AND id = $6`
	result, err := bi.db.Exec(ctx, query, line.Name, toPgDate(line.PlannedStart), toPgDate(line.PlannedFinish),
		line.BaselineAmount, tenantId, line.Id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// Delete removes the line; its progress records go with it through ON DELETE CASCADE.
func (bi *BudgetRepoImpl) Delete(ctx context.Context, tenantId int, id int) (bool, error) {
	result, err := bi.db.Exec(ctx, `DELETE FROM budget_line WHERE tenant_id = $1 AND id = $2`, tenantId, id)
	if err != nil {
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (bi *BudgetRepoImpl) StoreProgress(ctx context.Context, tenantId int, progress BudgetProgress) (int, error) {
	query := `INSERT INTO budget_progress (budget_line_id, progress_date, percent_complete)
			  SELECT id, $3, $4 FROM budget_line WHERE tenant_id = $1 AND id = $2
			  RETURNING id`
	var id int
	err := bi.db.QueryRow(ctx, query, tenantId, progress.BudgetLineId, progress.Date, progress.PercentComplete).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrBudgetLineNotFound
		}
		err := fmt.Errorf("could not execute query: %w", err)
		log.Error(err)
		return 0, err
	}
	return id, nil
}

func toPgDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func fromPgDate(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}
