package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/petdance/internal/models"
)

type PlanRepository struct {
	db *sql.DB
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, code, title, COALESCE(description, ''), currency, price_minor_units, credits, COALESCE(stripe_price_id, ''), recurring, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*models.Plan, error) {
	var plan models.Plan
	if err := row.Scan(&plan.ID, &plan.Code, &plan.Title, &plan.Description, &plan.Currency, &plan.PriceMinorUnits, &plan.Credits, &plan.StripePriceID, &plan.Recurring, &plan.IsActive, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *PlanRepository) List(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM pricing_plans`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY price_minor_units ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

func (r *PlanRepository) GetByID(ctx context.Context, id int64) (*models.Plan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM pricing_plans WHERE id = ?`, id)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return plan, nil
}

func (r *PlanRepository) GetByCode(ctx context.Context, code string) (*models.Plan, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM pricing_plans WHERE code = ?`, code)
	plan, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get plan by code: %w", err)
	}
	return plan, nil
}

func (r *PlanRepository) Create(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	const query = `
INSERT INTO pricing_plans (code, title, description, currency, price_minor_units, credits, stripe_price_id, recurring, is_active)
VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, NULLIF(?, ''), ?, ?)`
	res, err := r.db.ExecContext(ctx, query, plan.Code, plan.Title, plan.Description, plan.Currency, plan.PriceMinorUnits, plan.Credits, plan.StripePriceID, plan.Recurring, plan.IsActive)
	if err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("plan last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *PlanRepository) Update(ctx context.Context, plan *models.Plan) (*models.Plan, error) {
	const query = `
UPDATE pricing_plans
SET code = ?, title = ?, description = NULLIF(?, ''), currency = ?, price_minor_units = ?, credits = ?,
    stripe_price_id = NULLIF(?, ''), recurring = ?, is_active = ?, updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, plan.Code, plan.Title, plan.Description, plan.Currency, plan.PriceMinorUnits, plan.Credits, plan.StripePriceID, plan.Recurring, plan.IsActive, plan.ID); err != nil {
		return nil, fmt.Errorf("update plan: %w", err)
	}
	return r.GetByID(ctx, plan.ID)
}

func (r *PlanRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pricing_plans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return nil
}
