package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/petdance/internal/models"
)

type ReferralRepository struct {
	db *sql.DB
}

func NewReferralRepository(db *sql.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) DB() *sql.DB {
	return r.db
}

func (r *ReferralRepository) GetByCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	const query = `SELECT id, code, max_uses, uses, created_at FROM referral_codes WHERE code = ?`
	row := r.db.QueryRowContext(ctx, query, code)
	var ref models.ReferralCode
	if err := row.Scan(&ref.ID, &ref.Code, &ref.MaxUses, &ref.Uses, &ref.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan referral code: %w", err)
	}
	return &ref, nil
}

func (r *ReferralRepository) GetByID(ctx context.Context, id int64) (*models.ReferralCode, error) {
	const query = `SELECT id, code, max_uses, uses, created_at FROM referral_codes WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	var ref models.ReferralCode
	if err := row.Scan(&ref.ID, &ref.Code, &ref.MaxUses, &ref.Uses, &ref.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get referral code by id: %w", err)
	}
	return &ref, nil
}

func (r *ReferralRepository) List(ctx context.Context) ([]models.ReferralCode, error) {
	const query = `SELECT id, code, max_uses, uses, created_at FROM referral_codes ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list referral codes: %w", err)
	}
	defer rows.Close()

	var refs []models.ReferralCode
	for rows.Next() {
		var ref models.ReferralCode
		if err := rows.Scan(&ref.ID, &ref.Code, &ref.MaxUses, &ref.Uses, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan referral code list: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *ReferralRepository) Create(ctx context.Context, code string, maxUses int) (*models.ReferralCode, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO referral_codes (code, max_uses, uses) VALUES (?, ?, 0)`, code, maxUses)
	if err != nil {
		return nil, fmt.Errorf("create referral code: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("referral last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *ReferralRepository) Update(ctx context.Context, ref *models.ReferralCode) (*models.ReferralCode, error) {
	const query = `UPDATE referral_codes SET code = ?, max_uses = ?, uses = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, ref.Code, ref.MaxUses, ref.Uses, ref.ID); err != nil {
		return nil, fmt.Errorf("update referral code: %w", err)
	}
	return r.GetByID(ctx, ref.ID)
}

func (r *ReferralRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM referral_codes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete referral code: %w", err)
	}
	return nil
}
