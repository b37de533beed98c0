package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/petdance/internal/models"
)

// CreditRepository stores the append-only credit ledger. Rows are never
// updated or deleted by the application.
type CreditRepository struct {
	db *sql.DB
}

func NewCreditRepository(db *sql.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

func (r *CreditRepository) Balance(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM credit_entries WHERE user_id = ?`
	var balance int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("sum credits: %w", err)
	}
	return balance, nil
}

func (r *CreditRepository) Insert(ctx context.Context, entry *models.CreditEntry) error {
	const query = `
INSERT INTO credit_entries (user_id, amount, source, reference)
VALUES (?, ?, ?, NULLIF(?, ''))`
	res, err := r.db.ExecContext(ctx, query, entry.UserID, entry.Amount, entry.Source, entry.Reference)
	if err != nil {
		return fmt.Errorf("insert credit entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// Spend appends a "used" entry of -cost only if the balance covers it. The
// user row is locked for the duration of the transaction so concurrent
// spends for the same user serialize instead of both passing the check.
func (r *CreditRepository) Spend(ctx context.Context, userID string, cost int, reference string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var lockedID string
	row := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ? FOR UPDATE`, userID)
	if err := row.Scan(&lockedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("lock user: %w", err)
	}

	var balance int
	row = tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM credit_entries WHERE user_id = ?`, userID)
	if err := row.Scan(&balance); err != nil {
		return false, fmt.Errorf("sum credits: %w", err)
	}
	if balance < cost {
		return false, nil
	}

	const insert = `
INSERT INTO credit_entries (user_id, amount, source, reference)
VALUES (?, ?, ?, NULLIF(?, ''))`
	if _, err := tx.ExecContext(ctx, insert, userID, -cost, models.CreditSourceUsed, reference); err != nil {
		return false, fmt.Errorf("insert spend entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit spend tx: %w", err)
	}
	return true, nil
}

func (r *CreditRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.CreditEntry, error) {
	const query = `
SELECT id, user_id, amount, source, COALESCE(reference, ''), created_at
FROM credit_entries
WHERE user_id = ?
ORDER BY id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list credit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.CreditEntry
	for rows.Next() {
		var e models.CreditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Source, &e.Reference, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
