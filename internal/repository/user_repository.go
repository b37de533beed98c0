package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/petdance/internal/database"
	"github.com/digkill/petdance/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `
SELECT id, email, COALESCE(display_name, ''), created_at, updated_at
FROM users WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// Provision inserts the user row and, when starterCredits is positive, a
// "free" ledger entry in the same transaction. It reports false when the row
// already existed.
func (r *UserRepository) Provision(ctx context.Context, user *models.User, starterCredits int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const insertUser = `
INSERT INTO users (id, email, display_name)
VALUES (?, ?, NULLIF(?, ''))`
	if _, err := tx.ExecContext(ctx, insertUser, user.ID, user.Email, user.DisplayName); err != nil {
		if database.IsDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert user: %w", err)
	}

	if starterCredits > 0 {
		const insertCredit = `
INSERT INTO credit_entries (user_id, amount, source, reference)
VALUES (?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insertCredit, user.ID, starterCredits, models.CreditSourceFree, "signup"); err != nil {
			return false, fmt.Errorf("insert starter credits: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit provision tx: %w", err)
	}
	return true, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, email, displayName string) error {
	const query = `
UPDATE users SET email = ?, display_name = NULLIF(?, ''), updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, email, displayName, id); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}
