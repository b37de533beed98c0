package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/petdance/internal/database"
	"github.com/digkill/petdance/internal/models"
)

type CheckoutRepository struct {
	db *sql.DB
}

func NewCheckoutRepository(db *sql.DB) *CheckoutRepository {
	return &CheckoutRepository{db: db}
}

// EventCredit describes a ledger credit caused by one provider webhook event.
type EventCredit struct {
	EventID           string
	EventType         string
	UserID            string
	Amount            int
	Reference         string
	ProviderSessionID string
	SubscriptionID    string
	Payload           string
}

const checkoutColumns = `id, user_id, plan_id, provider_session_id, COALESCE(subscription_id, ''), status, credits, COALESCE(raw_payload, ''), created_at, updated_at`

func scanCheckout(row rowScanner) (*models.CheckoutSession, error) {
	var s models.CheckoutSession
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.ProviderSessionID, &s.SubscriptionID, &s.Status, &s.Credits, &s.RawPayload, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *CheckoutRepository) Create(ctx context.Context, session *models.CheckoutSession) error {
	const query = `
INSERT INTO checkout_sessions (user_id, plan_id, provider_session_id, status, credits, raw_payload)
VALUES (?, ?, ?, ?, ?, NULLIF(?, ''))`
	res, err := r.db.ExecContext(ctx, query, session.UserID, session.PlanID, session.ProviderSessionID, session.Status, session.Credits, session.RawPayload)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	session.ID = id
	return nil
}

func (r *CheckoutRepository) FindByProviderSession(ctx context.Context, providerSessionID string) (*models.CheckoutSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+checkoutColumns+` FROM checkout_sessions WHERE provider_session_id = ? LIMIT 1`, providerSessionID)
	s, err := scanCheckout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}
	return s, nil
}

func (r *CheckoutRepository) FindBySubscription(ctx context.Context, subscriptionID string) (*models.CheckoutSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+checkoutColumns+` FROM checkout_sessions WHERE subscription_id = ? ORDER BY id ASC LIMIT 1`, subscriptionID)
	s, err := scanCheckout(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan checkout by subscription: %w", err)
	}
	return s, nil
}

// RecordEvent marks an event id as processed. It reports false when the id
// was already recorded.
func (r *CheckoutRepository) RecordEvent(ctx context.Context, eventID, eventType string) (bool, error) {
	const query = `INSERT INTO webhook_events (event_id, event_type) VALUES (?, ?)`
	if _, err := r.db.ExecContext(ctx, query, eventID, eventType); err != nil {
		if database.IsDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("record webhook event: %w", err)
	}
	return true, nil
}

func (r *CheckoutRepository) UpdateStatus(ctx context.Context, providerSessionID string, status models.CheckoutStatus, payload string) error {
	const query = `UPDATE checkout_sessions SET status = ?, raw_payload = ?, updated_at = NOW() WHERE provider_session_id = ?`
	if _, err := r.db.ExecContext(ctx, query, status, payload, providerSessionID); err != nil {
		return fmt.Errorf("update checkout status: %w", err)
	}
	return nil
}

// CreditFromEvent records the event id, appends a purchase entry and marks the
// originating checkout session paid, all in one transaction. A replayed event
// id leaves the ledger untouched and reports false.
func (r *CheckoutRepository) CreditFromEvent(ctx context.Context, credit EventCredit) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO webhook_events (event_id, event_type) VALUES (?, ?)`, credit.EventID, credit.EventType); err != nil {
		if database.IsDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("record webhook event: %w", err)
	}

	const insertCredit = `
INSERT INTO credit_entries (user_id, amount, source, reference)
VALUES (?, ?, ?, NULLIF(?, ''))`
	if _, err := tx.ExecContext(ctx, insertCredit, credit.UserID, credit.Amount, models.CreditSourcePurchase, credit.Reference); err != nil {
		return false, fmt.Errorf("insert purchase credit: %w", err)
	}

	if credit.ProviderSessionID != "" {
		const markPaid = `
UPDATE checkout_sessions
SET status = ?, subscription_id = COALESCE(NULLIF(?, ''), subscription_id), raw_payload = ?, updated_at = NOW()
WHERE provider_session_id = ?`
		if _, err := tx.ExecContext(ctx, markPaid, models.CheckoutPaid, credit.SubscriptionID, credit.Payload, credit.ProviderSessionID); err != nil {
			return false, fmt.Errorf("mark checkout paid: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit credit tx: %w", err)
	}
	return true, nil
}
