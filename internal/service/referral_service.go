package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/digkill/petdance/internal/database"
	"github.com/digkill/petdance/internal/models"
	"github.com/digkill/petdance/internal/repository"
)

type ReferralService struct {
	referrals *repository.ReferralRepository
	bonus     int
}

type UpdateReferralInput struct {
	Code    *string
	MaxUses *int
	Uses    *int
}

func NewReferralService(referrals *repository.ReferralRepository, bonus int) *ReferralService {
	return &ReferralService{referrals: referrals, bonus: bonus}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Redeem credits the referral bonus once per user and code. The code row is
// locked so concurrent redemptions cannot exceed max_uses.
func (s *ReferralService) Redeem(ctx context.Context, userID, code string) (int, error) {
	code = normalizeCode(code)
	if code == "" {
		return 0, ErrReferralInvalid
	}
	ref, err := s.referrals.GetByCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("get referral code: %w", err)
	}
	if ref == nil {
		return 0, ErrReferralInvalid
	}

	tx, err := s.referrals.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var uses, maxUses int
	row := tx.QueryRowContext(ctx, `SELECT uses, max_uses FROM referral_codes WHERE id = ? FOR UPDATE`, ref.ID)
	if err := row.Scan(&uses, &maxUses); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrReferralInvalid
		}
		return 0, fmt.Errorf("lock referral code: %w", err)
	}
	if uses >= maxUses {
		return 0, ErrReferralExhausted
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO referral_redemptions (user_id, referral_code_id) VALUES (?, ?)`, userID, ref.ID); err != nil {
		if database.IsDuplicateKey(err) {
			return 0, ErrReferralRedeemed
		}
		return 0, fmt.Errorf("insert redemption: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE referral_codes SET uses = uses + 1 WHERE id = ?`, ref.ID); err != nil {
		return 0, fmt.Errorf("increment referral uses: %w", err)
	}

	const insertCredit = `
INSERT INTO credit_entries (user_id, amount, source, reference)
VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertCredit, userID, s.bonus, models.CreditSourceReferral, "referral:"+code); err != nil {
		return 0, fmt.Errorf("add referral credits: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit referral tx: %w", err)
	}
	return s.bonus, nil
}

func (s *ReferralService) List(ctx context.Context) ([]models.ReferralCode, error) {
	return s.referrals.List(ctx)
}

func (s *ReferralService) Create(ctx context.Context, code string, maxUses int) (*models.ReferralCode, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if maxUses <= 0 {
		return nil, fmt.Errorf("%w: max_uses must be positive", ErrInvalidInput)
	}
	return s.referrals.Create(ctx, code, maxUses)
}

func (s *ReferralService) Update(ctx context.Context, id int64, input UpdateReferralInput) (*models.ReferralCode, error) {
	existing, err := s.referrals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrReferralInvalid
	}
	if input.Code != nil && normalizeCode(*input.Code) != "" {
		existing.Code = normalizeCode(*input.Code)
	}
	if input.MaxUses != nil && *input.MaxUses > 0 {
		existing.MaxUses = *input.MaxUses
	}
	if input.Uses != nil && *input.Uses >= 0 {
		existing.Uses = *input.Uses
	}
	if existing.Uses > existing.MaxUses {
		return nil, fmt.Errorf("%w: uses cannot exceed max_uses", ErrInvalidInput)
	}
	return s.referrals.Update(ctx, existing)
}

func (s *ReferralService) Delete(ctx context.Context, id int64) error {
	return s.referrals.Delete(ctx, id)
}
