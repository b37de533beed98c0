package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/petdance/internal/repository"
)

func newReferralMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectCodeLookup(mock sqlmock.Sqlmock, code string) {
	mock.ExpectQuery(`SELECT id, code, max_uses, uses, created_at FROM referral_codes WHERE code = \?`).
		WithArgs(code).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "max_uses", "uses", "created_at"}).
			AddRow(int64(4), code, 10, 2, time.Now()))
}

func TestReferralService_Redeem(t *testing.T) {
	db, mock := newReferralMock(t)
	svc := NewReferralService(repository.NewReferralRepository(db), 3)

	expectCodeLookup(mock, "FRIENDS")
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT uses, max_uses FROM referral_codes WHERE id = \? FOR UPDATE`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"uses", "max_uses"}).AddRow(2, 10))
	mock.ExpectExec(`INSERT INTO referral_redemptions`).
		WithArgs(testUserID, int64(4)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE referral_codes SET uses = uses \+ 1`).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO credit_entries`).
		WithArgs(testUserID, 3, "referral", "referral:FRIENDS").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	bonus, err := svc.Redeem(context.Background(), testUserID, " friends ")
	require.NoError(t, err)
	assert.Equal(t, 3, bonus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralService_RedeemTwice(t *testing.T) {
	db, mock := newReferralMock(t)
	svc := NewReferralService(repository.NewReferralRepository(db), 3)

	expectCodeLookup(mock, "FRIENDS")
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"uses", "max_uses"}).AddRow(3, 10))
	mock.ExpectExec(`INSERT INTO referral_redemptions`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := svc.Redeem(context.Background(), testUserID, "FRIENDS")
	require.ErrorIs(t, err, ErrReferralRedeemed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralService_RedeemExhausted(t *testing.T) {
	db, mock := newReferralMock(t)
	svc := NewReferralService(repository.NewReferralRepository(db), 3)

	expectCodeLookup(mock, "FRIENDS")
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"uses", "max_uses"}).AddRow(10, 10))
	mock.ExpectRollback()

	_, err := svc.Redeem(context.Background(), testUserID, "FRIENDS")
	require.ErrorIs(t, err, ErrReferralExhausted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralService_RedeemUnknown(t *testing.T) {
	db, mock := newReferralMock(t)
	svc := NewReferralService(repository.NewReferralRepository(db), 3)

	mock.ExpectQuery(`FROM referral_codes WHERE code = \?`).
		WithArgs("NOPE").
		WillReturnError(sql.ErrNoRows)

	_, err := svc.Redeem(context.Background(), testUserID, "nope")
	require.ErrorIs(t, err, ErrReferralInvalid)

	_, err = svc.Redeem(context.Background(), testUserID, "   ")
	require.ErrorIs(t, err, ErrReferralInvalid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReferralService_CreateValidates(t *testing.T) {
	db, _ := newReferralMock(t)
	svc := NewReferralService(repository.NewReferralRepository(db), 3)

	_, err := svc.Create(context.Background(), "", 5)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(context.Background(), "SPRING", 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}
