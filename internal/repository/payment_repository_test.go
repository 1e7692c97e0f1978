package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/culinaryhub/culinary-school-api/internal/models"
)

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	payment := &models.Payment{
		RegistrationID: 42,
		Amount:         5000,
		PaymentMethod:  models.PaymentMethodBkash,
		TransactionID:  "TXN123",
		PaymentDate:    time.Now(),
	}
	mock.ExpectQuery("INSERT INTO payments").
		WithArgs(int64(42), 5000.0, models.PaymentMethodBkash, "TXN123",
			sqlmock.AnyArg(), sqlmock.AnyArg(), models.VerificationPending,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	require.NoError(t, repo.Create(context.Background(), payment))
	require.Equal(t, int64(9), payment.ID)
	require.Equal(t, models.VerificationPending, payment.VerificationStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateDuplicateTransaction(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	payment := &models.Payment{
		RegistrationID: 42,
		Amount:         5000,
		PaymentMethod:  models.PaymentMethodBkash,
		TransactionID:  "TXN123",
		PaymentDate:    time.Now(),
	}
	mock.ExpectQuery("INSERT INTO payments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "payments_transaction_id_key"})

	err := repo.Create(context.Background(), payment)
	require.ErrorIs(t, err, ErrDuplicateTransaction)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryVerifyApproved(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET verification_status = $2")).
		WithArgs(int64(9), models.VerificationVerified, nil, sqlmock.AnyArg(), models.VerificationPending).
		WillReturnRows(sqlmock.NewRows([]string{"registration_id"}).AddRow(int64(42)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET payment_status = $2")).
		WithArgs(int64(42), models.PaymentStatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Verify(context.Background(), 9, models.VerificationVerified, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryVerifyRejectedSkipsCascade(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	reason := "amount mismatch"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET verification_status = $2")).
		WithArgs(int64(9), models.VerificationRejected, &reason, sqlmock.AnyArg(), models.VerificationPending).
		WillReturnRows(sqlmock.NewRows([]string{"registration_id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	require.NoError(t, repo.Verify(context.Background(), 9, models.VerificationRejected, &reason))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryVerifyRefusesTerminal(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET verification_status = $2")).
		WithArgs(int64(9), models.VerificationVerified, nil, sqlmock.AnyArg(), models.VerificationPending).
		WillReturnRows(sqlmock.NewRows([]string{"registration_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT verification_status FROM payments")).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"verification_status"}).AddRow(string(models.VerificationRejected)))
	mock.ExpectRollback()

	err := repo.Verify(context.Background(), 9, models.VerificationVerified, nil)
	require.ErrorIs(t, err, ErrPaymentTerminal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryVerifyMissing(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE payments SET verification_status = $2")).
		WithArgs(int64(77), models.VerificationVerified, nil, sqlmock.AnyArg(), models.VerificationPending).
		WillReturnRows(sqlmock.NewRows([]string{"registration_id"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT verification_status FROM payments")).
		WithArgs(int64(77)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Verify(context.Background(), 77, models.VerificationVerified, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySummary(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"total_amount", "verified_amount", "pending_amount", "rejected_amount"}).
			AddRow(15000.0, 10000.0, 5000.0, 0.0))

	summary, err := repo.Summary(context.Background(), models.PaymentFilter{})
	require.NoError(t, err)
	require.Equal(t, 10000.0, summary.VerifiedAmount)
	require.Equal(t, 5000.0, summary.PendingAmount)
	require.NoError(t, mock.ExpectationsWereMet())
}
