package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/culinaryhub/culinary-school-api/internal/models"
)

func newRegistrationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRegistrationRepositoryRegister(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, maximum_capacity, current_enrollment, status").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "maximum_capacity", "current_enrollment", "status"}).
			AddRow(int64(7), 20, 5, models.CourseStatusUpcoming))
	mock.ExpectQuery("SELECT 1 FROM registrations").
		WithArgs(int64(3), int64(7)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO registrations").
		WithArgs(int64(3), int64(7), models.PaymentStatusPending, models.CertificateStatusNotEligible,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_enrollment = current_enrollment + 1")).
		WithArgs(int64(7), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	reg, err := repo.Register(context.Background(), 3, 7)
	require.NoError(t, err)
	require.Equal(t, int64(42), reg.ID)
	require.Equal(t, models.PaymentStatusPending, reg.PaymentStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryRegisterFullCourse(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, maximum_capacity, current_enrollment, status").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "maximum_capacity", "current_enrollment", "status"}).
			AddRow(int64(7), 20, 20, models.CourseStatusActive))
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), 3, 7)
	require.ErrorIs(t, err, ErrCourseUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryRegisterCompletedCourse(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, maximum_capacity, current_enrollment, status").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "maximum_capacity", "current_enrollment", "status"}).
			AddRow(int64(7), 20, 5, models.CourseStatusCompleted))
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), 3, 7)
	require.ErrorIs(t, err, ErrCourseUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryRegisterDuplicate(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, maximum_capacity, current_enrollment, status").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "maximum_capacity", "current_enrollment", "status"}).
			AddRow(int64(7), 20, 5, models.CourseStatusUpcoming))
	mock.ExpectQuery("SELECT 1 FROM registrations").
		WithArgs(int64(3), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), 3, 7)
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCancel(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, student_id, course_id, payment_status, certificate_status").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "payment_status",
			"certificate_status", "created_at", "updated_at", "deleted_at"}).
			AddRow(int64(42), int64(3), int64(7), models.PaymentStatusPending,
				models.CertificateStatusNotEligible, now, now, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET deleted_at = $2")).
		WithArgs(int64(42), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET current_enrollment = current_enrollment - 1")).
		WithArgs(int64(7), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Cancel(context.Background(), 42))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCancelAlreadyCanceled(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, student_id, course_id, payment_status, certificate_status").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Cancel(context.Background(), 42)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryUpdatePaymentStatusMissing(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET payment_status = $2")).
		WithArgs(int64(99), models.PaymentStatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePaymentStatus(context.Background(), 99, models.PaymentStatusCompleted)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
