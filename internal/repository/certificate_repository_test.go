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

func newCertificateRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCertificateRepositoryIssue(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	cert := &models.Certificate{
		RegistrationID:    42,
		CertificateNumber: "CERT-2026-00042",
		IssueDate:         time.Now(),
		DigitalSignature:  "abc123",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM registrations").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectQuery("SELECT 1 FROM certificates").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO certificates").
		WithArgs(int64(42), "CERT-2026-00042", sqlmock.AnyArg(), "abc123", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET certificate_status = $2")).
		WithArgs(int64(42), models.CertificateStatusIssued, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Issue(context.Background(), cert))
	require.Equal(t, int64(5), cert.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryIssueAlreadyIssued(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	cert := &models.Certificate{
		RegistrationID:    42,
		CertificateNumber: "CERT-2026-00042",
		IssueDate:         time.Now(),
		DigitalSignature:  "abc123",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM registrations").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectQuery("SELECT 1 FROM certificates").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Issue(context.Background(), cert)
	require.ErrorIs(t, err, ErrCertificateExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryIssueRegistrationMissing(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	cert := &models.Certificate{RegistrationID: 42}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM registrations").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Issue(context.Background(), cert)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryFindByNumber(t *testing.T) {
	db, mock, cleanup := newCertificateRepoMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT id, registration_id, certificate_number").
		WithArgs("CERT-2026-00042").
		WillReturnRows(sqlmock.NewRows([]string{"id", "registration_id", "certificate_number", "issue_date",
			"digital_signature", "pdf_path", "created_at", "deleted_at"}).
			AddRow(int64(5), int64(42), "CERT-2026-00042", now, "abc123", nil, now, nil))

	cert, err := repo.FindByNumber(context.Background(), "CERT-2026-00042")
	require.NoError(t, err)
	require.Equal(t, int64(42), cert.RegistrationID)
	require.NoError(t, mock.ExpectationsWereMet())
}
