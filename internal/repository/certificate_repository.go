package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/culinaryhub/culinary-school-api/internal/models"
)

// CertificateRepository handles persistence of certificates. Issuance locks
// the registration row so a racing generate cannot create two certificates
// for the same registration.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

const certificateColumns = `id, registration_id, certificate_number, issue_date, digital_signature,
        pdf_path, created_at, deleted_at`

// Issue atomically inserts the certificate and marks the registration as
// issued. The existence re-check runs under the registration row lock.
func (r *CertificateRepository) Issue(ctx context.Context, cert *models.Certificate) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin issue transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var regID int64
	const lockQuery = `SELECT id FROM registrations WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	if err = tx.GetContext(ctx, &regID, lockQuery, cert.RegistrationID); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock registration: %w", err)
	}

	var exists int
	const existsQuery = `SELECT 1 FROM certificates WHERE registration_id = $1 AND deleted_at IS NULL LIMIT 1`
	if err = tx.GetContext(ctx, &exists, existsQuery, cert.RegistrationID); err == nil {
		err = ErrCertificateExists
		return err
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("check existing certificate: %w", err)
	}

	cert.CreatedAt = time.Now().UTC()
	const insertQuery = `INSERT INTO certificates (registration_id, certificate_number, issue_date,
        digital_signature, pdf_path, created_at)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err = tx.QueryRowxContext(ctx, insertQuery,
		cert.RegistrationID, cert.CertificateNumber, cert.IssueDate,
		cert.DigitalSignature, cert.PDFPath, cert.CreatedAt,
	).Scan(&cert.ID); err != nil {
		if isUniqueViolation(err, "") {
			err = ErrCertificateExists
			return err
		}
		return fmt.Errorf("insert certificate: %w", err)
	}

	const updateQuery = `UPDATE registrations SET certificate_status = $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, cert.RegistrationID, models.CertificateStatusIssued, time.Now().UTC()); err != nil {
		return fmt.Errorf("update registration certificate status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit certificate issue: %w", err)
	}
	return nil
}

// FindByID returns a certificate by its internal ID.
func (r *CertificateRepository) FindByID(ctx context.Context, id int64) (*models.Certificate, error) {
	const query = `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1 AND deleted_at IS NULL`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindByRegistrationID returns the certificate issued for a registration.
func (r *CertificateRepository) FindByRegistrationID(ctx context.Context, registrationID int64) (*models.Certificate, error) {
	const query = `SELECT ` + certificateColumns + ` FROM certificates
        WHERE registration_id = $1 AND deleted_at IS NULL`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, registrationID); err != nil {
		return nil, err
	}
	return &cert, nil
}

// FindByNumber looks up a certificate by its public number.
func (r *CertificateRepository) FindByNumber(ctx context.Context, number string) (*models.Certificate, error) {
	const query = `SELECT ` + certificateColumns + ` FROM certificates
        WHERE certificate_number = $1 AND deleted_at IS NULL`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, number); err != nil {
		return nil, err
	}
	return &cert, nil
}

// ListByStudent returns certificates issued across a student's registrations.
func (r *CertificateRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.Certificate, error) {
	const query = `SELECT c.id, c.registration_id, c.certificate_number, c.issue_date,
        c.digital_signature, c.pdf_path, c.created_at, c.deleted_at
        FROM certificates c
        JOIN registrations r ON r.id = c.registration_id
        WHERE r.student_id = $1 AND c.deleted_at IS NULL
        ORDER BY c.issue_date DESC`
	var certs []models.Certificate
	if err := r.db.SelectContext(ctx, &certs, query, studentID); err != nil {
		return nil, fmt.Errorf("list student certificates: %w", err)
	}
	return certs, nil
}

// UpdatePDFPath records the rendered PDF location after issuance.
func (r *CertificateRepository) UpdatePDFPath(ctx context.Context, id int64, path string) error {
	const query = `UPDATE certificates SET pdf_path = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, path); err != nil {
		return fmt.Errorf("update certificate pdf path: %w", err)
	}
	return nil
}
