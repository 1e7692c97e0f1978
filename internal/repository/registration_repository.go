package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/culinaryhub/culinary-school-api/internal/models"
)

// RegistrationRepository handles persistence of registrations and keeps the
// course seat counter consistent with the registration rows. Every compound
// mutation runs in a single transaction with the course row locked, so two
// racing registrations for the last seat cannot both commit.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, student_id, course_id, payment_status, certificate_status, created_at, updated_at, deleted_at`

// Register atomically creates a registration and increments the course
// enrollment counter. The course row is locked for the duration of the
// capacity check, so the check and the increment commit together or not at
// all.
func (r *RegistrationRepository) Register(ctx context.Context, studentID, courseID int64) (reg *models.Registration, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin register transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var course models.Course
	const lockQuery = `SELECT id, maximum_capacity, current_enrollment, status
        FROM courses WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	if err = tx.GetContext(ctx, &course, lockQuery, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock course: %w", err)
	}
	if !course.IsOpenForRegistration() {
		err = ErrCourseUnavailable
		return nil, err
	}

	var exists int
	const existsQuery = `SELECT 1 FROM registrations
        WHERE student_id = $1 AND course_id = $2 AND deleted_at IS NULL LIMIT 1`
	if err = tx.GetContext(ctx, &exists, existsQuery, studentID, courseID); err == nil {
		err = ErrAlreadyRegistered
		return nil, err
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("check existing registration: %w", err)
	}

	now := time.Now().UTC()
	registration := &models.Registration{
		StudentID:         studentID,
		CourseID:          courseID,
		PaymentStatus:     models.PaymentStatusPending,
		CertificateStatus: models.CertificateStatusNotEligible,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	const insertQuery = `INSERT INTO registrations (student_id, course_id, payment_status, certificate_status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err = tx.QueryRowxContext(ctx, insertQuery,
		registration.StudentID, registration.CourseID,
		registration.PaymentStatus, registration.CertificateStatus,
		registration.CreatedAt, registration.UpdatedAt,
	).Scan(&registration.ID); err != nil {
		if isUniqueViolation(err, "") {
			err = ErrAlreadyRegistered
			return nil, err
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}

	const incrementQuery = `UPDATE courses SET current_enrollment = current_enrollment + 1, updated_at = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, incrementQuery, courseID, now); err != nil {
		return nil, fmt.Errorf("increment course enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit registration: %w", err)
	}
	return registration, nil
}

// Cancel atomically soft-deletes a registration and decrements the course
// enrollment counter. Canceling an already-canceled registration returns
// sql.ErrNoRows and never double-decrements.
func (r *RegistrationRepository) Cancel(ctx context.Context, registrationID int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var reg models.Registration
	const lockQuery = `SELECT ` + registrationColumns + ` FROM registrations
        WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	if err = tx.GetContext(ctx, &reg, lockQuery, registrationID); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock registration: %w", err)
	}

	now := time.Now().UTC()
	const deleteQuery = `UPDATE registrations SET deleted_at = $2, updated_at = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, deleteQuery, registrationID, now); err != nil {
		return fmt.Errorf("cancel registration: %w", err)
	}

	const decrementQuery = `UPDATE courses SET current_enrollment = current_enrollment - 1, updated_at = $2
        WHERE id = $1 AND current_enrollment > 0`
	if _, err = tx.ExecContext(ctx, decrementQuery, reg.CourseID, now); err != nil {
		return fmt.Errorf("decrement course enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cancellation: %w", err)
	}
	return nil
}

// FindByID returns a non-canceled registration by its ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id int64) (*models.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1 AND deleted_at IS NULL`
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindDetailByID returns a registration with student and course context.
func (r *RegistrationRepository) FindDetailByID(ctx context.Context, id int64) (*models.RegistrationDetail, error) {
	const query = `SELECT r.id, r.student_id, r.course_id, r.payment_status, r.certificate_status,
        r.created_at, r.updated_at, r.deleted_at,
        s.name AS student_name, c.title_en AS course_title, c.status AS course_status,
        c.start_date AS course_start_date, c.end_date AS course_end_date, c.price AS course_price
        FROM registrations r
        JOIN students s ON s.id = r.student_id
        JOIN courses c ON c.id = r.course_id
        WHERE r.id = $1 AND r.deleted_at IS NULL`
	var detail models.RegistrationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// UpdatePaymentStatus sets payment_status for a registration.
func (r *RegistrationRepository) UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) error {
	const query = `UPDATE registrations SET payment_status = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByStudent returns a student's non-canceled registrations.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.Registration, error) {
	const query = `SELECT ` + registrationColumns + ` FROM registrations
        WHERE student_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, studentID); err != nil {
		return nil, fmt.Errorf("list student registrations: %w", err)
	}
	return regs, nil
}

// ListRecent returns the newest non-canceled registrations with context.
func (r *RegistrationRepository) ListRecent(ctx context.Context, limit int) ([]models.RegistrationDetail, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	const query = `SELECT r.id, r.student_id, r.course_id, r.payment_status, r.certificate_status,
        r.created_at, r.updated_at, r.deleted_at,
        s.name AS student_name, c.title_en AS course_title, c.status AS course_status,
        c.start_date AS course_start_date, c.end_date AS course_end_date, c.price AS course_price
        FROM registrations r
        JOIN students s ON s.id = r.student_id
        JOIN courses c ON c.id = r.course_id
        WHERE r.deleted_at IS NULL
        ORDER BY r.created_at DESC LIMIT $1`
	var regs []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &regs, query, limit); err != nil {
		return nil, fmt.Errorf("list recent registrations: %w", err)
	}
	return regs, nil
}
