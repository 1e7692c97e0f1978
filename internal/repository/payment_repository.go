package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/culinaryhub/culinary-school-api/internal/models"
)

// PaymentRepository handles persistence of payments. Transaction-id
// uniqueness is enforced by the storage-level unique constraint, not a
// pre-check, so racing submissions cannot both commit.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, registration_id, amount, payment_method, transaction_id, payment_date,
        payment_proof, verification_status, rejection_reason, created_at, updated_at, deleted_at`

const paymentDetailSelect = `SELECT p.id, p.registration_id, p.amount, p.payment_method, p.transaction_id,
        p.payment_date, p.payment_proof, p.verification_status, p.rejection_reason,
        p.created_at, p.updated_at, p.deleted_at,
        r.student_id AS student_id, s.name AS student_name,
        r.course_id AS course_id, c.title_en AS course_title
        FROM payments p
        JOIN registrations r ON r.id = p.registration_id
        JOIN students s ON s.id = r.student_id
        JOIN courses c ON c.id = r.course_id`

// Create persists a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if payment.VerificationStatus == "" {
		payment.VerificationStatus = models.VerificationPending
	}
	const query = `INSERT INTO payments (registration_id, amount, payment_method, transaction_id,
        payment_date, payment_proof, verification_status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		payment.RegistrationID, payment.Amount, payment.PaymentMethod, payment.TransactionID,
		payment.PaymentDate, payment.PaymentProof, payment.VerificationStatus,
		payment.CreatedAt, payment.UpdatedAt,
	).Scan(&payment.ID); err != nil {
		if isUniqueViolation(err, "") {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id int64) (*models.Payment, error) {
	const query = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND deleted_at IS NULL`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindDetailByID returns a payment with student and course context.
func (r *PaymentRepository) FindDetailByID(ctx context.Context, id int64) (*models.PaymentDetail, error) {
	query := paymentDetailSelect + ` WHERE p.id = $1 AND p.deleted_at IS NULL`
	var detail models.PaymentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Verify records the verification decision and, when verified, cascades the
// owning registration to payment_status=completed in the same transaction.
// This is the single point where payment and registration state are kept
// consistent.
func (r *PaymentRepository) Verify(ctx context.Context, id int64, status models.VerificationStatus, rejectionReason *string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin verify transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var registrationID int64
	// The pending predicate makes terminal decisions immutable even when two
	// verifications race past the service-level check.
	const updateQuery = `UPDATE payments SET verification_status = $2, rejection_reason = $3, updated_at = $4
        WHERE id = $1 AND deleted_at IS NULL AND verification_status = $5 RETURNING registration_id`
	if err = tx.QueryRowxContext(ctx, updateQuery, id, status, rejectionReason, now, models.VerificationPending).Scan(&registrationID); err != nil {
		if err == sql.ErrNoRows {
			const existsQuery = `SELECT verification_status FROM payments WHERE id = $1 AND deleted_at IS NULL`
			var current models.VerificationStatus
			if lookupErr := tx.GetContext(ctx, &current, existsQuery, id); lookupErr == nil {
				return ErrPaymentTerminal
			}
			return sql.ErrNoRows
		}
		return fmt.Errorf("update payment: %w", err)
	}

	if status == models.VerificationVerified {
		const cascadeQuery = `UPDATE registrations SET payment_status = $2, updated_at = $3
            WHERE id = $1 AND deleted_at IS NULL`
		if _, err = tx.ExecContext(ctx, cascadeQuery, registrationID, models.PaymentStatusCompleted, now); err != nil {
			return fmt.Errorf("cascade registration payment status: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit payment verification: %w", err)
	}
	return nil
}

// List returns payments matching the filter with pagination.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	conditions := []string{"p.deleted_at IS NULL"}
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.verification_status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.CourseID > 0 {
		conditions = append(conditions, fmt.Sprintf("r.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.StartDate != nil && filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date BETWEEN $%d AND $%d", len(args)+1, len(args)+2))
		args = append(args, *filter.StartDate, *filter.EndDate)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 15
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("%s%s ORDER BY p.payment_date DESC LIMIT %d OFFSET %d",
		paymentDetailSelect, clause, size, offset)
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := `SELECT COUNT(*) FROM payments p
        JOIN registrations r ON r.id = p.registration_id` + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// Summary aggregates payment amounts per verification status for the filter.
func (r *PaymentRepository) Summary(ctx context.Context, filter models.PaymentFilter) (*models.PaymentSummary, error) {
	conditions := []string{"p.deleted_at IS NULL"}
	var args []interface{}

	if filter.CourseID > 0 {
		conditions = append(conditions, fmt.Sprintf("r.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.StartDate != nil && filter.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date BETWEEN $%d AND $%d", len(args)+1, len(args)+2))
		args = append(args, *filter.StartDate, *filter.EndDate)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	query := `SELECT COALESCE(SUM(p.amount), 0) AS total_amount,
        COALESCE(SUM(p.amount) FILTER (WHERE p.verification_status = 'verified'), 0) AS verified_amount,
        COALESCE(SUM(p.amount) FILTER (WHERE p.verification_status = 'pending'), 0) AS pending_amount,
        COALESCE(SUM(p.amount) FILTER (WHERE p.verification_status = 'rejected'), 0) AS rejected_amount
        FROM payments p
        JOIN registrations r ON r.id = p.registration_id` + clause
	var summary models.PaymentSummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("payment summary: %w", err)
	}
	return &summary, nil
}

// ListPending returns the oldest payments still awaiting verification.
func (r *PaymentRepository) ListPending(ctx context.Context, limit int) ([]models.PaymentDetail, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	query := paymentDetailSelect + ` WHERE p.deleted_at IS NULL AND p.verification_status = 'pending'
        ORDER BY p.created_at DESC LIMIT $1`
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, limit); err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return payments, nil
}
