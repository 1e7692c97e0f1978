package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/culinaryhub/culinary-school-api/internal/models"
)

// StudentRepository handles persistence of student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, user_id, name, email, phone, address, profile_image,
        registration_date, created_at, updated_at, deleted_at`

// CreateWithUser inserts the user account and the student profile in one
// transaction so signup never leaves a half-created account.
func (r *StudentRepository) CreateWithUser(ctx context.Context, user *models.User, student *models.Student) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin signup transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	const userQuery = `INSERT INTO users (email, password_hash, full_name, role, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err = tx.QueryRowxContext(ctx, userQuery,
		user.Email, user.PasswordHash, user.FullName, user.Role, user.Active,
		user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		if isUniqueViolation(err, "") {
			err = ErrDuplicateEmail
			return err
		}
		return fmt.Errorf("insert user: %w", err)
	}

	student.UserID = user.ID
	student.RegistrationDate = now
	student.CreatedAt = now
	student.UpdatedAt = now
	const studentQuery = `INSERT INTO students (user_id, name, email, phone, address, profile_image,
        registration_date, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	if err = tx.QueryRowxContext(ctx, studentQuery,
		student.UserID, student.Name, student.Email, student.Phone, student.Address,
		student.ProfileImage, student.RegistrationDate, student.CreatedAt, student.UpdatedAt,
	).Scan(&student.ID); err != nil {
		if isUniqueViolation(err, "") {
			err = ErrDuplicateEmail
			return err
		}
		return fmt.Errorf("insert student: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit signup: %w", err)
	}
	return nil
}

// List returns students matching the filter, searchable by name, email or
// phone.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}

	if filter.Search != "" {
		pattern := "%" + strings.TrimSpace(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1))
		args = append(args, pattern)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM students%s ORDER BY name ASC LIMIT %d OFFSET %d",
		studentColumns, clause, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM students" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID returns a student profile by its ID.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	const query = `SELECT ` + studentColumns + ` FROM students WHERE id = $1 AND deleted_at IS NULL`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUserID resolves the student profile owned by a user account.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID int64) (*models.Student, error) {
	const query = `SELECT ` + studentColumns + ` FROM students WHERE user_id = $1 AND deleted_at IS NULL`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// Update persists changes to a student profile.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, email = :email, phone = :phone,
        address = :address, profile_image = :profile_image, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update student: %w", err)
	}
	return requireRowsAffected(res)
}

// SoftDelete marks a student as deleted, keeping history rows intact.
func (r *StudentRepository) SoftDelete(ctx context.Context, id int64) error {
	const query = `UPDATE students SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return requireRowsAffected(res)
}

// ListRegistrations returns a student's registrations joined with course
// details, newest first.
func (r *StudentRepository) ListRegistrations(ctx context.Context, studentID int64) ([]models.RegistrationDetail, error) {
	const query = `SELECT r.id, r.student_id, r.course_id, r.payment_status, r.certificate_status,
        r.created_at, r.updated_at, r.deleted_at,
        s.name AS student_name, c.title_en AS course_title, c.status AS course_status,
        c.start_date AS course_start_date, c.end_date AS course_end_date, c.price AS course_price
        FROM registrations r
        JOIN students s ON s.id = r.student_id
        JOIN courses c ON c.id = r.course_id
        WHERE r.student_id = $1 AND r.deleted_at IS NULL
        ORDER BY r.created_at DESC`
	var details []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &details, query, studentID); err != nil {
		return nil, fmt.Errorf("list student registrations: %w", err)
	}
	return details, nil
}
