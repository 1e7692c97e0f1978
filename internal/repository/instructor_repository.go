package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/culinaryhub/culinary-school-api/internal/models"
)

// InstructorRepository handles persistence of instructor profiles.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs the repository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

const instructorColumns = `id, user_id, name, email, phone, bio_en, bio_bn, specialization,
        profile_image, created_at, updated_at, deleted_at`

// CreateWithUser inserts the user account and instructor profile in one
// transaction.
func (r *InstructorRepository) CreateWithUser(ctx context.Context, user *models.User, instructor *models.Instructor) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin instructor transaction: %w", err)
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

	instructor.UserID = user.ID
	instructor.CreatedAt = now
	instructor.UpdatedAt = now
	const instructorQuery = `INSERT INTO instructors (user_id, name, email, phone, bio_en, bio_bn,
        specialization, profile_image, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	if err = tx.QueryRowxContext(ctx, instructorQuery,
		instructor.UserID, instructor.Name, instructor.Email, instructor.Phone,
		instructor.BioEN, instructor.BioBN, instructor.Specialization,
		instructor.ProfileImage, instructor.CreatedAt, instructor.UpdatedAt,
	).Scan(&instructor.ID); err != nil {
		if isUniqueViolation(err, "") {
			err = ErrDuplicateEmail
			return err
		}
		return fmt.Errorf("insert instructor: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit instructor create: %w", err)
	}
	return nil
}

// List returns instructors matching the filter.
func (r *InstructorRepository) List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}

	if filter.Search != "" {
		pattern := "%" + strings.TrimSpace(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR specialization ILIKE $%d)",
			len(args)+1, len(args)+1))
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

	query := fmt.Sprintf("SELECT %s FROM instructors%s ORDER BY name ASC LIMIT %d OFFSET %d",
		instructorColumns, clause, size, offset)

	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list instructors: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM instructors" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count instructors: %w", err)
	}
	return instructors, total, nil
}

// FindByID returns an instructor by ID.
func (r *InstructorRepository) FindByID(ctx context.Context, id int64) (*models.Instructor, error) {
	const query = `SELECT ` + instructorColumns + ` FROM instructors WHERE id = $1 AND deleted_at IS NULL`
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, id); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// FindByUserID resolves the instructor profile owned by a user account.
func (r *InstructorRepository) FindByUserID(ctx context.Context, userID int64) (*models.Instructor, error) {
	const query = `SELECT ` + instructorColumns + ` FROM instructors WHERE user_id = $1 AND deleted_at IS NULL`
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, userID); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// Update persists changes to an instructor profile.
func (r *InstructorRepository) Update(ctx context.Context, instructor *models.Instructor) error {
	instructor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE instructors SET name = :name, email = :email, phone = :phone,
        bio_en = :bio_en, bio_bn = :bio_bn, specialization = :specialization,
        profile_image = :profile_image, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	res, err := r.db.NamedExecContext(ctx, query, instructor)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update instructor: %w", err)
	}
	return requireRowsAffected(res)
}

// SoftDelete marks an instructor as deleted.
func (r *InstructorRepository) SoftDelete(ctx context.Context, id int64) error {
	const query = `UPDATE instructors SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete instructor: %w", err)
	}
	return requireRowsAffected(res)
}

// ListCourses returns courses an instructor is assigned to.
func (r *InstructorRepository) ListCourses(ctx context.Context, instructorID int64) ([]models.Course, error) {
	const query = `SELECT c.id, c.title_en, c.title_bn, c.description_en, c.description_bn,
        c.start_date, c.end_date, c.daily_start_time, c.daily_end_time, c.location_details,
        c.maximum_capacity, c.current_enrollment, c.price, c.status, c.featured_image,
        c.category, c.created_at, c.updated_at, c.deleted_at
        FROM courses c
        JOIN course_instructor ci ON ci.course_id = c.id
        WHERE ci.instructor_id = $1 AND c.deleted_at IS NULL
        ORDER BY c.start_date DESC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor courses: %w", err)
	}
	return courses, nil
}
