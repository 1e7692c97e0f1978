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

// CourseRepository handles persistence of courses and their pivots.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, title_en, title_bn, description_en, description_bn, start_date, end_date,
        daily_start_time, daily_end_time, location_details, maximum_capacity, current_enrollment,
        price, status, featured_image, category, created_at, updated_at, deleted_at`

// List returns courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	orderBy := "start_date DESC"
	switch filter.SortBy {
	case "price_asc":
		orderBy = "price ASC"
	case "price_desc":
		orderBy = "price DESC"
	case "date_asc":
		orderBy = "start_date ASC"
	case "date_desc":
		orderBy = "start_date DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM courses%s ORDER BY %s LIMIT %d OFFSET %d",
		courseColumns, clause, orderBy, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM courses" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 AND deleted_at IS NULL`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create persists a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	if course.Status == "" {
		course.Status = models.CourseStatusUpcoming
	}
	const query = `INSERT INTO courses (title_en, title_bn, description_en, description_bn, start_date, end_date,
        daily_start_time, daily_end_time, location_details, maximum_capacity, current_enrollment,
        price, status, featured_image, category, created_at, updated_at)
        VALUES (:title_en, :title_bn, :description_en, :description_bn, :start_date, :end_date,
        :daily_start_time, :daily_end_time, :location_details, :maximum_capacity, :current_enrollment,
        :price, :status, :featured_image, :category, :created_at, :updated_at)
        RETURNING id`
	rows, err := r.db.NamedQueryContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	if rows.Next() {
		if err := rows.Scan(&course.ID); err != nil {
			return fmt.Errorf("scan course id: %w", err)
		}
	}
	return nil
}

// Update persists changes to an existing course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title_en = :title_en, title_bn = :title_bn,
        description_en = :description_en, description_bn = :description_bn,
        start_date = :start_date, end_date = :end_date,
        daily_start_time = :daily_start_time, daily_end_time = :daily_end_time,
        location_details = :location_details, maximum_capacity = :maximum_capacity,
        price = :price, featured_image = :featured_image, category = :category,
        updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus transitions the course lifecycle status.
func (r *CourseRepository) UpdateStatus(ctx context.Context, id int64, status models.CourseStatus) error {
	const query = `UPDATE courses SET status = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update course status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete removes a course, refusing while students remain enrolled. The
// enrollment check and the delete run under a row lock so a racing
// registration cannot slip in between them.
func (r *CourseRepository) SoftDelete(ctx context.Context, id int64) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var enrollment int
	const lockQuery = `SELECT current_enrollment FROM courses WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`
	if err = tx.GetContext(ctx, &enrollment, lockQuery, id); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock course: %w", err)
	}
	if enrollment > 0 {
		err = ErrCourseNotEmpty
		return err
	}

	const deleteQuery = `UPDATE courses SET deleted_at = $2, updated_at = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, deleteQuery, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit course delete: %w", err)
	}
	return nil
}

// AttachRecipe links a recipe to the course for an optional day number.
func (r *CourseRepository) AttachRecipe(ctx context.Context, courseID, recipeID int64, dayNumber *int) error {
	const query = `INSERT INTO course_recipe (course_id, recipe_id, day_number, created_at)
        VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, courseID, recipeID, dayNumber, time.Now().UTC()); err != nil {
		if isUniqueViolation(err, "") {
			return ErrRecipeAttached
		}
		return fmt.Errorf("attach recipe: %w", err)
	}
	return nil
}

// ListRecipes returns the recipes taught in the course ordered by day.
func (r *CourseRepository) ListRecipes(ctx context.Context, courseID int64) ([]models.CourseRecipeDetail, error) {
	const query = `SELECT rc.id, rc.name_en, rc.name_bn, rc.description_en, rc.description_bn,
        rc.ingredients, rc.instructions, rc.preparation_time, rc.difficulty_level,
        rc.created_at, rc.updated_at, rc.deleted_at, cr.day_number
        FROM course_recipe cr
        JOIN recipes rc ON rc.id = cr.recipe_id
        WHERE cr.course_id = $1 AND rc.deleted_at IS NULL
        ORDER BY cr.day_number NULLS LAST, rc.name_en`
	var recipes []models.CourseRecipeDetail
	if err := r.db.SelectContext(ctx, &recipes, query, courseID); err != nil {
		return nil, fmt.Errorf("list course recipes: %w", err)
	}
	return recipes, nil
}

// ListStudents returns students with a non-canceled registration on the course.
func (r *CourseRepository) ListStudents(ctx context.Context, courseID int64) ([]models.Student, error) {
	const query = `SELECT s.id, s.user_id, s.name, s.email, s.phone, s.address, s.profile_image,
        s.registration_date, s.created_at, s.updated_at, s.deleted_at
        FROM registrations r
        JOIN students s ON s.id = r.student_id
        WHERE r.course_id = $1 AND r.deleted_at IS NULL AND s.deleted_at IS NULL
        ORDER BY s.name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, courseID); err != nil {
		return nil, fmt.Errorf("list course students: %w", err)
	}
	return students, nil
}

// AssignInstructor links an instructor to the course.
func (r *CourseRepository) AssignInstructor(ctx context.Context, courseID, instructorID int64, isLead bool) error {
	const query = `INSERT INTO course_instructor (course_id, instructor_id, is_lead)
        VALUES ($1, $2, $3)
        ON CONFLICT (course_id, instructor_id) DO UPDATE SET is_lead = EXCLUDED.is_lead`
	if _, err := r.db.ExecContext(ctx, query, courseID, instructorID, isLead); err != nil {
		return fmt.Errorf("assign instructor: %w", err)
	}
	return nil
}

// ListInstructors returns the instructors teaching the course.
func (r *CourseRepository) ListInstructors(ctx context.Context, courseID int64) ([]models.Instructor, error) {
	const query = `SELECT i.id, i.user_id, i.name, i.email, i.phone, i.bio_en, i.bio_bn,
        i.specialization, i.profile_image, i.created_at, i.updated_at, i.deleted_at
        FROM course_instructor ci
        JOIN instructors i ON i.id = ci.instructor_id
        WHERE ci.course_id = $1 AND i.deleted_at IS NULL
        ORDER BY ci.is_lead DESC, i.name`
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, courseID); err != nil {
		return nil, fmt.Errorf("list course instructors: %w", err)
	}
	return instructors, nil
}
