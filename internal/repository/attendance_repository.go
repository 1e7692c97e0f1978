package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/culinaryhub/culinary-school-api/internal/models"
)

// AttendanceRepository handles per-day attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert records attendance for one registration and date, overwriting a
// prior mark for the same day.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO attendance_records (registration_id, date, present, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (registration_id, date)
        DO UPDATE SET present = EXCLUDED.present, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	if err := r.db.QueryRowxContext(ctx, query,
		record.RegistrationID, record.Date, record.Present, record.CreatedAt, record.UpdatedAt,
	).Scan(&record.ID, &record.CreatedAt); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// ListByRegistration returns a registration's attendance ordered by date.
func (r *AttendanceRepository) ListByRegistration(ctx context.Context, registrationID int64) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, registration_id, date, present, created_at, updated_at
        FROM attendance_records WHERE registration_id = $1 ORDER BY date ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, registrationID); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// ListByCourse returns attendance for every active registration of a course,
// grouped per registration.
func (r *AttendanceRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.RegistrationAttendance, error) {
	type row struct {
		models.AttendanceRecord
		StudentID   int64  `db:"student_id"`
		StudentName string `db:"student_name"`
	}
	const query = `SELECT a.id, a.registration_id, a.date, a.present, a.created_at, a.updated_at,
        r.student_id, s.name AS student_name
        FROM attendance_records a
        JOIN registrations r ON r.id = a.registration_id
        JOIN students s ON s.id = r.student_id
        WHERE r.course_id = $1 AND r.deleted_at IS NULL
        ORDER BY a.registration_id ASC, a.date ASC`
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list course attendance: %w", err)
	}

	var grouped []models.RegistrationAttendance
	index := map[int64]int{}
	for _, rec := range rows {
		i, ok := index[rec.RegistrationID]
		if !ok {
			grouped = append(grouped, models.RegistrationAttendance{
				RegistrationID: rec.RegistrationID,
				StudentID:      rec.StudentID,
				StudentName:    rec.StudentName,
			})
			i = len(grouped) - 1
			index[rec.RegistrationID] = i
		}
		grouped[i].Records = append(grouped[i].Records, rec.AttendanceRecord)
	}
	return grouped, nil
}
