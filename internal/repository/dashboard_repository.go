package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/culinaryhub/culinary-school-api/internal/dto"
)

// DashboardRepository aggregates counts for the admin dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Stats collects the dashboard rollup in one round trip per table.
func (r *DashboardRepository) Stats(ctx context.Context) (*dto.DashboardStats, error) {
	var stats dto.DashboardStats

	const courseQuery = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = 'upcoming') AS upcoming,
        COUNT(*) FILTER (WHERE status = 'active') AS active,
        COUNT(*) FILTER (WHERE status = 'completed') AS completed,
        COUNT(*) FILTER (WHERE status = 'canceled') AS canceled
        FROM courses WHERE deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &stats.Courses, courseQuery); err != nil {
		return nil, fmt.Errorf("course stats: %w", err)
	}

	const studentQuery = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE registration_date >= date_trunc('month', now())) AS new_this_month
        FROM students WHERE deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &stats.Students, studentQuery); err != nil {
		return nil, fmt.Errorf("student stats: %w", err)
	}

	const registrationQuery = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE payment_status = 'pending') AS pending_payment,
        COUNT(*) FILTER (WHERE payment_status = 'completed') AS completed
        FROM registrations WHERE deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &stats.Registrations, registrationQuery); err != nil {
		return nil, fmt.Errorf("registration stats: %w", err)
	}

	const paymentQuery = `SELECT COALESCE(SUM(amount) FILTER (WHERE verification_status = 'verified'), 0) AS total_amount,
        COUNT(*) FILTER (WHERE verification_status = 'pending') AS pending_verification,
        COUNT(*) FILTER (WHERE verification_status = 'verified') AS verified,
        COUNT(*) FILTER (WHERE verification_status = 'rejected') AS rejected
        FROM payments`
	if err := r.db.GetContext(ctx, &stats.Payments, paymentQuery); err != nil {
		return nil, fmt.Errorf("payment stats: %w", err)
	}

	const certificateQuery = `SELECT COUNT(*) AS total_issued FROM certificates WHERE deleted_at IS NULL`
	if err := r.db.GetContext(ctx, &stats.Certificates, certificateQuery); err != nil {
		return nil, fmt.Errorf("certificate stats: %w", err)
	}

	return &stats, nil
}
