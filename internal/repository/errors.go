package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors surfaced by transactional repository methods. Services map
// them onto the API error taxonomy.
var (
	// ErrCourseUnavailable is returned when a course has no free seats or is
	// not open for registration.
	ErrCourseUnavailable = errors.New("course unavailable for registration")
	// ErrAlreadyRegistered is returned when a non-canceled registration for
	// the (student, course) pair already exists.
	ErrAlreadyRegistered = errors.New("student already registered for course")
	// ErrCourseNotEmpty is returned when deleting a course that still has
	// enrolled students.
	ErrCourseNotEmpty = errors.New("course has active registrations")
	// ErrDuplicateTransaction is returned when a payment reuses a
	// transaction id.
	ErrDuplicateTransaction = errors.New("transaction id already used")
	// ErrPaymentTerminal is returned when verifying a payment that already
	// reached a terminal (verified or rejected) decision.
	ErrPaymentTerminal = errors.New("payment already decided")
	// ErrCertificateExists is returned when a certificate was already issued
	// for the registration.
	ErrCertificateExists = errors.New("certificate already issued")
	// ErrRecipeAttached is returned when a recipe is already attached to the
	// course.
	ErrRecipeAttached = errors.New("recipe already attached to course")
	// ErrDuplicateEmail is returned when a user email is already taken.
	ErrDuplicateEmail = errors.New("email already in use")
)

const pqUniqueViolation = "23505"

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// requireRowsAffected converts a zero-row update into sql.ErrNoRows so
// callers can treat it as a missing record.
func requireRowsAffected(res sql.Result) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
