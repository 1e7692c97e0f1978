package models

import "time"

// PaymentStatus tracks whether a registration has been paid for.
type PaymentStatus string

// Possible registration payment statuses.
const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// CertificateStatus tracks certificate eligibility for a registration.
type CertificateStatus string

// Possible certificate statuses.
const (
	CertificateStatusNotEligible CertificateStatus = "not_eligible"
	CertificateStatusPending     CertificateStatus = "pending"
	CertificateStatusIssued      CertificateStatus = "issued"
)

// Registration binds one student to one course. It is the aggregate root for
// payments, the certificate, and attendance records. A student holds at most
// one non-canceled registration per course; canceling soft-deletes the row
// and frees the seat, after which re-registering is allowed.
type Registration struct {
	ID                int64             `db:"id" json:"id"`
	StudentID         int64             `db:"student_id" json:"student_id"`
	CourseID          int64             `db:"course_id" json:"course_id"`
	PaymentStatus     PaymentStatus     `db:"payment_status" json:"payment_status"`
	CertificateStatus CertificateStatus `db:"certificate_status" json:"certificate_status"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
	DeletedAt         *time.Time        `db:"deleted_at" json:"-"`
}

// RegistrationDetail enriches Registration with student and course info.
type RegistrationDetail struct {
	Registration
	StudentName     string       `db:"student_name" json:"student_name"`
	CourseTitle     string       `db:"course_title" json:"course_title"`
	CourseStatus    CourseStatus `db:"course_status" json:"course_status"`
	CourseStartDate time.Time    `db:"course_start_date" json:"course_start_date"`
	CourseEndDate   time.Time    `db:"course_end_date" json:"course_end_date"`
	CoursePrice     float64      `db:"course_price" json:"course_price"`
}

// PaymentInstructions tells the student how to pay for a registration.
type PaymentInstructions struct {
	BkashNumber string  `json:"bkash_number"`
	Amount      float64 `json:"amount"`
	Reference   string  `json:"reference"`
}

// RegistrationResult is the register operation response payload.
type RegistrationResult struct {
	Registration        *Registration       `json:"registration"`
	PaymentInstructions PaymentInstructions `json:"payment_instructions"`
}
