package models

import "time"

// VerificationStatus is the tri-state outcome of manual payment review.
type VerificationStatus string

// Possible payment verification statuses. Verified and rejected are
// terminal; re-verification is refused.
const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Accepted payment methods.
const (
	PaymentMethodBkash        = "bkash"
	PaymentMethodBankTransfer = "bank-transfer"
	PaymentMethodCash         = "cash"
)

// Payment is submitted evidence of a bank transfer for a registration.
// The amount is copied from the course price at submission time, never
// taken from caller input.
type Payment struct {
	ID                 int64              `db:"id" json:"id"`
	RegistrationID     int64              `db:"registration_id" json:"registration_id"`
	Amount             float64            `db:"amount" json:"amount"`
	PaymentMethod      string             `db:"payment_method" json:"payment_method"`
	TransactionID      string             `db:"transaction_id" json:"transaction_id"`
	PaymentDate        time.Time          `db:"payment_date" json:"payment_date"`
	PaymentProof       *string            `db:"payment_proof" json:"payment_proof,omitempty"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	RejectionReason    *string            `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
	DeletedAt          *time.Time         `db:"deleted_at" json:"-"`
}

// IsTerminal reports whether the payment has reached a final decision.
func (p *Payment) IsTerminal() bool {
	return p.VerificationStatus == VerificationVerified || p.VerificationStatus == VerificationRejected
}

// PaymentDetail enriches Payment with student and course context.
type PaymentDetail struct {
	Payment
	StudentID   int64  `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	CourseID    int64  `db:"course_id" json:"course_id"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// PaymentFilter provides filters for the payment report.
type PaymentFilter struct {
	Status    VerificationStatus
	CourseID  int64
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// PaymentSummary aggregates amounts per verification status.
type PaymentSummary struct {
	TotalAmount    float64 `db:"total_amount" json:"total_amount"`
	VerifiedAmount float64 `db:"verified_amount" json:"verified_amount"`
	PendingAmount  float64 `db:"pending_amount" json:"pending_amount"`
	RejectedAmount float64 `db:"rejected_amount" json:"rejected_amount"`
}
