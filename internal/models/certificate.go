package models

import "time"

// Certificate is the immutable completion record issued for a registration.
// The certificate number is human-presentable and globally unique; the
// digital signature is verifiable without access to the data store.
type Certificate struct {
	ID                int64      `db:"id" json:"id"`
	RegistrationID    int64      `db:"registration_id" json:"registration_id"`
	CertificateNumber string     `db:"certificate_number" json:"certificate_number"`
	IssueDate         time.Time  `db:"issue_date" json:"issue_date"`
	DigitalSignature  string     `db:"digital_signature" json:"digital_signature"`
	PDFPath           *string    `db:"pdf_path" json:"pdf_path,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	DeletedAt         *time.Time `db:"deleted_at" json:"-"`
}

// CertificateVerification is the public verification payload.
type CertificateVerification struct {
	IsValid           bool      `json:"is_valid"`
	CertificateNumber string    `json:"certificate_number"`
	IssueDate         time.Time `json:"issue_date"`
	StudentName       string    `json:"student_name"`
	CourseName        string    `json:"course_name"`
	CoursePeriod      string    `json:"course_period"`
}
