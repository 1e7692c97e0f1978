package models

import (
	"encoding/json"
	"time"
)

// AuditAction identifies what was done to a resource.
type AuditAction string

const (
	AuditActionLogin              AuditAction = "LOGIN"
	AuditActionVerifyPayment      AuditAction = "VERIFY_PAYMENT"
	AuditActionVerifyRegistration AuditAction = "VERIFY_REGISTRATION"
	AuditActionIssueCertificate   AuditAction = "ISSUE_CERTIFICATE"
)

// AuditLog records privileged actions for later review.
type AuditLog struct {
	ID         int64           `db:"id" json:"id"`
	UserID     *int64          `db:"user_id" json:"user_id,omitempty"`
	Action     AuditAction     `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *int64          `db:"resource_id" json:"resource_id,omitempty"`
	Detail     json.RawMessage `db:"detail" json:"detail,omitempty"`
	IPAddress  string          `db:"ip_address" json:"-"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
