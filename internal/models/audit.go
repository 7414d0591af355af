package models

import "time"

// AuditAction identifies the operation recorded in the audit trail.
type AuditAction string

const (
	AuditActionLogin            AuditAction = "LOGIN"
	AuditActionPasswordChange   AuditAction = "PASSWORD_CHANGE"
	AuditActionEnrollmentCreate AuditAction = "ENROLLMENT_CREATE"
	AuditActionEnrollmentExtend AuditAction = "ENROLLMENT_EXTEND"
	AuditActionEnrollmentCancel AuditAction = "ENROLLMENT_CANCEL"
	AuditActionEnrollmentDone   AuditAction = "ENROLLMENT_COMPLETE"
)

// AuditLog captures an administrative action for the audit trail.
type AuditLog struct {
	ID         string      `db:"id" json:"id"`
	UserID     *string     `db:"user_id" json:"user_id,omitempty"`
	Action     AuditAction `db:"action" json:"action"`
	Resource   string      `db:"resource" json:"resource"`
	ResourceID *string     `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte      `db:"new_values" json:"new_values,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
