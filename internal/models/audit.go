package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionLogout         = "LOGOUT"
	AuditActionPasswordChange = "PASSWORD_CHANGE"

	AuditActionRequestCreate      = "REQUEST_CREATE"
	AuditActionRequestApprove     = "REQUEST_APPROVE"
	AuditActionRequestReject      = "REQUEST_REJECT"
	AuditActionRequestBulkApprove = "REQUEST_BULK_APPROVE"
	AuditActionRequestBulkReject  = "REQUEST_BULK_REJECT"

	AuditActionTypeCreate     = "TYPE_CREATE"
	AuditActionTypeUpdate     = "TYPE_UPDATE"
	AuditActionTypeDeactivate = "TYPE_DEACTIVATE"

	AuditActionUserCreate = "USER_CREATE"
	AuditActionUserUpdate = "USER_UPDATE"

	AuditActionConfigUpdate = "CONFIG_UPDATE"
)

// AuditLog represents an immutable audit trail record. Entries are written
// once and never updated or deleted.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	ActorRole  string    `db:"actor_role" json:"actor_role"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditLogFilter captures listing criteria for the audit trail.
type AuditLogFilter struct {
	UserID   string
	Action   string
	Resource string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}
