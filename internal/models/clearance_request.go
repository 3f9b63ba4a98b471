package models

import "time"

// RequestStatus enumerates the clearance request lifecycle states.
// Transitions are monotonic: PENDING may move to APPROVED or REJECTED,
// terminal states never change.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
)

// Decision is the reviewer's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// BulkRejectDefaultReason is stamped on bulk rejections that carry no
// explicit reason, preserving the non-empty rejection_reason invariant.
const BulkRejectDefaultReason = "Bulk rejected by officer"

// ClearanceRequest is the central lifecycle entity. Rows are never
// physically deleted; re-application after rejection inserts a new row.
type ClearanceRequest struct {
	ID              string        `db:"id" json:"id"`
	RequestID       string        `db:"request_id" json:"request_id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	Type            string        `db:"type" json:"type"`
	ClearanceTypeID string        `db:"clearance_type_id" json:"clearance_type_id"`
	Status          RequestStatus `db:"status" json:"status"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedBy      *string       `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Payload         []byte        `db:"payload" json:"payload,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// ClearanceRequestDetail joins contextual names for display and review.
type ClearanceRequestDetail struct {
	ClearanceRequest
	StudentName     string `db:"student_name" json:"student_name"`
	StudentMatric   string `db:"student_matric" json:"student_matric"`
	StudentFaculty  string `db:"student_faculty" json:"student_faculty"`
	TypeDisplayName string `db:"type_display_name" json:"type_display_name"`
	ReviewerName    *string `db:"reviewer_name" json:"reviewer_name,omitempty"`
}

// ClearanceRequestFilter captures listing criteria for requests.
type ClearanceRequestFilter struct {
	StudentID string
	Type      string
	Faculty   string
	Status    RequestStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// BulkItemOutcome describes what happened to a single id in a bulk decision.
type BulkItemOutcome string

const (
	BulkOutcomeApplied BulkItemOutcome = "applied"
	BulkOutcomeSkipped BulkItemOutcome = "skipped"
	BulkOutcomeFailed  BulkItemOutcome = "failed"
)

// BulkItemResult pairs a request id with its outcome.
type BulkItemResult struct {
	RequestID string          `json:"request_id"`
	Outcome   BulkItemOutcome `json:"outcome"`
}

// BulkDecisionResult aggregates a bulk decision run. ProcessedCount counts
// rows actually transitioned; skipped ids are reported, not errored.
type BulkDecisionResult struct {
	ProcessedCount int              `json:"processed_count"`
	Items          []BulkItemResult `json:"items"`
}
