package models

import "time"

// StatusCount is a per-status aggregate row.
type StatusCount struct {
	Status RequestStatus `db:"status" json:"status"`
	Count  int           `db:"count" json:"count"`
}

// TypeCount is a per-type aggregate row.
type TypeCount struct {
	Type  string `db:"type" json:"type"`
	Count int    `db:"count" json:"count"`
}

// TrendBucket is one week of submission/decision activity.
type TrendBucket struct {
	WeekStart time.Time `db:"week_start" json:"week_start"`
	Submitted int       `db:"submitted" json:"submitted"`
	Approved  int       `db:"approved" json:"approved"`
	Rejected  int       `db:"rejected" json:"rejected"`
}

// StatusChange is a recently decided or submitted request, consumed by the
// pull-based notification projection.
type StatusChange struct {
	RequestID       string        `db:"request_id" json:"request_id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	Type            string        `db:"type" json:"type"`
	Status          RequestStatus `db:"status" json:"status"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ChangedAt       time.Time     `db:"changed_at" json:"changed_at"`
}
