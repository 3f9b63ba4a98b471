package dto

import "github.com/unihub-dev/clearance-api/internal/models"

// OverviewResponse summarises clearance activity for admins and officers.
type OverviewResponse struct {
	TotalRequests       int                  `json:"total_requests"`
	Pending             int                  `json:"pending"`
	Approved            int                  `json:"approved"`
	Rejected            int                  `json:"rejected"`
	ByType              []models.TypeCount   `json:"by_type"`
	ApprovalRatePercent int                  `json:"approval_rate_percent"`
	AvgTurnaroundDays   float64              `json:"avg_turnaround_days"`
	Trend               []models.TrendBucket `json:"trend"`
}

// TypeProgress reports a student's standing for one eligible clearance type.
type TypeProgress struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
}

// StudentProgressResponse is a display-only completion projection. It
// carries no authority: clearance is granted per type by officer decisions.
type StudentProgressResponse struct {
	StudentID       string         `json:"student_id"`
	ProgressPercent int            `json:"progress_percent"`
	PerType         []TypeProgress `json:"per_type"`
}
