package models

import (
	"encoding/json"
	"time"
)

// DocumentRequirement describes one document a clearance type asks for.
type DocumentRequirement struct {
	Name           string   `json:"name"`
	Required       bool     `json:"required"`
	MaxSizeBytes   int64    `json:"max_size_bytes"`
	AllowedFormats []string `json:"allowed_formats"`
}

// ClearanceType is admin-managed configuration describing a clearance
// category. Types are deactivated rather than deleted so historical
// requests keep a valid reference.
type ClearanceType struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	DisplayName  string       `db:"display_name" json:"display_name"`
	FacultyBased bool         `db:"faculty_based" json:"faculty_based"`
	TargetLevel  StudentLevel `db:"target_level" json:"target_level,omitempty"`
	Active       bool         `db:"active" json:"active"`
	Requirements []byte       `db:"requirements" json:"-"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// DocumentRequirements decodes the stored requirement list.
func (t *ClearanceType) DocumentRequirements() ([]DocumentRequirement, error) {
	if len(t.Requirements) == 0 {
		return nil, nil
	}
	var reqs []DocumentRequirement
	if err := json.Unmarshal(t.Requirements, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// SetDocumentRequirements encodes the requirement list for storage.
func (t *ClearanceType) SetDocumentRequirements(reqs []DocumentRequirement) error {
	if len(reqs) == 0 {
		t.Requirements = nil
		return nil
	}
	raw, err := json.Marshal(reqs)
	if err != nil {
		return err
	}
	t.Requirements = raw
	return nil
}

// IsEligible applies the type's eligibility rule to a student profile.
func (t *ClearanceType) IsEligible(profile StudentProfile) bool {
	if !t.Active {
		return false
	}
	if t.TargetLevel != "" && t.TargetLevel != profile.Level {
		return false
	}
	if t.FacultyBased && profile.Faculty == "" {
		return false
	}
	return true
}
