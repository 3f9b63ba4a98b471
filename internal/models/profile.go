package models

// StudentLevel enumerates academic levels used by eligibility rules.
type StudentLevel string

const (
	Level100   StudentLevel = "100"
	Level200   StudentLevel = "200"
	Level300   StudentLevel = "300"
	Level400   StudentLevel = "400"
	LevelFinal StudentLevel = "FINAL"
)

// StudentProfile carries the academic attributes eligibility rules consume.
type StudentProfile struct {
	UserID     string       `db:"user_id" json:"user_id"`
	MatricNo   string       `db:"matric_no" json:"matric_no"`
	Level      StudentLevel `db:"level" json:"level"`
	Faculty    string       `db:"faculty" json:"faculty"`
	Department string       `db:"department" json:"department"`
}

// OfficerProfile scopes an officer to a clearance type and/or faculty.
// Empty fields mean the officer is unrestricted on that axis.
type OfficerProfile struct {
	UserID          string `db:"user_id" json:"user_id"`
	AssignedType    string `db:"assigned_type" json:"assigned_type"`
	AssignedFaculty string `db:"assigned_faculty" json:"assigned_faculty"`
}

// CanReview reports whether the officer's scope covers a request of the
// given type slug submitted by a student in the given faculty.
func (p OfficerProfile) CanReview(typeSlug, faculty string) bool {
	if p.AssignedType != "" && p.AssignedType != typeSlug {
		return false
	}
	if p.AssignedFaculty != "" && p.AssignedFaculty != faculty {
		return false
	}
	return true
}

// StudentDetail combines the account row with the academic profile.
type StudentDetail struct {
	User
	Profile StudentProfile `json:"profile"`
}

// OfficerDetail combines the account row with the review scope.
type OfficerDetail struct {
	User
	Profile OfficerProfile `json:"profile"`
}
