package models

import "time"

// UserRole distinguishes the three account kinds the API serves.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleOfficer UserRole = "OFFICER"
	RoleStudent UserRole = "STUDENT"
)

// User is one account row. Students and officers additionally carry a
// profile row keyed by user id.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter narrows account listings.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Faculty   string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination accompanies every list response.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
