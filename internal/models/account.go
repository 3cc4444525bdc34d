package models

import (
	"strings"
	"time"
)

// Role is the coarse account role.
type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
)

// Designation is the staff sub-rank driving downward visibility.
type Designation string

const (
	DesignationNone      Designation = ""
	DesignationHOD       Designation = "hod"
	DesignationDean      Designation = "dean"
	DesignationPrincipal Designation = "principal"
)

// Valid reports whether the role is one of the closed set.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleStaff
}

// Valid reports whether the designation is one of the closed set (empty included).
func (d Designation) Valid() bool {
	switch d {
	case DesignationNone, DesignationHOD, DesignationDean, DesignationPrincipal:
		return true
	}
	return false
}

// Account is an identity record persisted in the accounts collection.
type Account struct {
	ID           string      `db:"id" json:"id"`
	Username     string      `db:"username" json:"username"`
	Email        string      `db:"email" json:"email"`
	PasswordHash string      `db:"password_hash" json:"password_hash"`
	Role         Role        `db:"role" json:"role"`
	Designation  Designation `db:"designation" json:"designation,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
}

// NormalizeEmail lowercases and trims an email for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Info strips the credential for client responses.
func (a Account) Info() AccountInfo {
	return AccountInfo{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		Role:        a.Role,
		Designation: a.Designation,
	}
}

// AccountInfo describes an account in API responses.
type AccountInfo struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Role        Role        `json:"role"`
	Designation Designation `json:"designation,omitempty"`
}
