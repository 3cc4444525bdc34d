package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates an account. Designation is ignored for students.
type RegisterRequest struct {
	Username    string      `json:"username" validate:"required,max=100"`
	Email       string      `json:"email" validate:"required,email"`
	Password    string      `json:"password" validate:"required,min=6"`
	Role        Role        `json:"role" validate:"required,oneof=student staff"`
	Designation Designation `json:"designation" validate:"omitempty,oneof=hod dean principal"`
}

// LoginRequest holds credentials for authenticating an account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse returns the issued access token and account info.
type SessionResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   int64       `json:"expires_in"`
	IssuedAt    time.Time   `json:"issued_at"`
	Account     AccountInfo `json:"account"`
}

// UpdateDesignationRequest changes a staff account's designation.
type UpdateDesignationRequest struct {
	Designation Designation `json:"designation" validate:"omitempty,oneof=hod dean principal"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	AccountID   string      `json:"account_id"`
	Role        Role        `json:"role"`
	Designation Designation `json:"designation,omitempty"`
	Email       string      `json:"email"`
	Username    string      `json:"username"`
	jwt.RegisteredClaims
}
