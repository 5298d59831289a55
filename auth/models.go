package auth

import "time"

type Role string

const (
	RoleCreator    Role = "creator"
	RoleStaker     Role = "staker"
	RoleArbitrator Role = "arbitrator"
)

// User is the domain representation of an authenticated user.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Wallet       string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Wallet      string `json:"wallet"`
	Role        Role   `json:"role"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
