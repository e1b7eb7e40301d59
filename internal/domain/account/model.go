// Package account manages the authenticated actors of the system: hospitals,
// insurance companies, and admins.
package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrDuplicate          = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Hospital struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	CouncilID    string    `json:"council_id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
}

type Insurer struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	LicenseNumber string    `json:"license_number"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

type Admin struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
