package identity

import (
	"time"

	"github.com/google/uuid"
)

// Account is the authentication identity. It knows credentials only.
type Account struct {
	ID           uuid.UUID       `json:"id"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Metadata     AccountMetadata `json:"metadata"`
	CreatedAt    time.Time       `json:"created_at"`
}

// AccountMetadata records what the user entered at sign-up.
type AccountMetadata struct {
	FullName      string  `json:"full_name"`
	UserType      string  `json:"user_type"`
	Specialty     *string `json:"specialty,omitempty"`
	LicenseNumber *string `json:"license_number,omitempty"`
}

// Profile is the role-tagged user record every other area refers to.
type Profile struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	UserType      string    `json:"user_type"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	Specialty     *string   `json:"specialty,omitempty"`
	LicenseNumber *string   `json:"license_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type RegisterInput struct {
	UserType        string `json:"user_type"`
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Specialty       string `json:"specialty"`
	LicenseNumber   string `json:"license_number"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned by a successful sign-in.
type Session struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Profile     *Profile  `json:"profile"`
	// Landing is the home route for the profile's role.
	Landing string `json:"landing"`
}
