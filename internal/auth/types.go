package auth

import (
	"errors"
	"regexp"
	"time"
)

// emailPattern is deliberately loose: one @, no spaces, something on both
// sides. Deliverability is the mail system's problem, not ours.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// maxEmailLength is the maximum allowed email length.
const maxEmailLength = 254

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// IsValidEmail checks if an email address meets format requirements.
func IsValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}

// IsValidPassword checks if a plaintext password meets the length floor.
func IsValidPassword(password string) bool {
	return len(password) >= minPasswordLength
}

// User represents a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialised
	CreatedAt    time.Time `json:"created_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password too short")
	ErrTokenInvalid       = errors.New("invalid token")
)
