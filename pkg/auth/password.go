package auth

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	MinPasswordLen    = 8
	MaxPasswordLen    = 72 // bcrypt ignores input past 72 bytes
)

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	// Return generic error to users - never expose specific requirements to prevent enumeration attacks
	return "invalid password"
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"qwerty":       true,
	"abc123":       true,
	"password123":  true,
	"password123!": true,
	"123456":       true,
	"admin":        true,
	"letmein":      true,
	"welcome":      true,
	"minecraft":    true,
	"passw0rd":     true,
	"passw0rd!":    true,
	"trustno1":     true,
}

// PasswordPolicy is the complexity policy applied when provisioning principals.
type PasswordPolicy struct {
	MinUpper   int
	MinLower   int
	MinDigits  int
	MinSymbols int
}

// DefaultPasswordPolicy requires at least one character of every class.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinUpper: 1, MinLower: 1, MinDigits: 1, MinSymbols: 1}
}

// Validate enforces length, character-class and common-password rules.
func (p PasswordPolicy) Validate(password string) error {
	errors := make([]string, 0)

	if len(password) < MinPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at most %d characters", MaxPasswordLen))
	}

	var upper, lower, digits, symbols int
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		case unicode.IsDigit(r):
			digits++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbols++
		}
	}

	if upper < p.MinUpper {
		errors = append(errors, fmt.Sprintf("must contain at least %d uppercase letter(s)", p.MinUpper))
	}
	if lower < p.MinLower {
		errors = append(errors, fmt.Sprintf("must contain at least %d lowercase letter(s)", p.MinLower))
	}
	if digits < p.MinDigits {
		errors = append(errors, fmt.Sprintf("must contain at least %d digit(s)", p.MinDigits))
	}
	if symbols < p.MinSymbols {
		errors = append(errors, fmt.Sprintf("must contain at least %d special character(s)", p.MinSymbols))
	}

	if commonPasswords[strings.ToLower(password)] {
		errors = append(errors, "is too common, please choose a more unique password")
	}

	if len(errors) > 0 {
		return &PasswordValidationError{Errors: errors}
	}

	return nil
}

// ValidatePassword enforces the default password policy
func ValidatePassword(password string) error {
	return DefaultPasswordPolicy().Validate(password)
}

// Hasher hashes and verifies secrets with bcrypt at a fixed cost.
type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewHasher creates a Hasher, clamping cost into bcrypt's accepted range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the bcrypt work factor used for new hashes.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Compare reports whether password matches hashedPassword. bcrypt compares
// digests in constant time; malformed hashes simply fail.
func (h *Hasher) Compare(hashedPassword, password string) bool {
	if hashedPassword == "" {
		h.CompareDummy(password)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// CompareDummy runs a comparison of the same cost against a throwaway hash so
// that unknown accounts take as long to reject as wrong passwords.
func (h *Hasher) CompareDummy(password string) {
	h.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("gatehouse-dummy-secret"), h.cost)
		if err == nil {
			h.dummyHash = hash
		}
	})
	if h.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
	}
}
