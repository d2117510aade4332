// Package auth guards destructive commands behind an optional operator PIN.
//
// The PIN is stored bcrypt-hashed in the local key/value table. When no PIN
// is set every check passes.
package auth

import (
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// StorageKey is the KV key holding the PIN hash.
const StorageKey = "operatorPin"

var (
	// ErrPINRequired is returned by Require when a PIN is set and none was given.
	ErrPINRequired = errors.New("operator PIN required (use --pin)")
	// ErrInvalidPIN is returned when the given PIN does not match.
	ErrInvalidPIN = errors.New("invalid operator PIN")
	// ErrWeakPIN is returned by Set for PINs that are not 4-12 digits.
	ErrWeakPIN = errors.New("PIN must be 4 to 12 digits")
)

// KV is the storage the PIN hash lives in.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	DeleteKey(key string) error
}

// Guard checks and manages the operator PIN.
type Guard struct {
	kv KV
}

// NewGuard returns a Guard backed by kv.
func NewGuard(kv KV) *Guard {
	return &Guard{kv: kv}
}

// Enabled reports whether a PIN has been set.
func (g *Guard) Enabled() (bool, error) {
	hash, ok, err := g.kv.Get(StorageKey)
	if err != nil {
		return false, fmt.Errorf("failed to read PIN: %w", err)
	}
	return ok && hash != "", nil
}

// Set replaces the PIN. If a PIN is already set, current must match it.
func (g *Guard) Set(current, pin string) error {
	if err := g.Require(current); err != nil {
		return err
	}
	if !ValidatePIN(pin) {
		return ErrWeakPIN
	}
	hash, err := HashPassword(pin)
	if err != nil {
		return fmt.Errorf("failed to hash PIN: %w", err)
	}
	if err := g.kv.Set(StorageKey, hash); err != nil {
		return fmt.Errorf("failed to store PIN: %w", err)
	}
	return nil
}

// Clear removes the PIN after checking current against it.
func (g *Guard) Clear(current string) error {
	if err := g.Require(current); err != nil {
		return err
	}
	if err := g.kv.DeleteKey(StorageKey); err != nil {
		return fmt.Errorf("failed to clear PIN: %w", err)
	}
	return nil
}

// Require passes when no PIN is set or pin matches the stored one.
func (g *Guard) Require(pin string) error {
	hash, ok, err := g.kv.Get(StorageKey)
	if err != nil {
		return fmt.Errorf("failed to read PIN: %w", err)
	}
	if !ok || hash == "" {
		return nil
	}
	if pin == "" {
		return ErrPINRequired
	}
	if !VerifyPassword(pin, hash) {
		return ErrInvalidPIN
	}
	return nil
}

var pinRegex = regexp.MustCompile(`^[0-9]{4,12}$`)

// ValidatePIN checks that pin is 4 to 12 digits.
func ValidatePIN(pin string) bool {
	return pinRegex.MatchString(pin)
}

// HashPassword creates a hashed password using bcrypt
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	// bcrypt automatically handles salting
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if a password matches a hash
func VerifyPassword(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}

	// A valid bcrypt hash is exactly 60 characters
	if len(hash) != 60 {
		return false
	}

	if !(hash[:4] == "$2a$" || hash[:4] == "$2b$" || hash[:4] == "$2y$") {
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
