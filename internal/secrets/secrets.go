// Package secrets reads credentials from the OS keyring.
package secrets

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Service is the keyring service name all secrets are stored under.
const Service = "plantbutler"

var (
	// ErrNotFound is returned when the keyring has no entry for the user.
	ErrNotFound = errors.New("secrets: not found in keyring")
	// ErrUnavailable is returned when the OS keyring cannot be reached.
	ErrUnavailable = errors.New("secrets: OS keyring is not available")
)

// Get returns the secret stored for user.
func Get(user string) (string, error) {
	v, err := keyring.Get(Service, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return v, nil
}

// Set stores a secret for user.
func Set(user, value string) error {
	if value == "" {
		return errors.New("secrets: value cannot be empty")
	}
	if err := keyring.Set(Service, user, value); err != nil {
		return fmt.Errorf("secrets: store: %w", err)
	}
	return nil
}

// Delete removes the secret for user.
func Delete(user string) error {
	if err := keyring.Delete(Service, user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("secrets: delete: %w", err)
	}
	return nil
}

// Resolve returns explicit when it is set, otherwise the keyring entry for
// user. An empty user with no explicit value resolves to "".
func Resolve(explicit, user string) (string, error) {
	if explicit != "" || user == "" {
		return explicit, nil
	}
	return Get(user)
}
