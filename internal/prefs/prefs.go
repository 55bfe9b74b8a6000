// Package prefs is a small on-disk key/value store for user preferences and
// one-time flags, backed by diskv.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/peterbourgon/diskv/v3"
)

// Well-known flag keys.
const (
	ExactAlarmPromptShown      = "exact_alarm_prompt_shown"
	PhotoPermissionNoticeShown = "photo_permission_notice_shown"
)

// Store persists string values keyed by name.
type Store struct {
	d *diskv.Diskv
}

// Open creates a Store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("prefs: mkdir: %w", err)
	}
	return &Store{d: diskv.New(diskv.Options{
		BasePath:          dir,
		AdvancedTransform: keyToPath,
		InverseTransform:  pathToKey,
		CacheSizeMax:      64 * 1024,
	})}, nil
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(key string) (string, bool) {
	v, err := s.d.Read(key)
	if err != nil {
		return "", false
	}
	return string(v), true
}

// Set writes a value.
func (s *Store) Set(key, value string) error {
	if err := s.d.Write(key, []byte(value)); err != nil {
		return fmt.Errorf("prefs: write %s: %w", key, err)
	}
	return nil
}

// Delete removes a key; a missing key is not an error.
func (s *Store) Delete(key string) error {
	if err := s.d.Erase(key); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("prefs: erase %s: %w", key, err)
	}
	return nil
}

// Once marks key as done and reports whether this call was the first.
// A write failure still reports true so the caller shows its prompt.
func (s *Store) Once(key string) bool {
	if _, ok := s.Get(key); ok {
		return false
	}
	_ = s.Set(key, "1")
	return true
}

// Keys lists every stored key.
func (s *Store) Keys() []string {
	var out []string
	for k := range s.d.Keys(nil) {
		out = append(out, k)
	}
	return out
}

// keys like "flags.exact_alarm_prompt_shown" live at flags/exact_alarm_prompt_shown.
func keyToPath(key string) *diskv.PathKey {
	parts := strings.Split(key, ".")
	return &diskv.PathKey{
		Path:     parts[:len(parts)-1],
		FileName: parts[len(parts)-1],
	}
}

func pathToKey(pk *diskv.PathKey) string {
	if len(pk.Path) == 0 {
		return pk.FileName
	}
	return strings.Join(pk.Path, ".") + "." + pk.FileName
}
