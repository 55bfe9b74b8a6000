// Package testutil provides shared test helpers for databases, blob stores and logs.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/plantbutler/internal/prefs"
	"github.com/starford/plantbutler/internal/storage"
	"github.com/starford/plantbutler/internal/store"
)

// PNG is the smallest byte sequence sniffed as image/png.
var PNG = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "plantbutler-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestPhotos creates a temporary photo directory with a storage.Provider.
func TestPhotos(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, fs
}

// TestPrefs opens a preference store in a temp directory.
func TestPrefs(t *testing.T) *prefs.Store {
	t.Helper()
	p, err := prefs.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// Logger returns a logger that only prints errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
