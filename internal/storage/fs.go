package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FS implements Provider backed by a flat directory.
type FS struct {
	root string // absolute path to the photo directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// safePath accepts only a plain file name and resolves it under the root.
func (f *FS) safePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("storage: name is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("storage: invalid name: %s", name)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes photo root: %s", name)
	}
	return abs, nil
}

// Put validates and atomically writes an image under a uuid name.
func (f *FS) Put(data []byte) (string, error) {
	ext, err := DetectImage(data)
	if err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	if err := f.write(name, data); err != nil {
		return "", err
	}
	return name, nil
}

// Import validates srcPath, copies it atomically into the store and removes
// the source. If the source cannot be removed the stored copy is deleted
// again, so a retry never yields a second blob of the same file.
func (f *FS) Import(srcPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("storage: open import: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(src, MaxImageBytes+1))
	src.Close()
	if err != nil {
		return "", fmt.Errorf("storage: read import: %w", err)
	}
	name, err := f.Put(data)
	if err != nil {
		return "", err
	}
	if err := os.Remove(srcPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		if derr := f.Delete(name); derr != nil {
			return "", errors.Join(fmt.Errorf("storage: remove import source: %w", err), derr)
		}
		return "", fmt.Errorf("storage: remove import source: %w", err)
	}
	return name, nil
}

// write is tmp file -> fsync -> rename.
func (f *FS) write(name string, content []byte) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".photo-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Read returns the raw bytes of a blob.
func (f *FS) Read(name string) ([]byte, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// Path returns the absolute path of an existing blob.
func (f *FS) Path(name string) (string, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("storage: stat %s: %w", name, err)
	}
	return abs, nil
}

// Delete removes a blob.
func (f *FS) Delete(name string) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}
