// Package storage keeps uploaded photo blobs on the local file system.
package storage

import "strings"

// RefScheme prefixes references to blobs held by this store.
const RefScheme = "photo:"

// Provider is the interface for photo blob operations. Names are flat file
// names inside the store root.
type Provider interface {
	// Put validates the image bytes and stores them under a fresh name.
	Put(data []byte) (string, error)
	// Import moves an existing image file into the store under a fresh name.
	Import(srcPath string) (string, error)
	// Read returns the raw bytes of a blob.
	Read(name string) ([]byte, error)
	// Path returns the absolute file path of a blob.
	Path(name string) (string, error)
	// Delete removes a blob.
	Delete(name string) error
}

// Ref returns the persisted reference for a blob name.
func Ref(name string) string {
	return RefScheme + name
}

// NameFromRef extracts the blob name from a reference created by Ref.
func NameFromRef(ref string) (string, bool) {
	if !strings.HasPrefix(ref, RefScheme) {
		return "", false
	}
	name := strings.TrimPrefix(ref, RefScheme)
	return name, name != ""
}
