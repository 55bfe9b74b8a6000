package storage

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MaxImageBytes caps a single photo.
const MaxImageBytes = 20 << 20

// ErrNotImage marks content that is not a storable image.
var ErrNotImage = errors.New("storage: not a supported image")

var mimeToExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DetectImage sniffs the content and returns the file extension for a
// supported image type.
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty", ErrNotImage)
	}
	if len(data) > MaxImageBytes {
		return "", fmt.Errorf("%w: too large: %d bytes (max %d)", ErrNotImage, len(data), MaxImageBytes)
	}
	detected := http.DetectContentType(data)
	ext, ok := mimeToExt[strings.Split(detected, ";")[0]]
	if !ok {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, detected)
	}
	return ext, nil
}

// ExtForMIME maps an image MIME type to its extension.
func ExtForMIME(mime string) (string, bool) {
	ext, ok := mimeToExt[strings.ToLower(strings.TrimSpace(mime))]
	return ext, ok
}
