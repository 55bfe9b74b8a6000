package calendar

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/starford/plantbutler/internal/apperr"
)

// PhotoPermissionNotice is shown once when a selected photo cannot be kept.
const PhotoPermissionNotice = "Some photos could not be added because access to them was not granted. Pick them again or copy them into the photo inbox."

// Granter acquires long-term read access to an external photo reference.
type Granter interface {
	Grant(ctx context.Context, ref string) error
}

// Prompter shows a message to the user.
type Prompter interface {
	Prompt(ctx context.Context, kind, message string)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, kind, message string)

// Prompt implements Prompter.
func (f PrompterFunc) Prompt(ctx context.Context, kind, message string) { f(ctx, kind, message) }

// NeedsGrant reports whether ref points outside the local blob store and
// must be granted before it is persisted.
func NeedsGrant(ref string) bool {
	return strings.HasPrefix(ref, "file://") || strings.HasPrefix(ref, "content://")
}

// FileGranter grants file:// references that exist and can be opened.
// content:// references have no resolver on this host and are refused.
type FileGranter struct{}

// Grant implements Granter.
func (FileGranter) Grant(_ context.Context, ref string) error {
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	switch u.Scheme {
	case "file":
		f, err := os.Open(u.Path)
		if err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrPermissionDenied, err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrPermissionDenied, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", apperr.ErrInvalidArgument, u.Path)
		}
		return nil
	case "content":
		return fmt.Errorf("%w: no content resolver for %s", apperr.ErrPermissionDenied, u.Host)
	default:
		return nil
	}
}
