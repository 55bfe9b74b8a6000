package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Revision scopes. Triggers bump a scope on every committed row change.
const (
	ScopeCalendar = "calendar"
	ScopeTasks    = "tasks"
)

// Revisioner reports a counter that moves whenever rows in a scope change,
// from any connection or process sharing the database file.
type Revisioner interface {
	Revision(ctx context.Context, scope string) (int64, error)
}

// Revision returns the current counter of scope.
func (db *DB) Revision(ctx context.Context, scope string) (int64, error) {
	var rev int64
	if err := db.conn.QueryRowContext(ctx, `SELECT rev FROM revisions WHERE scope = ?`, scope).Scan(&rev); err != nil {
		return 0, fmt.Errorf("store: revision %s: %w", scope, err)
	}
	return rev, nil
}

// PollRevisions calls onChange for each scope whose counter moved since the
// previous check, every interval until ctx is done. The counters at start
// are the baseline. Read errors are logged and the scope is checked again
// on the next tick.
func PollRevisions(ctx context.Context, r Revisioner, every time.Duration, scopes []string, onChange func(ctx context.Context, scope string), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	seen := make(map[string]int64, len(scopes))
	for _, scope := range scopes {
		if rev, err := r.Revision(ctx, scope); err == nil {
			seen[scope] = rev
		}
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for _, scope := range scopes {
			rev, err := r.Revision(ctx, scope)
			if err != nil {
				logger.Warn("store: revision check failed", slog.String("scope", scope), slog.String("error", err.Error()))
				continue
			}
			if last, ok := seen[scope]; ok && last == rev {
				continue
			}
			seen[scope] = rev
			onChange(ctx, scope)
		}
	}
}

// Verify *DB satisfies Revisioner at compile time.
var _ Revisioner = (*DB)(nil)
