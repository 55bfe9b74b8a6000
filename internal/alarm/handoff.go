package alarm

import "time"

// Handoff is the Manager for a process that only writes alarm times to the
// shared store and leaves arming them to the serving process, which picks
// the change up on its next resync. It still enforces the exact-alarm
// permission so callers see the same errors.
type Handoff struct {
	exact bool
}

// NewHandoff returns a Handoff. When exact is false every Schedule call
// fails with ErrExactAlarmDenied.
func NewHandoff(exact bool) *Handoff {
	return &Handoff{exact: exact}
}

// Schedule implements Manager.
func (h *Handoff) Schedule(string, time.Time, Payload) error {
	if !h.exact {
		return ErrExactAlarmDenied
	}
	return nil
}

// Cancel implements Manager.
func (h *Handoff) Cancel(string) {}

// Pending implements Manager. Nothing is ever pending locally.
func (h *Handoff) Pending(string) (time.Time, bool) { return time.Time{}, false }

// Keys implements Manager.
func (h *Handoff) Keys() []string { return nil }

var _ Manager = (*Handoff)(nil)
