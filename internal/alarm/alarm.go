// Package alarm registers one-shot wall-clock alarms keyed by a stable string.
package alarm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrExactAlarmDenied is returned when the backend may not schedule exact alarms.
var ErrExactAlarmDenied = errors.New("alarm: exact alarms not permitted")

// Payload is everything a fired alarm carries. Receivers must work from it
// alone; no other in-process state is guaranteed to exist when it fires.
type Payload struct {
	TaskID      string    `json:"task_id"`
	PlantName   string    `json:"plant_name,omitempty"`
	Description string    `json:"description,omitempty"`
	FireAt      time.Time `json:"fire_at"`
}

// Receiver handles fired alarms.
type Receiver interface {
	Deliver(ctx context.Context, p Payload) error
}

// Manager schedules and revokes one-shot alarms.
type Manager interface {
	// Schedule registers an alarm at the given time, replacing any
	// registration under the same key.
	Schedule(key string, at time.Time, p Payload) error
	// Cancel revokes a registration; unknown keys are ignored.
	Cancel(key string)
	// Pending reports the fire time of a registration.
	Pending(key string) (time.Time, bool)
	// Keys lists the current registrations.
	Keys() []string
}

type entry struct {
	timer *time.Timer
	at    time.Time
	gen   uint64
}

// Timers is an in-process Manager built on time.AfterFunc.
type Timers struct {
	recv   Receiver
	logger *slog.Logger
	exact  bool

	mu      sync.Mutex
	entries map[string]entry
	gen     uint64
	stopped bool
}

// NewTimers returns a timer-backed Manager. When exact is false every
// Schedule call fails with ErrExactAlarmDenied.
func NewTimers(recv Receiver, exact bool, logger *slog.Logger) *Timers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Timers{
		recv:    recv,
		logger:  logger,
		exact:   exact,
		entries: make(map[string]entry),
	}
}

// Schedule implements Manager.
func (t *Timers) Schedule(key string, at time.Time, p Payload) error {
	if !t.exact {
		return ErrExactAlarmDenied
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return errors.New("alarm: manager stopped")
	}
	if old, ok := t.entries[key]; ok {
		old.timer.Stop()
	}

	t.gen++
	gen := t.gen
	p.FireAt = at
	timer := time.AfterFunc(time.Until(at), func() { t.fire(key, gen, p) })
	t.entries[key] = entry{timer: timer, at: at, gen: gen}
	t.logger.Debug("alarm: scheduled", slog.String("key", key), slog.Time("at", at))
	return nil
}

func (t *Timers) fire(key string, gen uint64, p Payload) {
	t.mu.Lock()
	cur, ok := t.entries[key]
	if !ok || cur.gen != gen {
		// Replaced or cancelled after the timer had already started.
		t.mu.Unlock()
		return
	}
	delete(t.entries, key)
	t.mu.Unlock()

	t.logger.Info("alarm: fired", slog.String("key", key), slog.String("task", p.Description))
	if t.recv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := t.recv.Deliver(ctx, p); err != nil {
		t.logger.Error("alarm: delivery failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Cancel implements Manager.
func (t *Timers) Cancel(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[key]; ok {
		e.timer.Stop()
		delete(t.entries, key)
		t.logger.Debug("alarm: cancelled", slog.String("key", key))
	}
}

// Pending implements Manager.
func (t *Timers) Pending(key string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	return e.at, ok
}

// Keys implements Manager.
func (t *Timers) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of registrations.
func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Stop cancels every registration and rejects further scheduling.
func (t *Timers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, e := range t.entries {
		e.timer.Stop()
		delete(t.entries, k)
	}
	t.stopped = true
}

// Verify *Timers satisfies Manager at compile time.
var _ Manager = (*Timers)(nil)
