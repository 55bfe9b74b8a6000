// Package notify turns fired alarms into user notifications and fans them
// out to the configured sinks.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/plantbutler/internal/alarm"
)

const (
	// Title heads every task reminder.
	Title = "Plant care reminder 🌿"
	// DefaultBody is used when the task has no description.
	DefaultBody = "You have a task to do!"

	recentSize = 50
)

// Importance of a channel.
type Importance string

const (
	ImportanceDefault Importance = "default"
	ImportanceHigh    Importance = "high"
)

// Channel groups notifications of one kind.
type Channel struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Importance Importance `json:"importance"`
}

// DefaultChannel carries task reminders.
var DefaultChannel = Channel{ID: "plant_care_channel", Name: "Plant care reminders", Importance: ImportanceHigh}

// Notification is one rendered reminder.
type Notification struct {
	ID      string    `json:"id"`
	Channel string    `json:"channel"`
	Title   string    `json:"title"`
	Body    string    `json:"text"`
	TaskID  string    `json:"task_id,omitempty"`
	Plant   string    `json:"plant,omitempty"`
	At      time.Time `json:"at"`
}

// Sink delivers a notification somewhere.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// Dispatcher renders alarm payloads and sends them to every sink.
type Dispatcher struct {
	sinks   []Sink
	channel Channel
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	channels map[string]Channel
	recent   []Notification
	next     int
	full     bool
}

var _ alarm.Receiver = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher over sinks.
func NewDispatcher(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sinks:    sinks,
		channel:  DefaultChannel,
		logger:   logger,
		now:      time.Now,
		channels: make(map[string]Channel),
		recent:   make([]Notification, recentSize),
	}
}

// AddSink registers another sink. It is not safe to call during Deliver.
func (d *Dispatcher) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// UseChannel sets the channel reminders are posted to. Blank fields keep
// the defaults.
func (d *Dispatcher) UseChannel(ch Channel) {
	if ch.ID == "" {
		ch.ID = DefaultChannel.ID
	}
	if ch.Name == "" {
		ch.Name = DefaultChannel.Name
	}
	if ch.Importance == "" {
		ch.Importance = DefaultChannel.Importance
	}
	d.channel = ch
}

// EnsureChannel registers ch once. Later calls with the same id keep the
// first registration.
func (d *Dispatcher) EnsureChannel(ch Channel) Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.channels[ch.ID]; ok {
		return existing
	}
	if ch.Importance == "" {
		ch.Importance = ImportanceDefault
	}
	d.channels[ch.ID] = ch
	return ch
}

// Channels returns the registered channels.
func (d *Dispatcher) Channels() []Channel {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Channel, 0, len(d.channels))
	for _, ch := range d.channels {
		out = append(out, ch)
	}
	return out
}

// Deliver implements alarm.Receiver. A failing sink is logged and does not
// stop the others.
func (d *Dispatcher) Deliver(ctx context.Context, p alarm.Payload) error {
	ch := d.EnsureChannel(d.channel)

	body := strings.TrimSpace(p.Description)
	if body == "" {
		body = DefaultBody
	}
	n := Notification{
		ID:      uuid.NewString(),
		Channel: ch.ID,
		Title:   Title,
		Body:    body,
		TaskID:  p.TaskID,
		Plant:   p.PlantName,
		At:      d.now(),
	}
	d.remember(n)

	for _, s := range d.sinks {
		if err := s.Send(ctx, n); err != nil {
			d.logger.Error("notify: sink failed",
				slog.String("notification_id", n.ID),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (d *Dispatcher) remember(n Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recent[d.next] = n
	d.next = (d.next + 1) % len(d.recent)
	if d.next == 0 {
		d.full = true
	}
}

// Recent returns up to n notifications, newest first.
func (d *Dispatcher) Recent(n int) []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	size := d.next
	if d.full {
		size = len(d.recent)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Notification, 0, n)
	for i := 1; i <= n; i++ {
		idx := (d.next - i + len(d.recent)) % len(d.recent)
		out = append(out, d.recent[idx])
	}
	return out
}
