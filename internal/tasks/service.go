// Package tasks manages plants, their ordered care tasks and the one-shot
// alarms attached to those tasks.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/plantbutler/internal/alarm"
	"github.com/starford/plantbutler/internal/apperr"
	"github.com/starford/plantbutler/internal/models"
	"github.com/starford/plantbutler/internal/prefs"
	"github.com/starford/plantbutler/internal/store"
)

// Default tasks given to every new plant.
var defaultTasks = []models.Task{
	{Description: "Water", Active: true},
	{Description: "Check repotting"},
}

// ExactAlarmPrompt is shown once when the alarm backend refuses exact alarms.
const ExactAlarmPrompt = "Exact alarms are not permitted. Enable \"Alarms & reminders\" for plantbutler in system settings to receive task reminders."

// EventCallback is called after a successful mutation.
type EventCallback func(kind string, data any)

// Flags records one-time user prompts.
type Flags interface {
	Once(key string) bool
}

// Service is the sole writer of plants and tasks.
type Service struct {
	repo    store.PlantRepo
	alarms  alarm.Manager
	flags   Flags
	onEvent EventCallback
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEvents sets the mutation callback.
func WithEvents(cb EventCallback) Option {
	return func(s *Service) { s.onEvent = cb }
}

// NewService creates a task service.
func NewService(repo store.PlantRepo, alarms alarm.Manager, flags Flags, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		alarms: alarms,
		flags:  flags,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Service) emit(kind string, data any) {
	if s.onEvent != nil {
		s.onEvent(kind, data)
	}
}

// AddPlant creates a plant with the default task list.
func (s *Service) AddPlant(ctx context.Context, name, photoRef string) (*models.Plant, error) {
	p := &models.Plant{Name: strings.TrimSpace(name), PhotoRef: photoRef, CreatedAt: s.now()}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	for _, d := range defaultTasks {
		t := d
		t.ID = uuid.NewString()
		p.Tasks = append(p.Tasks, t)
	}
	if err := s.repo.InsertPlant(ctx, p); err != nil {
		return nil, err
	}
	s.emit("plant.created", p)
	return p, nil
}

// ListPlants returns every plant with its tasks.
func (s *Service) ListPlants(ctx context.Context) ([]models.Plant, error) {
	plants, err := s.repo.ListPlants(ctx)
	if err != nil {
		return nil, err
	}
	if plants == nil {
		plants = []models.Plant{}
	}
	return plants, nil
}

// GetPlant returns one plant.
func (s *Service) GetPlant(ctx context.Context, id int64) (*models.Plant, error) {
	return s.repo.GetPlant(ctx, id)
}

// PlantUpdate holds the fields of a partial plant edit. Nil fields keep
// their stored value; an empty PhotoRef clears the photo.
type PlantUpdate struct {
	Name     *string
	PhotoRef *string
}

// UpdatePlant renames a plant, changes its photo, or both.
func (s *Service) UpdatePlant(ctx context.Context, id int64, u PlantUpdate) (*models.Plant, error) {
	cur, err := s.repo.GetPlant(ctx, id)
	if err != nil {
		return nil, err
	}
	p := models.Plant{Name: cur.Name, PhotoRef: cur.PhotoRef}
	if u.Name != nil {
		p.Name = strings.TrimSpace(*u.Name)
	}
	if u.PhotoRef != nil {
		p.PhotoRef = strings.TrimSpace(*u.PhotoRef)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if err := s.repo.UpdatePlant(ctx, id, p.Name, p.PhotoRef); err != nil {
		return nil, err
	}
	out, err := s.repo.GetPlant(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit("plant.updated", out)
	return out, nil
}

// DeletePlant revokes every task alarm of the plant, then deletes it.
func (s *Service) DeletePlant(ctx context.Context, id int64) error {
	p, err := s.repo.GetPlant(ctx, id)
	if err != nil {
		return err
	}
	for _, t := range p.Tasks {
		s.alarms.Cancel(t.ID)
	}
	if err := s.repo.DeletePlant(ctx, id); err != nil {
		return err
	}
	s.emit("plant.deleted", map[string]int64{"id": id})
	return nil
}

// AddTask appends an inactive task without an alarm.
func (s *Service) AddTask(ctx context.Context, plantID int64, description string) (*models.Task, error) {
	t := &models.Task{
		ID:          uuid.NewString(),
		PlantID:     plantID,
		Description: strings.TrimSpace(description),
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if err := s.repo.InsertTask(ctx, t); err != nil {
		return nil, err
	}
	s.emit("task.created", t)
	return t, nil
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return s.repo.GetTask(ctx, id)
}

// Rename changes a task's description and refreshes its alarm payload.
func (s *Service) Rename(ctx context.Context, id, description string) (*models.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Description = strings.TrimSpace(description)
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if err := s.repo.UpdateTask(ctx, *t); err != nil {
		return nil, err
	}
	if t.Armed(s.now()) {
		if err := s.arm(ctx, *t, ""); err != nil {
			return t, err
		}
	}
	s.emit("task.updated", t)
	return t, nil
}

// SetAlarm arms a one-shot alarm for the task. A time that is not in the
// future is moved forward by whole days to the next occurrence of the same
// clock time.
func (s *Service) SetAlarm(ctx context.Context, id string, at time.Time) (*models.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	fire := RollForward(at, s.now())
	t.AlarmAt = &fire
	t.Active = true
	if err := s.repo.UpdateTask(ctx, *t); err != nil {
		return nil, err
	}
	s.emit("task.updated", t)
	if err := s.arm(ctx, *t, ""); err != nil {
		return t, err
	}
	return t, nil
}

// CancelAlarm deactivates the task and revokes its registration, if any.
// The alarm time is kept so re-activating restores it.
func (s *Service) CancelAlarm(ctx context.Context, id string) (*models.Task, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	s.alarms.Cancel(t.ID)
	t.Active = false
	if err := s.repo.UpdateTask(ctx, *t); err != nil {
		return nil, err
	}
	s.emit("task.updated", t)
	return t, nil
}

// SetActive mirrors checking or unchecking a task. Checking arms the alarm
// when an alarm time is set; unchecking cancels it.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*models.Task, error) {
	if !active {
		return s.CancelAlarm(ctx, id)
	}
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.AlarmAt != nil {
		return s.SetAlarm(ctx, id, *t.AlarmAt)
	}
	t.Active = true
	if err := s.repo.UpdateTask(ctx, *t); err != nil {
		return nil, err
	}
	s.emit("task.updated", t)
	return t, nil
}

// DeleteTask revokes the task's alarm and removes it.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	s.alarms.Cancel(id)
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.emit("task.deleted", map[string]string{"id": id})
	return nil
}

// MoveTask reorders a plant's tasks. Alarm keys are task ids, so no
// registration changes.
func (s *Service) MoveTask(ctx context.Context, plantID int64, from, to int) (*models.Plant, error) {
	if err := s.repo.MoveTask(ctx, plantID, from, to); err != nil {
		return nil, err
	}
	p, err := s.repo.GetPlant(ctx, plantID)
	if err != nil {
		return nil, err
	}
	s.emit("plant.updated", p)
	return p, nil
}

// RescheduleAll makes the alarm registrations match the store: every active
// task whose alarm time is still ahead is armed with its current payload and
// any other registration is revoked. It runs at startup and whenever another
// process changes the tasks. A failed load leaves the registrations alone;
// a failure for one task does not stop the others.
func (s *Service) RescheduleAll(ctx context.Context) int {
	cands, err := s.repo.AlarmCandidates(ctx)
	if err != nil {
		s.logger.Warn("reschedule: could not load tasks, nothing rescheduled", slog.String("error", err.Error()))
		return 0
	}
	now := s.now()
	armed := 0
	want := make(map[string]bool, len(cands))
	for _, c := range cands {
		if !c.Task.Armed(now) {
			continue
		}
		want[c.Task.ID] = true
		if err := s.arm(ctx, c.Task, c.PlantName); err != nil {
			s.logger.Warn("reschedule: arm failed",
				slog.String("task_id", c.Task.ID),
				slog.String("error", err.Error()))
			continue
		}
		armed++
	}
	revoked := 0
	for _, key := range s.alarms.Keys() {
		if !want[key] {
			s.alarms.Cancel(key)
			revoked++
		}
	}
	s.logger.Info("reschedule: done",
		slog.Int("armed", armed),
		slog.Int("revoked", revoked),
		slog.Int("candidates", len(cands)))
	return armed
}

// Armed lists tasks that are active with a future alarm time.
func (s *Service) Armed(ctx context.Context) ([]models.ArmedTask, error) {
	cands, err := s.repo.AlarmCandidates(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := []models.ArmedTask{}
	for _, c := range cands {
		if c.Task.Armed(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Service) arm(ctx context.Context, t models.Task, plantName string) error {
	if plantName == "" {
		if p, err := s.repo.GetPlant(ctx, t.PlantID); err == nil {
			plantName = p.Name
		}
	}
	err := s.alarms.Schedule(t.ID, *t.AlarmAt, alarm.Payload{
		TaskID:      t.ID,
		PlantName:   plantName,
		Description: t.Description,
	})
	if errors.Is(err, alarm.ErrExactAlarmDenied) {
		if s.flags == nil || s.flags.Once(prefs.ExactAlarmPromptShown) {
			s.emit("prompt", map[string]string{"kind": "exact_alarm", "message": ExactAlarmPrompt})
		}
		return fmt.Errorf("%w: %v", apperr.ErrAlarmPermission, err)
	}
	if err != nil {
		return fmt.Errorf("tasks: schedule alarm: %w", err)
	}
	return nil
}

// RollForward returns at if it is after now, otherwise the first instant
// after now with the same wall-clock time, stepping whole days.
func RollForward(at, now time.Time) time.Time {
	if at.After(now) {
		return at
	}
	days := int(now.Sub(at) / (24 * time.Hour))
	next := at.AddDate(0, 0, days)
	for !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
