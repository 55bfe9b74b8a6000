// Package chat stores conversation rooms and relays user messages to the
// assistant backend.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/plantbutler/internal/apperr"
	"github.com/starford/plantbutler/internal/assistant"
	"github.com/starford/plantbutler/internal/models"
	"github.com/starford/plantbutler/internal/store"
)

const (
	// DefaultTitle names a room created without a title.
	DefaultTitle = "New chat"
	// PhotoTitle names a room opened by a photo.
	PhotoTitle = "Photo"

	titleRunes = 30
)

// EventCallback is called after a successful mutation.
type EventCallback func(kind string, data any)

// Queue accepts assistant jobs without blocking.
type Queue interface {
	Enqueue(job Job) error
}

// Service is the single writer of rooms and messages.
type Service struct {
	repo    store.ChatRepo
	queue   Queue
	onEvent EventCallback
	now     func() time.Time
	logger  *slog.Logger

	mu       sync.Mutex
	watchers map[int64]map[chan struct{}]struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithQueue sets where assistant jobs go. Without one, user messages are
// stored and never answered.
func WithQueue(q Queue) Option {
	return func(s *Service) { s.queue = q }
}

// WithEvents sets the mutation callback.
func WithEvents(cb EventCallback) Option {
	return func(s *Service) { s.onEvent = cb }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a chat service.
func NewService(repo store.ChatRepo, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		now:      time.Now,
		logger:   logger,
		watchers: make(map[int64]map[chan struct{}]struct{}),
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

// CreateRoom creates a room. A blank title becomes DefaultTitle.
func (s *Service) CreateRoom(ctx context.Context, title string) (*models.ChatRoom, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	room, err := s.repo.InsertRoom(ctx, title, s.now())
	if err != nil {
		return nil, err
	}
	s.emit("room.created", room)
	return room, nil
}

// RenameRoom changes a room's title.
func (s *Service) RenameRoom(ctx context.Context, id int64, title string) (*models.ChatRoom, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperr.ErrInvalidArgument)
	}
	if err := s.repo.RenameRoom(ctx, id, title); err != nil {
		return nil, err
	}
	room, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emit("room.updated", room)
	return room, nil
}

// DeleteRoom removes a room and all of its messages. Without confirmed it
// only checks the room exists and returns ErrConfirmationRequired.
func (s *Service) DeleteRoom(ctx context.Context, id int64, confirmed bool) error {
	if _, err := s.repo.GetRoom(ctx, id); err != nil {
		return err
	}
	if !confirmed {
		return apperr.ErrConfirmationRequired
	}
	if err := s.repo.DeleteRoom(ctx, id); err != nil {
		return err
	}
	s.notify(id)
	s.emit("room.deleted", map[string]int64{"id": id})
	return nil
}

// GetRoom returns one room.
func (s *Service) GetRoom(ctx context.Context, id int64) (*models.ChatRoom, error) {
	return s.repo.GetRoom(ctx, id)
}

// ListRooms returns rooms newest first.
func (s *Service) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []models.ChatRoom{}
	}
	return rooms, nil
}

// InsertMessage appends a message to its room.
func (s *Service) InsertMessage(ctx context.Context, m *models.Message) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return err
	}
	s.notify(m.RoomID)
	s.emit("message.created", m)
	return nil
}

// Messages returns a room's messages oldest first. A missing room has none.
func (s *Service) Messages(ctx context.Context, roomID int64) ([]models.Message, error) {
	msgs, err := s.repo.MessagesForRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// SendText stores a user text message and queues the assistant's answer.
// roomID 0 opens a new room titled after the text.
func (s *Service) SendText(ctx context.Context, roomID int64, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", apperr.ErrInvalidArgument)
	}
	roomID, err := s.ensureRoom(ctx, roomID, titleFrom(text))
	if err != nil {
		return nil, err
	}
	m := &models.Message{RoomID: roomID, Text: &text, Kind: models.KindUserText}
	if err := s.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	s.dispatch(ctx, Job{RoomID: roomID, Text: text})
	return m, nil
}

// SendImage stores a user photo message and queues its analysis.
func (s *Service) SendImage(ctx context.Context, roomID int64, photoRef string) (*models.Message, error) {
	photoRef = strings.TrimSpace(photoRef)
	if photoRef == "" {
		return nil, fmt.Errorf("%w: photo_ref is required", apperr.ErrInvalidArgument)
	}
	roomID, err := s.ensureRoom(ctx, roomID, PhotoTitle)
	if err != nil {
		return nil, err
	}
	m := &models.Message{RoomID: roomID, PhotoRef: &photoRef, Kind: models.KindUserImage}
	if err := s.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	s.dispatch(ctx, Job{RoomID: roomID, PhotoRef: photoRef})
	return m, nil
}

// AppendBotReply stores an assistant answer.
func (s *Service) AppendBotReply(ctx context.Context, roomID int64, text string) error {
	return s.InsertMessage(ctx, &models.Message{RoomID: roomID, Text: &text, Kind: models.KindBotText})
}

// Typing signals that an answer for roomID is being prepared.
func (s *Service) Typing(roomID int64, on bool) {
	s.emit("chat.typing", map[string]any{"room_id": roomID, "typing": on})
}

func (s *Service) ensureRoom(ctx context.Context, roomID int64, title string) (int64, error) {
	if roomID != 0 {
		if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
			return 0, err
		}
		return roomID, nil
	}
	room, err := s.CreateRoom(ctx, title)
	if err != nil {
		return 0, err
	}
	return room.ID, nil
}

// dispatch queues a job. A full queue answers with the fallback right away.
func (s *Service) dispatch(ctx context.Context, job Job) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("chat: enqueue failed", slog.Int64("room_id", job.RoomID), slog.String("error", err.Error()))
		reply := assistant.FallbackText
		if job.PhotoRef != "" {
			reply = assistant.FallbackImage
		}
		if err := s.AppendBotReply(context.WithoutCancel(ctx), job.RoomID, reply); err != nil {
			s.logger.Error("chat: append fallback", slog.String("error", err.Error()))
		}
		return
	}
	s.Typing(job.RoomID, true)
}

func titleFrom(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) > titleRunes {
		r = r[:titleRunes]
	}
	return string(r)
}

// Watch returns a live view of a room. It emits the current messages, then
// a fresh snapshot after every insert or delete touching the room, until
// ctx is done. Each call starts an independent sequence.
func (s *Service) Watch(ctx context.Context, roomID int64) <-chan []models.Message {
	out := make(chan []models.Message)
	signal := make(chan struct{}, 1)
	signal <- struct{}{}

	s.mu.Lock()
	if s.watchers[roomID] == nil {
		s.watchers[roomID] = make(map[chan struct{}]struct{})
	}
	s.watchers[roomID][signal] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer s.unwatch(roomID, signal)
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
			}
			msgs, err := s.Messages(ctx, roomID)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				s.logger.Warn("chat: watch snapshot", slog.Int64("room_id", roomID), slog.String("error", err.Error()))
				continue
			}
			select {
			case out <- msgs:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *Service) unwatch(roomID int64, signal chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers[roomID], signal)
	if len(s.watchers[roomID]) == 0 {
		delete(s.watchers, roomID)
	}
}

func (s *Service) notify(roomID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers[roomID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
