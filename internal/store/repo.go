package store

import (
	"context"
	"time"

	"github.com/starford/plantbutler/internal/daykey"
	"github.com/starford/plantbutler/internal/models"
)

// CalendarRepo persists diary notes and per-day photo lists.
type CalendarRepo interface {
	UpsertDiary(ctx context.Context, day daykey.DayKey, text string) error
	GetDiary(ctx context.Context, day daykey.DayKey) (string, bool, error)
	DeleteDiary(ctx context.Context, day daykey.DayKey) error
	AllDiary(ctx context.Context) (map[daykey.DayKey]string, error)
	PutPhotoRefs(ctx context.Context, day daykey.DayKey, refs []string) error
	GetPhotoRefs(ctx context.Context, day daykey.DayKey) ([]string, error)
	AllPhotoRefs(ctx context.Context) (map[daykey.DayKey][]string, error)
}

// PlantRepo persists plants and their ordered tasks.
type PlantRepo interface {
	InsertPlant(ctx context.Context, p *models.Plant) error
	UpdatePlant(ctx context.Context, id int64, name, photoRef string) error
	DeletePlant(ctx context.Context, id int64) error
	GetPlant(ctx context.Context, id int64) (*models.Plant, error)
	ListPlants(ctx context.Context) ([]models.Plant, error)
	InsertTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, t models.Task) error
	DeleteTask(ctx context.Context, id string) error
	MoveTask(ctx context.Context, plantID int64, from, to int) error
	AlarmCandidates(ctx context.Context) ([]models.ArmedTask, error)
}

// ChatRepo persists chat rooms and their messages.
type ChatRepo interface {
	InsertRoom(ctx context.Context, title string, createdAt time.Time) (*models.ChatRoom, error)
	RenameRoom(ctx context.Context, id int64, title string) error
	DeleteRoom(ctx context.Context, id int64) error
	GetRoom(ctx context.Context, id int64) (*models.ChatRoom, error)
	ListRooms(ctx context.Context) ([]models.ChatRoom, error)
	InsertMessage(ctx context.Context, m *models.Message) error
	MessagesForRoom(ctx context.Context, roomID int64) ([]models.Message, error)
}

// Verify *DB satisfies the repositories at compile time.
var (
	_ CalendarRepo = (*DB)(nil)
	_ PlantRepo    = (*DB)(nil)
	_ ChatRepo     = (*DB)(nil)
)
