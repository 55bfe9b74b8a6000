package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/plantbutler/internal/calendar"
	"github.com/starford/plantbutler/internal/chat"
	"github.com/starford/plantbutler/internal/notify"
	"github.com/starford/plantbutler/internal/storage"
	"github.com/starford/plantbutler/internal/tasks"
	"github.com/starford/plantbutler/internal/weather"
)

// WeatherSource fetches current conditions.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Report, error)
}

// NotificationSource exposes delivered reminders.
type NotificationSource interface {
	Recent(n int) []notify.Notification
	Channels() []notify.Channel
}

// Coordinates is a fallback location for weather requests.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Deps are the services behind the API.
type Deps struct {
	Tasks         *tasks.Service
	Calendar      *calendar.Service
	Chat          *chat.Service
	Photos        storage.Provider
	Weather       WeatherSource
	Notifications NotificationSource
	// DefaultLocation is used when a weather request has no lat/lon.
	DefaultLocation *Coordinates
	Logger          *slog.Logger
}

// Handler holds API route handlers.
type Handler struct {
	deps Deps
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Handler{deps: deps}
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(deps Deps, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(deps)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Calendar.
	r.Route("/calendar/{year}/{month}", func(r chi.Router) {
		r.Get("/", h.Month)
		r.Get("/memos", h.Memos)
		r.Get("/export", h.Export)
	})
	r.Get("/diary/{day}", h.GetDiary)
	r.Put("/diary/{day}", h.PutDiary)
	r.Delete("/diary/{day}", h.DeleteDiary)
	r.Route("/days/{day}/photos", func(r chi.Router) {
		r.Get("/", h.DayPhotos)
		r.Put("/", h.ReplaceDayPhotos)
		r.Post("/", h.AddDayPhotos)
		r.Delete("/", h.RemoveDayPhoto)
		r.Post("/move", h.MoveDayPhoto)
	})

	// Photo blobs.
	r.Get("/photos", h.AllPhotos)
	r.Post("/photos", h.UploadPhoto)
	r.Get("/photos/{name}", h.ServePhoto)

	// Plants, tasks and alarms.
	r.Get("/plants", h.ListPlants)
	r.Post("/plants", h.CreatePlant)
	r.Get("/plants/{id}", h.GetPlant)
	r.Patch("/plants/{id}", h.UpdatePlant)
	r.Delete("/plants/{id}", h.DeletePlant)
	r.Post("/plants/{id}/tasks", h.CreateTask)
	r.Post("/plants/{id}/tasks/move", h.MoveTask)
	r.Patch("/tasks/{id}", h.UpdateTask)
	r.Delete("/tasks/{id}", h.DeleteTask)
	r.Put("/tasks/{id}/alarm", h.SetAlarm)
	r.Delete("/tasks/{id}/alarm", h.CancelAlarm)
	r.Get("/alarms", h.ListAlarms)

	// Chat.
	r.Get("/rooms", h.ListRooms)
	r.Post("/rooms", h.CreateRoom)
	r.Patch("/rooms/{id}", h.RenameRoom)
	r.Delete("/rooms/{id}", h.DeleteRoom)
	r.Get("/rooms/{id}/messages", h.Messages)
	r.Post("/rooms/{id}/messages", h.PostMessage)
	r.Get("/rooms/{id}/stream", h.StreamRoom)

	r.Get("/weather", h.Weather)
	r.Get("/notifications", h.Notifications)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
