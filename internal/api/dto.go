package api

import (
	"time"

	"github.com/starford/plantbutler/internal/notify"
	"github.com/starford/plantbutler/internal/weather"
)

// DiaryRequest is the body of PUT /diary/{day}.
type DiaryRequest struct {
	Text string `json:"text" example:"Repotted the basil."`
}

// DiaryResponse carries one day's diary.
type DiaryResponse struct {
	Day      string `json:"day" example:"2024-05-02"`
	Text     string `json:"text"`
	Checksum string `json:"checksum"`
}

// RefsRequest replaces or extends a day's photo list.
type RefsRequest struct {
	Refs []string `json:"refs" validate:"required"`
}

// RefsResponse lists a day's photos.
type RefsResponse struct {
	Day  string   `json:"day"`
	Refs []string `json:"refs"`
}

// MoveRequest reorders a list entry.
type MoveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// UploadResponse is returned for a stored photo blob.
type UploadResponse struct {
	Ref string `json:"ref" example:"photo:2b9f.png"`
	URL string `json:"url" example:"/api/photos/2b9f.png"`
}

// PlantRequest creates a plant.
type PlantRequest struct {
	Name     string `json:"name" example:"Basil"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

// PlantPatch edits a plant. Absent fields are left unchanged.
type PlantPatch struct {
	Name     *string `json:"name,omitempty" example:"Sweet basil"`
	PhotoRef *string `json:"photo_ref,omitempty"`
}

// TaskRequest creates a task.
type TaskRequest struct {
	Description string `json:"description" example:"Fertilize"`
}

// TaskPatch edits a task; nil fields are left unchanged.
type TaskPatch struct {
	Description *string `json:"description,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

// AlarmRequest arms a task's alarm.
type AlarmRequest struct {
	At time.Time `json:"at" example:"2024-05-02T09:00:00+09:00"`
}

// RoomRequest creates or renames a room.
type RoomRequest struct {
	Title string `json:"title"`
}

// MessageRequest posts a user message. Exactly one of Text and PhotoRef is set.
type MessageRequest struct {
	Text     string `json:"text,omitempty"`
	PhotoRef string `json:"photo_ref,omitempty"`
}

// WeatherResponse is the current weather with its care advice.
type WeatherResponse = weather.Summary

// NotificationsResponse lists recently delivered reminders, newest first.
type NotificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
	Channels      []notify.Channel      `json:"channels"`
}
