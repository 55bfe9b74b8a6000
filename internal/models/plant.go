// Package models defines the domain types for plantbutler.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Plant owns an ordered list of care tasks.
type Plant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	PhotoRef  string    `json:"photo_ref,omitempty"`
	Tasks     []Task    `json:"tasks"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the user-editable fields of a plant.
func (p Plant) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 100)),
	)
}

// Task is one care item of a plant. ID is generated once at creation and
// doubles as the alarm registration key, so list position never affects it.
type Task struct {
	ID          string     `json:"id"`
	PlantID     int64      `json:"plant_id"`
	Description string     `json:"description"`
	Active      bool       `json:"active"`
	AlarmAt     *time.Time `json:"alarm_at,omitempty"`
	Position    int        `json:"position"`
}

// Validate checks the user-editable fields of a task.
func (t Task) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Description, validation.Required, validation.Length(1, 200)),
	)
}

// Armed reports whether the task should hold an alarm registration at now.
func (t Task) Armed(now time.Time) bool {
	return t.Active && t.AlarmAt != nil && t.AlarmAt.After(now)
}

// ArmedTask pairs an armed task with its plant name for listings.
type ArmedTask struct {
	Task      Task   `json:"task"`
	PlantName string `json:"plant_name"`
}
