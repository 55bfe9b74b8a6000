package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MessageKind discriminates chat messages.
type MessageKind string

const (
	KindUserText  MessageKind = "user_text"
	KindBotText   MessageKind = "bot_text"
	KindUserImage MessageKind = "user_image"
)

// ChatRoom is a conversation with the assistant.
type ChatRoom struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is an append-only entry of a room.
type Message struct {
	ID        int64       `json:"id"`
	RoomID    int64       `json:"room_id"`
	Text      *string     `json:"text,omitempty"`
	PhotoRef  *string     `json:"photo_ref,omitempty"`
	Kind      MessageKind `json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
}

// Validate enforces that text kinds carry text and image kinds carry a photo.
func (m Message) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.RoomID, validation.Required),
		validation.Field(&m.Kind, validation.Required, validation.In(KindUserText, KindBotText, KindUserImage)),
		validation.Field(&m.Text, validation.When(m.Kind != KindUserImage, validation.Required)),
		validation.Field(&m.PhotoRef, validation.When(m.Kind == KindUserImage, validation.Required)),
	)
}
