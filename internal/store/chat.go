package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/plantbutler/internal/apperr"
	"github.com/starford/plantbutler/internal/models"
)

// InsertRoom creates a chat room.
func (db *DB) InsertRoom(ctx context.Context, title string, createdAt time.Time) (*models.ChatRoom, error) {
	res, err := db.conn.ExecContext(ctx, `INSERT INTO chat_rooms (title, created_at) VALUES (?, ?)`, title, toMillis(createdAt))
	if err != nil {
		return nil, fmt.Errorf("store: insert room: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("store: room id: %w", err)
	}
	return &models.ChatRoom{ID: id, Title: title, CreatedAt: fromMillis(toMillis(createdAt))}, nil
}

// RenameRoom changes a room's title.
func (db *DB) RenameRoom(ctx context.Context, id int64, title string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE chat_rooms SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("store: rename room: %w", err)
	}
	return mustAffect(res)
}

// DeleteRoom removes a room; its messages cascade.
func (db *DB) DeleteRoom(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM chat_rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete room: %w", err)
	}
	return mustAffect(res)
}

// GetRoom returns one room.
func (db *DB) GetRoom(ctx context.Context, id int64) (*models.ChatRoom, error) {
	var r models.ChatRoom
	var created int64
	err := db.conn.QueryRowContext(ctx, `SELECT id, title, created_at FROM chat_rooms WHERE id = ?`, id).
		Scan(&r.ID, &r.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get room: %w", err)
	}
	r.CreatedAt = fromMillis(created)
	return &r, nil
}

// ListRooms returns rooms newest first.
func (db *DB) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, title, created_at FROM chat_rooms ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []models.ChatRoom{}
	for rows.Next() {
		var r models.ChatRoom
		var created int64
		if err := rows.Scan(&r.ID, &r.Title, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = fromMillis(created)
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

// InsertMessage appends a message and sets m.ID.
func (db *DB) InsertMessage(ctx context.Context, m *models.Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO messages (room_id, text, photo_ref, kind, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.RoomID, m.Text, m.PhotoRef, string(m.Kind), toMillis(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: message id: %w", err)
	}
	m.ID = id
	return nil
}

// MessagesForRoom returns a room's messages oldest first.
func (db *DB) MessagesForRoom(ctx context.Context, roomID int64) ([]models.Message, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, room_id, text, photo_ref, kind, created_at
		FROM messages WHERE room_id = ? ORDER BY created_at ASC, id ASC`, roomID)
	if err != nil {
		return nil, fmt.Errorf("store: messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var m models.Message
		var text, ref sql.NullString
		var kind string
		var created int64
		if err := rows.Scan(&m.ID, &m.RoomID, &text, &ref, &kind, &created); err != nil {
			return nil, err
		}
		if text.Valid {
			m.Text = &text.String
		}
		if ref.Valid {
			m.PhotoRef = &ref.String
		}
		m.Kind = models.MessageKind(kind)
		m.CreatedAt = fromMillis(created)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
