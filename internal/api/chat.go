package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/plantbutler/internal/sse"
)

// ListRooms handles GET /rooms.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.deps.Chat.ListRooms(r.Context())
	if err != nil {
		writeError(w, "list rooms", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// CreateRoom handles POST /rooms. A blank title gets the default.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req RoomRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	room, err := h.deps.Chat.CreateRoom(r.Context(), req.Title)
	if err != nil {
		writeError(w, "create room", err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// RenameRoom handles PATCH /rooms/{id}.
func (h *Handler) RenameRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req RoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	room, err := h.deps.Chat.RenameRoom(r.Context(), id, req.Title)
	if err != nil {
		writeError(w, "rename room", err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DeleteRoom handles DELETE /rooms/{id}?confirm=true. Without confirm the
// room is left alone and 428 is returned.
//
//	@Summary		Delete a room and its messages
//	@Tags			chat
//	@Param			confirm	query	bool	true	"Must be true"
//	@Success		204		"Room deleted"
//	@Failure		404		{object}	errResponse
//	@Failure		428		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rooms/{id} [delete]
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	confirmed := strings.EqualFold(r.URL.Query().Get("confirm"), "true")
	if err := h.deps.Chat.DeleteRoom(r.Context(), id, confirmed); err != nil {
		writeError(w, "delete room", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Messages handles GET /rooms/{id}/messages.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.deps.Chat.GetRoom(r.Context(), id); err != nil {
		writeError(w, "get room", err)
		return
	}
	msgs, err := h.deps.Chat.Messages(r.Context(), id)
	if err != nil {
		writeError(w, "list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// PostMessage handles POST /rooms/{id}/messages. Room id 0 opens a new room;
// the answer arrives later as a bot message.
//
//	@Summary		Send a text or photo to the assistant
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MessageRequest	true	"Text or photo_ref"
//	@Success		202		{object}	models.Message
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rooms/{id}/messages [post]
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req MessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	hasText := strings.TrimSpace(req.Text) != ""
	hasPhoto := strings.TrimSpace(req.PhotoRef) != ""
	if hasText == hasPhoto {
		writeJSON(w, http.StatusBadRequest, errorBody("exactly one of text and photo_ref is required"))
		return
	}
	send := h.deps.Chat.SendText
	arg := req.Text
	if hasPhoto {
		send = h.deps.Chat.SendImage
		arg = req.PhotoRef
	}
	msg, err := send(r.Context(), id, arg)
	if err != nil {
		writeError(w, "send message", err)
		return
	}
	writeJSON(w, http.StatusAccepted, msg)
}

// StreamRoom handles GET /rooms/{id}/stream. Each event carries the full
// message list of the room.
func (h *Handler) StreamRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.deps.Chat.GetRoom(r.Context(), id); err != nil {
		writeError(w, "get room", err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sse.WriteHeaders(w)
	flusher.Flush()

	for msgs := range h.deps.Chat.Watch(r.Context(), id) {
		data, err := sse.Event{Type: "messages", Data: msgs}.Format()
		if err != nil {
			h.deps.Logger.Error("stream: encode snapshot", slog.Int64("room_id", id), slog.String("error", err.Error()))
			continue
		}
		if _, err := w.Write(data); err != nil {
			return
		}
		flusher.Flush()
	}
}
