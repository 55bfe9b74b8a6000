package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/plantbutler/internal/tasks"
)

func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid "+name))
		return 0, false
	}
	return id, true
}

// ListPlants handles GET /plants.
func (h *Handler) ListPlants(w http.ResponseWriter, r *http.Request) {
	plants, err := h.deps.Tasks.ListPlants(r.Context())
	if err != nil {
		writeError(w, "list plants", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plants": plants})
}

// CreatePlant handles POST /plants. New plants come with the default tasks.
//
//	@Summary		Create a plant
//	@Tags			plants
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PlantRequest	true	"Plant"
//	@Success		201		{object}	models.Plant
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plants [post]
func (h *Handler) CreatePlant(w http.ResponseWriter, r *http.Request) {
	var req PlantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.deps.Tasks.AddPlant(r.Context(), req.Name, req.PhotoRef)
	if err != nil {
		writeError(w, "create plant", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetPlant handles GET /plants/{id}.
func (h *Handler) GetPlant(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	p, err := h.deps.Tasks.GetPlant(r.Context(), id)
	if err != nil {
		writeError(w, "get plant", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePlant handles PATCH /plants/{id}.
func (h *Handler) UpdatePlant(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req PlantPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.deps.Tasks.UpdatePlant(r.Context(), id, tasks.PlantUpdate{Name: req.Name, PhotoRef: req.PhotoRef})
	if err != nil {
		writeError(w, "update plant", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePlant handles DELETE /plants/{id}.
func (h *Handler) DeletePlant(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.deps.Tasks.DeletePlant(r.Context(), id); err != nil {
		writeError(w, "delete plant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateTask handles POST /plants/{id}/tasks.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req TaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.deps.Tasks.GetPlant(r.Context(), id); err != nil {
		writeError(w, "create task", err)
		return
	}
	t, err := h.deps.Tasks.AddTask(r.Context(), id, req.Description)
	if err != nil {
		writeError(w, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// MoveTask handles POST /plants/{id}/tasks/move.
func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.deps.Tasks.MoveTask(r.Context(), id, req.From, req.To)
	if err != nil {
		writeError(w, "move task", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateTask handles PATCH /tasks/{id}.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req TaskPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Description == nil && req.Active == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("description or active is required"))
		return
	}
	ctx := r.Context()
	if req.Description != nil {
		if _, err := h.deps.Tasks.Rename(ctx, id, *req.Description); err != nil {
			writeError(w, "rename task", err)
			return
		}
	}
	if req.Active != nil {
		if _, err := h.deps.Tasks.SetActive(ctx, id, *req.Active); err != nil {
			writeError(w, "toggle task", err)
			return
		}
	}
	h.writeTask(w, r, id)
}

// DeleteTask handles DELETE /tasks/{id}.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Tasks.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAlarm handles PUT /tasks/{id}/alarm. The response carries the effective
// fire time, which is rolled forward when the requested time has passed.
//
//	@Summary		Arm a task alarm
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AlarmRequest	true	"Alarm time"
//	@Success		200		{object}	models.Task
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id}/alarm [put]
func (h *Handler) SetAlarm(w http.ResponseWriter, r *http.Request) {
	var req AlarmRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.At.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorBody("at is required (RFC 3339)"))
		return
	}
	t, err := h.deps.Tasks.SetAlarm(r.Context(), chi.URLParam(r, "id"), req.At)
	if err != nil {
		writeError(w, "set alarm", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// CancelAlarm handles DELETE /tasks/{id}/alarm.
func (h *Handler) CancelAlarm(w http.ResponseWriter, r *http.Request) {
	t, err := h.deps.Tasks.CancelAlarm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "cancel alarm", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListAlarms handles GET /alarms.
func (h *Handler) ListAlarms(w http.ResponseWriter, r *http.Request) {
	armed, err := h.deps.Tasks.Armed(r.Context())
	if err != nil {
		writeError(w, "list alarms", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alarms": armed})
}

func (h *Handler) writeTask(w http.ResponseWriter, r *http.Request, id string) {
	t, err := h.deps.Tasks.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, "get task", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
