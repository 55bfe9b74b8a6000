package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/plantbutler/internal/storage"
)

// multipart overhead allowed on top of the image cap
const uploadSlack = 1 << 20

// UploadPhoto handles POST /photos (multipart/form-data, field "file").
//
//	@Summary		Store a photo blob
//	@Tags			photos
//	@Accept			multipart/form-data
//	@Produce		json
//	@Success		201	{object}	UploadResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos [post]
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageBytes+uploadSlack)

	if err := r.ParseMultipartForm(storage.MaxImageBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxImageBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	name, err := h.deps.Photos.Put(data)
	if errors.Is(err, storage.ErrNotImage) {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err != nil {
		writeError(w, "store photo", err)
		return
	}
	h.deps.Logger.Info("photo stored", slog.String("name", name), slog.Int("size", len(data)))

	writeJSON(w, http.StatusCreated, UploadResponse{
		Ref: storage.Ref(name),
		URL: "/api/photos/" + name,
	})
}

// ServePhoto handles GET /photos/{name}.
func (h *Handler) ServePhoto(w http.ResponseWriter, r *http.Request) {
	abs, err := h.deps.Photos.Path(chi.URLParam(r, "name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, abs)
}
