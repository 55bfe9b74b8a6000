package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/plantbutler/internal/checksum"
	"github.com/starford/plantbutler/internal/daykey"
	"github.com/starford/plantbutler/internal/export"
)

// yearMonth parses the {year}/{month} URL params.
func yearMonth(r *http.Request) (int, time.Month, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		return 0, 0, fmt.Errorf("invalid year")
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month")
	}
	return year, time.Month(month), nil
}

// dayParam parses the {day} URL param as a local date.
func (h *Handler) dayParam(w http.ResponseWriter, r *http.Request) (daykey.DayKey, bool) {
	day, err := daykey.Parse(chi.URLParam(r, "day"), h.deps.Calendar.Location())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("day must be YYYY-MM-DD"))
		return 0, false
	}
	return day, true
}

// Month handles GET /calendar/{year}/{month}.
//
//	@Summary		Month grid with diary and photo markers
//	@Tags			calendar
//	@Produce		json
//	@Success		200	{object}	models.MonthView
//	@Security		BearerAuth
//	@Router			/calendar/{year}/{month} [get]
func (h *Handler) Month(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Calendar.Month(r.Context(), year, month))
}

// Memos handles GET /calendar/{year}/{month}/memos.
func (h *Handler) Memos(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"memos": h.deps.Calendar.MonthMemos(r.Context(), year, month),
	})
}

// Export handles GET /calendar/{year}/{month}/export. The workbook is built
// in memory so a failure can still be reported as JSON.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var buf bytes.Buffer
	if err := export.MonthWorkbook(r.Context(), &buf, h.deps.Calendar, year, month); err != nil {
		writeError(w, "export month", err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(year, month)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// GetDiary handles GET /diary/{day}. A missing diary is an empty text.
func (h *Handler) GetDiary(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	text := h.deps.Calendar.LoadDiaryText(r.Context(), day)
	writeDiary(w, day.Format(h.deps.Calendar.Location()), text)
}

func writeDiary(w http.ResponseWriter, day, text string) {
	sum := checksum.Text(text)
	w.Header().Set("ETag", checksum.ETag(sum))
	writeJSON(w, http.StatusOK, DiaryResponse{Day: day, Text: text, Checksum: sum})
}

// PutDiary handles PUT /diary/{day}. An If-Match header naming a stale
// checksum is rejected with 409.
//
//	@Summary		Save a day's diary text
//	@Tags			calendar
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DiaryRequest	true	"Diary text"
//	@Success		200		{object}	DiaryResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/diary/{day} [put]
func (h *Handler) PutDiary(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	var req DiaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.deps.Calendar.SaveDiaryTextIf(r.Context(), day, req.Text, r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, "save diary", err)
		return
	}
	writeDiary(w, day.Format(h.deps.Calendar.Location()), req.Text)
}

// DeleteDiary handles DELETE /diary/{day}. The day then has no note at all,
// which is different from a blank one.
func (h *Handler) DeleteDiary(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	if err := h.deps.Calendar.ClearDiary(r.Context(), day); err != nil {
		writeError(w, "delete diary", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DayPhotos handles GET /days/{day}/photos.
func (h *Handler) DayPhotos(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	h.writeRefs(w, r, day)
}

// ReplaceDayPhotos handles PUT /days/{day}/photos. An empty list clears the day.
func (h *Handler) ReplaceDayPhotos(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	var req RefsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.deps.Calendar.SavePhotoRefs(r.Context(), day, req.Refs); err != nil {
		writeError(w, "save photos", err)
		return
	}
	h.writeRefs(w, r, day)
}

// AddDayPhotos handles POST /days/{day}/photos. References that cannot be
// read are reported in dropped.
func (h *Handler) AddDayPhotos(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	var req RefsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Refs) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("refs is required"))
		return
	}
	res, err := h.deps.Calendar.AddPhotos(r.Context(), day, req.Refs)
	if err != nil {
		writeError(w, "add photos", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RemoveDayPhoto handles DELETE /days/{day}/photos?ref=.
func (h *Handler) RemoveDayPhoto(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'ref' is required"))
		return
	}
	if err := h.deps.Calendar.RemovePhoto(r.Context(), day, ref); err != nil {
		writeError(w, "remove photo", err)
		return
	}
	h.writeRefs(w, r, day)
}

// MoveDayPhoto handles POST /days/{day}/photos/move.
func (h *Handler) MoveDayPhoto(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dayParam(w, r)
	if !ok {
		return
	}
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.deps.Calendar.MovePhoto(r.Context(), day, req.From, req.To); err != nil {
		writeError(w, "move photo", err)
		return
	}
	h.writeRefs(w, r, day)
}

// AllPhotos handles GET /photos: every day with photos, keyed by date.
func (h *Handler) AllPhotos(w http.ResponseWriter, r *http.Request) {
	loc := h.deps.Calendar.Location()
	all := h.deps.Calendar.LoadAllPhotoRefs(r.Context())
	out := make(map[string][]string, len(all))
	for day, refs := range all {
		out[day.Format(loc)] = refs
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": out})
}

func (h *Handler) writeRefs(w http.ResponseWriter, r *http.Request, day daykey.DayKey) {
	writeJSON(w, http.StatusOK, RefsResponse{
		Day:  day.Format(h.deps.Calendar.Location()),
		Refs: h.deps.Calendar.LoadPhotoRefs(r.Context(), day),
	})
}
