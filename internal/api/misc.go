package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/plantbutler/internal/weather"
)

const weatherFailed = "Failed to fetch weather information."

// Weather handles GET /weather?lat=&lon=. Without coordinates the configured
// home location is used.
//
//	@Summary		Current weather with plant care advice
//	@Tags			weather
//	@Produce		json
//	@Param			lat	query		number	false	"Latitude"
//	@Param			lon	query		number	false	"Longitude"
//	@Success		200	{object}	WeatherResponse
//	@Failure		400	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/weather [get]
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var lat, lon float64
	switch {
	case q.Get("lat") != "" || q.Get("lon") != "":
		var err1, err2 error
		lat, err1 = strconv.ParseFloat(q.Get("lat"), 64)
		lon, err2 = strconv.ParseFloat(q.Get("lon"), 64)
		if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			writeJSON(w, http.StatusBadRequest, errorBody("lat and lon must be valid coordinates"))
			return
		}
	case h.deps.DefaultLocation != nil:
		lat, lon = h.deps.DefaultLocation.Lat, h.deps.DefaultLocation.Lon
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("lat and lon are required"))
		return
	}
	if h.deps.Weather == nil {
		writeJSON(w, http.StatusBadGateway, errorBody(weatherFailed))
		return
	}
	report, err := h.deps.Weather.Current(r.Context(), lat, lon)
	if err != nil {
		h.deps.Logger.Warn("weather fetch failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(weatherFailed))
		return
	}
	writeJSON(w, http.StatusOK, weather.Summarize(report))
}

// Notifications handles GET /notifications?limit=.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	resp := NotificationsResponse{}
	if h.deps.Notifications != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 20
		}
		resp.Notifications = h.deps.Notifications.Recent(limit)
		resp.Channels = h.deps.Notifications.Channels()
	}
	writeJSON(w, http.StatusOK, resp)
}
