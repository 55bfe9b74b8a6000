// Package weather fetches current conditions and turns them into a plant
// care suggestion.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/plantbutler/internal/apperr"
)

// DefaultBaseURL is the OpenWeatherMap API root.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/"

// NoData is shown when the report has no condition description.
const NoData = "No data"

const (
	adviceRain = "🌧️ It's raining. Bring outdoor plants inside for a while."
	adviceHeat = "🥵 It's very hot. Keep plants out of direct sun so the leaves don't burn."
	adviceCold = "🥶 It's cold! Move plants indoors to protect them from frost damage."
	adviceFair = "☀️ The weather is clear and your plants will love it!"
)

// Condition is one entry of the report's weather list.
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Report is the subset of the current-weather response we use.
type Report struct {
	Weather []Condition `json:"weather"`
	Main    struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Name string `json:"name"`
}

// Summary is the home screen weather card.
type Summary struct {
	Temp        int    `json:"temp"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Advice      string `json:"advice"`
}

// Advice picks a suggestion from the first condition id and temperature.
// Precipitation wins over temperature; a report without conditions counts
// as id 0.
func Advice(r *Report) string {
	id := 0
	if len(r.Weather) > 0 {
		id = r.Weather[0].ID
	}
	switch {
	case id >= 200 && id <= 599:
		return adviceRain
	case r.Main.Temp > 30:
		return adviceHeat
	case r.Main.Temp < 5:
		return adviceCold
	default:
		return adviceFair
	}
}

// Summarize builds the weather card for r.
func Summarize(r *Report) Summary {
	desc := NoData
	if len(r.Weather) > 0 && strings.TrimSpace(r.Weather[0].Description) != "" {
		desc = r.Weather[0].Description
	}
	return Summary{
		Temp:        int(r.Main.Temp),
		Description: desc,
		Location:    r.Name,
		Advice:      Advice(r),
	}
}

// Client calls the current-weather endpoint.
type Client struct {
	base   string
	apiKey string
	lang   string
	http   *http.Client
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, apiKey, lang string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if lang == "" {
		lang = "en"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{base: baseURL, apiKey: apiKey, lang: lang, http: &http.Client{Timeout: timeout}}
}

// Current returns the weather at a coordinate.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*Report, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: weather api key is not configured", apperr.ErrInvalidArgument)
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("lang", c.lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"weather?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: fetch: HTTP %d", resp.StatusCode)
	}
	var r Report
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&r); err != nil {
		return nil, fmt.Errorf("weather: decode: %w", err)
	}
	return &r, nil
}
