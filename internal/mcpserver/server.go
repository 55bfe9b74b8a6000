// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes plantbutler tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/plantbutler/internal/apperr"
	"github.com/starford/plantbutler/internal/assistant"
	"github.com/starford/plantbutler/internal/calendar"
	"github.com/starford/plantbutler/internal/chat"
	"github.com/starford/plantbutler/internal/daykey"
	"github.com/starford/plantbutler/internal/storage"
	"github.com/starford/plantbutler/internal/tasks"
	"github.com/starford/plantbutler/internal/weather"
)

// CareGuideURI is the resource holding the disease care guide.
const CareGuideURI = "plantbutler://care-guide"

// WeatherSource fetches current conditions.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Report, error)
}

// Deps are the services the tools operate on.
type Deps struct {
	Tasks    *tasks.Service
	Calendar *calendar.Service
	Chat     *chat.Service
	Photos   storage.Provider
	Weather  WeatherSource
	// HomeLat and HomeLon are used by weather_advice when no coordinates
	// are passed. HasHome reports whether they are set.
	HomeLat, HomeLon float64
	HasHome          bool
}

// Server wraps the MCP server with plantbutler tools.
type Server struct {
	mcp  *server.MCPServer
	deps Deps
	// fetch downloads remote photos; replaced in tests.
	fetch func(ctx context.Context, rawURL string) ([]byte, string, error)
}

// New creates a new MCP server with all plantbutler tools registered.
func New(deps Deps, version string) *Server {
	s := &Server{deps: deps, fetch: fetchHTTP}

	s.mcp = server.NewMCPServer(
		"plantbutler",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_plants",
		mcp.WithDescription("List every plant with its ordered care tasks, activity flags and alarm times."),
	), s.listPlants)

	s.mcp.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Append a care task to a plant. New tasks are inactive and have no alarm."),
		mcp.WithNumber("plant_id", mcp.Required(), mcp.Description("Plant id from list_plants")),
		mcp.WithString("description", mcp.Required(), mcp.Description("What to do, e.g. Fertilize")),
	), s.addTask)

	s.mcp.AddTool(mcp.NewTool("set_alarm",
		mcp.WithDescription("Arm a one-shot reminder for a task. Past times roll forward to the same clock time. "+
			"See the "+FormatsURI+" resource for formats."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id from list_plants")),
		mcp.WithString("at", mcp.Required(), mcp.Description("RFC 3339 time")),
	), s.setAlarm)

	s.mcp.AddTool(mcp.NewTool("cancel_alarm",
		mcp.WithDescription("Deactivate a task and revoke its reminder."),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task id from list_plants")),
	), s.cancelAlarm)

	s.mcp.AddTool(mcp.NewTool("read_diary",
		mcp.WithDescription("Read the diary note of a day."),
		mcp.WithString("day", mcp.Required(), mcp.Description("Local date YYYY-MM-DD")),
	), s.readDiary)

	s.mcp.AddTool(mcp.NewTool("write_diary",
		mcp.WithDescription("Overwrite the diary note of a day."),
		mcp.WithString("day", mcp.Required(), mcp.Description("Local date YYYY-MM-DD")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Full note text")),
	), s.writeDiary)

	s.mcp.AddTool(mcp.NewTool("month_memos",
		mcp.WithDescription("List the non-blank diary notes of a month, oldest first."),
		mcp.WithNumber("year", mcp.Required()),
		mcp.WithNumber("month", mcp.Required(), mcp.Description("1-12")),
	), s.monthMemos)

	s.mcp.AddTool(mcp.NewTool("list_rooms",
		mcp.WithDescription("List assistant chat rooms, newest first."),
	), s.listRooms)

	s.mcp.AddTool(mcp.NewTool("read_room",
		mcp.WithDescription("Read every message of a chat room."),
		mcp.WithNumber("room_id", mcp.Required()),
	), s.readRoom)

	s.mcp.AddTool(mcp.NewTool("weather_advice",
		mcp.WithDescription("Current weather with a plant care suggestion. Uses the home location when no coordinates are given."),
		mcp.WithNumber("lat", mcp.Description("Latitude")),
		mcp.WithNumber("lon", mcp.Description("Longitude")),
	), s.weatherAdvice)

	s.mcp.AddTool(mcp.NewTool("upload_photo",
		mcp.WithDescription("Store an image from a data URI or http(s) URL and optionally attach it to a day."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/...;base64,... or http(s) URL")),
		mcp.WithString("day", mcp.Description("Optional local date YYYY-MM-DD to attach the photo to")),
	), s.uploadPhoto)

	s.mcp.AddResource(
		mcp.NewResource(CareGuideURI, "Plant Care Guide",
			mcp.WithResourceDescription("Known plant diseases with descriptions and treatments."),
			mcp.WithMIMEType("application/json"),
		),
		s.readCareGuide,
	)
	s.mcp.AddResource(
		mcp.NewResource(FormatsURI, "Value Formats",
			mcp.WithResourceDescription("How days, photo references and alarm times are written."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormats,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) (*mcp.CallToolResult, error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found"), nil
	case errors.Is(err, apperr.ErrAlarmPermission):
		return mcp.NewToolResultError(tasks.ExactAlarmPrompt), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) day(req mcp.CallToolRequest) (daykey.DayKey, error) {
	raw, err := req.RequireString("day")
	if err != nil {
		return 0, err
	}
	return daykey.Parse(raw, s.deps.Calendar.Location())
}

func (s *Server) listPlants(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plants, err := s.deps.Tasks.ListPlants(ctx)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(plants)
}

func (s *Server) addTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plantID, err := req.RequireInt("plant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desc, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.deps.Tasks.GetPlant(ctx, int64(plantID)); err != nil {
		return errorResult(err)
	}
	t, err := s.deps.Tasks.AddTask(ctx, int64(plantID), desc)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(t)
}

func (s *Server) setAlarm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("at")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("at must be RFC 3339: %v", err)), nil
	}
	t, err := s.deps.Tasks.SetAlarm(ctx, id, at)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(t)
}

func (s *Server) cancelAlarm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t, err := s.deps.Tasks.CancelAlarm(ctx, id)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(t)
}

func (s *Server) readDiary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	day, err := s.day(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.deps.Calendar.HasDiary(ctx, day) {
		return mcp.NewToolResultText(fmt.Sprintf("no diary for %s", day.Format(s.deps.Calendar.Location()))), nil
	}
	return mcp.NewToolResultText(s.deps.Calendar.LoadDiaryText(ctx, day)), nil
}

func (s *Server) writeDiary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	day, err := s.day(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.deps.Calendar.SaveDiaryText(ctx, day, text); err != nil {
		return errorResult(err)
	}
	return mcp.NewToolResultText("saved: " + day.Format(s.deps.Calendar.Location())), nil
}

func (s *Server) monthMemos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, err := req.RequireInt("year")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	month, err := req.RequireInt("month")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if month < 1 || month > 12 {
		return mcp.NewToolResultError("month must be 1-12"), nil
	}
	memos := s.deps.Calendar.MonthMemos(ctx, year, time.Month(month))
	if len(memos) == 0 {
		return mcp.NewToolResultText("no memos"), nil
	}
	var b strings.Builder
	for _, m := range memos {
		fmt.Fprintf(&b, "%s: %s\n", m.Date, m.Text)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (s *Server) listRooms(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rooms, err := s.deps.Chat.ListRooms(ctx)
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(rooms)
}

func (s *Server) readRoom(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("room_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.deps.Chat.GetRoom(ctx, int64(id)); err != nil {
		return errorResult(err)
	}
	msgs, err := s.deps.Chat.Messages(ctx, int64(id))
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(msgs)
}

func (s *Server) weatherAdvice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	_, hasLat := args["lat"]
	_, hasLon := args["lon"]
	var lat, lon float64
	switch {
	case hasLat && hasLon:
		lat, lon = req.GetFloat("lat", 0), req.GetFloat("lon", 0)
	case s.deps.HasHome:
		lat, lon = s.deps.HomeLat, s.deps.HomeLon
	default:
		return mcp.NewToolResultError("lat and lon are required"), nil
	}
	if s.deps.Weather == nil {
		return mcp.NewToolResultError("weather is not configured"), nil
	}
	report, err := s.deps.Weather.Current(ctx, lat, lon)
	if err != nil {
		return mcp.NewToolResultError("Failed to fetch weather information."), nil
	}
	return jsonResult(weather.Summarize(report))
}

func (s *Server) readCareGuide(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      CareGuideURI,
			MIMEType: "application/json",
			Text:     string(assistant.JSON()),
		},
	}, nil
}

func (s *Server) readFormats(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatsURI,
			MIMEType: "text/markdown",
			Text:     Formats,
		},
	}, nil
}
