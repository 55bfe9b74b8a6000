package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/plantbutler/internal/alarm"
	"github.com/starford/plantbutler/internal/calendar"
	"github.com/starford/plantbutler/internal/chat"
	"github.com/starford/plantbutler/internal/daykey"
	"github.com/starford/plantbutler/internal/models"
	"github.com/starford/plantbutler/internal/storage"
	"github.com/starford/plantbutler/internal/tasks"
	"github.com/starford/plantbutler/internal/testutil"
	"github.com/starford/plantbutler/internal/weather"
)

type fakeWeather struct {
	report *weather.Report
	err    error
}

func (f fakeWeather) Current(context.Context, float64, float64) (*weather.Report, error) {
	return f.report, f.err
}

func testServer(t *testing.T, exact bool) (*Server, Deps) {
	t.Helper()
	db := testutil.TestDB(t)
	_, photos := testutil.TestPhotos(t)
	flags := testutil.TestPrefs(t)
	timers := alarm.NewTimers(nil, exact, testutil.Discard())
	t.Cleanup(timers.Stop)

	deps := Deps{
		Tasks:    tasks.NewService(db, timers, flags, testutil.Discard()),
		Calendar: calendar.NewService(db, testutil.Discard(), calendar.WithLocation(time.UTC), calendar.WithFlags(flags)),
		Chat:     chat.NewService(db, testutil.Discard()),
		Photos:   photos,
	}
	return New(deps, "test"), deps
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_plants":    srv.listPlants,
		"add_task":       srv.addTask,
		"set_alarm":      srv.setAlarm,
		"cancel_alarm":   srv.cancelAlarm,
		"read_diary":     srv.readDiary,
		"write_diary":    srv.writeDiary,
		"month_memos":    srv.monthMemos,
		"list_rooms":     srv.listRooms,
		"read_room":      srv.readRoom,
		"weather_advice": srv.weatherAdvice,
		"upload_photo":   srv.uploadPhoto,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestDiaryTools(t *testing.T) {
	srv, _ := testServer(t, true)

	r := callTool(t, srv, "read_diary", map[string]any{"day": "2024-05-02"})
	if text := resultText(r); text != "no diary for 2024-05-02" {
		t.Errorf("empty read = %q", text)
	}

	r = callTool(t, srv, "write_diary", map[string]any{"day": "2024-05-02", "text": "new leaf"})
	if r.IsError {
		t.Fatalf("write failed: %s", resultText(r))
	}
	r = callTool(t, srv, "read_diary", map[string]any{"day": "2024-05-02"})
	if text := resultText(r); text != "new leaf" {
		t.Errorf("read = %q", text)
	}

	r = callTool(t, srv, "month_memos", map[string]any{"year": 2024, "month": 5})
	if text := resultText(r); text != "2024-05-02: new leaf" {
		t.Errorf("memos = %q", text)
	}

	r = callTool(t, srv, "read_diary", map[string]any{"day": "yesterday"})
	if !r.IsError {
		t.Error("expected error for malformed day")
	}
}

func TestTaskAndAlarmTools(t *testing.T) {
	srv, deps := testServer(t, true)
	p, err := deps.Tasks.AddPlant(context.Background(), "Basil", "")
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "add_task", map[string]any{"plant_id": float64(p.ID), "description": "Fertilize"})
	if r.IsError {
		t.Fatalf("add_task: %s", resultText(r))
	}
	var task models.Task
	if err := json.Unmarshal([]byte(resultText(r)), &task); err != nil {
		t.Fatal(err)
	}

	at := time.Now().Add(time.Hour).Format(time.RFC3339)
	r = callTool(t, srv, "set_alarm", map[string]any{"task_id": task.ID, "at": at})
	if r.IsError {
		t.Fatalf("set_alarm: %s", resultText(r))
	}
	if err := json.Unmarshal([]byte(resultText(r)), &task); err != nil {
		t.Fatal(err)
	}
	if !task.Active || task.AlarmAt == nil {
		t.Errorf("task after set_alarm = %+v", task)
	}

	r = callTool(t, srv, "cancel_alarm", map[string]any{"task_id": task.ID})
	_ = json.Unmarshal([]byte(resultText(r)), &task)
	if task.Active {
		t.Error("task still active after cancel_alarm")
	}

	r = callTool(t, srv, "list_plants", map[string]any{})
	if !strings.Contains(resultText(r), "Fertilize") {
		t.Errorf("list_plants missing new task: %s", resultText(r))
	}

	r = callTool(t, srv, "set_alarm", map[string]any{"task_id": task.ID, "at": "tomorrow 9am"})
	if !r.IsError {
		t.Error("expected error for non RFC 3339 time")
	}
	r = callTool(t, srv, "add_task", map[string]any{"plant_id": 999, "description": "x"})
	if !r.IsError || resultText(r) != "not found" {
		t.Errorf("unknown plant = %q", resultText(r))
	}
}

func TestSetAlarmWithoutPermission(t *testing.T) {
	srv, deps := testServer(t, false)
	p, err := deps.Tasks.AddPlant(context.Background(), "Basil", "")
	if err != nil {
		t.Fatal(err)
	}
	r := callTool(t, srv, "set_alarm", map[string]any{
		"task_id": p.Tasks[0].ID,
		"at":      time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	if !r.IsError || resultText(r) != tasks.ExactAlarmPrompt {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestRoomTools(t *testing.T) {
	srv, deps := testServer(t, true)
	msg, err := deps.Chat.SendText(context.Background(), 0, "Yellow leaves?")
	if err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "list_rooms", map[string]any{})
	if !strings.Contains(resultText(r), "Yellow leaves?") {
		t.Errorf("rooms = %s", resultText(r))
	}

	r = callTool(t, srv, "read_room", map[string]any{"room_id": float64(msg.RoomID)})
	var msgs []models.Message
	if err := json.Unmarshal([]byte(resultText(r)), &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || *msgs[0].Text != "Yellow leaves?" {
		t.Errorf("messages = %+v", msgs)
	}

	r = callTool(t, srv, "read_room", map[string]any{"room_id": 404})
	if !r.IsError {
		t.Error("expected error for unknown room")
	}
}

func TestWeatherAdvice(t *testing.T) {
	srv, _ := testServer(t, true)
	r := callTool(t, srv, "weather_advice", map[string]any{})
	if !r.IsError {
		t.Error("expected error without coordinates or home")
	}

	report := &weather.Report{Name: "Busan"}
	report.Main.Temp = 33
	srv.deps.Weather = fakeWeather{report: report}
	srv.deps.HasHome = true

	r = callTool(t, srv, "weather_advice", map[string]any{})
	var sum weather.Summary
	if err := json.Unmarshal([]byte(resultText(r)), &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Temp != 33 || sum.Advice != weather.Advice(report) {
		t.Errorf("summary = %+v", sum)
	}

	srv.deps.Weather = fakeWeather{err: errors.New("down")}
	r = callTool(t, srv, "weather_advice", map[string]any{"lat": 35.1, "lon": 129.0})
	if !r.IsError || resultText(r) != "Failed to fetch weather information." {
		t.Errorf("failure = %q", resultText(r))
	}
}

func TestUploadPhotoDataURI(t *testing.T) {
	srv, deps := testServer(t, true)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testutil.PNG)

	r := callTool(t, srv, "upload_photo", map[string]any{"url": uri, "day": "2024-05-02"})
	if r.IsError {
		t.Fatalf("upload: %s", resultText(r))
	}
	var res uploadResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	name, ok := storage.NameFromRef(res.Ref)
	if !ok {
		t.Fatalf("ref = %q", res.Ref)
	}
	if _, err := deps.Photos.Read(name); err != nil {
		t.Errorf("blob not stored: %v", err)
	}

	day, _ := daykey.Parse("2024-05-02", time.UTC)
	refs := deps.Calendar.LoadPhotoRefs(context.Background(), day)
	if len(refs) != 1 || refs[0] != res.Ref {
		t.Errorf("day refs = %v", refs)
	}
}

func TestUploadPhotoRejects(t *testing.T) {
	srv, _ := testServer(t, true)
	srv.fetch = func(context.Context, string) ([]byte, string, error) {
		return []byte("<html></html>"), "text/html", nil
	}

	cases := map[string]string{
		"mismatch": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(testutil.PNG),
		"not b64":  "data:image/png,plain",
		"pdf":      "data:application/pdf;base64,JVBERi0=",
		"html":     "https://example.com/leaf.png",
	}
	for name, uri := range cases {
		r := callTool(t, srv, "upload_photo", map[string]any{"url": uri})
		if !r.IsError {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestCheckBlockedHost(t *testing.T) {
	for _, host := range []string{"127.0.0.1", "169.254.169.254", "metadata.google.internal", "::1"} {
		if err := checkBlockedHost(host); err == nil {
			t.Errorf("%s should be blocked", host)
		}
	}
	if err := checkBlockedHost("93.184.216.34"); err != nil {
		t.Errorf("public address blocked: %v", err)
	}
}

func TestCareGuideResource(t *testing.T) {
	srv, _ := testServer(t, true)
	contents, err := srv.readCareGuide(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content type %T", contents[0])
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(tc.Text), &entries); err != nil {
		t.Fatalf("care guide is not JSON: %v", err)
	}
	if len(entries) == 0 {
		t.Error("care guide is empty")
	}
}
