package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/plantbutler/internal/apperr"
	"github.com/starford/plantbutler/internal/daykey"
	"github.com/starford/plantbutler/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "plantbutler-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)
	var v int
	if err := db.conn.QueryRow(`SELECT version FROM schema_version`).Scan(&v); err != nil {
		t.Fatalf("schema_version: %v", err)
	}
	if v != 3 {
		t.Errorf("version = %d, want 3", v)
	}
	// Re-running is a no-op.
	n, err := Migrate(db.conn)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("applied = %d, want 0", n)
	}
}

func TestDiaryUpsertOverwrites(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	day := daykey.Of(time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local))

	if _, ok, _ := db.GetDiary(ctx, day); ok {
		t.Fatal("expected no record")
	}
	_ = db.UpsertDiary(ctx, day, "first")
	_ = db.UpsertDiary(ctx, day, "second")
	text, ok, err := db.GetDiary(ctx, day)
	if err != nil || !ok {
		t.Fatalf("GetDiary: %v ok=%v", err, ok)
	}
	if text != "second" {
		t.Errorf("text = %q, want second", text)
	}

	// Blank note is a record.
	_ = db.UpsertDiary(ctx, day, "")
	if _, ok, _ := db.GetDiary(ctx, day); !ok {
		t.Error("blank note should still be a record")
	}
}

func TestPhotoRefsEmptyDeletes(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	day := daykey.Of(time.Now())

	if err := db.PutPhotoRefs(ctx, day, []string{"photo:a.jpg", "photo:b.jpg"}); err != nil {
		t.Fatal(err)
	}
	refs, _ := db.GetPhotoRefs(ctx, day)
	if len(refs) != 2 || refs[1] != "photo:b.jpg" {
		t.Errorf("refs = %v", refs)
	}

	if err := db.PutPhotoRefs(ctx, day, nil); err != nil {
		t.Fatal(err)
	}
	all, err := db.AllPhotoRefs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := all[day]; ok {
		t.Error("empty list should remove the day")
	}
	var n int
	_ = db.conn.QueryRow(`SELECT COUNT(*) FROM photo_days`).Scan(&n)
	if n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}

func TestAllPhotoRefsSkipsMalformed(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	good := daykey.Of(time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local))
	bad := daykey.Of(time.Date(2024, 1, 3, 0, 0, 0, 0, time.Local))

	_ = db.PutPhotoRefs(ctx, good, []string{"photo:x.png"})
	if _, err := db.conn.Exec(`INSERT INTO photo_days (day_key, refs, updated_at) VALUES (?, '{not json', 0)`, bad.Millis()); err != nil {
		t.Fatal(err)
	}

	all, err := db.AllPhotoRefs(ctx)
	if err != nil {
		t.Fatalf("AllPhotoRefs: %v", err)
	}
	if len(all) != 1 || all[good][0] != "photo:x.png" {
		t.Errorf("all = %v", all)
	}
	if _, err := db.GetPhotoRefs(ctx, bad); !errors.Is(err, ErrMalformed) {
		t.Errorf("GetPhotoRefs(bad) err = %v, want ErrMalformed", err)
	}
}

func seedPlant(t *testing.T, db *DB, name string, descs ...string) *models.Plant {
	t.Helper()
	p := &models.Plant{Name: name}
	for i, d := range descs {
		p.Tasks = append(p.Tasks, models.Task{ID: name + "-" + d + "-" + string(rune('a'+i)), Description: d})
	}
	if err := db.InsertPlant(context.Background(), p); err != nil {
		t.Fatalf("InsertPlant: %v", err)
	}
	return p
}

func TestPlantTasksOrderAndMove(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := seedPlant(t, db, "Basil", "Water", "Repot", "Prune")

	if err := db.MoveTask(ctx, p.ID, 2, 0); err != nil {
		t.Fatalf("MoveTask: %v", err)
	}
	got, err := db.GetPlant(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Prune", "Water", "Repot"}
	for i, task := range got.Tasks {
		if task.Description != want[i] {
			t.Errorf("task[%d] = %q, want %q", i, task.Description, want[i])
		}
		if task.Position != i {
			t.Errorf("task[%d].Position = %d", i, task.Position)
		}
	}
	// Ids travel with the task.
	if got.Tasks[0].ID != p.Tasks[2].ID {
		t.Errorf("moved id = %q, want %q", got.Tasks[0].ID, p.Tasks[2].ID)
	}

	if err := db.MoveTask(ctx, p.ID, 0, 9); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("out of range err = %v", err)
	}
}

func TestTaskAppendDeleteCompact(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := seedPlant(t, db, "Fern", "Water", "Mist")

	extra := &models.Task{ID: "fern-feed", PlantID: p.ID, Description: "Feed"}
	if err := db.InsertTask(ctx, extra); err != nil {
		t.Fatal(err)
	}
	if extra.Position != 2 {
		t.Errorf("position = %d, want 2", extra.Position)
	}
	if err := db.DeleteTask(ctx, p.Tasks[0].ID); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetPlant(ctx, p.ID)
	if len(got.Tasks) != 2 || got.Tasks[1].ID != "fern-feed" || got.Tasks[1].Position != 1 {
		t.Errorf("tasks = %+v", got.Tasks)
	}
	if err := db.InsertTask(ctx, &models.Task{ID: "x", PlantID: 999, Description: "y"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing plant err = %v", err)
	}
}

func TestAlarmCandidatesAndCascade(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	p := seedPlant(t, db, "Basil", "Water", "Repot")

	at := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	water := p.Tasks[0]
	water.Active = true
	water.AlarmAt = &at
	if err := db.UpdateTask(ctx, water); err != nil {
		t.Fatal(err)
	}

	cands, err := db.AlarmCandidates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].Task.ID != water.ID || cands[0].PlantName != "Basil" {
		t.Fatalf("candidates = %+v", cands)
	}
	if !cands[0].Task.AlarmAt.Equal(at) {
		t.Errorf("alarm = %v, want %v", cands[0].Task.AlarmAt, at)
	}

	if err := db.DeletePlant(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetTask(ctx, water.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("task after cascade err = %v", err)
	}
}

func TestRoomCascadeAndOrdering(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Now()

	older, _ := db.InsertRoom(ctx, "older", base.Add(-time.Hour))
	newer, _ := db.InsertRoom(ctx, "newer", base)

	rooms, err := db.ListRooms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 2 || rooms[0].ID != newer.ID {
		t.Errorf("rooms = %+v, want newest first", rooms)
	}

	hello, bye := "hello", "bye"
	_ = db.InsertMessage(ctx, &models.Message{RoomID: older.ID, Text: &bye, Kind: models.KindBotText, CreatedAt: base.Add(time.Second)})
	_ = db.InsertMessage(ctx, &models.Message{RoomID: older.ID, Text: &hello, Kind: models.KindUserText, CreatedAt: base})
	msgs, _ := db.MessagesForRoom(ctx, older.ID)
	if len(msgs) != 2 || *msgs[0].Text != "hello" {
		t.Fatalf("messages = %+v", msgs)
	}

	if err := db.DeleteRoom(ctx, older.ID); err != nil {
		t.Fatal(err)
	}
	msgs, err = db.MessagesForRoom(ctx, older.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages after delete = %d, want 0", len(msgs))
	}
	if err := db.DeleteRoom(ctx, older.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

// openPair opens the same database file twice, like two processes would.
func openPair(t *testing.T) (*DB, *DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	b, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return a, b
}

func TestRevisionsSeeOtherConnections(t *testing.T) {
	a, b := openPair(t)
	ctx := context.Background()

	cal0, _ := a.Revision(ctx, ScopeCalendar)
	tasks0, _ := a.Revision(ctx, ScopeTasks)

	d, _ := daykey.Parse("2024-05-02", time.UTC)
	if err := b.UpsertDiary(ctx, d, "from b"); err != nil {
		t.Fatal(err)
	}
	if cal, _ := a.Revision(ctx, ScopeCalendar); cal == cal0 {
		t.Error("calendar revision did not move after a diary write on another connection")
	}
	if tk, _ := a.Revision(ctx, ScopeTasks); tk != tasks0 {
		t.Errorf("tasks revision moved to %d on a diary write", tk)
	}

	seedPlant(t, b, "Basil", "Water")
	if tk, _ := a.Revision(ctx, ScopeTasks); tk == tasks0 {
		t.Error("tasks revision did not move after a plant insert")
	}
}

func TestPollRevisions(t *testing.T) {
	a, b := openPair(t)

	changed := make(chan string, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- PollRevisions(ctx, a, 20*time.Millisecond, []string{ScopeCalendar, ScopeTasks},
			func(_ context.Context, scope string) { changed <- scope }, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	d, _ := daykey.Parse("2024-05-02", time.UTC)
	if err := b.PutPhotoRefs(context.Background(), d, []string{"photo:a.png"}); err != nil {
		t.Fatal(err)
	}

	select {
	case scope := <-changed:
		if scope != ScopeCalendar {
			t.Errorf("scope = %q, want %q", scope, ScopeCalendar)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("PollRevisions = %v", err)
	}
	select {
	case scope := <-changed:
		t.Errorf("unexpected extra change %q", scope)
	default:
	}
}
