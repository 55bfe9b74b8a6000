package inbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/plantbutler/internal/calendar"
	"github.com/starford/plantbutler/internal/daykey"
	"github.com/starford/plantbutler/internal/storage"
	"github.com/starford/plantbutler/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func start(t *testing.T, dir string) (*calendar.Service, storage.Provider) {
	t.Helper()
	_, photos := testutil.TestPhotos(t)
	cal := calendar.NewService(testutil.TestDB(t), testutil.Logger())
	w := New(dir, photos, cal, testutil.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cal, photos
}

func TestExistingFilesImportedOnStart(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "leaf.png")
	_ = os.WriteFile(src, testutil.PNG, 0o644)

	cal, _ := start(t, dir)
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return len(cal.LoadPhotoRefs(context.Background(), daykey.Today())) == 1
	}, "existing photo not imported")
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be removed after import")
	}
}

func TestNewFileImported(t *testing.T) {
	dir := t.TempDir()
	cal, photos := start(t, dir)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a photo"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "new.PNG"), testutil.PNG, 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return len(cal.LoadPhotoRefs(context.Background(), daykey.Today())) == 1
	}, "new photo not imported")

	refs := cal.LoadPhotoRefs(context.Background(), daykey.Today())
	if len(refs) == 0 {
		return
	}
	name, ok := storage.NameFromRef(refs[0])
	if !ok {
		t.Fatalf("ref = %q", refs[0])
	}
	if _, err := photos.Read(name); err != nil {
		t.Errorf("blob missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Error("non-image files are left alone")
	}
}

func TestIsImageName(t *testing.T) {
	cases := map[string]bool{"a.jpg": true, "B.JPEG": true, "c.webp": true, ".hidden.png": false, "d.txt": false, "e": false}
	for in, want := range cases {
		if got := isImageName(in); got != want {
			t.Errorf("isImageName(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFakeImageMovedToRejected(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "leaf.png")
	_ = os.WriteFile(src, []byte("not really a png"), 0o644)

	cal, _ := start(t, dir)
	dst := filepath.Join(dir, RejectedDir, "leaf.png")
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		_, err := os.Stat(dst)
		return err == nil
	}, "fake image not moved to rejected/")
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("fake image still in the inbox")
	}
	if refs := cal.LoadPhotoRefs(context.Background(), daykey.Today()); len(refs) != 0 {
		t.Errorf("refs = %v, want none", refs)
	}
}

func TestUnusableDirDisablesOnlyTheInbox(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, photos := testutil.TestPhotos(t)
	cal := calendar.NewService(testutil.TestDB(t), testutil.Discard())
	w := New(filepath.Join(blocker, "inbox"), photos, cal, testutil.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return for an unusable directory")
	}
	if ctx.Err() != nil {
		t.Error("context should still be live")
	}
}
