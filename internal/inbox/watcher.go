// Package inbox imports photos dropped into a watched directory.
package inbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/plantbutler/internal/calendar"
	"github.com/starford/plantbutler/internal/daykey"
	"github.com/starford/plantbutler/internal/storage"
)

// settle is how long a file must stay quiet before it is imported, so a
// copy still in progress is not picked up half written.
const settle = 300 * time.Millisecond

// RejectedDir is the sub-directory files that are not images are moved to.
const RejectedDir = "rejected"

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// Appender adds photo references to a day.
type Appender interface {
	AddPhotos(ctx context.Context, day daykey.DayKey, refs []string) (*calendar.AddResult, error)
}

// Watcher moves new image files from dir into the blob store and appends
// them to the current day.
type Watcher struct {
	dir    string
	photos storage.Provider
	cal    Appender
	today  func() daykey.DayKey
	logger *slog.Logger
}

// New creates a watcher for dir.
func New(dir string, photos storage.Provider, cal Appender, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{dir: dir, photos: photos, cal: cal, today: daykey.Today, logger: logger}
}

// Run imports files already in the directory, then watches it until ctx is
// cancelled. A directory that cannot be created or watched disables the
// inbox with an error log; Run then returns nil so the rest of the process
// keeps running.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := w.open()
	if err != nil {
		w.logger.Error("inbox: disabled", slog.String("dir", w.dir), slog.String("error", err.Error()))
		return nil
	}
	defer fw.Close()
	w.logger.Info("inbox: started", slog.String("dir", w.dir))

	w.sweep(ctx)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settle / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox: stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isImageName(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()

		case <-ticker.C:
			now := time.Now()
			for path, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, path)
				w.importFile(ctx, path)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) open() (*fsnotify.Watcher, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return nil, err
	}
	return fw, nil
}

func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("inbox: list failed", slog.String("error", err.Error()))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isImageName(e.Name()) {
			continue
		}
		w.importFile(ctx, filepath.Join(w.dir, e.Name()))
	}
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	name, err := w.photos.Import(path)
	if errors.Is(err, storage.ErrNotImage) {
		w.reject(path, err)
		return
	}
	if err != nil {
		w.logger.Warn("inbox: import failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	day := w.today()
	if _, err := w.cal.AddPhotos(ctx, day, []string{storage.Ref(name)}); err != nil {
		w.logger.Warn("inbox: append failed", slog.String("name", name), slog.String("error", err.Error()))
		return
	}
	w.logger.Info("inbox: imported", slog.String("path", path), slog.String("name", name))
}

// reject moves a file that is not a usable image out of the watched
// directory so it is not retried.
func (w *Watcher) reject(path string, cause error) {
	dir := filepath.Join(w.dir, RejectedDir)
	dst := filepath.Join(dir, filepath.Base(path))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.logger.Warn("inbox: reject failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if _, err := os.Stat(dst); err == nil {
		ext := filepath.Ext(dst)
		dst = strings.TrimSuffix(dst, ext) + "-" + time.Now().Format("20060102T150405.000") + ext
	}
	if err := os.Rename(path, dst); err != nil {
		w.logger.Warn("inbox: reject failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	w.logger.Warn("inbox: rejected", slog.String("path", path), slog.String("moved_to", dst), slog.String("reason", cause.Error()))
}

func isImageName(p string) bool {
	base := filepath.Base(p)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return imageExts[strings.ToLower(filepath.Ext(base))]
}
