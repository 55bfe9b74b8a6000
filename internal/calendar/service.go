// Package calendar owns the per-day diary notes and photo lists, and the
// month views built from them.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/plantbutler/internal/apperr"
	"github.com/starford/plantbutler/internal/checksum"
	"github.com/starford/plantbutler/internal/daykey"
	"github.com/starford/plantbutler/internal/models"
	"github.com/starford/plantbutler/internal/prefs"
	"github.com/starford/plantbutler/internal/store"
)

// EventCallback is called after a successful write.
type EventCallback func(kind string, data any)

// Flags records one-time user prompts.
type Flags interface {
	Once(key string) bool
}

// Service is the in-process writer of diary and photo records. Reads are
// served from a cache filled by a bulk load, updated on every write and
// refilled when the store's calendar revision moves.
type Service struct {
	repo    store.CalendarRepo
	granter Granter
	flags   Flags
	prompt  Prompter
	onEvent EventCallback
	loc     *time.Location
	logger  *slog.Logger

	mu     sync.RWMutex
	loaded bool
	rev    int64
	diary  map[daykey.DayKey]string
	photos map[daykey.DayKey][]string
}

// Option configures a Service.
type Option func(*Service)

// WithGranter sets the permission granter used by AddPhotos.
func WithGranter(g Granter) Option {
	return func(s *Service) { s.granter = g }
}

// WithPrompter sets who is told about dropped photos.
func WithPrompter(p Prompter) Option {
	return func(s *Service) { s.prompt = p }
}

// WithFlags sets the one-time flag store.
func WithFlags(f Flags) Option {
	return func(s *Service) { s.flags = f }
}

// WithEvents sets the write callback.
func WithEvents(cb EventCallback) Option {
	return func(s *Service) { s.onEvent = cb }
}

// WithLocation sets the zone used to build month grids.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// NewService creates a calendar service over repo.
func NewService(repo store.CalendarRepo, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		granter: FileGranter{},
		loc:     time.Local,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Location returns the zone day keys are computed in.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) emit(kind string, day daykey.DayKey) {
	if s.onEvent != nil {
		s.onEvent(kind, map[string]string{"day": day.Format(s.loc)})
	}
}

// revision reads the calendar counter when the repo keeps one. ok is false
// when there is no counter or it could not be read; the cache is then
// trusted as is.
func (s *Service) revision(ctx context.Context) (rev int64, ok bool) {
	r, isRev := s.repo.(store.Revisioner)
	if !isRev {
		return 0, false
	}
	rev, err := r.Revision(ctx, store.ScopeCalendar)
	if err != nil {
		s.logger.Warn("calendar: revision check", slog.String("error", err.Error()))
		return 0, false
	}
	return rev, true
}

// ensure fills the cache on first use and refills it when another writer
// sharing the database has changed calendar rows. A failed bulk load leaves
// the cache empty and unloaded so the next call retries.
func (s *Service) ensure(ctx context.Context) {
	rev, tracked := s.revision(ctx)
	s.mu.RLock()
	fresh := s.loaded && (!tracked || rev == s.rev)
	s.mu.RUnlock()
	if fresh {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded && (!tracked || rev == s.rev) {
		return
	}
	if s.loaded {
		s.logger.Debug("calendar: reloading after external change", slog.Int64("revision", rev))
	}
	diary, err := s.repo.AllDiary(ctx)
	if err != nil {
		s.logger.Error("calendar: load diary", slog.String("error", err.Error()))
		diary = nil
	}
	photos, perr := s.repo.AllPhotoRefs(ctx)
	if perr != nil {
		s.logger.Error("calendar: load photos", slog.String("error", perr.Error()))
		photos = nil
	}
	s.diary = diary
	s.photos = photos
	if s.diary == nil {
		s.diary = make(map[daykey.DayKey]string)
	}
	if s.photos == nil {
		s.photos = make(map[daykey.DayKey][]string)
	}
	s.rev = rev
	s.loaded = err == nil && perr == nil
}

// SaveDiaryText stores the note for day, overwriting any previous one.
// An empty note is kept as a blank record.
func (s *Service) SaveDiaryText(ctx context.Context, day daykey.DayKey, text string) error {
	s.ensure(ctx)
	if err := s.repo.UpsertDiary(ctx, day, text); err != nil {
		return fmt.Errorf("calendar: save diary: %w", err)
	}
	s.mu.Lock()
	s.diary[day] = text
	s.mu.Unlock()
	s.emit("diary.updated", day)
	return nil
}

// SaveDiaryTextIf is SaveDiaryText guarded by an If-Match value naming the
// checksum of the note the caller last read.
func (s *Service) SaveDiaryTextIf(ctx context.Context, day daykey.DayKey, text, ifMatch string) error {
	s.ensure(ctx)
	s.mu.Lock()
	if !checksum.Matches(ifMatch, checksum.Text(s.diary[day])) {
		s.mu.Unlock()
		return fmt.Errorf("calendar: diary %s changed since read: %w", day, apperr.ErrConflict)
	}
	if err := s.repo.UpsertDiary(ctx, day, text); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("calendar: save diary: %w", err)
	}
	s.diary[day] = text
	s.mu.Unlock()
	s.emit("diary.updated", day)
	return nil
}

// ClearDiary removes the note record of day, so HasDiary reports false.
// Clearing a day without a note is not an error.
func (s *Service) ClearDiary(ctx context.Context, day daykey.DayKey) error {
	s.ensure(ctx)
	if err := s.repo.DeleteDiary(ctx, day); err != nil {
		return fmt.Errorf("calendar: clear diary: %w", err)
	}
	s.mu.Lock()
	delete(s.diary, day)
	s.mu.Unlock()
	s.emit("diary.deleted", day)
	return nil
}

// LoadDiaryText returns the note for day, or "" if there is none.
func (s *Service) LoadDiaryText(ctx context.Context, day daykey.DayKey) string {
	s.ensure(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diary[day]
}

// HasDiary reports whether day has a note record, blank or not.
func (s *Service) HasDiary(ctx context.Context, day daykey.DayKey) bool {
	s.ensure(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.diary[day]
	return ok
}

// SavePhotoRefs replaces the ordered photo list of day. An empty list
// removes the day.
func (s *Service) SavePhotoRefs(ctx context.Context, day daykey.DayKey, refs []string) error {
	s.ensure(ctx)
	refs = compact(refs)
	if err := s.repo.PutPhotoRefs(ctx, day, refs); err != nil {
		return fmt.Errorf("calendar: save photos: %w", err)
	}
	s.mu.Lock()
	if len(refs) == 0 {
		delete(s.photos, day)
	} else {
		s.photos[day] = refs
	}
	s.mu.Unlock()
	s.emit("photos.updated", day)
	return nil
}

// LoadPhotoRefs returns a copy of day's photo list, empty when absent.
func (s *Service) LoadPhotoRefs(ctx context.Context, day daykey.DayKey) []string {
	s.ensure(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.photos[day]...)
}

// LoadAllPhotoRefs returns a copy of every day's photo list.
func (s *Service) LoadAllPhotoRefs(ctx context.Context) map[daykey.DayKey][]string {
	s.ensure(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[daykey.DayKey][]string, len(s.photos))
	for k, v := range s.photos {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// MovePhoto moves the reference at index from to index to.
func (s *Service) MovePhoto(ctx context.Context, day daykey.DayKey, from, to int) error {
	refs := s.LoadPhotoRefs(ctx, day)
	if from < 0 || from >= len(refs) || to < 0 || to >= len(refs) {
		return fmt.Errorf("%w: move %d -> %d of %d photos", apperr.ErrInvalidArgument, from, to, len(refs))
	}
	if from == to {
		return nil
	}
	ref := refs[from]
	refs = append(refs[:from], refs[from+1:]...)
	refs = append(refs[:to], append([]string{ref}, refs[to:]...)...)
	return s.SavePhotoRefs(ctx, day, refs)
}

// RemovePhoto deletes ref from day's list. Removing the last one deletes
// the day.
func (s *Service) RemovePhoto(ctx context.Context, day daykey.DayKey, ref string) error {
	refs := s.LoadPhotoRefs(ctx, day)
	for i, r := range refs {
		if r == ref {
			return s.SavePhotoRefs(ctx, day, append(refs[:i], refs[i+1:]...))
		}
	}
	return apperr.ErrNotFound
}

// AddResult reports the outcome of AddPhotos.
type AddResult struct {
	Refs    []string `json:"refs"`
	Dropped []string `json:"dropped"`
	Notice  string   `json:"notice,omitempty"`
}

// AddPhotos appends selected references to day. External references get a
// long-term read grant first; one that cannot be granted is dropped and the
// user is told once.
func (s *Service) AddPhotos(ctx context.Context, day daykey.DayKey, refs []string) (*AddResult, error) {
	res := &AddResult{Dropped: []string{}}
	var kept []string
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if NeedsGrant(ref) {
			if err := s.granter.Grant(ctx, ref); err != nil {
				s.logger.Warn("calendar: photo grant failed", slog.String("ref", ref), slog.String("error", err.Error()))
				res.Dropped = append(res.Dropped, ref)
				continue
			}
		}
		kept = append(kept, ref)
	}

	if len(res.Dropped) > 0 && (s.flags == nil || s.flags.Once(prefs.PhotoPermissionNoticeShown)) {
		res.Notice = PhotoPermissionNotice
		if s.prompt != nil {
			s.prompt.Prompt(ctx, "photo_permission", PhotoPermissionNotice)
		}
	}

	current := s.LoadPhotoRefs(ctx, day)
	if len(kept) > 0 {
		if err := s.SavePhotoRefs(ctx, day, append(current, kept...)); err != nil {
			return nil, err
		}
		current = s.LoadPhotoRefs(ctx, day)
	}
	res.Refs = current
	return res, nil
}

// MonthMemos returns the non-blank notes of a month ordered by day.
func (s *Service) MonthMemos(ctx context.Context, year int, month time.Month) []models.Memo {
	from, to := daykey.MonthRange(year, month, s.loc)
	s.ensure(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()

	memos := []models.Memo{}
	for day, text := range s.diary {
		if day < from || day >= to || strings.TrimSpace(text) == "" {
			continue
		}
		memos = append(memos, models.Memo{Day: day, Date: day.Format(s.loc), Text: text})
	}
	sort.Slice(memos, func(i, j int) bool { return memos[i].Day < memos[j].Day })
	return memos
}

// Month returns the grid for a month with each day's records.
func (s *Service) Month(ctx context.Context, year int, month time.Month) models.MonthView {
	s.ensure(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()

	grid := daykey.MonthGrid(year, month, s.loc)
	view := models.MonthView{Year: year, Month: int(month), Cells: make([]models.DayCell, 0, len(grid))}
	for _, c := range grid {
		cell := models.DayCell{Cell: c}
		if !c.Blank {
			cell.Date = c.Key.Format(s.loc)
			_, cell.HasDiary = s.diary[c.Key]
			refs := s.photos[c.Key]
			cell.PhotoCount = len(refs)
			if len(refs) > 0 {
				cell.Thumbnail = refs[0]
			}
		}
		view.Cells = append(view.Cells, cell)
	}
	return view
}

// compact drops blank references.
func compact(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
