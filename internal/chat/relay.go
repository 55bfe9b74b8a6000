package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/plantbutler/internal/assistant"
	"github.com/starford/plantbutler/internal/storage"
)

// ErrQueueFull is returned by Enqueue when no slot is free.
var ErrQueueFull = errors.New("chat: relay queue full")

// Job is one message waiting for an assistant answer.
type Job struct {
	RoomID   int64
	Text     string
	PhotoRef string
}

// Sink receives relay results.
type Sink interface {
	AppendBotReply(ctx context.Context, roomID int64, text string) error
	Typing(roomID int64, on bool)
}

// RelayConfig sizes the worker pool.
type RelayConfig struct {
	Workers   int
	QueueSize int
	// Timeout caps one job including every backend call it makes.
	Timeout time.Duration
}

// Relay runs assistant calls off the request path.
type Relay struct {
	client assistant.Client
	guide  *assistant.CareGuide
	photos storage.Provider
	cfg    RelayConfig
	jobs   chan Job
	logger *slog.Logger
}

var _ Queue = (*Relay)(nil)

// NewRelay creates a relay. Call Run to start the workers.
func NewRelay(client assistant.Client, guide *assistant.CareGuide, photos storage.Provider, cfg RelayConfig, logger *slog.Logger) *Relay {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if guide == nil {
		guide = assistant.LoadCareGuide()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		client: client,
		guide:  guide,
		photos: photos,
		cfg:    cfg,
		jobs:   make(chan Job, cfg.QueueSize),
		logger: logger,
	}
}

// Enqueue implements Queue.
func (r *Relay) Enqueue(job Job) error {
	select {
	case r.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processes jobs until ctx is cancelled. Jobs still queued at that
// point are dropped.
func (r *Relay) Run(ctx context.Context, sink Sink) error {
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return nil
				case job := <-r.jobs:
					r.handle(gCtx, sink, job)
				}
			}
		})
	}
	err := g.Wait()
	r.logger.Info("chat: relay stopped")
	return err
}

func (r *Relay) handle(ctx context.Context, sink Sink, job Job) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	defer sink.Typing(job.RoomID, false)

	var reply string
	if job.PhotoRef != "" {
		reply = r.answerImage(ctx, job.PhotoRef)
	} else {
		reply = r.answerText(ctx, job)
	}

	// The reply is stored even if the relay is shutting down.
	if err := sink.AppendBotReply(context.WithoutCancel(ctx), job.RoomID, reply); err != nil {
		r.logger.Warn("chat: store reply", slog.Int64("room_id", job.RoomID), slog.String("error", err.Error()))
	}
}

func (r *Relay) answerText(ctx context.Context, job Job) string {
	reply, err := r.client.SendText(ctx, job.Text, fmt.Sprint(job.RoomID))
	if err != nil || strings.TrimSpace(reply) == "" {
		r.logFailure("text", job.RoomID, err)
		return assistant.FallbackText
	}
	return reply
}

func (r *Relay) answerImage(ctx context.Context, ref string) string {
	name, ok := storage.NameFromRef(ref)
	if !ok || r.photos == nil {
		r.logger.Warn("chat: image is not a stored photo", slog.String("ref", ref))
		return assistant.FallbackImage
	}
	data, err := r.photos.Read(name)
	if err != nil {
		r.logFailure("image read", 0, err)
		return assistant.FallbackImage
	}
	res, err := r.client.SendImage(ctx, name, bytes.NewReader(data))
	if err != nil {
		r.logFailure("image", 0, err)
		return assistant.FallbackImage
	}
	return r.describe(ctx, res)
}

// describe turns a classification into the bot reply. Healthy or unknown
// labels get a care tip; known diseases get the guide's diagnosis.
func (r *Relay) describe(ctx context.Context, res *assistant.Classification) string {
	label := assistant.HealthyLabel
	if res != nil && strings.TrimSpace(res.Label) != "" {
		label = res.Label
	}
	info, known := r.guide.Find(label)
	if strings.EqualFold(label, assistant.HealthyLabel) || !known || strings.EqualFold(info.Label, assistant.HealthyLabel) {
		tip, err := r.client.SendText(ctx, assistant.HealthyTipPrompt, "")
		if err != nil || strings.TrimSpace(tip) == "" {
			tip = assistant.FallbackCareTip
		}
		return "Looks healthy.\n" + tip
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Diagnosis: %s\n\n", info.Name)
	fmt.Fprintf(&b, "Description: %s\n\n", info.Description)
	fmt.Fprintf(&b, "Solution: %s", info.Solution)
	return b.String()
}

func (r *Relay) logFailure(kind string, roomID int64, err error) {
	attrs := []any{slog.String("kind", kind)}
	if roomID != 0 {
		attrs = append(attrs, slog.Int64("room_id", roomID))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	r.logger.Warn("chat: assistant call failed, using fallback", attrs...)
}
