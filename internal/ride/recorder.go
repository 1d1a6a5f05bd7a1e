package ride

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"antdrive/internal/bus"
	"antdrive/internal/events"
)

// Recorder subscribes to ride events on the bus and writes them to one
// session row plus its samples and events.
type Recorder struct {
	logger *slog.Logger
	bus    bus.MessageBus
	repo   *Repo
	writer *WriterQueue

	sessionID int64
}

func NewRecorder(logger *slog.Logger, b bus.MessageBus, repo *Repo, writer *WriterQueue) *Recorder {
	return &Recorder{
		logger: logger,
		bus:    b,
		repo:   repo,
		writer: writer,
	}
}

// Start opens a new session and records until ctx is canceled.
func (r *Recorder) Start(ctx context.Context) error {
	id, err := r.repo.CreateSession(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	r.sessionID = id
	r.logger.Info("recording session", "session_id", id)

	sub := r.bus.Subscribe(events.TopicTelemetry, events.TopicButton, events.TopicRideState)
	go r.run(ctx, sub)

	return nil
}

func (r *Recorder) SessionID() int64 {
	return r.sessionID
}

func (r *Recorder) run(ctx context.Context, sub bus.Subscription) {
	defer r.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			r.finish()

			return
		case raw, ok := <-sub:
			if !ok {
				r.finish()

				return
			}
			r.record(raw)
		}
	}
}

func (r *Recorder) record(raw any) {
	switch ev := raw.(type) {
	case events.TelemetrySample:
		r.writer.Enqueue("insert sample", func(ctx context.Context) error {
			return r.repo.InsertSample(ctx, r.sessionID, ev)
		})
	case events.ButtonPress:
		r.writer.Enqueue("insert button event", func(ctx context.Context) error {
			return r.repo.InsertEvent(ctx, r.sessionID, ev.At, "button", fmt.Sprintf("code=0x%02X", ev.Code))
		})
	case events.RideStateChange:
		r.writer.Enqueue("insert state event", func(ctx context.Context) error {
			return r.repo.InsertEvent(ctx, r.sessionID, ev.At, "state", string(ev.State))
		})
	}
}

func (r *Recorder) finish() {
	// best effort: the writer context may already be gone
	endCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.repo.EndSession(endCtx, r.sessionID, time.Now()); err != nil {
		r.logger.Warn("end session", "error", err)
	}
}
