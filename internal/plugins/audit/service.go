package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/keyxmakerx/edugate/internal/apperror"
)

// recordTimeout bounds how long one insert may take.
const recordTimeout = 2 * time.Second

// maxRecent caps how many events a listing returns.
const maxRecent = 200

// Recorder records auth events. Record never returns an error: failures are
// logged so the primary operation is never blocked by the audit log.
type Recorder interface {
	Record(ctx context.Context, e Event)
	Recent(ctx context.Context, action string, limit int) ([]Event, error)
}

// recorder implements Recorder over a Repository.
type recorder struct {
	repo Repository
}

// NewRecorder creates a recorder writing to repo.
func NewRecorder(repo Repository) Recorder {
	return &recorder{repo: repo}
}

// Record inserts the event. The caller's cancellation is ignored so an
// event is still written when the client disconnects mid-request.
func (r *recorder) Record(ctx context.Context, e Event) {
	if e.Action == "" {
		slog.Warn("audit event without action dropped")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := r.repo.Insert(ctx, &e); err != nil {
		slog.Error("failed to record auth event",
			slog.String("action", e.Action),
			slog.String("user_id", e.UserID),
			slog.Any("error", err),
		)
	}
}

// Recent returns the newest events, optionally of one action, clamping
// limit to [1, maxRecent].
func (r *recorder) Recent(ctx context.Context, action string, limit int) ([]Event, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}
	events, err := r.repo.Recent(ctx, action, limit)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return events, nil
}

// Nop is the Recorder used when the audit log is disabled.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

func (Nop) Recent(context.Context, string, int) ([]Event, error) { return []Event{}, nil }
