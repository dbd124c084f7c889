package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"doodle/backend/internal/domain"
)

var (
	ErrSaturated = errors.New("notification dispatcher saturated")
	ErrClosed    = errors.New("notification dispatcher closed")
)

type DispatcherConfig struct {
	// Concurrency bounds in-flight deliveries. Further notifications are
	// dropped until a delivery finishes.
	Concurrency int
	// Timeout bounds a single delivery.
	Timeout time.Duration
}

// Dispatcher hands notifications to next on background goroutines. Calls
// never block; delivery errors are logged and dropped.
type Dispatcher struct {
	next    Notifier
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	group  errgroup.Group
}

var _ Notifier = (*Dispatcher)(nil)

func NewDispatcher(next Notifier, log *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	d := &Dispatcher{
		next:    next,
		log:     log.With(slog.String("component", "notify.dispatcher")),
		timeout: cfg.Timeout,
	}
	d.group.SetLimit(cfg.Concurrency)
	return d
}

func (d *Dispatcher) NotifyInvitation(ctx context.Context, user domain.User, meeting domain.Meeting) error {
	return d.dispatch(ctx, "invitation", meeting, func(ctx context.Context) error {
		return d.next.NotifyInvitation(ctx, user, meeting)
	})
}

func (d *Dispatcher) NotifyAcceptance(ctx context.Context, organizer, participant domain.User, meeting domain.Meeting) error {
	return d.dispatch(ctx, "acceptance", meeting, func(ctx context.Context) error {
		return d.next.NotifyAcceptance(ctx, organizer, participant, meeting)
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, kind string, meeting domain.Meeting, deliver func(ctx context.Context) error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	// The request context ends when the RPC returns; delivery outlives it.
	ctx = context.WithoutCancel(ctx)
	started := d.group.TryGo(func() error {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := deliver(ctx); err != nil {
			d.log.WarnContext(ctx, "notification delivery failed",
				slog.String("kind", kind),
				slog.String("meeting_id", meeting.ID.String()),
				slog.Any("err", err),
			)
		}
		return nil
	})
	if !started {
		d.log.WarnContext(ctx, "notification dropped",
			slog.String("kind", kind),
			slog.String("meeting_id", meeting.ID.String()),
		)
		return ErrSaturated
	}
	return nil
}

// Close stops accepting notifications and waits for in-flight deliveries
// until ctx is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
