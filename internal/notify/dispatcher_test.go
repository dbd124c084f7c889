package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"doodle/backend/internal/domain"
)

type fakeNotifier struct {
	notifyInvitationFn func(ctx context.Context, user domain.User, meeting domain.Meeting) error
	notifyAcceptanceFn func(ctx context.Context, organizer, participant domain.User, meeting domain.Meeting) error
}

func (f *fakeNotifier) NotifyInvitation(ctx context.Context, user domain.User, meeting domain.Meeting) error {
	if f.notifyInvitationFn == nil {
		panic("NotifyInvitation not configured")
	}
	return f.notifyInvitationFn(ctx, user, meeting)
}

func (f *fakeNotifier) NotifyAcceptance(ctx context.Context, organizer, participant domain.User, meeting domain.Meeting) error {
	if f.notifyAcceptanceFn == nil {
		panic("NotifyAcceptance not configured")
	}
	return f.notifyAcceptanceFn(ctx, organizer, participant, meeting)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_DeliversAfterCallerContextEnds(t *testing.T) {
	delivered := make(chan error, 1)
	next := &fakeNotifier{
		notifyInvitationFn: func(ctx context.Context, user domain.User, meeting domain.Meeting) error {
			delivered <- ctx.Err()
			return nil
		},
	}
	d := NewDispatcher(next, discardLogger(), DispatcherConfig{Concurrency: 1, Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.NotifyInvitation(ctx, domain.User{}, domain.Meeting{ID: uuid.New()}); err != nil {
		t.Fatalf("NotifyInvitation error: %v", err)
	}

	select {
	case err := <-delivered:
		if err != nil {
			t.Fatalf("delivery ctx err = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("notification not delivered")
	}
}

func TestDispatcher_DropsWhenSaturatedWithoutBlocking(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	next := &fakeNotifier{
		notifyInvitationFn: func(ctx context.Context, user domain.User, meeting domain.Meeting) error {
			close(started)
			<-release
			return nil
		},
	}
	d := NewDispatcher(next, discardLogger(), DispatcherConfig{Concurrency: 1, Timeout: time.Second})

	if err := d.NotifyInvitation(context.Background(), domain.User{}, domain.Meeting{}); err != nil {
		t.Fatalf("first NotifyInvitation error: %v", err)
	}
	<-started

	begin := time.Now()
	err := d.NotifyInvitation(context.Background(), domain.User{}, domain.Meeting{})
	if !errors.Is(err, ErrSaturated) {
		t.Fatalf("err = %v, want %v", err, ErrSaturated)
	}
	if time.Since(begin) > 100*time.Millisecond {
		t.Fatalf("saturated dispatch blocked for %v", time.Since(begin))
	}

	close(release)
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestDispatcher_SwallowsDeliveryErrors(t *testing.T) {
	var calls atomic.Int32
	next := &fakeNotifier{
		notifyAcceptanceFn: func(ctx context.Context, organizer, participant domain.User, meeting domain.Meeting) error {
			calls.Add(1)
			return errors.New("smtp down")
		},
	}
	d := NewDispatcher(next, discardLogger(), DispatcherConfig{Concurrency: 4})

	for i := 0; i < 3; i++ {
		if err := d.NotifyAcceptance(context.Background(), domain.User{}, domain.User{}, domain.Meeting{}); err != nil {
			t.Fatalf("NotifyAcceptance error: %v", err)
		}
		// Let the delivery finish so the limit is never hit.
		if err := waitFor(func() bool { return calls.Load() == int32(i+1) }); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	d := NewDispatcher(&fakeNotifier{}, discardLogger(), DispatcherConfig{})
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	err := d.NotifyInvitation(context.Background(), domain.User{}, domain.Meeting{})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want %v", err, ErrClosed)
	}
}

func TestDispatcher_CloseHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	next := &fakeNotifier{
		notifyInvitationFn: func(ctx context.Context, user domain.User, meeting domain.Meeting) error {
			<-release
			return nil
		},
	}
	d := NewDispatcher(next, discardLogger(), DispatcherConfig{Concurrency: 1, Timeout: time.Minute})
	if err := d.NotifyInvitation(context.Background(), domain.User{}, domain.Meeting{}); err != nil {
		t.Fatalf("NotifyInvitation error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close err = %v, want %v", err, context.DeadlineExceeded)
	}
}

func waitFor(cond func() bool) error {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return errors.New("condition not met")
}
