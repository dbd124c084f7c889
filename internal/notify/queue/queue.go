// Package queue moves notifications through Redis with asynq so that delivery
// survives process restarts and is retried by a separate worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"doodle/backend/internal/domain"
	"doodle/backend/internal/notify"
)

const (
	TypeInvitation = "notification:invitation"
	TypeAcceptance = "notification:acceptance"

	DefaultQueue = "notifications"
)

type UserPayload struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

type MeetingPayload struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	OrganizerID uuid.UUID `json:"organizer_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

type InvitationPayload struct {
	User    UserPayload    `json:"user"`
	Meeting MeetingPayload `json:"meeting"`
}

type AcceptancePayload struct {
	Organizer   UserPayload    `json:"organizer"`
	Participant UserPayload    `json:"participant"`
	Meeting     MeetingPayload `json:"meeting"`
}

func NewInvitationTask(user domain.User, meeting domain.Meeting) (*asynq.Task, error) {
	b, err := json.Marshal(InvitationPayload{User: userPayload(user), Meeting: meetingPayload(meeting)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvitation, b), nil
}

func NewAcceptanceTask(organizer, participant domain.User, meeting domain.Meeting) (*asynq.Task, error) {
	b, err := json.Marshal(AcceptancePayload{
		Organizer:   userPayload(organizer),
		Participant: userPayload(participant),
		Meeting:     meetingPayload(meeting),
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAcceptance, b), nil
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer is a notify.Notifier that only records the notification as an
// asynq task; the worker performs delivery.
type Enqueuer struct {
	client   taskEnqueuer
	queue    string
	maxRetry int
}

var _ notify.Notifier = (*Enqueuer)(nil)

func NewEnqueuer(client *asynq.Client, queue string, maxRetry int) *Enqueuer {
	return newEnqueuer(client, queue, maxRetry)
}

func newEnqueuer(client taskEnqueuer, queue string, maxRetry int) *Enqueuer {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Enqueuer{client: client, queue: queue, maxRetry: maxRetry}
}

func (e *Enqueuer) NotifyInvitation(ctx context.Context, user domain.User, meeting domain.Meeting) error {
	task, err := NewInvitationTask(user, meeting)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task)
}

func (e *Enqueuer) NotifyAcceptance(ctx context.Context, organizer, participant domain.User, meeting domain.Meeting) error {
	task, err := NewAcceptanceTask(organizer, participant, meeting)
	if err != nil {
		return err
	}
	return e.enqueue(ctx, task)
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task) error {
	opts := []asynq.Option{asynq.Queue(e.queue)}
	if e.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(e.maxRetry))
	}
	if _, err := e.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}

// Handler turns queued tasks back into calls on a delivering notifier.
type Handler struct {
	sender notify.Notifier
	log    *slog.Logger
}

func NewHandler(sender notify.Notifier, log *slog.Logger) *Handler {
	return &Handler{sender: sender, log: log.With(slog.String("component", "notify.worker"))}
}

func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeInvitation, h.handleInvitation)
	mux.HandleFunc(TypeAcceptance, h.handleAcceptance)
}

func (h *Handler) handleInvitation(ctx context.Context, task *asynq.Task) error {
	var p InvitationPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		h.log.ErrorContext(ctx, "invalid invitation payload", slog.Any("err", err))
		return fmt.Errorf("decode invitation: %v: %w", err, asynq.SkipRetry)
	}
	return h.sender.NotifyInvitation(ctx, p.User.user(), p.Meeting.meeting())
}

func (h *Handler) handleAcceptance(ctx context.Context, task *asynq.Task) error {
	var p AcceptancePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		h.log.ErrorContext(ctx, "invalid acceptance payload", slog.Any("err", err))
		return fmt.Errorf("decode acceptance: %v: %w", err, asynq.SkipRetry)
	}
	return h.sender.NotifyAcceptance(ctx, p.Organizer.user(), p.Participant.user(), p.Meeting.meeting())
}

func userPayload(u domain.User) UserPayload {
	return UserPayload{ID: u.ID, Email: u.Email, Name: u.Name}
}

func (p UserPayload) user() domain.User {
	return domain.User{ID: p.ID, Email: p.Email, Name: p.Name}
}

func meetingPayload(m domain.Meeting) MeetingPayload {
	return MeetingPayload{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		OrganizerID: m.OrganizerID,
		StartTime:   m.StartTime.UTC(),
		EndTime:     m.EndTime.UTC(),
	}
}

func (p MeetingPayload) meeting() domain.Meeting {
	return domain.Meeting{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		OrganizerID: p.OrganizerID,
		StartTime:   p.StartTime,
		EndTime:     p.EndTime,
	}
}
