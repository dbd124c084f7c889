// Package notify delivers meeting notifications outside the request path.
package notify

import (
	"context"
	"log/slog"

	"doodle/backend/internal/domain"
)

// Notifier is the outbound notification hook.
type Notifier interface {
	NotifyInvitation(ctx context.Context, user domain.User, meeting domain.Meeting) error
	NotifyAcceptance(ctx context.Context, organizer, participant domain.User, meeting domain.Meeting) error
}

// LogSender writes notifications to the log. It is the sender used when no
// delivery channel is configured.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log.With(slog.String("component", "notify"))}
}

func (s *LogSender) NotifyInvitation(ctx context.Context, user domain.User, meeting domain.Meeting) error {
	s.log.InfoContext(ctx, "meeting invitation",
		slog.String("meeting_id", meeting.ID.String()),
		slog.String("title", meeting.Title),
		slog.String("user_id", user.ID.String()),
		slog.String("email", user.Email),
		slog.Time("start_time", meeting.StartTime),
		slog.Time("end_time", meeting.EndTime),
	)
	return nil
}

func (s *LogSender) NotifyAcceptance(ctx context.Context, organizer, participant domain.User, meeting domain.Meeting) error {
	s.log.InfoContext(ctx, "meeting invitation accepted",
		slog.String("meeting_id", meeting.ID.String()),
		slog.String("title", meeting.Title),
		slog.String("organizer_email", organizer.Email),
		slog.String("participant_id", participant.ID.String()),
		slog.String("participant_email", participant.Email),
	)
	return nil
}
