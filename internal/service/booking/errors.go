package booking

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"doodle/backend/internal/domain"
	"doodle/backend/internal/service"
)

var (
	ErrSlotNotFound    = service.ErrSlotNotFound
	ErrMeetingNotFound = service.ErrMeetingNotFound
	ErrUserNotFound    = service.ErrUserNotFound

	ErrNoMatchingSlot  = errors.New("no matching slot")
	ErrNotAParticipant = errors.New("user is not a participant of the meeting")
)

// NoMatchingSlotError names the user whose calendar had no available slot
// for the meeting interval.
type NoMatchingSlotError struct {
	UserID uuid.UUID
	Target domain.Interval
}

func (e *NoMatchingSlotError) Error() string {
	return fmt.Sprintf("no available slot for user %s overlapping %s - %s",
		e.UserID, e.Target.Start.Format("2006-01-02T15:04:05Z07:00"), e.Target.End.Format("2006-01-02T15:04:05Z07:00"))
}

func (e *NoMatchingSlotError) Is(target error) bool {
	return target == ErrNoMatchingSlot
}

func userNotFound(id uuid.UUID) error {
	return fmt.Errorf("%w: %s", ErrUserNotFound, id)
}
