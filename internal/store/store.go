package store

import (
	"context"

	"github.com/google/uuid"

	"doodle/backend/internal/domain"
)

// SlotFilter narrows ListSlots. Zero values mean "any".
type SlotFilter struct {
	Status domain.SlotStatus
	Within *domain.Interval
}

type Reader interface {
	GetUser(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetCalendarByUser(ctx context.Context, userID uuid.UUID) (domain.Calendar, error)

	GetSlot(ctx context.Context, id uuid.UUID) (domain.Slot, error)
	ListSlots(ctx context.Context, ownerID uuid.UUID, filter SlotFilter) ([]domain.Slot, error)
	// FindReservable returns the owner's slots with the given status whose
	// interval overlaps window, ordered by start, end, id.
	FindReservable(ctx context.Context, ownerID uuid.UUID, window domain.Interval, status domain.SlotStatus) ([]domain.Slot, error)
	FindBoundSlot(ctx context.Context, ownerID, meetingID uuid.UUID) (domain.Slot, error)

	GetMeeting(ctx context.Context, id uuid.UUID) (domain.Meeting, error)
	ListMeetingsByOrganizer(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error)
	ListMeetingsByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error)
}

type Store interface {
	Reader

	// InTransaction runs fn in a single transaction. Any error returned by fn
	// rolls back every write made through tx.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
