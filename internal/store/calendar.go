package store

import (
	"context"

	"github.com/google/uuid"

	"doodle/backend/internal/domain"
)

// Tx is the transactional view of the store. Reads observe writes made
// earlier through the same Tx.
//
// Locks are held until the transaction ends. Callers take meeting locks
// before calendar locks and lock all calendars they need in one
// LockCalendars call.
type Tx interface {
	Reader

	LockMeeting(ctx context.Context, meetingID uuid.UUID) error
	LockCalendars(ctx context.Context, userIDs ...uuid.UUID) error

	// CreateUser inserts the user together with its calendar.
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	UpdateUser(ctx context.Context, u domain.User) (domain.User, error)
	// DeleteUser removes the user, its calendar and every slot in it.
	DeleteUser(ctx context.Context, id uuid.UUID) error

	CreateSlot(ctx context.Context, s domain.Slot) (domain.Slot, error)
	UpdateSlotTimes(ctx context.Context, id uuid.UUID, iv domain.Interval) (domain.Slot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error
	// TransitionSlot moves slot to status `to`. The write only succeeds while
	// the stored status still equals slot.Status; otherwise ErrConflict.
	TransitionSlot(ctx context.Context, slot domain.Slot, to domain.SlotStatus, meetingID uuid.UUID) (domain.Slot, error)

	// CreateMeeting inserts the meeting and its ParticipantIDs.
	CreateMeeting(ctx context.Context, m domain.Meeting) (domain.Meeting, error)
	UpdateMeeting(ctx context.Context, m domain.Meeting) (domain.Meeting, error)
	DeleteMeeting(ctx context.Context, id uuid.UUID) error
	AddParticipant(ctx context.Context, meetingID, userID uuid.UUID) error
	RemoveParticipant(ctx context.Context, meetingID, userID uuid.UUID) error
}
