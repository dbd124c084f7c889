package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "AVAILABLE"
	SlotStatusBooked    SlotStatus = "BOOKED"
	SlotStatusBusy      SlotStatus = "BUSY"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusAvailable, SlotStatusBooked, SlotStatusBusy:
		return true
	}
	return false
}

var ErrInvalidTransition = errors.New("invalid slot status transition")

type TransitionError struct {
	From SlotStatus
	To   SlotStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid slot status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// CanTransition reports whether a slot may move from one status to another.
func CanTransition(from, to SlotStatus) bool {
	switch from {
	case SlotStatusAvailable:
		return to == SlotStatusBooked
	case SlotStatusBooked:
		return to == SlotStatusBusy || to == SlotStatusAvailable
	case SlotStatusBusy:
		return to == SlotStatusAvailable
	}
	return false
}

type Slot struct {
	bun.BaseModel `bun:"table:slots"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	CalendarID uuid.UUID  `bun:"calendar_id,notnull,type:uuid"`
	OwnerID    uuid.UUID  `bun:"owner_id,notnull,type:uuid"`
	StartTime  time.Time  `bun:"start_time,notnull"`
	EndTime    time.Time  `bun:"end_time,notnull"`
	Status     SlotStatus `bun:"status,notnull"`
	MeetingID  *uuid.UUID `bun:"meeting_id,type:uuid"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull"`
}

func (s *Slot) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.Status == "" {
			s.Status = SlotStatusAvailable
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.StartTime, End: s.EndTime}
}

func (s Slot) BoundTo(meetingID uuid.UUID) bool {
	return s.MeetingID != nil && *s.MeetingID == meetingID
}

// Consistent reports whether the status agrees with the meeting reference:
// AVAILABLE exactly when no meeting occupies the slot.
func (s Slot) Consistent() bool {
	if s.Status == SlotStatusAvailable {
		return s.MeetingID == nil
	}
	return s.MeetingID != nil && s.Status.Valid()
}

// Transition returns a copy of s moved to the given status. Booking binds
// meetingID, releasing clears it, accepting keeps the current binding.
func (s Slot) Transition(to SlotStatus, meetingID uuid.UUID) (Slot, error) {
	if !CanTransition(s.Status, to) {
		return Slot{}, &TransitionError{From: s.Status, To: to}
	}
	switch to {
	case SlotStatusAvailable:
		s.MeetingID = nil
	case SlotStatusBooked:
		if meetingID == uuid.Nil {
			return Slot{}, errors.New("booking a slot requires a meeting id")
		}
		id := meetingID
		s.MeetingID = &id
	}
	s.Status = to
	return s, nil
}
