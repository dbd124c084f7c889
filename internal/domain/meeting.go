package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Meeting is organized around a canonical interval, a snapshot of the
// canonical slot's bounds taken when the slot was assigned. Participants are
// stored in meeting_participants; the organizer is always one of them.
type Meeting struct {
	bun.BaseModel `bun:"table:meetings"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	Title       string    `bun:"title,notnull"`
	Description string    `bun:"description"`
	OrganizerID uuid.UUID `bun:"organizer_id,notnull,type:uuid"`
	SlotID      uuid.UUID `bun:"slot_id,notnull,type:uuid"`
	StartTime   time.Time `bun:"start_time,notnull"`
	EndTime     time.Time `bun:"end_time,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`

	ParticipantIDs []uuid.UUID `bun:"-"`
}

func (m *Meeting) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if m.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			m.ID = id
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		m.UpdatedAt = now
	}
	return nil
}

func (m Meeting) Interval() Interval {
	return Interval{Start: m.StartTime, End: m.EndTime}
}

func (m Meeting) HasParticipant(userID uuid.UUID) bool {
	for _, id := range m.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type MeetingParticipant struct {
	bun.BaseModel `bun:"table:meeting_participants"`

	MeetingID uuid.UUID `bun:"meeting_id,pk,type:uuid"`
	UserID    uuid.UUID `bun:"user_id,pk,type:uuid"`
	AddedAt   time.Time `bun:"added_at,notnull"`
}

func (p *MeetingParticipant) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && p.AddedAt.IsZero() {
		p.AddedAt = time.Now().UTC()
	}
	return nil
}
