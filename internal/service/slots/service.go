// Package slots manages the availability slots in each user's calendar.
// Status changes belong to the booking engine; this package only creates,
// re-times, deletes and lists slots.
package slots

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"doodle/backend/internal/domain"
	"doodle/backend/internal/ical"
	"doodle/backend/internal/service"
	"doodle/backend/internal/store"
)

// ErrSlotReserved is returned when re-timing or deleting a slot that a
// meeting currently holds.
var ErrSlotReserved = fmt.Errorf("%w: slot is reserved by a meeting", store.ErrConflict)

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

type CreateInput struct {
	OwnerID   uuid.UUID
	StartTime time.Time
	EndTime   time.Time
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Slot, error) {
	if in.OwnerID == uuid.Nil {
		return domain.Slot{}, service.Validationf("user_id is required")
	}
	iv, err := domain.NewInterval(in.StartTime, in.EndTime)
	if err != nil {
		return domain.Slot{}, err
	}

	var out domain.Slot
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockCalendars(ctx, in.OwnerID); err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, in.OwnerID); err != nil {
			return service.NotFound(err, service.ErrUserNotFound)
		}
		sl, err := tx.CreateSlot(ctx, domain.Slot{
			OwnerID:   in.OwnerID,
			StartTime: iv.Start,
			EndTime:   iv.End,
			Status:    domain.SlotStatusAvailable,
		})
		if err != nil {
			return service.NotFound(err, service.ErrUserNotFound)
		}
		out = sl
		return nil
	})
	if err != nil {
		return domain.Slot{}, err
	}
	return out, nil
}

// maxWeeklyWindow bounds how far a weekly pattern is expanded in one call.
const maxWeeklyWindow = 366 * 24 * time.Hour

type WeeklyInput struct {
	OwnerID     uuid.UUID
	Pattern     domain.WeeklyAvailability
	WindowStart time.Time
	WindowEnd   time.Time
}

// CreateWeekly stores every occurrence of a weekly pattern inside the window
// as an available slot. Either all slots are created or none.
func (s *Service) CreateWeekly(ctx context.Context, in WeeklyInput) ([]domain.Slot, error) {
	if in.OwnerID == uuid.Nil {
		return nil, service.Validationf("user_id is required")
	}
	window, err := domain.NewInterval(in.WindowStart, in.WindowEnd)
	if err != nil {
		return nil, service.Validationf("window_end must be after window_start")
	}
	if window.Duration() > maxWeeklyWindow {
		return nil, service.Validationf("window must not exceed 366 days")
	}
	occurrences, err := in.Pattern.Occurrences(window)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPattern) || errors.Is(err, domain.ErrTooManyOccurrences) {
			return nil, service.Validationf("%v", err)
		}
		return nil, err
	}

	out := make([]domain.Slot, 0, len(occurrences))
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockCalendars(ctx, in.OwnerID); err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, in.OwnerID); err != nil {
			return service.NotFound(err, service.ErrUserNotFound)
		}
		for _, iv := range occurrences {
			sl, err := tx.CreateSlot(ctx, domain.Slot{
				OwnerID:   in.OwnerID,
				StartTime: iv.Start,
				EndTime:   iv.End,
				Status:    domain.SlotStatusAvailable,
			})
			if err != nil {
				return err
			}
			out = append(out, sl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Slot, error) {
	if id == uuid.Nil {
		return domain.Slot{}, service.Validationf("slot_id is required")
	}
	sl, err := s.store.GetSlot(ctx, id)
	return sl, service.NotFound(err, service.ErrSlotNotFound)
}

type UpdateInput struct {
	ID        uuid.UUID
	StartTime time.Time
	EndTime   time.Time
}

func (s *Service) Update(ctx context.Context, in UpdateInput) (domain.Slot, error) {
	if in.ID == uuid.Nil {
		return domain.Slot{}, service.Validationf("slot_id is required")
	}
	iv, err := domain.NewInterval(in.StartTime, in.EndTime)
	if err != nil {
		return domain.Slot{}, err
	}

	var out domain.Slot
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := s.lockedUnreservedSlot(ctx, tx, in.ID); err != nil {
			return err
		}
		sl, err := tx.UpdateSlotTimes(ctx, in.ID, iv)
		if err != nil {
			return service.NotFound(err, service.ErrSlotNotFound)
		}
		out = sl
		return nil
	})
	if err != nil {
		return domain.Slot{}, err
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return service.Validationf("slot_id is required")
	}
	return s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := s.lockedUnreservedSlot(ctx, tx, id); err != nil {
			return err
		}
		return service.NotFound(tx.DeleteSlot(ctx, id), service.ErrSlotNotFound)
	})
}

// lockedUnreservedSlot locks the slot owner's calendar and re-reads the slot
// under the lock.
func (s *Service) lockedUnreservedSlot(ctx context.Context, tx store.Tx, id uuid.UUID) (domain.Slot, error) {
	sl, err := tx.GetSlot(ctx, id)
	if err != nil {
		return domain.Slot{}, service.NotFound(err, service.ErrSlotNotFound)
	}
	if err := tx.LockCalendars(ctx, sl.OwnerID); err != nil {
		return domain.Slot{}, err
	}
	sl, err = tx.GetSlot(ctx, id)
	if err != nil {
		return domain.Slot{}, service.NotFound(err, service.ErrSlotNotFound)
	}
	if sl.Status != domain.SlotStatusAvailable || sl.MeetingID != nil {
		return domain.Slot{}, ErrSlotReserved
	}
	return sl, nil
}

func (s *Service) ListByUser(ctx context.Context, ownerID uuid.UUID) ([]domain.Slot, error) {
	return s.list(ctx, ownerID, store.SlotFilter{})
}

func (s *Service) ListByStatus(ctx context.Context, ownerID uuid.UUID, status domain.SlotStatus) ([]domain.Slot, error) {
	if !status.Valid() {
		return nil, service.Validationf("unknown slot status %q", status)
	}
	return s.list(ctx, ownerID, store.SlotFilter{Status: status})
}

// ListInRange returns the owner's slots that lie entirely inside the window.
func (s *Service) ListInRange(ctx context.Context, ownerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error) {
	window, err := domain.NewInterval(windowStart, windowEnd)
	if err != nil {
		return nil, service.Validationf("window_end must be after window_start")
	}
	return s.list(ctx, ownerID, store.SlotFilter{Within: &window})
}

func (s *Service) list(ctx context.Context, ownerID uuid.UUID, filter store.SlotFilter) ([]domain.Slot, error) {
	if ownerID == uuid.Nil {
		return nil, service.Validationf("user_id is required")
	}
	if _, err := s.store.GetUser(ctx, ownerID); err != nil {
		return nil, service.NotFound(err, service.ErrUserNotFound)
	}
	return s.store.ListSlots(ctx, ownerID, filter)
}

// ExportCalendar writes the owner's slots to w as an iCalendar feed. Reserved
// slots are titled after the meeting holding them.
func (s *Service) ExportCalendar(ctx context.Context, ownerID uuid.UUID, w io.Writer) error {
	if ownerID == uuid.Nil {
		return service.Validationf("user_id is required")
	}
	owner, err := s.store.GetUser(ctx, ownerID)
	if err != nil {
		return service.NotFound(err, service.ErrUserNotFound)
	}
	slots, err := s.store.ListSlots(ctx, ownerID, store.SlotFilter{})
	if err != nil {
		return err
	}

	titles := make(map[uuid.UUID]string)
	entries := make([]ical.Entry, 0, len(slots))
	for _, sl := range slots {
		e := ical.Entry{Slot: sl}
		if sl.MeetingID != nil {
			title, ok := titles[*sl.MeetingID]
			if !ok {
				m, err := s.store.GetMeeting(ctx, *sl.MeetingID)
				switch {
				case err == nil:
					title = m.Title
				case !errors.Is(err, store.ErrNotFound):
					return err
				}
				titles[*sl.MeetingID] = title
			}
			e.Summary = title
		}
		entries = append(entries, e)
	}
	return ical.Encode(w, owner, entries, s.now())
}
