// Package memory is an in-process implementation of store.Store. A
// transaction stages its writes privately and publishes them on commit, so
// readers outside it never observe uncommitted state. The per-key locks taken
// through LockMeeting and LockCalendars keep concurrent transactions off each
// other's calendars.
package memory

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"doodle/backend/internal/domain"
	"doodle/backend/internal/store"
)

type Store struct {
	reader

	rw    sync.RWMutex
	locks *keyLocks
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	s := &Store{locks: newKeyLocks()}
	s.reader = reader{
		mu:        &s.rw,
		users:     table[domain.User]{committed: make(map[uuid.UUID]domain.User)},
		calendars: table[domain.Calendar]{committed: make(map[uuid.UUID]domain.Calendar)},
		slots:     table[domain.Slot]{committed: make(map[uuid.UUID]domain.Slot)},
		meetings:  table[domain.Meeting]{committed: make(map[uuid.UUID]domain.Meeting)},
	}
	return s
}

// InTransaction commits the staged writes only when fn returns nil. On error
// or panic they are dropped.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := s.begin()
	defer t.releaseLocks()
	if err := fn(ctx, t); err != nil {
		return err
	}
	return t.commit()
}

// table is a committed map plus the writes staged by one transaction. A nil
// staged value marks a delete. The Store's own table has no staged map.
type table[V any] struct {
	committed map[uuid.UUID]V
	staged    map[uuid.UUID]*V
	inserted  map[uuid.UUID]struct{}
}

func (t table[V]) stage() table[V] {
	return table[V]{
		committed: t.committed,
		staged:    make(map[uuid.UUID]*V),
		inserted:  make(map[uuid.UUID]struct{}),
	}
}

func (t table[V]) get(id uuid.UUID) (V, bool) {
	if v, ok := t.staged[id]; ok {
		if v == nil {
			var zero V
			return zero, false
		}
		return *v, true
	}
	v, ok := t.committed[id]
	return v, ok
}

func (t table[V]) each(fn func(V)) {
	for id, v := range t.committed {
		if _, ok := t.staged[id]; !ok {
			fn(v)
		}
	}
	for _, v := range t.staged {
		if v != nil {
			fn(*v)
		}
	}
}

func (t table[V]) put(id uuid.UUID, v V) { t.staged[id] = &v }

func (t table[V]) insert(id uuid.UUID, v V) {
	t.inserted[id] = struct{}{}
	t.put(id, v)
}

func (t table[V]) del(id uuid.UUID) { t.staged[id] = nil }

// clashes reports whether a row this transaction inserted was committed by
// another transaction in the meantime. Callers hold the write lock.
func (t table[V]) clashes() bool {
	for id := range t.inserted {
		if _, ok := t.committed[id]; ok {
			return true
		}
	}
	return false
}

func (t table[V]) publish() {
	for id, v := range t.staged {
		if v == nil {
			delete(t.committed, id)
		} else {
			t.committed[id] = *v
		}
	}
}

// reader serves store.Reader from a set of tables. Every method holds mu for
// reading while it touches committed maps.
type reader struct {
	mu        *sync.RWMutex
	users     table[domain.User]
	calendars table[domain.Calendar]
	slots     table[domain.Slot]
	meetings  table[domain.Meeting]
}

func (r *reader) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users.get(id)
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *reader) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.userByEmail(email, uuid.Nil)
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

// userByEmail finds a user with the email other than except. Callers hold mu.
func (r *reader) userByEmail(email string, except uuid.UUID) (domain.User, bool) {
	var (
		found domain.User
		ok    bool
	)
	r.users.each(func(u domain.User) {
		if !ok && u.ID != except && strings.EqualFold(u.Email, email) {
			found, ok = u, true
		}
	})
	return found, ok
}

func (r *reader) ListUsers(ctx context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.User
	r.users.each(func(u domain.User) { out = append(out, u) })
	sort.Slice(out, func(i, j int) bool {
		if out[i].Email != out[j].Email {
			return out[i].Email < out[j].Email
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out, nil
}

func (r *reader) GetCalendarByUser(ctx context.Context, userID uuid.UUID) (domain.Calendar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.calendars.get(userID)
	if !ok {
		return domain.Calendar{}, store.ErrNotFound
	}
	return c, nil
}

func (r *reader) GetSlot(ctx context.Context, id uuid.UUID) (domain.Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sl, ok := r.slots.get(id)
	if !ok {
		return domain.Slot{}, store.ErrNotFound
	}
	return cloneSlot(sl), nil
}

func (r *reader) ListSlots(ctx context.Context, ownerID uuid.UUID, filter store.SlotFilter) ([]domain.Slot, error) {
	return r.selectSlots(func(sl domain.Slot) bool {
		if sl.OwnerID != ownerID {
			return false
		}
		if filter.Status != "" && sl.Status != filter.Status {
			return false
		}
		if filter.Within != nil && !sl.Interval().Within(*filter.Within) {
			return false
		}
		return true
	}), nil
}

func (r *reader) FindReservable(ctx context.Context, ownerID uuid.UUID, window domain.Interval, status domain.SlotStatus) ([]domain.Slot, error) {
	return r.selectSlots(func(sl domain.Slot) bool {
		return sl.OwnerID == ownerID && sl.Status == status && sl.Interval().Overlaps(window)
	}), nil
}

func (r *reader) FindBoundSlot(ctx context.Context, ownerID, meetingID uuid.UUID) (domain.Slot, error) {
	found := r.selectSlots(func(sl domain.Slot) bool {
		return sl.OwnerID == ownerID && sl.BoundTo(meetingID)
	})
	if len(found) == 0 {
		return domain.Slot{}, store.ErrNotFound
	}
	return found[0], nil
}

func (r *reader) GetMeeting(ctx context.Context, id uuid.UUID) (domain.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.meetings.get(id)
	if !ok {
		return domain.Meeting{}, store.ErrNotFound
	}
	return cloneMeeting(m), nil
}

func (r *reader) ListMeetingsByOrganizer(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error) {
	return r.selectMeetings(func(m domain.Meeting) bool { return m.OrganizerID == userID }), nil
}

func (r *reader) ListMeetingsByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error) {
	return r.selectMeetings(func(m domain.Meeting) bool { return m.HasParticipant(userID) }), nil
}

func (r *reader) selectSlots(keep func(domain.Slot) bool) []domain.Slot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Slot
	r.slots.each(func(sl domain.Slot) {
		if keep(sl) {
			out = append(out, cloneSlot(sl))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		if !a.EndTime.Equal(b.EndTime) {
			return a.EndTime.Before(b.EndTime)
		}
		return lessID(a.ID, b.ID)
	})
	return out
}

func (r *reader) selectMeetings(keep func(domain.Meeting) bool) []domain.Meeting {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Meeting
	r.meetings.each(func(m domain.Meeting) {
		if keep(m) {
			out = append(out, cloneMeeting(m))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return lessID(out[i].ID, out[j].ID)
	})
	return out
}

func lessID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func cloneSlot(s domain.Slot) domain.Slot {
	if s.MeetingID != nil {
		id := *s.MeetingID
		s.MeetingID = &id
	}
	return s
}

func cloneMeeting(m domain.Meeting) domain.Meeting {
	m.ParticipantIDs = append([]uuid.UUID(nil), m.ParticipantIDs...)
	return m
}
