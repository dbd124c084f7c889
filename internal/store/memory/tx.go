package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"doodle/backend/internal/domain"
	"doodle/backend/internal/store"
)

type tx struct {
	reader

	store *Store
	held  map[string]struct{}
	order []string
}

func (s *Store) begin() *tx {
	return &tx{
		reader: reader{
			mu:        &s.rw,
			users:     s.users.stage(),
			calendars: s.calendars.stage(),
			slots:     s.slots.stage(),
			meetings:  s.meetings.stage(),
		},
		store: s,
		held:  make(map[string]struct{}),
	}
}

// commit publishes the staged writes atomically. Email uniqueness and
// inserted ids are not guarded by a key lock, so they are checked again
// against what other transactions committed in the meantime.
func (t *tx) commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.users.clashes() || t.calendars.clashes() || t.slots.clashes() || t.meetings.clashes() {
		return store.ErrConflict
	}
	for id, u := range t.users.staged {
		if u == nil {
			continue
		}
		if _, taken := t.userByEmail(u.Email, id); taken {
			return store.ErrConflict
		}
	}
	t.users.publish()
	t.calendars.publish()
	t.slots.publish()
	t.meetings.publish()
	return nil
}

func (t *tx) LockMeeting(ctx context.Context, meetingID uuid.UUID) error {
	return t.lock(ctx, "meeting:"+meetingID.String())
}

func (t *tx) LockCalendars(ctx context.Context, userIDs ...uuid.UUID) error {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, "calendar:"+id.String())
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := t.lock(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	if err := t.store.locks.lock(ctx, key); err != nil {
		return err
	}
	t.held[key] = struct{}{}
	t.order = append(t.order, key)
	return nil
}

func (t *tx) releaseLocks() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.store.locks.unlock(t.order[i])
	}
	t.order = nil
}

func (t *tx) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, taken := t.userByEmail(u.Email, uuid.Nil); taken {
		return domain.User{}, store.ErrConflict
	}
	if u.ID == uuid.Nil {
		u.ID = newID()
	}
	if _, ok := t.users.get(u.ID); ok {
		return domain.User{}, store.ErrConflict
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	t.users.insert(u.ID, u)
	t.calendars.insert(u.ID, domain.Calendar{ID: newID(), UserID: u.ID, CreatedAt: now})
	return u, nil
}

func (t *tx) UpdateUser(ctx context.Context, u domain.User) (domain.User, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	existing, ok := t.users.get(u.ID)
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	if _, taken := t.userByEmail(u.Email, u.ID); taken {
		return domain.User{}, store.ErrConflict
	}
	existing.Email = u.Email
	existing.Name = u.Name
	existing.UpdatedAt = time.Now().UTC()
	t.users.put(u.ID, existing)
	return existing, nil
}

func (t *tx) DeleteUser(ctx context.Context, id uuid.UUID) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.users.get(id); !ok {
		return store.ErrNotFound
	}
	var owned []uuid.UUID
	t.slots.each(func(sl domain.Slot) {
		if sl.OwnerID == id {
			owned = append(owned, sl.ID)
		}
	})
	for _, slotID := range owned {
		t.slots.del(slotID)
	}
	t.calendars.del(id)
	t.users.del(id)
	return nil
}

func (t *tx) CreateSlot(ctx context.Context, s domain.Slot) (domain.Slot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cal, ok := t.calendars.get(s.OwnerID)
	if !ok {
		return domain.Slot{}, store.ErrNotFound
	}
	if s.ID == uuid.Nil {
		s.ID = newID()
	}
	if s.Status == "" {
		s.Status = domain.SlotStatusAvailable
	}
	now := time.Now().UTC()
	s.CalendarID = cal.ID
	s.CreatedAt, s.UpdatedAt = now, now
	t.slots.insert(s.ID, cloneSlot(s))
	return s, nil
}

func (t *tx) UpdateSlotTimes(ctx context.Context, id uuid.UUID, iv domain.Interval) (domain.Slot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sl, ok := t.slots.get(id)
	if !ok {
		return domain.Slot{}, store.ErrNotFound
	}
	sl.StartTime, sl.EndTime = iv.Start, iv.End
	sl.UpdatedAt = time.Now().UTC()
	t.slots.put(id, sl)
	return cloneSlot(sl), nil
}

func (t *tx) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.slots.get(id); !ok {
		return store.ErrNotFound
	}
	t.slots.del(id)
	return nil
}

func (t *tx) TransitionSlot(ctx context.Context, slot domain.Slot, to domain.SlotStatus, meetingID uuid.UUID) (domain.Slot, error) {
	next, err := slot.Transition(to, meetingID)
	if err != nil {
		return domain.Slot{}, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	current, ok := t.slots.get(slot.ID)
	if !ok {
		return domain.Slot{}, store.ErrNotFound
	}
	if current.Status != slot.Status {
		return domain.Slot{}, store.ErrConflict
	}
	current.Status = next.Status
	current.MeetingID = next.MeetingID
	current.UpdatedAt = time.Now().UTC()
	t.slots.put(slot.ID, cloneSlot(current))
	return cloneSlot(current), nil
}

func (t *tx) CreateMeeting(ctx context.Context, m domain.Meeting) (domain.Meeting, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if m.ID == uuid.Nil {
		m.ID = newID()
	}
	if _, ok := t.meetings.get(m.ID); ok {
		return domain.Meeting{}, store.ErrConflict
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	m = cloneMeeting(m)
	t.meetings.insert(m.ID, m)
	return cloneMeeting(m), nil
}

func (t *tx) UpdateMeeting(ctx context.Context, m domain.Meeting) (domain.Meeting, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	existing, ok := t.meetings.get(m.ID)
	if !ok {
		return domain.Meeting{}, store.ErrNotFound
	}
	existing = cloneMeeting(existing)
	existing.Title = m.Title
	existing.Description = m.Description
	existing.SlotID = m.SlotID
	existing.StartTime = m.StartTime
	existing.EndTime = m.EndTime
	existing.UpdatedAt = time.Now().UTC()
	t.meetings.put(m.ID, existing)
	return cloneMeeting(existing), nil
}

func (t *tx) DeleteMeeting(ctx context.Context, id uuid.UUID) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.meetings.get(id); !ok {
		return store.ErrNotFound
	}
	t.meetings.del(id)
	return nil
}

func (t *tx) AddParticipant(ctx context.Context, meetingID, userID uuid.UUID) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.meetings.get(meetingID)
	if !ok {
		return store.ErrNotFound
	}
	if m.HasParticipant(userID) {
		return nil
	}
	m = cloneMeeting(m)
	m.ParticipantIDs = append(m.ParticipantIDs, userID)
	t.meetings.put(meetingID, m)
	return nil
}

func (t *tx) RemoveParticipant(ctx context.Context, meetingID, userID uuid.UUID) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.meetings.get(meetingID)
	if !ok {
		return store.ErrNotFound
	}
	kept := make([]uuid.UUID, 0, len(m.ParticipantIDs))
	for _, id := range m.ParticipantIDs {
		if id != userID {
			kept = append(kept, id)
		}
	}
	m.ParticipantIDs = kept
	t.meetings.put(meetingID, m)
	return nil
}

func newID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

type keyLocks struct {
	mu sync.Mutex
	m  map[string]chan struct{}
}

func newKeyLocks() *keyLocks {
	return &keyLocks{m: make(map[string]chan struct{})}
}

func (l *keyLocks) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	ch, ok := l.m[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.m[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *keyLocks) unlock(key string) {
	l.mu.Lock()
	ch := l.m[key]
	l.mu.Unlock()
	<-ch
}
