// Package booking runs the meeting lifecycle: it reserves one matching slot
// in every participant's calendar, releases them again, and moves them
// through the slot state machine.
//
// Each operation is a single store transaction. The meeting is locked first,
// then every calendar the operation touches in one sorted batch, so two
// operations never reserve the same slot. Losing a race surfaces as
// store.ErrConflict, which is retried a bounded number of times.
// Notifications are sent only after the transaction committed.
package booking

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"doodle/backend/internal/domain"
	"doodle/backend/internal/notify"
	"doodle/backend/internal/service"
	"doodle/backend/internal/store"
)

const maxIdempotencyKeyLen = 256

type Config struct {
	MaxConflictRetries int
	ConflictBackoff    time.Duration
}

type Service struct {
	store    store.Store
	notifier notify.Notifier
	log      *slog.Logger
	cfg      Config
}

// NewService builds the booking engine. notifier is called on the caller's
// goroutine once a transaction has committed and must not block; wrap slow
// senders in notify.Dispatcher. A nil notifier disables notifications.
func NewService(st store.Store, notifier notify.Notifier, log *slog.Logger, cfg Config) *Service {
	if cfg.MaxConflictRetries < 0 {
		cfg.MaxConflictRetries = 0
	}
	return &Service{
		store:    st,
		notifier: notifier,
		log:      log.With(slog.String("component", "booking")),
		cfg:      cfg,
	}
}

// outbox collects notifications produced inside a transaction.
type outbox []func(ctx context.Context, n notify.Notifier) error

func (o *outbox) invite(user domain.User, meeting domain.Meeting) {
	*o = append(*o, func(ctx context.Context, n notify.Notifier) error {
		return n.NotifyInvitation(ctx, user, meeting)
	})
}

func (o *outbox) accepted(organizer, participant domain.User, meeting domain.Meeting) {
	*o = append(*o, func(ctx context.Context, n notify.Notifier) error {
		return n.NotifyAcceptance(ctx, organizer, participant, meeting)
	})
}

// run executes fn in a transaction, retrying on store.ErrConflict, and sends
// the collected notifications once a transaction commits.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx, out *outbox) error) error {
	for attempt := 0; ; attempt++ {
		var out outbox
		err := s.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
			return fn(ctx, tx, &out)
		})
		if err == nil {
			s.send(ctx, op, out)
			return nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= s.cfg.MaxConflictRetries {
			return err
		}

		s.log.DebugContext(ctx, "retrying after conflict",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Any("err", err),
		)
		if err := sleep(ctx, s.cfg.ConflictBackoff*time.Duration(attempt+1)); err != nil {
			return err
		}
	}
}

func (s *Service) send(ctx context.Context, op string, out outbox) {
	if s.notifier == nil {
		return
	}
	for _, n := range out {
		if err := n(ctx, s.notifier); err != nil {
			s.log.WarnContext(ctx, "notification not sent", slog.String("op", op), slog.Any("err", err))
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type CreateMeetingInput struct {
	Title          string
	Description    string
	OrganizerID    uuid.UUID
	SlotID         uuid.UUID
	ParticipantIDs []uuid.UUID
	IdempotencyKey string
}

// CreateMeeting creates the meeting and books one slot overlapping the
// canonical slot's interval for the organizer and every participant. If any
// of them has no available slot nothing is persisted.
func (s *Service) CreateMeeting(ctx context.Context, in CreateMeetingInput) (domain.Meeting, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Meeting{}, service.Validationf("title is required")
	}
	if in.OrganizerID == uuid.Nil {
		return domain.Meeting{}, service.Validationf("organizer_id is required")
	}
	if in.SlotID == uuid.Nil {
		return domain.Meeting{}, service.Validationf("slot_id is required")
	}
	for _, id := range in.ParticipantIDs {
		if id == uuid.Nil {
			return domain.Meeting{}, service.Validationf("participant_ids must not contain empty ids")
		}
	}

	members := memberSet(in.OrganizerID, in.ParticipantIDs)
	meetingID, err := newMeetingID(in.OrganizerID, in.IdempotencyKey)
	if err != nil {
		return domain.Meeting{}, err
	}

	var created domain.Meeting
	err = s.run(ctx, "create_meeting", func(ctx context.Context, tx store.Tx, out *outbox) error {
		if err := tx.LockMeeting(ctx, meetingID); err != nil {
			return err
		}
		if in.IdempotencyKey != "" {
			existing, err := tx.GetMeeting(ctx, meetingID)
			switch {
			case err == nil:
				if !sameMeeting(existing, title, in, members) {
					return store.ErrIdempotencyConflict
				}
				created = existing
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		canonical, err := tx.GetSlot(ctx, in.SlotID)
		if err != nil {
			return service.NotFound(err, ErrSlotNotFound)
		}
		users, err := loadUsers(ctx, tx, members)
		if err != nil {
			return err
		}
		if err := tx.LockCalendars(ctx, members...); err != nil {
			return err
		}

		m, err := tx.CreateMeeting(ctx, domain.Meeting{
			ID:             meetingID,
			Title:          title,
			Description:    in.Description,
			OrganizerID:    in.OrganizerID,
			SlotID:         canonical.ID,
			StartTime:      canonical.StartTime,
			EndTime:        canonical.EndTime,
			ParticipantIDs: members,
		})
		if err != nil {
			return err
		}

		for _, id := range members {
			if err := reserve(ctx, tx, id, m); err != nil {
				return err
			}
		}

		for _, u := range users {
			out.invite(u, m)
		}
		created = m
		return nil
	})
	if err != nil {
		return domain.Meeting{}, err
	}
	return created, nil
}

type UpdateMeetingInput struct {
	ID          uuid.UUID
	Title       string
	Description string
	// SlotID replaces the canonical slot when set and different from the
	// current one. Bound participant slots are not re-matched.
	SlotID uuid.UUID
}

func (s *Service) UpdateMeeting(ctx context.Context, in UpdateMeetingInput) (domain.Meeting, error) {
	if in.ID == uuid.Nil {
		return domain.Meeting{}, service.Validationf("meeting_id is required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Meeting{}, service.Validationf("title is required")
	}

	var updated domain.Meeting
	err := s.run(ctx, "update_meeting", func(ctx context.Context, tx store.Tx, out *outbox) error {
		m, err := lockedMeeting(ctx, tx, in.ID)
		if err != nil {
			return err
		}
		m.Title = title
		m.Description = in.Description
		if in.SlotID != uuid.Nil && in.SlotID != m.SlotID {
			canonical, err := tx.GetSlot(ctx, in.SlotID)
			if err != nil {
				return service.NotFound(err, ErrSlotNotFound)
			}
			m.SlotID = canonical.ID
			m.StartTime, m.EndTime = canonical.StartTime, canonical.EndTime
		}

		m, err = tx.UpdateMeeting(ctx, m)
		if err != nil {
			return service.NotFound(err, ErrMeetingNotFound)
		}

		for _, id := range m.ParticipantIDs {
			u, err := tx.GetUser(ctx, id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				return err
			}
			out.invite(u, m)
		}
		updated = m
		return nil
	})
	if err != nil {
		return domain.Meeting{}, err
	}
	return updated, nil
}

// DeleteMeeting releases every participant's reserved slot and removes the
// meeting. Participants without a bound slot are skipped.
func (s *Service) DeleteMeeting(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return service.Validationf("meeting_id is required")
	}
	return s.run(ctx, "delete_meeting", func(ctx context.Context, tx store.Tx, out *outbox) error {
		m, err := lockedMeeting(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.LockCalendars(ctx, m.ParticipantIDs...); err != nil {
			return err
		}
		for _, p := range m.ParticipantIDs {
			if err := release(ctx, tx, p, m.ID); err != nil {
				return err
			}
		}
		return service.NotFound(tx.DeleteMeeting(ctx, m.ID), ErrMeetingNotFound)
	})
}

// AddParticipant books a slot for userID and adds them to the meeting. Adding
// an existing participant returns the meeting unchanged.
func (s *Service) AddParticipant(ctx context.Context, meetingID, userID uuid.UUID) (domain.Meeting, error) {
	if err := requireIDs(meetingID, userID); err != nil {
		return domain.Meeting{}, err
	}

	var result domain.Meeting
	err := s.run(ctx, "add_participant", func(ctx context.Context, tx store.Tx, out *outbox) error {
		m, err := lockedMeeting(ctx, tx, meetingID)
		if err != nil {
			return err
		}
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return service.NotFound(err, userNotFound(userID))
		}
		if m.HasParticipant(userID) {
			result = m
			return nil
		}

		if err := tx.LockCalendars(ctx, userID); err != nil {
			return err
		}
		if err := reserve(ctx, tx, userID, m); err != nil {
			return err
		}
		if err := tx.AddParticipant(ctx, m.ID, userID); err != nil {
			return service.NotFound(err, ErrMeetingNotFound)
		}
		m, err = tx.GetMeeting(ctx, m.ID)
		if err != nil {
			return service.NotFound(err, ErrMeetingNotFound)
		}

		out.invite(u, m)
		result = m
		return nil
	})
	if err != nil {
		return domain.Meeting{}, err
	}
	return result, nil
}

// RemoveParticipant drops userID from the meeting and releases their slot.
// Removing someone who is no longer a participant succeeds. The organizer
// cannot be removed; the meeting has to be deleted instead.
func (s *Service) RemoveParticipant(ctx context.Context, meetingID, userID uuid.UUID) (domain.Meeting, error) {
	if err := requireIDs(meetingID, userID); err != nil {
		return domain.Meeting{}, err
	}

	var result domain.Meeting
	err := s.run(ctx, "remove_participant", func(ctx context.Context, tx store.Tx, out *outbox) error {
		m, err := lockedMeeting(ctx, tx, meetingID)
		if err != nil {
			return err
		}
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return service.NotFound(err, userNotFound(userID))
		}
		if userID == m.OrganizerID {
			return service.Validationf("the organizer cannot be removed; delete the meeting instead")
		}

		if err := tx.LockCalendars(ctx, userID); err != nil {
			return err
		}
		if err := tx.RemoveParticipant(ctx, m.ID, userID); err != nil {
			return service.NotFound(err, ErrMeetingNotFound)
		}
		if err := release(ctx, tx, userID, m.ID); err != nil {
			return err
		}
		m, err = tx.GetMeeting(ctx, m.ID)
		if err != nil {
			return service.NotFound(err, ErrMeetingNotFound)
		}
		result = m
		return nil
	})
	if err != nil {
		return domain.Meeting{}, err
	}
	return result, nil
}

// AcceptInvitation marks the participant's reserved slot BUSY and tells the
// organizer.
func (s *Service) AcceptInvitation(ctx context.Context, meetingID, participantID uuid.UUID) (domain.Meeting, error) {
	if err := requireIDs(meetingID, participantID); err != nil {
		return domain.Meeting{}, err
	}

	var result domain.Meeting
	err := s.run(ctx, "accept_invitation", func(ctx context.Context, tx store.Tx, out *outbox) error {
		m, err := lockedMeeting(ctx, tx, meetingID)
		if err != nil {
			return err
		}
		participant, err := tx.GetUser(ctx, participantID)
		if err != nil {
			return service.NotFound(err, userNotFound(participantID))
		}
		if !m.HasParticipant(participantID) {
			return ErrNotAParticipant
		}

		if err := tx.LockCalendars(ctx, participantID); err != nil {
			return err
		}
		slot, err := tx.FindBoundSlot(ctx, participantID, m.ID)
		if err != nil {
			return service.NotFound(err, ErrSlotNotFound)
		}
		if _, err := tx.TransitionSlot(ctx, slot, domain.SlotStatusBusy, m.ID); err != nil {
			return err
		}

		organizer, err := tx.GetUser(ctx, m.OrganizerID)
		switch {
		case err == nil:
			out.accepted(organizer, participant, m)
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		result = m
		return nil
	})
	if err != nil {
		return domain.Meeting{}, err
	}
	return result, nil
}

func (s *Service) GetMeeting(ctx context.Context, id uuid.UUID) (domain.Meeting, error) {
	if id == uuid.Nil {
		return domain.Meeting{}, service.Validationf("meeting_id is required")
	}
	m, err := s.store.GetMeeting(ctx, id)
	return m, service.NotFound(err, ErrMeetingNotFound)
}

func (s *Service) ListByOrganizer(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListMeetingsByOrganizer(ctx, userID)
}

func (s *Service) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListMeetingsByParticipant(ctx, userID)
}

func (s *Service) requireUser(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return service.Validationf("user_id is required")
	}
	_, err := s.store.GetUser(ctx, userID)
	return service.NotFound(err, userNotFound(userID))
}

func lockedMeeting(ctx context.Context, tx store.Tx, id uuid.UUID) (domain.Meeting, error) {
	if err := tx.LockMeeting(ctx, id); err != nil {
		return domain.Meeting{}, err
	}
	m, err := tx.GetMeeting(ctx, id)
	if err != nil {
		return domain.Meeting{}, service.NotFound(err, ErrMeetingNotFound)
	}
	return m, nil
}

// reserve books userID's matching slot for m. The caller holds the lock on
// userID's calendar.
func reserve(ctx context.Context, tx store.Tx, userID uuid.UUID, m domain.Meeting) error {
	slot, err := Match(ctx, tx, userID, m.Interval())
	if err != nil {
		return err
	}
	_, err = tx.TransitionSlot(ctx, slot, domain.SlotStatusBooked, m.ID)
	return err
}

// release frees userID's slot bound to meetingID, if there is one.
func release(ctx context.Context, tx store.Tx, userID, meetingID uuid.UUID) error {
	slot, err := tx.FindBoundSlot(ctx, userID, meetingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = tx.TransitionSlot(ctx, slot, domain.SlotStatusAvailable, uuid.Nil)
	return err
}

func loadUsers(ctx context.Context, tx store.Tx, ids []uuid.UUID) ([]domain.User, error) {
	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return nil, service.NotFound(err, userNotFound(id))
		}
		users = append(users, u)
	}
	return users, nil
}

// memberSet returns participants plus the organizer, de-duplicated and
// sorted by id.
func memberSet(organizerID uuid.UUID, participantIDs []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{organizerID: {}}
	out := []uuid.UUID{organizerID}
	for _, id := range participantIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

func newMeetingID(organizerID uuid.UUID, idempotencyKey string) (uuid.UUID, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return uuid.NewV7()
	}
	if len(key) > maxIdempotencyKeyLen {
		return uuid.Nil, service.Validationf("idempotency_key too long")
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("doodle:create_meeting:"+organizerID.String()+":"+key)), nil
}

func sameMeeting(existing domain.Meeting, title string, in CreateMeetingInput, members []uuid.UUID) bool {
	if existing.Title != title ||
		existing.Description != in.Description ||
		existing.OrganizerID != in.OrganizerID ||
		existing.SlotID != in.SlotID ||
		len(existing.ParticipantIDs) != len(members) {
		return false
	}
	for _, id := range members {
		if !existing.HasParticipant(id) {
			return false
		}
	}
	return true
}

func requireIDs(meetingID, userID uuid.UUID) error {
	if meetingID == uuid.Nil {
		return service.Validationf("meeting_id is required")
	}
	if userID == uuid.Nil {
		return service.Validationf("user_id is required")
	}
	return nil
}
