package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"doodle/backend/internal/domain"
	"doodle/backend/internal/store"
)

type Repo struct {
	queries
	db *bun.DB
}

var _ store.Store = (*Repo)(nil)

func NewRepo(db *bun.DB) *Repo {
	return &Repo{queries: queries{db: db}, db: db}
}

// queries implements store.Reader against either the pool or a transaction.
type queries struct {
	db bun.IDB
}

type calendarTx struct {
	queries
	tx bun.Tx
}

var _ store.Tx = (*calendarTx)(nil)

func (r *Repo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var fnErr error
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		fnErr = fn(ctx, &calendarTx{queries: queries{db: tx}, tx: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return mapErr(err)
}

func (q queries) GetUser(ctx context.Context, id uuid.UUID) (domain.User, error) {
	var u domain.User
	err := q.db.NewSelect().Model(&u).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

func (q queries) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := q.db.NewSelect().Model(&u).Where("lower(email) = lower(?)", email).Limit(1).Scan(ctx)
	if err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

func (q queries) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []domain.User
	err := q.db.NewSelect().Model(&rows).OrderExpr("email ASC, id ASC").Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return rows, nil
}

func (q queries) GetCalendarByUser(ctx context.Context, userID uuid.UUID) (domain.Calendar, error) {
	var c domain.Calendar
	err := q.db.NewSelect().Model(&c).Where("user_id = ?", userID).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Calendar{}, mapErr(err)
	}
	return c, nil
}

func (q queries) GetSlot(ctx context.Context, id uuid.UUID) (domain.Slot, error) {
	var s domain.Slot
	err := q.db.NewSelect().Model(&s).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Slot{}, mapErr(err)
	}
	return s, nil
}

func (q queries) ListSlots(ctx context.Context, ownerID uuid.UUID, filter store.SlotFilter) ([]domain.Slot, error) {
	var rows []domain.Slot
	sel := q.db.NewSelect().Model(&rows).Where("owner_id = ?", ownerID)
	if filter.Status != "" {
		sel = sel.Where("status = ?", filter.Status)
	}
	if filter.Within != nil {
		sel = sel.Where("start_time >= ?", filter.Within.Start).Where("end_time <= ?", filter.Within.End)
	}
	if err := sel.OrderExpr("start_time ASC, end_time ASC, id ASC").Scan(ctx); err != nil {
		return nil, mapErr(err)
	}
	return rows, nil
}

func (q queries) FindReservable(ctx context.Context, ownerID uuid.UUID, window domain.Interval, status domain.SlotStatus) ([]domain.Slot, error) {
	var rows []domain.Slot
	err := q.db.NewSelect().
		Model(&rows).
		Where("owner_id = ?", ownerID).
		Where("status = ?", status).
		Where("start_time <= ?", window.End).
		Where("end_time >= ?", window.Start).
		OrderExpr("start_time ASC, end_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	return rows, nil
}

func (q queries) FindBoundSlot(ctx context.Context, ownerID, meetingID uuid.UUID) (domain.Slot, error) {
	var s domain.Slot
	err := q.db.NewSelect().
		Model(&s).
		Where("owner_id = ?", ownerID).
		Where("meeting_id = ?", meetingID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Slot{}, mapErr(err)
	}
	return s, nil
}

func (q queries) GetMeeting(ctx context.Context, id uuid.UUID) (domain.Meeting, error) {
	rows := make([]domain.Meeting, 1)
	err := q.db.NewSelect().Model(&rows[0]).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Meeting{}, mapErr(err)
	}
	if err := q.loadParticipants(ctx, rows); err != nil {
		return domain.Meeting{}, err
	}
	return rows[0], nil
}

func (q queries) ListMeetingsByOrganizer(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error) {
	var rows []domain.Meeting
	err := q.db.NewSelect().
		Model(&rows).
		Where("organizer_id = ?", userID).
		OrderExpr("start_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := q.loadParticipants(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (q queries) ListMeetingsByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error) {
	var rows []domain.Meeting
	err := q.db.NewSelect().
		Model(&rows).
		Where("id IN (SELECT meeting_id FROM meeting_participants WHERE user_id = ?)", userID).
		OrderExpr("start_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := q.loadParticipants(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (q queries) loadParticipants(ctx context.Context, meetings []domain.Meeting) error {
	if len(meetings) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(meetings))
	for i, m := range meetings {
		ids[i] = m.ID
	}

	var rows []domain.MeetingParticipant
	err := q.db.NewSelect().
		Model(&rows).
		Where("meeting_id IN (?)", bun.In(ids)).
		OrderExpr("added_at ASC, user_id ASC").
		Scan(ctx)
	if err != nil {
		return mapErr(err)
	}

	byMeeting := make(map[uuid.UUID][]uuid.UUID, len(meetings))
	for _, p := range rows {
		byMeeting[p.MeetingID] = append(byMeeting[p.MeetingID], p.UserID)
	}
	for i := range meetings {
		meetings[i].ParticipantIDs = byMeeting[meetings[i].ID]
	}
	return nil
}

func (c *calendarTx) LockMeeting(ctx context.Context, meetingID uuid.UUID) error {
	return c.advisoryLock(ctx, lockKeys("meeting", meetingID))
}

func (c *calendarTx) LockCalendars(ctx context.Context, userIDs ...uuid.UUID) error {
	return c.advisoryLock(ctx, lockKeys("calendar", userIDs...))
}

// advisoryLock takes transaction-scoped advisory locks in the given order.
// Hash collisions between keys can deadlock; Postgres reports 40P01 and the
// caller sees ErrConflict.
func (c *calendarTx) advisoryLock(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if _, err := c.tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", k).Exec(ctx); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

// lockKeys returns the sorted, de-duplicated lock keys for ids.
func lockKeys(kind string, ids ...uuid.UUID) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		k := kind + ":" + id.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *calendarTx) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if _, err := c.tx.NewInsert().Model(&u).Exec(ctx); err != nil {
		return domain.User{}, mapErr(err)
	}
	cal := domain.Calendar{UserID: u.ID}
	if _, err := c.tx.NewInsert().Model(&cal).Exec(ctx); err != nil {
		return domain.User{}, mapErr(err)
	}
	return u, nil
}

func (c *calendarTx) UpdateUser(ctx context.Context, u domain.User) (domain.User, error) {
	res, err := c.tx.NewUpdate().
		Model(&u).
		Column("email", "name", "updated_at").
		WherePK().
		Exec(ctx)
	if err := affectedOne(res, err); err != nil {
		return domain.User{}, err
	}
	return c.GetUser(ctx, u.ID)
}

func (c *calendarTx) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := c.tx.NewDelete().Model((*domain.Slot)(nil)).Where("owner_id = ?", id).Exec(ctx); err != nil {
		return mapErr(err)
	}
	if _, err := c.tx.NewDelete().Model((*domain.Calendar)(nil)).Where("user_id = ?", id).Exec(ctx); err != nil {
		return mapErr(err)
	}
	res, err := c.tx.NewDelete().Model((*domain.User)(nil)).Where("id = ?", id).Exec(ctx)
	return affectedOne(res, err)
}

func (c *calendarTx) CreateSlot(ctx context.Context, s domain.Slot) (domain.Slot, error) {
	cal, err := c.GetCalendarByUser(ctx, s.OwnerID)
	if err != nil {
		return domain.Slot{}, err
	}
	s.CalendarID = cal.ID
	if _, err := c.tx.NewInsert().Model(&s).Exec(ctx); err != nil {
		return domain.Slot{}, mapErr(err)
	}
	return s, nil
}

func (c *calendarTx) UpdateSlotTimes(ctx context.Context, id uuid.UUID, iv domain.Interval) (domain.Slot, error) {
	s := domain.Slot{ID: id, StartTime: iv.Start, EndTime: iv.End}
	res, err := c.tx.NewUpdate().
		Model(&s).
		Column("start_time", "end_time", "updated_at").
		WherePK().
		Exec(ctx)
	if err := affectedOne(res, err); err != nil {
		return domain.Slot{}, err
	}
	return c.GetSlot(ctx, id)
}

func (c *calendarTx) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	res, err := c.tx.NewDelete().Model((*domain.Slot)(nil)).Where("id = ?", id).Exec(ctx)
	return affectedOne(res, err)
}

func (c *calendarTx) TransitionSlot(ctx context.Context, slot domain.Slot, to domain.SlotStatus, meetingID uuid.UUID) (domain.Slot, error) {
	next, err := slot.Transition(to, meetingID)
	if err != nil {
		return domain.Slot{}, err
	}

	res, err := c.tx.NewUpdate().
		Model(&next).
		Column("status", "meeting_id", "updated_at").
		WherePK().
		Where("status = ?", slot.Status).
		Exec(ctx)
	if err := affectedOne(res, err); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.Slot{}, err
		}
		// Either the slot is gone or another writer moved it first.
		if _, getErr := c.GetSlot(ctx, slot.ID); getErr != nil {
			return domain.Slot{}, getErr
		}
		return domain.Slot{}, store.ErrConflict
	}
	return c.GetSlot(ctx, slot.ID)
}

func (c *calendarTx) CreateMeeting(ctx context.Context, m domain.Meeting) (domain.Meeting, error) {
	if _, err := c.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Meeting{}, mapErr(err)
	}
	if len(m.ParticipantIDs) > 0 {
		now := time.Now().UTC()
		rows := make([]domain.MeetingParticipant, 0, len(m.ParticipantIDs))
		for _, id := range m.ParticipantIDs {
			rows = append(rows, domain.MeetingParticipant{MeetingID: m.ID, UserID: id, AddedAt: now})
		}
		if _, err := c.tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return domain.Meeting{}, mapErr(err)
		}
	}
	return c.GetMeeting(ctx, m.ID)
}

func (c *calendarTx) UpdateMeeting(ctx context.Context, m domain.Meeting) (domain.Meeting, error) {
	res, err := c.tx.NewUpdate().
		Model(&m).
		Column("title", "description", "slot_id", "start_time", "end_time", "updated_at").
		WherePK().
		Exec(ctx)
	if err := affectedOne(res, err); err != nil {
		return domain.Meeting{}, err
	}
	return c.GetMeeting(ctx, m.ID)
}

func (c *calendarTx) DeleteMeeting(ctx context.Context, id uuid.UUID) error {
	if _, err := c.tx.NewDelete().Model((*domain.MeetingParticipant)(nil)).Where("meeting_id = ?", id).Exec(ctx); err != nil {
		return mapErr(err)
	}
	res, err := c.tx.NewDelete().Model((*domain.Meeting)(nil)).Where("id = ?", id).Exec(ctx)
	return affectedOne(res, err)
}

func (c *calendarTx) AddParticipant(ctx context.Context, meetingID, userID uuid.UUID) error {
	if _, err := c.GetMeeting(ctx, meetingID); err != nil {
		return err
	}
	p := domain.MeetingParticipant{MeetingID: meetingID, UserID: userID}
	_, err := c.tx.NewInsert().
		Model(&p).
		On("CONFLICT (meeting_id, user_id) DO NOTHING").
		Exec(ctx)
	return mapErr(err)
}

func (c *calendarTx) RemoveParticipant(ctx context.Context, meetingID, userID uuid.UUID) error {
	if _, err := c.GetMeeting(ctx, meetingID); err != nil {
		return err
	}
	_, err := c.tx.NewDelete().
		Model((*domain.MeetingParticipant)(nil)).
		Where("meeting_id = ?", meetingID).
		Where("user_id = ?", userID).
		Exec(ctx)
	return mapErr(err)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// mapErr translates driver errors into store errors. Context errors pass
// through so callers can tell cancellation from an unavailable database.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		// serialization_failure, deadlock_detected, lock_not_available
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
		// unique_violation, foreign_key_violation
		case "23505", "23503":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%w: %w", store.ErrStorageUnavailable, err)
}
