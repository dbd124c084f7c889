package grpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"doodle/backend/internal/domain"
	"doodle/backend/internal/service"
	"doodle/backend/internal/service/booking"
	"doodle/backend/internal/service/slots"
	"doodle/backend/internal/service/users"
	"doodle/backend/internal/store"
)

type BookingServer struct {
	users    usersService
	slots    slotsService
	meetings meetingsService
	log      *slog.Logger
}

var _ BookingServiceServer = (*BookingServer)(nil)

type usersService interface {
	Create(ctx context.Context, in users.CreateInput) (domain.User, error)
	Get(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, in users.UpdateInput) (domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type slotsService interface {
	Create(ctx context.Context, in slots.CreateInput) (domain.Slot, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Slot, error)
	Update(ctx context.Context, in slots.UpdateInput) (domain.Slot, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, ownerID uuid.UUID) ([]domain.Slot, error)
	ListByStatus(ctx context.Context, ownerID uuid.UUID, status domain.SlotStatus) ([]domain.Slot, error)
	ListInRange(ctx context.Context, ownerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error)
	CreateWeekly(ctx context.Context, in slots.WeeklyInput) ([]domain.Slot, error)
	ExportCalendar(ctx context.Context, ownerID uuid.UUID, w io.Writer) error
}

type meetingsService interface {
	CreateMeeting(ctx context.Context, in booking.CreateMeetingInput) (domain.Meeting, error)
	GetMeeting(ctx context.Context, id uuid.UUID) (domain.Meeting, error)
	UpdateMeeting(ctx context.Context, in booking.UpdateMeetingInput) (domain.Meeting, error)
	DeleteMeeting(ctx context.Context, id uuid.UUID) error
	ListByOrganizer(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error)
	AddParticipant(ctx context.Context, meetingID, userID uuid.UUID) (domain.Meeting, error)
	RemoveParticipant(ctx context.Context, meetingID, userID uuid.UUID) (domain.Meeting, error)
	AcceptInvitation(ctx context.Context, meetingID, participantID uuid.UUID) (domain.Meeting, error)
}

func NewBookingServer(u usersService, sl slotsService, m meetingsService, log *slog.Logger) *BookingServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingServer{
		users:    u,
		slots:    sl,
		meetings: m,
		log:      log.With(slog.String("component", "grpc.booking")),
	}
}

func (s *BookingServer) CreateUser(ctx context.Context, req *CreateUserRequest) (*UserResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateUser"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	u, err := s.users.Create(ctx, users.CreateInput{Email: req.Email, Name: req.Name})
	if err != nil {
		return nil, fail(log, "user create failed", err)
	}

	log.Info("user created", slog.String("user_id", u.ID.String()))
	return &UserResponse{User: toProtoUser(u)}, nil
}

func (s *BookingServer) GetUser(ctx context.Context, req *UserRequest) (*UserResponse, error) {
	log := s.log.With(slog.String("rpc", "GetUser"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	userID, err := parseID(log, "user_id", req.UserId)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fail(log, "user get failed", err, slog.String("user_id", req.UserId))
	}
	return &UserResponse{User: toProtoUser(u)}, nil
}

func (s *BookingServer) UpdateUser(ctx context.Context, req *UpdateUserRequest) (*UserResponse, error) {
	log := s.log.With(slog.String("rpc", "UpdateUser"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	userID, err := parseID(log, "user_id", req.UserId)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Update(ctx, users.UpdateInput{ID: userID, Email: req.Email, Name: req.Name})
	if err != nil {
		return nil, fail(log, "user update failed", err, slog.String("user_id", req.UserId))
	}

	log.Info("user updated", slog.String("user_id", u.ID.String()))
	return &UserResponse{User: toProtoUser(u)}, nil
}

func (s *BookingServer) DeleteUser(ctx context.Context, req *UserRequest) (*Empty, error) {
	log := s.log.With(slog.String("rpc", "DeleteUser"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	userID, err := parseID(log, "user_id", req.UserId)
	if err != nil {
		return nil, err
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return nil, fail(log, "user delete failed", err, slog.String("user_id", req.UserId))
	}

	log.Info("user deleted", slog.String("user_id", req.UserId))
	return &Empty{}, nil
}

// ListUsers returns every user, or only the one registered with req.Email.
// An unknown email yields an empty list.
func (s *BookingServer) ListUsers(ctx context.Context, req *ListUsersRequest) (*ListUsersResponse, error) {
	log := s.log.With(slog.String("rpc", "ListUsers"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	var list []domain.User
	if req.Email != "" {
		u, err := s.users.GetByEmail(ctx, req.Email)
		switch {
		case err == nil:
			list = []domain.User{u}
		case !errors.Is(err, service.ErrUserNotFound):
			return nil, fail(log, "user lookup failed", err)
		}
	} else {
		var err error
		if list, err = s.users.List(ctx); err != nil {
			return nil, fail(log, "users list failed", err)
		}
	}

	out := make([]*User, 0, len(list))
	for _, u := range list {
		out = append(out, toProtoUser(u))
	}
	return &ListUsersResponse{Users: out}, nil
}

func (s *BookingServer) CreateSlot(ctx context.Context, req *CreateSlotRequest) (*SlotResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateSlot"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.StartTime == nil || req.EndTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_times"), slog.String("user_id", req.UserId))
		return nil, status.Error(codes.InvalidArgument, "start_time and end_time are required")
	}
	userID, err := parseID(log, "user_id", req.UserId)
	if err != nil {
		return nil, err
	}

	sl, err := s.slots.Create(ctx, slots.CreateInput{
		OwnerID:   userID,
		StartTime: req.StartTime.AsTime(),
		EndTime:   req.EndTime.AsTime(),
	})
	if err != nil {
		return nil, fail(log, "slot create failed", err, slog.String("user_id", req.UserId))
	}

	log.Info(
		"slot created",
		slog.String("slot_id", sl.ID.String()),
		slog.String("user_id", req.UserId),
		slog.Time("start_time", sl.StartTime),
		slog.Time("end_time", sl.EndTime),
	)
	return &SlotResponse{Slot: toProtoSlot(sl)}, nil
}

func (s *BookingServer) GetSlot(ctx context.Context, req *SlotRequest) (*SlotResponse, error) {
	log := s.log.With(slog.String("rpc", "GetSlot"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	slotID, err := parseID(log, "slot_id", req.SlotId)
	if err != nil {
		return nil, err
	}

	sl, err := s.slots.Get(ctx, slotID)
	if err != nil {
		return nil, fail(log, "slot get failed", err, slog.String("slot_id", req.SlotId))
	}
	return &SlotResponse{Slot: toProtoSlot(sl)}, nil
}

func (s *BookingServer) UpdateSlot(ctx context.Context, req *UpdateSlotRequest) (*SlotResponse, error) {
	log := s.log.With(slog.String("rpc", "UpdateSlot"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.StartTime == nil || req.EndTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_times"), slog.String("slot_id", req.SlotId))
		return nil, status.Error(codes.InvalidArgument, "start_time and end_time are required")
	}
	slotID, err := parseID(log, "slot_id", req.SlotId)
	if err != nil {
		return nil, err
	}

	sl, err := s.slots.Update(ctx, slots.UpdateInput{
		ID:        slotID,
		StartTime: req.StartTime.AsTime(),
		EndTime:   req.EndTime.AsTime(),
	})
	if err != nil {
		return nil, fail(log, "slot update failed", err, slog.String("slot_id", req.SlotId))
	}

	log.Info("slot updated", slog.String("slot_id", req.SlotId))
	return &SlotResponse{Slot: toProtoSlot(sl)}, nil
}

func (s *BookingServer) DeleteSlot(ctx context.Context, req *SlotRequest) (*Empty, error) {
	log := s.log.With(slog.String("rpc", "DeleteSlot"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	slotID, err := parseID(log, "slot_id", req.SlotId)
	if err != nil {
		return nil, err
	}

	if err := s.slots.Delete(ctx, slotID); err != nil {
		return nil, fail(log, "slot delete failed", err, slog.String("slot_id", req.SlotId))
	}

	log.Info("slot deleted", slog.String("slot_id", req.SlotId))
	return &Empty{}, nil
}

func (s *BookingServer) ListSlots(ctx context.Context, req *ListSlotsRequest) (*ListSlotsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListSlots"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if (req.WindowStart == nil) != (req.WindowEnd == nil) {
		log.Warn("invalid request", slog.String("reason", "partial_window"), slog.String("user_id", req.UserId))
		return nil, status.Error(codes.InvalidArgument, "window_start and window_end must be set together")
	}
	if req.WindowStart != nil && req.Status != "" {
		log.Warn("invalid request", slog.String("reason", "window_and_status"), slog.String("user_id", req.UserId))
		return nil, status.Error(codes.InvalidArgument, "filter by status or by window, not both")
	}
	userID, err := parseID(log, "user_id", req.UserId)
	if err != nil {
		return nil, err
	}

	var list []domain.Slot
	switch {
	case req.WindowStart != nil:
		list, err = s.slots.ListInRange(ctx, userID, req.WindowStart.AsTime(), req.WindowEnd.AsTime())
	case req.Status != "":
		list, err = s.slots.ListByStatus(ctx, userID, domain.SlotStatus(strings.ToUpper(req.Status)))
	default:
		list, err = s.slots.ListByUser(ctx, userID)
	}
	if err != nil {
		return nil, fail(log, "slots list failed", err, slog.String("user_id", req.UserId))
	}

	out := make([]*Slot, 0, len(list))
	for _, sl := range list {
		out = append(out, toProtoSlot(sl))
	}
	return &ListSlotsResponse{Slots: out}, nil
}

func (s *BookingServer) CreateWeeklySlots(ctx context.Context, req *CreateWeeklySlotsRequest) (*ListSlotsResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateWeeklySlots"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.FirstStart == nil || req.FirstEnd == nil || req.WindowStart == nil || req.WindowEnd == nil {
		log.Warn("invalid request", slog.String("reason", "missing_times"), slog.String("user_id", req.UserId))
		return nil, status.Error(codes.InvalidArgument, "first_start, first_end, window_start and window_end are required")
	}
	userID, err := parseID(log, "user_id", req.UserId)
	if err != nil {
		return nil, err
	}
	weekdays, err := parseWeekdays(req.Weekdays)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_weekday"), slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	loc := time.UTC
	if tz := strings.TrimSpace(req.TimeZone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			log.Warn("invalid request", slog.String("reason", "bad_time_zone"), slog.String("time_zone", tz))
			return nil, status.Error(codes.InvalidArgument, "invalid time_zone")
		}
	}
	pattern := domain.WeeklyAvailability{
		First:      req.FirstStart.AsTime(),
		Duration:   req.FirstEnd.AsTime().Sub(req.FirstStart.AsTime()),
		Weekdays:   weekdays,
		EveryWeeks: int(req.EveryWeeks),
		Count:      int(req.Count),
		Location:   loc,
	}
	if req.Until != nil {
		pattern.Until = req.Until.AsTime()
	}

	created, err := s.slots.CreateWeekly(ctx, slots.WeeklyInput{
		OwnerID:     userID,
		Pattern:     pattern,
		WindowStart: req.WindowStart.AsTime(),
		WindowEnd:   req.WindowEnd.AsTime(),
	})
	if err != nil {
		return nil, fail(log, "weekly slots create failed", err, slog.String("user_id", req.UserId))
	}

	log.Info("weekly slots created", slog.String("user_id", req.UserId), slog.Int("count", len(created)))
	out := make([]*Slot, 0, len(created))
	for _, sl := range created {
		out = append(out, toProtoSlot(sl))
	}
	return &ListSlotsResponse{Slots: out}, nil
}

func parseWeekdays(raw []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(raw))
	for _, r := range raw {
		name := strings.ToUpper(strings.TrimSpace(r))
		found := false
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			full := strings.ToUpper(wd.String())
			if name == full || name == full[:3] {
				out = append(out, wd)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown weekday %q", r)
		}
	}
	return out, nil
}

func (s *BookingServer) ExportCalendar(ctx context.Context, req *UserRequest) (*ExportCalendarResponse, error) {
	log := s.log.With(slog.String("rpc", "ExportCalendar"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	userID, err := parseID(log, "user_id", req.UserId)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.slots.ExportCalendar(ctx, userID, &buf); err != nil {
		return nil, fail(log, "calendar export failed", err, slog.String("user_id", req.UserId))
	}
	return &ExportCalendarResponse{ContentType: "text/calendar", Data: buf.Bytes()}, nil
}

func (s *BookingServer) CreateMeeting(ctx context.Context, req *CreateMeetingRequest) (*MeetingResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateMeeting"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	organizerID, err := parseID(log, "organizer_id", req.OrganizerId)
	if err != nil {
		return nil, err
	}
	slotID, err := parseID(log, "slot_id", req.SlotId)
	if err != nil {
		return nil, err
	}
	participantIDs := make([]uuid.UUID, 0, len(req.ParticipantIds))
	for _, raw := range req.ParticipantIds {
		id, err := parseID(log, "participant_ids", raw)
		if err != nil {
			return nil, err
		}
		participantIDs = append(participantIDs, id)
	}

	m, err := s.meetings.CreateMeeting(ctx, booking.CreateMeetingInput{
		Title:          req.Title,
		Description:    req.Description,
		OrganizerID:    organizerID,
		SlotID:         slotID,
		ParticipantIDs: participantIDs,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, fail(log, "meeting create failed", err, slog.String("organizer_id", req.OrganizerId))
	}

	log.Info(
		"meeting created",
		slog.String("meeting_id", m.ID.String()),
		slog.String("organizer_id", req.OrganizerId),
		slog.Int("participants", len(m.ParticipantIDs)),
		slog.Time("start_time", m.StartTime),
		slog.Time("end_time", m.EndTime),
	)
	return &MeetingResponse{Meeting: toProtoMeeting(m)}, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func (s *BookingServer) GetMeeting(ctx context.Context, req *MeetingRequest) (*MeetingResponse, error) {
	log := s.log.With(slog.String("rpc", "GetMeeting"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	meetingID, err := parseID(log, "meeting_id", req.MeetingId)
	if err != nil {
		return nil, err
	}

	m, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return nil, fail(log, "meeting get failed", err, slog.String("meeting_id", req.MeetingId))
	}
	return &MeetingResponse{Meeting: toProtoMeeting(m)}, nil
}

func (s *BookingServer) UpdateMeeting(ctx context.Context, req *UpdateMeetingRequest) (*MeetingResponse, error) {
	log := s.log.With(slog.String("rpc", "UpdateMeeting"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	meetingID, err := parseID(log, "meeting_id", req.MeetingId)
	if err != nil {
		return nil, err
	}
	var slotID uuid.UUID
	if req.SlotId != "" {
		if slotID, err = parseID(log, "slot_id", req.SlotId); err != nil {
			return nil, err
		}
	}

	m, err := s.meetings.UpdateMeeting(ctx, booking.UpdateMeetingInput{
		ID:          meetingID,
		Title:       req.Title,
		Description: req.Description,
		SlotID:      slotID,
	})
	if err != nil {
		return nil, fail(log, "meeting update failed", err, slog.String("meeting_id", req.MeetingId))
	}

	log.Info("meeting updated", slog.String("meeting_id", req.MeetingId))
	return &MeetingResponse{Meeting: toProtoMeeting(m)}, nil
}

func (s *BookingServer) DeleteMeeting(ctx context.Context, req *MeetingRequest) (*Empty, error) {
	log := s.log.With(slog.String("rpc", "DeleteMeeting"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	meetingID, err := parseID(log, "meeting_id", req.MeetingId)
	if err != nil {
		return nil, err
	}

	if err := s.meetings.DeleteMeeting(ctx, meetingID); err != nil {
		return nil, fail(log, "meeting delete failed", err, slog.String("meeting_id", req.MeetingId))
	}

	log.Info("meeting deleted", slog.String("meeting_id", req.MeetingId))
	return &Empty{}, nil
}

func (s *BookingServer) ListMeetings(ctx context.Context, req *ListMeetingsRequest) (*ListMeetingsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListMeetings"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	userID, err := parseID(log, "user_id", req.UserId)
	if err != nil {
		return nil, err
	}

	var list []domain.Meeting
	switch strings.ToLower(strings.TrimSpace(req.Role)) {
	case "organizer":
		list, err = s.meetings.ListByOrganizer(ctx, userID)
	case "", "participant":
		list, err = s.meetings.ListByParticipant(ctx, userID)
	default:
		log.Warn("invalid request", slog.String("reason", "unknown_role"), slog.String("role", req.Role))
		return nil, status.Error(codes.InvalidArgument, "role must be organizer or participant")
	}
	if err != nil {
		return nil, fail(log, "meetings list failed", err, slog.String("user_id", req.UserId))
	}

	out := make([]*Meeting, 0, len(list))
	for _, m := range list {
		out = append(out, toProtoMeeting(m))
	}
	return &ListMeetingsResponse{Meetings: out}, nil
}

func (s *BookingServer) AddParticipant(ctx context.Context, req *ParticipantRequest) (*MeetingResponse, error) {
	return s.participantCall(ctx, "AddParticipant", "participant added", req, s.meetings.AddParticipant)
}

func (s *BookingServer) RemoveParticipant(ctx context.Context, req *ParticipantRequest) (*MeetingResponse, error) {
	return s.participantCall(ctx, "RemoveParticipant", "participant removed", req, s.meetings.RemoveParticipant)
}

func (s *BookingServer) AcceptInvitation(ctx context.Context, req *ParticipantRequest) (*MeetingResponse, error) {
	return s.participantCall(ctx, "AcceptInvitation", "invitation accepted", req, s.meetings.AcceptInvitation)
}

func (s *BookingServer) participantCall(
	ctx context.Context,
	rpc, done string,
	req *ParticipantRequest,
	call func(ctx context.Context, meetingID, userID uuid.UUID) (domain.Meeting, error),
) (*MeetingResponse, error) {
	log := s.log.With(slog.String("rpc", rpc))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	meetingID, err := parseID(log, "meeting_id", req.MeetingId)
	if err != nil {
		return nil, err
	}
	userID, err := parseID(log, "user_id", req.UserId)
	if err != nil {
		return nil, err
	}

	m, err := call(ctx, meetingID, userID)
	if err != nil {
		return nil, fail(log, strings.ToLower(rpc)+" failed", err,
			slog.String("meeting_id", req.MeetingId),
			slog.String("user_id", req.UserId),
		)
	}

	log.Info(done, slog.String("meeting_id", req.MeetingId), slog.String("user_id", req.UserId))
	return &MeetingResponse{Meeting: toProtoMeeting(m)}, nil
}

func parseID(log *slog.Logger, name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		log.Warn("invalid request", slog.String("reason", "bad_"+name), slog.String(name, raw))
		return uuid.Nil, status.Error(codes.InvalidArgument, name+" must be a UUID")
	}
	return id, nil
}

// fail logs err at a level matching its status and returns the status error.
func fail(log *slog.Logger, msg string, err error, attrs ...any) error {
	code, text := statusFor(err)
	attrs = append(attrs, slog.Any("err", err), slog.String("code", code.String()))
	switch code {
	case codes.Internal, codes.Unavailable:
		log.Error(msg, attrs...)
	case codes.InvalidArgument:
		log.Warn("invalid request", attrs...)
	default:
		log.Info(msg, attrs...)
	}
	return status.Error(code, text)
}

func statusFor(err error) (codes.Code, string) {
	var (
		vErr  *service.ValidationError
		nmErr *booking.NoMatchingSlotError
		trErr *domain.TransitionError
	)
	switch {
	case errors.As(err, &vErr):
		return codes.InvalidArgument, vErr.Error()
	case errors.Is(err, domain.ErrInvalidInterval):
		return codes.InvalidArgument, "end_time must be after start_time"
	case errors.Is(err, service.ErrUserNotFound):
		return codes.NotFound, "user not found"
	case errors.Is(err, service.ErrSlotNotFound):
		return codes.NotFound, "slot not found"
	case errors.Is(err, service.ErrMeetingNotFound):
		return codes.NotFound, "meeting not found"
	case errors.Is(err, store.ErrNotFound):
		return codes.NotFound, "not found"
	case errors.As(err, &nmErr):
		return codes.FailedPrecondition, fmt.Sprintf("user %s has no available slot at the meeting time", nmErr.UserID)
	case errors.As(err, &trErr):
		return codes.FailedPrecondition, fmt.Sprintf("slot cannot move from %s to %s", trErr.From, trErr.To)
	case errors.Is(err, domain.ErrInvalidTransition):
		return codes.FailedPrecondition, "invalid slot status transition"
	case errors.Is(err, booking.ErrNotAParticipant):
		return codes.FailedPrecondition, "user is not a participant of the meeting"
	case errors.Is(err, store.ErrIdempotencyConflict):
		return codes.FailedPrecondition, "This request key was already used for a different meeting. Try again."
	case errors.Is(err, users.ErrEmailTaken):
		return codes.AlreadyExists, "email already registered"
	case errors.Is(err, users.ErrUserInMeetings):
		return codes.FailedPrecondition, "user still belongs to meetings"
	case errors.Is(err, slots.ErrSlotReserved):
		return codes.FailedPrecondition, "slot is reserved by a meeting"
	case errors.Is(err, store.ErrConflict):
		return codes.Aborted, "concurrent update, retry the request"
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded, "deadline exceeded"
	case errors.Is(err, context.Canceled):
		return codes.Canceled, "request canceled"
	case errors.Is(err, store.ErrStorageUnavailable):
		return codes.Unavailable, "storage unavailable"
	default:
		return codes.Internal, "internal error"
	}
}
