package grpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"doodle/backend/internal/domain"
	"doodle/backend/internal/service"
	"doodle/backend/internal/service/booking"
	"doodle/backend/internal/service/slots"
	"doodle/backend/internal/service/users"
	"doodle/backend/internal/store"
)

type fakeSlotsService struct {
	createFn       func(ctx context.Context, in slots.CreateInput) (domain.Slot, error)
	listByUserFn   func(ctx context.Context, ownerID uuid.UUID) ([]domain.Slot, error)
	listByStatusFn func(ctx context.Context, ownerID uuid.UUID, status domain.SlotStatus) ([]domain.Slot, error)
	listInRangeFn  func(ctx context.Context, ownerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error)
	createWeeklyFn func(ctx context.Context, in slots.WeeklyInput) ([]domain.Slot, error)
}

func (f *fakeSlotsService) Create(ctx context.Context, in slots.CreateInput) (domain.Slot, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, in)
}

func (f *fakeSlotsService) Get(ctx context.Context, id uuid.UUID) (domain.Slot, error) {
	panic("Get not configured")
}

func (f *fakeSlotsService) Update(ctx context.Context, in slots.UpdateInput) (domain.Slot, error) {
	panic("Update not configured")
}

func (f *fakeSlotsService) Delete(ctx context.Context, id uuid.UUID) error {
	panic("Delete not configured")
}

func (f *fakeSlotsService) ListByUser(ctx context.Context, ownerID uuid.UUID) ([]domain.Slot, error) {
	if f.listByUserFn == nil {
		panic("ListByUser not configured")
	}
	return f.listByUserFn(ctx, ownerID)
}

func (f *fakeSlotsService) ListByStatus(ctx context.Context, ownerID uuid.UUID, status domain.SlotStatus) ([]domain.Slot, error) {
	if f.listByStatusFn == nil {
		panic("ListByStatus not configured")
	}
	return f.listByStatusFn(ctx, ownerID, status)
}

func (f *fakeSlotsService) ListInRange(ctx context.Context, ownerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error) {
	if f.listInRangeFn == nil {
		panic("ListInRange not configured")
	}
	return f.listInRangeFn(ctx, ownerID, windowStart, windowEnd)
}

func (f *fakeSlotsService) CreateWeekly(ctx context.Context, in slots.WeeklyInput) ([]domain.Slot, error) {
	if f.createWeeklyFn == nil {
		panic("CreateWeekly not configured")
	}
	return f.createWeeklyFn(ctx, in)
}

func (f *fakeSlotsService) ExportCalendar(ctx context.Context, ownerID uuid.UUID, w io.Writer) error {
	panic("ExportCalendar not configured")
}

type fakeMeetingsService struct {
	createFn            func(ctx context.Context, in booking.CreateMeetingInput) (domain.Meeting, error)
	listByOrganizerFn   func(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error)
	listByParticipantFn func(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error)
	acceptFn            func(ctx context.Context, meetingID, participantID uuid.UUID) (domain.Meeting, error)
}

func (f *fakeMeetingsService) CreateMeeting(ctx context.Context, in booking.CreateMeetingInput) (domain.Meeting, error) {
	if f.createFn == nil {
		panic("CreateMeeting not configured")
	}
	return f.createFn(ctx, in)
}

func (f *fakeMeetingsService) GetMeeting(ctx context.Context, id uuid.UUID) (domain.Meeting, error) {
	panic("GetMeeting not configured")
}

func (f *fakeMeetingsService) UpdateMeeting(ctx context.Context, in booking.UpdateMeetingInput) (domain.Meeting, error) {
	panic("UpdateMeeting not configured")
}

func (f *fakeMeetingsService) DeleteMeeting(ctx context.Context, id uuid.UUID) error {
	panic("DeleteMeeting not configured")
}

func (f *fakeMeetingsService) ListByOrganizer(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error) {
	if f.listByOrganizerFn == nil {
		panic("ListByOrganizer not configured")
	}
	return f.listByOrganizerFn(ctx, userID)
}

func (f *fakeMeetingsService) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Meeting, error) {
	if f.listByParticipantFn == nil {
		panic("ListByParticipant not configured")
	}
	return f.listByParticipantFn(ctx, userID)
}

func (f *fakeMeetingsService) AddParticipant(ctx context.Context, meetingID, userID uuid.UUID) (domain.Meeting, error) {
	panic("AddParticipant not configured")
}

func (f *fakeMeetingsService) RemoveParticipant(ctx context.Context, meetingID, userID uuid.UUID) (domain.Meeting, error) {
	panic("RemoveParticipant not configured")
}

func (f *fakeMeetingsService) AcceptInvitation(ctx context.Context, meetingID, participantID uuid.UUID) (domain.Meeting, error) {
	if f.acceptFn == nil {
		panic("AcceptInvitation not configured")
	}
	return f.acceptFn(ctx, meetingID, participantID)
}

var (
	userA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	userB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	slotS = uuid.MustParse("00000000-0000-0000-0000-000000000005")
)

func TestIdempotencyKey_ReadsHeadersAndTrims(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "  abc  "))
	if got := idempotencyKey(ctx); got != "abc" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "abc")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-idempotency-key", "xyz"))
	if got := idempotencyKey(ctx); got != "xyz" {
		t.Fatalf("idempotencyKey = %q, want %q", got, "xyz")
	}
}

func TestCreateSlot_RejectsMissingTimes(t *testing.T) {
	srv := NewBookingServer(nil, &fakeSlotsService{}, nil, slog.Default())

	_, err := srv.CreateSlot(context.Background(), &CreateSlotRequest{UserId: userA.String()})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestCreateSlot_RejectsMalformedUserID(t *testing.T) {
	srv := NewBookingServer(nil, &fakeSlotsService{}, nil, slog.Default())
	start := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := srv.CreateSlot(context.Background(), &CreateSlotRequest{
		UserId:    "not-a-uuid",
		StartTime: timestamppb.New(start),
		EndTime:   timestamppb.New(start.Add(time.Hour)),
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestCreateMeeting_PassesIdempotencyKeyAndParticipants(t *testing.T) {
	var got booking.CreateMeetingInput
	srv := NewBookingServer(nil, nil, &fakeMeetingsService{
		createFn: func(ctx context.Context, in booking.CreateMeetingInput) (domain.Meeting, error) {
			got = in
			return domain.Meeting{ID: uuid.New(), OrganizerID: in.OrganizerID, ParticipantIDs: []uuid.UUID{userA, userB}}, nil
		},
	}, slog.Default())

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("idempotency-key", "k1"))
	resp, err := srv.CreateMeeting(ctx, &CreateMeetingRequest{
		Title:          "Sync",
		OrganizerId:    userA.String(),
		SlotId:         slotS.String(),
		ParticipantIds: []string{userB.String()},
	})
	if err != nil {
		t.Fatalf("CreateMeeting error: %v", err)
	}
	if got.IdempotencyKey != "k1" {
		t.Fatalf("idempotency_key = %q, want %q", got.IdempotencyKey, "k1")
	}
	if got.SlotID != slotS || len(got.ParticipantIDs) != 1 || got.ParticipantIDs[0] != userB {
		t.Fatalf("input = %+v", got)
	}
	if len(resp.Meeting.ParticipantIds) != 2 {
		t.Fatalf("participants = %v", resp.Meeting.ParticipantIds)
	}
}

func TestCreateMeeting_RejectsMalformedParticipant(t *testing.T) {
	srv := NewBookingServer(nil, nil, &fakeMeetingsService{}, slog.Default())

	_, err := srv.CreateMeeting(context.Background(), &CreateMeetingRequest{
		Title:          "Sync",
		OrganizerId:    userA.String(),
		SlotId:         slotS.String(),
		ParticipantIds: []string{"bogus"},
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestAcceptInvitation_MapsNoMatchingSlotAndTransition(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want codes.Code
	}{
		{"not participant", booking.ErrNotAParticipant, codes.FailedPrecondition},
		{"accepted twice", &domain.TransitionError{From: domain.SlotStatusBusy, To: domain.SlotStatusBusy}, codes.FailedPrecondition},
		{"meeting missing", booking.ErrMeetingNotFound, codes.NotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewBookingServer(nil, nil, &fakeMeetingsService{
				acceptFn: func(ctx context.Context, meetingID, participantID uuid.UUID) (domain.Meeting, error) {
					return domain.Meeting{}, tc.err
				},
			}, slog.Default())

			_, err := srv.AcceptInvitation(context.Background(), &ParticipantRequest{
				MeetingId: uuid.NewString(),
				UserId:    userB.String(),
			})
			if status.Code(err) != tc.want {
				t.Fatalf("code = %s, want %s", status.Code(err), tc.want)
			}
		})
	}
}

func TestListSlots_SelectsListing(t *testing.T) {
	var called string
	fake := &fakeSlotsService{
		listByUserFn: func(ctx context.Context, ownerID uuid.UUID) ([]domain.Slot, error) {
			called = "all"
			return []domain.Slot{{ID: slotS, OwnerID: ownerID, Status: domain.SlotStatusAvailable}}, nil
		},
		listByStatusFn: func(ctx context.Context, ownerID uuid.UUID, st domain.SlotStatus) ([]domain.Slot, error) {
			called = "status:" + string(st)
			return nil, nil
		},
		listInRangeFn: func(ctx context.Context, ownerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error) {
			called = "range"
			return nil, nil
		},
	}
	srv := NewBookingServer(nil, fake, nil, slog.Default())
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		name string
		req  *ListSlotsRequest
		want string
	}{
		{"all", &ListSlotsRequest{UserId: userA.String()}, "all"},
		{"status", &ListSlotsRequest{UserId: userA.String(), Status: "booked"}, "status:BOOKED"},
		{"range", &ListSlotsRequest{
			UserId:      userA.String(),
			WindowStart: timestamppb.New(start),
			WindowEnd:   timestamppb.New(start.Add(24 * time.Hour)),
		}, "range"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			called = ""
			if _, err := srv.ListSlots(context.Background(), tc.req); err != nil {
				t.Fatalf("ListSlots error: %v", err)
			}
			if called != tc.want {
				t.Fatalf("called = %q, want %q", called, tc.want)
			}
		})
	}

	_, err := srv.ListSlots(context.Background(), &ListSlotsRequest{UserId: userA.String(), WindowStart: timestamppb.New(start)})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("partial window code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestListMeetings_RejectsUnknownRole(t *testing.T) {
	srv := NewBookingServer(nil, nil, &fakeMeetingsService{}, slog.Default())

	_, err := srv.ListMeetings(context.Background(), &ListMeetingsRequest{UserId: userA.String(), Role: "guest"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
	}
}

func TestStatusFor(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want codes.Code
	}{
		{"validation", service.Validationf("title is required"), codes.InvalidArgument},
		{"interval", fmt.Errorf("create: %w", domain.ErrInvalidInterval), codes.InvalidArgument},
		{"user missing", service.ErrUserNotFound, codes.NotFound},
		{"slot missing", service.ErrSlotNotFound, codes.NotFound},
		{"bare not found", store.ErrNotFound, codes.NotFound},
		{"no matching slot", &booking.NoMatchingSlotError{UserID: userB}, codes.FailedPrecondition},
		{"transition", domain.ErrInvalidTransition, codes.FailedPrecondition},
		{"idempotency", store.ErrIdempotencyConflict, codes.FailedPrecondition},
		{"email taken", users.ErrEmailTaken, codes.AlreadyExists},
		{"slot reserved", slots.ErrSlotReserved, codes.FailedPrecondition},
		{"user in meetings", users.ErrUserInMeetings, codes.FailedPrecondition},
		{"conflict", store.ErrConflict, codes.Aborted},
		{"storage", fmt.Errorf("%w: dial tcp", store.ErrStorageUnavailable), codes.Unavailable},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"unknown", errors.New("boom"), codes.Internal},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got, _ := statusFor(tc.err); got != tc.want {
				t.Fatalf("statusFor(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestStatusFor_NamesUserWithoutSlot(t *testing.T) {
	_, msg := statusFor(&booking.NoMatchingSlotError{UserID: userB})
	if want := "user " + userB.String() + " has no available slot at the meeting time"; msg != want {
		t.Fatalf("message = %q, want %q", msg, want)
	}
}

func TestCreateWeeklySlots_BuildsPattern(t *testing.T) {
	var got slots.WeeklyInput
	srv := NewBookingServer(nil, &fakeSlotsService{
		createWeeklyFn: func(ctx context.Context, in slots.WeeklyInput) ([]domain.Slot, error) {
			got = in
			return []domain.Slot{{ID: slotS, OwnerID: in.OwnerID, Status: domain.SlotStatusAvailable}}, nil
		},
	}, nil, slog.Default())

	first := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	resp, err := srv.CreateWeeklySlots(context.Background(), &CreateWeeklySlotsRequest{
		UserId:      userA.String(),
		FirstStart:  timestamppb.New(first),
		FirstEnd:    timestamppb.New(first.Add(45 * time.Minute)),
		Weekdays:    []string{"monday", "THU"},
		EveryWeeks:  2,
		Count:       4,
		WindowStart: timestamppb.New(first),
		WindowEnd:   timestamppb.New(first.AddDate(0, 2, 0)),
	})
	if err != nil {
		t.Fatalf("CreateWeeklySlots error: %v", err)
	}
	if len(resp.Slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(resp.Slots))
	}
	if got.OwnerID != userA {
		t.Fatalf("owner = %s, want %s", got.OwnerID, userA)
	}
	p := got.Pattern
	if p.Duration != 45*time.Minute || p.EveryWeeks != 2 || p.Count != 4 || p.Location != time.UTC {
		t.Fatalf("pattern = %+v", p)
	}
	if len(p.Weekdays) != 2 || p.Weekdays[0] != time.Monday || p.Weekdays[1] != time.Thursday {
		t.Fatalf("weekdays = %v, want [Monday Thursday]", p.Weekdays)
	}
	if !p.Until.IsZero() {
		t.Fatalf("until = %v, want zero", p.Until)
	}
}

func TestCreateWeeklySlots_RejectsBadInput(t *testing.T) {
	srv := NewBookingServer(nil, &fakeSlotsService{}, nil, slog.Default())
	first := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	valid := func() *CreateWeeklySlotsRequest {
		return &CreateWeeklySlotsRequest{
			UserId:      userA.String(),
			FirstStart:  timestamppb.New(first),
			FirstEnd:    timestamppb.New(first.Add(time.Hour)),
			Weekdays:    []string{"MONDAY"},
			WindowStart: timestamppb.New(first),
			WindowEnd:   timestamppb.New(first.AddDate(0, 1, 0)),
		}
	}

	for _, tc := range []struct {
		name string
		edit func(*CreateWeeklySlotsRequest)
	}{
		{"missing window", func(r *CreateWeeklySlotsRequest) { r.WindowEnd = nil }},
		{"bad user", func(r *CreateWeeklySlotsRequest) { r.UserId = "x" }},
		{"bad weekday", func(r *CreateWeeklySlotsRequest) { r.Weekdays = []string{"FUNDAY"} }},
		{"bad zone", func(r *CreateWeeklySlotsRequest) { r.TimeZone = "Mars/Olympus" }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			tc.edit(req)
			_, err := srv.CreateWeeklySlots(context.Background(), req)
			if status.Code(err) != codes.InvalidArgument {
				t.Fatalf("code = %s, want %s", status.Code(err), codes.InvalidArgument)
			}
		})
	}
}
