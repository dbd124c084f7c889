package grpc

import (
	"google.golang.org/protobuf/types/known/timestamppb"

	"doodle/backend/internal/domain"
)

// Message types mirror proto/doodle/v1/booking.proto. Field numbers are part
// of the wire contract and must not be reused.

type User struct {
	Id        string
	Email     string
	Name      string
	CreatedAt *timestamppb.Timestamp
}

func (m *User) fields() []field {
	return []field{
		{num: 1, str: &m.Id},
		{num: 2, str: &m.Email},
		{num: 3, str: &m.Name},
		{num: 4, ts: &m.CreatedAt},
	}
}

type Slot struct {
	Id         string
	UserId     string
	CalendarId string
	StartTime  *timestamppb.Timestamp
	EndTime    *timestamppb.Timestamp
	Status     string
	MeetingId  string
}

func (m *Slot) fields() []field {
	return []field{
		{num: 1, str: &m.Id},
		{num: 2, str: &m.UserId},
		{num: 3, str: &m.CalendarId},
		{num: 4, ts: &m.StartTime},
		{num: 5, ts: &m.EndTime},
		{num: 6, str: &m.Status},
		{num: 7, str: &m.MeetingId},
	}
}

type Meeting struct {
	Id             string
	Title          string
	Description    string
	OrganizerId    string
	SlotId         string
	StartTime      *timestamppb.Timestamp
	EndTime        *timestamppb.Timestamp
	ParticipantIds []string
}

func (m *Meeting) fields() []field {
	return []field{
		{num: 1, str: &m.Id},
		{num: 2, str: &m.Title},
		{num: 3, str: &m.Description},
		{num: 4, str: &m.OrganizerId},
		{num: 5, str: &m.SlotId},
		{num: 6, ts: &m.StartTime},
		{num: 7, ts: &m.EndTime},
		{num: 8, strs: &m.ParticipantIds},
	}
}

type Empty struct{}

func (m *Empty) fields() []field { return nil }

type CreateUserRequest struct {
	Email string
	Name  string
}

func (m *CreateUserRequest) fields() []field {
	return []field{{num: 1, str: &m.Email}, {num: 2, str: &m.Name}}
}

type UpdateUserRequest struct {
	UserId string
	Email  string
	Name   string
}

func (m *UpdateUserRequest) fields() []field {
	return []field{{num: 1, str: &m.UserId}, {num: 2, str: &m.Email}, {num: 3, str: &m.Name}}
}

type UserRequest struct {
	UserId string
}

func (m *UserRequest) fields() []field { return []field{{num: 1, str: &m.UserId}} }

// ListUsersRequest.Email narrows the listing to the user registered with it.
type ListUsersRequest struct {
	Email string
}

func (m *ListUsersRequest) fields() []field { return []field{{num: 1, str: &m.Email}} }

type ListUsersResponse struct {
	Users []*User
}

func (m *ListUsersResponse) fields() []field { return []field{{num: 1, msg: many(&m.Users)}} }

type UserResponse struct {
	User *User
}

func (m *UserResponse) fields() []field { return []field{{num: 1, msg: one(&m.User)}} }

type CreateSlotRequest struct {
	UserId    string
	StartTime *timestamppb.Timestamp
	EndTime   *timestamppb.Timestamp
}

func (m *CreateSlotRequest) fields() []field {
	return []field{{num: 1, str: &m.UserId}, {num: 2, ts: &m.StartTime}, {num: 3, ts: &m.EndTime}}
}

type UpdateSlotRequest struct {
	SlotId    string
	StartTime *timestamppb.Timestamp
	EndTime   *timestamppb.Timestamp
}

func (m *UpdateSlotRequest) fields() []field {
	return []field{{num: 1, str: &m.SlotId}, {num: 2, ts: &m.StartTime}, {num: 3, ts: &m.EndTime}}
}

type SlotRequest struct {
	SlotId string
}

func (m *SlotRequest) fields() []field { return []field{{num: 1, str: &m.SlotId}} }

type SlotResponse struct {
	Slot *Slot
}

func (m *SlotResponse) fields() []field { return []field{{num: 1, msg: one(&m.Slot)}} }

// ListSlotsRequest selects one of three listings: all slots of the user, the
// slots with a given status, or the slots fully inside a window.
type ListSlotsRequest struct {
	UserId      string
	Status      string
	WindowStart *timestamppb.Timestamp
	WindowEnd   *timestamppb.Timestamp
}

func (m *ListSlotsRequest) fields() []field {
	return []field{
		{num: 1, str: &m.UserId},
		{num: 2, str: &m.Status},
		{num: 3, ts: &m.WindowStart},
		{num: 4, ts: &m.WindowEnd},
	}
}

// CreateWeeklySlotsRequest repeats the interval FirstStart..FirstEnd on the
// given weekdays ("MONDAY" or "MON") at the same wall clock time in TimeZone.
type CreateWeeklySlotsRequest struct {
	UserId      string
	FirstStart  *timestamppb.Timestamp
	FirstEnd    *timestamppb.Timestamp
	Weekdays    []string
	EveryWeeks  int64
	Count       int64
	Until       *timestamppb.Timestamp
	TimeZone    string
	WindowStart *timestamppb.Timestamp
	WindowEnd   *timestamppb.Timestamp
}

func (m *CreateWeeklySlotsRequest) fields() []field {
	return []field{
		{num: 1, str: &m.UserId},
		{num: 2, ts: &m.FirstStart},
		{num: 3, ts: &m.FirstEnd},
		{num: 4, strs: &m.Weekdays},
		{num: 5, i64: &m.EveryWeeks},
		{num: 6, i64: &m.Count},
		{num: 7, ts: &m.Until},
		{num: 8, str: &m.TimeZone},
		{num: 9, ts: &m.WindowStart},
		{num: 10, ts: &m.WindowEnd},
	}
}

type ListSlotsResponse struct {
	Slots []*Slot
}

func (m *ListSlotsResponse) fields() []field { return []field{{num: 1, msg: many(&m.Slots)}} }

type ExportCalendarResponse struct {
	ContentType string
	Data        []byte
}

func (m *ExportCalendarResponse) fields() []field {
	return []field{{num: 1, str: &m.ContentType}, {num: 2, data: &m.Data}}
}

type CreateMeetingRequest struct {
	Title          string
	Description    string
	OrganizerId    string
	SlotId         string
	ParticipantIds []string
}

func (m *CreateMeetingRequest) fields() []field {
	return []field{
		{num: 1, str: &m.Title},
		{num: 2, str: &m.Description},
		{num: 3, str: &m.OrganizerId},
		{num: 4, str: &m.SlotId},
		{num: 5, strs: &m.ParticipantIds},
	}
}

type UpdateMeetingRequest struct {
	MeetingId   string
	Title       string
	Description string
	SlotId      string
}

func (m *UpdateMeetingRequest) fields() []field {
	return []field{
		{num: 1, str: &m.MeetingId},
		{num: 2, str: &m.Title},
		{num: 3, str: &m.Description},
		{num: 4, str: &m.SlotId},
	}
}

type MeetingRequest struct {
	MeetingId string
}

func (m *MeetingRequest) fields() []field { return []field{{num: 1, str: &m.MeetingId}} }

type ParticipantRequest struct {
	MeetingId string
	UserId    string
}

func (m *ParticipantRequest) fields() []field {
	return []field{{num: 1, str: &m.MeetingId}, {num: 2, str: &m.UserId}}
}

type MeetingResponse struct {
	Meeting *Meeting
}

func (m *MeetingResponse) fields() []field { return []field{{num: 1, msg: one(&m.Meeting)}} }

// ListMeetingsRequest.Role is "organizer" or "participant" (the default).
type ListMeetingsRequest struct {
	UserId string
	Role   string
}

func (m *ListMeetingsRequest) fields() []field {
	return []field{{num: 1, str: &m.UserId}, {num: 2, str: &m.Role}}
}

type ListMeetingsResponse struct {
	Meetings []*Meeting
}

func (m *ListMeetingsResponse) fields() []field { return []field{{num: 1, msg: many(&m.Meetings)}} }

func toProtoUser(u domain.User) *User {
	return &User{
		Id:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: timestamppb.New(u.CreatedAt),
	}
}

func toProtoSlot(s domain.Slot) *Slot {
	out := &Slot{
		Id:         s.ID.String(),
		UserId:     s.OwnerID.String(),
		CalendarId: s.CalendarID.String(),
		StartTime:  timestamppb.New(s.StartTime),
		EndTime:    timestamppb.New(s.EndTime),
		Status:     string(s.Status),
	}
	if s.MeetingID != nil {
		out.MeetingId = s.MeetingID.String()
	}
	return out
}

func toProtoMeeting(m domain.Meeting) *Meeting {
	participants := make([]string, 0, len(m.ParticipantIDs))
	for _, id := range m.ParticipantIDs {
		participants = append(participants, id.String())
	}
	return &Meeting{
		Id:             m.ID.String(),
		Title:          m.Title,
		Description:    m.Description,
		OrganizerId:    m.OrganizerID.String(),
		SlotId:         m.SlotID.String(),
		StartTime:      timestamppb.New(m.StartTime),
		EndTime:        timestamppb.New(m.EndTime),
		ParticipantIds: participants,
	}
}
