package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "doodle.v1.BookingService"

type BookingServiceServer interface {
	CreateUser(context.Context, *CreateUserRequest) (*UserResponse, error)
	GetUser(context.Context, *UserRequest) (*UserResponse, error)
	UpdateUser(context.Context, *UpdateUserRequest) (*UserResponse, error)
	DeleteUser(context.Context, *UserRequest) (*Empty, error)
	ListUsers(context.Context, *ListUsersRequest) (*ListUsersResponse, error)
	CreateSlot(context.Context, *CreateSlotRequest) (*SlotResponse, error)
	GetSlot(context.Context, *SlotRequest) (*SlotResponse, error)
	UpdateSlot(context.Context, *UpdateSlotRequest) (*SlotResponse, error)
	DeleteSlot(context.Context, *SlotRequest) (*Empty, error)
	ListSlots(context.Context, *ListSlotsRequest) (*ListSlotsResponse, error)
	CreateWeeklySlots(context.Context, *CreateWeeklySlotsRequest) (*ListSlotsResponse, error)
	ExportCalendar(context.Context, *UserRequest) (*ExportCalendarResponse, error)
	CreateMeeting(context.Context, *CreateMeetingRequest) (*MeetingResponse, error)
	GetMeeting(context.Context, *MeetingRequest) (*MeetingResponse, error)
	UpdateMeeting(context.Context, *UpdateMeetingRequest) (*MeetingResponse, error)
	DeleteMeeting(context.Context, *MeetingRequest) (*Empty, error)
	ListMeetings(context.Context, *ListMeetingsRequest) (*ListMeetingsResponse, error)
	AddParticipant(context.Context, *ParticipantRequest) (*MeetingResponse, error)
	RemoveParticipant(context.Context, *ParticipantRequest) (*MeetingResponse, error)
	AcceptInvitation(context.Context, *ParticipantRequest) (*MeetingResponse, error)
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateUser", newMsg[CreateUserRequest], BookingServiceServer.CreateUser),
		unary("GetUser", newMsg[UserRequest], BookingServiceServer.GetUser),
		unary("UpdateUser", newMsg[UpdateUserRequest], BookingServiceServer.UpdateUser),
		unary("DeleteUser", newMsg[UserRequest], BookingServiceServer.DeleteUser),
		unary("ListUsers", newMsg[ListUsersRequest], BookingServiceServer.ListUsers),
		unary("CreateSlot", newMsg[CreateSlotRequest], BookingServiceServer.CreateSlot),
		unary("GetSlot", newMsg[SlotRequest], BookingServiceServer.GetSlot),
		unary("UpdateSlot", newMsg[UpdateSlotRequest], BookingServiceServer.UpdateSlot),
		unary("DeleteSlot", newMsg[SlotRequest], BookingServiceServer.DeleteSlot),
		unary("ListSlots", newMsg[ListSlotsRequest], BookingServiceServer.ListSlots),
		unary("CreateWeeklySlots", newMsg[CreateWeeklySlotsRequest], BookingServiceServer.CreateWeeklySlots),
		unary("ExportCalendar", newMsg[UserRequest], BookingServiceServer.ExportCalendar),
		unary("CreateMeeting", newMsg[CreateMeetingRequest], BookingServiceServer.CreateMeeting),
		unary("GetMeeting", newMsg[MeetingRequest], BookingServiceServer.GetMeeting),
		unary("UpdateMeeting", newMsg[UpdateMeetingRequest], BookingServiceServer.UpdateMeeting),
		unary("DeleteMeeting", newMsg[MeetingRequest], BookingServiceServer.DeleteMeeting),
		unary("ListMeetings", newMsg[ListMeetingsRequest], BookingServiceServer.ListMeetings),
		unary("AddParticipant", newMsg[ParticipantRequest], BookingServiceServer.AddParticipant),
		unary("RemoveParticipant", newMsg[ParticipantRequest], BookingServiceServer.RemoveParticipant),
		unary("AcceptInvitation", newMsg[ParticipantRequest], BookingServiceServer.AcceptInvitation),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "doodle/v1/booking.proto", // proto/doodle/v1/booking.proto
}

// RegisterBookingServiceServer registers srv on s. The server must be built
// with grpc.ForceServerCodec(Codec{}).
func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

func newMsg[T any]() *T { return new(T) }

func unary[Req, Resp any](method string, newReq func() Req, call func(BookingServiceServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := newReq()
			if err := dec(req); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				resp, err := call(srv.(BookingServiceServer), ctx, req.(Req))
				if err != nil {
					return nil, err
				}
				return resp, nil
			}
			if interceptor == nil {
				return handler(ctx, req)
			}
			return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
		},
	}
}

// BookingServiceClient calls BookingService over cc using Codec.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func invoke[T any, P messagePtr[T]](ctx context.Context, cc grpc.ClientConnInterface, method string, in message, opts []grpc.CallOption) (*T, error) {
	out := P(new(T))
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return (*T)(out), nil
}

func (c *BookingServiceClient) CreateUser(ctx context.Context, in *CreateUserRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c.cc, "CreateUser", in, opts)
}

func (c *BookingServiceClient) GetUser(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c.cc, "GetUser", in, opts)
}

func (c *BookingServiceClient) UpdateUser(ctx context.Context, in *UpdateUserRequest, opts ...grpc.CallOption) (*UserResponse, error) {
	return invoke[UserResponse](ctx, c.cc, "UpdateUser", in, opts)
}

func (c *BookingServiceClient) DeleteUser(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "DeleteUser", in, opts)
}

func (c *BookingServiceClient) ListUsers(ctx context.Context, in *ListUsersRequest, opts ...grpc.CallOption) (*ListUsersResponse, error) {
	return invoke[ListUsersResponse](ctx, c.cc, "ListUsers", in, opts)
}

func (c *BookingServiceClient) GetSlot(ctx context.Context, in *SlotRequest, opts ...grpc.CallOption) (*SlotResponse, error) {
	return invoke[SlotResponse](ctx, c.cc, "GetSlot", in, opts)
}

func (c *BookingServiceClient) CreateSlot(ctx context.Context, in *CreateSlotRequest, opts ...grpc.CallOption) (*SlotResponse, error) {
	return invoke[SlotResponse](ctx, c.cc, "CreateSlot", in, opts)
}

func (c *BookingServiceClient) UpdateSlot(ctx context.Context, in *UpdateSlotRequest, opts ...grpc.CallOption) (*SlotResponse, error) {
	return invoke[SlotResponse](ctx, c.cc, "UpdateSlot", in, opts)
}

func (c *BookingServiceClient) DeleteSlot(ctx context.Context, in *SlotRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "DeleteSlot", in, opts)
}

func (c *BookingServiceClient) ListSlots(ctx context.Context, in *ListSlotsRequest, opts ...grpc.CallOption) (*ListSlotsResponse, error) {
	return invoke[ListSlotsResponse](ctx, c.cc, "ListSlots", in, opts)
}

func (c *BookingServiceClient) CreateWeeklySlots(ctx context.Context, in *CreateWeeklySlotsRequest, opts ...grpc.CallOption) (*ListSlotsResponse, error) {
	return invoke[ListSlotsResponse](ctx, c.cc, "CreateWeeklySlots", in, opts)
}

func (c *BookingServiceClient) ExportCalendar(ctx context.Context, in *UserRequest, opts ...grpc.CallOption) (*ExportCalendarResponse, error) {
	return invoke[ExportCalendarResponse](ctx, c.cc, "ExportCalendar", in, opts)
}

func (c *BookingServiceClient) CreateMeeting(ctx context.Context, in *CreateMeetingRequest, opts ...grpc.CallOption) (*MeetingResponse, error) {
	return invoke[MeetingResponse](ctx, c.cc, "CreateMeeting", in, opts)
}

func (c *BookingServiceClient) GetMeeting(ctx context.Context, in *MeetingRequest, opts ...grpc.CallOption) (*MeetingResponse, error) {
	return invoke[MeetingResponse](ctx, c.cc, "GetMeeting", in, opts)
}

func (c *BookingServiceClient) UpdateMeeting(ctx context.Context, in *UpdateMeetingRequest, opts ...grpc.CallOption) (*MeetingResponse, error) {
	return invoke[MeetingResponse](ctx, c.cc, "UpdateMeeting", in, opts)
}

func (c *BookingServiceClient) DeleteMeeting(ctx context.Context, in *MeetingRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, "DeleteMeeting", in, opts)
}

func (c *BookingServiceClient) ListMeetings(ctx context.Context, in *ListMeetingsRequest, opts ...grpc.CallOption) (*ListMeetingsResponse, error) {
	return invoke[ListMeetingsResponse](ctx, c.cc, "ListMeetings", in, opts)
}

func (c *BookingServiceClient) AddParticipant(ctx context.Context, in *ParticipantRequest, opts ...grpc.CallOption) (*MeetingResponse, error) {
	return invoke[MeetingResponse](ctx, c.cc, "AddParticipant", in, opts)
}

func (c *BookingServiceClient) RemoveParticipant(ctx context.Context, in *ParticipantRequest, opts ...grpc.CallOption) (*MeetingResponse, error) {
	return invoke[MeetingResponse](ctx, c.cc, "RemoveParticipant", in, opts)
}

func (c *BookingServiceClient) AcceptInvitation(ctx context.Context, in *ParticipantRequest, opts ...grpc.CallOption) (*MeetingResponse, error) {
	return invoke[MeetingResponse](ctx, c.cc, "AcceptInvitation", in, opts)
}
