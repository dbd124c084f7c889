package grpc

import (
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestCodec_RoundTripsNestedMessages(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	in := &ListMeetingsResponse{Meetings: []*Meeting{
		{
			Id:             "m1",
			Title:          "Planning",
			OrganizerId:    "u1",
			SlotId:         "s1",
			StartTime:      timestamppb.New(start),
			EndTime:        timestamppb.New(start.Add(time.Hour)),
			ParticipantIds: []string{"u1", "u2"},
		},
		{Id: "m2", Title: "Retro"},
	}}

	b, err := Codec{}.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var out ListMeetingsResponse
	if err := (Codec{}).Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if len(out.Meetings) != 2 {
		t.Fatalf("meetings = %d, want 2", len(out.Meetings))
	}
	got := out.Meetings[0]
	if got.Title != "Planning" || got.SlotId != "s1" {
		t.Fatalf("meeting = %+v", got)
	}
	if !got.StartTime.AsTime().Equal(start) || !got.EndTime.AsTime().Equal(start.Add(time.Hour)) {
		t.Fatalf("times = %v..%v", got.StartTime.AsTime(), got.EndTime.AsTime())
	}
	if len(got.ParticipantIds) != 2 || got.ParticipantIds[1] != "u2" {
		t.Fatalf("participants = %v", got.ParticipantIds)
	}
	if out.Meetings[1].StartTime != nil {
		t.Fatalf("unset timestamp decoded as %v", out.Meetings[1].StartTime)
	}
}

func TestCodec_SkipsUnknownFields(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, "u1")
	b = protowire.AppendTag(b, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, "organizer")

	var req ListMeetingsRequest
	if err := (Codec{}).Unmarshal(b, &req); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if req.UserId != "u1" || req.Role != "organizer" {
		t.Fatalf("req = %+v", req)
	}
}

func TestCodec_RejectsTruncatedInput(t *testing.T) {
	b := protowire.AppendTag(nil, 1, protowire.BytesType)
	b = protowire.AppendVarint(b, 10)
	b = append(b, "abc"...)

	var req UserRequest
	if err := (Codec{}).Unmarshal(b, &req); err == nil {
		t.Fatalf("expected error for truncated field")
	}
}

func TestCodec_RejectsForeignTypes(t *testing.T) {
	if _, err := (Codec{}).Marshal("not a message"); err == nil {
		t.Fatalf("expected Marshal error")
	}
	var s string
	if err := (Codec{}).Unmarshal(nil, &s); err == nil {
		t.Fatalf("expected Unmarshal error")
	}
}

func TestCodec_EmptyMessageEncodesToNothing(t *testing.T) {
	b, err := Codec{}.Marshal(&Empty{})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if len(b) != 0 {
		t.Fatalf("len = %d, want 0", len(b))
	}
}

func TestCodec_VarintFields(t *testing.T) {
	in := &CreateWeeklySlotsRequest{UserId: "u1", Weekdays: []string{"MON", "WED"}, EveryWeeks: 2, Count: 300}

	b, err := Codec{}.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var out CreateWeeklySlotsRequest
	if err := (Codec{}).Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if out.EveryWeeks != 2 || out.Count != 300 || len(out.Weekdays) != 2 {
		t.Fatalf("decoded = %+v", out)
	}

	// A varint sent where a string is expected is skipped, not misread.
	var bad []byte
	bad = protowire.AppendTag(bad, 1, protowire.VarintType)
	bad = protowire.AppendVarint(bad, 7)
	var skipped CreateWeeklySlotsRequest
	if err := (Codec{}).Unmarshal(bad, &skipped); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if skipped.UserId != "" {
		t.Fatalf("user id = %q, want empty", skipped.UserId)
	}
}
