package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCanTransition(t *testing.T) {
	statuses := []SlotStatus{SlotStatusAvailable, SlotStatusBooked, SlotStatusBusy}
	allowed := map[[2]SlotStatus]bool{
		{SlotStatusAvailable, SlotStatusBooked}: true,
		{SlotStatusBooked, SlotStatusBusy}:      true,
		{SlotStatusBooked, SlotStatusAvailable}: true,
		{SlotStatusBusy, SlotStatusAvailable}:   true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]SlotStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if CanTransition("UNKNOWN", SlotStatusAvailable) {
		t.Fatalf("unknown status must not transition")
	}
}

func TestSlotTransition_BindsAndReleasesMeeting(t *testing.T) {
	meetingID := uuid.MustParse("00000000-0000-0000-0000-000000000101")
	slot := Slot{
		ID:        uuid.MustParse("00000000-0000-0000-0000-000000000201"),
		StartTime: at(10, 0),
		EndTime:   at(11, 0),
		Status:    SlotStatusAvailable,
	}
	if !slot.Consistent() {
		t.Fatalf("fresh available slot should be consistent")
	}

	booked, err := slot.Transition(SlotStatusBooked, meetingID)
	if err != nil {
		t.Fatalf("book error: %v", err)
	}
	if !booked.BoundTo(meetingID) || booked.Status != SlotStatusBooked || !booked.Consistent() {
		t.Fatalf("booked slot = %+v", booked)
	}
	if slot.Status != SlotStatusAvailable || slot.MeetingID != nil {
		t.Fatalf("Transition must not mutate the receiver")
	}

	busy, err := booked.Transition(SlotStatusBusy, uuid.Nil)
	if err != nil {
		t.Fatalf("accept error: %v", err)
	}
	if !busy.BoundTo(meetingID) || !busy.Consistent() {
		t.Fatalf("busy slot lost its meeting: %+v", busy)
	}

	released, err := busy.Transition(SlotStatusAvailable, uuid.Nil)
	if err != nil {
		t.Fatalf("release error: %v", err)
	}
	if released.MeetingID != nil || released.Status != SlotStatusAvailable || !released.Consistent() {
		t.Fatalf("released slot = %+v", released)
	}
}

func TestSlotTransition_RejectsIllegalMoves(t *testing.T) {
	slot := Slot{Status: SlotStatusAvailable}

	_, err := slot.Transition(SlotStatusBusy, uuid.Nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidTransition)
	}
	var tErr *TransitionError
	if !errors.As(err, &tErr) {
		t.Fatalf("error type = %T, want *TransitionError", err)
	}
	if tErr.From != SlotStatusAvailable || tErr.To != SlotStatusBusy {
		t.Fatalf("transition error = %+v", tErr)
	}

	if _, err := slot.Transition(SlotStatusBooked, uuid.Nil); err == nil {
		t.Fatalf("booking without a meeting id should fail")
	}
}

func TestSlotConsistent_DetectsDanglingReferences(t *testing.T) {
	meetingID := uuid.MustParse("00000000-0000-0000-0000-000000000102")
	if (Slot{Status: SlotStatusAvailable, MeetingID: &meetingID}).Consistent() {
		t.Fatalf("available slot with a meeting must be inconsistent")
	}
	if (Slot{Status: SlotStatusBooked}).Consistent() {
		t.Fatalf("booked slot without a meeting must be inconsistent")
	}
}
