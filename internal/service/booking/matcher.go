package booking

import (
	"bytes"
	"context"

	"github.com/google/uuid"

	"doodle/backend/internal/domain"
	"doodle/backend/internal/store"
)

// Match returns the AVAILABLE slot of owner that should be reserved for a
// meeting over target. A slot spanning exactly target wins; otherwise the
// earliest start, then the earliest end, then the lowest id.
func Match(ctx context.Context, r store.Reader, ownerID uuid.UUID, target domain.Interval) (domain.Slot, error) {
	candidates, err := r.FindReservable(ctx, ownerID, target, domain.SlotStatusAvailable)
	if err != nil {
		return domain.Slot{}, err
	}
	best, ok := pick(target, candidates)
	if !ok {
		return domain.Slot{}, &NoMatchingSlotError{UserID: ownerID, Target: target}
	}
	return best, nil
}

func pick(target domain.Interval, candidates []domain.Slot) (domain.Slot, bool) {
	var best domain.Slot
	found := false
	for _, c := range candidates {
		if c.Status != domain.SlotStatusAvailable || !c.Interval().Overlaps(target) {
			continue
		}
		if !found || better(target, c, best) {
			best, found = c, true
		}
	}
	return best, found
}

func better(target domain.Interval, a, b domain.Slot) bool {
	aExact, bExact := a.Interval().Equal(target), b.Interval().Equal(target)
	if aExact != bExact {
		return aExact
	}
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.Before(b.StartTime)
	}
	if !a.EndTime.Equal(b.EndTime) {
		return a.EndTime.Before(b.EndTime)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}
