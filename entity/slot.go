package entity

import (
	"fmt"
	"time"
)

// slotStartTolerance is how close a split point may be to a slot's start
// and still be treated as starting exactly at the slot's start, avoiding
// a sliver "before" piece from clock-precision jitter.
const slotStartTolerance = 5 * time.Second

// minSlotPiece is the shortest slot worth keeping; anything shorter
// produced by a split is dropped rather than returned as unusable dead
// time.
const minSlotPiece = 1 * time.Second

// Slot is a contiguous span of telescope time available for scheduling,
// optionally already carrying the OB assigned to it.
type Slot struct {
	Start time.Time
	Stop  time.Time
	OB    *OB
}

// Length reports the slot's duration.
func (s Slot) Length() time.Duration {
	return s.Stop.Sub(s.Start)
}

// Split divides the slot into up to three pieces: whatever remains before
// t (dropped if shorter than minSlotPiece, or if t is within
// slotStartTolerance of s.Start), a used piece [t, t+length) carrying ob,
// and whatever remains after (dropped under the same rule). A t up to
// slotStartTolerance before s.Start is clamped to s.Start; earlier than
// that is an error, as is t+length running past the slot's stop. The
// caller is expected to have already confirmed the piece fits.
func (s Slot) Split(t time.Time, length time.Duration, ob *OB) ([]Slot, error) {
	if s.Start.Sub(t) > slotStartTolerance {
		return nil, fmt.Errorf("split point %s precedes slot start %s", t, s.Start)
	}
	if t.Sub(s.Start) <= slotStartTolerance {
		t = s.Start
	}
	end := t.Add(length)
	if end.After(s.Stop) {
		return nil, fmt.Errorf("split piece ending %s runs past slot stop %s", end, s.Stop)
	}

	var out []Slot
	if d := t.Sub(s.Start); d >= minSlotPiece {
		out = append(out, Slot{Start: s.Start, Stop: t})
	}
	out = append(out, Slot{Start: t, Stop: end, OB: ob})
	if d := s.Stop.Sub(end); d >= minSlotPiece {
		out = append(out, Slot{Start: end, Stop: s.Stop})
	}
	return out, nil
}
