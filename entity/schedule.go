package entity

import (
	"fmt"
	"sort"
	"time"
)

// NightConditions carries the telescope/environment state applying to an
// entire night's schedule: which filters are mounted, current dome state,
// the seeing/transparency actually observed (as opposed to an OB's
// requested minimums), the category/instrument whitelists the night is
// restricted to, and the telescope's pointing state at the start of the
// night (used by the evaluator as the slew origin for the first slot).
type NightConditions struct {
	InstalledFilters []string
	Dome             DomeState
	Seeing           float64
	Transparency     float64

	// Categories and Instruments are the whitelists a schedule invariant
	// check gates an OB's program category and
	// instrument name against. A nil slice means "no restriction".
	Categories  []string
	Instruments []string

	// CurFilter, CurAz and CurEl describe the telescope's state carried
	// into the night's first slot, used when there is no previous OB to
	// derive a slew origin from.
	CurFilter string
	CurAz     float64
	CurEl     float64

	// Skip marks a night the operator has taken out of queue service;
	// the driver records its schedule as fully unplanned instead of
	// filling it. Note is free-form operator commentary carried through
	// for reporting.
	Skip bool
	Note string
}

// AllowsCategory reports whether name is in the Categories whitelist, or
// true if the whitelist is empty (no restriction).
func (n NightConditions) AllowsCategory(name string) bool {
	return len(n.Categories) == 0 || contains(n.Categories, name)
}

// AllowsInstrument reports whether name is in the Instruments whitelist,
// or true if the whitelist is empty (no restriction).
func (n NightConditions) AllowsInstrument(name string) bool {
	return len(n.Instruments) == 0 || contains(n.Instruments, name)
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

// Schedule is one night's timeline: a bounded span of time divided into
// slots, some carrying an assigned OB and some still free. Slots are kept
// sorted by start time and are expected to tile the [Start,Stop) span
// without gaps or overlaps once scheduling completes; free time produced
// by InsertSlot is itself represented as a slot with OB == nil.
type Schedule struct {
	Start time.Time
	Stop  time.Time
	Data  NightConditions

	slots []Slot

	// wasted accumulates time in slots that were never filled, tracked
	// separately from the slots themselves so a reporter can summarize
	// utilization without re-walking the slot list.
	wasted time.Duration
}

// NewSchedule creates an empty schedule spanning [start,stop), initially
// one free slot covering the whole night.
func NewSchedule(start, stop time.Time, data NightConditions) *Schedule {
	return &Schedule{
		Start: start,
		Stop:  stop,
		Data:  data,
		slots: []Slot{{Start: start, Stop: stop}},
	}
}

// Slots returns the schedule's slots in time order. Callers must not
// mutate the returned slice in place; use InsertSlot to modify the
// schedule.
func (s *Schedule) Slots() []Slot {
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

// NextFreeSlot returns the earliest still-unassigned slot at or after t,
// or false if none remains.
func (s *Schedule) NextFreeSlot(t time.Time) (Slot, bool) {
	for _, sl := range s.slots {
		if sl.OB == nil && !sl.Stop.Before(t) && !sl.Start.Before(t) {
			return sl, true
		}
	}
	// A free slot straddling t (t falls inside it, not at its start)
	// also counts.
	for _, sl := range s.slots {
		if sl.OB == nil && !sl.Start.After(t) && sl.Stop.After(t) {
			return sl, true
		}
	}
	return Slot{}, false
}

// GetPrevious returns the slot immediately preceding t, if any — used by
// the evaluator to find the OB just before a candidate slot, for
// computing slew origin.
func (s *Schedule) GetPrevious(t time.Time) (Slot, bool) {
	var best Slot
	found := false
	for _, sl := range s.slots {
		if !sl.Stop.After(t) {
			if !found || sl.Stop.After(best.Stop) {
				best = sl
				found = true
			}
		}
	}
	return best, found
}

// InsertSlot replaces the free slot at from with the pieces produced by
// splitting it, in the fixed order the scheduler always uses: setup,
// filter-change, delay, calibration, then the science OB, with any
// leftover free time after the science OB appended last. Pieces with zero
// OB and zero length (dropped by Slot.Split) are simply absent from
// pieces; InsertSlot does not reorder or second-guess the caller's
// splitting decision, it only replaces and re-sorts.
func (s *Schedule) InsertSlot(from Slot, pieces []Slot) error {
	idx := -1
	for i, sl := range s.slots {
		if sl.Start.Equal(from.Start) && sl.Stop.Equal(from.Stop) && sl.OB == nil {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("slot [%s,%s) not found among free slots", from.Start, from.Stop)
	}

	replaced := make([]Slot, 0, len(s.slots)+len(pieces)-1)
	replaced = append(replaced, s.slots[:idx]...)
	replaced = append(replaced, pieces...)
	replaced = append(replaced, s.slots[idx+1:]...)

	sort.Slice(replaced, func(i, j int) bool {
		return replaced[i].Start.Before(replaced[j].Start)
	})
	s.slots = replaced
	return nil
}

// MarkWasted records dt of schedule time that could not be filled with any
// OB, for the night's final utilization accounting.
func (s *Schedule) MarkWasted(dt time.Duration) {
	s.wasted += dt
}

// Wasted reports the total unfilled time recorded via MarkWasted.
func (s *Schedule) Wasted() time.Duration {
	return s.wasted
}

// ScheduledTime sums the on-source time of every science (non-derived) OB
// assigned so far, keyed by program proposal.
func (s *Schedule) ScheduledTime() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for _, sl := range s.slots {
		if sl.OB == nil || sl.OB.Derived != NotDerived || sl.OB.Program == nil {
			continue
		}
		out[sl.OB.Program.Proposal] += sl.OB.OnSourceTime()
	}
	return out
}
