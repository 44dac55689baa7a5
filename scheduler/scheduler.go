package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/naojsoft/qplan-core/entity"
	"github.com/naojsoft/qplan-core/evaluate"
	"github.com/naojsoft/qplan-core/feasibility"
)

// RejectionRecord explains why an OB never made it into a night's
// schedule, for the reporter's summary.
type RejectionRecord struct {
	OB     *entity.OB
	Reason string
}

// NightStats summarizes one completed night for the reporter.
type NightStats struct {
	Scheduled  []*entity.OB
	Rejections []RejectionRecord
	Wasted     time.Duration
}

// NightScheduler fills one Schedule by repeatedly evaluating the
// remaining eligible OBs against the next free slot, picking the
// lowest-cost feasible one, and splitting the slot to accommodate its
// helper OBs and the science OB itself.
type NightScheduler struct {
	Filter     *feasibility.Filter
	Evaluator  *evaluate.Evaluator
	Comparator evaluate.Comparator
	Sink       EventSink
}

// New constructs a NightScheduler. A nil sink is replaced with NopSink so
// the scheduler runs with nothing attached.
func New(filter *feasibility.Filter, evaluator *evaluate.Evaluator, cmp evaluate.Comparator, sink EventSink) *NightScheduler {
	if sink == nil {
		sink = NopSink{}
	}
	return &NightScheduler{Filter: filter, Evaluator: evaluator, Comparator: cmp, Sink: sink}
}

// Cancelled is the error FillNight and Run return when the caller's
// cancellation channel fires between slot iterations or between nights.
type Cancelled struct{}

func (Cancelled) Error() string { return "scheduling cancelled" }

// FillNight fills sched from obs, debiting
// accepted science OBs' on-source time into books. nightIdx labels the
// events this call emits. cancel, if non-nil, is polled between slot
// iterations; on a closed/ready channel FillNight returns the partial
// result and Cancelled.
func (s *NightScheduler) FillNight(nightIdx int, sched *entity.Schedule, obs []*entity.OB, books map[string]*ProgramBook, cancel <-chan struct{}) (NightStats, error) {
	s.Sink.OnNightStarted(NightStarted{Night: nightIdx, Start: sched.Start, Stop: sched.Stop})

	stats := NightStats{}

	// Pre-filter: schedule invariants + night visibility.
	results := s.Filter.Run(sched, obs)
	eligible := make([]*entity.OB, 0, len(results))
	for _, r := range results {
		if r.OK {
			eligible = append(eligible, r.OB)
		} else {
			stats.Rejections = append(stats.Rejections, RejectionRecord{OB: r.OB, Reason: r.Reason})
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].ID < eligible[j].ID })

	derivedSeq := 0
	nextDerivedID := func(kind string) string {
		derivedSeq++
		return fmt.Sprintf("derived-%s-%d", kind, derivedSeq)
	}

	searchFrom := sched.Start
	for {
		if cancelled(cancel) {
			return stats, Cancelled{}
		}

		free, ok := sched.NextFreeSlot(searchFrom)
		if !ok {
			break
		}
		if len(eligible) == 0 {
			sched.MarkWasted(free.Length())
			s.Sink.OnSlotAssigned(SlotAssigned{Night: nightIdx, Slot: free})
			break
		}

		prev, _ := sched.GetPrevious(free.Start)

		var good []*evaluate.Candidate
		var stillEligible []*entity.OB
		for _, ob := range eligible {
			cand, rej := s.Evaluator.Evaluate(sched.Data, prev, free, ob)
			if rej != nil {
				stats.Rejections = append(stats.Rejections, RejectionRecord{OB: ob, Reason: rej.Reason})
				continue
			}
			good = append(good, cand)
			stillEligible = append(stillEligible, ob)
		}
		eligible = stillEligible

		s.Comparator.Sort(good)

		var chosen *evaluate.Candidate
		for _, cand := range good {
			book := books[programID(cand.OB)]
			if book == nil || book.Fits(cand.OB.OnSourceTime()) {
				chosen = cand
				break
			}
			stats.Rejections = append(stats.Rejections, RejectionRecord{
				OB: cand.OB, Reason: "would exceed program allotted time",
			})
		}

		if chosen == nil {
			sched.MarkWasted(free.Length())
			s.Sink.OnSlotAssigned(SlotAssigned{Night: nightIdx, Slot: free})
			searchFrom = free.Stop
			continue
		}

		if book := books[programID(chosen.OB)]; book != nil {
			book.Debit(chosen.OB.OnSourceTime())
		}

		pieces, err := s.splitForCandidate(free, chosen, nextDerivedID)
		if err != nil {
			return stats, err
		}
		if err := sched.InsertSlot(free, pieces); err != nil {
			return stats, err
		}
		for _, p := range pieces {
			s.Sink.OnSlotAssigned(SlotAssigned{Night: nightIdx, Slot: p})
		}

		stats.Scheduled = append(stats.Scheduled, chosen.OB)
		eligible = removeOB(eligible, chosen.OB)

		// Advance past everything just inserted. splitForCandidate
		// appends a trailing OB==nil piece only when the helpers and
		// science OB didn't fully consume free; when present, that is
		// the next free slot to discover, so searchFrom must land on
		// its Start rather than skip past it.
		if last := pieces[len(pieces)-1]; last.OB == nil {
			searchFrom = last.Start
		} else {
			searchFrom = free.Stop
		}
	}

	stats.Wasted = sched.Wasted()
	s.Sink.OnNightCompleted(NightCompleted{Night: nightIdx, Schedule: sched, Stats: stats})
	return stats, nil
}

// splitForCandidate carves free into the fixed helper sequence: a
// 1-second setup helper always comes first, then filter-change, delay and
// calibration helpers for whichever apply, then the science OB slot of
// length TotalTime — in that order, each helper a derived OB tagged with
// its kind. The setup helper is exactly one second; instrument-setup or
// slew time beyond that second is not represented as its own slot and
// simply shows up as schedule waste once the fill loop runs out of OBs
// to place in what's left (see DESIGN.md).
func (s *NightScheduler) splitForCandidate(free entity.Slot, cand *evaluate.Candidate, nextID func(string) string) ([]entity.Slot, error) {
	cursor := free.Start
	var pieces []entity.Slot

	advance := func(dur time.Duration, ob *entity.OB) error {
		if dur <= 0 {
			return nil
		}
		end := cursor.Add(dur)
		if end.After(free.Stop) {
			return fmt.Errorf("slot split: piece for %s overruns free slot end %s", ob.ID, free.Stop)
		}
		pieces = append(pieces, entity.Slot{Start: cursor, Stop: end, OB: ob})
		cursor = end
		return nil
	}

	setupOB := entity.NewDerivedOB(nextID("setup"), entity.DerivedSetup, cand.OB.InstCfg, "configure instrument")
	if err := advance(time.Second, setupOB); err != nil {
		return nil, err
	}

	if cand.FilterChange {
		fcOB := entity.NewDerivedOB(nextID("filterchange"), entity.DerivedFilterChange, cand.OB.InstCfg,
			fmt.Sprintf("switch to %s", cand.OB.InstCfg.Filter()))
		if err := advance(cand.FilterChangeSec, fcOB); err != nil {
			return nil, err
		}
	}

	if cand.DelaySec > 0 {
		delayOB := entity.NewDerivedOB(nextID("delay"), entity.DerivedDelay, cand.OB.InstCfg,
			fmt.Sprintf("target %s to become visible", cand.OB.Target.Name))
		if err := advance(cand.DelaySec, delayOB); err != nil {
			return nil, err
		}
	}

	if cand.OB.Target.CalibCompanion != nil {
		// The calibration segment covers the companion exposure plus the
		// initial slew to the companion; the secondary slew back to the
		// science target is not given its own segment.
		calibDur := cand.CalibrationSec + cand.SlewSec
		calibOB := entity.NewDerivedOB(nextID("calibration"), entity.DerivedCalibration, cand.OB.InstCfg,
			fmt.Sprintf("calibrate against %s", cand.OB.Target.CalibCompanion.Name))
		if err := advance(calibDur, calibOB); err != nil {
			return nil, err
		}
	}

	if err := advance(cand.OB.TotalTime(), cand.OB); err != nil {
		return nil, err
	}

	if cursor.Before(free.Stop) {
		pieces = append(pieces, entity.Slot{Start: cursor, Stop: free.Stop})
	}

	return pieces, nil
}

func removeOB(obs []*entity.OB, target *entity.OB) []*entity.OB {
	out := obs[:0]
	for _, ob := range obs {
		if ob != target {
			out = append(out, ob)
		}
	}
	return out
}

func programID(ob *entity.OB) string {
	if ob.Program == nil {
		return ""
	}
	return ob.Program.Proposal
}

func cancelled(cancel <-chan struct{}) bool {
	if cancel == nil {
		return false
	}
	select {
	case <-cancel:
		return true
	default:
		return false
	}
}
