package scheduler

import (
	"time"

	"github.com/naojsoft/qplan-core/entity"
)

// ExecutedOB is one entry of the executed-OBs feedback mapping: what a
// prior execution billed against an OB, and the quality assessments used
// to decide whether that OB is considered done.
type ExecutedOB struct {
	Proposal string
	OBCode   string
	AcctTime time.Duration
	IQA      string
	FQA      string
}

// Done reports whether e marks its OB complete: FQA "good", or FQA
// blank and IQA "good" or "marginal".
func (e ExecutedOB) Done() bool {
	if e.FQA == "good" {
		return true
	}
	return e.FQA == "" && (e.IQA == "good" || e.IQA == "marginal")
}

// NightRecord is one night's schedule-table row: a clock span plus the
// per-night conditions a Schedule is built from.
type NightRecord struct {
	Start, Stop time.Time
	Data        entity.NightConditions
}

// RunResult is what a completed (or cancelled) driver run hands back:
// one Schedule and NightStats per night actually run, plus whatever OBs
// never found a slot.
type RunResult struct {
	Schedules  []*entity.Schedule
	NightStats []NightStats
	Residual   []*entity.OB
	WallTime   time.Duration
}

// Driver is the multi-night loop: it builds one Schedule per NightRecord, runs
// FillNight against it, and threads the still-unscheduled OB set forward
// so an OB scheduled on an earlier night is not reconsidered on a later
// one.
type Driver struct {
	Scheduler *NightScheduler
}

// NewDriver constructs a Driver around an already-built NightScheduler.
func NewDriver(s *NightScheduler) *Driver {
	return &Driver{Scheduler: s}
}

// Run plans every night in order. OBs belonging to a program whose Skip
// flag is set are dropped up front, and a night whose schedule row was
// marked skipped is recorded as fully unplanned without running the
// scheduler. executed, the executed-OB feedback mapping (possibly empty
// — the persistence collaborator is optional), is used to (a) drop OBs
// it marks Done from eligibility before the first night, and (b)
// pre-seed each program's ProgramBook.ScheduledTime with the sum of
// every executed entry's billed time for that program, regardless of
// completion state. cancel is polled between nights in addition to
// FillNight's own between-slot polling.
func (d *Driver) Run(nights []NightRecord, obs []*entity.OB, programs []*entity.Program, executed []ExecutedOB, cancel <-chan struct{}) (result RunResult, err error) {
	preScheduled := make(map[string]time.Duration)
	done := make(map[string]bool, len(executed))
	for _, e := range executed {
		preScheduled[e.Proposal] += e.AcctTime
		if e.Done() {
			done[e.Proposal+"\x00"+e.OBCode] = true
		}
	}

	books := NewBooks(programs, preScheduled)

	available := make([]*entity.OB, 0, len(obs))
	for _, ob := range obs {
		// A skipped program is out of queue service entirely; none of
		// its OBs are offered to any night.
		if ob.Program != nil && ob.Program.Skip {
			continue
		}
		proposal := ""
		if ob.Program != nil {
			proposal = ob.Program.Proposal
		}
		if done[proposal+"\x00"+ob.ID] {
			continue
		}
		available = append(available, ob)
	}

	started := time.Now()
	defer func() { result.WallTime = time.Since(started) }()

	for nightIdx, night := range nights {
		if cancelled(cancel) {
			result.Residual = available
			return result, Cancelled{}
		}

		sched := entity.NewSchedule(night.Start, night.Stop, night.Data)

		// A night the operator marked skipped is recorded as fully
		// unplanned rather than filled.
		if night.Data.Skip {
			sched.MarkWasted(sched.Stop.Sub(sched.Start))
			result.Schedules = append(result.Schedules, sched)
			result.NightStats = append(result.NightStats, NightStats{Wasted: sched.Wasted()})
			continue
		}

		stats, err := d.Scheduler.FillNight(nightIdx, sched, available, books, cancel)

		available = removeScheduled(available, stats.Scheduled)
		result.Schedules = append(result.Schedules, sched)
		result.NightStats = append(result.NightStats, stats)

		if err != nil {
			if _, ok := err.(Cancelled); ok {
				result.Residual = available
				return result, err
			}
			// A slot-split or cache fault aborts only the night it hit;
			// the night stays in the result as partially scheduled.
			result.NightStats[len(result.NightStats)-1].Rejections = append(
				stats.Rejections, RejectionRecord{Reason: "night aborted: " + err.Error()})
			continue
		}
	}

	result.Residual = available
	d.Scheduler.Sink.OnRunCompleted(RunCompleted{
		Schedules: result.Schedules,
		Residual:  result.Residual,
	})
	return result, nil
}

func removeScheduled(obs []*entity.OB, scheduled []*entity.OB) []*entity.OB {
	if len(scheduled) == 0 {
		return obs
	}
	gone := make(map[*entity.OB]bool, len(scheduled))
	for _, ob := range scheduled {
		gone[ob] = true
	}
	out := obs[:0]
	for _, ob := range obs {
		if !gone[ob] {
			out = append(out, ob)
		}
	}
	return out
}
