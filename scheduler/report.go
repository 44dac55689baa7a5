package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/naojsoft/qplan-core/entity"
)

// ProgramSummary is one program's line in the reporter's output: how many
// of its OBs were scheduled against how many it submitted, its rank, and
// (for uncompleted programs) which OBs are left.
type ProgramSummary struct {
	Proposal      string
	Rank          float64
	ScheduledOBs  int
	TotalOBs      int
	ScheduledTime time.Duration
	ProgramTime   time.Duration
	Residual      []*entity.OB
}

// Completed reports whether every OB this program submitted was
// scheduled.
func (p ProgramSummary) Completed() bool {
	return p.ScheduledOBs >= p.TotalOBs
}

// Summarize builds a RunSummary from a completed (or partially completed,
// cancelled) RunResult, the full program list, and the OBs originally
// submitted (so the ScheduledOBs/TotalOBs ratio reflects OBs this run was
// asked to place, not just the ones it accepted).
func Summarize(result RunResult, programs []*entity.Program, submitted []*entity.OB, wallTime time.Duration) RunSummary {
	scheduledByID := make(map[string]bool)
	for _, stats := range result.NightStats {
		for _, ob := range stats.Scheduled {
			scheduledByID[ob.ID] = true
		}
	}
	residualByID := make(map[string]*entity.OB, len(result.Residual))
	for _, ob := range result.Residual {
		residualByID[ob.ID] = ob
	}

	perProgram := make(map[string]*ProgramSummary, len(programs))
	for _, p := range programs {
		perProgram[p.Proposal] = &ProgramSummary{Proposal: p.Proposal, Rank: p.Rank, ProgramTime: p.TotalTime}
	}

	var totalAvailable, totalScheduled time.Duration
	for _, sched := range result.Schedules {
		totalAvailable += sched.Stop.Sub(sched.Start)
	}

	for _, ob := range submitted {
		proposal := ""
		if ob.Program != nil {
			proposal = ob.Program.Proposal
		}
		ps, ok := perProgram[proposal]
		if !ok {
			ps = &ProgramSummary{Proposal: proposal}
			perProgram[proposal] = ps
		}
		ps.TotalOBs++
		if scheduledByID[ob.ID] {
			ps.ScheduledOBs++
			ps.ScheduledTime += ob.OnSourceTime()
			totalScheduled += ob.OnSourceTime()
		}
		if residualByID[ob.ID] != nil {
			ps.Residual = append(ps.Residual, residualByID[ob.ID])
		}
	}

	summaries := make([]ProgramSummary, 0, len(perProgram))
	for _, ps := range perProgram {
		summaries = append(summaries, *ps)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Proposal < summaries[j].Proposal })

	var unschedulable []RejectionRecord
	seen := make(map[string]bool)
	for _, stats := range result.NightStats {
		for _, r := range stats.Rejections {
			if r.OB == nil {
				// night-level abort record, not tied to any one OB
				unschedulable = append(unschedulable, r)
				continue
			}
			if residualByID[r.OB.ID] == nil || seen[r.OB.ID] {
				continue
			}
			seen[r.OB.ID] = true
			unschedulable = append(unschedulable, r)
		}
	}

	totalUnscheduled := totalAvailable - totalScheduled
	if totalUnscheduled < 0 {
		totalUnscheduled = 0
	}

	return RunSummary{
		TotalNights:       len(result.Schedules),
		TotalAvailable:    totalAvailable,
		TotalScheduled:    totalScheduled,
		TotalUnscheduled:  totalUnscheduled,
		ScheduledOBCount:  len(scheduledByID),
		TotalOBCount:      len(submitted),
		Unschedulable:     unschedulable,
		Programs:          summaries,
		WallTime:          wallTime,
	}
}

// RunSummary is the reporter's structured view of a completed run, ahead
// of rendering it to text.
type RunSummary struct {
	TotalNights      int
	TotalAvailable   time.Duration
	TotalScheduled   time.Duration
	TotalUnscheduled time.Duration
	ScheduledOBCount int
	TotalOBCount     int
	Unschedulable    []RejectionRecord
	Programs         []ProgramSummary
	WallTime         time.Duration
}

// PercentScheduled is the fraction of submitted OBs that were scheduled,
// as a percentage; 100 when TotalOBCount is 0 (nothing was asked for).
func (r RunSummary) PercentScheduled() float64 {
	if r.TotalOBCount == 0 {
		return 100
	}
	return 100 * float64(r.ScheduledOBCount) / float64(r.TotalOBCount)
}

// Reporter renders a RunSummary as a plain-text summary document.
type Reporter struct{}

// Render produces the summary text: percentage of OBs scheduled, the
// unschedulable list with causes, completed and uncompleted programs, the
// available/scheduled/unscheduled minute totals, and the wall time spent
// planning.
func (Reporter) Render(s RunSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Queue Planning Summary\n")
	fmt.Fprintf(&b, "======================\n")
	fmt.Fprintf(&b, "Nights planned: %d\n", s.TotalNights)
	fmt.Fprintf(&b, "OBs scheduled: %d/%d (%.1f%%)\n", s.ScheduledOBCount, s.TotalOBCount, s.PercentScheduled())
	fmt.Fprintf(&b, "Available time: %.1f min\n", s.TotalAvailable.Minutes())
	fmt.Fprintf(&b, "Scheduled time: %.1f min\n", s.TotalScheduled.Minutes())
	fmt.Fprintf(&b, "Unscheduled time: %.1f min\n", s.TotalUnscheduled.Minutes())
	fmt.Fprintf(&b, "Wall time to plan: %s\n\n", s.WallTime)

	var completed, uncompleted []ProgramSummary
	for _, p := range s.Programs {
		if p.Completed() {
			completed = append(completed, p)
		} else {
			uncompleted = append(uncompleted, p)
		}
	}

	fmt.Fprintf(&b, "Completed programs (%d):\n", len(completed))
	for _, p := range completed {
		fmt.Fprintf(&b, "  %s: %d/%d OBs, rank %.1f\n", p.Proposal, p.ScheduledOBs, p.TotalOBs, p.Rank)
	}

	fmt.Fprintf(&b, "\nUncompleted programs (%d):\n", len(uncompleted))
	for _, p := range uncompleted {
		fmt.Fprintf(&b, "  %s: %d/%d OBs, rank %.1f\n", p.Proposal, p.ScheduledOBs, p.TotalOBs, p.Rank)
		for _, ob := range p.Residual {
			fmt.Fprintf(&b, "    - %s (unscheduled)\n", ob.ID)
		}
	}

	fmt.Fprintf(&b, "\nUnschedulable OBs (%d):\n", len(s.Unschedulable))
	for _, r := range s.Unschedulable {
		if r.OB == nil {
			fmt.Fprintf(&b, "  %s\n", r.Reason)
			continue
		}
		fmt.Fprintf(&b, "  %s: %s\n", r.OB.ID, r.Reason)
	}

	return b.String()
}
