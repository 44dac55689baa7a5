// Package feasibility implements the two-stage per-OB gating that runs
// before slot evaluation: schedule invariants (instrument/filter/category
// whitelists) followed by night visibility (dome state and observability
// windows).
package feasibility

import (
	"fmt"
	"time"

	"github.com/naojsoft/qplan-core/entity"
	"github.com/naojsoft/qplan-core/ephemeris"
)

// Result reports the outcome of filtering one OB against one schedule:
// either ok with the visibility window the OB was found observable
// within, or a human-readable reason an evaluator/reporter can surface
// verbatim in the run summary.
type Result struct {
	OB     *entity.OB
	OK     bool
	Reason string

	VisibleStart time.Time
	VisibleStop  time.Time
}

// Filter evaluates OBs against a schedule's invariants and night
// visibility, backed by an ephemeris Engine for observability windows.
type Filter struct {
	Engine *ephemeris.Engine
}

// New constructs a Filter bound to engine.
func New(engine *ephemeris.Engine) *Filter {
	return &Filter{Engine: engine}
}

// Run applies the invariant stage then the visibility stage to every ob
// in obs against sched, in order, short-circuiting each OB at its first
// failing stage. Before the per-OB checks it bulk-populates the engine's
// sample cache for every distinct target over the night, fanned out
// across targets, so the altitude pre-screen hits warm samples instead
// of recomputing per OB.
func (f *Filter) Run(sched *entity.Schedule, obs []*entity.OB) []Result {
	f.Engine.ParallelPopulate(distinctTargets(obs), nightGrid(sched, f.Engine.Cache.GridMinutes))

	out := make([]Result, 0, len(obs))
	for _, ob := range obs {
		out = append(out, f.checkOne(sched, ob))
	}
	return out
}

// distinctTargets collects each OB's target plus any calibration
// companion, deduplicated by name.
func distinctTargets(obs []*entity.OB) []*entity.Target {
	seen := make(map[string]bool, len(obs))
	var out []*entity.Target
	add := func(t *entity.Target) {
		if t == nil || seen[t.Name] {
			return
		}
		seen[t.Name] = true
		out = append(out, t)
	}
	for _, ob := range obs {
		add(ob.Target)
		if ob.Target != nil {
			add(ob.Target.CalibCompanion)
		}
	}
	return out
}

// nightGrid samples the schedule span at the cache's grid resolution,
// inclusive of the final instant.
func nightGrid(sched *entity.Schedule, gridMinutes int) []time.Time {
	step := time.Duration(gridMinutes) * time.Minute
	var out []time.Time
	for t := sched.Start; !t.After(sched.Stop); t = t.Add(step) {
		out = append(out, t)
	}
	return out
}

func (f *Filter) checkOne(sched *entity.Schedule, ob *entity.OB) Result {
	if r, ok := f.checkScheduleInvariants(sched, ob); !ok {
		return r
	}
	return f.checkNightVisibility(sched, ob)
}

// checkScheduleInvariants gates instrument, filter, and category
// membership against the schedule's whitelists.
func (f *Filter) checkScheduleInvariants(sched *entity.Schedule, ob *entity.OB) (Result, bool) {
	data := sched.Data

	if !data.AllowsInstrument(ob.InstCfg.InstrumentName()) {
		return reject(ob, fmt.Sprintf("instrument %q not available this schedule", ob.InstCfg.InstrumentName())), false
	}
	if !ob.InstCfg.CheckFilterInstalled(data.InstalledFilters) {
		return reject(ob, fmt.Sprintf("filter %q not installed", ob.InstCfg.Filter())), false
	}
	if ob.Program != nil && !data.AllowsCategory(ob.Program.Category) {
		return reject(ob, fmt.Sprintf("category %q not in this schedule's whitelist", ob.Program.Category)), false
	}
	return Result{OB: ob, OK: true}, true
}

// checkNightVisibility checks dome-state compatibility and an
// observability window covering the OB's total time, intersected with the
// calibration companion's window when one is present.
func (f *Filter) checkNightVisibility(sched *entity.Schedule, ob *entity.OB) Result {
	data := sched.Data

	if data.Dome != ob.TelCfg.Dome {
		return reject(ob, fmt.Sprintf("dome state mismatch: schedule %s, OB wants %s", data.Dome, ob.TelCfg.Dome))
	}
	if data.Dome == entity.DomeClosed {
		return Result{OB: ob, OK: true, VisibleStart: sched.Start, VisibleStop: sched.Stop}
	}

	elMin, elMax := ob.TelCfg.ElMinMax()

	if f.neverClearsFloorCached(ob.Target, sched, elMin) {
		return reject(ob, "target never rises above the elevation floor tonight")
	}

	if ob.Target.CalibCompanion != nil {
		ok, start, stop := f.Engine.JointObservable(
			ob.Target, ob.Target.CalibCompanion,
			sched.Start, sched.Stop,
			elMin, elMax,
			ob.EnvCfg.AirmassMax, ob.EnvCfg.MoonSepDeg,
			ob.TotalTime(),
		)
		if !ok {
			return reject(ob, "no joint observability window for target and calibration companion")
		}
		return Result{OB: ob, OK: true, VisibleStart: start, VisibleStop: stop}
	}

	ok, start, stop := f.Engine.Observable(
		ob.Target,
		sched.Start, sched.Stop,
		elMin, elMax,
		ob.EnvCfg.AirmassMax, ob.EnvCfg.MoonSepDeg,
		ob.TotalTime(),
	)
	if !ok {
		return reject(ob, "target not observable for enough of the night (ephemeris)")
	}
	return Result{OB: ob, OK: true, VisibleStart: start, VisibleStop: stop}
}

// preScreenMarginDeg bounds how much a target's altitude can change
// between adjacent cache grid samples (well under 1 degree per 5-minute
// cell at sidereal rate); the pre-screen only rejects when every sample
// sits below the floor by more than this margin, so a window that peeks
// above the floor between samples is never lost.
const preScreenMarginDeg = 1.0

// neverClearsFloorCached walks the night's cached grid samples and
// reports whether the target provably stays below elMin all night. Grid
// cells the cache has no sample for count as "might clear" so a partial
// population never causes a false rejection; the expensive root-finding
// in Observable is skipped only on a sure miss.
func (f *Filter) neverClearsFloorCached(tgt *entity.Target, sched *entity.Schedule, elMin float64) bool {
	step := time.Duration(f.Engine.Cache.GridMinutes) * time.Minute
	sampled := false
	for t := sched.Start; !t.After(sched.Stop); t = t.Add(step) {
		res, err := f.Engine.CalcCached(tgt, t)
		if err != nil {
			return false
		}
		sampled = true
		if res.AltDeg >= elMin-preScreenMarginDeg {
			return false
		}
	}
	return sampled
}

func reject(ob *entity.OB, reason string) Result {
	return Result{OB: ob, OK: false, Reason: reason}
}
