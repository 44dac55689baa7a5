// Package evaluate implements the slot evaluator and cost function: for a
// (previous slot, candidate slot, OB) triple it either rejects the OB
// with a reason or produces a scored Candidate; Comparator then totally
// orders a batch of Candidates for the scheduler.
package evaluate

import (
	"math"
	"time"

	"github.com/naojsoft/qplan-core/entity"
	"github.com/naojsoft/qplan-core/ephemeris"
)

// Config parameterizes the evaluator; DefaultConfig supplies the usual
// values for every field.
type Config struct {
	// SlewRateDegPerSec is the per-axis slew rate used by the monotone
	// slew-time model (step 7 of Evaluate).
	SlewRateDegPerSec float64

	// ParkedAzDeg/ParkedElDeg is the telescope's parked position, used as
	// the slew origin when there is no previous OB and the schedule
	// carries no current az/el.
	ParkedAzDeg float64
	ParkedElDeg float64

	// AllowDelay, if false, rejects any candidate with DelaySec > 0
	// (step 9 of Evaluate).
	AllowDelay bool

	// EnvironmentChecksEnabled/MoonChecksEnabled gate steps 6 and 11;
	// both default to true and exist for a caller that wants to relax
	// them (e.g. re-evaluating a fully-constrained test schedule).
	EnvironmentChecksEnabled bool
	MoonChecksEnabled        bool
}

// DefaultConfig returns the usual evaluator configuration: delay
// allowed, environment and moon checks on, 0.5 deg/s
// per-axis slew, parked at zenith-ish (az 0, el 90 is the zenith; a real
// deployment overrides this with its telescope's actual park position).
func DefaultConfig() Config {
	return Config{
		SlewRateDegPerSec:        0.5,
		ParkedAzDeg:              0,
		ParkedElDeg:              90,
		AllowDelay:               true,
		EnvironmentChecksEnabled: true,
		MoonChecksEnabled:        true,
	}
}

// Candidate is an accepted evaluation: everything the cost function and
// the scheduler's slot-splitting step need.
type Candidate struct {
	OB     *entity.OB
	PrevOB *entity.OB

	PrepSec         time.Duration
	SlewSec         time.Duration
	Slew2Sec        time.Duration
	FilterChange    bool
	FilterChangeSec time.Duration
	CalibrationSec  time.Duration

	StartTime time.Time
	StopTime  time.Time
	DelaySec  time.Duration
}

// Rejected explains why an OB could not be placed in a slot; the
// scheduler aggregates Reason verbatim into the run summary.
type Rejected struct {
	OB     *entity.OB
	Reason string
}

// Evaluator evaluates (previous slot, candidate slot, OB) triples against
// an ephemeris Engine.
type Evaluator struct {
	Engine *ephemeris.Engine
	Config Config
}

// New constructs an Evaluator with the given engine and config.
func New(engine *ephemeris.Engine, cfg Config) *Evaluator {
	return &Evaluator{Engine: engine, Config: cfg}
}

// Evaluate scores ob against slot, given data (the
// schedule's night conditions) and prev (the slot immediately preceding
// slot, or the zero Slot if none).
func (e *Evaluator) Evaluate(data entity.NightConditions, prev, slot entity.Slot, ob *entity.OB) (*Candidate, *Rejected) {
	// 1. Size gate.
	if ob.TotalTime() > slot.Length() {
		return nil, reject(ob, "OB total time exceeds slot size")
	}

	// 2. Time-window gate: the slot must contain at least one instant
	// within the OB's configured start-time window.
	if !timeWindowFeasible(ob.EnvCfg, slot) {
		return nil, reject(ob, "slot falls outside the OB's configured time window")
	}

	var prevOB *entity.OB
	if prev.OB != nil {
		prevOB = prev.OB
	}

	prep := time.Duration(0)
	filterChange := false
	filterChangeSec := time.Duration(0)

	// 3. Filter change.
	curFilter := data.CurFilter
	if prevOB != nil {
		curFilter = prevOB.InstCfg.Filter()
	}
	if ob.InstCfg.Filter() != "" && ob.InstCfg.Filter() != curFilter {
		filterChangeSec = ob.InstCfg.FilterChangeCost()
		prep += filterChangeSec
		filterChange = true
	}

	// 4. Setup.
	prep += ob.SetupTime()

	startTime := slot.Start.Add(prep)

	// 5. Dome closed fast path.
	if data.Dome == entity.DomeClosed {
		stopTime := startTime.Add(ob.TotalTime())
		if stopTime.After(slot.Stop) {
			return nil, reject(ob, "does not fit before slot end (dome closed)")
		}
		return &Candidate{
			OB: ob, PrevOB: prevOB,
			PrepSec: prep, FilterChange: filterChange, FilterChangeSec: filterChangeSec,
			StartTime: startTime, StopTime: stopTime,
		}, nil
	}

	// 6. Environment gates.
	if e.Config.EnvironmentChecksEnabled {
		if ob.EnvCfg.SeeingMax > 0 && data.Seeing > ob.EnvCfg.SeeingMax {
			return nil, reject(ob, "seeing exceeds OB's ceiling")
		}
		if ob.EnvCfg.TransparencyMin > 0 && data.Transparency < ob.EnvCfg.TransparencyMin {
			return nil, reject(ob, "transparency below OB's floor")
		}
	}

	// 7. Slew.
	slewTarget := ob.Target
	if ob.Target.CalibCompanion != nil {
		slewTarget = ob.Target.CalibCompanion
	}
	originAz, originEl := e.slewOrigin(data, prevOB, startTime)
	destAlt, destAz := e.pointingAt(slewTarget, startTime)
	slewSec := e.slewDuration(originAz, originEl, destAz, destAlt)
	prep += slewSec
	startTime = startTime.Add(slewSec)

	// 8. Calibration companion.
	calibrationSec := time.Duration(0)
	slew2Sec := time.Duration(0)
	if ob.Target.CalibCompanion != nil {
		companion := ob.Target.CalibCompanion
		calibrationSec = ob.InstCfg.ExposureTime() * time.Duration(ob.InstCfg.NumExposures())
		startTime = startTime.Add(calibrationSec)

		if !companion.SamePosition(ob.Target) {
			elMin, elMax := ob.TelCfg.ElMinMax()
			ok, _, _ := e.Engine.Observable(ob.Target, startTime, slot.Stop, elMin, elMax, ob.EnvCfg.AirmassMax, 0, 0)
			if !ok {
				return nil, reject(ob, "science target not observable after calibration exposure")
			}
			compAlt, compAz := e.pointingAt(companion, startTime)
			altNow, azNow := e.pointingAt(ob.Target, startTime)
			slew2Sec = e.slewDuration(compAz, compAlt, azNow, altNow)
			prep += slew2Sec
			startTime = startTime.Add(slew2Sec)
		}
	}

	// 9. Visibility & delay.
	elMin, elMax := ob.TelCfg.ElMinMax()
	ok, visStart, visStop := e.Engine.Observable(ob.Target, startTime, slot.Stop, elMin, elMax, ob.EnvCfg.AirmassMax, ob.EnvCfg.MoonSepDeg, 0)
	if !ok {
		return nil, reject(ob, "target not observable in remaining slot time")
	}
	visStart, visStop = clampToTimeWindow(ob.EnvCfg, visStart, visStop)
	if !visStop.After(visStart) {
		return nil, reject(ob, "OB's time window excludes the visible interval")
	}

	delaySec := time.Duration(0)
	if visStart.After(startTime) {
		delaySec = visStart.Sub(startTime)
	}
	if !e.Config.AllowDelay && delaySec > 0 {
		return nil, reject(ob, "would require a delay and delays are disallowed")
	}

	// 10. Fit check.
	finalStop := visStart.Add(ob.TotalTime()).Add(ob.TeardownTime())
	limit := slot.Stop
	if visStop.Before(limit) {
		limit = visStop
	}
	if finalStop.After(limit) {
		return nil, reject(ob, "does not fit before visibility ends or slot ends")
	}

	// 11. Moon check.
	if e.Config.MoonChecksEnabled {
		if rej := e.moonCheck(ob, visStart, finalStop); rej != nil {
			return nil, rej
		}
	}

	return &Candidate{
		OB: ob, PrevOB: prevOB,
		PrepSec: prep, SlewSec: slewSec, Slew2Sec: slew2Sec,
		FilterChange: filterChange, FilterChangeSec: filterChangeSec,
		CalibrationSec: calibrationSec,
		StartTime:      visStart,
		StopTime:       finalStop,
		DelaySec:       delaySec,
	}, nil
}

func timeWindowFeasible(env entity.EnvironmentConfiguration, slot entity.Slot) bool {
	if env.TimeStart == nil && env.TimeStop == nil {
		return true
	}
	if env.TimeStart != nil && env.TimeStart.After(slot.Stop) {
		return false
	}
	if env.TimeStop != nil && env.TimeStop.Before(slot.Start) {
		return false
	}
	return true
}

func clampToTimeWindow(env entity.EnvironmentConfiguration, start, stop time.Time) (time.Time, time.Time) {
	if env.TimeStart != nil && env.TimeStart.After(start) {
		start = *env.TimeStart
	}
	if env.TimeStop != nil && env.TimeStop.Before(stop) {
		stop = *env.TimeStop
	}
	return start, stop
}

func (e *Evaluator) slewOrigin(data entity.NightConditions, prevOB *entity.OB, at time.Time) (az, el float64) {
	if prevOB != nil {
		alt, az := e.pointingAt(prevOB.Target, at)
		return az, alt
	}
	if data.CurAz != 0 || data.CurEl != 0 {
		return data.CurAz, data.CurEl
	}
	return e.Config.ParkedAzDeg, e.Config.ParkedElDeg
}

func (e *Evaluator) pointingAt(tgt *entity.Target, at time.Time) (altDeg, azDeg float64) {
	res := e.Engine.Calc(tgt, at)
	return res.AltDeg, res.AzDeg
}

// slewDuration is a monotone function of (|dAz|, |dAlt|): each axis
// takes |delta| / rate seconds to traverse, and
// the slew completes when the slower axis does.
func (e *Evaluator) slewDuration(originAz, originEl, destAz, destEl float64) time.Duration {
	rate := e.Config.SlewRateDegPerSec
	if rate <= 0 {
		rate = 0.5
	}
	dAz := angularDelta(originAz, destAz)
	dEl := math.Abs(destEl - originEl)
	azSec := dAz / rate
	elSec := dEl / rate
	sec := math.Max(azSec, elSec)
	return time.Duration(sec * float64(time.Second))
}

func angularDelta(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// moonCheck is step 11 of Evaluate: dark-sky policy and separation.
func (e *Evaluator) moonCheck(ob *entity.OB, start, stop time.Time) *Rejected {
	startCalc := e.Engine.Calc(ob.Target, start)
	stopCalc := e.Engine.Calc(ob.Target, stop)

	moonDownWhole := startCalc.MoonAltDeg < 0 && stopCalc.MoonAltDeg < 0

	if ob.EnvCfg.Moon == entity.MoonDark {
		dark := startCalc.MoonIllumination <= entity.DarkIlluminationMax || moonDownWhole
		if !dark {
			return reject(ob, "sky is not dark enough for this OB's moon policy")
		}
	}

	if ob.EnvCfg.MoonSepDeg > 0 {
		required := ob.EnvCfg.MoonSepDeg
		if moonDownWhole && required > entity.MoonSepRelaxedCapDeg {
			required = entity.MoonSepRelaxedCapDeg
		}
		if startCalc.MoonSeparationDeg < required || stopCalc.MoonSeparationDeg < required {
			return reject(ob, "too close to the moon")
		}
	}

	return nil
}

func reject(ob *entity.OB, reason string) *Rejected {
	return &Rejected{OB: ob, Reason: reason}
}
