package ephemeris

import (
	"time"

	"github.com/naojsoft/qplan-core/entity"
)

// Engine ties a Site to a bounded ephemeris Cache, giving callers the
// target-level API: Calc, Observable, and the rise/set and twilight
// helpers bound to this engine's site.
type Engine struct {
	Site  *Site
	Cache *Cache
}

// NewEngine constructs an Engine with a freshly allocated cache of the
// given capacity and grid (zero values take the package defaults).
func NewEngine(site *Site, cacheCapacity, gridMinutes int) (*Engine, error) {
	cache, err := NewCache(cacheCapacity, gridMinutes)
	if err != nil {
		return nil, err
	}
	return &Engine{Site: site, Cache: cache}, nil
}

func targetEquinox(tgt *entity.Target) (ra, dec, pmRa, pmDec, equinox float64) {
	ra, dec, equinox = tgt.RA, tgt.Dec, tgt.Equinox
	if tgt.PMRA != nil {
		pmRa = *tgt.PMRA
	}
	if tgt.PMDec != nil {
		pmDec = *tgt.PMDec
	}
	return
}

// Calc computes a CalculationResult for tgt at t, bypassing the cache.
// Used for one-off queries outside the Filter's bulk-populate path.
func (e *Engine) Calc(tgt *entity.Target, t time.Time) CalculationResult {
	ra, dec, pmRa, pmDec, equinox := targetEquinox(tgt)
	return Calc(e.Site, ra, dec, pmRa, pmDec, equinox, t)
}

// CalcCached returns the cached CalculationResult nearest t for tgt, or a
// *CacheMiss if the cache has not been populated near t — callers must
// Populate first rather than receive a stale value.
func (e *Engine) CalcCached(tgt *entity.Target, t time.Time) (CalculationResult, error) {
	return e.Cache.Get(tgt.Name, t)
}

// Populate bulk-computes and caches tgt's apparent state at every instant
// in times; the normal path the Filter uses before evaluating a night.
func (e *Engine) Populate(tgt *entity.Target, times []time.Time) {
	ra, dec, pmRa, pmDec, equinox := targetEquinox(tgt)
	e.Cache.Populate(tgt.Name, times, func(t time.Time) CalculationResult {
		return Calc(e.Site, ra, dec, pmRa, pmDec, equinox, t)
	})
}

// ParallelPopulate bulk-populates the cache for many targets at once,
// fanned out across a worker pool.
func (e *Engine) ParallelPopulate(targets []*entity.Target, times []time.Time) {
	work := make([]TargetWork, len(targets))
	for i, tgt := range targets {
		ra, dec, pmRa, pmDec, equinox := targetEquinox(tgt)
		work[i] = TargetWork{
			Target: tgt.Name,
			Times:  times,
			Compute: func(t time.Time) CalculationResult {
				return Calc(e.Site, ra, dec, pmRa, pmDec, equinox, t)
			},
		}
	}
	e.Cache.ParallelPopulate(work)
}

// Observable computes tgt's observability window within [tStart,tStop],
// folding in the Moon-separation floor when moonSepLimit > 0.
func (e *Engine) Observable(tgt *entity.Target, tStart, tStop time.Time, elMin, elMax, airmassLimit, moonSepLimit float64, timeNeeded time.Duration) (ok bool, visStart, visStop time.Time) {
	ra, dec, pmRa, pmDec, equinox := targetEquinox(tgt)
	alt := func(t time.Time) float64 {
		adjRa, adjDec := applyProperMotion(ra, dec, pmRa, pmDec, equinox, t)
		a, _ := equatorialToHorizontal(e.Site, t, adjRa, adjDec)
		return a
	}
	var moonSep func(t time.Time) float64
	if moonSepLimit > 0 {
		moonSep = func(t time.Time) float64 {
			adjRa, adjDec := applyProperMotion(ra, dec, pmRa, pmDec, equinox, t)
			return MoonSeparationDeg(e.Site, t, adjRa, adjDec)
		}
	}
	return Observable(alt, moonSep, tStart, tStop, elMin, elMax, airmassLimit, moonSepLimit, timeNeeded)
}

// JointObservable intersects tgt's window with companion's window, for
// OBs whose calibration companion is a distinct sky position.
func (e *Engine) JointObservable(tgt, companion *entity.Target, tStart, tStop time.Time, elMin, elMax, airmassLimit, moonSepLimit float64, timeNeeded time.Duration) (ok bool, visStart, visStop time.Time) {
	ok1, s1, e1 := e.Observable(tgt, tStart, tStop, elMin, elMax, airmassLimit, moonSepLimit, 0)
	if !ok1 {
		return false, time.Time{}, time.Time{}
	}
	ok2, s2, e2 := e.Observable(companion, tStart, tStop, elMin, elMax, airmassLimit, moonSepLimit, 0)
	if !ok2 {
		return false, time.Time{}, time.Time{}
	}
	start := s1
	if s2.After(start) {
		start = s2
	}
	stop := e1
	if e2.Before(stop) {
		stop = e2
	}
	if !stop.After(start) || stop.Sub(start) < timeNeeded {
		return false, time.Time{}, time.Time{}
	}
	return true, start, stop
}
