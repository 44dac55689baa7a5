package ephemeris

import "time"

// Observable computes the window, if any, within [tStart,tStop] during
// which a target (given by its altitude function) is above elMin (raised
// to account for airmassLimit if set) and below elMax, also above
// moonSepLimit separation from the Moon if moonSep is non-nil and
// moonSepLimit > 0, long enough to accommodate timeNeeded.
//
// The window intersects [tStart,tStop] with the altitude constraint: if
// the target is already up at tStart the window's start is tStart,
// otherwise the next rise after tStart; the window's end is the lesser of
// the next set and tStop. The moon-separation floor is folded in
// conservatively: it is checked at the candidate window's start and stop
// rather than solved for a sub-interval crossing, in keeping with the
// scheduler's heuristic character rather than attempting exact interval
// splitting on a second constraint.
func Observable(
	alt AltitudeFunc,
	moonSep func(t time.Time) float64,
	tStart, tStop time.Time,
	elMin, elMax float64,
	airmassLimit float64,
	moonSepLimit float64,
	timeNeeded time.Duration,
) (ok bool, visStart, visStop time.Time) {
	effElMin := elMin
	if airmassLimit > 0 {
		fromAirmass := AirmassToAltitude(airmassLimit)
		if fromAirmass > effElMin {
			effElMin = fromAirmass
		}
	}

	up := func(t time.Time) bool {
		a := alt(t)
		return a >= effElMin && a <= elMax
	}

	visStart = tStart
	if !up(tStart) {
		rise, err := NextRising(alt, tStart, effElMin)
		if err != nil || rise.After(tStop) {
			return false, time.Time{}, time.Time{}
		}
		visStart = rise
	}

	visStop = tStop
	set, err := NextSetting(alt, visStart, effElMin)
	if err == nil && set.Before(visStop) {
		visStop = set
	}

	if elMax < 90 {
		// A target can also leave the window from above (crossing
		// elMax downward is the normal "setting" direction for a
		// ceiling; crossing it upward would mean visStart itself was
		// invalid, already excluded by the up() check above).
		capSet, err := NextSetting(alt, visStart, elMax)
		if err == nil && capSet.Before(visStop) {
			visStop = capSet
		}
	}

	if !visStop.After(visStart) {
		return false, time.Time{}, time.Time{}
	}

	if moonSep != nil && moonSepLimit > 0 {
		if moonSep(visStart) < moonSepLimit || moonSep(visStop) < moonSepLimit {
			return false, time.Time{}, time.Time{}
		}
	}

	if visStop.Sub(visStart) < timeNeeded {
		return false, time.Time{}, time.Time{}
	}
	return true, visStart, visStop
}
