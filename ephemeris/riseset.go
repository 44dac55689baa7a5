package ephemeris

import (
	"fmt"
	"time"
)

// searchStep is the coarse step used to scan for a horizon crossing before
// bisecting down to riseSetPrecision.
const searchStep = 2 * time.Minute

// riseSetPrecision is the final precision rise/set root-finding converges
// to; one minute of precision is plenty for queue planning.
const riseSetPrecision = 1 * time.Minute

// maxSearchWindow bounds how far forward nextCrossing will scan before
// reporting "never rises"/"never sets".
const maxSearchWindow = 48 * time.Hour

// AltitudeFunc reports an object's altitude in degrees at t.
type AltitudeFunc func(t time.Time) float64

// NeverResult distinguishes "never rises above" from "never sets below"
// when nextCrossing exhausts its search window without finding a sign
// change.
type NeverResult int

const (
	NeverDown NeverResult = iota // never sets below the horizon
	NeverUp                      // never rises above the horizon
)

func (n NeverResult) String() string {
	if n == NeverUp {
		return "never (down)"
	}
	return "never (up)"
}

// NextCrossing finds the next instant after from at which alt crosses
// horizonDeg in the requested direction (rising = altitude increasing
// through the horizon). It scans forward in searchStep increments,
// bisects the bracketing interval to riseSetPrecision, and reports ok=false
// with a NeverResult if no crossing occurs within maxSearchWindow.
func NextCrossing(alt AltitudeFunc, horizonDeg float64, from time.Time, rising bool) (t time.Time, never NeverResult, ok bool) {
	prevT := from
	prevVal := alt(prevT) - horizonDeg

	for elapsed := time.Duration(0); elapsed < maxSearchWindow; elapsed += searchStep {
		curT := prevT.Add(searchStep)
		curVal := alt(curT) - horizonDeg

		crossed := (rising && prevVal <= 0 && curVal > 0) || (!rising && prevVal >= 0 && curVal < 0)
		if crossed {
			return bisect(alt, horizonDeg, prevT, curT, prevVal, curVal), 0, true
		}
		prevT, prevVal = curT, curVal
	}

	if rising {
		return time.Time{}, NeverUp, false
	}
	return time.Time{}, NeverDown, false
}

func bisect(alt AltitudeFunc, horizonDeg float64, lo, hi time.Time, loVal, hiVal float64) time.Time {
	for hi.Sub(lo) > riseSetPrecision {
		mid := lo.Add(hi.Sub(lo) / 2)
		midVal := alt(mid) - horizonDeg
		if (loVal <= 0 && midVal > 0) || (loVal >= 0 && midVal < 0) {
			hi, hiVal = mid, midVal
		} else {
			lo, loVal = mid, midVal
		}
	}
	return lo.Add(hi.Sub(lo) / 2)
}

// NextSetting returns the next instant after from at which the target
// (given by its altitude function) sets below horizonDeg.
func NextSetting(alt AltitudeFunc, from time.Time, horizonDeg float64) (time.Time, error) {
	t, never, ok := NextCrossing(alt, horizonDeg, from, false)
	if !ok {
		return time.Time{}, fmt.Errorf("%s", never)
	}
	return t, nil
}

// NextRising returns the next instant after from at which the target
// rises above horizonDeg.
func NextRising(alt AltitudeFunc, from time.Time, horizonDeg float64) (time.Time, error) {
	t, never, ok := NextCrossing(alt, horizonDeg, from, true)
	if !ok {
		return time.Time{}, fmt.Errorf("%s", never)
	}
	return t, nil
}

// sunAltitudeFunc and moonAltitudeFunc adapt the site-bound sun/moon
// altitude helpers to AltitudeFunc for use with NextRising/NextSetting.
func sunAltitudeFunc(site *Site) AltitudeFunc {
	return func(t time.Time) float64 { return sunAltitude(site, t) }
}

func moonAltitudeFunc(site *Site) AltitudeFunc {
	return func(t time.Time) float64 { return moonAltitude(site, t) }
}

// horizonForElevation returns the apparent horizon dip (negative, degrees)
// used for rise/set of a point source as seen from an elevated site,
// combined with a body's own angular radius where relevant.
func horizonForElevation(site *Site, bodyRadiusDeg float64) float64 {
	return site.HorizonDeg - bodyRadiusDeg - standardRefractionDeg
}

// standardRefractionDeg is the standard atmospheric refraction correction
// applied at the apparent horizon (34 arcminutes).
const standardRefractionDeg = 34.0 / 60.0

// Sunset returns the next sunset after from.
func Sunset(site *Site, from time.Time) (time.Time, error) {
	return NextSetting(sunAltitudeFunc(site), from, horizonForElevation(site, solarRadiusDeg))
}

// Sunrise returns the next sunrise after from.
func Sunrise(site *Site, from time.Time) (time.Time, error) {
	return NextRising(sunAltitudeFunc(site), from, horizonForElevation(site, solarRadiusDeg))
}

// Moonset returns the next moonset after from.
func Moonset(site *Site, from time.Time) (time.Time, error) {
	return NextSetting(moonAltitudeFunc(site), from, horizonForElevation(site, moonRadiusDeg))
}

// Moonrise returns the next moonrise after from.
func Moonrise(site *Site, from time.Time) (time.Time, error) {
	return NextRising(moonAltitudeFunc(site), from, horizonForElevation(site, moonRadiusDeg))
}

// Twilight6Evening, Twilight12Evening, Twilight18Evening return the next
// civil/nautical/astronomical evening twilight (sun descending through
// the named horizon) after from.
func Twilight6Evening(site *Site, from time.Time) (time.Time, error) {
	return NextSetting(sunAltitudeFunc(site), from, Horizon6)
}
func Twilight12Evening(site *Site, from time.Time) (time.Time, error) {
	return NextSetting(sunAltitudeFunc(site), from, Horizon12)
}
func Twilight18Evening(site *Site, from time.Time) (time.Time, error) {
	return NextSetting(sunAltitudeFunc(site), from, Horizon18)
}

// Twilight6Morning, Twilight12Morning, Twilight18Morning return the next
// morning twilight (sun rising through the named horizon) after from.
func Twilight6Morning(site *Site, from time.Time) (time.Time, error) {
	return NextRising(sunAltitudeFunc(site), from, Horizon6)
}
func Twilight12Morning(site *Site, from time.Time) (time.Time, error) {
	return NextRising(sunAltitudeFunc(site), from, Horizon12)
}
func Twilight18Morning(site *Site, from time.Time) (time.Time, error) {
	return NextRising(sunAltitudeFunc(site), from, Horizon18)
}
