package ephemeris

import (
	"math"
	"time"
)

// minAirmassAltitudeDeg is the altitude floor below which Airmass clamps
// its input; the Young approximation degrades rapidly near the horizon.
const minAirmassAltitudeDeg = 3.0

// equatorialToHorizontal converts a target's (apparent, equinox-of-date
// close enough for this engine's precision target) RA/Dec in degrees to
// altitude/azimuth in degrees as seen from site at t. Azimuth is measured
// from north through east, matching the convention the rest of the engine
// and the cost function's slew-distance calculation use.
func equatorialToHorizontal(site *Site, t time.Time, raDeg, decDeg float64) (altDeg, azDeg float64) {
	lst := localSiderealTimeDeg(t, site.LonDeg)
	haDeg := norm360(lst - raDeg)
	haRad := degToRad(haDeg)

	decRad := degToRad(decDeg)
	latRad := degToRad(site.LatDeg)

	sinAlt := math.Sin(decRad)*math.Sin(latRad) + math.Cos(decRad)*math.Cos(latRad)*math.Cos(haRad)
	sinAlt = math.Max(-1, math.Min(1, sinAlt))
	alt := math.Asin(sinAlt)

	cosAz := (math.Sin(decRad) - math.Sin(alt)*math.Sin(latRad)) / (math.Cos(alt) * math.Cos(latRad))
	cosAz = math.Max(-1, math.Min(1, cosAz))
	az := math.Acos(cosAz)
	if math.Sin(haRad) > 0 {
		az = 2*math.Pi - az
	}

	return radToDeg(alt), radToDeg(az)
}

// hourAngleDeg returns the target's hour angle in degrees, wrapped to
// [-180, 180), positive west of the meridian.
func hourAngleDeg(site *Site, t time.Time, raDeg float64) float64 {
	lst := localSiderealTimeDeg(t, site.LonDeg)
	ha := math.Mod(lst-raDeg+180, 360) - 180
	if ha < -180 {
		ha += 360
	}
	return ha
}

// parallacticAngleDeg computes the parallactic angle in degrees via the
// standard Meeus formula, used to drive instrument rotator control.
func parallacticAngleDeg(site *Site, decDeg, haDeg float64) float64 {
	haRad := degToRad(haDeg)
	decRad := degToRad(decDeg)
	latRad := degToRad(site.LatDeg)

	y := math.Sin(haRad)
	x := math.Tan(latRad)*math.Cos(decRad) - math.Sin(decRad)*math.Cos(haRad)
	if x == 0 && y == 0 {
		return 0
	}
	return radToDeg(math.Atan2(y, x))
}

// Airmass computes airmass from altitude via the Young (1994) rational
// approximation, clamping altitude below 3 degrees.
func Airmass(altDeg float64) float64 {
	if altDeg < minAirmassAltitudeDeg {
		altDeg = minAirmassAltitudeDeg
	}
	zenithRad := degToRad(90 - altDeg)
	cosZ := math.Cos(zenithRad)

	num := 1.002432*cosZ*cosZ + 0.148386*cosZ + 0.0096467
	den := cosZ*cosZ*cosZ + 0.149864*cosZ*cosZ + 0.0102963*cosZ + 0.000303978
	return num / den
}

// AirmassToAltitude inverts Airmass by bisection over the physically
// meaningful altitude range; used to fold an OB's airmass ceiling into an
// effective minimum altitude.
func AirmassToAltitude(airmass float64) float64 {
	lo, hi := minAirmassAltitudeDeg, 90.0
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if Airmass(mid) > airmass {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// CalculationResult is an immutable snapshot of a target's apparent state
// at one instant, as seen from one observer.
type CalculationResult struct {
	Time time.Time

	AltDeg float64
	AzDeg  float64

	HourAngleDeg     float64
	ParallacticAngle float64
	Airmass          float64

	MoonAltDeg         float64
	MoonIllumination   float64
	MoonSeparationDeg  float64
}

// Calc computes a CalculationResult for target at t as seen from site.
// Proper motion is applied as a simple linear correction from the
// target's equinox epoch; negligible for objects without measured proper
// motion.
func Calc(site *Site, raDeg, decDeg float64, pmRaMasYr, pmDecMasYr, equinox float64, t time.Time) CalculationResult {
	ra, dec := applyProperMotion(raDeg, decDeg, pmRaMasYr, pmDecMasYr, equinox, t)

	alt, az := equatorialToHorizontal(site, t, ra, dec)
	ha := hourAngleDeg(site, t, ra)
	pa := parallacticAngleDeg(site, dec, ha)
	am := Airmass(alt)

	moonAlt := moonAltitude(site, t)
	moonIllum := MoonIllumination(t)
	moonSep := MoonSeparationDeg(site, t, ra, dec)

	return CalculationResult{
		Time: t,

		AltDeg: alt,
		AzDeg:  az,

		HourAngleDeg:     ha,
		ParallacticAngle: pa,
		Airmass:          am,

		MoonAltDeg:        moonAlt,
		MoonIllumination:  moonIllum,
		MoonSeparationDeg: moonSep,
	}
}

// CalcVector computes a CalculationResult for each instant in times,
// applied against the same target. Callers populating the cache in bulk
// should prefer this over repeated scalar Calc
// calls so shared site-relative quantities can, in principle, be reused;
// the cache's ParallelPopulate additionally fans these out across targets.
func CalcVector(site *Site, raDeg, decDeg float64, pmRaMasYr, pmDecMasYr, equinox float64, times []time.Time) []CalculationResult {
	out := make([]CalculationResult, len(times))
	for i, t := range times {
		out[i] = Calc(site, raDeg, decDeg, pmRaMasYr, pmDecMasYr, equinox, t)
	}
	return out
}

func applyProperMotion(raDeg, decDeg, pmRaMasYr, pmDecMasYr, equinox float64, t time.Time) (float64, float64) {
	if pmRaMasYr == 0 && pmDecMasYr == 0 {
		return raDeg, decDeg
	}
	years := (julianDate(t) - julianDateForEquinox(equinox)) / 365.25
	// mas/yr -> deg: 1 mas = 1/3600000 deg. RA proper motion is usually
	// tabulated as a rate of great-circle motion; divide by cos(dec) to
	// convert to a coordinate-RA rate.
	dRa := (pmRaMasYr / 3600000.0) * years / math.Cos(degToRad(decDeg))
	dDec := (pmDecMasYr / 3600000.0) * years
	return norm360(raDeg + dRa), decDeg + dDec
}

func julianDateForEquinox(equinox float64) float64 {
	if equinox == 0 {
		equinox = 2000.0
	}
	return 2451545.0 + (equinox-2000.0)*365.25
}
