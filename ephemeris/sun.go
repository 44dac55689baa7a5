package ephemeris

import (
	"math"
	"time"
)

// sunEquatorial returns the Sun's apparent geocentric right ascension and
// declination (degrees) at t, via the low-precision series of Meeus ch.
// 25 ("Solar Coordinates, low accuracy"). Accurate to about 0.01 degree,
// comfortably inside the planner's 1-minute rise/set tolerance.
func sunEquatorial(t time.Time) (raDeg, decDeg float64) {
	tCent := julianCenturiesJ2000(julianDate(t))

	l0 := norm360(280.46646 + 36000.76983*tCent + 0.0003032*tCent*tCent)
	m := norm360(357.52911 + 35999.05029*tCent - 0.0001537*tCent*tCent)
	mRad := degToRad(m)

	c := (1.914602-0.004817*tCent-0.000014*tCent*tCent)*math.Sin(mRad) +
		(0.019993-0.000101*tCent)*math.Sin(2*mRad) +
		0.000289*math.Sin(3*mRad)

	trueLong := l0 + c

	omega := 125.04 - 1934.136*tCent
	apparentLong := trueLong - 0.00569 - 0.00478*math.Sin(degToRad(omega))

	eps0 := 23.439291 - 0.0130042*tCent - 0.00000016*tCent*tCent + 0.000000504*tCent*tCent*tCent
	eps := eps0 + 0.00256*math.Cos(degToRad(omega))

	lamRad := degToRad(apparentLong)
	epsRad := degToRad(eps)

	ra := radToDeg(math.Atan2(math.Cos(epsRad)*math.Sin(lamRad), math.Cos(lamRad)))
	dec := radToDeg(math.Asin(math.Sin(epsRad) * math.Sin(lamRad)))

	return norm360(ra), dec
}

// sunAltitude returns the Sun's geometric altitude in degrees at t, as
// observed from the site (no refraction correction — twilight thresholds
// are defined against the geometric center of the disk).
func sunAltitude(site *Site, t time.Time) float64 {
	ra, dec := sunEquatorial(t)
	alt, _ := equatorialToHorizontal(site, t, ra, dec)
	return alt
}
