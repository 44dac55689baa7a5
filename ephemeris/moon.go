package ephemeris

import (
	"math"
	"time"
)

// moonEquatorial returns the Moon's apparent geocentric right ascension and
// declination (degrees) at t, via the low-precision series of Meeus ch. 47
// truncated to its largest periodic terms. Good to a few arcminutes, well
// within the engine's 1-minute rise/set precision target.
func moonEquatorial(t time.Time) (raDeg, decDeg, distKm float64) {
	tCent := julianCenturiesJ2000(julianDate(t))

	lp := norm360(218.3164477 + 481267.88123421*tCent)
	d := norm360(297.8501921 + 445267.1114034*tCent)
	m := norm360(357.5291092 + 35999.0502909*tCent)
	mp := norm360(134.9633964 + 477198.8675055*tCent)
	f := norm360(93.2720950 + 483202.0175233*tCent)

	dR, mR, mpR, fR := degToRad(d), degToRad(m), degToRad(mp), degToRad(f)

	sumL := 6288.06*math.Sin(mpR) +
		1274.04*math.Sin(2*dR-mpR) +
		658.31*math.Sin(2*dR) +
		213.64*math.Sin(2*mpR) -
		185.00*math.Sin(mR) -
		114.01*math.Sin(2*fR) +
		58.81*math.Sin(2*dR-2*mpR) +
		57.07*math.Sin(2*dR-mR-mpR) +
		53.32*math.Sin(2*dR+mpR) +
		45.75*math.Sin(2*dR-mR)

	sumB := 5128.12*math.Sin(fR) +
		280.48*math.Sin(mpR+fR) +
		277.53*math.Sin(mpR-fR) +
		173.48*math.Sin(2*dR-fR) +
		55.17*math.Sin(2*dR-mpR-fR) +
		46.56*math.Sin(2*dR+fR-mpR)

	sumR := -20905.355*math.Cos(mpR) -
		3699.111*math.Cos(2*dR-mpR) -
		2955.968*math.Cos(2*dR)

	longitude := lp + sumL/1e6
	latitude := sumB / 1e6
	distance := 385000.56 + sumR/1e3

	eps := degToRad(23.4392911 - 0.0130042*tCent)
	lamRad := degToRad(longitude)
	betaRad := degToRad(latitude)

	raRad := math.Atan2(
		math.Sin(lamRad)*math.Cos(eps)-math.Tan(betaRad)*math.Sin(eps),
		math.Cos(lamRad),
	)
	decRad := math.Asin(math.Sin(betaRad)*math.Cos(eps) + math.Cos(betaRad)*math.Sin(eps)*math.Sin(lamRad))

	return norm360(radToDeg(raRad)), radToDeg(decRad), distance
}

// moonAltitude returns the Moon's geometric altitude in degrees at t, as
// observed from site.
func moonAltitude(site *Site, t time.Time) float64 {
	ra, dec, _ := moonEquatorial(t)
	alt, _ := equatorialToHorizontal(site, t, ra, dec)
	return alt
}

// MoonIllumination returns the Moon's illuminated fraction in [0,1] at t,
// via the phase-angle geometry of Meeus ch. 48 (geocentric elongation
// approximation — the phase-angle difference between a full
// topocentric-parallax treatment and this geocentric one is well under
// the precision the cost function needs).
func MoonIllumination(t time.Time) float64 {
	sunRa, sunDec := sunEquatorial(t)
	moonRa, moonDec, moonDist := moonEquatorial(t)

	sunDistAU := 1.000140612 // mean distance, adequate for phase geometry
	sunDistKm := sunDistAU * 149597870.7

	cosPsi := math.Sin(degToRad(moonDec))*math.Sin(degToRad(sunDec)) +
		math.Cos(degToRad(moonDec))*math.Cos(degToRad(sunDec))*math.Cos(degToRad(moonRa-sunRa))
	cosPsi = math.Max(-1, math.Min(1, cosPsi))
	psi := math.Acos(cosPsi)

	phaseAngle := math.Atan2(sunDistKm*math.Sin(psi), moonDist-sunDistKm*cosPsi)

	frac := (1 + math.Cos(phaseAngle)) / 2
	return math.Max(0, math.Min(1, frac))
}

// MoonSeparationDeg returns the angular separation in degrees between the
// Moon and a target's apparent position at t.
func MoonSeparationDeg(site *Site, t time.Time, targetRaDeg, targetDecDeg float64) float64 {
	moonRa, moonDec, _ := moonEquatorial(t)
	return angularSeparationDeg(moonRa, moonDec, targetRaDeg, targetDecDeg)
}

func angularSeparationDeg(ra1, dec1, ra2, dec2 float64) float64 {
	r1, d1, r2, d2 := degToRad(ra1), degToRad(dec1), degToRad(ra2), degToRad(dec2)
	cosC := math.Sin(d1)*math.Sin(d2) + math.Cos(d1)*math.Cos(d2)*math.Cos(r1-r2)
	cosC = math.Max(-1, math.Min(1, cosC))
	return radToDeg(math.Acos(cosC))
}
