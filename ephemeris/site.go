// Package ephemeris computes target visibility: altitude/azimuth, airmass,
// parallactic angle, sidereal time, rise/set and twilight events, and moon
// illumination/separation. Formulas are implemented directly rather than
// pulled from a third-party astronomy package, so that the specific
// approximations the cost function and feasibility filter are tuned
// against (the Young airmass fit, the Meeus parallactic-angle formula)
// stay exact.
package ephemeris

import (
	"math"
	"time"
)

const (
	earthRadiusM  = 6378136.6
	solarRadiusDeg = 0.25
	moonRadiusDeg  = 0.26

	// Horizon crossing definitions used by the twilight/rise-set finders.
	Horizon6  = -6.0
	Horizon12 = -12.0
	Horizon18 = -18.0
)

// Site is an observing location: geographic position plus the atmospheric
// parameters that feed into refraction and atmospheric dispersion.
type Site struct {
	Name string

	Location *time.Location

	LonDeg float64 // east-positive
	LatDeg float64
	ElevM  float64

	PressureMbar float64
	TempC        float64
	HumidityPct  float64

	// HorizonDeg is the geometric dip of the horizon due to elevation; if
	// zero it is derived from ElevM.
	HorizonDeg float64
}

// NewSite constructs a Site, deriving HorizonDeg from elevation when the
// caller leaves it at zero.
func NewSite(name string, loc *time.Location, lonDeg, latDeg, elevM, pressureMbar, tempC, humidityPct float64) *Site {
	s := &Site{
		Name: name, Location: loc,
		LonDeg: lonDeg, LatDeg: latDeg, ElevM: elevM,
		PressureMbar: pressureMbar, TempC: tempC, HumidityPct: humidityPct,
	}
	s.HorizonDeg = radToDeg(-math.Acos(earthRadiusM / (earthRadiusM + elevM)))
	return s
}

// Subaru is the reference site the original system shipped, kept as a
// convenience default for tests and example configs.
func Subaru() *Site {
	loc, err := time.LoadLocation("Pacific/Honolulu")
	if err != nil {
		loc = time.UTC
	}
	return NewSite("subaru", loc,
		-155.48025, 19.8285, 4163,
		615, 0, 0)
}
