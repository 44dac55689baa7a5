package entity

import "time"

// MoonPolicy states how strict an OB's tolerance for moon illumination
// and proximity is. The evaluator's moon check only ever special-cases
// MoonDark, so MoonGray is treated identically to MoonAny: gray sits
// between the two but has no numeric threshold of its own.
type MoonPolicy string

const (
	// MoonAny accepts any moon illumination; no illumination check is
	// applied, though a MoonSepDeg separation requirement still is.
	MoonAny MoonPolicy = "any"

	// MoonGray is accepted as input but evaluated the same as MoonAny;
	// see the MoonPolicy comment above.
	MoonGray MoonPolicy = "gray"

	// MoonDark requires a dark night: moon illumination at or below the
	// dark-night threshold, or the moon below the horizon, and the
	// target-moon separation at or above MoonSepDeg (relaxed when the
	// moon is below the horizon).
	MoonDark MoonPolicy = "dark"
)

// DarkIlluminationMax is the illumination fraction at or below which an
// interval qualifies as "dark" for a MoonDark OB.
const DarkIlluminationMax = 0.25

// MoonSepRelaxedCapDeg is the separation requirement ceiling applied when
// the moon is below the horizon for an entire candidate interval.
const MoonSepRelaxedCapDeg = 30.0

// EnvironmentConfiguration states an OB's sky-condition requirements.
type EnvironmentConfiguration struct {
	SeeingMax       float64 // arcsec; 0 means "no requirement"
	AirmassMax      float64 // 0 means "no requirement"
	TransparencyMin float64 // 0..1; 0 means "no requirement"
	Moon            MoonPolicy
	MoonSepDeg      float64 // required target-moon separation under any moon policy; 0 means none

	// TimeStart and TimeStop each, when non-nil, bound one side of the
	// clock interval within which the OB's science window may begin.
	TimeStart *time.Time
	TimeStop  *time.Time
}

// DefaultEnvironmentConfiguration returns the least restrictive environment
// an OB can request.
func DefaultEnvironmentConfiguration() EnvironmentConfiguration {
	return EnvironmentConfiguration{Moon: MoonAny}
}

// AllowsStart reports whether t falls within the configured start-time
// window, or true if no window is configured.
func (e EnvironmentConfiguration) AllowsStart(t time.Time) bool {
	if e.TimeStart != nil && t.Before(*e.TimeStart) {
		return false
	}
	if e.TimeStop != nil && t.After(*e.TimeStop) {
		return false
	}
	return true
}
