package entity

// Target is a static celestial object: a catalog position plus optional
// proper motion and an optional calibration companion (e.g. an SDSS
// standard star observed alongside the science target).
type Target struct {
	Name    string
	RA      float64 // degrees, J2000-like equinox below
	Dec     float64 // degrees
	Equinox float64 // e.g. 2000.0

	// Proper motion, in mas/yr. Nil means "not known / negligible".
	PMRA  *float64
	PMDec *float64

	CalibCompanion *Target
}

// SamePosition reports whether two targets refer to the same catalog
// position (used to decide whether a calibration companion requires an
// extra slew to reach, or can be observed from the science position).
func (t *Target) SamePosition(other *Target) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.RA == other.RA && t.Dec == other.Dec && t.Equinox == other.Equinox
}
