package entity

// DomeState is the telescope enclosure state.
type DomeState string

const (
	DomeOpen   DomeState = "open"
	DomeClosed DomeState = "closed"
)

// TelescopeConfig captures the telescope-level pointing constraints for
// an OB: which focus station it runs on, whether it needs the dome open,
// and the elevation limits it must stay within.
type TelescopeConfig struct {
	Focus  string
	Dome   DomeState
	MinEl  float64 // degrees
	MaxEl  float64 // degrees
}

// ElMinMax returns the elevation window an OB must stay within.
func (t TelescopeConfig) ElMinMax() (float64, float64) {
	return t.MinEl, t.MaxEl
}
