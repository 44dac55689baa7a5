package entity

import "time"

// DitherPattern names the dither strategy an imaging OB uses.
type DitherPattern string

const (
	DitherNone  DitherPattern = "none"
	DitherFive  DitherPattern = "five-point"
	DitherNine  DitherPattern = "nine-point"
	DitherRaster DitherPattern = "raster"
)

// InstrumentConfig is the small common capability interface every
// instrument-specific configuration variant implements. It replaces the
// polymorphic-record-with-shared-base pattern of the original system with
// a tagged interface: callers only ever need these operations to
// evaluate an OB, regardless of which instrument it targets.
type InstrumentConfig interface {
	// InstrumentName identifies the instrument this configuration targets.
	InstrumentName() string

	// Filter is the selected filter name, or "" if the instrument has none
	// (e.g. a pure spectrograph in a fixed grating mode).
	Filter() string

	// CheckFilterInstalled reports whether this configuration's filter is
	// among the currently-installed set. An instrument with no filter
	// wheel always reports true.
	CheckFilterInstalled(installed []string) bool

	// FilterChangeCost estimates the time to swap to this configuration's
	// filter, independent of what filter was previously selected.
	FilterChangeCost() time.Duration

	// SetupTime is the fixed overhead paid once before science exposures
	// begin (instrument configuration, guider acquisition, etc).
	SetupTime() time.Duration

	// TeardownTime is the fixed overhead paid once after the last science
	// exposure completes.
	TeardownTime() time.Duration

	// ExposureTime and NumExposures give the single-exposure time and
	// exposure count used to derive on-source time.
	ExposureTime() time.Duration
	NumExposures() int

	// OnSourceTime is the derived on-source (billable) time:
	// ExposureTime * NumExposures.
	OnSourceTime() time.Duration

	// TotalTime is the derived total time including this instrument's own
	// per-exposure overhead (readout, dither moves), but NOT setup,
	// teardown, slew, filter change or delay — those are evaluator-level
	// overheads layered on top by the evaluator.
	TotalTime() time.Duration
}

// baseConfig holds the fields common to every InstrumentConfig variant.
type baseConfig struct {
	Filter_    string
	Guiding    bool
	NumExp     int
	ExpTime    time.Duration
	PA         float64 // position angle, degrees
	OffsetRA   float64 // arcsec
	OffsetDec  float64 // arcsec
}

func (b baseConfig) Filter() string          { return b.Filter_ }
func (b baseConfig) ExposureTime() time.Duration { return b.ExpTime }
func (b baseConfig) NumExposures() int       { return b.NumExp }
func (b baseConfig) OnSourceTime() time.Duration {
	return b.ExpTime * time.Duration(b.NumExp)
}

func checkFilterInstalled(filter string, installed []string) bool {
	if filter == "" {
		return true
	}
	for _, f := range installed {
		if f == filter {
			return true
		}
	}
	return false
}

// ImagerConfig configures a wide-field imaging instrument with a dither
// pattern and a mechanical filter wheel slow enough that filter changes
// dominate the evaluator's filter-change cost.
type ImagerConfig struct {
	baseConfig
	Name    string
	Dither  DitherPattern
	Dith1   float64 // arcsec
	Dith2   float64 // arcsec
	// Skip and Stop bound the window of the dither pattern actually
	// executed (start index, one-past-end index; Stop defaults to
	// NumExp). The derived on-source and total times cover only this
	// window, so a resumed sequence is billed for what remains.
	Skip int
	Stop int
	readoutOverhead time.Duration
}

// NewImagerConfig constructs an ImagerConfig. readoutOverhead is charged
// once per exposure on top of ExposureTime when computing TotalTime.
func NewImagerConfig(name, filter string, numExp int, expTime time.Duration, readoutOverhead time.Duration) *ImagerConfig {
	return &ImagerConfig{
		baseConfig: baseConfig{Filter_: filter, NumExp: numExp, ExpTime: expTime},
		Name:       name,
		Dither:     DitherNone,
		Stop:       numExp,
		readoutOverhead: readoutOverhead,
	}
}

func (c *ImagerConfig) InstrumentName() string { return c.Name }

func (c *ImagerConfig) CheckFilterInstalled(installed []string) bool {
	return checkFilterInstalled(c.Filter_, installed)
}

// FilterChangeCost is instrument-specific: a wide mechanical filter wheel
// is slow to cycle. 35 minutes covers an HSC-class filter exchange.
func (c *ImagerConfig) FilterChangeCost() time.Duration { return 35 * time.Minute }

func (c *ImagerConfig) SetupTime() time.Duration    { return 2 * time.Minute }
func (c *ImagerConfig) TeardownTime() time.Duration { return 0 }

// effectiveExposures is the number of dither positions actually executed:
// the [Skip, Stop) window of the pattern, clamped to the configured
// exposure count. An OB resuming a partially-observed dither sequence
// sets Skip past the positions already taken, and its derived times
// shrink accordingly.
func (c *ImagerConfig) effectiveExposures() int {
	stop := c.Stop
	if stop <= 0 || stop > c.NumExp {
		stop = c.NumExp
	}
	start := c.Skip
	if start < 0 {
		start = 0
	}
	if start > stop {
		start = stop
	}
	return stop - start
}

func (c *ImagerConfig) NumExposures() int { return c.effectiveExposures() }

func (c *ImagerConfig) OnSourceTime() time.Duration {
	return time.Duration(c.effectiveExposures()) * c.ExpTime
}

func (c *ImagerConfig) TotalTime() time.Duration {
	return time.Duration(c.effectiveExposures()) * (c.ExpTime + c.readoutOverhead)
}

// SpectrographConfig configures a slit or multi-object spectrograph with
// a faster filter/grating exchange.
type SpectrographConfig struct {
	baseConfig
	Name         string
	Binning      string
	DitherRA     float64
	DitherDec    float64
	DitherTheta  float64
	readoutOverhead time.Duration
}

func NewSpectrographConfig(name, filter string, numExp int, expTime time.Duration, readoutOverhead time.Duration) *SpectrographConfig {
	return &SpectrographConfig{
		baseConfig: baseConfig{Filter_: filter, NumExp: numExp, ExpTime: expTime},
		Name:       name,
		readoutOverhead: readoutOverhead,
	}
}

func (c *SpectrographConfig) InstrumentName() string { return c.Name }

func (c *SpectrographConfig) CheckFilterInstalled(installed []string) bool {
	return checkFilterInstalled(c.Filter_, installed)
}

// FilterChangeCost: grating/filter exchange on a slit spectrograph is
// quick relative to a mosaic imager's filter wheel.
func (c *SpectrographConfig) FilterChangeCost() time.Duration { return 30 * time.Second }

func (c *SpectrographConfig) SetupTime() time.Duration    { return 90 * time.Second }
func (c *SpectrographConfig) TeardownTime() time.Duration { return 30 * time.Second }

func (c *SpectrographConfig) TotalTime() time.Duration {
	return time.Duration(c.NumExp) * (c.ExpTime + c.readoutOverhead)
}
