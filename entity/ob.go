package entity

import (
	"fmt"
	"time"
)

// DerivedKind tags an OB synthesized by the scheduler to fill time
// around a science OB inside a slot, as opposed to an OB that came from
// ingest. Each kind's value is the literal token the derived OB's
// comment must begin with. A "Long slew" helper has no dedicated kind
// here: the helper-insertion order only ever splits out setup,
// filter-change, delay and calibration slots. The setup helper is always
// one second long and slew time gets no slot of its own (see the
// night-filling scheduler).
type DerivedKind string

const (
	// NotDerived marks a real science OB that came from ingest.
	NotDerived DerivedKind = ""

	DerivedSetup        DerivedKind = "Setup OB"
	DerivedFilterChange DerivedKind = "Filter change"
	DerivedDelay        DerivedKind = "Delay for"
	DerivedCalibration  DerivedKind = "SDSS calibration"
)

// OB is an observing block: one science exposure sequence against one
// target, under one instrument configuration, with its own telescope and
// environment requirements.
type OB struct {
	ID       string
	Program  *Program
	Target   *Target
	InstCfg  InstrumentConfig
	TelCfg   TelescopeConfig
	EnvCfg   EnvironmentConfiguration

	Priority float64 // program-relative priority; lower values observe first, see cost function
	Comment  string

	Derived DerivedKind
}

// SetupTime and TeardownTime delegate to the OB's instrument configuration;
// the OB itself carries no independent notion of setup/teardown overhead.
func (ob *OB) SetupTime() time.Duration    { return ob.InstCfg.SetupTime() }
func (ob *OB) TeardownTime() time.Duration { return ob.InstCfg.TeardownTime() }

// OnSourceTime is the OB's billable on-source time, charged against its
// program's time budget. Derived (non-science) OBs are never billed.
func (ob *OB) OnSourceTime() time.Duration {
	if ob.Derived != NotDerived {
		return 0
	}
	return ob.InstCfg.OnSourceTime()
}

// TotalTime is the OB's own execution time, excluding slew, filter-change,
// delay and setup/teardown overheads the evaluator layers on separately.
func (ob *OB) TotalTime() time.Duration {
	return ob.InstCfg.TotalTime()
}

// Validate checks the invariants every OB must satisfy before the core will
// accept it: total time must be at least on-source time, both
// non-negative, and derived OBs must carry the comment prefix matching
// their kind (ingest is expected to hand the core clean OBs; this exists
// so a caller that builds OBs programmatically gets a clear failure
// instead of a mysterious cost-function misbehavior later).
func (ob *OB) Validate() error {
	total := ob.TotalTime()
	onSource := ob.OnSourceTime()
	if total < 0 || onSource < 0 {
		return fmt.Errorf("ob %s: negative time (total=%s on_source=%s)", ob.ID, total, onSource)
	}
	if total < onSource {
		return fmt.Errorf("ob %s: total_time %s < on_source_time %s", ob.ID, total, onSource)
	}
	if ob.Derived != NotDerived {
		prefix := string(ob.Derived)
		if len(ob.Comment) < len(prefix) || ob.Comment[:len(prefix)] != prefix {
			return fmt.Errorf("ob %s: derived kind %s requires comment prefix %q", ob.ID, ob.Derived, prefix)
		}
	}
	return nil
}

// NewDerivedOB builds a synthetic helper OB of the given kind, tagging its
// comment with the kind's required prefix.
func NewDerivedOB(id string, kind DerivedKind, cfg InstrumentConfig, comment string) *OB {
	return &OB{
		ID:      id,
		InstCfg: cfg,
		Derived: kind,
		Comment: string(kind) + " " + comment,
	}
}
