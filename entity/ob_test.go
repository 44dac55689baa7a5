package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOBValidateAcceptsTotalEqualToOnSource(t *testing.T) {
	cfg := NewImagerConfig("imager-a", "r", 3, time.Minute, 0)
	ob := &OB{ID: "bad", InstCfg: cfg}
	// imager's TotalTime equals OnSourceTime here since readoutOverhead is 0,
	// so this should pass cleanly.
	assert.NoError(t, ob.Validate())
}

func TestOBValidateRequiresDerivedCommentPrefix(t *testing.T) {
	cfg := NewSpectrographConfig("spec-a", "", 1, 5*time.Minute, 0)
	ob := &OB{ID: "setup-1", InstCfg: cfg, Derived: DerivedSetup, Comment: "forgot the tag"}
	assert.Error(t, ob.Validate())

	ob.Comment = "Setup OB configure grating"
	assert.NoError(t, ob.Validate())
}

func TestDerivedOBNotBilled(t *testing.T) {
	cfg := NewImagerConfig("imager-a", "r", 1, time.Minute, 0)
	ob := NewDerivedOB("fc-1", DerivedFilterChange, cfg, "swap to r")
	assert.Equal(t, time.Duration(0), ob.OnSourceTime())
}

func TestSetupTeardownDelegateToInstrumentConfig(t *testing.T) {
	cfg := NewSpectrographConfig("spec-a", "", 1, 5*time.Minute, 0)
	ob := &OB{ID: "sci-1", InstCfg: cfg}
	assert.Equal(t, cfg.SetupTime(), ob.SetupTime())
	assert.Equal(t, cfg.TeardownTime(), ob.TeardownTime())
}
