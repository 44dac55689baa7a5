package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestImagerFullDitherWindowByDefault(t *testing.T) {
	cfg := NewImagerConfig("imager-a", "r", 5, 10*time.Minute, 30*time.Second)

	assert.Equal(t, 5, cfg.NumExposures())
	assert.Equal(t, 50*time.Minute, cfg.OnSourceTime())
	assert.Equal(t, 5*(10*time.Minute+30*time.Second), cfg.TotalTime())
}

func TestImagerSkipStopWindowShrinksDerivedTimes(t *testing.T) {
	// A sequence resumed at position 2 of 5, stopping after position 4,
	// executes exposures 2 and 3 only.
	cfg := NewImagerConfig("imager-a", "r", 5, 10*time.Minute, 30*time.Second)
	cfg.Skip = 2
	cfg.Stop = 4

	assert.Equal(t, 2, cfg.NumExposures())
	assert.Equal(t, 20*time.Minute, cfg.OnSourceTime())
	assert.Equal(t, 2*(10*time.Minute+30*time.Second), cfg.TotalTime())
}

func TestImagerSkipStopWindowClamps(t *testing.T) {
	cfg := NewImagerConfig("imager-a", "r", 3, time.Minute, 0)

	// Stop past the exposure count clamps to it.
	cfg.Skip = 0
	cfg.Stop = 10
	assert.Equal(t, 3, cfg.NumExposures())

	// Skip at or past stop leaves nothing to execute.
	cfg.Skip = 3
	cfg.Stop = 3
	assert.Equal(t, 0, cfg.NumExposures())
	assert.Equal(t, time.Duration(0), cfg.TotalTime())

	// Negative skip behaves as zero.
	cfg.Skip = -1
	cfg.Stop = 2
	assert.Equal(t, 2, cfg.NumExposures())
}

func TestSpectrographDerivedTimesUseFullCount(t *testing.T) {
	cfg := NewSpectrographConfig("spec-a", "r", 4, 5*time.Minute, 15*time.Second)

	assert.Equal(t, 4, cfg.NumExposures())
	assert.Equal(t, 20*time.Minute, cfg.OnSourceTime())
	assert.Equal(t, 4*(5*time.Minute+15*time.Second), cfg.TotalTime())
}
