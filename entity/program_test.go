package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgramHasInstrumentCaseInsensitive(t *testing.T) {
	p := &Program{Proposal: "P1", Instruments: []string{"HSC", "FOCAS"}}
	assert.True(t, p.HasInstrument("hsc"))
	assert.True(t, p.HasInstrument("Focas"))
	assert.False(t, p.HasInstrument("MOIRCS"))
}

func TestTargetSamePosition(t *testing.T) {
	a := &Target{RA: 10.5, Dec: -20.1, Equinox: 2000.0}
	b := &Target{RA: 10.5, Dec: -20.1, Equinox: 2000.0}
	c := &Target{RA: 11.0, Dec: -20.1, Equinox: 2000.0}
	assert.True(t, a.SamePosition(b))
	assert.False(t, a.SamePosition(c))
}
