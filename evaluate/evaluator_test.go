package evaluate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naojsoft/qplan-core/entity"
	"github.com/naojsoft/qplan-core/ephemeris"
)

func mkEngine(t *testing.T) *ephemeris.Engine {
	t.Helper()
	eng, err := ephemeris.NewEngine(ephemeris.Subaru(), 0, 0)
	require.NoError(t, err)
	return eng
}

func circumpolarOB(id, filter string, total time.Duration) *entity.OB {
	return &entity.OB{
		ID:      id,
		Program: &entity.Program{Proposal: "P1", Rank: 5, TotalTime: time.Hour},
		Target:  &entity.Target{Name: "polaris", RA: 37.95, Dec: 89.26, Equinox: 2000},
		InstCfg: entity.NewImagerConfig("imager-a", filter, 1, total, 0),
		TelCfg:  entity.TelescopeConfig{Dome: entity.DomeOpen, MinEl: 15, MaxEl: 89},
		EnvCfg:  entity.DefaultEnvironmentConfiguration(),
	}
}

func TestEvaluatorSizeGateRejectsOversizedOB(t *testing.T) {
	e := New(mkEngine(t), DefaultConfig())
	slot := entity.Slot{Start: mkT(19, 0), Stop: mkT(19, 30)}
	ob := circumpolarOB("ob-1", "r", time.Hour)

	_, rej := e.Evaluate(entity.NightConditions{Dome: entity.DomeOpen, CurFilter: "r"}, entity.Slot{}, slot, ob)
	require.NotNil(t, rej)
	assert.Contains(t, rej.Reason, "exceeds slot")
}

func TestEvaluatorAcceptsFitWithAmpleMarginNoFilterChange(t *testing.T) {
	e := New(mkEngine(t), DefaultConfig())
	slot := entity.Slot{Start: mkT(19, 0), Stop: mkT(23, 0)}
	ob := circumpolarOB("ob-1", "r", 30*time.Minute)

	cand, rej := e.Evaluate(entity.NightConditions{Dome: entity.DomeOpen, CurFilter: "r"}, entity.Slot{}, slot, ob)
	require.Nil(t, rej)
	require.NotNil(t, cand)
	assert.False(t, cand.FilterChange)
}

func TestEvaluatorDetectsFilterChange(t *testing.T) {
	e := New(mkEngine(t), DefaultConfig())
	slot := entity.Slot{Start: mkT(19, 0), Stop: mkT(21, 0)}
	ob := circumpolarOB("ob-1", "r", 30*time.Minute)

	cand, rej := e.Evaluate(entity.NightConditions{Dome: entity.DomeOpen, CurFilter: "g"}, entity.Slot{}, slot, ob)
	require.Nil(t, rej)
	require.NotNil(t, cand)
	assert.True(t, cand.FilterChange)
	assert.Equal(t, ob.InstCfg.FilterChangeCost(), cand.FilterChangeSec)
}

func TestEvaluatorDomeClosedFastPath(t *testing.T) {
	e := New(mkEngine(t), DefaultConfig())
	slot := entity.Slot{Start: mkT(19, 0), Stop: mkT(20, 0)}
	ob := circumpolarOB("ob-1", "r", 10*time.Minute)
	ob.TelCfg.Dome = entity.DomeClosed

	cand, rej := e.Evaluate(entity.NightConditions{Dome: entity.DomeClosed, CurFilter: "r"}, entity.Slot{}, slot, ob)
	require.Nil(t, rej)
	require.NotNil(t, cand)
	assert.True(t, cand.StopTime.Sub(cand.StartTime) == 10*time.Minute)
}

func TestEvaluatorRejectsSeeingAboveCeiling(t *testing.T) {
	e := New(mkEngine(t), DefaultConfig())
	slot := entity.Slot{Start: mkT(19, 0), Stop: mkT(20, 0)}
	ob := circumpolarOB("ob-1", "r", 10*time.Minute)
	ob.EnvCfg.SeeingMax = 0.5

	_, rej := e.Evaluate(entity.NightConditions{Dome: entity.DomeOpen, CurFilter: "r", Seeing: 1.2}, entity.Slot{}, slot, ob)
	require.NotNil(t, rej)
	assert.Contains(t, rej.Reason, "seeing")
}

func TestComparatorPrefersLowerScore(t *testing.T) {
	e := New(mkEngine(t), DefaultConfig())
	slot := entity.Slot{Start: mkT(19, 0), Stop: mkT(23, 0)}

	lowRank := circumpolarOB("ob-low", "r", 10*time.Minute)
	lowRank.Program.Rank = 1

	highRank := circumpolarOB("ob-high", "r", 10*time.Minute)
	highRank.Program.Rank = 9

	candLow, rej := e.Evaluate(entity.NightConditions{Dome: entity.DomeOpen, CurFilter: "r"}, entity.Slot{}, slot, lowRank)
	require.Nil(t, rej)
	candHigh, rej := e.Evaluate(entity.NightConditions{Dome: entity.DomeOpen, CurFilter: "r"}, entity.Slot{}, slot, highRank)
	require.Nil(t, rej)

	cmp := NewComparator(DefaultWeights(), DefaultLimits())
	assert.True(t, cmp.Less(candHigh, candLow), "higher-rank program should score better (lower cost)")
}

func TestComparatorAppliesPriorityWithinSharedProgram(t *testing.T) {
	prog := &entity.Program{Proposal: "P-shared", Rank: 5, TotalTime: time.Hour}

	a := circumpolarOB("ob-a", "r", 10*time.Minute)
	a.Program = prog
	a.Priority = 1

	b := circumpolarOB("ob-b", "r", 10*time.Minute)
	b.Program = prog
	b.Priority = 5

	e := New(mkEngine(t), DefaultConfig())
	slot := entity.Slot{Start: mkT(19, 0), Stop: mkT(23, 0)}

	candA, rej := e.Evaluate(entity.NightConditions{Dome: entity.DomeOpen, CurFilter: "r"}, entity.Slot{}, slot, a)
	require.Nil(t, rej)
	candB, rej := e.Evaluate(entity.NightConditions{Dome: entity.DomeOpen, CurFilter: "r"}, entity.Slot{}, slot, b)
	require.Nil(t, rej)

	cmp := NewComparator(DefaultWeights(), DefaultLimits())
	assert.True(t, cmp.Less(candA, candB), "lower priority number should sort first within a shared program")
}

func mkT(h, m int) time.Time {
	return time.Date(2024, 6, 1, h, m, 0, 0, time.UTC)
}
