package feasibility

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
	site := ephemeris.Subaru()
	eng, err := ephemeris.NewEngine(site, 0, 0)
	require.NoError(t, err)
	return eng
}

func baseOB(id string) *entity.OB {
	return &entity.OB{
		ID:      id,
		Program: &entity.Program{Proposal: "P1", Category: "open"},
		Target:  &entity.Target{Name: "polaris", RA: 37.95, Dec: 89.26, Equinox: 2000},
		InstCfg: entity.NewImagerConfig("imager-a", "r", 1, 10*time.Minute, 0),
		TelCfg:  entity.TelescopeConfig{Dome: entity.DomeOpen, MinEl: 15, MaxEl: 89},
		EnvCfg:  entity.DefaultEnvironmentConfiguration(),
	}
}

func baseSchedule() *entity.Schedule {
	start := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	stop := start.Add(4 * time.Hour)
	return entity.NewSchedule(start, stop, entity.NightConditions{
		InstalledFilters: []string{"r", "g"},
		Dome:             entity.DomeOpen,
		Instruments:      []string{"imager-a"},
		Categories:       []string{"open"},
	})
}

func TestFilterRejectsUninstalledFilter(t *testing.T) {
	f := New(mkEngine(t))
	sched := baseSchedule()
	ob := baseOB("ob-1")
	ob.InstCfg = entity.NewImagerConfig("imager-a", "z", 1, 10*time.Minute, 0)

	results := f.Run(sched, []*entity.OB{ob})
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Contains(t, results[0].Reason, "not installed")
}

func TestFilterRejectsInstrumentNotInWhitelist(t *testing.T) {
	f := New(mkEngine(t))
	sched := baseSchedule()
	ob := baseOB("ob-1")
	ob.InstCfg = entity.NewImagerConfig("imager-b", "r", 1, 10*time.Minute, 0)

	results := f.Run(sched, []*entity.OB{ob})
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Contains(t, results[0].Reason, "instrument")
}

func TestFilterRejectsCategoryNotWhitelisted(t *testing.T) {
	f := New(mkEngine(t))
	sched := baseSchedule()
	ob := baseOB("ob-1")
	ob.Program = &entity.Program{Proposal: "P2", Category: "intensive"}

	results := f.Run(sched, []*entity.OB{ob})
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Contains(t, results[0].Reason, "category")
}

func TestFilterAcceptsBothDomesClosed(t *testing.T) {
	f := New(mkEngine(t))
	sched := baseSchedule()
	sched.Data.Dome = entity.DomeClosed
	ob := baseOB("ob-1")
	ob.TelCfg.Dome = entity.DomeClosed

	results := f.Run(sched, []*entity.OB{ob})
	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
}

func TestFilterRejectsDomeMismatch(t *testing.T) {
	f := New(mkEngine(t))
	sched := baseSchedule()
	ob := baseOB("ob-1")
	ob.TelCfg.Dome = entity.DomeClosed

	results := f.Run(sched, []*entity.OB{ob})
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Contains(t, results[0].Reason, "dome")
}

func TestFilterRejectsTargetThatNeverRises(t *testing.T) {
	// A deep-southern target never clears the horizon from a northern
	// site; the cached-grid pre-screen should reject it without
	// root-finding.
	f := New(mkEngine(t))
	sched := baseSchedule()
	ob := baseOB("ob-1")
	ob.Target = &entity.Target{Name: "sigma-oct", RA: 317.2, Dec: -88.96, Equinox: 2000}

	results := f.Run(sched, []*entity.OB{ob})
	require.Len(t, results, 1)
	assert.False(t, results[0].OK)
	assert.Contains(t, results[0].Reason, "never rises")
}

func TestFilterAcceptsCircumpolarTarget(t *testing.T) {
	// Polaris from a northern site is up all night; the visibility check
	// should pass without needing a rise.
	f := New(mkEngine(t))
	sched := baseSchedule()
	ob := baseOB("ob-1")

	results := f.Run(sched, []*entity.OB{ob})
	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
	assert.False(t, results[0].VisibleStart.IsZero())
}
