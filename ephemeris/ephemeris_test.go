package ephemeris

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAirmassZenithIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, Airmass(90), 1e-6)
}

func TestAirmassMonotoneNonIncreasingWithAltitude(t *testing.T) {
	prev := Airmass(3)
	for alt := 4.0; alt <= 90; alt++ {
		cur := Airmass(alt)
		assert.LessOrEqual(t, cur, prev+1e-9, "airmass should not increase as altitude rises (alt=%v)", alt)
		prev = cur
	}
}

func TestAirmassClampsBelow3Degrees(t *testing.T) {
	assert.Equal(t, Airmass(3), Airmass(-10))
	assert.Equal(t, Airmass(3), Airmass(0))
}

func TestAirmassToAltitudeRoundTrips(t *testing.T) {
	for _, am := range []float64{1.1, 1.5, 2.0, 3.0} {
		alt := AirmassToAltitude(am)
		assert.InDelta(t, am, Airmass(alt), 1e-3)
	}
}

func TestMoonIlluminationInRange(t *testing.T) {
	site := Subaru()
	tm := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		illum := MoonIllumination(tm.AddDate(0, 0, i))
		assert.GreaterOrEqual(t, illum, 0.0)
		assert.LessOrEqual(t, illum, 1.0)
	}
	_ = site
}

func TestCacheGetMissesOutsideTolerance(t *testing.T) {
	cache, err := NewCache(100, 5)
	require.NoError(t, err)

	base := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	cache.Populate("target-a", []time.Time{base}, func(t time.Time) CalculationResult {
		return CalculationResult{Time: t, AltDeg: 45}
	})

	got, err := cache.Get("target-a", base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 45.0, got.AltDeg)

	_, err = cache.Get("target-a", base.Add(20*time.Minute))
	var miss *CacheMiss
	assert.ErrorAs(t, err, &miss)
}

func TestCacheParallelPopulateCoversAllTargets(t *testing.T) {
	cache, err := NewCache(1000, 5)
	require.NoError(t, err)

	base := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(10 * time.Minute), base.Add(20 * time.Minute)}

	work := make([]TargetWork, 0, 5)
	for i := 0; i < 5; i++ {
		name := string(rune('A' + i))
		work = append(work, TargetWork{
			Target: name,
			Times:  times,
			Compute: func(t time.Time) CalculationResult {
				return CalculationResult{Time: t, AltDeg: 60}
			},
		})
	}
	cache.ParallelPopulate(work)

	for _, w := range work {
		for _, tm := range times {
			got, err := cache.Get(w.Target, tm)
			require.NoError(t, err)
			assert.Equal(t, 60.0, got.AltDeg)
		}
	}
}

func TestNextSettingAndRisingOnSyntheticSine(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	period := 24 * time.Hour
	alt := func(t time.Time) float64 {
		phase := float64(t.Sub(base)) / float64(period) * 2 * math.Pi
		return 45 * math.Sin(phase)
	}

	setAt, err := NextSetting(alt, base, 0)
	require.NoError(t, err)
	assert.WithinDuration(t, base.Add(12*time.Hour), setAt, 2*time.Minute)

	riseAt, err := NextRising(alt, base.Add(13*time.Hour), 0)
	require.NoError(t, err)
	assert.WithinDuration(t, base.Add(24*time.Hour), riseAt, 2*time.Minute)
}

func TestObservableRequiresMinimumDuration(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Always up at 50 degrees -- a flat altitude function.
	alt := func(t time.Time) float64 { return 50 }

	ok, start, stop := Observable(alt, nil, base, base.Add(2*time.Hour), 30, 90, 0, 0, time.Hour)
	require.True(t, ok)
	assert.True(t, start.Equal(base))
	assert.True(t, stop.Equal(base.Add(2 * time.Hour)))

	ok, _, _ = Observable(alt, nil, base, base.Add(2*time.Hour), 30, 90, 0, 0, 3*time.Hour)
	assert.False(t, ok)
}

func TestSubaruSiteHorizonDipIsNegative(t *testing.T) {
	s := Subaru()
	assert.Less(t, s.HorizonDeg, 0.0)
}
