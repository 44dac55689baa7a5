package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naojsoft/qplan-core/entity"
)

func TestSummarizeAndRenderReportsCompletionSplit(t *testing.T) {
	s := mkScheduler(t)
	d := NewDriver(s)

	start := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	data := entity.NightConditions{
		InstalledFilters: []string{"r"},
		Dome:             entity.DomeClosed,
		Instruments:      []string{"imager-a"},
		CurFilter:        "r",
	}
	nights := []NightRecord{{Start: start, Stop: start.Add(time.Hour), Data: data}}

	// Equal ranks so the comparator's rank term doesn't reorder these two
	// candidates; the deterministic (program id, OB id) tie-break then
	// puts "P-done" first, letting its short OB claim the slot before
	// "P-stuck"'s OB (too long for what's left) gets a turn.
	done := &entity.Program{Proposal: "P-done", Rank: 5, TotalTime: time.Hour}
	obDone := closedOB("ob-done", done, "r", 10*time.Minute)

	stuck := &entity.Program{Proposal: "P-stuck", Rank: 5, TotalTime: time.Hour}
	obStuck := closedOB("ob-stuck", stuck, "r", 55*time.Minute)

	obs := []*entity.OB{obDone, obStuck}
	result, err := d.Run(nights, obs, []*entity.Program{done, stuck}, nil, nil)
	require.NoError(t, err)

	summary := Summarize(result, []*entity.Program{done, stuck}, obs, 42*time.Millisecond)
	assert.Equal(t, 1, summary.ScheduledOBCount)
	assert.Equal(t, 2, summary.TotalOBCount)
	assert.Equal(t, 50.0, summary.PercentScheduled())

	text := Reporter{}.Render(summary)
	assert.Contains(t, text, "P-done")
	assert.Contains(t, text, "Completed programs")
	assert.Contains(t, text, "Uncompleted programs")
}
