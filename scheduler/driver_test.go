package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naojsoft/qplan-core/entity"
)

func TestDriverThreadsUnscheduledOBsAcrossNights(t *testing.T) {
	s := mkScheduler(t)
	d := NewDriver(s)

	night1Start := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	night2Start := time.Date(2024, 6, 2, 19, 0, 0, 0, time.UTC)
	data := entity.NightConditions{
		InstalledFilters: []string{"r"},
		Dome:             entity.DomeClosed,
		Instruments:      []string{"imager-a"},
		CurFilter:        "r",
	}
	nights := []NightRecord{
		{Start: night1Start, Stop: night1Start.Add(time.Hour), Data: data},
		{Start: night2Start, Stop: night2Start.Add(time.Hour), Data: data},
	}

	prog := &entity.Program{Proposal: "P", Rank: 5, TotalTime: 2 * time.Hour}
	obA := closedOB("ob-a", prog, "r", 45*time.Minute)
	obB := closedOB("ob-b", prog, "r", 45*time.Minute)

	result, err := d.Run(nights, []*entity.OB{obA, obB}, []*entity.Program{prog}, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Schedules, 2)
	require.Len(t, result.NightStats, 2)

	totalScheduled := len(result.NightStats[0].Scheduled) + len(result.NightStats[1].Scheduled)
	assert.Equal(t, 2, totalScheduled, "both OBs should eventually be scheduled, one per night")
	assert.Empty(t, result.Residual)
}

func TestDriverExcludesDoneExecutedOBs(t *testing.T) {
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

	prog := &entity.Program{Proposal: "P", Rank: 5, TotalTime: time.Hour}
	ob := closedOB("ob-done", prog, "r", 10*time.Minute)

	executed := []ExecutedOB{{Proposal: "P", OBCode: "ob-done", AcctTime: 10 * time.Minute, FQA: "good"}}

	result, err := d.Run(nights, []*entity.OB{ob}, []*entity.Program{prog}, executed, nil)
	require.NoError(t, err)
	require.Len(t, result.NightStats, 1)
	assert.Empty(t, result.NightStats[0].Scheduled, "an OB marked done via executed feedback should never be offered to the scheduler")
}

func TestDriverPreSeedsScheduledTimeFromExecutedFeedback(t *testing.T) {
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

	prog := &entity.Program{Proposal: "P", Rank: 5, TotalTime: 20 * time.Minute}
	ob := closedOB("ob-new", prog, "r", 15*time.Minute)

	executed := []ExecutedOB{{Proposal: "P", OBCode: "ob-old", AcctTime: 10 * time.Minute, FQA: "good"}}

	result, err := d.Run(nights, []*entity.OB{ob}, []*entity.Program{prog}, executed, nil)
	require.NoError(t, err)
	require.Len(t, result.NightStats, 1)
	assert.Empty(t, result.NightStats[0].Scheduled, "10 min already billed + 15 min requested exceeds the 20 min budget")
	require.Len(t, result.NightStats[0].Rejections, 1)
	assert.Contains(t, result.NightStats[0].Rejections[0].Reason, "exceed")
}

func TestDriverExcludesSkippedProgramOBs(t *testing.T) {
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

	skipped := &entity.Program{Proposal: "P-skip", Rank: 9, TotalTime: time.Hour, Skip: true}
	active := &entity.Program{Proposal: "P-live", Rank: 5, TotalTime: time.Hour}
	obSkip := closedOB("ob-skip", skipped, "r", 10*time.Minute)
	obLive := closedOB("ob-live", active, "r", 10*time.Minute)

	result, err := d.Run(nights, []*entity.OB{obSkip, obLive}, []*entity.Program{skipped, active}, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.NightStats, 1)

	require.Len(t, result.NightStats[0].Scheduled, 1)
	assert.Equal(t, "ob-live", result.NightStats[0].Scheduled[0].ID,
		"a skipped program's OBs must never be offered to the scheduler")
	assert.Empty(t, result.Residual, "skipped-program OBs are excluded, not residual")
}

func TestDriverSkipsSkippedNight(t *testing.T) {
	s := mkScheduler(t)
	d := NewDriver(s)

	night1 := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	night2 := time.Date(2024, 6, 2, 19, 0, 0, 0, time.UTC)
	data := entity.NightConditions{
		InstalledFilters: []string{"r"},
		Dome:             entity.DomeClosed,
		Instruments:      []string{"imager-a"},
		CurFilter:        "r",
	}
	skippedData := data
	skippedData.Skip = true
	skippedData.Note = "engineering time"

	nights := []NightRecord{
		{Start: night1, Stop: night1.Add(time.Hour), Data: skippedData},
		{Start: night2, Stop: night2.Add(time.Hour), Data: data},
	}

	prog := &entity.Program{Proposal: "P", Rank: 5, TotalTime: time.Hour}
	ob := closedOB("ob-1", prog, "r", 10*time.Minute)

	result, err := d.Run(nights, []*entity.OB{ob}, []*entity.Program{prog}, nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Schedules, 2)

	assert.Empty(t, result.NightStats[0].Scheduled, "nothing is planned on a skipped night")
	assert.Equal(t, time.Hour, result.NightStats[0].Wasted)
	assert.Nil(t, result.Schedules[0].Slots()[0].OB, "the skipped night's slot stays free")

	require.Len(t, result.NightStats[1].Scheduled, 1, "the OB lands on the following live night")
}

func TestDriverCancellationReturnsPartialResult(t *testing.T) {
	s := mkScheduler(t)
	d := NewDriver(s)

	start := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC)
	data := entity.NightConditions{Dome: entity.DomeClosed}
	nights := []NightRecord{
		{Start: start, Stop: start.Add(time.Hour), Data: data},
		{Start: start.Add(24 * time.Hour), Stop: start.Add(25 * time.Hour), Data: data},
	}

	cancel := make(chan struct{})
	close(cancel)

	result, err := d.Run(nights, nil, nil, nil, cancel)
	require.Error(t, err)
	assert.IsType(t, Cancelled{}, err)
	assert.Empty(t, result.Schedules, "cancellation before the first night starts no nights at all")
}
