package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTime(h, m, s int) time.Time {
	return time.Date(2026, 7, 29, h, m, s, 0, time.UTC)
}

func TestSlotSplitClampsNearStart(t *testing.T) {
	slot := Slot{Start: mkTime(20, 0, 0), Stop: mkTime(21, 0, 0)}
	ob := &OB{ID: "sci-1"}

	// split point 3s after start is within tolerance: no "before" piece.
	pieces, err := slot.Split(mkTime(20, 0, 3), 10*time.Minute, ob)
	require.NoError(t, err)
	require.Len(t, pieces, 2)
	assert.True(t, pieces[0].Start.Equal(slot.Start))
	assert.Equal(t, ob, pieces[0].OB)
	assert.Nil(t, pieces[1].OB)
}

func TestSlotSplitDropsTinyRemainder(t *testing.T) {
	slot := Slot{Start: mkTime(20, 0, 0), Stop: mkTime(20, 10, 0)}
	ob := &OB{ID: "sci-1"}

	// used piece runs to within 500ms of stop: trailing sliver dropped.
	pieces, err := slot.Split(mkTime(20, 1, 0), 8*time.Minute+59500*time.Millisecond, ob)
	require.NoError(t, err)
	require.Len(t, pieces, 2)
	assert.Nil(t, pieces[0].OB)
	assert.Equal(t, ob, pieces[1].OB)
}

func TestSlotSplitRejectsOverrun(t *testing.T) {
	slot := Slot{Start: mkTime(20, 0, 0), Stop: mkTime(20, 10, 0)}
	_, err := slot.Split(mkTime(20, 5, 0), time.Hour, &OB{})
	assert.Error(t, err)
}

func TestSlotSplitStartToleranceBoundary(t *testing.T) {
	slot := Slot{Start: mkTime(20, 0, 0), Stop: mkTime(20, 10, 0)}
	ob := &OB{ID: "sci-1"}

	// 5s before the slot start clamps to the start.
	pieces, err := slot.Split(mkTime(19, 59, 55), time.Minute, ob)
	require.NoError(t, err)
	assert.True(t, pieces[0].Start.Equal(slot.Start))
	assert.Equal(t, ob, pieces[0].OB)

	// 6s before is out of range.
	_, err = slot.Split(mkTime(19, 59, 54), time.Minute, ob)
	assert.Error(t, err)
}
