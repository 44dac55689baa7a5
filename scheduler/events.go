// Package scheduler implements the night-filling scheduler, the
// multi-night driver and the reporter, plus the typed event bus an
// embedding UI can subscribe to.
package scheduler

import (
	"time"

	"github.com/naojsoft/qplan-core/entity"
)

// NightStarted fires before a night's schedule begins filling.
type NightStarted struct {
	Night       int
	Start, Stop time.Time
}

// SlotAssigned fires once per slot inserted into a night's schedule,
// including blank (unfilled) slots.
type SlotAssigned struct {
	Night int
	Slot  entity.Slot
}

// NightCompleted fires once a night's schedule has been fully filled (or
// cancellation stopped it early).
type NightCompleted struct {
	Night    int
	Schedule *entity.Schedule
	Stats    NightStats
}

// RunCompleted fires once after every night in a run has been processed.
type RunCompleted struct {
	Schedules  []*entity.Schedule
	Summary    string
	Residual   []*entity.OB
}

// EventSink receives the typed events a planning run emits. The core
// must run with no sink attached (see NopSink); the planner never blocks
// on UI state.
type EventSink interface {
	OnNightStarted(NightStarted)
	OnSlotAssigned(SlotAssigned)
	OnNightCompleted(NightCompleted)
	OnRunCompleted(RunCompleted)
}

// NopSink is the default EventSink: every method is a no-op.
type NopSink struct{}

func (NopSink) OnNightStarted(NightStarted)     {}
func (NopSink) OnSlotAssigned(SlotAssigned)     {}
func (NopSink) OnNightCompleted(NightCompleted) {}
func (NopSink) OnRunCompleted(RunCompleted)     {}
