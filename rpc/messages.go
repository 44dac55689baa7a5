// Package rpc exposes the planner core as a gRPC service: one
// server-streaming RPC that accepts the three flat ingest tables plus a
// weights file and streams back the planner's typed events,
// ending in the rendered summary. Messages are plain Go structs rather
// than protoc-generated types -- see DESIGN.md for why -- carried over a
// hand-registered JSON codec (codec.go).
package rpc

import "time"

// PlanRequest carries the same three CSV tables and YAML weights file
// ParsePrograms/ParseSchedule/ParseOBs/LoadWeights accept, so the wire
// boundary does no parsing of its own: the server hands the bodies
// straight to the ingest package, exactly as the CLI does with local
// files.
type PlanRequest struct {
	ProgramsCSV string `json:"programs_csv"`
	ScheduleCSV string `json:"schedule_csv"`
	OBsCSV      string `json:"obs_csv"`
	WeightsYAML string `json:"weights_yaml,omitempty"`

	// AllowDelay mirrors evaluate.Config.AllowDelay; the zero value
	// (false) would silently reject every delayed candidate, so the
	// server treats an explicitly-absent field as "allow" via a pointer.
	AllowDelay *bool `json:"allow_delay,omitempty"`
}

// PlanEvent is one frame of the streamed response: exactly one of its
// payload fields is set, named by Type. A final event with Type "run_completed"
// carries the rendered summary and closes the stream.
type PlanEvent struct {
	Type string `json:"type"`

	NightStarted   *NightStartedMsg   `json:"night_started,omitempty"`
	SlotAssigned   *SlotAssignedMsg   `json:"slot_assigned,omitempty"`
	NightCompleted *NightCompletedMsg `json:"night_completed,omitempty"`
	RunCompleted   *RunCompletedMsg   `json:"run_completed,omitempty"`

	// Error carries a fatal slot-split/ingest failure; the stream
	// ends after an event with this set.
	Error string `json:"error,omitempty"`
}

type NightStartedMsg struct {
	Night int       `json:"night"`
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
}

type SlotMsg struct {
	Start   time.Time `json:"start"`
	Stop    time.Time `json:"stop"`
	OBID    string    `json:"ob_id,omitempty"`
	Derived string    `json:"derived,omitempty"`
	Comment string    `json:"comment,omitempty"`
}

type SlotAssignedMsg struct {
	Night int     `json:"night"`
	Slot  SlotMsg `json:"slot"`
}

type NightCompletedMsg struct {
	Night           int           `json:"night"`
	ScheduledCount  int           `json:"scheduled_count"`
	RejectionCount  int           `json:"rejection_count"`
	Wasted          time.Duration `json:"wasted_ns"`
}

type RunCompletedMsg struct {
	Summary          string  `json:"summary"`
	PercentScheduled float64 `json:"percent_scheduled"`
	ResidualOBIDs    []string `json:"residual_ob_ids"`
}
