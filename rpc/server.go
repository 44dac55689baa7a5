package rpc

import (
	"fmt"
	"strings"
	"time"

	"github.com/naojsoft/qplan-core/entity"
	"github.com/naojsoft/qplan-core/ephemeris"
	"github.com/naojsoft/qplan-core/evaluate"
	"github.com/naojsoft/qplan-core/feasibility"
	"github.com/naojsoft/qplan-core/ingest"
	"github.com/naojsoft/qplan-core/log"
	"github.com/naojsoft/qplan-core/persistence"
	"github.com/naojsoft/qplan-core/scheduler"
)

var logger = log.Logger()

// Server implements PlannerServer: it turns a PlanRequest's three ingest
// tables into entity values, runs the multi-night driver, and streams
// the scheduler's typed events back to the caller as PlanEvent frames. This
// is the "remote embedder" collaborator the driver's EventSink interface
// is built to satisfy -- the core itself never imports this package.
type Server struct {
	Engine *ephemeris.Engine
	Store  *persistence.Store // optional; nil means no executed-OB history
}

// NewServer constructs a Server bound to engine, with an optional
// executed-OB persistence store.
func NewServer(engine *ephemeris.Engine, store *persistence.Store) *Server {
	return &Server{Engine: engine, Store: store}
}

// RunPlan implements PlannerServer.
func (s *Server) RunPlan(req *PlanRequest, stream PlannerService_RunPlanServer) error {
	ctx := stream.Context()

	progResult := ingest.ParsePrograms(strings.NewReader(req.ProgramsCSV))
	for _, e := range progResult.Errors {
		logger.Warn("rejected programs row", "error", e)
	}
	programByID := make(map[string]*entity.Program, len(progResult.Programs))
	for _, p := range progResult.Programs {
		programByID[p.Proposal] = p
	}

	nightsResult := ingest.ParseSchedule(strings.NewReader(req.ScheduleCSV))
	for _, e := range nightsResult.Errors {
		logger.Warn("rejected schedule row", "error", e)
	}

	obsResult := ingest.ParseOBs(strings.NewReader(req.OBsCSV), programByID)
	for _, e := range obsResult.Errors {
		logger.Warn("rejected obs row", "error", e)
	}

	weights, limits := evaluate.DefaultWeights(), evaluate.DefaultLimits()
	if req.WeightsYAML != "" {
		var err error
		weights, limits, err = ingest.LoadWeights(strings.NewReader(req.WeightsYAML))
		if err != nil {
			return stream.Send(&PlanEvent{Type: "error", Error: fmt.Sprintf("weights: %v", err)})
		}
	}

	cfg := evaluate.DefaultConfig()
	if req.AllowDelay != nil {
		cfg.AllowDelay = *req.AllowDelay
	}

	var executed []scheduler.ExecutedOB
	if s.Store != nil {
		executed = s.Store.FetchExecuted(ctx)
	}

	filter := feasibility.New(s.Engine)
	evalr := evaluate.New(s.Engine, cfg)
	cmp := evaluate.NewComparator(weights, limits)
	sink := &streamSink{stream: stream}
	nightSched := scheduler.New(filter, evalr, cmp, sink)
	driver := scheduler.NewDriver(nightSched)

	start := time.Now()
	result, err := driver.Run(nightsResult.Nights, obsResult.OBs, progResult.Programs, executed, ctx.Done())
	wall := time.Since(start)
	if err != nil {
		if _, ok := err.(scheduler.Cancelled); !ok {
			return stream.Send(&PlanEvent{Type: "error", Error: err.Error()})
		}
	}

	summary := scheduler.Summarize(result, progResult.Programs, obsResult.OBs, wall)
	text := scheduler.Reporter{}.Render(summary)

	residualIDs := make([]string, 0, len(result.Residual))
	for _, ob := range result.Residual {
		residualIDs = append(residualIDs, ob.ID)
	}

	return stream.Send(&PlanEvent{
		Type: "run_completed",
		RunCompleted: &RunCompletedMsg{
			Summary:          text,
			PercentScheduled: summary.PercentScheduled(),
			ResidualOBIDs:    residualIDs,
		},
	})
}

// streamSink adapts scheduler.EventSink to the PlanEvent stream, the
// concrete remote-embedder sink the event bus design anticipates.
type streamSink struct {
	stream  PlannerService_RunPlanServer
	curSlot int
}

func (s *streamSink) OnNightStarted(e scheduler.NightStarted) {
	_ = s.stream.Send(&PlanEvent{
		Type: "night_started",
		NightStarted: &NightStartedMsg{
			Night: e.Night, Start: e.Start, Stop: e.Stop,
		},
	})
}

func (s *streamSink) OnSlotAssigned(e scheduler.SlotAssigned) {
	msg := SlotMsg{Start: e.Slot.Start, Stop: e.Slot.Stop}
	if e.Slot.OB != nil {
		msg.OBID = e.Slot.OB.ID
		msg.Derived = string(e.Slot.OB.Derived)
		msg.Comment = e.Slot.OB.Comment
	}
	_ = s.stream.Send(&PlanEvent{
		Type:         "slot_assigned",
		SlotAssigned: &SlotAssignedMsg{Night: e.Night, Slot: msg},
	})
}

func (s *streamSink) OnNightCompleted(e scheduler.NightCompleted) {
	_ = s.stream.Send(&PlanEvent{
		Type: "night_completed",
		NightCompleted: &NightCompletedMsg{
			Night:          e.Night,
			ScheduledCount: len(e.Stats.Scheduled),
			RejectionCount: len(e.Stats.Rejections),
			Wasted:         e.Stats.Wasted,
		},
	})
}

func (s *streamSink) OnRunCompleted(scheduler.RunCompleted) {
	// RunPlan sends its own terminal run_completed event once Run
	// returns, carrying the rendered summary; this hook has nothing
	// further to add.
}
