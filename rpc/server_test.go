package rpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naojsoft/qplan-core/ephemeris"
)

type fakeStream struct {
	events []*PlanEvent
}

func (f *fakeStream) Send(e *PlanEvent) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeStream) Context() context.Context { return context.Background() }

func TestRunPlanEmptyTablesCompletes(t *testing.T) {
	engine, err := ephemeris.NewEngine(ephemeris.Subaru(), 64, 5)
	require.NoError(t, err)

	srv := NewServer(engine, nil)
	stream := &fakeStream{}

	req := &PlanRequest{
		ProgramsCSV: "proposal,rank,grade,total_time_sec,category,instruments,skip\n",
		ScheduleCSV: "start_rfc3339,stop_rfc3339,dome,cur_filter,installed_filters,instruments,categories\n",
		OBsCSV:      "id,proposal,target_name,ra_deg,dec_deg,equinox,instrument,filter,num_exp,exp_time_sec,priority\n",
	}

	err = srv.RunPlan(req, stream)
	require.NoError(t, err)
	require.NotEmpty(t, stream.events)

	last := stream.events[len(stream.events)-1]
	assert.Equal(t, "run_completed", last.Type)
	require.NotNil(t, last.RunCompleted)
	assert.Equal(t, float64(100), last.RunCompleted.PercentScheduled)
}
