package rpc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	orig := &PlanEvent{
		Type: "night_started",
		NightStarted: &NightStartedMsg{
			Night: 2,
			Start: time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC),
			Stop:  time.Date(2026, 6, 2, 5, 0, 0, 0, time.UTC),
		},
	}

	b, err := c.Marshal(orig)
	require.NoError(t, err)

	var got PlanEvent
	require.NoError(t, c.Unmarshal(b, &got))

	assert.Equal(t, orig.Type, got.Type)
	require.NotNil(t, got.NightStarted)
	assert.Equal(t, orig.NightStarted.Night, got.NightStarted.Night)
	assert.True(t, orig.NightStarted.Start.Equal(got.NightStarted.Start))
}

func TestJSONCodecName(t *testing.T) {
	assert.Equal(t, "json", jsonCodec{}.Name())
}

func TestPlanRequestRoundTrip(t *testing.T) {
	allow := true
	req := PlanRequest{
		ProgramsCSV: "proposal,rank\nP1,5\n",
		ScheduleCSV: "start,stop\n",
		OBsCSV:      "id,proposal\n",
		WeightsYAML: "weights:\n  slew: 0.1\n",
		AllowDelay:  &allow,
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)

	var got PlanRequest
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, req.ProgramsCSV, got.ProgramsCSV)
	require.NotNil(t, got.AllowDelay)
	assert.True(t, *got.AllowDelay)
}
