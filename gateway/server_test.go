package gateway

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/naojsoft/qplan-core/ephemeris"
	"github.com/naojsoft/qplan-core/rpc"
)

// startPlannerRPC brings up a real PlannerService on a loopback port and
// returns a dialed rpc.Client, for gateway tests to drive handlePlan
// against without a mock.
func startPlannerRPC(t *testing.T) (*rpc.Client, func()) {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	engine, err := ephemeris.NewEngine(ephemeris.Subaru(), 64, 5)
	require.NoError(t, err)

	grpcServer := grpc.NewServer()
	rpc.RegisterPlannerServer(grpcServer, rpc.NewServer(engine, nil))
	go grpcServer.Serve(lis)

	client, err := rpc.Dial(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	return client, func() {
		client.Close()
		grpcServer.Stop()
	}
}

func TestHandlePlanStreamsRunCompleted(t *testing.T) {
	client, stop := startPlannerRPC(t)
	defer stop()

	gw := &GatewayServer{client: client}

	body, err := json.Marshal(rpc.PlanRequest{
		ProgramsCSV: "proposal,rank,grade,total_time_sec,category,instruments,skip\n",
		ScheduleCSV: "start_rfc3339,stop_rfc3339,dome,cur_filter,installed_filters,instruments,categories\n",
		OBsCSV:      "id,proposal,target_name,ra_deg,dec_deg,equinox,instrument,filter,num_exp,exp_time_sec,priority\n",
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/plan", bytes.NewReader(body))
	w := httptest.NewRecorder()

	gw.handlePlan()(w, req)

	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	scanner := bufio.NewScanner(w.Body)
	var lastEvent rpc.PlanEvent
	count := 0
	for scanner.Scan() {
		var ev rpc.PlanEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		lastEvent = ev
		count++
	}
	require.Greater(t, count, 0)
	assert.Equal(t, "run_completed", lastEvent.Type)
	require.NotNil(t, lastEvent.RunCompleted)
	assert.Equal(t, float64(100), lastEvent.RunCompleted.PercentScheduled)
}

func TestHandlePlanRejectsNonPost(t *testing.T) {
	gw := &GatewayServer{}
	req := httptest.NewRequest("GET", "/api/v1/plan", nil)
	w := httptest.NewRecorder()

	gw.handlePlan()(w, req)
	assert.Equal(t, 405, w.Code)
}

func TestHandlePlanRejectsBadJSON(t *testing.T) {
	gw := &GatewayServer{}
	req := httptest.NewRequest("POST", "/api/v1/plan", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()

	gw.handlePlan()(w, req)
	assert.Equal(t, 400, w.Code)
}

func TestRequestHashStableForSameRequest(t *testing.T) {
	a := &rpc.PlanRequest{ProgramsCSV: "p", ScheduleCSV: "s", OBsCSV: "o"}
	b := &rpc.PlanRequest{ProgramsCSV: "p", ScheduleCSV: "s", OBsCSV: "o"}
	assert.Equal(t, requestHash(a), requestHash(b))

	c := &rpc.PlanRequest{ProgramsCSV: "different", ScheduleCSV: "s", OBsCSV: "o"}
	assert.NotEqual(t, requestHash(a), requestHash(c))
}
