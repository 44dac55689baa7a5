package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name PlannerServer is
// registered under.
const ServiceName = "qplan.core.PlannerService"

// PlannerServer is the server-side contract: run a planning request and
// stream its events back. Implemented by *Server (server.go).
type PlannerServer interface {
	RunPlan(req *PlanRequest, stream PlannerService_RunPlanServer) error
}

// PlannerService_RunPlanServer is the narrow streaming-send contract a
// RunPlan implementation needs; grpc.ServerStream satisfies it via SendMsg.
type PlannerService_RunPlanServer interface {
	Send(*PlanEvent) error
	Context() context.Context
}

type runPlanServerStream struct {
	grpc.ServerStream
}

func (s *runPlanServerStream) Send(e *PlanEvent) error {
	return s.ServerStream.SendMsg(e)
}

func (s *runPlanServerStream) Context() context.Context {
	return s.ServerStream.Context()
}

func runPlanHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(PlanRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(PlannerServer).RunPlan(req, &runPlanServerStream{ServerStream: stream})
}

// ServiceDesc is registered on a *grpc.Server via RegisterPlannerServer,
// hand-written in place of a protoc-generated one (see DESIGN.md).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlannerServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "RunPlan",
			Handler:       runPlanHandler,
			ServerStreams: true,
		},
	},
	Metadata: "qplan/rpc/service.go",
}

// RegisterPlannerServer registers srv's RunPlan implementation on s.
func RegisterPlannerServer(s *grpc.Server, srv PlannerServer) {
	s.RegisterService(&ServiceDesc, srv)
}
