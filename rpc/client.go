package rpc

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client dials a PlannerService endpoint and streams RunPlan events back
// to the caller. There is no generated stub, so Client builds the
// ClientStream directly against ServiceDesc's streaming method.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a PlannerService at target using the package's JSON
// codec (no TLS by default; callers needing TLS pass their own
// transport credentials in opts, which take precedence).
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	allOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// RunPlan invokes the RunPlan streaming RPC and returns every PlanEvent
// frame the server sends, in order, stopping at the first error or at
// stream end (io.EOF, swallowed).
func (c *Client) RunPlan(ctx context.Context, req *PlanRequest) ([]*PlanEvent, error) {
	desc := &grpc.StreamDesc{StreamName: "RunPlan", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, "/"+ServiceName+"/RunPlan", grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, fmt.Errorf("rpc: open RunPlan stream: %w", err)
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, fmt.Errorf("rpc: send plan request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("rpc: close send: %w", err)
	}

	var events []*PlanEvent
	for {
		ev := new(PlanEvent)
		if err := stream.RecvMsg(ev); err != nil {
			if err == io.EOF {
				return events, nil
			}
			return events, fmt.Errorf("rpc: recv plan event: %w", err)
		}
		events = append(events, ev)
	}
}

// RunPlanStream is the callback variant: each event is handed to onEvent
// as it arrives rather than buffered, for callers (e.g. the gateway) that
// want to forward events to their own client incrementally.
func (c *Client) RunPlanStream(ctx context.Context, req *PlanRequest, onEvent func(*PlanEvent) error) error {
	desc := &grpc.StreamDesc{StreamName: "RunPlan", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, "/"+ServiceName+"/RunPlan", grpc.CallContentSubtype(codecName))
	if err != nil {
		return fmt.Errorf("rpc: open RunPlan stream: %w", err)
	}
	if err := stream.SendMsg(req); err != nil {
		return fmt.Errorf("rpc: send plan request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("rpc: close send: %w", err)
	}

	for {
		ev := new(PlanEvent)
		if err := stream.RecvMsg(ev); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("rpc: recv plan event: %w", err)
		}
		if err := onEvent(ev); err != nil {
			return err
		}
	}
}
