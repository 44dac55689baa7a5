package rpc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"

	"github.com/naojsoft/qplan-core/observability"
)

// StreamServerInterceptor traces and logs RunPlan calls -- the planning
// RPC is the only streaming method this service exposes, so one
// interceptor is enough to cover it.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		tracer := observability.Tracer(info.FullMethod)
		ctx, span := tracer.Start(ctx, info.FullMethod)
		defer span.End()

		start := time.Now()
		err := handler(srv, &tracedServerStream{ServerStream: ss, ctx: ctx})
		elapsed := time.Since(start)

		span.SetAttributes(attribute.String("rpc.duration", elapsed.String()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("rpc stream failed", "method", info.FullMethod, "duration", elapsed, "error", err)
		} else {
			span.SetStatus(codes.Ok, "OK")
			logger.Info("rpc stream completed", "method", info.FullMethod, "duration", elapsed)
		}
		return err
	}
}

// tracedServerStream overrides Context so downstream handlers observe the
// span-carrying context the interceptor created.
type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context {
	return s.ctx
}
