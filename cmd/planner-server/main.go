// planner-server bootstraps the planning service: a gRPC PlannerService
// backed by the scheduler core, with the HTTP/JSON gateway in front of
// it and an optional Redis response cache and executed-OB store.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/naojsoft/qplan-core/cache"
	"github.com/naojsoft/qplan-core/ephemeris"
	"github.com/naojsoft/qplan-core/gateway"
	"github.com/naojsoft/qplan-core/log"
	"github.com/naojsoft/qplan-core/observability"
	"github.com/naojsoft/qplan-core/persistence"
	"github.com/naojsoft/qplan-core/rpc"
)

var logger = log.Logger()

func main() {
	var (
		grpcPort     = flag.String("grpc-port", "50051", "gRPC listen port")
		httpPort     = flag.String("http-port", "8080", "HTTP gateway port")
		otlpEndpoint = flag.String("otlp-endpoint", "", "OTLP collector address (empty: stdout spans)")
		redisAddr    = flag.String("redis-addr", "localhost:6379", "Redis server address")
		redisDB      = flag.Int("redis-db", 0, "Redis database number")
		enableCache  = flag.Bool("enable-cache", true, "cache identical plan requests in Redis")
		cacheTTL     = flag.Duration("cache-ttl", 30*time.Minute, "plan cache TTL")
	)
	flag.Parse()

	if env := os.Getenv("REDIS_ADDR"); env != "" {
		*redisAddr = env
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := observability.Setup(ctx, observability.Config{OTLPEndpoint: *otlpEndpoint})
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	engine, err := ephemeris.NewEngine(ephemeris.Subaru(), 0, 0)
	if err != nil {
		logger.Error("failed to build ephemeris engine", "error", err)
		os.Exit(1)
	}

	// The executed-OB store is optional; a nil Store yields an empty
	// history and the planner runs without feedback.
	store, _ := persistence.Connect(ctx, *redisAddr, redisPassword, *redisDB, 10*time.Second)
	defer store.Close()

	listener, err := net.Listen("tcp", ":"+*grpcPort)
	if err != nil {
		logger.Error("failed to listen", "port", *grpcPort, "error", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(observability.NewServerHandler()),
		grpc.ChainStreamInterceptor(rpc.StreamServerInterceptor()),
	)
	rpc.RegisterPlannerServer(grpcServer, rpc.NewServer(engine, store))

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("planner gRPC service listening", "port", *grpcPort)
		srvErr <- grpcServer.Serve(listener)
	}()

	var gw *gateway.GatewayServer
	if *enableCache {
		if planCache, err := cache.NewRedisCache(*redisAddr, redisPassword, *redisDB, *cacheTTL); err != nil {
			logger.Warn("plan cache unavailable, gateway runs uncached", "error", err)
			gw = gateway.NewGatewayServer("localhost:"+*grpcPort, *httpPort)
		} else {
			gw = gateway.NewGatewayServerWithCache("localhost:"+*grpcPort, *httpPort, planCache)
		}
	} else {
		gw = gateway.NewGatewayServer("localhost:"+*grpcPort, *httpPort)
	}

	gwErr := make(chan error, 1)
	go func() {
		gwErr <- gw.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-srvErr:
		logger.Error("gRPC server stopped", "error", err)
	case err := <-gwErr:
		logger.Error("HTTP gateway stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = gw.Stop(shutdownCtx)
	grpcServer.GracefulStop()
}
