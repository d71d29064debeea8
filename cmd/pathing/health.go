package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/pathing/internal/serialmux"
)

// robotService is the health service name reporting the robot link.
const robotService = "pathing.robot"

// newHealthServer registers the standard gRPC health service. The overall
// status is SERVING; robotService is NOT_SERVING while the link is disabled.
func newHealthServer(link serialmux.SerialMuxInterface) (*grpc.Server, *health.Server) {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	robot := healthpb.HealthCheckResponse_SERVING
	if _, disabled := link.(*serialmux.DisabledSerialMux); disabled || link == nil {
		robot = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus(robotService, robot)

	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// serveHealth serves the health service on addr until ctx is done.
func serveHealth(ctx context.Context, addr string, link serialmux.SerialMuxInterface) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return serveHealthOn(ctx, lis, link)
}

func serveHealthOn(ctx context.Context, lis net.Listener, link serialmux.SerialMuxInterface) error {
	s, hs := newHealthServer(link)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("gRPC health server listening on %s", lis.Addr())
		errCh <- s.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	hs.Shutdown()
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		s.Stop()
	}
	return nil
}
