package out

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	connectivityout "tether/internal/modules/connectivity/port/out"
	"tether/internal/platform/docrpc"
)

// GRPCHealthProber asks the remote document service for its health status
// and times the round trip.
type GRPCHealthProber struct {
	client healthpb.HealthClient
}

func NewGRPCHealthProber(conn grpc.ClientConnInterface) connectivityout.Prober {
	return &GRPCHealthProber{client: healthpb.NewHealthClient(conn)}
}

func (p *GRPCHealthProber) Probe(ctx context.Context) (time.Duration, error) {
	started := time.Now()
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: docrpc.ServiceName})
	if err != nil {
		return 0, fmt.Errorf("health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return 0, fmt.Errorf("remote store is %s", resp.GetStatus())
	}
	return time.Since(started), nil
}
