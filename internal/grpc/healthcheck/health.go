package healthcheck

import (
	"context"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"linkguard/pkg/logger"
)

// ServiceName is the name the ingestion service reports health under
const ServiceName = "linkguard.v1.IngestionService"

// Monitor keeps the gRPC health service in step with the backing stores
type Monitor struct {
	server   *health.Server
	probes   map[string]func(ctx context.Context) error
	interval time.Duration
	logger   *logger.Logger
}

// NewMonitor creates a new Monitor that re-probes every interval
func NewMonitor(probes map[string]func(ctx context.Context) error, interval time.Duration, log *logger.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	m := &Monitor{
		server:   health.NewServer(),
		probes:   probes,
		interval: interval,
		logger:   log.WithComponent("grpc-health"),
	}
	m.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	return m
}

// Register registers the gRPC health check service
func (m *Monitor) Register(grpcServer *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(grpcServer, m.server)
}

// Run probes on a ticker until ctx is done
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs every probe once, updates the serving status and reports whether all passed
func (m *Monitor) Check(ctx context.Context) bool {
	names := make([]string, 0, len(m.probes))
	for name := range m.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	for _, name := range names {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := m.probes[name](probeCtx)
		cancel()

		if err != nil {
			m.logger.Warn().Err(err).Str("probe", name).Msg("health probe failed")
			healthy = false
		}
	}

	if healthy {
		m.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	} else {
		m.setStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return healthy
}

// Shutdown marks every service NOT_SERVING and ignores later updates
func (m *Monitor) Shutdown() {
	m.server.Shutdown()
}

func (m *Monitor) setStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	m.server.SetServingStatus("", status)
	m.server.SetServingStatus(ServiceName, status)
}
