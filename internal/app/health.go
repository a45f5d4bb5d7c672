package app

import (
	"os"
	"runtime"
	"time"

	"github.com/euryopa/search-restaurant-agent/internal/domain"
)

type HealthService struct {
	env, version     string
	platform, region string
	started          time.Time
	now              func() time.Time
	hostname         func() (string, error)
}

func NewHealthService(env, version, platform, region string) *HealthService {
	return &HealthService{
		env: env, version: version,
		platform: platform, region: region,
		started:  time.Now(),
		now:      time.Now,
		hostname: os.Hostname,
	}
}

// Snapshot reports liveness plus build and runtime details. Deployment is only
// set when a platform or region is configured.
func (s *HealthService) Snapshot() (domain.HealthStatus, error) {
	now := s.now()
	out := domain.HealthStatus{
		Status:      "ok",
		Timestamp:   now.UTC().Format("2006-01-02T15:04:05.000Z"),
		Uptime:      now.Sub(s.started).Seconds(),
		Environment: s.env,
		Version:     s.version,
	}

	if s.platform != "" || s.region != "" {
		host, err := s.hostname()
		if err != nil {
			return domain.HealthStatus{}, err
		}
		out.Deployment = &domain.DeploymentInfo{Platform: s.platform, Region: s.region, Hostname: host}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	out.System = &domain.SystemInfo{
		GoVersion:      runtime.Version(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: ms.HeapAlloc,
		NumCPU:         runtime.NumCPU(),
	}
	return out, nil
}
