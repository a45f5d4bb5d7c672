package domain

type HealthStatus struct {
	Status      string          `json:"status"`
	Timestamp   string          `json:"timestamp"`
	Uptime      float64         `json:"uptime"` // seconds
	Environment string          `json:"environment"`
	Version     string          `json:"version"`
	Deployment  *DeploymentInfo `json:"deployment,omitempty"`
	System      *SystemInfo     `json:"system,omitempty"`
}

type DeploymentInfo struct {
	Platform string `json:"platform,omitempty"`
	Region   string `json:"region,omitempty"`
	Hostname string `json:"hostname,omitempty"`
}

type SystemInfo struct {
	GoVersion      string `json:"go_version"`
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
	NumCPU         int    `json:"num_cpu"`
}
