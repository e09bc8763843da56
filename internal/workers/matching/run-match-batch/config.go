// internal/workers/matching/run-match-batch/config.go
package runmatchbatch

import (
	"time"

	"match-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// MaxReportedErrors caps the pair errors copied into process variables.
	MaxReportedErrors int
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Config{
		Timeout:           timeout,
		MaxReportedErrors: 50,
	}
}
