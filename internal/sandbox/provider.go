package sandbox

import (
	"fmt"

	"github.com/kandev/agentrun/internal/common/config"
	"github.com/kandev/agentrun/internal/common/logger"
)

// Provide builds a Pool backed by the configured execution backend
// ("process" or "docker").
func Provide(cfg config.SandboxConfig, log *logger.Logger) (*Pool, error) {
	var backend Backend
	switch cfg.Backend {
	case "", "process":
		backend = NewProcessBackend(cfg.NodeBin, cfg.RunAsUID, cfg.RunAsGID, log)
	case "docker":
		b, err := NewDockerBackend(cfg.DockerHost, cfg.DockerImage, log)
		if err != nil {
			return nil, fmt.Errorf("sandbox: docker backend: %w", err)
		}
		backend = b
	default:
		return nil, fmt.Errorf("sandbox: unknown backend %q", cfg.Backend)
	}
	return NewPool(cfg, backend, log), nil
}
