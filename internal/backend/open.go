package backend

import (
	"context"
	"fmt"

	"github.com/danmuck/dockctl/internal/tools"
	"github.com/rs/zerolog/log"
)

// Open builds the configured driver and pings the runtime once. A failed
// ping closes the driver and returns the error.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	cfg = cfg.withDefaults()
	var b Backend
	switch cfg.Driver {
	case DriverEngine:
		engine, err := NewEngineBackend(cfg)
		if err != nil {
			return nil, err
		}
		b = engine
	case DriverCLI:
		b = NewCLIBackend(cfg, tools.ExecRunner{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err := b.Ping(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("backend: connect %s driver: %w", cfg.Driver, err)
	}
	log.Info().Str("driver", cfg.Driver).Str("docker_host", hostLabel(cfg.DockerHost)).Msg("backend.Open connected to docker daemon")
	return b, nil
}

func hostLabel(host string) string {
	if host == "" {
		return "env"
	}
	return host
}
