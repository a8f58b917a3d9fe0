package broker

import (
	"time"

	"github.com/danmuck/dockctl/internal/protocol/session"
)

const (
	DefaultPort         = 9999
	DefaultListenAddr   = ":9999"
	DefaultDrainTimeout = 5 * time.Second
)

// ServiceConfig configures the broker acceptor.
// Empty StatusAddr disables the HTTP status endpoint.
type ServiceConfig struct {
	ListenAddr        string
	StatusAddr        string
	StatusCORSOrigins []string
	DrainTimeout      time.Duration
	Session           session.Config
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:   DefaultListenAddr,
		DrainTimeout: DefaultDrainTimeout,
		Session:      session.DefaultConfig(),
	}
}
