package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/dockctl/internal/backend"
	"github.com/danmuck/dockctl/internal/broker"
	pelletier "github.com/pelletier/go-toml/v2"
)

// fileConfig is the brokerctl config.toml key mapping.
type fileConfig struct {
	Addr              string   `toml:"addr"`
	StatusAddr        string   `toml:"status_addr"`
	StatusCORSOrigins []string `toml:"status_cors_origins"`
	Backend           string   `toml:"backend"`
	DockerHost        string   `toml:"docker_host"`
	DockerAPIVersion  string   `toml:"docker_api_version"`
	DockerBinary      string   `toml:"docker_binary"`
	DrainTimeout      string   `toml:"drain_timeout"`
	ReadTimeout       string   `toml:"read_timeout"`
	WriteTimeout      string   `toml:"write_timeout"`
	MaxLineBytes      int      `toml:"max_line_bytes"`
	StopTimeout       string   `toml:"stop_timeout"`
}

// ServerConfig is the resolved brokerctl runtime configuration.
type ServerConfig struct {
	Broker  broker.ServiceConfig
	Backend backend.Config
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Broker:  broker.DefaultServiceConfig(),
		Backend: backend.DefaultConfig(),
	}
}

// LoadServerConfig decodes path and overlays only the keys it defines onto
// DefaultServerConfig.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("load server config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ServerConfig{}, fmt.Errorf("load server config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		cfg.Broker.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("status_addr") {
		cfg.Broker.StatusAddr = strings.TrimSpace(raw.StatusAddr)
	}
	if meta.IsDefined("status_cors_origins") {
		cfg.Broker.StatusCORSOrigins = raw.StatusCORSOrigins
	}
	if meta.IsDefined("backend") {
		cfg.Backend.Driver = strings.ToLower(strings.TrimSpace(raw.Backend))
	}
	if meta.IsDefined("docker_host") {
		cfg.Backend.DockerHost = strings.TrimSpace(raw.DockerHost)
	}
	if meta.IsDefined("docker_api_version") {
		cfg.Backend.APIVersion = strings.TrimSpace(raw.DockerAPIVersion)
	}
	if meta.IsDefined("docker_binary") {
		cfg.Backend.DockerBinary = strings.TrimSpace(raw.DockerBinary)
	}
	if meta.IsDefined("max_line_bytes") {
		cfg.Broker.Session.Limits.MaxLineBytes = raw.MaxLineBytes
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"drain_timeout", raw.DrainTimeout, &cfg.Broker.DrainTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.Broker.Session.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Broker.Session.WriteTimeout},
		{"stop_timeout", raw.StopTimeout, &cfg.Backend.StopTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return ServerConfig{}, fmt.Errorf("load server config: %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Broker.ListenAddr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if _, _, err := net.SplitHostPort(cfg.Broker.ListenAddr); err != nil {
		return fmt.Errorf("server config invalid addr %q: %w", cfg.Broker.ListenAddr, err)
	}
	if addr := strings.TrimSpace(cfg.Broker.StatusAddr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("server config invalid status_addr %q: %w", addr, err)
		}
	}
	switch cfg.Backend.Driver {
	case backend.DriverEngine, backend.DriverCLI:
	default:
		return fmt.Errorf("server config unknown backend %q (expected %s or %s)", cfg.Backend.Driver, backend.DriverEngine, backend.DriverCLI)
	}
	if cfg.Broker.DrainTimeout <= 0 {
		return fmt.Errorf("server config drain_timeout must be positive")
	}
	if cfg.Broker.Session.ReadTimeout < 0 || cfg.Broker.Session.WriteTimeout < 0 {
		return fmt.Errorf("server config timeouts must not be negative")
	}
	if cfg.Broker.Session.Limits.MaxLineBytes <= 0 {
		return fmt.Errorf("server config max_line_bytes must be positive")
	}
	if cfg.Backend.StopTimeout <= 0 {
		return fmt.Errorf("server config stop_timeout must be positive")
	}
	return nil
}

// Render encodes cfg back into config.toml form.
func Render(cfg ServerConfig) (string, error) {
	raw := fileConfig{
		Addr:              cfg.Broker.ListenAddr,
		StatusAddr:        cfg.Broker.StatusAddr,
		StatusCORSOrigins: cfg.Broker.StatusCORSOrigins,
		Backend:           cfg.Backend.Driver,
		DockerHost:        cfg.Backend.DockerHost,
		DockerAPIVersion:  cfg.Backend.APIVersion,
		DockerBinary:      cfg.Backend.DockerBinary,
		DrainTimeout:      cfg.Broker.DrainTimeout.String(),
		ReadTimeout:       cfg.Broker.Session.ReadTimeout.String(),
		WriteTimeout:      cfg.Broker.Session.WriteTimeout.String(),
		MaxLineBytes:      cfg.Broker.Session.Limits.MaxLineBytes,
		StopTimeout:       cfg.Backend.StopTimeout.String(),
	}
	if raw.StatusCORSOrigins == nil {
		raw.StatusCORSOrigins = []string{}
	}
	out, err := pelletier.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("render server config: %w", err)
	}
	return string(out), nil
}

// ParsePort parses a CLI port argument. ok is false when raw is not a port
// in 1-65535, in which case fallback is returned.
func ParsePort(raw string, fallback int) (port int, ok bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 || n > 65535 {
		return fallback, false
	}
	return n, true
}
