package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/dockctl/internal/protocol"
)

const (
	DriverEngine = "engine"
	DriverCLI    = "cli"

	DefaultDockerBinary = "docker"
	DefaultStopTimeout  = 10 * time.Second

	noneRef    = "<none>"
	latestTag  = "latest"
	unnamed    = "unnamed"
	shortIDLen = 12

	pullSuccessFmt = "Successfully pulled image: %s"
	pullSoftResult = "Pull completed. Use 'images' command to verify."
)

var (
	ErrUnknownDriver = errors.New("backend: unknown driver")
	ErrCommandFailed = errors.New("backend: docker command failed")
	ErrClosed        = errors.New("backend: closed")
)

// Backend is the runtime handle shared by all sessions.
type Backend interface {
	Ping(ctx context.Context) error
	ListImages(ctx context.Context) ([]protocol.ImageInfo, error)
	// PullImage returns a human-readable outcome. A pull that fails to
	// complete still returns a soft success message.
	PullImage(ctx context.Context, name string) (string, error)
	ListContainers(ctx context.Context, all bool) ([]protocol.ContainerInfo, error)
	CreateContainer(ctx context.Context, image, name string) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	DeleteContainer(ctx context.Context, id string) error
	ContainerStatus(ctx context.Context, id string) (string, error)
	Close() error
}

// Config selects and configures a driver.
// Empty DockerHost defers to DOCKER_HOST or the local daemon socket.
type Config struct {
	Driver       string
	DockerHost   string
	APIVersion   string
	DockerBinary string
	StopTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Driver:       DriverEngine,
		DockerBinary: DefaultDockerBinary,
		StopTimeout:  DefaultStopTimeout,
	}
}

func (c Config) withDefaults() Config {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = DriverEngine
	}
	if strings.TrimSpace(c.DockerBinary) == "" {
		c.DockerBinary = DefaultDockerBinary
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	return c
}

// splitRepoTag splits "repo[:tag]" on the last colon after the final path
// separator so registry ports stay in the repository.
func splitRepoTag(ref string) (string, string) {
	if ref == "" {
		return noneRef, noneRef
	}
	slash := strings.LastIndex(ref, "/")
	colon := strings.LastIndex(ref, ":")
	if colon > slash {
		return ref[:colon], ref[colon+1:]
	}
	return ref, latestTag
}

func trimImageID(id string) string {
	return strings.TrimPrefix(id, "sha256:")
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func containerName(names []string) string {
	for _, name := range names {
		if trimmed := strings.TrimPrefix(strings.TrimSpace(name), "/"); trimmed != "" {
			return trimmed
		}
	}
	return unnamed
}

func statusSummary(id, status string, running bool) string {
	return fmt.Sprintf("Container %s - State: %s, Running: %t, Status: %s", shortID(id), status, running, status)
}

// flattenImage yields one record per repo tag, or a single <none> record.
func flattenImage(id string, repoTags []string, size, created int64) []protocol.ImageInfo {
	id = trimImageID(id)
	if len(repoTags) == 0 {
		return []protocol.ImageInfo{{ID: id, Repository: noneRef, Tag: noneRef, Size: size, Created: created}}
	}
	out := make([]protocol.ImageInfo, 0, len(repoTags))
	for _, ref := range repoTags {
		repo, tag := splitRepoTag(ref)
		out = append(out, protocol.ImageInfo{ID: id, Repository: repo, Tag: tag, Size: size, Created: created})
	}
	return out
}
