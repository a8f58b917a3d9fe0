package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/danmuck/dockctl/internal/protocol"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog/log"
)

// engineAPI is the subset of the Docker SDK client the driver uses.
type engineAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImageList(ctx context.Context, options types.ImageListOptions) ([]types.ImageSummary, error)
	ImagePull(ctx context.Context, ref string, options types.ImagePullOptions) (io.ReadCloser, error)
	ContainerList(ctx context.Context, options types.ContainerListOptions) ([]types.Container, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	Close() error
}

// EngineBackend talks to the Docker Engine API.
type EngineBackend struct {
	api         engineAPI
	stopTimeout int
	closed      atomic.Bool
}

// NewEngineBackend builds an SDK client from cfg. It does not contact the daemon.
func NewEngineBackend(cfg Config) (*EngineBackend, error) {
	cfg = cfg.withDefaults()
	opts := []client.Opt{client.FromEnv}
	if host := strings.TrimSpace(cfg.DockerHost); host != "" {
		opts = append(opts, client.WithHost(host))
	}
	if version := strings.TrimSpace(cfg.APIVersion); version != "" {
		opts = append(opts, client.WithVersion(version))
	} else {
		opts = append(opts, client.WithAPIVersionNegotiation())
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("backend: docker client: %w", err)
	}
	return newEngineBackend(cli, cfg), nil
}

func newEngineBackend(api engineAPI, cfg Config) *EngineBackend {
	cfg = cfg.withDefaults()
	return &EngineBackend{api: api, stopTimeout: int(cfg.StopTimeout.Seconds())}
}

func (b *EngineBackend) Ping(ctx context.Context) error {
	ping, err := b.api.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping docker daemon: %w", err)
	}
	log.Debug().Str("api_version", ping.APIVersion).Str("os_type", ping.OSType).Msg("backend.engine ping ok")
	return nil
}

func (b *EngineBackend) ListImages(ctx context.Context) ([]protocol.ImageInfo, error) {
	images, err := b.api.ImageList(ctx, types.ImageListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	out := make([]protocol.ImageInfo, 0, len(images))
	for _, img := range images {
		out = append(out, flattenImage(img.ID, img.RepoTags, img.Size, img.Created)...)
	}
	return out, nil
}

type pullProgress struct {
	Status   string `json:"status"`
	Progress string `json:"progress"`
	Error    string `json:"error"`
}

func (b *EngineBackend) PullImage(ctx context.Context, name string) (string, error) {
	log.Info().Str("image", name).Msg("backend.engine pull start")
	if err := b.pull(ctx, name); err != nil {
		log.Warn().Str("image", name).Err(err).Msg("backend.engine pull incomplete")
		return pullSoftResult, nil
	}
	return fmt.Sprintf(pullSuccessFmt, name), nil
}

func (b *EngineBackend) pull(ctx context.Context, name string) error {
	rc, err := b.api.ImagePull(ctx, name, types.ImagePullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()
	dec := json.NewDecoder(rc)
	for {
		var msg pullProgress
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if msg.Error != "" {
			return errors.New(msg.Error)
		}
		if msg.Status != "" {
			log.Debug().Str("image", name).Str("status", msg.Status).Str("progress", msg.Progress).Msg("backend.engine pull")
		}
	}
}

func (b *EngineBackend) ListContainers(ctx context.Context, all bool) ([]protocol.ContainerInfo, error) {
	containers, err := b.api.ContainerList(ctx, types.ContainerListOptions{All: all})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	out := make([]protocol.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		out = append(out, protocol.ContainerInfo{
			ID:      c.ID,
			Name:    containerName(c.Names),
			Image:   c.Image,
			State:   c.State,
			Status:  c.Status,
			Created: c.Created,
		})
	}
	return out, nil
}

func (b *EngineBackend) CreateContainer(ctx context.Context, image, name string) (string, error) {
	resp, err := b.api.ContainerCreate(ctx, &container.Config{Image: image}, nil, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	for _, warning := range resp.Warnings {
		log.Warn().Str("container", resp.ID).Str("warning", warning).Msg("backend.engine create")
	}
	return resp.ID, nil
}

func (b *EngineBackend) StartContainer(ctx context.Context, id string) error {
	if err := b.api.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	return nil
}

func (b *EngineBackend) StopContainer(ctx context.Context, id string) error {
	timeout := b.stopTimeout
	if err := b.api.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("stop container: %w", err)
	}
	return nil
}

func (b *EngineBackend) DeleteContainer(ctx context.Context, id string) error {
	if err := b.api.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("delete container: %w", err)
	}
	return nil
}

func (b *EngineBackend) ContainerStatus(ctx context.Context, id string) (string, error) {
	info, err := b.api.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get container status: %w", err)
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return "", fmt.Errorf("get container status: %s: no state reported", id)
	}
	return statusSummary(id, info.State.Status, info.State.Running), nil
}

func (b *EngineBackend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.api.Close()
}
