package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/dockctl/internal/protocol"
	"github.com/danmuck/dockctl/internal/tools"
	units "github.com/docker/go-units"
	"github.com/rs/zerolog/log"
)

// cliCreatedLayout matches the CreatedAt column rendered by the docker CLI.
const cliCreatedLayout = "2006-01-02 15:04:05 -0700 MST"

// CLIBackend drives the docker binary through a CommandRunner.
type CLIBackend struct {
	binary      string
	host        string
	stopTimeout time.Duration
	runner      tools.CommandRunner
}

// NewCLIBackend constructs a CLI driver. A nil runner uses tools.ExecRunner.
func NewCLIBackend(cfg Config, runner tools.CommandRunner) *CLIBackend {
	cfg = cfg.withDefaults()
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &CLIBackend{
		binary:      cfg.DockerBinary,
		host:        strings.TrimSpace(cfg.DockerHost),
		stopTimeout: cfg.StopTimeout,
		runner:      runner,
	}
}

type cliImage struct {
	ID         string `json:"ID"`
	Repository string `json:"Repository"`
	Tag        string `json:"Tag"`
	Size       string `json:"Size"`
	CreatedAt  string `json:"CreatedAt"`
}

type cliContainer struct {
	ID        string `json:"ID"`
	Names     string `json:"Names"`
	Image     string `json:"Image"`
	State     string `json:"State"`
	Status    string `json:"Status"`
	CreatedAt string `json:"CreatedAt"`
}

type cliState struct {
	Status  string `json:"Status"`
	Running bool   `json:"Running"`
}

func (b *CLIBackend) Ping(ctx context.Context) error {
	out, err := b.exec(ctx, "version", "--format", "{{.Server.Version}}")
	if err != nil {
		return fmt.Errorf("ping docker daemon: %w", err)
	}
	log.Debug().Str("server_version", strings.TrimSpace(string(out))).Msg("backend.cli ping ok")
	return nil
}

func (b *CLIBackend) ListImages(ctx context.Context) ([]protocol.ImageInfo, error) {
	out, err := b.exec(ctx, "images", "--no-trunc", "--format", "{{json .}}")
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	images := []protocol.ImageInfo{}
	err = eachJSONLine(out, func(line []byte) error {
		var row cliImage
		if err := json.Unmarshal(line, &row); err != nil {
			return err
		}
		size, _ := units.FromHumanSize(row.Size)
		repo, tag := row.Repository, row.Tag
		if repo == "" {
			repo = noneRef
		}
		if tag == "" {
			tag = noneRef
		}
		images = append(images, protocol.ImageInfo{
			ID:         trimImageID(row.ID),
			Repository: repo,
			Tag:        tag,
			Size:       size,
			Created:    parseCLICreated(row.CreatedAt),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list images: decode: %w", err)
	}
	return images, nil
}

func (b *CLIBackend) PullImage(ctx context.Context, name string) (string, error) {
	log.Info().Str("image", name).Msg("backend.cli pull start")
	if _, err := b.exec(ctx, "pull", "--quiet", name); err != nil {
		log.Warn().Str("image", name).Err(err).Msg("backend.cli pull incomplete")
		return pullSoftResult, nil
	}
	return fmt.Sprintf(pullSuccessFmt, name), nil
}

func (b *CLIBackend) ListContainers(ctx context.Context, all bool) ([]protocol.ContainerInfo, error) {
	args := []string{"ps", "--no-trunc", "--format", "{{json .}}"}
	if all {
		args = append(args, "--all")
	}
	out, err := b.exec(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	containers := []protocol.ContainerInfo{}
	err = eachJSONLine(out, func(line []byte) error {
		var row cliContainer
		if err := json.Unmarshal(line, &row); err != nil {
			return err
		}
		containers = append(containers, protocol.ContainerInfo{
			ID:      row.ID,
			Name:    containerName(strings.Split(row.Names, ",")),
			Image:   row.Image,
			State:   row.State,
			Status:  row.Status,
			Created: parseCLICreated(row.CreatedAt),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: decode: %w", err)
	}
	return containers, nil
}

func (b *CLIBackend) CreateContainer(ctx context.Context, image, name string) (string, error) {
	out, err := b.exec(ctx, "create", "--name", name, image)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	id := lastLine(out)
	if id == "" {
		return "", fmt.Errorf("create container: %w: empty container id", ErrCommandFailed)
	}
	return id, nil
}

func (b *CLIBackend) StartContainer(ctx context.Context, id string) error {
	if _, err := b.exec(ctx, "start", id); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	return nil
}

func (b *CLIBackend) StopContainer(ctx context.Context, id string) error {
	secs := strconv.Itoa(int(b.stopTimeout.Seconds()))
	if _, err := b.exec(ctx, "stop", "--time", secs, id); err != nil {
		return fmt.Errorf("stop container: %w", err)
	}
	return nil
}

func (b *CLIBackend) DeleteContainer(ctx context.Context, id string) error {
	if _, err := b.exec(ctx, "rm", "--force", id); err != nil {
		return fmt.Errorf("delete container: %w", err)
	}
	return nil
}

func (b *CLIBackend) ContainerStatus(ctx context.Context, id string) (string, error) {
	out, err := b.exec(ctx, "inspect", "--type", "container", "--format", "{{json .State}}", id)
	if err != nil {
		return "", fmt.Errorf("get container status: %w", err)
	}
	var state cliState
	if err := json.Unmarshal(bytes.TrimSpace(out), &state); err != nil {
		return "", fmt.Errorf("get container status: decode: %w", err)
	}
	return statusSummary(id, state.Status, state.Running), nil
}

func (b *CLIBackend) Close() error {
	return nil
}

func (b *CLIBackend) exec(ctx context.Context, args ...string) ([]byte, error) {
	if b.host != "" {
		args = append([]string{"--host", b.host}, args...)
	}
	stdout, stderr, code, err := b.runner.Run(ctx, b.binary, args...)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		log.Debug().Str("binary", b.binary).Strs("args", args).Int32("exit_code", code).Msg("backend.cli command failed")
		return stdout, fmt.Errorf("%w: %s", ErrCommandFailed, msg)
	}
	return stdout, nil
}

func eachJSONLine(out []byte, fn func([]byte) error) error {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func parseCLICreated(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	ts, err := time.Parse(cliCreatedLayout, raw)
	if err != nil {
		return 0
	}
	return ts.Unix()
}
