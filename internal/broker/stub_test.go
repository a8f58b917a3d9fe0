package broker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/danmuck/dockctl/internal/protocol"
)

// stubBackend records calls and lets tests block or fail individual methods.
type stubBackend struct {
	mu    sync.Mutex
	calls map[string]int

	images     []protocol.ImageInfo
	containers []protocol.ContainerInfo
	failWith   error
	panicWith  any

	// imagesGate, when set, blocks ListImages until closed or ctx ends.
	imagesGate chan struct{}
	imagesIn   chan struct{}

	closed atomic.Int32
}

func newStubBackend() *stubBackend {
	return &stubBackend{calls: make(map[string]int)}
}

func (b *stubBackend) record(name string) {
	b.mu.Lock()
	b.calls[name]++
	b.mu.Unlock()
}

func (b *stubBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *stubBackend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

func (b *stubBackend) fail() error {
	if b.panicWith != nil {
		panic(b.panicWith)
	}
	return b.failWith
}

func (b *stubBackend) Ping(ctx context.Context) error {
	b.record("Ping")
	return b.fail()
}

func (b *stubBackend) ListImages(ctx context.Context) ([]protocol.ImageInfo, error) {
	b.record("ListImages")
	if b.imagesIn != nil {
		b.imagesIn <- struct{}{}
	}
	if b.imagesGate != nil {
		select {
		case <-b.imagesGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := b.fail(); err != nil {
		return nil, err
	}
	return b.images, nil
}

func (b *stubBackend) PullImage(ctx context.Context, name string) (string, error) {
	b.record("PullImage")
	if err := b.fail(); err != nil {
		return "", err
	}
	return "Successfully pulled image: " + name, nil
}

func (b *stubBackend) ListContainers(ctx context.Context, all bool) ([]protocol.ContainerInfo, error) {
	b.record("ListContainers")
	if err := b.fail(); err != nil {
		return nil, err
	}
	return b.containers, nil
}

func (b *stubBackend) CreateContainer(ctx context.Context, image, name string) (string, error) {
	b.record("CreateContainer")
	if err := b.fail(); err != nil {
		return "", err
	}
	return "id-" + name, nil
}

func (b *stubBackend) StartContainer(ctx context.Context, id string) error {
	b.record("StartContainer")
	return b.fail()
}

func (b *stubBackend) StopContainer(ctx context.Context, id string) error {
	b.record("StopContainer")
	return b.fail()
}

func (b *stubBackend) DeleteContainer(ctx context.Context, id string) error {
	b.record("DeleteContainer")
	return b.fail()
}

func (b *stubBackend) ContainerStatus(ctx context.Context, id string) (string, error) {
	b.record("ContainerStatus")
	if err := b.fail(); err != nil {
		return "", err
	}
	return "Container " + id + " - State: running, Running: true, Status: running", nil
}

func (b *stubBackend) Close() error {
	b.closed.Add(1)
	return nil
}

var errNoSuchContainer = errors.New("No such container: missing")
