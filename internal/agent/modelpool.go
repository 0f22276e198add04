package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// ModelContainer is a running instance of a perception-model image (the
// Subprocess execution model for IR-Net, RGB-Net, and Face-Identifier).
type ModelContainer struct {
	ID       string
	Endpoint string // local gRPC dial target bridging into the container
	LastUsed time.Time
}

// ModelPool recycles warm model containers across capture sessions so a
// subprocess-model agent's Enable call doesn't pay a cold container start on
// every signup.
type ModelPool struct {
	mu        sync.Mutex
	image     string
	available []*ModelContainer
	active    map[string]*ModelContainer
	maxIdle   int
}

// NewModelPool creates a pool for a single model image. It does not
// pre-warm: the first Acquire in a cold pool starts a container on demand.
func NewModelPool(image string, maxIdle int) *ModelPool {
	return &ModelPool{image: image, active: make(map[string]*ModelContainer), maxIdle: maxIdle}
}

// Acquire returns a warm container if one is idle, otherwise starts a new
// one.
func (p *ModelPool) Acquire(ctx context.Context) (*ModelContainer, error) {
	p.mu.Lock()
	if n := len(p.available); n > 0 {
		c := p.available[n-1]
		p.available = p.available[:n-1]
		p.active[c.ID] = c
		p.mu.Unlock()
		c.LastUsed = time.Now()
		return c, nil
	}
	p.mu.Unlock()

	c, err := p.start(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.active[c.ID] = c
	p.mu.Unlock()
	return c, nil
}

// Release returns a container to the idle pool, or destroys it if the pool
// is already at its idle capacity.
func (p *ModelPool) Release(ctx context.Context, c *ModelContainer) {
	p.mu.Lock()
	delete(p.active, c.ID)
	if len(p.available) >= p.maxIdle {
		p.mu.Unlock()
		p.destroy(ctx, c)
		return
	}
	p.available = append(p.available, c)
	p.mu.Unlock()
}

func (p *ModelPool) start(ctx context.Context) (*ModelContainer, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("model pool %s: docker client: %w", p.image, err)
	}
	defer cli.Close()

	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image: p.image,
		// The model container exposes a local gRPC control channel that
		// the agent runner dials to score frames; see internal/pb.
		ExposedPorts: nil,
	}, nil, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("model pool %s: create container: %w", p.image, err)
	}
	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("model pool %s: start container: %w", p.image, err)
	}

	slog.Info("model container started", "image", p.image, "container_id", resp.ID)
	return &ModelContainer{ID: resp.ID, Endpoint: "unix:///var/run/orb/" + resp.ID + ".sock", LastUsed: time.Now()}, nil
}

func (p *ModelPool) destroy(ctx context.Context, c *ModelContainer) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		slog.Warn("model pool: docker client for destroy", "error", err)
		return
	}
	defer cli.Close()
	if err := cli.ContainerStop(ctx, c.ID, container.StopOptions{}); err != nil {
		slog.Warn("model container stop failed", "container_id", c.ID, "error", err)
	}
	if err := cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
		slog.Warn("model container remove failed", "container_id", c.ID, "error", err)
	}
}
