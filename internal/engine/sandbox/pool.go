package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voyx/engine/internal/userscript/capability"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrAcquire    = errors.New("sandbox acquisition timeout")
)

// Pool keeps warm runtimes so per-page injection skips VM construction.
// All runtimes in a pool share the same capabilities.
type Pool struct {
	config Config
	caps   capability.Caps
	sink   capability.Sink
	logger *zap.Logger

	runtimes chan *Runtime
	size     int
	mu       sync.RWMutex
	closed   bool
}

// NewPool pre-creates size runtimes.
func NewPool(config Config, caps capability.Caps, sink capability.Sink, logger *zap.Logger, size int) (*Pool, error) {
	if size <= 0 {
		size = 4
	}
	p := &Pool{
		config:   config,
		caps:     caps,
		sink:     sink,
		logger:   logger,
		runtimes: make(chan *Runtime, size),
		size:     size,
	}
	for i := 0; i < size; i++ {
		r, err := New(config, caps, sink, logger)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.runtimes <- r
	}
	return p, nil
}

// Acquire takes a runtime, waiting up to five seconds.
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	select {
	case r := <-p.runtimes:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, ErrAcquire
	}
}

// Release resets the runtime and returns it to the pool. A runtime that
// fails to reset is replaced.
func (p *Pool) Release(r *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return r.Close()
	}

	if err := r.Reset(); err != nil {
		r.Close()
		if fresh, err := New(p.config, p.caps, p.sink, p.logger); err == nil {
			p.runtimes <- fresh
		}
		return err
	}

	select {
	case p.runtimes <- r:
		return nil
	default:
		return r.Close()
	}
}

// Execute runs code on a pooled runtime.
func (p *Pool) Execute(ctx context.Context, scriptName, code string) (*Result, error) {
	r, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(r)
	return r.Execute(ctx, scriptName, code)
}

// Close shuts the pool and every idle runtime.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.runtimes)
	for r := range p.runtimes {
		r.Close()
	}
	return nil
}

// Stats reports pool occupancy.
func (p *Pool) Stats() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return map[string]any{
		"size":      p.size,
		"available": len(p.runtimes),
		"in_use":    p.size - len(p.runtimes),
		"closed":    p.closed,
	}
}
