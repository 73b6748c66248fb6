package maskflow

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Get once the pool has been closed
var ErrPoolClosed = errors.New("model pool closed")

// Pool holds several instances of the same Model so frames can be inferred
// in parallel, one instance per worker
type Pool struct {
	// pool of models
	models chan *Model
	// size of pool
	size  int
	close sync.Once
	// mu guards closed against Return racing Close
	mu     sync.Mutex
	closed bool
}

// NewPool loads size instances of the model bundle in dir
func NewPool(size int, dir string, open Opener) (*Pool, error) {

	if size < 1 {
		size = 1
	}

	p := &Pool{
		models: make(chan *Model, size),
		size:   size,
	}

	for i := 0; i < size; i++ {
		m, err := LoadModel(dir, open)

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(m)
	}

	return p, nil
}

// NewPoolFromModels wraps already loaded models in a pool
func NewPoolFromModels(models ...*Model) *Pool {
	p := &Pool{
		models: make(chan *Model, len(models)),
		size:   len(models),
	}

	for _, m := range models {
		p.Return(m)
	}

	return p
}

// Get takes a model from the pool, waiting until one is free or ctx is done
func (p *Pool) Get(ctx context.Context) (*Model, error) {
	select {
	case m, ok := <-p.models:
		if !ok {
			return nil, ErrPoolClosed
		}
		return m, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Return a model to the pool.  Models returned after Close are closed
// instead.
func (p *Pool) Return(m *Model) {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = m.Close()
		return
	}

	select {
	case p.models <- m:
	default:
		// pool is full
	}
}

// Size returns the number of models in the pool
func (p *Pool) Size() int {
	return p.size
}

// Close the pool and all models in it
func (p *Pool) Close() {
	p.close.Do(func() {
		p.mu.Lock()
		p.closed = true
		// close channel
		close(p.models)
		p.mu.Unlock()

		// close all models
		for next := range p.models {
			_ = next.Close()
		}
	})
}
