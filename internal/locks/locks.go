// Package locks provides per-project write leases. Mutations to a project's
// interview state or snippet set run under its lease so that concurrent
// writers serialize instead of interleaving.
package locks

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Registry hands out one lease per project id. Leases are created lazily and
// kept for the life of the registry; a project id is a few bytes, so no
// eviction is needed at this scale.
type Registry struct {
	mu     sync.Mutex
	leases map[string]*semaphore.Weighted
}

func NewRegistry() *Registry {
	return &Registry{leases: make(map[string]*semaphore.Weighted)}
}

func (r *Registry) lease(projectID string) *semaphore.Weighted {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leases[projectID]
	if !ok {
		l = semaphore.NewWeighted(1)
		r.leases[projectID] = l
	}
	return l
}

// Acquire blocks until the project's lease is free or ctx is done. The
// returned release function must be called exactly once.
func (r *Registry) Acquire(ctx context.Context, projectID string) (release func(), err error) {
	l := r.lease(projectID)
	if err := l.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { l.Release(1) }, nil
}

// TryAcquire acquires the project's lease without blocking. Returns false
// when another writer holds it.
func (r *Registry) TryAcquire(projectID string) (release func(), ok bool) {
	l := r.lease(projectID)
	if !l.TryAcquire(1) {
		return nil, false
	}
	return func() { l.Release(1) }, true
}
