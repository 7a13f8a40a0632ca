package drafts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andrifirman/go-print-assets/internal/assets"
)

// Registry holds ephemeral draft handles with a fixed TTL. Entries are
// immutable after Register; a background sweep evicts aged-out entries.
// Readers either see a whole live entry or nothing.
type Registry struct {
	ttl   time.Duration
	sweep time.Duration
	now   func() time.Time
	log   *slog.Logger

	mu      sync.RWMutex
	entries map[string]assets.DraftHandle

	stop chan struct{}
	done chan struct{}
}

type Option func(*Registry)

// WithClock injects the time source, for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

func New(ttl, sweepInterval time.Duration, opts ...Option) *Registry {
	r := &Registry{
		ttl:     ttl,
		sweep:   sweepInterval,
		now:     time.Now,
		log:     slog.Default(),
		entries: map[string]assets.DraftHandle{},
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register stores a new handle for source and returns its id. Always succeeds.
func (r *Registry) Register(source assets.Ref, vis assets.Visibility) string {
	h := assets.DraftHandle{
		ID:         uuid.NewString(),
		Source:     source,
		Visibility: vis,
		CreatedAt:  r.now().UTC(),
	}
	r.mu.Lock()
	r.entries[h.ID] = h
	r.mu.Unlock()
	return h.ID
}

// Resolve returns the handle while it is younger than the TTL. An absent or
// aged-out handle fails with assets.ErrExpired; stale data is never returned.
func (r *Registry) Resolve(id string) (assets.DraftHandle, error) {
	r.mu.RLock()
	h, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok || r.now().Sub(h.CreatedAt) >= r.ttl {
		return assets.DraftHandle{}, fmt.Errorf("draft %s: %w", id, assets.ErrExpired)
	}
	return h, nil
}

// Len reports the current number of live-or-expired entries (pre-sweep).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Start runs the eviction sweep until Stop is called or ctx ends.
func (r *Registry) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		t := time.NewTicker(r.sweep)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if n := r.evictExpired(); n > 0 {
					r.log.Info("draft sweep", "evicted", n, "remaining", r.Len())
				}
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sweep and waits for it to exit. Safe to call once.
func (r *Registry) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Registry) evictExpired() int {
	cutoff := r.now().Add(-r.ttl)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, h := range r.entries {
		if !h.CreatedAt.After(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	return n
}
