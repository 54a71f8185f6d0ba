package queue

import (
	"context"
	"maps"
	"sync"

	"github.com/rs/zerolog"
)

// Factory builds the queue for a guild on first use.
type Factory func(guildID string) *Queue

// Registry maps guild ids to queues. Queues are created lazily and never evicted.
type Registry struct {
	mu      sync.Mutex
	queues  map[string]*Queue
	factory Factory
	log     zerolog.Logger
}

func NewRegistry(factory Factory, log zerolog.Logger) *Registry {
	return &Registry{
		queues:  make(map[string]*Queue),
		factory: factory,
		log:     log,
	}
}

// Get returns the guild's queue, creating it if needed.
func (r *Registry) Get(guildID string) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[guildID]; ok {
		return q
	}
	q := r.factory(guildID)
	r.queues[guildID] = q
	r.log.Debug().Str("guild", guildID).Int("queues", len(r.queues)).Msg("queue created")
	return q
}

// Lookup returns the guild's queue without creating one.
func (r *Registry) Lookup(guildID string) (*Queue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[guildID]
	return q, ok
}

// Each calls fn for every queue, outside the registry lock.
func (r *Registry) Each(fn func(guildID string, q *Queue)) {
	r.mu.Lock()
	snapshot := maps.Clone(r.queues)
	r.mu.Unlock()

	for id, q := range snapshot {
		fn(id, q)
	}
}

// Active refreshes every queue from the renderer and counts those playing or paused.
func (r *Registry) Active(ctx context.Context) int {
	var n int
	r.Each(func(id string, q *Queue) {
		st, err := q.Refresh(ctx)
		if err != nil {
			r.log.Debug().Err(err).Str("guild", id).Msg("refresh failed")
			return
		}
		if st == StatePlaying || st == StatePaused {
			n++
		}
	})
	return n
}

// Close stops every queue loop.
func (r *Registry) Close() {
	r.Each(func(_ string, q *Queue) { q.Close() })
}
