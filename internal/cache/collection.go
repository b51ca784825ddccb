// Package cache owns the client-side snapshot of tracked entities and keeps
// it reconciled with the remote gateway.
//
// One Collection serves one user session. Mutations are optimistic: the local
// snapshot changes and observers are notified before the remote call
// completes, and a failed remote call rolls the snapshot back to the state
// captured just before the mutation. Snapshots are immutable values replaced
// wholesale, so reads never block behind a mutation.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/akarev/keepup/internal/gateway"
	"github.com/akarev/keepup/internal/model"
	"github.com/akarev/keepup/internal/overview"
	"github.com/akarev/keepup/internal/streak"
)

// Options configures a Collection. Zero fields fall back to the system
// clock, the local timezone, a no-op logger and DefaultRetry.
type Options struct {
	Clock    gateway.Clock
	Location *time.Location
	Logger   *zap.Logger
	Retry    RetryPolicy
}

// Collection is one session's authoritative in-memory view of entities and
// their events. Construct with New, one per session; there are no package
// globals.
type Collection struct {
	gw     gateway.Gateway
	clock  gateway.Clock
	loc    *time.Location
	log    *zap.Logger
	policy RetryPolicy

	// mu serializes loads and mutations end to end: a second mutation issued
	// while one is in flight queues behind it.
	mu sync.Mutex

	// pub guards the published snapshot and the per-entity event lists. The
	// epoch increments on every write outside WarmEvents, so a stale warm
	// result arriving after an invalidation is discarded on write-back.
	pub struct {
		sync.RWMutex
		snap   model.Snapshot
		events map[uuid.UUID][]model.Event
		epoch  uint64
	}

	subMu   sync.Mutex
	subs    map[int]chan model.Snapshot
	nextSub int
}

// New constructs a Collection over the given gateway.
func New(gw gateway.Gateway, opts Options) *Collection {
	c := &Collection{
		gw:     gw,
		clock:  opts.Clock,
		loc:    opts.Location,
		log:    opts.Logger,
		policy: opts.Retry,
		subs:   make(map[int]chan model.Snapshot),
	}
	if c.clock == nil {
		c.clock = gateway.SystemClock{}
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.policy == (RetryPolicy{}) {
		c.policy = DefaultRetry
	}
	c.pub.events = make(map[uuid.UUID][]model.Event)
	return c
}

// Snapshot returns the current published snapshot. Safe from any goroutine.
func (c *Collection) Snapshot() model.Snapshot {
	c.pub.RLock()
	defer c.pub.RUnlock()
	return c.pub.snap
}

// Events returns a copy of the cached event list for one entity.
func (c *Collection) Events(entityID uuid.UUID) []model.Event {
	c.pub.RLock()
	defer c.pub.RUnlock()
	return append([]model.Event(nil), c.pub.events[entityID]...)
}

// EventLog returns a copy of the whole per-entity event cache, for callers
// that persist the session locally.
func (c *Collection) EventLog() map[uuid.UUID][]model.Event {
	c.pub.RLock()
	defer c.pub.RUnlock()
	out := make(map[uuid.UUID][]model.Event, len(c.pub.events))
	for id, evs := range c.pub.events {
		out[id] = append([]model.Event(nil), evs...)
	}
	return out
}

// Overview reduces the current snapshot into summary statistics.
func (c *Collection) Overview() overview.Overview {
	c.pub.RLock()
	snap := c.pub.snap
	events := c.distinctEventsLocked()
	c.pub.RUnlock()
	return overview.Build(snap.Entities, events)
}

// distinctEventsLocked flattens the per-entity lists, deduplicated by event
// id (a multi-tagged lapse appears in several lists). Caller holds pub.
func (c *Collection) distinctEventsLocked() []model.Event {
	seen := make(map[uuid.UUID]struct{})
	var out []model.Event
	for _, evs := range c.pub.events {
		for _, ev := range evs {
			if _, ok := seen[ev.ID]; ok {
				continue
			}
			seen[ev.ID] = struct{}{}
			out = append(out, ev)
		}
	}
	return out
}

// Subscribe registers an observer of snapshot changes. The channel is
// latest-wins: a slow receiver only misses intermediate states, never the
// newest. cancel unregisters and closes the channel.
func (c *Collection) Subscribe() (<-chan model.Snapshot, func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan model.Snapshot, 1)
	c.subs[id] = ch
	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (c *Collection) notify(s model.Snapshot) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// prevState captures everything a rollback needs. Snapshots and event slices
// are treated as immutable, so holding the old values is enough.
type prevState struct {
	snap   model.Snapshot
	events map[uuid.UUID][]model.Event
}

func (c *Collection) capture() prevState {
	c.pub.RLock()
	defer c.pub.RUnlock()
	events := make(map[uuid.UUID][]model.Event, len(c.pub.events))
	for id, evs := range c.pub.events {
		events[id] = evs
	}
	return prevState{snap: c.pub.snap, events: events}
}

// swap publishes a new snapshot and optionally a new event cache (nil keeps
// the current one), bumps the epoch and notifies observers.
func (c *Collection) swap(s model.Snapshot, events map[uuid.UUID][]model.Event) {
	c.pub.Lock()
	c.pub.snap = s
	if events != nil {
		c.pub.events = events
	}
	c.pub.epoch++
	c.pub.Unlock()
	c.notify(s)
}

func (c *Collection) restore(prev prevState) {
	c.swap(prev.snap, prev.events)
}

// recompute returns a fresh entity slice with derived streak fields rebuilt
// from the given event cache. This is the only code path that writes streak
// fields.
func (c *Collection) recompute(entities []model.Entity, events map[uuid.UUID][]model.Event) []model.Entity {
	today := model.DayOf(c.clock.Now(), c.loc)
	out := make([]model.Entity, len(entities))
	for i, e := range entities {
		e.Streak = streak.Compute(e, events[e.ID], today, c.loc)
		out[i] = e
	}
	return out
}

// Load returns the current snapshot, fetching from the gateway only when no
// successful load has happened yet. A soft load while Ready serves the cache
// directly and never flashes a loading state at the caller.
func (c *Collection) Load(ctx context.Context) (model.Snapshot, error) {
	if s := c.Snapshot(); s.Phase == model.PhaseReady {
		return s, nil
	}
	return c.Refresh(ctx)
}

// Refresh always fetches the entity list. When the fetch fails but an
// earlier Ready snapshot exists, that data is kept and flagged stale instead
// of being replaced by an error state.
func (c *Collection) Refresh(ctx context.Context) (model.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.capture()
	if prev.snap.Phase != model.PhaseReady {
		c.swap(model.Snapshot{Phase: model.PhaseLoading}, nil)
	}

	var fetched []model.Entity
	err := c.withRetry(ctx, "list entities", func(ctx context.Context) error {
		var lerr error
		fetched, lerr = c.gw.ListEntities(ctx)
		return lerr
	})
	if err != nil {
		if prev.snap.Phase == model.PhaseReady {
			s := prev.snap
			s.Stale = true
			s.Err = err
			c.swap(s, prev.events)
			return s, fmt.Errorf("refresh: %w", err)
		}
		s := model.Snapshot{Phase: model.PhaseError, Err: err}
		c.swap(s, nil)
		return s, fmt.Errorf("refresh: %w", err)
	}

	// Keep cached event lists only for entities that still exist remotely.
	events := make(map[uuid.UUID][]model.Event, len(fetched))
	for _, e := range fetched {
		if evs, ok := prev.events[e.ID]; ok {
			events[e.ID] = evs
		}
	}
	s := model.Snapshot{
		Phase:     model.PhaseReady,
		Entities:  c.recompute(fetched, events),
		FetchedAt: c.clock.Now(),
	}
	c.swap(s, events)
	return s, nil
}

// WarmEvents fetches the event log of every entity in the current snapshot
// and recomputes streaks once all lists are in. Intended to run in the
// background after a list load; it is safe to cancel via ctx, and results
// arriving after any invalidation (ClearAll, a mutation, another refresh) are
// discarded rather than written over newer state.
func (c *Collection) WarmEvents(ctx context.Context) error {
	c.pub.RLock()
	snap := c.pub.snap
	start := c.pub.epoch
	c.pub.RUnlock()
	if snap.Phase != model.PhaseReady {
		return nil
	}

	warmed := make(map[uuid.UUID][]model.Event, len(snap.Entities))
	for _, e := range snap.Entities {
		if err := ctx.Err(); err != nil {
			return err
		}
		var evs []model.Event
		err := c.withRetry(ctx, "list events", func(ctx context.Context) error {
			var lerr error
			evs, lerr = c.gw.ListEvents(ctx, e.ID)
			return lerr
		})
		if err != nil {
			return fmt.Errorf("warm events for %s: %w", e.ID, err)
		}
		warmed[e.ID] = evs
	}

	c.pub.Lock()
	if c.pub.epoch != start {
		c.pub.Unlock()
		return nil
	}
	c.pub.events = warmed
	s := c.pub.snap
	s.Entities = c.recompute(s.Entities, warmed)
	c.pub.snap = s
	c.pub.Unlock()
	c.notify(s)
	return nil
}

// ClearAll wipes the snapshot and every per-entity event list atomically.
// This is the single invalidation entry point; there is no other cache store
// that could survive it and diverge.
func (c *Collection) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swap(model.Snapshot{Phase: model.PhaseUninitialized}, make(map[uuid.UUID][]model.Event))
}

// Prime seeds the collection from locally persisted data (a previous
// session's snapshot). The result is Ready but flagged stale until a remote
// refresh succeeds.
func (c *Collection) Prime(entities []model.Entity, events map[uuid.UUID][]model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if events == nil {
		events = make(map[uuid.UUID][]model.Event)
	}
	s := model.Snapshot{
		Phase:    model.PhaseReady,
		Stale:    true,
		Entities: c.recompute(entities, events),
	}
	c.swap(s, events)
}
