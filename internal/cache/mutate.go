package cache

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/akarev/keepup/internal/errs"
	"github.com/akarev/keepup/internal/model"
)

// Mutations apply to the local snapshot immediately, notify observers, then
// issue the remote call. A remote failure restores the captured pre-mutation
// state, so the snapshot is never left partially applied. Validation failures
// surface before anything is touched and are never retried.

const maxBackdate = 366 // days an event timestamp may lie in the past

// CreateEntity inserts a new pursuit or restraint. The returned entity
// carries the backend-assigned id; until the remote call confirms, observers
// see it under a local temporary id with Pending set.
func (c *Collection) CreateEntity(ctx context.Context, e model.Entity) (model.Entity, error) {
	if e.Name == "" {
		return model.Entity{}, fmt.Errorf("%w: empty name", errs.ErrValidation)
	}
	if !e.Kind.Valid() {
		return model.Entity{}, fmt.Errorf("%w: unknown kind %q", errs.ErrValidation, e.Kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.capture()

	tempID, err := uuid.NewV4()
	if err != nil {
		return model.Entity{}, err
	}
	e.ID = tempID
	e.Pending = true
	e.Active = true
	if e.CreatedAt.IsZero() {
		e.CreatedAt = c.clock.Now()
	}
	c.applyEntities(prev, append(cloneEntities(prev.snap.Entities), e), nil)

	var created model.Entity
	err = c.withRetry(ctx, "create entity", func(ctx context.Context) error {
		var gerr error
		created, gerr = c.gw.CreateEntity(ctx, e)
		return gerr
	})
	if err != nil {
		c.restore(prev)
		return model.Entity{}, fmt.Errorf("create entity: %w", err)
	}

	// Confirm: the backend id replaces the temporary one.
	entities := cloneEntities(prev.snap.Entities)
	created.Pending = false
	entities = append(entities, created)
	c.applyEntities(prev, entities, nil)
	cur, _ := c.Snapshot().Entity(created.ID)
	return cur, nil
}

// UpdateEntity edits the mutable fields of an existing entity: name,
// description, color, severity and the active flag. Kind and creation date
// are fixed; derived streak fields are recomputed, never taken from the
// caller.
func (c *Collection) UpdateEntity(ctx context.Context, e model.Entity) (model.Entity, error) {
	if e.ID == uuid.Nil {
		return model.Entity{}, fmt.Errorf("%w: empty id", errs.ErrValidation)
	}
	if e.Name == "" {
		return model.Entity{}, fmt.Errorf("%w: empty name", errs.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.capture()

	cur, ok := prev.snap.Entity(e.ID)
	if !ok {
		return model.Entity{}, fmt.Errorf("update entity %s: %w", e.ID, errs.ErrNotFound)
	}
	merged := cur
	merged.Name = e.Name
	merged.Description = e.Description
	merged.Color = e.Color
	merged.Severity = e.Severity
	merged.Active = e.Active

	c.applyEntities(prev, replaceEntity(prev.snap.Entities, merged), nil)

	err := c.withRetry(ctx, "update entity", func(ctx context.Context) error {
		_, gerr := c.gw.UpdateEntity(ctx, merged)
		return gerr
	})
	if err != nil {
		c.restore(prev)
		return model.Entity{}, fmt.Errorf("update entity: %w", err)
	}
	out, _ := c.Snapshot().Entity(merged.ID)
	return out, nil
}

// DeleteEntity removes an entity permanently. Its events become unreachable
// for streak purposes: the per-entity list is dropped and multi-tagged lapses
// lose this entity from their tag sets while still counting for the others.
func (c *Collection) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: empty id", errs.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.capture()

	cur, ok := prev.snap.Entity(id)
	if !ok {
		return fmt.Errorf("delete entity %s: %w", id, errs.ErrNotFound)
	}

	entities := make([]model.Entity, 0, len(prev.snap.Entities)-1)
	for _, e := range prev.snap.Entities {
		if e.ID != id {
			entities = append(entities, e)
		}
	}
	events := make(map[uuid.UUID][]model.Event, len(prev.events))
	for eid, evs := range prev.events {
		if eid == id {
			continue
		}
		events[eid] = stripTag(evs, id)
	}
	c.applyEntities(prev, entities, events)

	if cur.Pending {
		// Never confirmed remotely; nothing to delete on the backend.
		return nil
	}
	err := c.withRetry(ctx, "delete entity", func(ctx context.Context) error {
		return c.gw.DeleteEntity(ctx, id)
	})
	if err != nil {
		c.restore(prev)
		return fmt.Errorf("delete entity: %w", err)
	}
	return nil
}

// AddEvent logs an occurrence or lapse. Occurrences tag exactly one pursuit;
// a lapse may tag several restraints at once. The timestamp may be backdated
// up to a year and never future-dated.
func (c *Collection) AddEvent(ctx context.Context, ev model.Event) (model.Event, error) {
	if len(ev.EntityIDs) == 0 {
		return model.Event{}, fmt.Errorf("%w: event must tag at least one entity", errs.ErrValidation)
	}
	if ev.DurationMinutes < 0 {
		return model.Event{}, fmt.Errorf("%w: negative duration", errs.ErrValidation)
	}
	now := c.clock.Now()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}
	if ev.Timestamp.After(now) {
		return model.Event{}, fmt.Errorf("%w: future-dated event", errs.ErrValidation)
	}
	if today := model.DayOf(now, c.loc); today.Sub(model.DayOf(ev.Timestamp, c.loc)) > maxBackdate {
		return model.Event{}, fmt.Errorf("%w: event backdated more than a year", errs.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.capture()

	var kind model.Kind
	for _, id := range ev.EntityIDs {
		e, ok := prev.snap.Entity(id)
		if !ok {
			return model.Event{}, fmt.Errorf("%w: unknown entity %s", errs.ErrValidation, id)
		}
		if kind == "" {
			kind = e.Kind
		} else if e.Kind != kind {
			return model.Event{}, fmt.Errorf("%w: event tags mixed kinds", errs.ErrValidation)
		}
	}
	if kind == model.KindPursuit && len(ev.EntityIDs) > 1 {
		return model.Event{}, fmt.Errorf("%w: occurrences tag exactly one pursuit", errs.ErrValidation)
	}

	tempID, err := uuid.NewV4()
	if err != nil {
		return model.Event{}, err
	}
	ev.ID = tempID
	c.applyEntities(prev, cloneEntities(prev.snap.Entities), withEvent(prev.events, ev))

	var created model.Event
	err = c.withRetry(ctx, "create event", func(ctx context.Context) error {
		var gerr error
		created, gerr = c.gw.CreateEvent(ctx, ev)
		return gerr
	})
	if err != nil {
		c.restore(prev)
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}

	c.applyEntities(prev, cloneEntities(prev.snap.Entities), withEvent(prev.events, created))
	return created, nil
}

// DeleteEvent removes a logged event from every entity it is tagged to and
// recomputes the affected streaks.
func (c *Collection) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: empty id", errs.ErrValidation)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.capture()

	found := false
	events := make(map[uuid.UUID][]model.Event, len(prev.events))
	for eid, evs := range prev.events {
		kept := make([]model.Event, 0, len(evs))
		for _, ev := range evs {
			if ev.ID == id {
				found = true
				continue
			}
			kept = append(kept, ev)
		}
		events[eid] = kept
	}
	if !found {
		return fmt.Errorf("delete event %s: %w", id, errs.ErrNotFound)
	}
	c.applyEntities(prev, cloneEntities(prev.snap.Entities), events)

	err := c.withRetry(ctx, "delete event", func(ctx context.Context) error {
		return c.gw.DeleteEvent(ctx, id)
	})
	if err != nil {
		c.restore(prev)
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// applyEntities publishes an optimistic (or confirmed) state built from prev:
// streaks are recomputed, the phase becomes Ready and staleness carries over.
// events nil keeps prev's event cache.
func (c *Collection) applyEntities(prev prevState, entities []model.Entity, events map[uuid.UUID][]model.Event) {
	if events == nil {
		events = prev.events
	}
	s := prev.snap
	s.Phase = model.PhaseReady
	s.Entities = c.recompute(entities, events)
	c.swap(s, events)
}

func cloneEntities(entities []model.Entity) []model.Entity {
	return append([]model.Entity(nil), entities...)
}

func replaceEntity(entities []model.Entity, e model.Entity) []model.Entity {
	out := cloneEntities(entities)
	for i := range out {
		if out[i].ID == e.ID {
			out[i] = e
			break
		}
	}
	return out
}

// withEvent returns a copy of the event cache with ev appended to the list of
// every entity it tags. Existing slices are never mutated in place.
func withEvent(events map[uuid.UUID][]model.Event, ev model.Event) map[uuid.UUID][]model.Event {
	out := make(map[uuid.UUID][]model.Event, len(events))
	for id, evs := range events {
		out[id] = evs
	}
	for _, id := range ev.EntityIDs {
		out[id] = append(append([]model.Event(nil), out[id]...), ev)
	}
	return out
}

// stripTag removes id from the tag set of every event in evs, copying as it
// goes.
func stripTag(evs []model.Event, id uuid.UUID) []model.Event {
	out := make([]model.Event, 0, len(evs))
	for _, ev := range evs {
		if ev.TaggedTo(id) {
			ids := make([]uuid.UUID, 0, len(ev.EntityIDs)-1)
			for _, eid := range ev.EntityIDs {
				if eid != id {
					ids = append(ids, eid)
				}
			}
			ev.EntityIDs = ids
		}
		out = append(out, ev)
	}
	return out
}
