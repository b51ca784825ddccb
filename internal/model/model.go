// Package model defines domain entities shared by the calculators, the cache
// layer and the remote gateway.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Kind selects which streak rule applies to an entity.
type Kind string

const (
	// KindPursuit tracks a positive habit: a day counts toward the streak
	// when at least one occurrence was logged on it.
	KindPursuit Kind = "pursuit"

	// KindRestraint tracks a behavior to avoid: a day counts toward the
	// clean streak when no lapse was logged on it.
	KindRestraint Kind = "restraint"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindPursuit || k == KindRestraint }

// StreakState is the derived portion of an entity. It is only ever written
// wholesale by a recompute pass, never edited field by field.
type StreakState struct {
	Current       int // consecutive qualifying days ending at or adjacent to today
	Longest       int // maximum qualifying run anywhere in the entity's history
	LastEventDate Day // day of the most recent relevant event; zero when none exists
}

// Entity is one tracked behavior, either a pursuit or a restraint.
type Entity struct {
	ID          uuid.UUID // backend-assigned; a local temporary id while Pending
	Name        string
	Description string
	Kind        Kind
	Color       string
	Severity    int // restraints only; carried through, not interpreted
	CreatedAt   time.Time
	Active      bool // soft-delete flag; inactive entities keep history but leave aggregation
	Pending     bool // true until the backend confirms creation
	Streak      StreakState
}

// Event is a logged occurrence (pursuit) or lapse (restraint). One lapse may
// be tagged to several restraints at once. Note, tags and mood are carried
// through the cache unchanged and never enter streak math.
type Event struct {
	ID              uuid.UUID
	EntityIDs       []uuid.UUID
	Timestamp       time.Time
	DurationMinutes int
	Note            string
	Tags            []string
	Mood            string
}

// TaggedTo reports whether e is tagged to the given entity.
func (e Event) TaggedTo(id uuid.UUID) bool {
	for _, eid := range e.EntityIDs {
		if eid == id {
			return true
		}
	}
	return false
}

// Phase names the coarse lifecycle states of a collection snapshot.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// Snapshot is an immutable view of a collection. The cache replaces snapshots
// wholesale and never mutates a published one, so holders may read them from
// any goroutine without locking.
type Snapshot struct {
	Phase     Phase
	Stale     bool // Ready data whose most recent refresh attempt failed
	Entities  []Entity
	FetchedAt time.Time // clock time of the last successful remote load
	Err       error     // set when Phase is PhaseError, or alongside Stale
}

// Entity returns the entity with the given id and whether it exists.
func (s Snapshot) Entity(id uuid.UUID) (Entity, bool) {
	for _, e := range s.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}
