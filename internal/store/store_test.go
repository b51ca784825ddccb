package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/akarev/keepup/internal/model"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "keepup.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	a := model.Entity{
		ID: uuid.Must(uuid.NewV4()), Name: "no sugar", Description: "less of it",
		Kind: model.KindRestraint, Color: "#aa3322", Severity: 2,
		CreatedAt: time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC), Active: true,
	}
	b := model.Entity{
		ID: uuid.Must(uuid.NewV4()), Name: "run", Kind: model.KindPursuit,
		CreatedAt: time.Date(2025, 5, 2, 7, 0, 0, 0, time.UTC), Active: false,
	}
	shared := model.Event{
		ID:        uuid.Must(uuid.NewV4()),
		EntityIDs: []uuid.UUID{a.ID, b.ID},
		Timestamp: time.Date(2025, 5, 10, 21, 0, 0, 0, time.UTC),
		Note:      "rough day",
		Tags:      []string{"stress"},
		Mood:      "low",
	}
	only := model.Event{
		ID:              uuid.Must(uuid.NewV4()),
		EntityIDs:       []uuid.UUID{b.ID},
		Timestamp:       time.Date(2025, 5, 11, 7, 15, 0, 0, time.UTC),
		DurationMinutes: 40,
	}
	events := map[uuid.UUID][]model.Event{
		a.ID: {shared},
		b.ID: {shared, only},
	}

	require.NoError(t, s.SaveSnapshot(ctx, []model.Entity{a, b}, events))

	entities, loaded, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	byID := map[uuid.UUID]model.Entity{}
	for _, e := range entities {
		byID[e.ID] = e
	}
	gotA := byID[a.ID]
	require.Equal(t, a.Name, gotA.Name)
	require.Equal(t, a.Kind, gotA.Kind)
	require.Equal(t, a.Severity, gotA.Severity)
	require.True(t, gotA.CreatedAt.Equal(a.CreatedAt))
	require.True(t, gotA.Active)
	require.False(t, byID[b.ID].Active)

	require.Len(t, loaded[a.ID], 1)
	require.Len(t, loaded[b.ID], 2)

	var gotShared model.Event
	for _, ev := range loaded[b.ID] {
		if ev.ID == shared.ID {
			gotShared = ev
		}
	}
	require.Equal(t, shared.ID, gotShared.ID)
	require.ElementsMatch(t, shared.EntityIDs, gotShared.EntityIDs)
	require.Equal(t, shared.Note, gotShared.Note)
	require.Equal(t, shared.Tags, gotShared.Tags)
	require.True(t, gotShared.Timestamp.Equal(shared.Timestamp))
}

func TestStore_SaveReplacesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	old := model.Entity{
		ID: uuid.Must(uuid.NewV4()), Name: "old", Kind: model.KindPursuit,
		CreatedAt: time.Now().UTC(), Active: true,
	}
	require.NoError(t, s.SaveSnapshot(ctx, []model.Entity{old}, nil))

	fresh := model.Entity{
		ID: uuid.Must(uuid.NewV4()), Name: "fresh", Kind: model.KindPursuit,
		CreatedAt: time.Now().UTC(), Active: true,
	}
	require.NoError(t, s.SaveSnapshot(ctx, []model.Entity{fresh}, nil))

	entities, events, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	require.Equal(t, fresh.ID, entities[0].ID)
	require.Empty(t, events)
}

func TestStore_PendingEntitiesSkipped(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	pending := model.Entity{
		ID: uuid.Must(uuid.NewV4()), Name: "unconfirmed", Kind: model.KindPursuit,
		CreatedAt: time.Now().UTC(), Active: true, Pending: true,
	}
	require.NoError(t, s.SaveSnapshot(ctx, []model.Entity{pending}, nil))

	entities, _, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, entities)
}

func TestStore_EmptyDatabaseLoadsEmpty(t *testing.T) {
	s := openTemp(t)
	entities, events, err := s.LoadSnapshot(context.Background())
	require.NoError(t, err)
	require.Empty(t, entities)
	require.Empty(t, events)
}

func TestStore_ClearViaEmptySave(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	e := model.Entity{
		ID: uuid.Must(uuid.NewV4()), Name: "x", Kind: model.KindPursuit,
		CreatedAt: time.Now().UTC(), Active: true,
	}
	require.NoError(t, s.SaveSnapshot(ctx, []model.Entity{e}, nil))
	require.NoError(t, s.SaveSnapshot(ctx, nil, nil))

	entities, events, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, entities)
	require.Empty(t, events)
}

func TestStore_ReopenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keepup.db")

	s1, err := Open(ctx, path)
	require.NoError(t, err)
	e := model.Entity{
		ID: uuid.Must(uuid.NewV4()), Name: "keep", Kind: model.KindRestraint,
		CreatedAt: time.Now().UTC(), Active: true,
	}
	require.NoError(t, s1.SaveSnapshot(ctx, []model.Entity{e}, nil))
	require.NoError(t, s1.Close())

	// Reopening re-runs migrations as a no-op and keeps the data.
	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()
	entities, _, err := s2.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	require.Equal(t, e.ID, entities[0].ID)
}
