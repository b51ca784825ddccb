// Package store persists the last good snapshot to a local sqlite database
// so a session can start warm while the backend is unreachable.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/akarev/keepup/internal/model"
	"github.com/akarev/keepup/migrations"
)

// Store is a single-file sqlite database holding one session's entities and
// events.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, err
	}
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveSnapshot replaces the stored entities and events in one transaction.
// Pending (unconfirmed) entities are skipped; their ids are not durable.
func (s *Store) SaveSnapshot(ctx context.Context, entities []model.Entity, events map[uuid.UUID][]model.Event) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"event_tags", "events", "entities"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}

	for _, e := range entities {
		if e.Pending {
			continue
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO entities (id, name, description, kind, color, severity, created_at, active)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID.String(), e.Name, e.Description, string(e.Kind), e.Color, e.Severity,
			e.CreatedAt.UTC().Format(time.RFC3339Nano), boolInt(e.Active))
		if err != nil {
			return err
		}
	}

	seen := make(map[uuid.UUID]struct{})
	for _, evs := range events {
		for _, ev := range evs {
			if _, ok := seen[ev.ID]; ok {
				continue
			}
			seen[ev.ID] = struct{}{}
			var tags []byte
			tags, err = json.Marshal(ev.Tags)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO events (id, ts, duration_minutes, note, tags, mood)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				ev.ID.String(), ev.Timestamp.UTC().Format(time.RFC3339Nano),
				ev.DurationMinutes, ev.Note, string(tags), ev.Mood)
			if err != nil {
				return err
			}
			for _, eid := range ev.EntityIDs {
				_, err = tx.ExecContext(ctx,
					`INSERT INTO event_tags (event_id, entity_id) VALUES (?, ?)`,
					ev.ID.String(), eid.String())
				if err != nil {
					return err
				}
			}
		}
	}
	return tx.Commit()
}

// LoadSnapshot returns the stored entities and the per-entity event lists.
// An empty database yields empty results, not an error.
func (s *Store) LoadSnapshot(ctx context.Context) ([]model.Entity, map[uuid.UUID][]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, kind, color, severity, created_at, active FROM entities`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		var (
			e            model.Entity
			id, kind, ts string
			active       int
		)
		if err := rows.Scan(&id, &e.Name, &e.Description, &kind, &e.Color, &e.Severity, &ts, &active); err != nil {
			return nil, nil, err
		}
		if e.ID, err = uuid.FromString(id); err != nil {
			return nil, nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, nil, err
		}
		e.Kind = model.Kind(kind)
		e.Active = active != 0
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	evRows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, duration_minutes, note, tags, mood FROM events`)
	if err != nil {
		return nil, nil, err
	}
	defer evRows.Close()

	byID := make(map[uuid.UUID]model.Event)
	for evRows.Next() {
		var (
			ev           model.Event
			id, ts, tags string
		)
		if err := evRows.Scan(&id, &ts, &ev.DurationMinutes, &ev.Note, &tags, &ev.Mood); err != nil {
			return nil, nil, err
		}
		if ev.ID, err = uuid.FromString(id); err != nil {
			return nil, nil, err
		}
		if ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, nil, err
		}
		if err := json.Unmarshal([]byte(tags), &ev.Tags); err != nil {
			return nil, nil, err
		}
		byID[ev.ID] = ev
	}
	if err := evRows.Err(); err != nil {
		return nil, nil, err
	}

	tagRows, err := s.db.QueryContext(ctx, `SELECT event_id, entity_id FROM event_tags`)
	if err != nil {
		return nil, nil, err
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var evID, enID string
		if err := tagRows.Scan(&evID, &enID); err != nil {
			return nil, nil, err
		}
		eventID, err := uuid.FromString(evID)
		if err != nil {
			return nil, nil, err
		}
		entityID, err := uuid.FromString(enID)
		if err != nil {
			return nil, nil, err
		}
		ev, ok := byID[eventID]
		if !ok {
			continue
		}
		ev.EntityIDs = append(ev.EntityIDs, entityID)
		byID[eventID] = ev
	}
	if err := tagRows.Err(); err != nil {
		return nil, nil, err
	}

	events := make(map[uuid.UUID][]model.Event)
	for _, ev := range byID {
		for _, eid := range ev.EntityIDs {
			events[eid] = append(events[eid], ev)
		}
	}
	return entities, events, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
