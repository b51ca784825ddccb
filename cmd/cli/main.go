// Command keepup is a CLI client for the KeepUp tracking service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	u "github.com/gofrs/uuid/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/akarev/keepup/internal/cache"
	"github.com/akarev/keepup/internal/gateway/httpapi"
	"github.com/akarev/keepup/internal/model"
	"github.com/akarev/keepup/internal/store"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// ---- config ----

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "keepup")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "keepup")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ---- utils ----

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func parseID(s string) u.UUID {
	id, err := u.FromString(s)
	if err != nil {
		fail(fmt.Errorf("bad id %q: %w", s, err))
	}
	return id
}

func parseWhen(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	fail(fmt.Errorf("bad timestamp %q (want RFC3339 or YYYY-MM-DD)", s))
	return time.Time{}
}

func usage() {
	fmt.Fprintf(os.Stderr, `keepup CLI
Usage:
  keepup [-addr URL] [-db file] <cmd> [args]

Commands:
  version
  list                                       entities with current streaks
  overview                                   summary statistics
  add      -name <text> -kind pursuit|restraint [-desc <text>] [-color <hex>] [-severity N]
  edit     -id <uuid> -name <text> [-desc <text>] [-color <hex>] [-severity N] [-archive]
  rm       -id <uuid>
  log      -id <uuid> [-at <when>] [-dur <minutes>] [-note <text>]
  lapse    -ids <uuid,...> [-at <when>] [-note <text>]
  events   -id <uuid>
  refresh                                    force a remote reload
  clear                                      drop the local cache
`)
	os.Exit(2)
}

// ---- session wiring ----

type session struct {
	col *cache.Collection
	st  *store.Store
	log *zap.Logger
}

// open builds the gateway, primes the collection from the on-disk snapshot
// and returns the session. The store is best-effort: a broken local database
// only costs the warm start.
func open(ctx context.Context, addr, dbPath string, logger *zap.Logger) *session {
	gw := httpapi.New(addr, os.Getenv("KEEPUP_TOKEN"), 30*time.Second)
	col := cache.New(gw, cache.Options{Logger: logger})

	st, err := store.Open(ctx, dbPath)
	if err != nil {
		logger.Warn("local store unavailable", zap.Error(err))
		return &session{col: col, log: logger}
	}
	if entities, events, err := st.LoadSnapshot(ctx); err == nil && len(entities) > 0 {
		col.Prime(entities, events)
	}
	return &session{col: col, st: st, log: logger}
}

func (s *session) close() {
	if s.st != nil {
		_ = s.st.Close()
	}
}

// sync refreshes from the backend and warms event lists; when the backend is
// down but a primed snapshot exists, the stale data is kept and flagged.
func (s *session) sync(ctx context.Context) model.Snapshot {
	snap, err := s.col.Refresh(ctx)
	if err != nil {
		if snap.Phase != model.PhaseReady {
			fail(err)
		}
		fmt.Fprintln(os.Stderr, "warning: backend unreachable, showing cached data")
		return snap
	}
	if err := s.col.WarmEvents(ctx); err != nil {
		s.log.Warn("event warm-up failed", zap.Error(err))
	}
	return s.col.Snapshot()
}

// persist writes the confirmed snapshot back to the local store.
func (s *session) persist(ctx context.Context) {
	if s.st == nil {
		return
	}
	snap := s.col.Snapshot()
	if snap.Phase != model.PhaseReady {
		return
	}
	if err := s.st.SaveSnapshot(ctx, snap.Entities, s.col.EventLog()); err != nil {
		s.log.Warn("persist snapshot", zap.Error(err))
	}
}

func printEntities(snap model.Snapshot) {
	if snap.Stale {
		fmt.Println("(stale)")
	}
	for _, e := range snap.Entities {
		if !e.Active {
			continue
		}
		last := "-"
		if !e.Streak.LastEventDate.IsZero() {
			last = e.Streak.LastEventDate.String()
		}
		fmt.Printf("%s  %-9s  %-24s  current=%-4d longest=%-4d last=%s\n",
			e.ID, e.Kind, e.Name, e.Streak.Current, e.Streak.Longest, last)
	}
}

// ---- main ----

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("KEEPUP_ADDR", "http://localhost:8080"), "backend base URL")
	dbPath := flag.String("db", envOr("KEEPUP_DB", filepath.Join(cfgDir(), "keepup.db")), "local snapshot database")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if cmd == "version" {
		fmt.Printf("keepup %s (%s)\n", version, buildDate)
		return
	}

	_ = os.MkdirAll(cfgDir(), 0o700)
	s := open(ctx, *addr, *dbPath, logger)
	defer s.close()

	switch cmd {

	case "list":
		printEntities(s.sync(ctx))
		s.persist(ctx)

	case "overview":
		snap := s.sync(ctx)
		if snap.Stale {
			fmt.Println("(stale)")
		}
		printJSON(s.col.Overview())
		s.persist(ctx)

	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		name := fs.String("name", "", "entity name")
		kind := fs.String("kind", "pursuit", "pursuit|restraint")
		desc := fs.String("desc", "", "description")
		color := fs.String("color", "", "display color")
		severity := fs.Int("severity", 0, "restraint severity")
		_ = fs.Parse(flag.Args()[1:])

		s.sync(ctx)
		created, err := s.col.CreateEntity(ctx, model.Entity{
			Name:        *name,
			Kind:        model.Kind(*kind),
			Description: *desc,
			Color:       *color,
			Severity:    *severity,
		})
		if err != nil {
			fail(err)
		}
		fmt.Println(created.ID)
		s.persist(ctx)

	case "edit":
		fs := flag.NewFlagSet("edit", flag.ExitOnError)
		id := fs.String("id", "", "entity id")
		name := fs.String("name", "", "entity name")
		desc := fs.String("desc", "", "description")
		color := fs.String("color", "", "display color")
		severity := fs.Int("severity", 0, "restraint severity")
		archive := fs.Bool("archive", false, "hide from listings, keep history")
		_ = fs.Parse(flag.Args()[1:])

		s.sync(ctx)
		_, err := s.col.UpdateEntity(ctx, model.Entity{
			ID:          parseID(*id),
			Name:        *name,
			Description: *desc,
			Color:       *color,
			Severity:    *severity,
			Active:      !*archive,
		})
		if err != nil {
			fail(err)
		}
		fmt.Println("ok")
		s.persist(ctx)

	case "rm":
		fs := flag.NewFlagSet("rm", flag.ExitOnError)
		id := fs.String("id", "", "entity id")
		_ = fs.Parse(flag.Args()[1:])

		s.sync(ctx)
		if err := s.col.DeleteEntity(ctx, parseID(*id)); err != nil {
			fail(err)
		}
		fmt.Println("ok")
		s.persist(ctx)

	case "log":
		fs := flag.NewFlagSet("log", flag.ExitOnError)
		id := fs.String("id", "", "pursuit id")
		at := fs.String("at", "", "timestamp (default now)")
		dur := fs.Int("dur", 0, "duration in minutes")
		note := fs.String("note", "", "free-form note")
		_ = fs.Parse(flag.Args()[1:])

		s.sync(ctx)
		ev, err := s.col.AddEvent(ctx, model.Event{
			EntityIDs:       []u.UUID{parseID(*id)},
			Timestamp:       parseWhen(*at),
			DurationMinutes: *dur,
			Note:            *note,
		})
		if err != nil {
			fail(err)
		}
		fmt.Println(ev.ID)
		s.persist(ctx)

	case "lapse":
		fs := flag.NewFlagSet("lapse", flag.ExitOnError)
		ids := fs.String("ids", "", "restraint ids, comma-separated")
		at := fs.String("at", "", "timestamp (default now)")
		note := fs.String("note", "", "free-form note")
		_ = fs.Parse(flag.Args()[1:])

		var tagged []u.UUID
		for _, part := range strings.Split(*ids, ",") {
			if part = strings.TrimSpace(part); part != "" {
				tagged = append(tagged, parseID(part))
			}
		}
		s.sync(ctx)
		ev, err := s.col.AddEvent(ctx, model.Event{
			EntityIDs: tagged,
			Timestamp: parseWhen(*at),
			Note:      *note,
		})
		if err != nil {
			fail(err)
		}
		fmt.Println(ev.ID)
		s.persist(ctx)

	case "events":
		fs := flag.NewFlagSet("events", flag.ExitOnError)
		id := fs.String("id", "", "entity id")
		_ = fs.Parse(flag.Args()[1:])

		s.sync(ctx)
		for _, ev := range s.col.Events(parseID(*id)) {
			note := ev.Note
			if note != "" {
				note = "  " + note
			}
			fmt.Printf("%s  %s%s\n", ev.ID, ev.Timestamp.Local().Format("2006-01-02 15:04"), note)
		}
		s.persist(ctx)

	case "refresh":
		snap, err := s.col.Refresh(ctx)
		if err != nil {
			if snap.Phase == model.PhaseReady && snap.Stale {
				fmt.Fprintln(os.Stderr, "warning: refresh failed, cached data kept")
			} else {
				fail(err)
			}
		}
		if err := s.col.WarmEvents(ctx); err != nil {
			s.log.Warn("event warm-up failed", zap.Error(err))
		}
		printEntities(s.col.Snapshot())
		s.persist(ctx)

	case "clear":
		s.col.ClearAll()
		if s.st != nil {
			if err := s.st.SaveSnapshot(ctx, nil, nil); err != nil {
				fail(err)
			}
		}
		fmt.Println("ok")

	default:
		usage()
	}
}
