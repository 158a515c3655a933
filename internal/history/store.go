package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/navidrome/renderd/db"
	"github.com/navidrome/renderd/log"
)

// Store is a thin database/sql + squirrel wrapper over a single "events"
// table; CRUD is written directly against *sql.DB.
type Store struct {
	db      *sql.DB
	retain  int
	builder sq.StatementBuilderType
}

// Open runs pending migrations against dataFolder/renderd.db and returns a
// ready Store. retain bounds how many rows pruneAsync keeps.
func Open(dataFolder string, retain int) (*Store, error) {
	path := filepath.Join(dataFolder, "renderd.db")
	conn, err := sql.Open("sqlite3", path+"?_journal=WAL&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.Migrate(conn); err != nil {
		return nil, fmt.Errorf("running history migrations: %w", err)
	}
	return &Store{
		db:      conn,
		retain:  retain,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one event, JSON-encoding detail, and opportunistically
// prunes old rows so the table never grows unbounded.
func (s *Store) Record(ctx context.Context, service, kind, name string, detail map[string]string) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return err
	}
	_, err = s.builder.Insert("events").
		Columns("service", "kind", "name", "detail", "created_at").
		Values(service, kind, name, string(payload), sq.Expr("CURRENT_TIMESTAMP")).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("recording history event: %w", err)
	}
	go s.pruneAsync(context.Background())
	return nil
}

// List returns the most recent events, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.builder.Select("id", "service", "kind", "name", "detail", "created_at").
		From("events").
		OrderBy("id DESC").
		Limit(uint64(limit)).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Service, &e.Kind, &e.Name, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Vacuum reclaims space freed by pruning, intended to run on a slow
// schedule (the orchestrator's cron job) rather than after every insert.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "vacuum")
	return err
}

func (s *Store) pruneAsync(ctx context.Context) {
	if s.retain <= 0 {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`delete from events where id not in (select id from events order by id desc limit ?)`,
		s.retain)
	if err != nil {
		log.Warn(ctx, "failed to prune history table", err)
	}
}
