/*
Package sqlite provides a SQLite-backed implementation of engine.RecordStore.

PURPOSE:
  Single-node deployments and the demo server keep every collection in one
  SQLite file. Records are JSON documents; filters compile to json_extract
  predicates so the engine's Filter/Query contract behaves the same as with
  the in-memory and REST stores.

KEY TABLES:
  records: (collection, id) -> JSON body, plus an insertion sequence that
           gives Find a stable default order

INDEXES:
  - idx_records_collection_id: Uniqueness of ids per collection
  - idx_records_work: Assignment history lookups (hot path)

CONDITIONAL UPDATES:
  Update is a single UPDATE ... WHERE <filter> statement and reports the
  number of rows changed. The engine conditions status transitions on the
  status it read, so a lost race shows up as 0 rows.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/match.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := engine.NewService(store, provider.NewDirectory(store))

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - engine/store.go: RecordStore contract
  - engine/store/memory.go: In-memory implementation for testing
  - store/rest: HTTP gateway implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/match-engine/engine"
)

// ErrDuplicateID is returned by Insert when the id is already taken.
var ErrDuplicateID = errors.New("duplicate record id")

// Store implements engine.RecordStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if strings.HasPrefix(dbPath, ":memory:") {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_records_collection_id
		ON records(collection, id);

	CREATE INDEX IF NOT EXISTS idx_records_work
		ON records(collection, json_extract(body, '$.work_kind'), json_extract(body, '$.work_id'));
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE
// =============================================================================

// Find returns the records of coll matching q, in insertion order unless
// q.OrderBy says otherwise.
func (s *Store) Find(ctx context.Context, coll engine.Collection, q engine.Query) ([]engine.Record, error) {
	where, args, err := compile(q.Filter)
	if err != nil {
		return nil, err
	}

	query := "SELECT body FROM records WHERE collection = ?" + where
	args = append([]any{string(coll)}, args...)
	if q.OrderBy != "" {
		if !engine.ValidFieldName(q.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY json_extract(body, '$.%s') %s, seq", q.OrderBy, dir)
	} else {
		query += " ORDER BY seq"
	}
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var r engine.Record
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("corrupt record in %s: %w", coll, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Insert stores body under its "id".
func (s *Store) Insert(ctx context.Context, coll engine.Collection, body engine.Record) (engine.Record, error) {
	id := body.String("id")
	if id == "" {
		return nil, fmt.Errorf("insert into %s: missing id", coll)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (collection, id, body) VALUES (?, ?, ?)`,
		string(coll), id, string(data),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateID, coll, id)
		}
		return nil, err
	}
	return body.Clone(), nil
}

// Update merges patch into every record of coll matching filter and returns
// how many records changed.
func (s *Store) Update(ctx context.Context, coll engine.Collection, filter engine.Filter, patch engine.Record) (int, error) {
	if _, ok := patch["id"]; ok {
		return 0, fmt.Errorf("update %s: id cannot be patched", coll)
	}
	where, args, err := compile(filter)
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return 0, fmt.Errorf("encode patch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE records SET body = json_patch(body, ?) WHERE collection = ?"+where,
		append([]any{string(data), string(coll)}, args...)...,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM records")
	return err
}

// =============================================================================
// FILTER COMPILATION
// =============================================================================

var sqlOps = map[engine.Op]string{
	engine.OpGt:  ">",
	engine.OpGte: ">=",
	engine.OpLt:  "<",
	engine.OpLte: "<=",
}

// compile turns a Filter into " AND ..." clauses over json_extract. Field
// names are validated by Filter.Validate before being embedded.
func compile(f engine.Filter) (string, []any, error) {
	if err := f.Validate(); err != nil {
		return "", nil, err
	}
	var b strings.Builder
	var args []any
	for _, p := range f {
		col := fmt.Sprintf("json_extract(body, '$.%s')", p.Field)
		switch p.Op {
		case engine.OpEq:
			if p.Value == nil {
				fmt.Fprintf(&b, " AND %s IS NULL", col)
				continue
			}
			fmt.Fprintf(&b, " AND %s = ?", col)
			args = append(args, bindValue(p.Value))
		case engine.OpNeq:
			if p.Value == nil {
				fmt.Fprintf(&b, " AND %s IS NOT NULL", col)
				continue
			}
			fmt.Fprintf(&b, " AND (%s IS NULL OR %s != ?)", col, col)
			args = append(args, bindValue(p.Value))
		case engine.OpIn:
			values := p.Value.([]any)
			if len(values) == 0 {
				b.WriteString(" AND 0")
				continue
			}
			marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
			fmt.Fprintf(&b, " AND %s IN (%s)", col, marks)
			for _, v := range values {
				args = append(args, bindValue(v))
			}
		default:
			fmt.Fprintf(&b, " AND %s %s ?", col, sqlOps[p.Op])
			args = append(args, bindValue(p.Value))
		}
	}
	return b.String(), args, nil
}

// bindValue converts a filter value to what json_extract yields for the
// same JSON value: bools become 1/0, named types their underlying kind.
func bindValue(v any) any {
	switch n := engine.Normalize(v).(type) {
	case bool:
		if n {
			return 1
		}
		return 0
	case float64, string:
		return n
	}
	return fmt.Sprint(v)
}
