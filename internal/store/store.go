// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store is the entity store: named collections of schema-less JSON
// documents kept in a SQLite database. Services depend on the Collections
// interface; Atomic runs a group of writes in one transaction.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-journey/pkg/types"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when creating a document whose ID is taken.
	ErrConflict = errors.New("already exists")

	// ErrInvalidQuery is returned for malformed field names or operators.
	ErrInvalidQuery = errors.New("invalid query")
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is a stored document.
type Record struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Owner      string          `json:"owner"`
	Body       json.RawMessage `json:"body"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Doc is a document to create. An empty ID is replaced by a random UUID.
type Doc struct {
	ID    string
	Owner string
	Body  any
}

// Collections is the store capability every service is written against.
type Collections interface {
	Create(ctx context.Context, collection string, doc Doc) (string, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Replace(ctx context.Context, collection, id string, body any) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]Record, error)

	// Atomic runs fn in a single transaction. Calls made on a Collections
	// already inside a transaction join it.
	Atomic(ctx context.Context, fn func(Collections) error) error

	// AfterCommit runs fn once the enclosing transaction commits and drops
	// it on rollback. Outside a transaction fn runs immediately.
	AfterCommit(fn func())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store manages the SQLite database.
type Store struct {
	db *sql.DB
	ops
}

var _ Collections = (*Store)(nil)

// Open opens or creates the database at cfg.Path and creates the schema if
// it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = types.DefaultConfig().Store.Path
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers; every composite write is a transaction.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, ops: ops{q: db, clock: time.Now}}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SetClock replaces the time source used for document timestamps.
func (s *Store) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(collection, owner)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Atomic runs fn inside a transaction; any error rolls every write back.
func (s *Store) Atomic(ctx context.Context, fn func(Collections) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	tc := &txCollections{ops: ops{q: tx, clock: s.clock}}
	if err := fn(tc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	for _, hook := range tc.committed {
		hook()
	}
	return nil
}

// AfterCommit runs fn now; the store itself has nothing pending.
func (s *Store) AfterCommit(fn func()) { fn() }

type txCollections struct {
	ops
	committed []func()
}

func (t *txCollections) Atomic(_ context.Context, fn func(Collections) error) error {
	return fn(t)
}

func (t *txCollections) AfterCommit(fn func()) {
	t.committed = append(t.committed, fn)
}

// ops implements the document operations over either the database or a
// transaction.
type ops struct {
	q     execer
	clock func() time.Time
}

func (o ops) now() string {
	return o.clock().UTC().Format(timeLayout)
}

func (o ops) Create(ctx context.Context, collection string, doc Doc) (string, error) {
	id := doc.ID
	if id == "" {
		id = uuid.NewString()
	}
	body, err := json.Marshal(doc.Body)
	if err != nil {
		return "", fmt.Errorf("encoding %s document: %w", collection, err)
	}
	now := o.now()
	res, err := o.q.ExecContext(ctx,
		`INSERT INTO documents (collection, id, owner, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO NOTHING`,
		collection, id, doc.Owner, string(body), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("inserting %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
	}
	return id, nil
}

func (o ops) Get(ctx context.Context, collection, id string) (Record, error) {
	row := o.q.QueryRowContext(ctx,
		`SELECT collection, id, owner, body, created_at, updated_at
		 FROM documents WHERE collection = ? AND id = ?`, collection, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("reading %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

// Update merges fields into the stored body (JSON merge patch: a nil value
// removes the key).
func (o ops) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding patch for %s/%s: %w", collection, id, err)
	}
	res, err := o.q.ExecContext(ctx,
		`UPDATE documents SET body = json_patch(body, ?), updated_at = ?
		 WHERE collection = ? AND id = ?`,
		string(patch), o.now(), collection, id,
	)
	return checkAffected(res, err, collection, id)
}

func (o ops) Replace(ctx context.Context, collection, id string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", collection, id, err)
	}
	res, err := o.q.ExecContext(ctx,
		`UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(data), o.now(), collection, id,
	)
	return checkAffected(res, err, collection, id)
}

func (o ops) Delete(ctx context.Context, collection, id string) error {
	res, err := o.q.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	return checkAffected(res, err, collection, id)
}

func (o ops) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	stmt, args, err := q.build(collection)
	if err != nil {
		return nil, err
	}
	rows, err := o.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", collection, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func checkAffected(res sql.Result, err error, collection, id string) error {
	if err != nil {
		return fmt.Errorf("writing %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		rec              Record
		body             string
		created, updated string
	)
	if err := s.Scan(&rec.Collection, &rec.ID, &rec.Owner, &body, &created, &updated); err != nil {
		return Record{}, err
	}
	rec.Body = json.RawMessage(body)
	rec.CreatedAt, _ = time.Parse(timeLayout, created)
	rec.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return rec, nil
}

// Op is a query condition operator.
type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpLt       Op = "lt"
	OpGt       Op = "gt"
	OpLike     Op = "like"
	OpContains Op = "contains"
)

// Cond compares a top-level or dotted JSON field of the body with Value.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Eq matches documents whose field equals v.
func Eq(field string, v any) Cond { return Cond{Field: field, Op: OpEq, Value: v} }

// Ne matches documents whose field differs from v.
func Ne(field string, v any) Cond { return Cond{Field: field, Op: OpNe, Value: v} }

// Contains matches documents whose array field holds v.
func Contains(field string, v any) Cond { return Cond{Field: field, Op: OpContains, Value: v} }

// Like matches documents whose field matches the SQL LIKE pattern v.
func Like(field, pattern string) Cond { return Cond{Field: field, Op: OpLike, Value: pattern} }

// Query selects documents of one collection.
type Query struct {
	// Owner restricts results to documents created with this owner.
	Owner string

	// Where conditions are combined with AND.
	Where []Cond

	// OrderBy is "created_at", "updated_at" or a body field. Empty orders by
	// creation, oldest first.
	OrderBy string
	Desc    bool

	// Limit caps the result count; zero means no limit.
	Limit int
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func jsonPath(field string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("field %q: %w", field, ErrInvalidQuery)
	}
	return "$." + field, nil
}

func (q Query) build(collection string) (string, []any, error) {
	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT collection, id, owner, body, created_at, updated_at
		FROM documents WHERE collection = ?`)
	args = append(args, collection)

	if q.Owner != "" {
		qb.WriteString(` AND owner = ?`)
		args = append(args, q.Owner)
	}

	for _, c := range q.Where {
		path, err := jsonPath(c.Field)
		if err != nil {
			return "", nil, err
		}
		switch c.Op {
		case OpEq:
			qb.WriteString(` AND json_extract(body, ?) = ?`)
		case OpNe:
			qb.WriteString(` AND (json_extract(body, ?) IS NULL OR json_extract(body, ?) != ?)`)
			args = append(args, path)
		case OpLt:
			qb.WriteString(` AND json_extract(body, ?) < ?`)
		case OpGt:
			qb.WriteString(` AND json_extract(body, ?) > ?`)
		case OpLike:
			qb.WriteString(` AND json_extract(body, ?) LIKE ?`)
		case OpContains:
			qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(body, ?) WHERE value = ?)`)
		default:
			return "", nil, fmt.Errorf("operator %q: %w", c.Op, ErrInvalidQuery)
		}
		args = append(args, path, c.Value)
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	switch q.OrderBy {
	case "", "created_at":
		qb.WriteString(` ORDER BY seq ` + dir)
	case "updated_at":
		qb.WriteString(` ORDER BY updated_at ` + dir + `, seq ` + dir)
	default:
		path, err := jsonPath(q.OrderBy)
		if err != nil {
			return "", nil, err
		}
		qb.WriteString(` ORDER BY json_extract(body, ?) ` + dir + `, seq ASC`)
		args = append(args, path)
	}

	if q.Limit > 0 {
		qb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}
	return qb.String(), args, nil
}

// Decode unmarshals a record body into T.
func Decode[T any](rec Record) (T, error) {
	var v T
	if err := json.Unmarshal(rec.Body, &v); err != nil {
		return v, fmt.Errorf("decoding %s/%s: %w", rec.Collection, rec.ID, err)
	}
	return v, nil
}

// GetAs reads one document and decodes it into T.
func GetAs[T any](ctx context.Context, c Collections, collection, id string) (T, error) {
	rec, err := c.Get(ctx, collection, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](rec)
}

// QueryAs runs q and decodes every matching document into T. The result is
// never nil.
func QueryAs[T any](ctx context.Context, c Collections, collection string, q Query) ([]T, error) {
	records, err := c.Query(ctx, collection, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
