// Package inventory persists server records in a local SQLite database.
//
// The store is the only component that writes records. Every write runs in a
// transaction on a single pooled connection, so a reader never observes a
// half-written row and concurrent callers are serialized by the pool.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/treykane/termgrid/internal/errs"
	"github.com/treykane/termgrid/internal/logging"
	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/query"
)

const timeFormat = time.RFC3339Nano

const selectColumns = `id, name, host, protocol, username, port, os, tags, notes, "group", created_at, updated_at`

// Store is an open inventory database.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes Open.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the inventory at path and brings its schema
// up to date. Every failure is a *errs.StorageError.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errs.NewStorageError("open", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.NewStorageError("open", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errs.NewStorageError("open", path, fmt.Errorf("%s: %w", pragma, err))
		}
	}

	s := newStore(db, path, opts...)
	adopted, err := adoptLegacy(ctx, db)
	if err != nil {
		db.Close()
		return nil, errs.NewStorageError("open", path, err)
	}
	if adopted {
		s.logger.Info("adopted existing inventory", "path", path)
	}
	if err := runMigrations(path); err != nil {
		db.Close()
		return nil, errs.NewStorageError("migrate", path, err)
	}
	s.logger.Debug("inventory opened", "path", path)
	return s, nil
}

func newStore(db *sql.DB, path string, opts ...Option) *Store {
	s := &Store{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.Default(s.logger).With("component", "inventory")
	return s
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add validates r and inserts it, returning the assigned ID. Nothing is
// written when validation fails.
func (s *Store) Add(ctx context.Context, r model.ServerRecord) (int64, error) {
	r = model.Normalize(r)
	if err := model.Validate(r); err != nil {
		return 0, err
	}
	now := s.now().UTC().Format(timeFormat)

	var id int64
	err := s.withTx(ctx, "add", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO servers (name, host, protocol, username, port, os, tags, notes, "group", created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Name, r.Host, string(r.Protocol), r.Username, r.Port, string(r.OS),
			model.JoinTags(r.Tags), r.Notes, r.Group, now, now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("record added", "id", id, "protocol", r.Protocol)
	return id, nil
}

// Get returns the record with id, or *errs.NotFoundError.
func (s *Store) Get(ctx context.Context, id int64) (model.ServerRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM servers WHERE id = ?", id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ServerRecord{}, errs.NewNotFoundError(id)
	}
	if err != nil {
		return model.ServerRecord{}, errs.NewStorageError("get", s.path, err)
	}
	return r, nil
}

// Update replaces every mutable field of record id with those of r. The ID
// and creation time are kept.
func (s *Store) Update(ctx context.Context, id int64, r model.ServerRecord) error {
	r = model.Normalize(r)
	if err := model.Validate(r); err != nil {
		return err
	}
	now := s.now().UTC().Format(timeFormat)

	var missing bool
	err := s.withTx(ctx, "update", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE servers SET
				name = ?, host = ?, protocol = ?, username = ?, port = ?, os = ?,
				tags = ?, notes = ?, "group" = ?, updated_at = ?
			WHERE id = ?`,
			r.Name, r.Host, string(r.Protocol), r.Username, r.Port, string(r.OS),
			model.JoinTags(r.Tags), r.Notes, r.Group, now, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		missing = n == 0
		return nil
	})
	if err != nil {
		return err
	}
	if missing {
		return errs.NewNotFoundError(id)
	}
	s.logger.Debug("record updated", "id", id)
	return nil
}

// Delete removes record id. Deleting an absent record succeeds.
func (s *Store) Delete(ctx context.Context, id int64) error {
	err := s.withTx(ctx, "delete", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM servers WHERE id = ?", id)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Debug("record deleted", "id", id)
	return nil
}

// List returns the records selected by p.
func (s *Store) List(ctx context.Context, p query.Params) ([]model.ServerRecord, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return query.Apply(all, p), nil
}

// All returns every record in ID order, without filtering.
func (s *Store) All(ctx context.Context) ([]model.ServerRecord, error) {
	return s.all(ctx)
}

func (s *Store) all(ctx context.Context) ([]model.ServerRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+" FROM servers ORDER BY id")
	if err != nil {
		return nil, errs.NewStorageError("list", s.path, err)
	}
	defer rows.Close()

	var out []model.ServerRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errs.NewStorageError("list", s.path, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewStorageError("list", s.path, err)
	}
	return out, nil
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM servers").Scan(&n); err != nil {
		return 0, errs.NewStorageError("count", s.path, err)
	}
	return n, nil
}

// IntegrityCheck runs SQLite's integrity check and returns its findings; a
// healthy database yields nil.
func (s *Store) IntegrityCheck(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, errs.NewStorageError("integrity_check", s.path, err)
	}
	defer rows.Close()

	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, errs.NewStorageError("integrity_check", s.path, err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewStorageError("integrity_check", s.path, err)
	}
	return problems, nil
}

// SchemaVersion returns the applied migration version and its dirty flag.
func (s *Store) SchemaVersion(ctx context.Context) (int, bool, error) {
	var (
		version int
		dirty   bool
	)
	err := s.db.QueryRowContext(ctx, "SELECT version, dirty FROM schema_migrations LIMIT 1").Scan(&version, &dirty)
	if err != nil {
		return 0, false, errs.NewStorageError("schema_version", s.path, err)
	}
	return version, dirty, nil
}

func (s *Store) withTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewStorageError(op, s.path, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return errs.NewStorageError(op, s.path, err)
	}
	if err := tx.Commit(); err != nil {
		return errs.NewStorageError(op, s.path, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.ServerRecord, error) {
	var (
		r                    model.ServerRecord
		proto, osTag         string
		tags, notes, group   sql.NullString
		createdAt, updatedAt sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &r.Host, &proto, &r.Username, &r.Port, &osTag,
		&tags, &notes, &group, &createdAt, &updatedAt)
	if err != nil {
		return model.ServerRecord{}, err
	}
	r.Protocol = model.Protocol(proto)
	r.OS = model.OSTag(osTag)
	if parsed, err := model.ParseOS(osTag); err == nil {
		r.OS = parsed
	}
	r.Tags = model.SplitTags(tags.String)
	r.Notes = notes.String
	r.Group = group.String
	r.CreatedAt = parseTime(createdAt.String)
	r.UpdatedAt = parseTime(updatedAt.String)
	return r, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
