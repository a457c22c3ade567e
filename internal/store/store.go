// Package store stages accounting records on the local disk until the central
// service has acknowledged them.
//
// The backing file is a SQLite database in WAL mode. Several collector
// processes may open the same path at once: writers are serialized by SQLite's
// file locks (waiting up to BusyTimeout), readers proceed concurrently, and a
// writer that dies mid-transaction leaves committed entries untouched.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chrisconley/auditor-collector/specs"
	_ "modernc.org/sqlite"
)

// BusyTimeout bounds how long a writer waits for another process's write lock.
const BusyTimeout = 30 * time.Second

var ErrNotFound = errors.New("no staged entry with this id")

var ErrInvalidPath = errors.New("invalid store path")

// Entry is one staged record.
type Entry struct {
	ID       string
	Record   specs.RecordSpec
	StagedAt time.Time

	// Set when the central service refused the record; such entries are
	// left for an operator and not retried.
	Rejection *Rejection

	// Set when the stored bytes could not be decoded. Record is zero then.
	Err error
}

type Rejection struct {
	Reason string
	At     time.Time
}

func (e Entry) Flagged() bool {
	return e.Rejection != nil
}

type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// CheckPath rejects paths that cannot be carried in a SQLite URI filename,
// where '?' starts the options and '#' a fragment.
func CheckPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidPath, path, path[i])
	}
	return nil
}

// Open opens or creates the store at path and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := CheckPath(path); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_txlock=immediate",
		path, BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store %s: %w", path, err)
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

func (s *Store) Path() string {
	return s.path
}

// Put stages a record under id. Staging an id that is already present is a
// no-op: the existing entry, flagged or not, is kept.
func (s *Store) Put(ctx context.Context, id string, record specs.RecordSpec) error {
	data, err := Encode(record)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, record, staged_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, data, s.now().Unix())
	if err != nil {
		return fmt.Errorf("stage record %q: %w", id, err)
	}
	return nil
}

// List returns every staged entry, flagged ones included. The order carries
// no meaning.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, `SELECT id, record, staged_at, rejected_reason, rejected_at FROM records ORDER BY staged_at, id`)
}

// Pending returns the entries that are eligible for delivery.
func (s *Store) Pending(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, `SELECT id, record, staged_at, rejected_reason, rejected_at FROM records WHERE rejected_reason IS NULL ORDER BY staged_at, id`)
}

func (s *Store) query(ctx context.Context, q string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list staged records: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			id         string
			data       []byte
			stagedAt   int64
			reason     sql.NullString
			rejectedAt sql.NullInt64
		)
		if err := rows.Scan(&id, &data, &stagedAt, &reason, &rejectedAt); err != nil {
			return nil, fmt.Errorf("scan staged record: %w", err)
		}
		entry := Entry{ID: id, StagedAt: time.Unix(stagedAt, 0).UTC()}
		if reason.Valid {
			entry.Rejection = &Rejection{Reason: reason.String, At: time.Unix(rejectedAt.Int64, 0).UTC()}
		}
		entry.Record, entry.Err = Decode(data)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list staged records: %w", err)
	}
	return entries, nil
}

// Delete removes a staged entry. Deleting an id that is not present is not an
// error; another collector may have delivered it first.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete staged record %q: %w", id, err)
	}
	return nil
}

// Flag marks an entry as rejected so that it is no longer offered for delivery.
func (s *Store) Flag(ctx context.Context, id, reason string) error {
	return s.update(ctx, id, `UPDATE records SET rejected_reason = ?, rejected_at = ? WHERE id = ?`, reason, s.now().Unix(), id)
}

// Unflag clears a rejection so the next flush retries the entry.
func (s *Store) Unflag(ctx context.Context, id string) error {
	return s.update(ctx, id, `UPDATE records SET rejected_reason = NULL, rejected_at = NULL WHERE id = ?`, id)
}

func (s *Store) update(ctx context.Context, id, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update staged record %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update staged record %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update staged record %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
