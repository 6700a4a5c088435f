package db

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"snipbin/pkg/domain"
)

const (
	circuitClosed   = 0
	circuitOpen     = 1
	circuitHalfOpen = 2
	maxFailures     = 5
	cooldownSeconds = 30
)

const (
	defaultMaxOpenConns = 100
	defaultMaxIdleConns = 10
	defaultQueryTimeout = 5 * time.Second
)

type SQLite struct {
	db            *sql.DB
	failures      int32
	circuitState  int32
	circuitOpened int64
	queryTimeout  time.Duration
}

func (s *SQLite) DB() *sql.DB {
	return s.db
}

func NewSQLite(path string) (*SQLite, error) {
	return NewSQLiteWithConfig(path, defaultMaxOpenConns, defaultMaxIdleConns, defaultQueryTimeout)
}

func NewSQLiteWithConfig(path string, maxOpenConns, maxIdleConns int, queryTimeout time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping db")
	}
	s := &SQLite{
		db:           db,
		queryTimeout: queryTimeout,
	}
	if err := s.migrate(); err != nil {
		return nil, errors.Wrap(err, "migration failed")
	}
	return s, nil
}

func (s *SQLite) checkCircuit() error {
	state := atomic.LoadInt32(&s.circuitState)
	switch state {
	case circuitClosed:
		return nil
	case circuitOpen:
		opened := atomic.LoadInt64(&s.circuitOpened)
		if time.Now().Unix()-opened >= cooldownSeconds {
			if atomic.CompareAndSwapInt32(&s.circuitState, circuitOpen, circuitHalfOpen) {
				return nil
			}
		}
		return domain.ErrStoreUnavailable
	case circuitHalfOpen:
		return nil
	default:
		return nil
	}
}

func (s *SQLite) recordError(err error) {
	if err == nil {
		atomic.StoreInt32(&s.failures, 0)
		atomic.StoreInt32(&s.circuitState, circuitClosed)
		return
	}
	if errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		isConstraintErr(err) {
		return
	}
	failures := atomic.AddInt32(&s.failures, 1)
	if atomic.LoadInt32(&s.circuitState) == circuitHalfOpen {
		atomic.StoreInt32(&s.circuitState, circuitOpen)
		atomic.StoreInt64(&s.circuitOpened, time.Now().Unix())
		atomic.StoreInt32(&s.failures, 0)
		return
	}
	if failures >= maxFailures && atomic.LoadInt32(&s.circuitState) == circuitClosed {
		atomic.StoreInt32(&s.circuitState, circuitOpen)
		atomic.StoreInt64(&s.circuitOpened, time.Now().Unix())
	}
}

func isConstraintErr(err error) bool {
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return errors.Wrap(err, "enable WAL mode")
	}
	_, err = s.db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		return errors.Wrap(err, "set busy timeout")
	}
	_, err = s.db.Exec("PRAGMA synchronous=FULL")
	if err != nil {
		return errors.Wrap(err, "set synchronous mode")
	}
	// seq is the insertion-order tiebreak for recency queries with equal
	// created_at; ids are never reused, so id stays UNIQUE even after
	// soft-delete.
	query := `
	CREATE TABLE IF NOT EXISTS pastes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		body TEXT NOT NULL,
		language TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		views INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_pastes_created_at ON pastes(created_at);
	CREATE INDEX IF NOT EXISTS idx_pastes_visible ON pastes(deleted, created_at);
	`
	_, err = s.db.Exec(query)
	return err
}

// Insert writes a new paste. The UNIQUE constraint on id makes the
// existence check and the insert one atomic operation; a duplicate id
// surfaces as domain.ErrIDConflict for the caller's retry loop.
func (s *SQLite) Insert(ctx context.Context, p *domain.Paste) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `
	INSERT INTO pastes (id, body, language, created_at, deleted, views)
	VALUES (?, ?, ?, ?, 0, 0)
	`
	res, err := s.db.ExecContext(queryCtx, q, p.ID, p.Body, p.Language, p.CreatedAt.UTC())
	s.recordError(err)
	if err != nil {
		if isConstraintErr(err) {
			return domain.ErrIDConflict
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ErrStoreTimeout
		}
		return errors.Wrap(err, "db insert")
	}
	if seq, err := res.LastInsertId(); err == nil {
		p.Seq = seq
	}
	return nil
}

// GetVisible returns the paste only if present and not soft-deleted; a
// deleted row is indistinguishable from an absent one.
func (s *SQLite) GetVisible(ctx context.Context, id string) (*domain.Paste, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `
	SELECT seq, id, body, language, created_at, views
	FROM pastes WHERE id = ? AND deleted = 0
	`
	var p domain.Paste
	err := s.db.QueryRowContext(queryCtx, q, id).Scan(
		&p.Seq, &p.ID, &p.Body, &p.Language, &p.CreatedAt, &p.Views,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPasteNotFound
	}
	s.recordError(err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrStoreTimeout
		}
		return nil, errors.Wrap(err, "db get")
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// ListRecentVisible returns up to limit non-deleted pastes, newest first.
// Equal timestamps order by descending seq so the feed is deterministic.
// A single statement, so the result is a consistent snapshot.
func (s *SQLite) ListRecentVisible(ctx context.Context, limit int) ([]*domain.Paste, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `
	SELECT seq, id, body, language, created_at, views
	FROM pastes WHERE deleted = 0
	ORDER BY created_at DESC, seq DESC
	LIMIT ?
	`
	rows, err := s.db.QueryContext(queryCtx, q, limit)
	s.recordError(err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.ErrStoreTimeout
		}
		return nil, errors.Wrap(err, "db list")
	}
	defer rows.Close()
	var pastes []*domain.Paste
	for rows.Next() {
		var p domain.Paste
		if err := rows.Scan(&p.Seq, &p.ID, &p.Body, &p.Language, &p.CreatedAt, &p.Views); err != nil {
			return nil, errors.Wrap(err, "scan paste")
		}
		p.CreatedAt = p.CreatedAt.UTC()
		pastes = append(pastes, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate pastes")
	}
	return pastes, nil
}

// ExpireOlderThan soft-deletes every visible paste created before cutoff
// and returns how many rows were newly marked. Already-deleted rows are
// untouched, so a repeat call with the same cutoff marks nothing.
func (s *SQLite) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := s.checkCircuit(); err != nil {
		return 0, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `UPDATE pastes SET deleted = 1 WHERE deleted = 0 AND created_at < ?`
	res, err := s.db.ExecContext(queryCtx, q, cutoff.UTC())
	s.recordError(err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, domain.ErrStoreTimeout
		}
		return 0, errors.Wrap(err, "db expire")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return int(n), nil
}

func (s *SQLite) IncrViews(ctx context.Context, id string) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `UPDATE pastes SET views = views + 1 WHERE id = ? AND deleted = 0`
	_, err := s.db.ExecContext(queryCtx, q, id)
	s.recordError(err)
	return errors.Wrap(err, "incr views")
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
