package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver ("sqlite3")
	_ "modernc.org/sqlite"          // pure Go SQLite driver ("sqlite")
)

// Driver names accepted by SQLiteBackendConfig.Driver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// SQLiteBackend is a durable Backend stored in a single SQLite file.
// Store order is tracked with a monotonically increasing sequence column
// so FIFO eviction is stable even when timestamps collide.
type SQLiteBackend struct {
	db                 *sql.DB
	path               string
	opts               BackendOptions
	checkpointInterval time.Duration
	logger             *slog.Logger
	done               chan struct{}
	mu                 sync.RWMutex
	closeOnce          sync.Once

	getStmt    *sql.Stmt
	putStmt    *sql.Stmt
	deleteStmt *sql.Stmt
	expireStmt *sql.Stmt
	listStmt   *sql.Stmt
	countStmt  *sql.Stmt
	evictStmt  *sql.Stmt
	sweepStmt  *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// Path is the database file. ":memory:" is accepted for tests.
	Path string

	// Driver selects the database/sql driver: "sqlite" (default) or "sqlite3".
	Driver string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration
}

// NewSQLiteBackend opens (or creates) the cache database.
func NewSQLiteBackend(cfg SQLiteBackendConfig, opts BackendOptions) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverMattn {
		return nil, fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer. One long-lived connection also
	// keeps the per-connection pragmas below in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteBackend{
		db:                 db,
		path:               cfg.Path,
		opts:               opts.withDefaults(),
		checkpointInterval: cfg.CheckpointInterval,
		logger:             slog.Default().With("component", "cache.sqlite", "driver", cfg.Driver),
		done:               make(chan struct{}),
	}

	pragmas := fmt.Sprintf(`
	PRAGMA journal_mode=WAL;
	PRAGMA synchronous=NORMAL;
	PRAGMA busy_timeout=%d;
	`, cfg.BusyTimeout.Milliseconds())
	if _, err := db.Exec(pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go s.checkpointLoop()

	s.logger.Info("sqlite cache opened", "path", cfg.Path, "max_entries", s.opts.MaxEntries)
	return s, nil
}

func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		stored_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cache_entries_seq ON cache_entries(seq);
	CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.getStmt, err = s.db.Prepare(`
		SELECT value, expires_at FROM cache_entries WHERE key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.putStmt, err = s.db.Prepare(`
		INSERT INTO cache_entries (key, value, stored_at, expires_at, seq)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM cache_entries))
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at,
			seq = excluded.seq
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare put statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`
		DELETE FROM cache_entries WHERE key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.expireStmt, err = s.db.Prepare(`
		DELETE FROM cache_entries WHERE key = ? AND expires_at <= ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare expire statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT key FROM cache_entries
		WHERE instr(key, ?) = 1 AND expires_at > ?
		ORDER BY seq ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	s.countStmt, err = s.db.Prepare(`
		SELECT COUNT(*) FROM cache_entries
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare count statement: %w", err)
	}

	s.evictStmt, err = s.db.Prepare(`
		DELETE FROM cache_entries
		WHERE key IN (SELECT key FROM cache_entries ORDER BY seq ASC LIMIT ?)
		RETURNING key
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare evict statement: %w", err)
	}

	s.sweepStmt, err = s.db.Prepare(`
		DELETE FROM cache_entries WHERE expires_at <= ? RETURNING key
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare sweep statement: %w", err)
	}

	return nil
}

// Get returns the value for key. An expired row is deleted before reporting a miss.
func (s *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.isClosed() {
		return nil, false, ErrClosed
	}

	s.mu.RLock()
	var (
		value     []byte
		expiresAt int64
	)
	err := s.getStmt.QueryRowContext(ctx, key).Scan(&value, &expiresAt)
	s.mu.RUnlock()

	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get entry: %w", err)
	}

	if now := s.opts.Now().UnixNano(); now >= expiresAt {
		removed, err := s.deleteExpired(ctx, key, now)
		if err != nil {
			s.logger.Warn("failed to remove expired entry", "key", key, "error", err)
		} else if removed {
			s.opts.OnEvict(key, EvictExpired)
		}
		return nil, false, nil
	}

	return value, true, nil
}

// Put upserts key and trims the oldest rows past MaxEntries in one transaction.
func (s *SQLiteBackend) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return nil
	}
	if s.isClosed() {
		return ErrClosed
	}

	now := s.opts.Now()

	s.mu.Lock()
	evicted, err := s.putLocked(ctx, key, value, now, now.Add(ttl))
	s.mu.Unlock()
	if err != nil {
		return err
	}

	for _, k := range evicted {
		s.opts.OnEvict(k, EvictCapacity)
	}
	return nil
}

func (s *SQLiteBackend) putLocked(ctx context.Context, key string, value []byte, storedAt, expiresAt time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.StmtContext(ctx, s.putStmt).ExecContext(ctx,
		key, value, storedAt.UnixNano(), expiresAt.UnixNano(),
	); err != nil {
		return nil, fmt.Errorf("failed to put entry: %w", err)
	}

	var evicted []string
	if s.opts.MaxEntries > 0 {
		var count int
		if err := tx.StmtContext(ctx, s.countStmt).QueryRowContext(ctx).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count entries: %w", err)
		}

		if excess := count - s.opts.MaxEntries; excess > 0 {
			evicted, err = collectKeys(tx.StmtContext(ctx, s.evictStmt).QueryContext(ctx, excess))
			if err != nil {
				return nil, fmt.Errorf("failed to evict entries: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit put: %w", err)
	}
	return evicted, nil
}

// List returns live keys with the given prefix in store order.
func (s *SQLiteBackend) List(ctx context.Context, prefix string) ([]string, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := collectKeys(s.listStmt.QueryContext(ctx, prefix, s.opts.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// Delete removes key if present.
func (s *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.deleteStmt.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// deleteExpired removes key only while its row is still expired at now, so
// a fresh value written after the read survives.
func (s *SQLiteBackend) deleteExpired(ctx context.Context, key string, now int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.expireStmt.ExecContext(ctx, key, now)
	if err != nil {
		return false, fmt.Errorf("failed to delete expired entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Len returns the number of stored rows.
func (s *SQLiteBackend) Len(ctx context.Context) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.countStmt.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// Sweep deletes every expired row.
func (s *SQLiteBackend) Sweep(ctx context.Context) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}

	s.mu.Lock()
	expired, err := collectKeys(s.sweepStmt.QueryContext(ctx, s.opts.Now().UnixNano()))
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("failed to sweep entries: %w", err)
	}

	for _, k := range expired {
		s.opts.OnEvict(k, EvictExpired)
	}
	return len(expired), nil
}

// Ping verifies the database is reachable.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close releases the database. Close is idempotent.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		defer s.mu.Unlock()

		for _, stmt := range []*sql.Stmt{
			s.getStmt, s.putStmt, s.deleteStmt, s.expireStmt, s.listStmt,
			s.countStmt, s.evictStmt, s.sweepStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}

		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		closeErr = s.db.Close()
	})

	return closeErr
}

func (s *SQLiteBackend) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

func collectKeys(rows *sql.Rows, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
