package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/cyberinferno/go-sqlio/logger"
)

// ErrSessionClosed is returned by Handle operations after the owning Session
// has been closed, and by operations on the zero Handle.
var ErrSessionClosed = errors.New("engine session closed")

// Hook installs an extension on a freshly opened driver connection. It is
// called once per pool connection, before the connection is first used.
type Hook func(h Handle, conn *sqlite3.SQLiteConn) error

// Options configures Open.
type Options struct {
	// Path is the SQLite database file, or ":memory:".
	Path string
	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration
	// MaxOpenConns caps the pool. SQLite allows one writer at a time, so 1
	// avoids SQLITE_BUSY entirely at the cost of serializing every write.
	MaxOpenConns int
	// StatementTTL is how long an unused prepared statement stays cached.
	StatementTTL time.Duration
	// Hook, if set, runs on every new driver connection.
	Hook Hook
	// Logger receives session lifecycle events. Nil means logger.Nop().
	Logger logger.Logger
}

// DefaultOptions returns Options for the database at path: 5s busy timeout,
// a single pooled connection and a 10 minute statement TTL.
func DefaultOptions(path string) Options {
	return Options{
		Path:         path,
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
		StatementTTL: 10 * time.Minute,
	}
}

// driverSeq numbers the private drivers registered by Open; database/sql
// panics on duplicate driver names.
var driverSeq atomic.Uint64

// Session owns the host database. It is safe for concurrent use.
type Session struct {
	id     uuid.UUID
	db     *sql.DB
	stmts  *statementCache
	log    logger.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// Open opens the database described by opts with opts.Hook installed on
// every connection, and applies the connection pragmas (WAL journaling,
// NORMAL synchronous, busy timeout, foreign keys).
//
// Parameters:
//   - opts: Database location, pool limits and the extension hook
//
// Returns:
//   - The open Session
//   - An error if the database cannot be opened or the hook fails
func Open(opts Options) (*Session, error) {
	if opts.Path == "" {
		return nil, errors.New("engine: database path is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:     uuid.New(),
		ctx:    ctx,
		cancel: cancel,
	}
	s.log = opts.Logger.With(logger.Field{Key: "session", Value: s.id.String()})

	name := fmt.Sprintf("sqlio-%d", driverSeq.Add(1))
	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if opts.Hook == nil {
				return nil
			}
			return opts.Hook(s.Handle(), conn)
		},
	})

	db, err := sql.Open(name, dsn(opts))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := opts.MaxOpenConns
	if maxConns <= 0 || opts.Path == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	s.db = db
	s.stmts = newStatementCache(db, opts.StatementTTL)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		cancel()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s.log.Info("engine session opened", logger.Field{Key: "path", Value: opts.Path})
	return s, nil
}

// dsn renders the go-sqlite3 data source name. The underscore parameters are
// applied by the driver to every connection it opens.
func dsn(opts Options) string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprintf("%d", opts.BusyTimeout.Milliseconds()))
	q.Set("_foreign_keys", "on")
	if opts.Path != ":memory:" {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}

	return opts.Path + "?" + q.Encode()
}

// ID returns the session's unique identifier, attached to its log entries.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// DB returns the underlying pool for direct queries by the session owner.
func (s *Session) DB() *sql.DB {
	return s.db
}

// Handle returns a copyable reference to the session for use from other
// goroutines.
func (s *Session) Handle() Handle {
	return Handle{s: s}
}

// Close cancels in-flight Handle operations, closes cached statements and the
// database. Handles fail with ErrSessionClosed afterwards. It is safe to
// call multiple times.
func (s *Session) Close() error {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.stmts.close()
	err := s.db.Close()
	s.log.Info("engine session closed")
	return err
}

// acquire takes the shared lock and reports whether the session is still
// open. Callers must call s.mu.RUnlock when acquire returns nil.
func (s *Session) acquire() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrSessionClosed
	}

	return nil
}
