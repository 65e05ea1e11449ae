package engine

import (
	"context"
	"database/sql"
	"fmt"
)

// Handle is a copyable capability referencing a Session. It may be passed to
// and used from any goroutine. A Handle does not extend the Session's
// lifetime: after Session.Close every method returns ErrSessionClosed.
type Handle struct {
	s *Session
}

// Valid reports whether the handle refers to an open session.
func (h Handle) Valid() bool {
	if h.s == nil {
		return false
	}

	h.s.mu.RLock()
	defer h.s.mu.RUnlock()
	return !h.s.closed
}

// Context returns a context that is cancelled when the session closes.
// Background goroutines use it for their Handle calls.
func (h Handle) Context() context.Context {
	if h.s == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	return h.s.ctx
}

// Conn materializes an independent connection to the host engine. The
// caller must Close it; while it is held it occupies one pool slot.
//
// Returns:
//   - A dedicated *sql.Conn
//   - ErrSessionClosed if the session is closed, or the pool's error
func (h Handle) Conn(ctx context.Context) (*sql.Conn, error) {
	if h.s == nil {
		return nil, ErrSessionClosed
	}
	if err := h.s.acquire(); err != nil {
		return nil, err
	}
	defer h.s.mu.RUnlock()

	conn, err := h.s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("materialize connection: %w", err)
	}

	return conn, nil
}

// Exec runs one statement against the host engine on whichever pool
// connection is free, reusing a cached prepared statement for query.
//
// Parameters:
//   - ctx: Context for cancellation
//   - query: The SQL statement
//   - args: Bind parameters
//
// Returns:
//   - The statement result
//   - ErrSessionClosed if the session is closed, or the engine's error
func (h Handle) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if h.s == nil {
		return nil, ErrSessionClosed
	}
	if err := h.s.acquire(); err != nil {
		return nil, err
	}
	defer h.s.mu.RUnlock()

	stmt, err := h.s.stmts.get(ctx, query)
	if err != nil {
		return nil, err
	}

	return stmt.ExecContext(ctx, args...)
}
