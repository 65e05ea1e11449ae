// Package sink implements push-triggered virtual tables on top of
// go-sqlite3's virtual table modules.
//
// A sink is a table whose INSERTs run a side effect (OnInsert) and whose
// SELECTs enumerate a snapshot computed on demand (Get). UPDATE and DELETE
// are rejected for every row SQLite visits; against a sink that enumerates
// as empty they visit nothing and succeed with 0 rows changed.
//
// Each sink is registered as an eponymous-only module, so the table exists
// in every connection under the module's name without a CREATE VIRTUAL
// TABLE statement:
//
//	INSERT INTO timer VALUES (50, 'events', 'tick');
//	SELECT * FROM tcp_connections;
//
// go-sqlite3 only compiles virtual table support with the sqlite_vtable
// build tag.
package sink

import (
	"errors"
	"fmt"

	"github.com/cyberinferno/go-sqlio/engine"
	"github.com/cyberinferno/go-sqlio/logger"
)

var (
	// ErrUnsupported is returned for UPDATE and DELETE against a sink.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrInvalidArgument is returned when an inserted row does not have the
	// shape a sink expects.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Context is what a sink constructor receives: the engine it may write back
// into and a logger scoped to the sink.
type Context struct {
	Handle engine.Handle
	Logger logger.Logger
}

// Sink is the push side of a sink table.
type Sink interface {
	// OnInsert runs once per row inserted into the table. A returned error
	// fails the INSERT statement.
	OnInsert(row Row) error
}

// Getter is the optional pull side of a sink table. Sinks that do not
// implement it enumerate as empty.
type Getter interface {
	// Get returns the rows a SELECT should see, in order. It is called once
	// per enumeration; the result is never mutated afterwards.
	Get() ([]Row, error)
}

// Definition declares a sink table.
type Definition struct {
	// Name is both the module name and the table name.
	Name string
	// Columns is the column list of the declared schema, e.g.
	// "contents BLOB, path VARCHAR, ty VARCHAR".
	Columns string
	// New builds the sink for one database connection.
	New func(ctx Context) Sink
}

// Schema returns the CREATE TABLE statement declared to SQLite.
func (d Definition) Schema() string {
	return fmt.Sprintf("CREATE TABLE x(%s)", d.Columns)
}
