// Package extension wires the sqlio SQL surface into a SQLite session.
//
// Every pool connection gets the scalar functions
//
//	tcp_listen(address, connect_table, data_table)
//	tcp_send(token, data)
//	sqlio_version()
//	read_file(path)
//	write_to_file(path, contents)
//
// and the sink tables timer, write_to_file and tcp_connections. Binaries
// must be built with the sqlite_vtable tag for the sink tables to exist.
package extension

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/cyberinferno/go-sqlio/config"
	"github.com/cyberinferno/go-sqlio/engine"
	"github.com/cyberinferno/go-sqlio/filesink"
	"github.com/cyberinferno/go-sqlio/logger"
	"github.com/cyberinferno/go-sqlio/registry"
	"github.com/cyberinferno/go-sqlio/sink"
	"github.com/cyberinferno/go-sqlio/tcpserver"
	"github.com/cyberinferno/go-sqlio/timer"
	"github.com/cyberinferno/go-sqlio/token"
)

// Version is reported by sqlio_version().
const Version = "0.1.0"

// Extension is an open database with the sqlio functions and sinks
// installed.
type Extension struct {
	session  *engine.Session
	registry *registry.Registry[*tcpserver.Conn]
	log      logger.Logger

	bindOnce sync.Once
	server   *tcpserver.Server
}

// Open opens the database described by cfg and installs the extension on
// every connection.
//
// Parameters:
//   - cfg: Database settings
//   - log: Logger for the session and every background goroutine; nil means
//     logger.Nop()
//
// Returns:
//   - The open Extension
//   - An error if the database cannot be opened or the extension cannot be
//     registered
func Open(cfg config.Database, log logger.Logger) (*Extension, error) {
	if log == nil {
		log = logger.Nop()
	}

	e := &Extension{
		registry: registry.New[*tcpserver.Conn](token.NewRandomGenerator()),
		log:      log,
	}

	s, err := engine.Open(engine.Options{
		Path:         cfg.Path,
		BusyTimeout:  cfg.BusyTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		StatementTTL: cfg.StatementTTL,
		Hook:         e.install,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}
	e.session = s

	return e, nil
}

// bind creates the server on the first connection, when the session's
// Handle first becomes available.
func (e *Extension) bind(h engine.Handle) *tcpserver.Server {
	e.bindOnce.Do(func() {
		e.server = tcpserver.NewServer(e.registry, h, e.log.With(logger.Field{Key: "component", Value: "tcpserver"}))
	})

	return e.server
}

// install is the engine hook run on every new connection.
func (e *Extension) install(h engine.Handle, conn *sqlite3.SQLiteConn) error {
	srv := e.bind(h)

	for _, f := range functions(srv) {
		if err := conn.RegisterFunc(f.Name, f.impl, f.Pure); err != nil {
			return fmt.Errorf("register function %s: %w", f.Name, err)
		}
	}

	return sink.Install(conn, sink.Context{Handle: h, Logger: e.log}, Sinks(srv)...)
}

// DB returns the connection pool. Queries on it see the extension.
func (e *Extension) DB() *sql.DB {
	return e.session.DB()
}

// Handle returns a cross-goroutine handle to the session.
func (e *Extension) Handle() engine.Handle {
	return e.session.Handle()
}

// Server returns the TCP server behind tcp_listen and tcp_send.
func (e *Extension) Server() *tcpserver.Server {
	return e.server
}

// Close closes every live TCP connection and the session. Listeners stop at
// their next accepted connection, when writing its connect row fails.
func (e *Extension) Close() error {
	if e.server != nil {
		e.server.CloseConnections()
	}

	return e.session.Close()
}

// Function describes one scalar function of the SQL surface.
type Function struct {
	Name      string
	Signature string
	Pure      bool

	impl any
}

// Functions lists the scalar functions in registration order.
func Functions() []Function {
	return functions(nil)
}

// Sinks returns the sink definitions backed by srv.
func Sinks(srv *tcpserver.Server) []sink.Definition {
	return []sink.Definition{
		timer.Definition(),
		filesink.Definition(),
		tcpserver.ConnectionsDefinition(srv),
	}
}

func functions(srv *tcpserver.Server) []Function {
	return []Function{
		{
			Name:      "tcp_listen",
			Signature: "tcp_listen(address TEXT, connect_table TEXT, data_table TEXT) -> NULL",
			impl: func(address, connectTable, dataTable string) (any, error) {
				if _, err := srv.Listen(address, connectTable, dataTable); err != nil {
					return nil, err
				}
				return nil, nil
			},
		},
		{
			Name:      "tcp_send",
			Signature: "tcp_send(token TEXT, data BLOB|TEXT) -> NULL",
			impl: func(tok string, data []byte) (any, error) {
				t, err := token.Parse(tok)
				if err != nil {
					return nil, err
				}
				if err := srv.Send(t, data); err != nil {
					return nil, err
				}
				return nil, nil
			},
		},
		{
			Name:      "sqlio_version",
			Signature: "sqlio_version() -> TEXT",
			Pure:      true,
			impl: func() string {
				return Version
			},
		},
		// read_file returns NULL for an empty file: go-sqlite3 maps an empty
		// []byte result to NULL.
		{
			Name:      "read_file",
			Signature: "read_file(path TEXT) -> BLOB",
			impl: func(path string) ([]byte, error) {
				b, err := os.ReadFile(path)
				if err != nil {
					return nil, fmt.Errorf("read %s: %w", path, err)
				}
				return b, nil
			},
		},
		{
			Name:      "write_to_file",
			Signature: "write_to_file(path TEXT, contents BLOB|TEXT) -> NULL",
			impl: func(path string, contents []byte) (any, error) {
				if err := filesink.WriteFile(path, contents, filesink.ModeWrite); err != nil {
					return nil, err
				}
				return nil, nil
			},
		},
	}
}
