// Package tcpserver turns inbound TCP traffic into rows in host tables.
//
// Every listener runs its own accept goroutine; every accepted connection
// gets its own reader goroutine. The accept goroutine registers the
// connection, writes the connect row and only then starts the reader, so a
// connection's connect row always precedes its data rows. Data rows are
// written one per byte in wire order.
package tcpserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sort"
	"sync/atomic"

	"github.com/cyberinferno/go-sqlio/engine"
	"github.com/cyberinferno/go-sqlio/logger"
	"github.com/cyberinferno/go-sqlio/registry"
	"github.com/cyberinferno/go-sqlio/token"
)

var (
	// ErrInvalidAddress is returned by Listen for addresses that are not a
	// literal "ip:port".
	ErrInvalidAddress = errors.New("invalid listen address")
	// ErrBind is returned by Listen when the socket cannot be bound.
	ErrBind = errors.New("bind failed")
	// ErrTokenNotFound is returned by Send for tokens with no live
	// connection.
	ErrTokenNotFound = registry.ErrNotFound
)

// Server accepts connections on any number of listeners and reports them to
// the host engine. Listeners cannot be stopped once started; a listener ends
// only when accepting or writing its connect row fails.
type Server struct {
	Logger   logger.Logger
	Registry *registry.Registry[*Conn]
	Engine   engine.Handle

	acceptSeq atomic.Uint64
}

// NewServer creates a Server that keeps connections in reg and writes
// callback rows through h.
//
// Parameters:
//   - reg: The registry that owns accepted connections
//   - h: Handle used by accept and reader goroutines
//   - log: Logger for background failures; nil means logger.Nop()
//
// Returns:
//   - A new Server with no listeners
func NewServer(reg *registry.Registry[*Conn], h engine.Handle, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	return &Server{
		Logger:   log,
		Registry: reg,
		Engine:   h,
	}
}

// Listen binds address and starts accepting in a new goroutine. It returns
// as soon as the socket is bound.
//
// For each accepted connection the server runs
//
//	INSERT INTO <connectTable> (token, remote_addr) VALUES (?, ?)
//
// and for each byte received on it
//
//	INSERT INTO <dataTable> (token, byte) VALUES (?, ?)
//
// Table names are not checked until the first insert.
//
// Parameters:
//   - address: Literal "ip:port"; port 0 picks a free port
//   - connectTable: Table receiving one row per accepted connection
//   - dataTable: Table receiving one row per received byte
//
// Returns:
//   - The bound address
//   - An error wrapping ErrInvalidAddress or ErrBind
func (s *Server) Listen(address, connectTable, dataTable string) (net.Addr, error) {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}

	ln, err := net.ListenTCP("tcp", net.TCPAddrFromAddrPort(ap))
	if err != nil {
		return nil, fmt.Errorf("%w on %s: %w", ErrBind, address, err)
	}

	l := &listener{
		server:     s,
		ln:         ln,
		connectSQL: fmt.Sprintf("INSERT INTO %s (token, remote_addr) VALUES (?, ?)", connectTable),
		dataSQL:    fmt.Sprintf("INSERT INTO %s (token, byte) VALUES (?, ?)", dataTable),
		log:        s.Logger.With(logger.Field{Key: "listen", Value: ln.Addr().String()}),
	}

	l.log.Info("listener started",
		logger.Field{Key: "connect_table", Value: connectTable},
		logger.Field{Key: "data_table", Value: dataTable},
	)
	go l.acceptLoop()

	return ln.Addr(), nil
}

// Send writes data to the connection registered under t. The registry's
// exclusive lock is held for the whole write, so a slow peer delays every
// other Send and every new connection.
//
// Returns:
//   - An error wrapping ErrTokenNotFound, or the write error
func (s *Server) Send(t token.Token, data []byte) error {
	return s.Registry.With(t, func(c *Conn) error {
		if err := c.Send(data); err != nil {
			return fmt.Errorf("write to %s: %w", t, err)
		}

		return nil
	})
}

// Connections returns the live connections in accept order.
func (s *Server) Connections() []ConnInfo {
	type entry struct {
		info ConnInfo
		seq  uint64
	}

	var entries []entry
	s.Registry.Range(func(t token.Token, c *Conn) bool {
		entries = append(entries, entry{
			info: ConnInfo{Token: t, RemoteAddr: c.remote.String(), Accepted: c.accepted},
			seq:  c.seq,
		})
		return true
	})

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]ConnInfo, len(entries))
	for i, e := range entries {
		out[i] = e.info
	}

	return out
}

// CloseConnections removes every live connection from the registry and
// closes its socket. Listeners keep running.
//
// Returns:
//   - The number of connections closed
func (s *Server) CloseConnections() int {
	n := 0
	for _, t := range s.Registry.Tokens() {
		if c, ok := s.Registry.Remove(t); ok {
			_ = c.Close()
			n++
		}
	}

	if n > 0 {
		s.Logger.Info("connections closed", logger.Field{Key: "count", Value: n})
	}
	return n
}

// drop forgets t and closes its socket.
func (s *Server) drop(t token.Token) {
	if c, ok := s.Registry.Remove(t); ok {
		_ = c.Close()
	}
}

// listener is the state of one accept goroutine.
type listener struct {
	server     *Server
	ln         *net.TCPListener
	connectSQL string
	dataSQL    string
	log        logger.Logger
}

// acceptLoop accepts until the first error. Accept errors and connect row
// failures both end the listener.
func (l *listener) acceptLoop() {
	defer func() { _ = l.ln.Close() }()

	s := l.server
	for {
		nc, err := l.ln.Accept()
		if err != nil {
			l.log.Error("accept failed, listener stopped", logger.Err(err))
			return
		}

		c := newConn(nc, s.acceptSeq.Add(1))
		t := s.Registry.Allocate(c)
		remote := c.remote.String()
		l.log.Debug("connection accepted",
			logger.Field{Key: "token", Value: t.String()},
			logger.Field{Key: "remote_addr", Value: remote},
		)

		if _, err := s.Engine.Exec(s.Engine.Context(), l.connectSQL, t.String(), remote); err != nil {
			l.log.Error("connect callback failed, listener stopped",
				logger.Field{Key: "token", Value: t.String()},
				logger.Err(err),
			)
			s.drop(t)
			return
		}

		go l.readLoop(t, c)
	}
}

// readLoop writes one data row per received byte until the peer closes,
// a read fails or a row cannot be written. The connection is then removed
// from the registry.
func (l *listener) readLoop(t token.Token, c *Conn) {
	s := l.server
	log := l.log.With(logger.Field{Key: "token", Value: t.String()})
	defer s.drop(t)

	tok := t.String()
	r := bufio.NewReader(c.conn)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				log.Debug("connection closed")
			} else {
				log.Warn("read failed", logger.Err(err))
			}
			return
		}

		if _, err := s.Engine.Exec(s.Engine.Context(), l.dataSQL, tok, int64(b)); err != nil {
			log.Error("data callback failed, reader stopped", logger.Err(err))
			return
		}
	}
}
