package tcpserver

import (
	"fmt"

	"github.com/cyberinferno/go-sqlio/sink"
)

// ConnectionsTable is the name of the introspection table.
const ConnectionsTable = "tcp_connections"

// ConnectionsDefinition exposes the server's live connections as a
// read-only table:
//
//	SELECT token, remote_addr FROM tcp_connections;
func ConnectionsDefinition(s *Server) sink.Definition {
	return sink.Definition{
		Name:    ConnectionsTable,
		Columns: "token VARCHAR, remote_addr VARCHAR",
		New: func(sink.Context) sink.Sink {
			return connectionsSink{server: s}
		},
	}
}

type connectionsSink struct {
	server *Server
}

func (connectionsSink) OnInsert(sink.Row) error {
	return fmt.Errorf("%w: can't INSERT INTO %s", sink.ErrUnsupported, ConnectionsTable)
}

func (c connectionsSink) Get() ([]sink.Row, error) {
	conns := c.server.Connections()
	rows := make([]sink.Row, len(conns))
	for i, info := range conns {
		rows[i] = sink.Row{info.Token.String(), info.RemoteAddr}
	}

	return rows, nil
}
