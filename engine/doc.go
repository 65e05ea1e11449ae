// Package engine owns the connection to the SQLite host engine and hands out
// Handles that background goroutines use to write callback rows.
//
// A Session is the owner. It opens a database/sql pool on a private
// go-sqlite3 driver whose ConnectHook installs the caller's extension on
// every new connection. A Handle is a small copyable value referencing the
// Session; each use re-materializes an independent pool connection, so two
// uses never share an in-flight transaction.
//
// Handles do not keep the Session alive. Once Session.Close has been called
// every Handle operation fails with ErrSessionClosed instead of touching a
// closed database.
package engine
