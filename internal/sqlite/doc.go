// Package sqlite is the embedded storage toolkit for twitlog: a connection
// wrapper with reentrant transactions over a single SQLite file, a small
// INSERT/UPDATE builder, schema introspection, a migration runner that
// backs the file up before changing it, and the Database handle that ties
// them together.
//
// A Conn pins exactly one physical connection. It is not safe for
// concurrent use; nesting happens only through Transaction scopes on one
// goroutine's call stack. Lock contention between separate processes is
// left to the engine and surfaces as a *StatementError.
package sqlite
