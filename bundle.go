package fluxbuf

import (
	"database/sql"

	"github.com/petrijr/fluxbuf/internal/persistence"
)

// NewSQLiteRunner constructs a LocalRunner whose buffer history is persisted
// in db. Buffer contents stay in memory; only the event history is durable.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:fluxbuf.db?_journal=WAL")
//	runner, err := fluxbuf.NewSQLiteRunner(db)
//	// create buffers with runner.Do, submit completions with runner.Submit
//	// read the history back with fluxbuf.NewSQLiteEventStore(db)
func NewSQLiteRunner(db *sql.DB, opts ...Option) (*LocalRunner, error) {
	store, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, err
	}
	return NewLocalRunner(append(opts, WithEventStore(store))...), nil
}
