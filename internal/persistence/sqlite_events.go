package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/petrijr/fluxbuf/pkg/api"
)

// SQLiteEventStore stores buffer events in SQLite. Entities are stored in
// their "<index>v<generation>" text form. Several runs may share one
// database; rows are told apart by their run column.
type SQLiteEventStore struct {
	db *sql.DB
}

var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS buffer_events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL DEFAULT '',
			run TEXT NOT NULL DEFAULT '',
			session TEXT NOT NULL,
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			buffer TEXT NOT NULL DEFAULT 'none',
			accessor TEXT NOT NULL DEFAULT 'none',
			detail TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return err
	}

	// Tables created before runs were recorded lack the column.
	var hasRun int
	err = s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('buffer_events') WHERE name = 'run'`).Scan(&hasRun)
	if err != nil {
		return fmt.Errorf("inspect buffer_events: %w", err)
	}
	if hasRun == 0 {
		if _, err := s.db.Exec(`ALTER TABLE buffer_events ADD COLUMN run TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add run column: %w", err)
		}
	}

	_, err = s.db.Exec(`
		DROP INDEX IF EXISTS idx_buffer_events_session;
		CREATE INDEX IF NOT EXISTS idx_buffer_events_run_session ON buffer_events(run, session, seq);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.BufferEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO buffer_events (id, run, session, at, type, buffer, accessor, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID,
		ev.Run,
		ev.Session.String(),
		at.UnixNano(),
		string(ev.Type),
		ev.Buffer.String(),
		ev.Accessor.String(),
		ev.Detail,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, run string, session api.Entity) ([]api.BufferEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, type, buffer, accessor, detail
		FROM buffer_events
		WHERE run = ? AND session = ?
		ORDER BY seq ASC`, run, session.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.BufferEvent
	for rows.Next() {
		var (
			id       string
			atN      int64
			typ      string
			buffer   string
			accessor string
			detail   string
		)
		if err := rows.Scan(&id, &atN, &typ, &buffer, &accessor, &detail); err != nil {
			return nil, err
		}
		ev := api.BufferEvent{
			ID:      id,
			Run:     run,
			At:      time.Unix(0, atN),
			Type:    api.EventType(typ),
			Session: session,
			Detail:  detail,
		}
		if ev.Buffer, err = api.ParseEntity(buffer); err != nil {
			return nil, err
		}
		if ev.Accessor, err = api.ParseEntity(accessor); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
