package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/libforge/internal/foundation/errors"

	_ "modernc.org/sqlite"
)

// schemaVersion is stored in PRAGMA user_version.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS ledger_events (
	seq     INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id  TEXT    NOT NULL,
	type    TEXT    NOT NULL,
	at_ms   INTEGER NOT NULL,
	payload TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_events_run ON ledger_events(run_id, seq);
CREATE INDEX IF NOT EXISTS ledger_events_at ON ledger_events(at_ms);
`

const selectRecords = `SELECT seq, run_id, type, at_ms, payload FROM ledger_events`

// SQLiteStore is the Store used by the CLI.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates the ledger at path. ":memory:" gives a
// private in-memory ledger.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, ledgerError("open", err).WithContext("path", path).Build()
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ledgerError("open", err).WithContext("path", path).Build()
	}
	// A single connection keeps an in-memory database alive across calls and
	// serializes writers from concurrent plans.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, ledgerError("migrate", err).WithContext("path", path).Build()
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return err
	}
	if version > schemaVersion {
		return errors.LedgerError("ledger was written by a newer libforge").
			WithContext("schema", version).
			Build()
	}
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	_, err := db.Exec(`PRAGMA user_version = 1`)
	return err
}

func ledgerError(op string, err error) *errors.ErrorBuilder {
	return errors.WrapError(err, errors.CategoryLedger, "run ledger "+op+" failed").WithContext("op", op)
}

// Append stores e with the current time.
func (s *SQLiteStore) Append(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return ledgerError("encode", err).WithContext("type", e.Type()).Build()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ledger_events (run_id, type, at_ms, payload) VALUES (?, ?, ?, ?)`,
		e.RunID(), e.Type(), s.now().UnixMilli(), string(payload))
	if err != nil {
		return ledgerError("append", err).WithContext("type", e.Type()).Build()
	}
	return nil
}

func (s *SQLiteStore) Events(ctx context.Context, runID string) ([]Record, error) {
	return s.query(ctx, selectRecords+` WHERE run_id = ? ORDER BY seq`, runID)
}

func (s *SQLiteStore) Since(ctx context.Context, t time.Time) ([]Record, error) {
	return s.query(ctx, selectRecords+` WHERE at_ms >= ? ORDER BY seq`, t.UnixMilli())
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, ledgerError("query", err).Build()
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			atMS    int64
			payload string
		)
		if err := rows.Scan(&r.Seq, &r.RunID, &r.Type, &atMS, &payload); err != nil {
			return nil, ledgerError("query", err).Build()
		}
		r.At = time.UnixMilli(atMS)
		r.Payload = json.RawMessage(payload)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ledgerError("query", err).Build()
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
