// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	date        TEXT NOT NULL,
	album_code  TEXT NOT NULL,
	strip_path  TEXT NOT NULL,
	photos      INTEGER NOT NULL,
	print_count INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_album_code ON sessions(album_code);
`

// Ledger records completed sessions so the album code printed on each sheet
// can be resolved back to the session's artifacts by downstream tooling.
type Ledger struct {
	db *sql.DB
}

// LedgerEntry is one completed session.
type LedgerEntry struct {
	ID         string
	Date       string
	AlbumCode  string
	StripPath  string // relative to the sessions root
	Photos     int
	PrintCount int
	CreatedAt  time.Time
}

// OpenLedger opens (creating if necessary) the session ledger at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	// The daemon is the only writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(ledgerSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record inserts a completed session. Each session is recorded exactly once;
// a duplicate id is an error.
func (l *Ledger) Record(ctx context.Context, e LedgerEntry) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO sessions (id, date, album_code, strip_path, photos, print_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Date, e.AlbumCode, e.StripPath, e.Photos, e.PrintCount,
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("ledger: record session %s: %w", e.ID, err)
	}
	return nil
}

// Lookup resolves an album code to its session entry.
func (l *Ledger) Lookup(ctx context.Context, albumCode string) (LedgerEntry, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, date, album_code, strip_path, photos, print_count, created_at
		 FROM sessions WHERE album_code = ? ORDER BY created_at DESC LIMIT 1`,
		albumCode,
	)

	var e LedgerEntry
	var created string
	if err := row.Scan(&e.ID, &e.Date, &e.AlbumCode, &e.StripPath, &e.Photos, &e.PrintCount, &created); err != nil {
		if err == sql.ErrNoRows {
			return LedgerEntry{}, fmt.Errorf("ledger: unknown album code %q", albumCode)
		}
		return LedgerEntry{}, fmt.Errorf("ledger: lookup %q: %w", albumCode, err)
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		e.CreatedAt = t
	}
	return e, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}
