package ledger

import (
	"database/sql"
	"os"
	"path/filepath"

	errs "clipvault/pkg/errors"
	"clipvault/pkg/logger"

	_ "modernc.org/sqlite"
)

const triedSchema = `CREATE TABLE IF NOT EXISTS tried_codes (
	code     TEXT PRIMARY KEY,
	added_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
)`

// SQLiteStore keeps the tried set in an embedded SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger logger.Logger
}

// OpenSQLite opens or creates the database at path. A database that cannot
// be opened or migrated is an error.
func OpenSQLite(path string, log logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errs.Persistence(err, "create ledger directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Persistence(err, "open ledger database %s", path)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", triedSchema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errs.Persistence(err, "initialise ledger database %s", path)
		}
	}

	return &SQLiteStore{db: db, logger: log.WithField("component", "ledger")}, nil
}

// Load selects every tried code
func (s *SQLiteStore) Load() (map[string]struct{}, error) {
	rows, err := s.db.Query(`SELECT code FROM tried_codes`)
	if err != nil {
		return nil, errs.Persistence(err, "load tried set")
	}
	defer rows.Close()

	tried := make(map[string]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, errs.Persistence(err, "scan tried code")
		}
		tried[code] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence(err, "load tried set")
	}
	return tried, nil
}

// Save inserts every code not yet present inside one transaction
func (s *SQLiteStore) Save(tried map[string]struct{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Persistence(err, "begin tried set transaction")
	}

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO tried_codes (code) VALUES (?)`)
	if err != nil {
		tx.Rollback()
		return errs.Persistence(err, "prepare tried set insert")
	}
	defer stmt.Close()

	for code := range tried {
		if _, err := stmt.Exec(code); err != nil {
			tx.Rollback()
			return errs.Persistence(err, "insert tried code %s", code)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Persistence(err, "commit tried set")
	}
	s.logger.DebugWithFields("Tried set saved", map[string]interface{}{
		"count":   len(tried),
		"backend": "sqlite",
	})
	return nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
