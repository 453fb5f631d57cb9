package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/mirrorlab/codesync/internal/db"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS sync_journal (
    path TEXT PRIMARY KEY,
    hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const rootHashKey = "root_hash"

// Journal persists the last snapshot the server acknowledged. Comparing its
// root hash against a fresh scan decides whether a cycle needs the network at
// all.
type Journal struct {
	db     *sqlx.DB
	dbPath string
}

func NewJournal(dbPath string) *Journal {
	return &Journal{dbPath: dbPath}
}

func (j *Journal) Open() error {
	if j.db != nil {
		return fmt.Errorf("sync journal already open")
	}

	conn, err := db.NewSqliteDB(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open sync journal: %w", err)
	}

	if _, err := conn.Exec(journalSchema); err != nil {
		conn.Close()
		return fmt.Errorf("init journal schema: %w", err)
	}

	j.db = conn
	return nil
}

func (j *Journal) Close() error {
	if j.db == nil {
		return fmt.Errorf("sync journal not open")
	}
	if err := j.db.Close(); err != nil {
		slog.Error("close sync journal", "error", err)
		return err
	}
	slog.Debug("sync journal closed")
	return nil
}

// RootHash returns the acknowledged root hash, or "" if never synced.
func (j *Journal) RootHash() (string, error) {
	var value string
	err := j.db.Get(&value, "SELECT value FROM sync_meta WHERE key = ?", rootHashKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query root hash: %w", err)
	}
	return value, nil
}

// Leaves returns the acknowledged snapshot's path→hash leaves.
func (j *Journal) Leaves() (map[string]string, error) {
	rows, err := j.db.Queryx("SELECT path, hash FROM sync_journal")
	if err != nil {
		return nil, fmt.Errorf("query journal leaves: %w", err)
	}
	defer rows.Close()

	leaves := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("scan journal leaf: %w", err)
		}
		leaves[path] = hash
	}
	return leaves, rows.Err()
}

// Commit records accepted paths and removals along with the new root hash in
// one transaction.
func (j *Journal) Commit(accepted map[string]string, removed []string, rootHash string) error {
	tx, err := j.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin journal commit: %w", err)
	}
	defer tx.Rollback()

	for path, hash := range accepted {
		if _, err := tx.Exec(`
			INSERT INTO sync_journal (path, hash) VALUES (?, ?)
			ON CONFLICT(path) DO UPDATE SET hash = excluded.hash`,
			path, hash); err != nil {
			return fmt.Errorf("journal upsert %s: %w", path, err)
		}
	}

	for _, path := range removed {
		if _, err := tx.Exec("DELETE FROM sync_journal WHERE path = ?", path); err != nil {
			return fmt.Errorf("journal delete %s: %w", path, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO sync_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		rootHashKey, rootHash); err != nil {
		return fmt.Errorf("journal root hash: %w", err)
	}

	return tx.Commit()
}
