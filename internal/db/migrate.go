package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration is a versioned schema change applied in order.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations is the ordered schema history. Append only; never edit an
// entry that has shipped, its checksum is recorded in applied databases.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial_schema",
		SQL: `
CREATE TABLE recipes (
	id          INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	origin      TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	user_id     INTEGER NOT NULL DEFAULT 0,
	position    INTEGER NOT NULL
);

CREATE TABLE pending_operations (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL CHECK(kind IN ('ADD','EDIT','DELETE')),
	target_id   INTEGER NOT NULL DEFAULT 0,
	payload     TEXT NOT NULL DEFAULT '',
	retry_count INTEGER NOT NULL DEFAULT 0 CHECK(retry_count <= 3),
	created_at  INTEGER NOT NULL,
	seq         INTEGER NOT NULL
);

CREATE INDEX idx_pending_operations_seq ON pending_operations(seq);

CREATE TABLE credentials (
	id            INTEGER PRIMARY KEY CHECK(id = 1),
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL,
	user_id       INTEGER NOT NULL,
	username      TEXT NOT NULL,
	updated_at    INTEGER NOT NULL
);
`,
	},
}

// Migrator applies pending schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the highest applied schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// Up applies all pending migrations in order.
func (m *Migrator) Up() error {
	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}
		if err := m.apply(mig); err != nil {
			return fmt.Errorf("failed to apply migration V%d: %w", mig.Version, err)
		}
	}
	return nil
}

func (m *Migrator) appliedVersions() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(mig Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	hash := sha256.Sum256([]byte(mig.SQL))
	checksum := hex.EncodeToString(hash[:])
	query := `INSERT INTO schema_migrations (version, applied_at, description, checksum)
			  VALUES (?, ?, ?, ?)`
	if _, err := tx.Exec(query, mig.Version, time.Now().Unix(), mig.Description, checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
