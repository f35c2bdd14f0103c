package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the version recorded after applying schema.sql.
const schemaVersion = 1

// Migrator applies pending schema migrations on open.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a migrator over the given database handle.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Migrate brings the database up to the current schema version. Applying is
// idempotent: an already-migrated database is left untouched.
func (m *Migrator) Migrate() error {
	if err := m.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("create migrations table: %w: %w", err, taskctlerrors.ErrBackend)
	}

	applied, err := m.isApplied(schemaVersion)
	if err != nil {
		return fmt.Errorf("check schema version: %w: %w", err, taskctlerrors.ErrBackend)
	}
	if applied {
		return nil
	}

	if err := m.applySchema(); err != nil {
		return fmt.Errorf("apply schema: %w: %w", err, taskctlerrors.ErrBackend)
	}
	return nil
}

// Version returns the highest applied schema version, 0 if none.
func (m *Migrator) Version() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w: %w", err, taskctlerrors.ErrBackend)
	}
	return version, nil
}

func (m *Migrator) ensureMigrationsTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	return err
}

func (m *Migrator) isApplied(version int) (bool, error) {
	var count int
	err := m.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applySchema executes every statement in schema.sql and records the version
// inside one transaction.
func (m *Migrator) applySchema() error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("execute %q: %w", firstLine(stmt), err)
		}
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", schemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}

// splitStatements splits the embedded schema into executable statements,
// dropping comment lines.
func splitStatements(schema string) []string {
	var clean []string
	for _, line := range strings.Split(schema, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		clean = append(clean, line)
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(clean, "\n"), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// firstLine truncates a statement for error messages.
func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
