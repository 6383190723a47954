package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tphummel/sitewatch/internal/models"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at path, enables WAL mode and foreign keys,
// and runs migrations.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps pragmas in effect and lets ":memory:" behave as a
	// single database.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Open wraps an already-migrated connection.
func Open(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL,
			updated_at    DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

		CREATE TABLE IF NOT EXISTS sites (
			id          TEXT PRIMARY KEY,
			owner_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name        TEXT NOT NULL,
			address     TEXT NOT NULL,
			city        TEXT,
			postal_code TEXT,
			status      TEXT NOT NULL,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sites_owner ON sites(owner_id);

		CREATE TABLE IF NOT EXISTS equipment (
			id               TEXT PRIMARY KEY,
			site_id          TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
			name             TEXT NOT NULL,
			type             TEXT NOT NULL,
			status           TEXT NOT NULL,
			ip_address       TEXT,
			last_maintenance DATETIME,
			created_at       DATETIME NOT NULL,
			updated_at       DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_equipment_site ON equipment(site_id);
		CREATE INDEX IF NOT EXISTS idx_equipment_status ON equipment(status);

		CREATE TABLE IF NOT EXISTS alerts (
			id           TEXT PRIMARY KEY,
			equipment_id TEXT NOT NULL REFERENCES equipment(id) ON DELETE CASCADE,
			type         TEXT NOT NULL,
			title        TEXT NOT NULL,
			message      TEXT NOT NULL,
			description  TEXT,
			status       TEXT NOT NULL,
			created_at   DATETIME NOT NULL,
			updated_at   DATETIME NOT NULL,
			resolved_at  DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_alerts_equipment ON alerts(equipment_id);
		CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);

		CREATE TABLE IF NOT EXISTS agents (
			id             TEXT PRIMARY KEY,
			site_id        TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
			name           TEXT NOT NULL,
			version        TEXT NOT NULL DEFAULT '',
			os             TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL,
			token_id       TEXT NOT NULL,
			last_heartbeat DATETIME,
			created_at     DATETIME NOT NULL,
			updated_at     DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agents_site ON agents(site_id);

		CREATE TABLE IF NOT EXISTS agent_reports (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id    TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
			reported_at DATETIME NOT NULL,
			metrics     TEXT NOT NULL,
			devices     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agent_reports_agent ON agent_reports(agent_id);
	`)
	if err != nil {
		return err
	}
	_, err = conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", models.SchemaVersion))
	return err
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping() error {
	return d.conn.Ping()
}

// SchemaVersion returns the schema version recorded in the database.
func (d *DB) SchemaVersion() (int, error) {
	var v int
	err := d.conn.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// affectedOne converts a zero-row result into sql.ErrNoRows.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(field string, ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(field, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
