package database

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered schema history. New migrations are appended,
// never edited in place.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_traffic_events",
		SQL: `
			CREATE TABLE IF NOT EXISTS traffic_events (
				id TEXT PRIMARY KEY,
				type TEXT NOT NULL,
				severity TEXT NOT NULL,
				lat REAL NOT NULL,
				lng REAL NOT NULL,
				address TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				reporter_id TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				expires_at TIMESTAMP NOT NULL,
				upvotes INTEGER NOT NULL DEFAULT 0,
				downvotes INTEGER NOT NULL DEFAULT 0,
				confidence_score REAL NOT NULL DEFAULT 50,
				deleted INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_events_expires ON traffic_events(expires_at);
			CREATE INDEX IF NOT EXISTS idx_events_reporter ON traffic_events(reporter_id);
			CREATE INDEX IF NOT EXISTS idx_events_bbox ON traffic_events(lat, lng);
		`,
	},
	{
		Version: 2,
		Name:    "create_event_votes",
		SQL: `
			CREATE TABLE IF NOT EXISTS event_votes (
				event_id TEXT NOT NULL,
				voter_id TEXT NOT NULL,
				direction TEXT NOT NULL,
				cast_at TIMESTAMP NOT NULL,
				PRIMARY KEY (event_id, voter_id),
				FOREIGN KEY (event_id) REFERENCES traffic_events(id) ON DELETE CASCADE
			);
		`,
	},
}

// Migrate applies all pending migrations in version order.
func Migrate(db *sql.DB) error {
	if err := initMigrationsTable(db); err != nil {
		return err
	}

	applied, err := appliedMigrations(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
		log.Printf("Applied migration %d: %s", m.Version, m.Name)
	}

	return nil
}

func initMigrationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func appliedMigrations(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query("SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	return applied, rows.Err()
}
