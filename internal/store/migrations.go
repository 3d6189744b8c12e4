package store

import "fmt"

// migrations are applied in order. The database's user_version records how
// many have run, so a step is never repeated and new steps go at the end.
var migrations = []string{
	// 1: recordings
	`CREATE TABLE sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		frames INTEGER NOT NULL DEFAULT 0,
		events INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);
	CREATE INDEX idx_sessions_started_at ON sessions(started_at);`,

	// 2: landmark frames fed to the classifier, hands as JSON
	`CREATE TABLE session_frames (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		timestamp_ms INTEGER NOT NULL,
		hands TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (session_id, seq)
	)`,

	// 3: gesture events emitted while recording
	`CREATE TABLE session_events (
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		timestamp_ms INTEGER NOT NULL,
		type TEXT NOT NULL,
		state TEXT NOT NULL,
		hand TEXT NOT NULL,
		data TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (session_id, seq)
	);
	CREATE INDEX idx_session_events_type ON session_events(session_id, type);`,

	// 4: key-value settings
	`CREATE TABLE settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}

// SchemaVersion is the user_version of a fully migrated database.
func SchemaVersion() int {
	return len(migrations)
}

// runMigrations applies the steps the database has not seen, each in its own
// transaction.
func (s *Store) runMigrations() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
