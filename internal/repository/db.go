package repository

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS escrow_payments (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL,
			campaign_title TEXT NOT NULL,
			business_name TEXT NOT NULL,
			influencer_name TEXT NOT NULL,
			source_amount TEXT NOT NULL,
			source_currency TEXT NOT NULL,
			net_to_influencer TEXT NOT NULL,
			commission TEXT NOT NULL,
			vat TEXT NOT NULL,
			amount_before_commission TEXT NOT NULL,
			total_paid TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_escrow_status ON escrow_payments(status)`,
		`CREATE INDEX IF NOT EXISTS idx_escrow_campaign ON escrow_payments(campaign_id)`,

		`CREATE TABLE IF NOT EXISTS disputes (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL,
			campaign_title TEXT NOT NULL,
			escrow_id TEXT,
			business_id TEXT NOT NULL,
			business_name TEXT NOT NULL,
			influencer_id TEXT NOT NULL,
			influencer_name TEXT NOT NULL,
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			category TEXT NOT NULL,
			summary TEXT NOT NULL,
			amount_in_dispute TEXT NOT NULL,
			opened_at DATETIME NOT NULL,
			deadline DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_disputes_status ON disputes(status)`,
		`CREATE INDEX IF NOT EXISTS idx_disputes_priority ON disputes(priority)`,
		`CREATE INDEX IF NOT EXISTS idx_disputes_deadline ON disputes(deadline)`,

		`CREATE TABLE IF NOT EXISTS dispute_requirements (
			dispute_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			label TEXT NOT NULL,
			met INTEGER NOT NULL,
			PRIMARY KEY (dispute_id, position),
			FOREIGN KEY (dispute_id) REFERENCES disputes(id)
		)`,

		`CREATE TABLE IF NOT EXISTS dispute_evidence (
			id TEXT PRIMARY KEY,
			dispute_id TEXT NOT NULL,
			uploaded_by TEXT NOT NULL,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			uploaded_at DATETIME NOT NULL,
			FOREIGN KEY (dispute_id) REFERENCES disputes(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_evidence_dispute ON dispute_evidence(dispute_id)`,

		`CREATE TABLE IF NOT EXISTS dispute_messages (
			id TEXT PRIMARY KEY,
			dispute_id TEXT NOT NULL,
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			sent_at DATETIME NOT NULL,
			FOREIGN KEY (dispute_id) REFERENCES disputes(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_dispute ON dispute_messages(dispute_id)`,

		`CREATE TABLE IF NOT EXISTS dispute_resolutions (
			dispute_id TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			type TEXT NOT NULL,
			percentage INTEGER NOT NULL,
			reasoning TEXT NOT NULL,
			influencer_amount TEXT NOT NULL,
			business_amount TEXT NOT NULL,
			resolved_by TEXT NOT NULL,
			resolved_at DATETIME NOT NULL,
			FOREIGN KEY (dispute_id) REFERENCES disputes(id)
		)`,

		`CREATE TABLE IF NOT EXISTS dispute_status_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			dispute_id TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			changed_by TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			changed_at DATETIME NOT NULL,
			FOREIGN KEY (dispute_id) REFERENCES disputes(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_dispute ON dispute_status_history(dispute_id)`,

		`CREATE TABLE IF NOT EXISTS import_batches (
			id TEXT PRIMARY KEY,
			format TEXT NOT NULL,
			file_hash TEXT UNIQUE NOT NULL,
			record_count INTEGER NOT NULL,
			imported_at DATETIME NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
