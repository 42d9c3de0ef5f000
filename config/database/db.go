package database

import (
	"database/sql"
	"fmt"
	"time"

	"halaman/pkg/logger"

	_ "github.com/lib/pq"
)

// Connect opens the Postgres connection and verifies it is alive,
// retrying a few times in case of temporary DNS/network blips. The handle
// is returned to the caller; nothing here is kept as package state.
func Connect(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			logger.Sugar.Info("Successfully connected to the database")
			return db, nil
		}
		logger.Sugar.Infof("Database connection failed, retrying in 2s... (%v)", err)
		time.Sleep(2 * time.Second)
	}
	db.Close()
	return nil, fmt.Errorf("connect database after retries: %w", err)
}

// InitSchema creates the pages and page_versions tables if they do not
// exist. The FK actions mirror the application-level delete semantics
// (orphan promotion, version cascade) as a safety net; the repository
// still performs them explicitly inside its delete transaction.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT 'Untitled',
			content TEXT NOT NULL DEFAULT '',
			parent_id TEXT REFERENCES pages(id) ON DELETE SET NULL,
			position INTEGER NOT NULL DEFAULT 0,
			icon TEXT NOT NULL DEFAULT '📄',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS page_versions (
			id BIGSERIAL PRIMARY KEY,
			page_id TEXT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_pages_parent ON pages(parent_id);
		CREATE INDEX IF NOT EXISTS idx_pages_updated ON pages(updated_at);
		CREATE INDEX IF NOT EXISTS idx_versions_page ON page_versions(page_id);
	`)
	if err != nil {
		logger.Sugar.Errorf("Failed to initialize schema: %v", err)
	}
	return err
}
