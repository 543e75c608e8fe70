package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// devUsers are the editor accounts created for local development. Their IDs
// mimic Discord snowflakes so the rest of the stack treats them like real
// OAuth identities.
var devUsers = []struct {
	id, username, role string
}{
	{"100000000000000001", "admin", "admin"},
	{"100000000000000002", "alice", "editor"},
	{"100000000000000003", "bob", "editor"},
}

// Seed populates the database with initial development data.
// It creates the development editors if no users exist yet.
func Seed(db *sql.DB) error {
	// Check if any users exist already.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	for _, u := range devUsers {
		_, err := db.Exec(`
			INSERT INTO users (id, username, role)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, u.id, u.username, u.role)
		if err != nil {
			return fmt.Errorf("seed insert user %s: %w", u.username, err)
		}
	}

	slog.Info("database seeded with development editors", "count", len(devUsers))
	return nil
}
