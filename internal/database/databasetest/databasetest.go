// Package databasetest opens a migrated Postgres database for integration
// tests. Tests are skipped unless TEST_DATABASE_URL is set.
package databasetest

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/learnquest/backend/internal/database"
)

const envDSN = "TEST_DATABASE_URL"

// Open connects to TEST_DATABASE_URL, applies migrations and empties every
// table. The connection is closed when t finishes.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	dsn := os.Getenv(envDSN)
	if dsn == "" {
		t.Skipf("set %s to run Postgres integration tests", envDSN)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Ping(); err != nil {
		t.Fatalf("ping database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE users, topics, questions, quizzes, practice_tests RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

// InsertUser creates a user and returns its id.
func InsertUser(t testing.TB, db *sql.DB, email string) int64 {
	t.Helper()
	var id int64
	if err := db.QueryRow(
		`INSERT INTO users (email, name) VALUES ($1, $1) RETURNING id`, email,
	).Scan(&id); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

// InsertTopic creates a topic and returns its id.
func InsertTopic(t testing.TB, db *sql.DB, name string) int64 {
	t.Helper()
	var id int64
	if err := db.QueryRow(
		`INSERT INTO topics (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id); err != nil {
		t.Fatalf("insert topic: %v", err)
	}
	return id
}
