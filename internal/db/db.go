package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the database connection and bootstraps the schema.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := bootstrap(database); err != nil {
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return database, nil
}

func bootstrap(database *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            full_name TEXT NOT NULL,
            bio TEXT NOT NULL DEFAULT '',
            profile_pic TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            sender_id INT NOT NULL REFERENCES users(id),
            recipient_id INT NOT NULL REFERENCES users(id),
            text TEXT NOT NULL DEFAULT '',
            image TEXT NOT NULL DEFAULT '',
            seen BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (text <> '' OR image <> '')
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unseen
            ON messages (recipient_id, sender_id) WHERE seen = FALSE;`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation
            ON messages (sender_id, recipient_id, created_at);`,
	}

	for _, stmt := range statements {
		if _, err := database.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
