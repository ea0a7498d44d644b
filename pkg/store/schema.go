package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// schemaStatements create the five final tables. The primary keys back the
// ON CONFLICT DO NOTHING semantics of the loader's inserts. songplays keeps a
// nullable user_id: a matched play without a logged-in user is still a play.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS songplays (
		songplay_id BIGINT PRIMARY KEY,
		start_time TIMESTAMPTZ NOT NULL,
		user_id TEXT,
		level TEXT NOT NULL,
		song_id TEXT NOT NULL,
		artist_id TEXT NOT NULL,
		session_id INT NOT NULL,
		location TEXT,
		user_agent TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		first_name TEXT,
		last_name TEXT,
		gender TEXT,
		level TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS songs (
		song_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist_id TEXT NOT NULL,
		year INT NOT NULL,
		duration DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS artists (
		artist_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS time (
		start_time TIMESTAMPTZ PRIMARY KEY,
		hour INT NOT NULL,
		day INT NOT NULL,
		week INT NOT NULL,
		month INT NOT NULL,
		year INT NOT NULL,
		weekday INT NOT NULL
	)`,
}

// EnsureSchema creates any missing tables inside the caller's transaction.
func EnsureSchema(ctx context.Context, tx pgx.Tx) error {
	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
