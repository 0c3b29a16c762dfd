package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// Connect opens the Postgres pool and applies the chat schema.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS chat_sessions (
            id UUID PRIMARY KEY,
            visitor_name TEXT NOT NULL,
            visitor_email TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'waiting' CHECK (status IN ('waiting', 'active', 'closed')),
            admin_id TEXT,
            admin_name TEXT,
            unread_by_admin INT NOT NULL DEFAULT 0 CHECK (unread_by_admin >= 0),
            unread_by_visitor INT NOT NULL DEFAULT 0 CHECK (unread_by_visitor >= 0),
            created_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            last_message_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            closed_at TIMESTAMPTZ
        );`,
	`CREATE INDEX IF NOT EXISTS chat_sessions_open_idx
            ON chat_sessions (last_message_at DESC) WHERE status <> 'closed';`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
            id UUID PRIMARY KEY,
            seq BIGSERIAL NOT NULL,
            session_id UUID NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
            message TEXT NOT NULL,
            sender_type TEXT NOT NULL CHECK (sender_type IN ('visitor', 'admin')),
            sender_name TEXT NOT NULL,
            sent_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            read BOOLEAN NOT NULL DEFAULT FALSE
        );`,
	`CREATE INDEX IF NOT EXISTS chat_messages_session_idx
            ON chat_messages (session_id, sent_at, seq);`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	slog.Info("database migrations applied", slog.Int("statements", len(migrations)))
	return nil
}

// ConnectMongo opens the directory store and verifies it answers.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// ConnectRedis opens the realtime fan-out client and verifies it answers.
func ConnectRedis(ctx context.Context, addr, password string, database int) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: database})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
