package storage

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"video-share-service/internal/config"
	"video-share-service/internal/logger"
)

//go:embed schema.sql
var schema string

// NewDBConnection opens and pings the Postgres pool.
func NewDBConnection(ctx context.Context, cfg config.PostgresConfig, log logger.Logger) (*sqlx.DB, error) {
	log.WithFields(map[string]interface{}{
		"host":   cfg.Host,
		"port":   cfg.Port,
		"dbname": cfg.DBName,
	}).Info("connecting to database")

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
