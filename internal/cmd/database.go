package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/clanarena/draftauction/internal/config"
	"github.com/clanarena/draftauction/internal/store/postgres"
)

func setupDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	dbCfg := config.LoadDB()

	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("host", dbCfg.Host).
		Str("database", dbCfg.Name).
		Msg("connected to database")

	return pool, nil
}
