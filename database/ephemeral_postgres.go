package database

import (
	"context"
	"fmt"

	"github.com/stapelberg/postgrestest"
)

// EphemeralPostgresDB is a PostgresDB on a throwaway server that is removed
// by Close, so its job history ends with the process
type EphemeralPostgresDB struct {
	*PostgresDB
	server *postgrestest.Server
}

// SetupEphemeralPostgresDatabase starts a temporary PostgreSQL server and
// creates a migrated database on it
func SetupEphemeralPostgresDatabase() (*EphemeralPostgresDB, error) {
	ctx := context.Background()

	server, err := postgrestest.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start ephemeral postgres: %w", err)
	}
	dsn, err := server.CreateDatabase(ctx)
	if err != nil {
		server.Cleanup()
		return nil, fmt.Errorf("failed to create ephemeral database: %w", err)
	}
	db, err := openPostgres(dsn)
	if err != nil {
		server.Cleanup()
		return nil, err
	}

	Logger.Info("Ephemeral job database started", "dsn", dsn)
	return &EphemeralPostgresDB{PostgresDB: &PostgresDB{db: db}, server: server}, nil
}

// Close closes the connection pool and removes the server
func (e *EphemeralPostgresDB) Close() error {
	err := e.PostgresDB.Close()
	Logger.Info("Removing ephemeral PostgreSQL server")
	e.server.Cleanup()
	return err
}
