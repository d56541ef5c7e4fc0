package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stapelberg/postgrestest"
)

// startPostgres skips the test when no PostgreSQL binaries are installed
func startPostgres(t *testing.T) *postgrestest.Server {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pgt, err := postgrestest.Start(ctx)
	if err != nil {
		t.Skipf("ephemeral postgres unavailable: %v", err)
	}
	t.Cleanup(pgt.Cleanup)
	return pgt
}

func TestPostgresMigrations(t *testing.T) {
	pgt := startPostgres(t)

	dsn, err := pgt.CreateDatabase(context.Background())
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := runPostgresMigrations(db); err != nil {
		t.Fatalf("First migration run failed: %v", err)
	}
	// A second run finds nothing to apply
	if err := runPostgresMigrations(db); err != nil {
		t.Fatalf("Second migration run failed: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM merge_jobs`).Scan(&count); err != nil {
		t.Fatalf("merge_jobs table missing: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty merge_jobs table, got %d rows", count)
	}
}

func TestSetupPostgresDatabase(t *testing.T) {
	pgt := startPostgres(t)

	dsn, err := pgt.CreateDatabase(context.Background())
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	repo, err := SetupPostgresDatabase(dsn)
	if err != nil {
		t.Fatalf("Failed to setup postgres database: %v", err)
	}
	defer repo.Close()

	exerciseRepository(t, repo)
}

func TestSetupEphemeralPostgresDatabase(t *testing.T) {
	startPostgres(t)

	ephemeralDB, err := SetupEphemeralPostgresDatabase()
	if err != nil {
		t.Fatalf("Failed to setup ephemeral postgres database: %v", err)
	}
	defer ephemeralDB.Close()

	exerciseRepository(t, ephemeralDB)
}
