package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

type migration struct {
	version string
	path    string
}

func main() {
	var (
		dsn       = flag.String("dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
		dir       = flag.String("dir", "", "Migrations directory (default: ./migrations or next to the binary)")
		direction = flag.String("direction", "up", "Migration direction: up or down")
		steps     = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	if *direction != "up" && *direction != "down" {
		log.Fatalf("Invalid direction %q: must be up or down", *direction)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, *dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	count, err := run(ctx, pool, migrationsDir(*dir), *direction, *steps)
	if err != nil {
		log.Fatal(err)
	}

	if count == 0 {
		fmt.Println("No migrations to apply")
	} else {
		fmt.Printf("Applied %d migration(s)\n", count)
	}
}

func migrationsDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if _, err := os.Stat("migrations"); err == nil {
		return "migrations"
	}
	execPath, _ := os.Executable()
	return filepath.Join(filepath.Dir(execPath), "migrations")
}

func run(ctx context.Context, pool *pgxpool.Pool, dir, direction string, steps int) (int, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return 0, err
	}

	files, err := filepath.Glob(filepath.Join(dir, "*"+suffix(direction)))
	if err != nil {
		return 0, fmt.Errorf("failed to find migration files: %w", err)
	}

	count := 0
	for _, m := range plan(files, applied, direction, steps) {
		fmt.Printf("Running migration: %s\n", filepath.Base(m.path))
		if err := apply(ctx, pool, m, direction); err != nil {
			return count, err
		}
		fmt.Printf("Applied migration: %s\n", m.version)
		count++
	}
	return count, nil
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func suffix(direction string) string {
	if direction == "down" {
		return ".down.sql"
	}
	return ".up.sql"
}

// plan orders files and keeps those still to run: unapplied ones going up,
// applied ones (newest first) going down
func plan(files []string, applied map[string]bool, direction string, steps int) []migration {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	if direction == "down" {
		for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	}

	var out []migration
	for _, file := range sorted {
		version := strings.TrimSuffix(filepath.Base(file), suffix(direction))
		if applied[version] != (direction == "down") {
			continue
		}
		if steps > 0 && len(out) >= steps {
			break
		}
		out = append(out, migration{version: version, path: file})
	}
	return out
}

func apply(ctx context.Context, pool *pgxpool.Pool, m migration, direction string) error {
	content, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", m.path, err)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", m.path, err)
	}

	if direction == "up" {
		_, err = tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version)
	} else {
		_, err = tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = $1", m.version)
	}
	if err != nil {
		return fmt.Errorf("failed to update migrations table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", m.version, err)
	}
	return nil
}
