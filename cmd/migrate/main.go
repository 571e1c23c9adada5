package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"

	"github.com/edwardmadi/eurodollar-protocol/internal/observability"
	"github.com/edwardmadi/eurodollar-protocol/internal/persistence"
	"github.com/edwardmadi/eurodollar-protocol/internal/projection"
)

func usage() {
	fmt.Println("Usage: migrate <up|down|rebuild>")
	fmt.Println("  up      - apply all pending migrations")
	fmt.Println("  down    - roll back the last migration")
	fmt.Println("  rebuild - rebuild balance projections from the command log")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  EUD_POSTGRES_DSN    - Postgres connection string (required)")
	fmt.Println("  EUD_MIGRATIONS_DIR  - path to migrations directory (default: migrations)")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	logger := observability.NewLogger("migrate")

	pgURL := os.Getenv("EUD_POSTGRES_DSN")
	if pgURL == "" {
		pgURL = "postgres://localhost:5432/eurodollar?sslmode=disable"
	}

	migrationsDir := os.Getenv("EUD_MIGRATIONS_DIR")
	if migrationsDir == "" {
		migrationsDir = "migrations"
	}

	db, err := sql.Open("postgres", pgURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	ctx := context.Background()
	migrator := persistence.NewMigrator(db, migrationsDir, logger)

	switch os.Args[1] {
	case "up":
		if err := migrator.Up(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrate up")
		}
		logger.Info().Msg("all migrations applied")

	case "down":
		if err := migrator.Down(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrate down")
		}
		logger.Info().Msg("last migration rolled back")

	case "rebuild":
		// For when the projection worker fell behind or the tables were
		// damaged: drop the derived balances and recompute them from the
		// entries in the command log.
		if err := projection.RebuildBalances(ctx, db); err != nil {
			logger.Fatal().Err(err).Msg("rebuild projections")
		}
		logger.Info().Msg("balance projections rebuilt from command log")

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s (use 'up', 'down' or 'rebuild')\n", os.Args[1])
		os.Exit(1)
	}
}
