// backfill-embeddings enqueues River embedding jobs for concepts that are
// missing a vector in either space. Run this as a one-off; workers in the
// API process consume the jobs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/driftmap/cartographer/internal/jobs"
	"github.com/driftmap/cartographer/internal/models"
	"github.com/driftmap/cartographer/internal/repository"
	"github.com/driftmap/cartographer/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1
)

var errUnknownSpace = errors.New("unknown space")

func main() {
	os.Exit(run())
}

func run() int {
	spaceFlag := flag.String("space", "", "backfill only one space (human or ai); default both")
	flag.Parse()

	spaces, err := parseSpaces(*spaceFlag)
	if err != nil {
		slog.Error(err.Error())

		return exitFailure
	}

	// Load .env for consistency with the main API server (godotenv.Load() there).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")

		return exitFailure
	}

	ctx := context.Background()

	db, err := database.NewPostgresPool(ctx, databaseURL, database.WithAfterConnect(pgxvec.RegisterTypes))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)

		return exitFailure
	}
	defer db.Close()

	// Insert-only client: workers run in the API process.
	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			jobs.QueueEmbeddings: {},
		},
		Workers: river.NewWorkers(),
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)

		return exitFailure
	}

	conceptsRepo := repository.NewConceptsRepository(db)
	inserter := jobs.NewRiverJobInserter(riverClient)

	stats, err := jobs.Backfill(ctx, conceptsRepo, inserter, nil, spaces...)
	if err != nil {
		slog.Error("Backfill failed", "error", err)

		return exitFailure
	}

	for space, count := range stats.Enqueued {
		fmt.Printf("Enqueued %d embedding job(s) for the %s space.\n", count, space)
	}

	if stats.Errors > 0 {
		slog.Error("Backfill finished with errors", "errors", stats.Errors)

		return exitFailure
	}

	return exitSuccess
}

func parseSpaces(flagValue string) ([]models.Space, error) {
	switch flagValue {
	case "":
		return nil, nil // Backfill defaults to both spaces.
	case string(models.SpaceHuman):
		return []models.Space{models.SpaceHuman}, nil
	case string(models.SpaceAI):
		return []models.Space{models.SpaceAI}, nil
	default:
		return nil, fmt.Errorf("%w: %q (want human or ai)", errUnknownSpace, flagValue)
	}
}
