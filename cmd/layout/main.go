// layout computes a dual-space layout offline and writes the JSON document to
// a file (or stdout), without going through the API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/driftmap/cartographer/internal/config"
	"github.com/driftmap/cartographer/internal/repository"
	"github.com/driftmap/cartographer/internal/service"
	"github.com/driftmap/cartographer/pkg/database"
)

const (
	exitSuccess = 0
	exitFailure = 1

	outputFileMode = 0o644
)

func main() {
	os.Exit(run())
}

func run() int {
	outPath := flag.String("out", "-", "output file path; - writes to stdout")
	amplification := flag.Float64("amplification", -1, "drift amplification factor; negative keeps the configured default")
	flag.Parse()

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

	embeddingsRepo := repository.NewEmbeddingsRepository(db)
	relationshipsRepo := repository.NewRelationshipsRepository(db)
	layoutService := service.NewLayoutService(embeddingsRepo, relationshipsRepo, nil, nil, slog.Default())

	opts := service.LayoutOptions{Amplification: config.DefaultAmplification}
	if *amplification >= 0 {
		opts.Amplification = *amplification
	}

	doc, err := layoutService.ComputeLayout(ctx, opts)
	if err != nil {
		slog.Error("Layout failed", "error", err)

		return exitFailure
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		slog.Error("Failed to encode layout document", "error", err)

		return exitFailure
	}

	if *outPath == "-" {
		fmt.Println(string(data))

		return exitSuccess
	}

	if err := os.WriteFile(*outPath, data, outputFileMode); err != nil {
		slog.Error("Failed to write layout document", "path", *outPath, "error", err)

		return exitFailure
	}

	slog.Info("Layout written", "path", *outPath, "concepts", doc.Metadata.NumConcepts)

	return exitSuccess
}
