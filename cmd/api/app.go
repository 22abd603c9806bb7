package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/driftmap/cartographer/internal/api/handlers"
	"github.com/driftmap/cartographer/internal/api/middleware"
	"github.com/driftmap/cartographer/internal/config"
	"github.com/driftmap/cartographer/internal/embeddings"
	"github.com/driftmap/cartographer/internal/jobs"
	"github.com/driftmap/cartographer/internal/observability"
	"github.com/driftmap/cartographer/internal/repository"
	"github.com/driftmap/cartographer/internal/service"
)

const (
	serviceName = "cartographer"

	embeddingMaxWorkers = 4
	embeddingJobTimeout = 60 * time.Second
	maxRequestBodyBytes = 1 << 20
	mockAIDimensions    = 3072
	readTimeout         = 15 * time.Second
	writeTimeout        = 15 * time.Second
	idleTimeout         = 60 * time.Second
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	river          *river.Client[pgx.Tx]
	meterShutdown  observability.MeterProviderShutdown
	tracerProvider *sdktrace.TracerProvider
}

// buildEmbeddingClients returns the human and AI encoder clients. Without an
// OpenAI key both spaces fall back to deterministic mock embeddings so the
// pipeline stays runnable locally. The AI client is always capped to the
// canonical dimensionality.
func buildEmbeddingClients(cfg *config.Config) (human, ai embeddings.Client) {
	if cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY not set, using deterministic mock embeddings")

		human = embeddings.NewMockClient()
		ai = embeddings.NewMockClientWithDimensions(mockAIDimensions)
	} else {
		human = embeddings.NewOpenAIClientWithModel(cfg.OpenAIAPIKey, openai.EmbeddingModel(cfg.HumanEmbeddingModel))
		ai = embeddings.NewOpenAIClientWithModel(cfg.OpenAIAPIKey, openai.EmbeddingModel(cfg.AIEmbeddingModel))
	}

	return human, embeddings.NewDimensionCapped(ai, cfg.AIEmbeddingMaxDim)
}

// NewApp builds and wires all components. It does not start the HTTP server or River;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (*App, error) {
	meterShutdown, promHandler, meter, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{
		ServiceName: serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("create meter provider: %w", err)
	}

	metrics, err := observability.NewMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	var tracerProvider *sdktrace.TracerProvider

	if cfg.OtelTracesExporter == "" {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		tracerProvider, err = observability.NewTracerProvider(ctx, serviceName, cfg.OtelTracesExporter)
		if err != nil {
			return nil, fmt.Errorf("create tracer provider: %w", err)
		}

		otel.SetTracerProvider(tracerProvider)
	}

	// Install TraceContextHandler unconditionally so request_id (and trace_id/span_id
	// when tracing is on) appear in logs.
	slog.SetDefault(slog.New(observability.NewTraceContextHandler(slog.Default().Handler())))

	humanClient, aiClient := buildEmbeddingClients(cfg)

	conceptsRepo := repository.NewConceptsRepository(db)
	relationshipsRepo := repository.NewRelationshipsRepository(db)
	embeddingsRepo := repository.NewEmbeddingsRepository(db)
	scansRepo := repository.NewScansRepository(db)

	rateLimiter := rate.NewLimiter(rate.Limit(cfg.EmbeddingRatePerSecond), 1)
	embeddingWorker := jobs.NewEmbeddingWorker(jobs.EmbeddingWorkerDeps{
		HumanClient: humanClient,
		AIClient:    aiClient,
		Store:       embeddingsRepo,
		RateLimiter: rateLimiter,
		Metrics:     metrics.Embeddings,
	})

	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, embeddingWorker)

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			jobs.QueueEmbeddings: {MaxWorkers: embeddingMaxWorkers},
		},
		Workers:      riverWorkers,
		ErrorHandler: &jobs.ErrorHandler{},
		JobTimeout:   embeddingJobTimeout,
		MaxAttempts:  cfg.EmbeddingMaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("create River client: %w", err)
	}

	inserter := jobs.NewRiverJobInserter(riverClient)

	conceptService := service.NewConceptService(conceptsRepo, inserter, metrics.Embeddings, slog.Default())
	layoutService := service.NewLayoutService(embeddingsRepo, relationshipsRepo, metrics.Cache, metrics.Layout, slog.Default())
	scanService := service.NewScanService(
		conceptsRepo, embeddingsRepo, relationshipsRepo, scansRepo,
		layoutService, metrics.Layout, slog.Default(),
	)

	layoutDefaults := service.LayoutOptions{
		Amplification: cfg.Amplification,
		HumanModel:    humanClient.Model(),
		AIModel:       aiClient.Model(),
	}

	conceptsHandler := handlers.NewConceptsHandler(conceptService, relationshipsRepo)
	layoutHandler := handlers.NewLayoutHandler(layoutService, layoutDefaults)
	scansHandler := handlers.NewScansHandler(scanService, scansRepo)
	healthHandler := handlers.NewHealthHandler(embeddingsRepo)

	server := newHTTPServer(cfg, promHandler, healthHandler, conceptsHandler, layoutHandler, scansHandler,
		metrics.HTTP, tracerProvider)

	return &App{
		cfg:            cfg,
		db:             db,
		server:         server,
		river:          riverClient,
		meterShutdown:  meterShutdown,
		tracerProvider: tracerProvider,
	}, nil
}

// newHTTPServer builds the HTTP server and muxes (no auth on /health and
// /metrics, API key on /v1/). CORS wraps Auth so OPTIONS preflights bypass
// authentication. Logging runs inside the tracing handler so access logs get
// trace_id/span_id from context.
func newHTTPServer(
	cfg *config.Config,
	promHandler http.Handler,
	health *handlers.HealthHandler,
	concepts *handlers.ConceptsHandler,
	layout *handlers.LayoutHandler,
	scans *handlers.ScansHandler,
	httpMetrics observability.HTTPMetrics,
	tracerProvider *sdktrace.TracerProvider,
) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", health.Check)
	public.Handle("GET /metrics", promHandler)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/concepts", concepts.Create)
	protected.HandleFunc("GET /v1/concepts", concepts.List)
	protected.HandleFunc("GET /v1/concepts/{name}", concepts.Get)
	protected.HandleFunc("GET /v1/concepts/{name}/relationships", concepts.Relationships)

	protected.HandleFunc("GET /v1/layout", layout.Get)

	protected.HandleFunc("POST /v1/scans", scans.Create)
	protected.HandleFunc("GET /v1/scans", scans.List)

	protectedWithAuth := middleware.CORS(middleware.Auth(cfg.APIKey)(protected))
	mux := http.NewServeMux()
	mux.Handle("/v1/", protectedWithAuth)
	mux.Handle("/", public)

	handler := middleware.MaxBody(maxRequestBodyBytes, nil)(mux)
	handler = middleware.Logging(handler)
	handler = middleware.Metrics(httpMetrics)(handler)

	if tracerProvider != nil {
		handler = otelhttp.NewHandler(handler, serviceName+"-api",
			otelhttp.WithTracerProvider(tracerProvider),
			// Skip tracing for health checks and metrics scrapes to reduce noise.
			otelhttp.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" && r.URL.Path != "/metrics"
			}),
		)
	}

	handler = middleware.RequestID(handler)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and River, then blocks until ctx is cancelled
// (e.g. signal) or a component fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	riverCtx, cancelRiver := context.WithCancel(ctx)
	defer cancelRiver()

	go func() {
		if err := a.river.Start(riverCtx); err != nil && !errors.Is(err, context.Canceled) {
			select {
			case runErr <- fmt.Errorf("river: %w", err):
			default:
			}
		}
	}()

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case runErr <- fmt.Errorf("server: %w", err):
			default:
			}
		}
	}()

	select {
	case err := <-runErr:
		cancelRiver()

		return err
	case <-ctx.Done():
		cancelRiver()

		return nil
	}
}

// Shutdown stops the server, River, and observability in order. Call after Run returns.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		if a.tracerProvider != nil {
			if shutdownErr := observability.ShutdownTracerProvider(ctx, a.tracerProvider); shutdownErr != nil {
				slog.Error("shutdown tracer provider", "error", shutdownErr)
				if err == nil {
					err = shutdownErr
				}
			}
		}

		if a.meterShutdown != nil {
			if shutdownErr := a.meterShutdown.Shutdown(ctx); shutdownErr != nil {
				slog.Error("shutdown meter provider", "error", shutdownErr)
				if err == nil {
					err = shutdownErr
				}
			}
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if stopErr := a.river.Stop(ctx); stopErr != nil {
			slog.Error("river stop during server shutdown", "error", stopErr)
		}

		return fmt.Errorf("server shutdown: %w", err)
	}

	if err = a.river.Stop(ctx); err != nil {
		return fmt.Errorf("river stop: %w", err)
	}

	return nil
}
