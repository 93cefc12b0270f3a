package admin

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/quorumworks/logbook/internal/ai"
	"github.com/quorumworks/logbook/internal/api/handlers"
	"github.com/quorumworks/logbook/internal/config"
	"github.com/quorumworks/logbook/internal/database"
	"github.com/quorumworks/logbook/internal/extract"
	"github.com/quorumworks/logbook/internal/jobs"
	"github.com/quorumworks/logbook/internal/openai"
	"github.com/quorumworks/logbook/internal/pipeline"
	"github.com/quorumworks/logbook/internal/repository"
	"github.com/quorumworks/logbook/internal/search"
	"github.com/quorumworks/logbook/internal/server"
	"github.com/quorumworks/logbook/internal/service"
	"github.com/quorumworks/logbook/internal/storage"
	"github.com/quorumworks/logbook/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the logbook API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	stageLogRepo := repository.NewStageLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	rt, err := buildRuntime(ctx, cfg, pool)
	if err != nil {
		return err
	}

	documentSvc := service.NewDocumentService(docRepo, chunkRepo, stageLogRepo, rt.storage, rt.indexer, rt.pipe, txRunner)
	ingestSvc := service.NewIngestService(docRepo, rt.storage, rt.pipe)

	sweeper := jobs.NewPendingSweeper(docRepo, rt.pipe)
	sweepWorker := jobs.NewWorker(sweeper, 10*time.Second)
	go sweepWorker.Start(ctx)
	log.Println("pending sweeper started")

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(documentSvc),
		ImportHandler:   handlers.NewImportHandler(ingestSvc),
		WebhookHandler:  handlers.NewWebhookHandler(ingestSvc),
		SearchHandler:   handlers.NewSearchHandler(rt.search),
		WebhookSecret:   cfg.EmailWebhookSecret,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	sweepWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// runtimeDeps bundles the capability-dependent pieces shared between the
// serve command and the synchronous document commands.
type runtimeDeps struct {
	pipe    *pipeline.Pipeline
	storage service.StorageClientInterface
	indexer pipeline.SearchIndexer
	search  handlers.SearchService
}

// buildRuntime wires the pipeline and its capabilities from whatever is
// configured, substituting no-op fallbacks for the rest.
func buildRuntime(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*runtimeDeps, error) {
	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	stageLogRepo := repository.NewStageLogRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	entityRepo := repository.NewEntityRepository(pool)

	var storageClient service.StorageClientInterface = &NoOpStorage{}
	var s3Client *storage.S3Client
	if cfg.HasS3() {
		var err error
		s3Client, err = storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		storageClient = s3Client
	}

	// The extraction client still handles text/plain locally when no
	// extraction API is configured, so it is wired whenever storage is.
	var extractor pipeline.TextExtractor = &NoOpExtractor{}
	if s3Client != nil {
		extractor = extract.NewClient(s3Client, cfg.ExtractorURL, cfg.ExtractorAPIKey)
		if cfg.HasExtractor() {
			log.Println("extraction API configured")
		}
	}

	var (
		scrubber    pipeline.PIIScrubber     = &NoOpScrubber{}
		categorizer pipeline.Categorizer     = &NoOpCategorizer{}
		embedder    pipeline.EmbeddingClient = &NoOpEmbedder{}
		entities    pipeline.EntityExtractor = &NoOpEntityExtractor{}
	)
	if cfg.HasOpenAI() {
		chat := ai.NewChatClient(cfg.OpenAIAPIKey, "")
		scrubber = ai.NewScrubber(chat)
		categorizer = ai.NewCategorizer(chat, categoryRepo, categoryRepo)
		entities = ai.NewEntityExtractor(chat, entityRepo)
		embedder = openai.NewClient(cfg.OpenAIAPIKey)
		log.Println("OpenAI capabilities configured")
	}

	var indexer pipeline.SearchIndexer = &NoOpIndexer{}
	var searchSvc handlers.SearchService = &NoOpSearch{}
	if cfg.HasMeili() {
		meili := search.NewMeiliIndexer(cfg.MeiliHost, cfg.MeiliAPIKey)
		indexer = meili
		searchSvc = meili
		log.Println("Meilisearch indexing configured")
	}

	pipe := pipeline.New(pipeline.Deps{
		Documents:   docRepo,
		Chunks:      chunkRepo,
		StageLog:    stageLogRepo,
		Extractor:   extractor,
		Scrubber:    scrubber,
		Categorizer: categorizer,
		Embedder:    embedder,
		Indexer:     indexer,
		Entities:    entities,
	})

	return &runtimeDeps{
		pipe:    pipe,
		storage: storageClient,
		indexer: indexer,
		search:  searchSvc,
	}, nil
}

// NoOpStorage rejects storage operations when S3 is not configured. Upload
// and email ingestion of attachments fail; transcript imports, which never
// touch object storage, keep working.
type NoOpStorage struct{}

func (s *NoOpStorage) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	return fmt.Errorf("object storage not configured: LOGBOOK_S3_ENDPOINT required")
}

func (s *NoOpStorage) DeleteObject(ctx context.Context, key string) error {
	return fmt.Errorf("object storage not configured: LOGBOOK_S3_ENDPOINT required")
}

func (s *NoOpStorage) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	return "", fmt.Errorf("object storage not configured: LOGBOOK_S3_ENDPOINT required")
}

// NoOpExtractor fails extraction when object storage is not configured.
// Documents with pre-filled text skip extraction and are unaffected.
type NoOpExtractor struct{}

func (e *NoOpExtractor) ExtractText(ctx context.Context, fileKey, mimeType string) (string, error) {
	return "", fmt.Errorf("text extraction not configured: LOGBOOK_S3_ENDPOINT required")
}

type NoOpScrubber struct{}

func (s *NoOpScrubber) Scrub(ctx context.Context, text string) (string, error) {
	return "", fmt.Errorf("PII scrubbing not configured: LOGBOOK_OPENAI_API_KEY required")
}

type NoOpCategorizer struct{}

func (c *NoOpCategorizer) Categorize(ctx context.Context, text, documentID string) (*pipeline.Categorization, error) {
	return nil, fmt.Errorf("categorization not configured: LOGBOOK_OPENAI_API_KEY required")
}

type NoOpEmbedder struct{}

func (e *NoOpEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("embeddings not configured: LOGBOOK_OPENAI_API_KEY required")
}

type NoOpEntityExtractor struct{}

func (e *NoOpEntityExtractor) ExtractEntities(ctx context.Context, text, documentID string) (*pipeline.EntityExtraction, error) {
	return nil, fmt.Errorf("entity extraction not configured: LOGBOOK_OPENAI_API_KEY required")
}

// NoOpIndexer fails indexing but allows removal, so deleting a document
// never fails just because search is not configured.
type NoOpIndexer struct{}

func (i *NoOpIndexer) IndexDocument(ctx context.Context, documentID string, payload pipeline.IndexPayload) error {
	return fmt.Errorf("search indexing not configured: LOGBOOK_MEILI_HOST required")
}

func (i *NoOpIndexer) RemoveDocument(ctx context.Context, documentID string) error {
	return nil
}

type NoOpSearch struct{}

func (s *NoOpSearch) Search(ctx context.Context, input search.SearchInput) (*search.SearchResult, error) {
	return nil, fmt.Errorf("search not configured: LOGBOOK_MEILI_HOST required")
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
