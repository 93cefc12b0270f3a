package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quorumworks/logbook/internal/config"
	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/pagination"
	"github.com/quorumworks/logbook/internal/repository"
	"github.com/quorumworks/logbook/internal/service"
	"github.com/spf13/cobra"
)

func DocumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Manage documents",
		Long:  "List, inspect, and reprocess documents",
	}

	cmd.AddCommand(DocumentListCmd())
	cmd.AddCommand(DocumentStatusCmd())
	cmd.AddCommand(DocumentProcessCmd())
	cmd.AddCommand(DocumentReprocessCmd())

	return cmd
}

func DocumentListCmd() *cobra.Command {
	var (
		status string
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Long:  "List documents newest first, optionally filtered by processing status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocumentList(cmd, status, limit, cursor)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by processing status (pending, processing, completed, failed, flagged_for_review)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of documents to return")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous call")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runDocumentList(cmd *cobra.Command, status string, limit int, cursorStr string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	var cursor *pagination.Cursor
	if cursorStr != "" {
		cursor, err = pagination.DecodeCursor(cursorStr)
		if err != nil {
			return fmt.Errorf("invalid cursor: %w", err)
		}
	}

	statusFilter := domain.ProcessingStatus(status)
	if status != "" && !domain.IsValidProcessingStatus(statusFilter) {
		return fmt.Errorf("invalid status %q", status)
	}

	docRepo := repository.NewDocumentRepository(pool)
	page, err := docRepo.ListWithCursor(ctx, statusFilter, cursor, limit)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"documents":   page.Items,
			"next_cursor": page.NextCursor,
			"has_more":    page.HasMore,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	for _, doc := range page.Items {
		fmt.Printf("%s  %-20s  %-12s  %s\n", doc.ID, doc.ProcessingStatus, doc.PrivacyLevel, doc.Title)
	}
	if page.HasMore {
		fmt.Printf("\nmore results: --cursor %s\n", page.NextCursor)
	}

	return nil
}

func DocumentStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show a document's processing status",
		Long:  "Show a document's current status, stage history, and chunk count",
		Args:  cobra.ExactArgs(1),
		RunE:  runDocumentStatus,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runDocumentStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	docRepo := repository.NewDocumentRepository(pool)
	stageLogRepo := repository.NewStageLogRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

	doc, err := docRepo.GetByID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	stages, err := stageLogRepo.ListByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to list stages: %w", err)
	}

	count, err := chunkRepo.CountByDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"document":    doc,
			"stages":      stages,
			"chunk_count": count,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	fmt.Printf("Document: %s (%s)\n", doc.Title, doc.ID)
	fmt.Printf("Status:   %s\n", doc.ProcessingStatus)
	if doc.ProcessingError != "" {
		fmt.Printf("Errors:   %s\n", doc.ProcessingError)
	}
	fmt.Printf("Chunks:   %d\n", count)
	for _, st := range stages {
		fmt.Printf("  %-20s %s", st.Stage, st.Status)
		if st.ErrorMessage != "" {
			fmt.Printf("  (%s)", st.ErrorMessage)
		}
		fmt.Println()
	}

	return nil
}

func DocumentProcessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <id>",
		Short: "Run the processing pipeline for a document",
		Long:  "Run the processing pipeline synchronously for one document and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE:  runDocumentProcess,
	}
}

func runDocumentProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	rt, err := buildRuntime(ctx, cfg, pool)
	if err != nil {
		return err
	}

	rt.pipe.Process(ctx, args[0])

	docRepo := repository.NewDocumentRepository(pool)
	doc, err := docRepo.GetByID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document after processing: %w", err)
	}

	fmt.Printf("Document %s: %s\n", doc.ID, doc.ProcessingStatus)
	if doc.ProcessingError != "" {
		fmt.Printf("Errors: %s\n", doc.ProcessingError)
	}

	return nil
}

func DocumentReprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <id>",
		Short: "Reset and reprocess a document",
		Long:  "Clear a document's derived data and run the processing pipeline again synchronously",
		Args:  cobra.ExactArgs(1),
		RunE:  runDocumentReprocess,
	}
}

func runDocumentReprocess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	docRepo := repository.NewDocumentRepository(pool)
	doc, err := docRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}
	if doc.ProcessingStatus == domain.StatusProcessing {
		return fmt.Errorf("document %s is already processing", id)
	}

	txRunner := repository.NewTxRunner(pool)
	err = txRunner.WithTx(ctx, func(repos service.TxRepositories) error {
		if err := repos.Documents().ResetForReprocess(ctx, id); err != nil {
			return err
		}
		if err := repos.Chunks().DeleteByDocument(ctx, id); err != nil {
			return err
		}
		return repos.StageLogs().DeleteByDocument(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to reset document: %w", err)
	}

	rt, err := buildRuntime(ctx, cfg, pool)
	if err != nil {
		return err
	}

	rt.pipe.Process(ctx, id)

	doc, err = docRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get document after processing: %w", err)
	}

	fmt.Printf("Document %s: %s\n", doc.ID, doc.ProcessingStatus)
	if doc.ProcessingError != "" {
		fmt.Printf("Errors: %s\n", doc.ProcessingError)
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
