package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fabfab/course-rag/api"
	"github.com/fabfab/course-rag/config"
	"github.com/fabfab/course-rag/database"
	"github.com/fabfab/course-rag/docproc"
	"github.com/fabfab/course-rag/embeddings"
	"github.com/fabfab/course-rag/llm"
	"github.com/fabfab/course-rag/rag"
	"github.com/fabfab/course-rag/session"
	"github.com/fabfab/course-rag/vectorstore"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "query":
		queryCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.ListenAddr, "listen address for the HTTP API")
	docsDir := flags.String("docs", cfg.DocsDir, "course documents folder ingested on startup")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	system, cleanup, err := buildSystem(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer cleanup()

	if *docsDir != "" {
		courses, chunks, err := system.AddCourseFolder(ctx, *docsDir, false)
		if err != nil {
			logger.Fatalf("startup ingestion: %v", err)
		}
		logger.Printf("startup ingestion: %d new courses, %d chunks", courses, chunks)
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           api.New(system, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", *addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	docsDir := flags.String("dir", cfg.DocsDir, "path to folder containing course documents")
	clearExisting := flags.Bool("clear", false, "clear the index before ingesting")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	if cfg.VectorBackend == config.BackendEmbedded {
		logger.Printf("warning: the embedded backend is in-memory, ingested data will not outlive this process")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	system, cleanup, err := buildSystem(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer cleanup()

	courses, chunks, err := system.AddCourseFolder(ctx, *docsDir, *clearExisting)
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}
	logger.Printf("ingested %d new courses (%d chunks)", courses, chunks)
}

func queryCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("query", flag.ExitOnError)
	question := flags.String("question", "", "question to ask about the course materials")
	docsDir := flags.String("docs", cfg.DocsDir, "course documents folder ingested before answering")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse query flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	system, cleanup, err := buildSystem(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer cleanup()

	if *docsDir != "" {
		if _, _, err := system.AddCourseFolder(ctx, *docsDir, false); err != nil {
			logger.Fatalf("ingestion: %v", err)
		}
	}

	answer, sources, _, err := system.Query(ctx, *question, "")
	if err != nil {
		logger.Fatalf("query failed: %v", err)
	}

	fmt.Println(answer)
	if len(sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for idx, source := range sources {
			label := source.Course
			if source.Lesson != nil {
				label = fmt.Sprintf("%s - Lesson %d", source.Course, *source.Lesson)
			}
			fmt.Printf("%d. %s\n", idx+1, label)
		}
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete the indexed course catalog and content. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup: %v", err)
	}
	defer cleanup()

	if err := store.ClearAll(ctx); err != nil {
		logger.Fatalf("clear failed: %v", err)
	}
	logger.Println("course catalog and content cleared")
}

func buildSystem(ctx context.Context, cfg config.Config, logger *log.Logger) (*rag.System, func(), error) {
	store, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("llm setup: %w", err)
	}

	processor := docproc.NewProcessor(cfg.ChunkSize, cfg.ChunkOverlap)
	sessions := session.NewManager(cfg.MaxHistory)

	system := rag.NewSystem(processor, store, llmClient, sessions, logger, rag.Config{
		MaxResults:    cfg.MaxResults,
		MaxToolRounds: cfg.MaxToolRounds,
	})
	return system, cleanup, nil
}

func buildStore(ctx context.Context, cfg config.Config, logger *log.Logger) (*vectorstore.Store, func(), error) {
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("embedder setup: %w", err)
	}

	switch cfg.VectorBackend {
	case config.BackendPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		backend := vectorstore.NewPostgresBackend(pool, embedder)
		return vectorstore.NewStore(backend, cfg.MaxResults), pool.Close, nil
	case config.BackendEmbedded:
		backend := vectorstore.NewEmbeddedBackend(vectorstore.EmbeddingFuncFromEmbedder(embedder))
		return vectorstore.NewStore(backend, cfg.MaxResults), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector backend: %s", cfg.VectorBackend)
	}
}

func printUsage() {
	fmt.Println("Usage: course-rag <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Start the HTTP API (ingests the docs folder on startup)")
	fmt.Println("  ingest   Ingest course documents into the vector store")
	fmt.Println("  query    Ask a one-off question from the command line")
	fmt.Println("  clear    Remove the indexed course catalog and content")
}
