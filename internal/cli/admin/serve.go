package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/knowpool/internal/api/handlers"
	"github.com/cloo-solutions/knowpool/internal/config"
	"github.com/cloo-solutions/knowpool/internal/jobs"
	"github.com/cloo-solutions/knowpool/internal/openai"
	"github.com/cloo-solutions/knowpool/internal/server"
	"github.com/cloo-solutions/knowpool/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the knowpool API server and the background accumulation worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("no-worker", false, "Do not process queued sessions in this process")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate(),
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
	} else {
		defer shutdownTelemetry()
	}

	if portFlag, _ := cmd.Flags().GetString("port"); portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	rt, err := newRuntime(ctx, cfg, runtimeOptions{Migrate: !noMigrate, Storage: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	var worker *jobs.Worker
	if noWorker, _ := cmd.Flags().GetBool("no-worker"); !noWorker {
		var extractor jobs.InsightExtractor
		if cfg.HasOpenAI() {
			extractor = openai.NewClientWithConfig(openai.Config{APIKey: cfg.OpenAIAPIKey, ChatModel: cfg.OpenAIModel})
			log.Println("insight extraction enabled")
		}
		processor := jobs.NewAccumulationWorker(rt.Jobs, rt.Accumulator, extractor)
		worker = jobs.NewWorker("accumulation", processor, cfg.AccumulationPollInterval)
		go worker.Start(ctx)
		log.Println("accumulation worker started")
	}

	var snapshots handlers.Snapshotter
	if rt.Snapshots != nil {
		snapshots = rt.Snapshots
	}

	router := server.NewRouter(server.RouterConfig{
		APIKeys:          cfg.APIKeys(),
		KnowledgeHandler: handlers.NewKnowledgeHandler(rt.Ranking),
		ContextHandler:   handlers.NewContextHandler(rt.Context),
		SessionHandler:   handlers.NewSessionHandler(rt.Accumulator, rt.Queue),
		SnapshotHandler:  handlers.NewSnapshotHandler(snapshots),
	})
	if len(cfg.APIKeys()) == 0 {
		log.Println("warning: KNOWPOOL_API_KEY not set, API is unauthenticated")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
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

	if worker != nil {
		worker.Stop()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
