package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/launchradar/launchradar/internal/common"
	"github.com/launchradar/launchradar/internal/enrichment"
	"github.com/launchradar/launchradar/internal/interfaces"
	"github.com/launchradar/launchradar/internal/server"
	"github.com/launchradar/launchradar/internal/storage/vector"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)

	var files configPaths
	fs.Var(&files, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")

	serverPort := fs.Int("port", 0, "Server port (overrides config)")
	serverPortP := fs.Int("p", 0, "Server port (shorthand, overrides config)")
	serverHost := fs.String("host", "", "Server host (overrides config)")

	fs.Parse(args)

	config = loadConfig(files)

	finalPort := *serverPort
	if *serverPortP != 0 {
		finalPort = *serverPortP
	}
	common.ApplyFlagOverrides(config, finalPort, *serverHost)

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	if config.Database.ServiceURL == "" {
		logger.Fatal().Msg("Database service_url is required to serve the API")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Query embedding is the only enrichment the API needs; without it
	// semantic and hybrid modes report an error and keyword mode still works.
	store, err := newQueryStore(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the company store")
		os.Exit(1)
	}
	defer store.Close()

	srv := server.New(config, store, nil, logger)

	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Msg("Interrupt signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
}

// newQueryStore opens the company store with a query-side embedder when
// embeddings are enabled, or without one otherwise.
func newQueryStore(ctx context.Context) (*vector.Store, error) {
	var embedder interfaces.EmbeddingService
	if config.Enrichment.EnableEmbeddings {
		e, err := enrichment.NewEmbeddingService(ctx, config, logger)
		if err != nil {
			return nil, err
		}
		embedder = e
	}
	return vector.NewStore(ctx, config.Database.ServiceURL, config.Database.TableName, embedder, logger)
}
