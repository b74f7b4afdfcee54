package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/launchradar/launchradar/internal/common"
	"github.com/launchradar/launchradar/internal/enrichment"
	"github.com/launchradar/launchradar/internal/interfaces"
	"github.com/launchradar/launchradar/internal/pipeline"
	"github.com/launchradar/launchradar/internal/proxy"
	"github.com/launchradar/launchradar/internal/scheduler"
	"github.com/launchradar/launchradar/internal/scraper"
	"github.com/launchradar/launchradar/internal/services/llm"
	"github.com/launchradar/launchradar/internal/storage/seen"
	"github.com/launchradar/launchradar/internal/storage/vector"
)

func runScrape(args []string) {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)

	var files configPaths
	fs.Var(&files, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")

	limit := fs.Int("limit", -1, "Maximum companies to extract (0 = unlimited, overrides config)")
	pages := fs.Int("pages", -1, "Hard limit on scroll pages (0 = unlimited, overrides config)")
	table := fs.String("table", "", "Target table name (overrides config)")
	noAI := fs.Bool("no-ai", false, "Skip AI synthesis; records carry the empty placeholder")
	noEmbeddings := fs.Bool("no-embeddings", false, "Skip embedding computation; records carry no vector")
	noDB := fs.Bool("no-db", false, "Skip persistence entirely")
	noProxy := fs.Bool("no-proxy", false, "Connect directly instead of through the proxy provider")
	periodic := fs.Bool("periodic", false, "Run on a schedule instead of once")
	interval := fs.Duration("interval", 0, "Interval between periodic runs (overrides config)")

	fs.Parse(args)

	config = loadConfig(files)

	// Flag overrides (highest priority)
	if *limit >= 0 {
		config.Scraper.CompanyCap = *limit
	}
	if *pages >= 0 {
		config.Scraper.PageLimit = *pages
	}
	if *table != "" {
		config.Database.TableName = *table
	}
	if *noAI {
		config.Enrichment.EnableAIInsights = false
	}
	if *noEmbeddings {
		config.Enrichment.EnableEmbeddings = false
	}
	if *noProxy {
		config.Proxy.Enabled = false
	}
	if *periodic {
		config.Scheduler.Enabled = true
	}
	if *interval > 0 {
		config.Scheduler.Interval = *interval
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Browser session orchestration, optionally proxied
	var proxies *proxy.Manager
	if config.Proxy.Enabled {
		proxies = proxy.NewManager(config.Proxy.RequestTimeout, logger)
	}
	orchestrator := scraper.NewOrchestrator(config, proxies, logger)

	// Enrichment stages; disabled stages stay nil and the gateway degrades
	var embedder interfaces.EmbeddingService
	if config.Enrichment.EnableEmbeddings {
		e, err := enrichment.NewEmbeddingService(ctx, config, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize embedding service")
			os.Exit(1)
		}
		embedder = e
	}

	var synthesizer vector.SynthesisGenerator
	if config.Enrichment.EnableAIInsights {
		llmService, err := llm.NewLLMService(ctx, config, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize LLM service")
			os.Exit(1)
		}
		defer llmService.Close()
		synthesizer = enrichment.NewSynthesizer(llmService, logger)
	}

	gateway := vector.NewGateway(embedder, synthesizer, config.Scraper.ScraperVersion, logger)

	// Persistence and cross-run dedup
	var store interfaces.CompanyStore
	var seenStore interfaces.SeenStore
	if !*noDB {
		if config.Database.ServiceURL == "" {
			logger.Fatal().Msg("Database service_url is required (or pass -no-db)")
			os.Exit(1)
		}

		s, err := vector.NewStore(ctx, config.Database.ServiceURL, config.Database.TableName, embedder, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to the company store")
			os.Exit(1)
		}
		defer s.Close()
		store = s

		ss, err := seen.NewStore(config.SeenStore.Path, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Seen-store unavailable, cross-run dedup disabled for this run")
		} else {
			defer ss.Close()
			seenStore = ss
		}
	} else {
		logger.Info().Msg("Persistence disabled, scraped records will not be stored")
	}

	p := pipeline.New(config, orchestrator, gateway, store, seenStore, logger)

	if config.Scheduler.Enabled {
		svc, err := scheduler.NewService(p, config.Scheduler.Interval, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create scheduler")
			os.Exit(1)
		}

		logger.Info().
			Dur("interval", config.Scheduler.Interval).
			Msg("Running periodically - Press Ctrl+C to stop")

		_ = svc.Start(ctx)
		svc.Stop()
		return
	}

	start := time.Now()
	stats, err := p.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Pipeline run failed")
		os.Exit(1)
	}

	logger.Info().
		Int("extracted", stats.Extracted).
		Int("new", stats.NewRecords).
		Int("inserted", stats.Inserted).
		Int("rejected", stats.Rejected).
		Int("degraded", stats.Degraded).
		Dur("duration", stats.Duration).
		Msg("Pipeline run complete")
}
