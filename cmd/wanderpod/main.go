package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wanderpod/internal/api"
	"wanderpod/pkg/audio"
	"wanderpod/pkg/cache"
	"wanderpod/pkg/config"
	"wanderpod/pkg/db"
	"wanderpod/pkg/facts"
	"wanderpod/pkg/llm"
	"wanderpod/pkg/llm/failover"
	"wanderpod/pkg/llm/gemini"
	"wanderpod/pkg/logging"
	"wanderpod/pkg/narrative"
	"wanderpod/pkg/podcast"
	"wanderpod/pkg/probe"
	"wanderpod/pkg/progress"
	"wanderpod/pkg/prompt"
	"wanderpod/pkg/quality"
	"wanderpod/pkg/request"
	"wanderpod/pkg/store"
	"wanderpod/pkg/synth"
	"wanderpod/pkg/synth/azure"
	"wanderpod/pkg/synth/edge"
	"wanderpod/pkg/synth/fishaudio"
	"wanderpod/pkg/tracker"
	"wanderpod/pkg/version"
)

var (
	configPath = flag.String("config", "configs/wanderpod.yaml", "Path to the configuration file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	// Secrets may live in a local .env during development
	_ = godotenv.Load()

	if *initConfig {
		if err := config.Save(*configPath, config.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log, &cfg.History)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	// Configure History Logging
	synth.SetLogPath(cfg.History.TTS.Path)
	synth.SetEnabled(cfg.History.TTS.Enabled)

	slog.Info("WanderPod Started", "version", version.Version)

	dbConn, err := db.Init(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()
	st := store.NewSQLiteStore(dbConn)

	tr := tracker.New()
	reqClient := request.New(cache.NewSQLiteCache(dbConn), tr)
	source := facts.NewWikipediaSource(reqClient)

	llmProv, llmNames, err := buildLLMProvider(cfg, tr)
	if err != nil {
		return err
	}

	promptMgr, err := prompt.NewManager("configs/prompts")
	if err != nil {
		return fmt.Errorf("failed to initialize prompt manager: %w", err)
	}

	constructor, err := narrative.NewConstructor(llmProv, promptMgr, cfg.Narrative)
	if err != nil {
		return err
	}
	defer constructor.Close()

	engines, err := buildSynthesizers(&cfg.TTS, tr)
	if err != nil {
		return err
	}

	reporter, err := progress.New(cfg.Progress)
	if err != nil {
		return fmt.Errorf("failed to initialize progress reporter: %w", err)
	}
	defer reporter.Close()

	svc := podcast.NewService(
		cfg,
		source,
		constructor,
		quality.NewGate(cfg.Quality),
		synth.NewSelector(cfg.Selector, cfg.TTS.Profiles()),
		engines,
		audio.NewProcessor(cfg.Audio),
		st,
		tr,
		reporter,
	)

	// Startup Probes
	results := probe.Run(ctx, []probe.Probe{
		{
			Name:     "LLM Providers",
			Check:    llmProv.HealthCheck,
			Critical: true,
		},
	})
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	// Server
	episodeH := api.NewEpisodeHandler(svc, st)
	statsH := api.NewStatsHandler(tr, llmNames)
	srv := api.NewServer(cfg.Server.Address, episodeH, statsH, cancel)
	srv.Handler = loggingMiddleware(srv.Handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	return runServerLifecycle(ctx, srv, quit)
}

// buildLLMProvider assembles the text-generation failover chain from
// the configured provider list.
func buildLLMProvider(cfg *config.Config, tr *tracker.Tracker) (llm.Provider, []string, error) {
	if len(cfg.LLM.Providers) == 0 {
		return nil, nil, fmt.Errorf("no llm providers configured")
	}

	var providers []llm.Provider
	var names []string
	for i, pCfg := range cfg.LLM.Providers {
		switch pCfg.Type {
		case "gemini":
			client, err := gemini.NewClient(pCfg, cfg.History.LLM.Path, tr)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to initialize gemini provider %d: %w", i, err)
			}
			providers = append(providers, client)
			names = append(names, fmt.Sprintf("gemini-%d", i))
		default:
			return nil, nil, fmt.Errorf("unknown llm provider type: %s", pCfg.Type)
		}
	}

	prov, err := failover.New(providers, names, cfg.History.LLM.Path, cfg.History.LLM.Enabled, tr)
	if err != nil {
		return nil, nil, err
	}
	return prov, names, nil
}

// buildSynthesizers creates one engine per configured TTS provider,
// keyed by profile ID for the selector.
func buildSynthesizers(cfg *config.TTSConfig, tr *tracker.Tracker) (map[string]synth.Synthesizer, error) {
	engines := make(map[string]synth.Synthesizer, len(cfg.Providers))
	for _, p := range cfg.Providers {
		switch p.Engine {
		case "edge", "edge-tts":
			engines[p.ID] = edge.NewProvider(tr)
		case "fish-audio", "fishaudio":
			engines[p.ID] = fishaudio.NewProvider(p, tr)
		case "azure", "azure-speech":
			engines[p.ID] = azure.NewProvider(p, tr)
		default:
			return nil, fmt.Errorf("unknown tts engine: %s", p.Engine)
		}
	}
	return engines, nil
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
