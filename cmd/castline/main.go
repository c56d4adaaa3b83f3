package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/castline/castline/internal/api"
	"github.com/castline/castline/internal/config"
	"github.com/castline/castline/internal/engine"
	"github.com/castline/castline/internal/inbox"
	"github.com/castline/castline/internal/lipsync"
	"github.com/castline/castline/internal/logging"
	"github.com/castline/castline/internal/media"
	"github.com/castline/castline/internal/scheduler"
	"github.com/castline/castline/internal/staging"
	"github.com/castline/castline/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	// Missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.WorkDir(), 0755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting castline", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := store.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := store.NewRepository(database.Conn())

	mediaOp, err := media.NewOperator(buildMediaConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("media tools unavailable: %w", err)
	}

	var lipsyncClient lipsync.Client
	if cfg.LipsyncBaseURL() != "" {
		lipsyncClient = lipsync.NewHTTPClient(cfg.LipsyncBaseURL(), cfg.LipsyncToken(), logger)
		logger.Info("lip-sync service configured", "base_url", cfg.LipsyncBaseURL())
	} else {
		lipsyncClient = lipsync.NewStubClient(logger)
		logger.Warn("no lip-sync service configured, sync segments will fail")
	}

	var stager staging.Stager
	if cfg.StagingBaseURL() != "" {
		stager = staging.NewHTTPStager(cfg.StagingBaseURL(), cfg.StagingToken(), logger)
	} else {
		stager = staging.NewStubStager(logger)
	}

	var health media.HealthChecker
	if hc, ok := lipsyncClient.(*lipsync.HTTPClient); ok {
		health = hc
	}
	doctor := media.NewDoctor(health, logger)
	caps := doctor.Refresh(context.Background())
	logger.Info("capabilities detected",
		"ffmpeg", caps.HasFFmpeg,
		"ffprobe", caps.HasFFprobe,
		"lipsync_reachable", caps.LipsyncReachable,
	)

	eng := engine.New(cfg, mediaOp, lipsyncClient, stager, repo, logger)

	if len(os.Args) > 1 && os.Args[1] != "serve" {
		return runOnce(eng, os.Args[1])
	}

	return runDaemon(cfg, eng, repo, doctor, logger, startTime)
}

// runOnce composes a single script and prints the outcome.
func runOnce(eng *engine.Engine, scriptPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := engine.NewRunID()
	report, err := eng.Generate(ctx, runID, scriptPath)
	if err != nil {
		if report != nil && errors.Is(err, scheduler.ErrNoContentProduced) {
			for _, f := range report.Failed {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", f.SegmentID, f.Reason)
			}
		}
		return err
	}

	fmt.Printf("run %s finished: %d/%d segments, output %s\n",
		report.RunID, report.Succeeded, report.Total, report.ArtifactPath)
	for _, f := range report.Failed {
		fmt.Printf("  skipped %s: %s\n", f.SegmentID, f.Reason)
	}
	if report.Partial() {
		os.Exit(2)
	}
	return nil
}

// buildMediaConfig applies the configured operation timeouts on top of the
// media defaults.
func buildMediaConfig(cfg config.Config) media.Config {
	mediaCfg := media.DefaultConfig(cfg.WorkDir())
	mediaCfg.ExtractTimeout = cfg.ExtractTimeout()
	mediaCfg.ConcatTimeout = cfg.ConcatTimeout()
	mediaCfg.ProbeTimeout = cfg.ProbeTimeout()
	return mediaCfg
}

// runDaemon serves the HTTP API (when enabled) and watches the script inbox
// until a shutdown signal arrives.
func runDaemon(cfg config.Config, eng *engine.Engine, repo store.Repository, doctor *media.Doctor, logger *slog.Logger, startTime time.Time) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var apiServer *api.Server
	if cfg.APIEnabled() {
		authToken, err := ensureAuthToken(repo)
		if err != nil {
			return fmt.Errorf("failed to ensure auth token: %w", err)
		}
		logger.Info("API ready", "url", fmt.Sprintf("http://127.0.0.1:%d", cfg.Port()), "auth_token", logging.SanitizeToken(authToken))

		apiServer = api.NewServer(api.ServerConfig{
			Port:       cfg.Port(),
			Engine:     eng,
			Repository: repo,
			Doctor:     doctor,
			Logger:     logger,
			StartTime:  startTime,
			Version:    config.Version,
		})

		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("HTTP server error", "error", err)
			}
		}()
	} else {
		logger.Info("HTTP API disabled", "env", config.EnvAPIEnabled)
	}

	if cfg.InboxDir() != "" {
		watcher := inbox.New(inbox.Config{Dir: cfg.InboxDir(), Logger: logger}, func(path string) {
			runID := engine.NewRunID()
			go func() {
				if _, err := eng.Generate(ctx, runID, path); err != nil {
					logger.Error("inbox run failed", "run_id", runID, "script", path, "error", err)
				}
			}()
		})
		go func() {
			if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("inbox watcher stopped", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	cancel()

	if apiServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown HTTP server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(repo store.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
