// Package config provides configuration management for castline.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort          = 8790
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".castline"
	DefaultCharactersDir = "characters"
	DefaultMetaDir       = "meta"
	DefaultOutputDir     = "output"

	// Environment variable names
	EnvPort          = "CASTLINE_PORT"
	EnvLogLevel      = "CASTLINE_LOG_LEVEL"
	EnvDataDir       = "CASTLINE_DATA_DIR"
	EnvCharactersDir = "CASTLINE_CHARACTERS_DIR"
	EnvMetaDir       = "CASTLINE_META_DIR"
	EnvOutputDir     = "CASTLINE_OUTPUT_DIR"
	EnvAPIEnabled    = "CASTLINE_API"
	EnvInboxDir      = "CASTLINE_INBOX_DIR"

	// Scheduler environment variable names
	EnvSyncConcurrency = "CASTLINE_SYNC_CONCURRENCY"
	EnvBatchPauseMs    = "CASTLINE_BATCH_PAUSE_MS"

	// Lip-sync service environment variable names
	EnvLipsyncBaseURL = "CASTLINE_LIPSYNC_URL"
	EnvLipsyncToken   = "CASTLINE_LIPSYNC_TOKEN"
	EnvStagingBaseURL = "CASTLINE_STAGING_URL"
	EnvStagingToken   = "CASTLINE_STAGING_TOKEN"

	// Database filename
	DBFilename = "castline.db"

	// Scheduler defaults
	DefaultSyncConcurrency = 1
	DefaultBatchPauseMs    = 500

	// Media operation timeouts
	DefaultExtractTimeout = 300  // seconds
	DefaultConcatTimeout  = 600  // seconds
	DefaultProbeTimeout   = 30   // seconds
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	WorkDir() string
	CharactersDir() string
	MetaDir() string
	OutputDir() string
	APIEnabled() bool
	InboxDir() string
	SyncConcurrency() int
	BatchPause() time.Duration
	LipsyncBaseURL() string
	LipsyncToken() string
	StagingBaseURL() string
	StagingToken() string
	ExtractTimeout() time.Duration
	ConcatTimeout() time.Duration
	ProbeTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port          int
	logLevel      string
	dataDir       string
	charactersDir string
	metaDir       string
	outputDir     string
	apiEnabled    bool
	inboxDir      string

	syncConcurrency int
	batchPauseMs    int

	lipsyncBaseURL string
	lipsyncToken   string
	stagingBaseURL string
	stagingToken   string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:            DefaultPort,
		logLevel:        DefaultLogLevel,
		dataDir:         defaultDataDir(),
		charactersDir:   DefaultCharactersDir,
		metaDir:         DefaultMetaDir,
		outputDir:       DefaultOutputDir,
		syncConcurrency: DefaultSyncConcurrency,
		batchPauseMs:    DefaultBatchPauseMs,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if cd := os.Getenv(EnvCharactersDir); cd != "" {
		cfg.charactersDir = cd
	}

	if md := os.Getenv(EnvMetaDir); md != "" {
		cfg.metaDir = md
	}

	if od := os.Getenv(EnvOutputDir); od != "" {
		cfg.outputDir = od
	}

	if ae := os.Getenv(EnvAPIEnabled); ae != "" {
		cfg.apiEnabled = ae == "1" || ae == "true"
	}

	cfg.inboxDir = os.Getenv(EnvInboxDir)

	if sc := os.Getenv(EnvSyncConcurrency); sc != "" {
		n, err := strconv.Atoi(sc)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvSyncConcurrency)
		}
		cfg.syncConcurrency = n
	}

	if bp := os.Getenv(EnvBatchPauseMs); bp != "" {
		n, err := strconv.Atoi(bp)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s: must be a non-negative integer", EnvBatchPauseMs)
		}
		cfg.batchPauseMs = n
	}

	cfg.lipsyncBaseURL = os.Getenv(EnvLipsyncBaseURL)
	cfg.lipsyncToken = os.Getenv(EnvLipsyncToken)
	cfg.stagingBaseURL = os.Getenv(EnvStagingBaseURL)
	cfg.stagingToken = os.Getenv(EnvStagingToken)

	return cfg, nil
}

// Port returns the HTTP status server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// WorkDir returns the scratch directory for intermediate clips
func (c *EnvConfig) WorkDir() string {
	return filepath.Join(c.dataDir, "work")
}

// CharactersDir returns the directory scanned for character media assets
func (c *EnvConfig) CharactersDir() string {
	return c.charactersDir
}

// MetaDir returns the directory holding intros/outros/cutaways/overlays
func (c *EnvConfig) MetaDir() string {
	return c.metaDir
}

// OutputDir returns the directory final artifacts are written to
func (c *EnvConfig) OutputDir() string {
	return c.outputDir
}

// APIEnabled reports whether the HTTP status server should be started
func (c *EnvConfig) APIEnabled() bool {
	return c.apiEnabled
}

// InboxDir returns the watched scripts directory; empty disables watch mode
func (c *EnvConfig) InboxDir() string {
	return c.inboxDir
}

func (c *EnvConfig) SyncConcurrency() int {
	return c.syncConcurrency
}

func (c *EnvConfig) BatchPause() time.Duration {
	return time.Duration(c.batchPauseMs) * time.Millisecond
}

func (c *EnvConfig) LipsyncBaseURL() string {
	return c.lipsyncBaseURL
}

func (c *EnvConfig) LipsyncToken() string {
	return c.lipsyncToken
}

func (c *EnvConfig) StagingBaseURL() string {
	return c.stagingBaseURL
}

func (c *EnvConfig) StagingToken() string {
	return c.stagingToken
}

func (c *EnvConfig) ExtractTimeout() time.Duration {
	return time.Duration(DefaultExtractTimeout) * time.Second
}

func (c *EnvConfig) ConcatTimeout() time.Duration {
	return time.Duration(DefaultConcatTimeout) * time.Second
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return time.Duration(DefaultProbeTimeout) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
