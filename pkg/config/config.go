package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Env variable names understood by Load.
const (
	EnvAPIKey             = "ASSEMBLYAI_API_KEY"
	EnvDataDir            = "YT_TRANSCRIBE_DATA_DIR"
	EnvCookiesFile        = "YT_COOKIES_FILE"
	EnvCookiesFromBrowser = "YT_COOKIES_FROM_BROWSER"
	EnvKeepAudio          = "YT_KEEP_AUDIO"
)

// ErrAPIKeyMissing is returned when the provider API key is not configured.
var ErrAPIKeyMissing = fmt.Errorf("API key not set; run `yt-cli init` to configure")

// Config carries all external inputs to the catalog and job pipeline.
// It is passed explicitly into constructors so tests can run multiple
// isolated instances (distinct data dirs, fake providers).
type Config struct {
	// DataDir is the base data directory (default ~/.yt-transcribe).
	DataDir string

	// APIKey is the transcription provider API key.
	APIKey string

	// CookiesFile, if set, is a Netscape cookies file handed to the downloader
	// for access-restricted content. Takes precedence over CookiesFromBrowser.
	CookiesFile string

	// CookiesFromBrowser, if set, tells the downloader to extract cookies from
	// the named browser (e.g., "firefox").
	CookiesFromBrowser string

	// KeepAudio retains the downloaded audio file inside the storage entry
	// after a successful transcription.
	KeepAudio bool

	// PollInterval is the provider status poll cadence.
	PollInterval time.Duration

	// ProcessingTimeout bounds the provider-side Processing state.
	ProcessingTimeout time.Duration

	// UploadTimeout bounds a single audio upload attempt.
	UploadTimeout time.Duration

	// MaxUploadAttempts bounds upload retries before the job fails.
	MaxUploadAttempts int
}

// Default timing values. Provider jobs commonly take minutes for long videos.
const (
	DefaultPollInterval      = 3 * time.Second
	DefaultProcessingTimeout = 60 * time.Minute
	DefaultUploadTimeout     = 5 * time.Minute
	DefaultMaxUploadAttempts = 5
)

// Load builds a Config from the environment. It first loads the data
// directory's .env file if present (falling back to a .env in the current
// directory), so a key written by `yt-cli init` is picked up automatically.
func Load() (Config, error) {
	dataDir := os.Getenv(EnvDataDir)
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".yt-transcribe")
	}

	envPath := filepath.Join(dataDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := Config{
		DataDir:            dataDir,
		APIKey:             os.Getenv(EnvAPIKey),
		CookiesFile:        os.Getenv(EnvCookiesFile),
		CookiesFromBrowser: os.Getenv(EnvCookiesFromBrowser),
		KeepAudio:          parseBool(os.Getenv(EnvKeepAudio)),
		PollInterval:       DefaultPollInterval,
		ProcessingTimeout:  DefaultProcessingTimeout,
		UploadTimeout:      DefaultUploadTimeout,
		MaxUploadAttempts:  DefaultMaxUploadAttempts,
	}
	return cfg, nil
}

func parseBool(s string) bool {
	v, err := strconv.ParseBool(s)
	return err == nil && v
}

// TranscriptsDir is the root of the stored entry tree.
func (c Config) TranscriptsDir() string {
	return filepath.Join(c.DataDir, "transcripts")
}

// DownloadsDir holds in-flight audio downloads before they are materialized.
func (c Config) DownloadsDir() string {
	return filepath.Join(c.DataDir, ".downloads")
}

// LocksDir holds the per-entry advisory lock files.
func (c Config) LocksDir() string {
	return filepath.Join(c.DataDir, ".locks")
}

// DatabasePath is the search index database file.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "transcripts.db")
}

// EnvFilePath is where `yt-cli init` persists configuration.
func (c Config) EnvFilePath() string {
	return filepath.Join(c.DataDir, ".env")
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrAPIKeyMissing
	}
	return nil
}

// EnsureDirs creates the data directory layout if missing.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.TranscriptsDir(), c.DownloadsDir(), c.LocksDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// WriteEnvFile persists the API key to the data directory's .env file.
// Fails if the file exists and force is false.
func (c Config) WriteEnvFile(apiKey string, force bool) error {
	if err := c.EnsureDirs(); err != nil {
		return err
	}
	path := c.EnvFilePath()
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		}
	}
	content := fmt.Sprintf("%s=%s\n", EnvAPIKey, apiKey)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}
