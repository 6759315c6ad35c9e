// Package config loads worker configuration from environment variables
// (primary, per §6) layered over an optional worker.yml file, following
// the teacher's yaml.v3 struct style and the viper env-var precedence
// pattern used elsewhere in the pack.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/reelvault/worker/internal/secrets"
)

// encryptedPrefix marks a worker.yml DSN value as secrets.Encrypt output
// rather than a plain connection string, so operators can commit worker.yml
// without leaking queue/store credentials at rest.
const encryptedPrefix = "enc:"

// Config holds every tunable the pipeline worker reads at startup.
type Config struct {
	MaxDownloadWorkers int    `yaml:"max_download_workers,omitempty"`
	FFmpegThreads      int    `yaml:"ffmpeg_threads,omitempty"`
	MaxRetryAttempts   int    `yaml:"max_retry_attempts,omitempty"`
	SkipTSValidation   bool   `yaml:"skip_ts_validation,omitempty"`
	LogLevel           string `yaml:"log_level,omitempty"`
	AllowReencode      bool   `yaml:"allow_reencode,omitempty"`

	QueueDSN  string `yaml:"queue_dsn,omitempty"`
	StoreDSN  string `yaml:"store_dsn,omitempty"`
	OutputDir string `yaml:"output_dir,omitempty"`

	AdminAddr string `yaml:"admin_addr,omitempty"`
}

// Default mirrors the env-var defaults from §6.
func Default() *Config {
	return &Config{
		MaxDownloadWorkers: 2,
		FFmpegThreads:      4,
		MaxRetryAttempts:   3,
		SkipTSValidation:   false,
		LogLevel:           "info",
		AllowReencode:      true,
		OutputDir:          ".",
		AdminAddr:          ":9090",
	}
}

// Load builds a Config from Default(), an optional yaml file at path (if
// non-empty and present), and environment variables — in that precedence
// order, environment winning last, matching the MAX_DOWNLOAD_WORKERS /
// FFMPEG_THREADS / MAX_RETRY_ATTEMPTS / SKIP_TS_VALIDATION / LOG_LEVEL
// variables from §6.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// no overlay file; env vars and defaults stand alone
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := decryptDSNs(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decryptDSNs reverses secrets.Encrypt on any DSN field that carries the
// "enc:" prefix, using SECRETS_PASSPHRASE from the environment. DSNs
// without the prefix are used verbatim — encryption at rest is opt-in.
func decryptDSNs(cfg *Config) error {
	passphrase := os.Getenv("SECRETS_PASSPHRASE")
	for _, field := range []*string{&cfg.QueueDSN, &cfg.StoreDSN} {
		if !strings.HasPrefix(*field, encryptedPrefix) {
			continue
		}
		plain, err := secrets.Decrypt(strings.TrimPrefix(*field, encryptedPrefix), passphrase)
		if err != nil {
			return fmt.Errorf("config: decrypt DSN: %w", err)
		}
		*field = plain
	}
	return nil
}

// applyEnv overrides cfg's fields from environment variables via viper's
// AutomaticEnv binding, the same precedence pattern the rest of the pack
// uses for CLI configuration.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	keys := []string{
		"MAX_DOWNLOAD_WORKERS", "FFMPEG_THREADS", "MAX_RETRY_ATTEMPTS",
		"SKIP_TS_VALIDATION", "LOG_LEVEL", "ALLOW_REENCODE",
		"QUEUE_DSN", "STORE_DSN", "OUTPUT_DIR", "ADMIN_ADDR",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	if s := v.GetString("MAX_DOWNLOAD_WORKERS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.MaxDownloadWorkers = n
		}
	}
	if s := v.GetString("FFMPEG_THREADS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.FFmpegThreads = n
		}
	}
	if s := v.GetString("MAX_RETRY_ATTEMPTS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			cfg.MaxRetryAttempts = n
		}
	}
	if s := v.GetString("SKIP_TS_VALIDATION"); s != "" {
		cfg.SkipTSValidation = parseBool(s, cfg.SkipTSValidation)
	}
	if s := v.GetString("ALLOW_REENCODE"); s != "" {
		cfg.AllowReencode = parseBool(s, cfg.AllowReencode)
	}
	if s := v.GetString("LOG_LEVEL"); s != "" {
		cfg.LogLevel = s
	}
	if s := v.GetString("QUEUE_DSN"); s != "" {
		cfg.QueueDSN = s
	}
	if s := v.GetString("STORE_DSN"); s != "" {
		cfg.StoreDSN = s
	}
	if s := v.GetString("OUTPUT_DIR"); s != "" {
		cfg.OutputDir = s
	}
	if s := v.GetString("ADMIN_ADDR"); s != "" {
		cfg.AdminAddr = s
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
