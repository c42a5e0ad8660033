// Package config loads vidsplit settings from defaults, a YAML file and
// VIDSPLIT_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bdougie/vidsplit/internal/ledger"
	"github.com/bdougie/vidsplit/internal/models"
)

// DefaultFile is looked up in the working directory when no file is given
const DefaultFile = "vidsplit.yaml"

// Constants for program configuration
const (
	MaxWorkers = 4  // Concurrent frame decodes when loading a directory
	BatchSize  = 10 // Number of runs to batch write
)

// Config holds every setting the CLI needs
type Config struct {
	OutputDir       string                `yaml:"output_dir"`
	TempDir         string                `yaml:"temp_dir"`
	FFmpegPath      string                `yaml:"ffmpeg_path"`
	FormatsDir      string                `yaml:"formats_dir"`
	LogLevel        string                `yaml:"log_level"`
	Workers         int                   `yaml:"workers"`
	LedgerBatchSize int                   `yaml:"ledger_batch_size"`
	Postgres        ledger.PostgresConfig `yaml:"postgres"`
	Defaults        models.SplitSpec      `yaml:"defaults"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		OutputDir:       "output",
		TempDir:         filepath.Join(os.TempDir(), "vidsplit"),
		FFmpegPath:      "ffmpeg",
		LogLevel:        "info",
		Workers:         MaxWorkers,
		LedgerBatchSize: BatchSize,
		Defaults: models.SplitSpec{
			SplitNum:       1,
			FrameRate:      8,
			LoopCount:      0,
			FilenamePrefix: "SplitVideo",
			Format:         "image/gif",
			PingPong:       false,
			SaveOutput:     true,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment. An empty path reads DefaultFile if it exists.
func Load(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config file '%s': %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	if err := cfg.applyEnv(lookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) error {
	strs := map[string]*string{
		"VIDSPLIT_OUTPUT_DIR":  &c.OutputDir,
		"VIDSPLIT_TEMP_DIR":    &c.TempDir,
		"VIDSPLIT_FFMPEG":      &c.FFmpegPath,
		"VIDSPLIT_FORMATS_DIR": &c.FormatsDir,
		"VIDSPLIT_LOG_LEVEL":   &c.LogLevel,
		"VIDSPLIT_PG_HOST":     &c.Postgres.Host,
		"VIDSPLIT_PG_PORT":     &c.Postgres.Port,
		"VIDSPLIT_PG_USER":     &c.Postgres.User,
		"VIDSPLIT_PG_PASSWORD": &c.Postgres.Password,
		"VIDSPLIT_PG_DBNAME":   &c.Postgres.DBName,
		"VIDSPLIT_PG_SSLMODE":  &c.Postgres.SSLMode,
	}
	for key, dst := range strs {
		if v, ok := lookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := lookupEnv("VIDSPLIT_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VIDSPLIT_WORKERS must be an integer, got %q", v)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks settings that would otherwise fail late
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if c.TempDir == "" {
		return fmt.Errorf("temp_dir must not be empty")
	}
	if c.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg_path must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.LedgerBatchSize < 1 {
		return fmt.Errorf("ledger_batch_size must be at least 1, got %d", c.LedgerBatchSize)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
