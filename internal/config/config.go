package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Source  SourceConfig  `yaml:"source" envconfig:"SOURCE"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
}

// SourceConfig contains the archive server settings
type SourceConfig struct {
	ArchiveURL   string        `yaml:"archive_url" envconfig:"ARCHIVE_URL" default:"https://www.nemweb.com.au/REPORTS/ARCHIVE/"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" default:"5m"`
	// FetchRate limits archive downloads per second. Pacing only; a
	// failed fetch is still fatal and there is no retry.
	FetchRate float64 `yaml:"fetch_rate" envconfig:"FETCH_RATE" default:"2"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/nemgrid.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	// DataDir holds the processed per-period artifacts (the cache tier).
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	// MirrorDir optionally holds previously downloaded raw archives,
	// laid out as <mirror>/<feed web subdir>/<archive>.zip. Empty
	// disables the mirror tier.
	MirrorDir string `yaml:"mirror_dir" envconfig:"MIRROR_DIR"`
	// OutputDir receives the generated report files.
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" default:"output"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
	// CategoriesFile maps channel identifiers to categories.
	CategoriesFile string `yaml:"categories_file" envconfig:"CATEGORIES_FILE" default:"DUID Categories.csv"`
}

// ServerConfig contains the optional results server configuration
type ServerConfig struct {
	Addr         string        `yaml:"addr" envconfig:"ADDR" default:":8090"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process("NEMGRID", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Load from config file if exists
	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes
// precedence). envconfig fills unset variables with their tag
// defaults, so a file value applies whenever the environment left the
// field at its default.
func mergeConfigs(fileConfig, envConfig Config) Config {
	def := Default()

	mergeString := func(env *string, file, defValue string) {
		if file != "" && *env == defValue {
			*env = file
		}
	}
	mergeDuration := func(env *time.Duration, file, defValue time.Duration) {
		if file != 0 && *env == defValue {
			*env = file
		}
	}

	mergeString(&envConfig.Source.ArchiveURL, fileConfig.Source.ArchiveURL, def.Source.ArchiveURL)
	mergeDuration(&envConfig.Source.FetchTimeout, fileConfig.Source.FetchTimeout, def.Source.FetchTimeout)
	if fileConfig.Source.FetchRate != 0 && envConfig.Source.FetchRate == def.Source.FetchRate {
		envConfig.Source.FetchRate = fileConfig.Source.FetchRate
	}

	mergeString(&envConfig.Logging.Level, fileConfig.Logging.Level, def.Logging.Level)
	mergeString(&envConfig.Logging.Output, fileConfig.Logging.Output, def.Logging.Output)
	mergeString(&envConfig.Logging.FilePath, fileConfig.Logging.FilePath, def.Logging.FilePath)

	mergeString(&envConfig.Paths.DataDir, fileConfig.Paths.DataDir, def.Paths.DataDir)
	mergeString(&envConfig.Paths.MirrorDir, fileConfig.Paths.MirrorDir, def.Paths.MirrorDir)
	mergeString(&envConfig.Paths.OutputDir, fileConfig.Paths.OutputDir, def.Paths.OutputDir)
	mergeString(&envConfig.Paths.LogsDir, fileConfig.Paths.LogsDir, def.Paths.LogsDir)
	mergeString(&envConfig.Paths.CategoriesFile, fileConfig.Paths.CategoriesFile, def.Paths.CategoriesFile)

	mergeString(&envConfig.Server.Addr, fileConfig.Server.Addr, def.Server.Addr)
	mergeDuration(&envConfig.Server.ReadTimeout, fileConfig.Server.ReadTimeout, def.Server.ReadTimeout)
	mergeDuration(&envConfig.Server.WriteTimeout, fileConfig.Server.WriteTimeout, def.Server.WriteTimeout)
	mergeDuration(&envConfig.Server.IdleTimeout, fileConfig.Server.IdleTimeout, def.Server.IdleTimeout)

	return envConfig
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Source.ArchiveURL == "" {
		return fmt.Errorf("source archive URL must not be empty")
	}

	if c.Source.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}

	if c.Source.FetchRate <= 0 {
		return fmt.Errorf("fetch rate must be positive")
	}

	if c.Logging.Format != "json" {
		// Structured JSON output only; text logs break log shipping.
		c.Logging.Format = "json"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/nemgrid.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			ArchiveURL:   "https://www.nemweb.com.au/REPORTS/ARCHIVE/",
			FetchTimeout: 5 * time.Minute,
			FetchRate:    2,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/nemgrid.log",
		},
		Paths: PathsConfig{
			DataDir:        "data",
			OutputDir:      "output",
			LogsDir:        "logs",
			CategoriesFile: "DUID Categories.csv",
		},
		Server: ServerConfig{
			Addr:         ":8090",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}
