package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"yupoocrawl/pkg/logger"
)

// CategoryJob configures one category crawl. Immutable once dispatched to a
// worker; one entry per configured category.
type CategoryJob struct {
	// URL is the category listing URL, e.g.
	// https://shop.x.yupoo.com/categories/4135412
	URL string `yaml:"url"`
	// Name overrides the resolved category display name when set
	Name string `yaml:"name"`
	// StartPage and EndPage bound the inclusive page range
	StartPage int `yaml:"start_page"`
	EndPage   int `yaml:"end_page"`
	// Password unlocks password-protected categories (optional)
	Password string `yaml:"password"`
}

// CrawlConfig holds crawl pacing and resilience settings
type CrawlConfig struct {
	// RequestDelay is the spacing between page and product fetches
	RequestDelay time.Duration `yaml:"request_delay"`
	// ImageDelay is the spacing between image downloads
	ImageDelay time.Duration `yaml:"image_delay"`
	// RequestTimeout bounds a single HTTP request
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// DownloadTimeout bounds a single image download
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// MaxRetries is the per-image retry budget
	MaxRetries int `yaml:"max_retries"`
}

// OutputConfig holds filesystem layout settings
type OutputConfig struct {
	// BaseDirectory is the root of the category/page/product tree
	BaseDirectory string `yaml:"base_directory"`
	// LogsDirectory receives one log file per category worker
	LogsDirectory string `yaml:"logs_directory"`
}

// OrchestratorConfig holds worker supervision settings
type OrchestratorConfig struct {
	// PollInterval is how often worker liveness is checked
	PollInterval time.Duration `yaml:"poll_interval"`
	// GracePeriod is how long a terminated worker gets before SIGKILL
	GracePeriod time.Duration `yaml:"grace_period"`
}

// Config holds all configuration for the crawler
type Config struct {
	Categories   []CategoryJob      `yaml:"categories"`
	Crawl        CrawlConfig        `yaml:"crawl"`
	Output       OutputConfig       `yaml:"output"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Logging      logger.Config      `yaml:"logging"`
}

// DefaultConfig returns a Config instance with sensible defaults. The pacing
// values mirror the source site's tolerances: half a second between page
// requests, 300ms between images.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			RequestDelay:    500 * time.Millisecond,
			ImageDelay:      300 * time.Millisecond,
			RequestTimeout:  10 * time.Second,
			DownloadTimeout: 30 * time.Second,
			MaxRetries:      3,
		},
		Output: OutputConfig{
			BaseDirectory: "yupoo_downloads",
			LogsDirectory: "logs",
		},
		Orchestrator: OrchestratorConfig{
			PollInterval: time.Second,
			GracePeriod:  2 * time.Second,
		},
		Logging: logger.Config{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // no config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".yupoocrawl.yaml",
		".yupoocrawl.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "yupoocrawl", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".yupoocrawl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv overrides configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if dir := os.Getenv("YUPOOCRAWL_OUTPUT_DIR"); dir != "" {
		c.Output.BaseDirectory = dir
	}
	if dir := os.Getenv("YUPOOCRAWL_LOGS_DIR"); dir != "" {
		c.Output.LogsDirectory = dir
	}
	if level := os.Getenv("YUPOOCRAWL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if retries := os.Getenv("YUPOOCRAWL_MAX_RETRIES"); retries != "" {
		if val, err := strconv.Atoi(retries); err == nil && val >= 0 {
			c.Crawl.MaxRetries = val
		}
	}
	if delay := os.Getenv("YUPOOCRAWL_REQUEST_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d >= 0 {
			c.Crawl.RequestDelay = d
		}
	}
	return nil
}

// Validate checks if the configuration is valid. Configuration errors are
// the only errors that abort a run before any worker launches.
func (c *Config) Validate() error {
	var errs []error

	for i, job := range c.Categories {
		if job.URL == "" {
			errs = append(errs, fmt.Errorf("category %d: url is required", i+1))
		} else if !strings.HasPrefix(job.URL, "http") {
			errs = append(errs, fmt.Errorf("category %d: url must be absolute", i+1))
		}
		if job.StartPage < 1 {
			errs = append(errs, fmt.Errorf("category %d: start_page must be >= 1", i+1))
		}
		if job.EndPage < job.StartPage {
			errs = append(errs, fmt.Errorf("category %d: end_page must be >= start_page", i+1))
		}
	}

	if c.Crawl.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Crawl.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Crawl.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output base directory is required"))
	}
	if c.Output.LogsDirectory == "" {
		errs = append(errs, errors.New("logs directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Load loads configuration from all sources with proper precedence:
// environment variables > .env file > config file > defaults.
func Load(configPath string) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".yupoocrawl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
