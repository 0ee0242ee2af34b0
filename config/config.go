// Package config holds run configuration for both stages.
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Config holds scraper and merger configuration. Load reads environment
// variables derived from the field names with the SCRAPER_ prefix (e.g.
// SCRAPER_START_PAGE, SCRAPER_RAW_DIR); unprefixed names are never consulted.
// Flags in the entry points override whatever the environment provided.
type Config struct {
	BaseURL      string        `split_words:"true" default:"https://perenual.com/plant-species-database-search-finder"`
	StartPage    int           `split_words:"true" default:"1"`
	EndPage      int           `split_words:"true" default:"1"`
	RawDir       string        `split_words:"true" default:"data/species_raw"`
	OutputFile   string        `split_words:"true" default:"data/perenual_data.csv"`
	OutputFormat string        `split_words:"true" default:"csv"`
	NavTimeout   time.Duration `split_words:"true" default:"30s"`
	MinDelay     time.Duration `split_words:"true" default:"2s"`
	MaxDelay     time.Duration `split_words:"true" default:"5s"`
	Headless     bool          `split_words:"true" default:"true"`
	UserAgent    string        `split_words:"true" default:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"`
	DedupeSize   int           `split_words:"true" default:"10000"`
	MetricsAddr  string        `split_words:"true"`
	SkipExisting bool          `split_words:"true" default:"false"`
	Verbose      bool          `split_words:"true" default:"false"`
}

// DefaultConfig returns conservative defaults for the target site. It never
// reads the environment; the values mirror the struct's default tags.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://perenual.com/plant-species-database-search-finder",
		StartPage:    1,
		EndPage:      1,
		RawDir:       "data/species_raw",
		OutputFile:   "data/perenual_data.csv",
		OutputFormat: "csv",
		NavTimeout:   30 * time.Second,
		MinDelay:     2 * time.Second,
		MaxDelay:     5 * time.Second,
		Headless:     true,
		UserAgent:    defaultUserAgent,
		DedupeSize:   10000,
		MetricsAddr:  "",
		SkipExisting: false,
		Verbose:      false,
	}
}

// Load populates a Config from SCRAPER_* environment variables. A .env file
// is loaded first when present; in production the variables are usually
// injected directly.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if _, statErr := os.Stat(".env"); statErr == nil {
			log.Printf("Warning: .env file found but could not be loaded: %v", err)
		}
	}

	var cfg Config
	if err := envconfig.Process("scraper", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.StartPage < 1 {
		return fmt.Errorf("start page must be positive")
	}
	if c.EndPage < c.StartPage {
		return fmt.Errorf("end page (%d) cannot precede start page (%d)", c.EndPage, c.StartPage)
	}
	if c.NavTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	if c.MinDelay < 0 {
		return fmt.Errorf("min delay cannot be negative")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("max delay cannot be negative")
	}
	if c.MinDelay > c.MaxDelay {
		return fmt.Errorf("min delay (%s) cannot exceed max delay (%s)", c.MinDelay, c.MaxDelay)
	}
	if c.RawDir == "" {
		return fmt.Errorf("raw directory cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	format := strings.ToLower(c.OutputFormat)
	if format != "csv" && format != "jsonl" && format != "dual" {
		return fmt.Errorf("output format must be csv, jsonl, or dual")
	}
	if c.DedupeSize <= 0 {
		return fmt.Errorf("dedupe size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
