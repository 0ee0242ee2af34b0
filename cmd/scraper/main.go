package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"perenual-scraper/browser"
	"perenual-scraper/config"
	"perenual-scraper/models"
	"perenual-scraper/scraper"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// run carries the whole scrape stage so deferred cleanup (the browser
// session above all) executes on every exit path; main translates a failure
// into the process exit code.
func run() error {
	envCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment configuration: %v\n", err)
		return err
	}

	startPage := flag.Int("start", envCfg.StartPage, "First listing page to scrape (inclusive)")
	endPage := flag.Int("end", envCfg.EndPage, "Last listing page to scrape (inclusive)")
	baseURL := flag.String("base-url", envCfg.BaseURL, "Species database base URL")
	rawDir := flag.String("raw-dir", envCfg.RawDir, "Directory for per-page output files")
	minDelayMs := flag.Int("min-delay", int(envCfg.MinDelay/time.Millisecond), "Minimum delay between requests (milliseconds)")
	maxDelayMs := flag.Int("max-delay", int(envCfg.MaxDelay/time.Millisecond), "Random jitter upper bound between requests (milliseconds)")
	navTimeout := flag.Duration("nav-timeout", envCfg.NavTimeout, "Per-navigation timeout")
	headless := flag.Bool("headless", envCfg.Headless, "Run the browser headless")
	skipExisting := flag.Bool("skip-existing", envCfg.SkipExisting, "Skip pages whose output file already exists")
	metricsAddr := flag.String("metrics-addr", envCfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", envCfg.Verbose, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := envCfg
	cfg.StartPage = *startPage
	cfg.EndPage = *endPage
	cfg.BaseURL = *baseURL
	cfg.RawDir = *rawDir
	cfg.MinDelay = time.Duration(*minDelayMs) * time.Millisecond
	cfg.MaxDelay = time.Duration(*maxDelayMs) * time.Millisecond
	cfg.NavTimeout = *navTimeout
	cfg.Headless = *headless
	cfg.SkipExisting = *skipExisting
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return err
	}

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("start_page", cfg.StartPage),
		slog.Int("end_page", cfg.EndPage),
		slog.String("raw_dir", cfg.RawDir),
	)

	session, err := browser.NewSession(browser.Options{
		Headless:   cfg.Headless,
		UserAgent:  cfg.UserAgent,
		NavTimeout: cfg.NavTimeout,
	})
	if err != nil {
		// Nothing is recoverable before a browser exists.
		slog.Error("launching browser", slog.Any("error", err))
		return err
	}
	defer session.Close()

	s, err := scraper.New(cfg, session)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing in-flight page")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	startTime := time.Now()
	result, err := s.Run(ctx)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		return err
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, time.Since(startTime), cfg.RawDir)
	return nil
}

func printSummary(result *models.ScrapeResult, duration time.Duration, rawDir string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Pages scraped:   %d\n", result.PagesScraped)
	fmt.Printf("  Pages skipped:   %d\n", result.PagesSkipped)
	if len(result.SkippedPages) > 0 {
		fmt.Printf("  Skipped pages:   %v\n", result.SkippedPages)
	}
	fmt.Printf("  Entries scraped: %d\n", result.EntriesScraped)
	fmt.Printf("  Entries skipped: %d\n", result.EntriesSkipped)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:     %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:        %v\n", duration)
	fmt.Printf("  Output dir:      %s\n", rawDir)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
