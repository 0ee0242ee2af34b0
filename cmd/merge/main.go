package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"perenual-scraper/config"
	"perenual-scraper/dataset"
)

func main() {
	envCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment configuration: %v\n", err)
		os.Exit(1)
	}

	rawDir := flag.String("raw-dir", envCfg.RawDir, "Directory containing per-page files")
	outputFile := flag.String("output", envCfg.OutputFile, "Consolidated output file path")
	format := flag.String("format", envCfg.OutputFormat, "Output format: csv, jsonl, or dual")
	verbose := flag.Bool("v", envCfg.Verbose, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := envCfg
	cfg.RawDir = *rawDir
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = *format
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	merger := &dataset.Merger{
		Dir:        cfg.RawDir,
		OutputFile: cfg.OutputFile,
		Format:     cfg.OutputFormat,
	}

	startTime := time.Now()
	stats, err := merger.Run()
	if err != nil {
		slog.Error("merge failed", slog.Any("error", err))
		os.Exit(1)
	}

	printSummary(stats, time.Since(startTime), cfg.OutputFile)
}

func printSummary(stats *dataset.MergeStats, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Merge complete")
	fmt.Printf("  Files merged:  %d\n", stats.FilesMerged)
	fmt.Printf("  Files skipped: %d\n", stats.FilesSkipped)
	fmt.Printf("  Rows:          %d\n", stats.Rows)
	fmt.Printf("  Columns:       %d\n", stats.Columns)
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
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
