package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"nemgrid/internal/app"
	"nemgrid/internal/config"
	"nemgrid/internal/infrastructure"
	transporthttp "nemgrid/internal/transport/http"
)

func main() {
	var logger *slog.Logger
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC RECOVERED: %v\n", r)
			fmt.Printf("Stack trace:\n%s\n", debug.Stack())
			if logger != nil {
				logger.Error("Pipeline panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
			os.Exit(1)
		}
	}()

	dataDir := flag.String("data", "", "directory for processed per-period artifacts (default data)")
	mirrorDir := flag.String("mirror", "", "optional local mirror of raw archives; empty disables the tier")
	outDir := flag.String("out", "", "directory for generated reports (default output)")
	categoriesFile := flag.String("categories", "", "CSV mapping channel identifiers to categories")
	exportGrid := flag.Bool("export-grid", false, "also dump the full master grid to XLSX (slow)")
	serve := flag.Bool("serve", false, "serve the run's results over HTTP after exporting")
	addr := flag.String("addr", "", "results server listen address (default :8090)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Paths.DataDir = *dataDir
	}
	if *mirrorDir != "" {
		cfg.Paths.MirrorDir = *mirrorDir
	}
	if *outDir != "" {
		cfg.Paths.OutputDir = *outDir
	}
	if *categoriesFile != "" {
		cfg.Paths.CategoriesFile = *categoriesFile
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	paths, err := config.NewPaths(cfg.Paths)
	if err != nil {
		fmt.Printf("Error: Failed to resolve paths: %v\n", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		fmt.Printf("Error: Failed to create required directories: %v\n", err)
		os.Exit(1)
	}

	cfg.Logging.FilePath = paths.GetLogPath("nemgrid.log")
	logger = infrastructure.MustInitializeLogger(cfg.Logging)
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = infrastructure.ContextWithRunID(ctx)

	logger.InfoContext(ctx, "Starting pipeline run",
		slog.String("archive_url", cfg.Source.ArchiveURL),
		slog.String("data_dir", paths.DataDir),
		slog.String("mirror_dir", paths.MirrorDir),
		slog.String("output_dir", paths.OutputDir))

	started := time.Now()
	result, err := app.Run(ctx, cfg, paths, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Pipeline run failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(started)))
		os.Exit(1)
	}

	if err := app.Export(ctx, result, paths); err != nil {
		logger.ErrorContext(ctx, "Report export failed",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *exportGrid {
		if err := app.ExportGrid(ctx, result, paths); err != nil {
			logger.ErrorContext(ctx, "Grid export failed",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.InfoContext(ctx, "Run finished",
		slog.Int("rows", result.Grid.Rows()),
		slog.Int("channels", len(result.Grid.Columns)),
		slog.Int("unknown_channels", len(result.Tally.UnknownChannels)),
		slog.Duration("elapsed", time.Since(started)))

	if *serve {
		handler := transporthttp.NewResultsHandler(result.Window, result.Grid, result.Tally, logger)
		server := transporthttp.NewServer(cfg.Server, handler, logger)
		if err := server.ListenAndServe(ctx); err != nil {
			logger.ErrorContext(ctx, "Results server failed",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
}
