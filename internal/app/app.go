// Package app wires the whole pipeline together: catalogs both feeds,
// selects the twelve month window, loads and parses every archive,
// assembles and repairs the master grid, merges the secondary feed and
// builds the category tallies.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nemgrid/internal/aggregate"
	"nemgrid/internal/archive"
	"nemgrid/internal/catalog"
	"nemgrid/internal/config"
	"nemgrid/internal/exporter"
	"nemgrid/internal/feed"
	"nemgrid/internal/grid"
	"nemgrid/internal/infrastructure"
	"nemgrid/internal/nemweb"
)

// Result carries everything a finished run produced.
type Result struct {
	Window     catalog.Window
	Grid       *grid.MasterGrid
	Tally      *aggregate.Tally
	Categories *aggregate.CategoryMap
	Elapsed    time.Duration
}

// Run executes one full pipeline pass.
func Run(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*Result, error) {
	started := time.Now()

	client := nemweb.NewClient(cfg.Source.ArchiveURL, cfg.Source.FetchTimeout, cfg.Source.FetchRate, logger)
	cat := catalog.New(paths, client, logger)

	daily, err := cat.Build(ctx, feed.DispatchSCADA)
	if err != nil {
		return nil, fmt.Errorf("failed to catalog %s: %w", feed.DispatchSCADA.Name, err)
	}
	weekly, err := cat.Build(ctx, feed.RooftopPV)
	if err != nil {
		return nil, fmt.Errorf("failed to catalog %s: %w", feed.RooftopPV.Name, err)
	}

	window, err := catalog.SelectWindow(ctx, logger, daily, weekly)
	if err != nil {
		return nil, fmt.Errorf("failed to select window: %w", err)
	}

	loader := archive.NewLoader(paths, client, logger)
	primary, err := loadFeed(ctx, loader, feed.DispatchSCADA, daily, window)
	if err != nil {
		return nil, err
	}
	secondary, err := loadFeed(ctx, loader, feed.RooftopPV, weekly, window)
	if err != nil {
		return nil, err
	}

	g := grid.BuildMaster(window.DailyStart, window.DailyEnd, primary, feed.RooftopPV.RegionIDs)
	totals := grid.PrimaryTotalsGW(g, feed.RooftopPV.RegionIDs)
	grid.RepairGaps(ctx, logger, g, totals, grid.RepairThresholdGW)
	grid.MergeSecondary(ctx, logger, g, secondary, window.DailyStart)

	categories, err := aggregate.LoadCategories(paths.CategoriesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel categories: %w", err)
	}
	tally := aggregate.BuildTallies(ctx, logger, g, categories)

	result := &Result{
		Window:     window,
		Grid:       g,
		Tally:      tally,
		Categories: categories,
		Elapsed:    time.Since(started),
	}
	logger.InfoContext(ctx, "pipeline run complete",
		slog.Int("rows", g.Rows()),
		slog.Int("channels", len(g.Columns)),
		slog.Duration("elapsed", result.Elapsed))
	return result, nil
}

// loadFeed loads every archive a feed needs for the window, in period
// order, and returns the assembled stream.
func loadFeed(ctx context.Context, loader *archive.Loader, f feed.Feed, list []feed.Descriptor, window catalog.Window) (*grid.Stream, error) {
	start, end := window.Bounds(f)
	selected := catalog.PeriodsInWindow(list, f, start, end)
	if len(selected) == 0 {
		return nil, fmt.Errorf("no %s archives inside the selected window", f.Name)
	}

	matrices := make([]*archive.Matrix, 0, len(selected))
	for _, d := range selected {
		m, err := loader.Load(ctx, f, d)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s period %s: %w", f.Name, d.Period, err)
		}
		matrices = append(matrices, m)
	}
	return grid.NewStream(f, matrices), nil
}

// Export writes all three report files for a finished run. The
// writer's logger is derived from the context so the report log lines
// carry the run ID.
func Export(ctx context.Context, result *Result, paths *config.Paths) error {
	excel := exporter.NewExcelWriter(paths, infrastructure.LoggerWithContext(ctx))
	if err := excel.WriteCategoryReport(result.Grid, result.Tally); err != nil {
		return err
	}
	if err := excel.WriteInOutReport(result.Tally, result.Categories); err != nil {
		return err
	}
	return excel.WriteChannelSummary(result.Tally, result.Categories)
}

// ExportGrid writes the full master grid dump. Slow; callers opt in.
func ExportGrid(ctx context.Context, result *Result, paths *config.Paths) error {
	return exporter.NewExcelWriter(paths, infrastructure.LoggerWithContext(ctx)).WriteGridReport(result.Grid)
}
