package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the resolved application paths.
// This is the single source of truth for file locations: the cache
// tier, the optional mirror tier, report output and logs.
type Paths struct {
	DataDir   string
	MirrorDir string // empty when no mirror is configured
	OutputDir string
	LogsDir   string

	CategoriesFile string

	// Well-known report files
	CategoryReportXLSX string
	InOutReportXLSX    string
	GridReportXLSX     string
	ChannelSummaryCSV  string
}

// NewPaths resolves the configured directories to absolute paths.
// Relative paths are anchored at the current working directory so runs
// behave the same from a checkout and from an installed binary.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	abs := func(p string) (string, error) {
		if p == "" || filepath.IsAbs(p) {
			return p, nil
		}
		return filepath.Abs(p)
	}

	dataDir, err := abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	mirrorDir, err := abs(cfg.MirrorDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mirror dir: %w", err)
	}
	outputDir, err := abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output dir: %w", err)
	}
	logsDir, err := abs(cfg.LogsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve logs dir: %w", err)
	}
	categoriesFile, err := abs(cfg.CategoriesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve categories file: %w", err)
	}

	p := &Paths{
		DataDir:        dataDir,
		MirrorDir:      mirrorDir,
		OutputDir:      outputDir,
		LogsDir:        logsDir,
		CategoriesFile: categoriesFile,
	}
	p.CategoryReportXLSX = filepath.Join(outputDir, "NEM Year by Category.xlsx")
	p.InOutReportXLSX = filepath.Join(outputDir, "NEM In Out List.xlsx")
	p.GridReportXLSX = filepath.Join(outputDir, "NEM Year.xlsx")
	p.ChannelSummaryCSV = filepath.Join(outputDir, "nem_channel_summary.csv")
	return p, nil
}

// EnsureDirectories creates all required directories if they don't exist.
// The mirror directory is read-only input and is never created.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.DataDir, p.OutputDir, p.LogsDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetCachePath returns the cache artifact path for one feed subdir and
// filename, e.g. GetCachePath("Dispatch_SCADA/", "PUBLIC_..._20240101.gob").
func (p *Paths) GetCachePath(feedSubdir, filename string) string {
	return filepath.Join(p.DataDir, filepath.FromSlash(feedSubdir), filename)
}

// GetMirrorPath returns the mirror-tier path for one feed subdir.
// Returns "" when no mirror directory is configured.
func (p *Paths) GetMirrorPath(feedSubdir string) string {
	if p.MirrorDir == "" {
		return ""
	}
	return filepath.Join(p.MirrorDir, filepath.FromSlash(feedSubdir))
}

// GetReportPath returns a path inside the output directory.
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.OutputDir, filename)
}

// GetLogPath returns a path inside the logs directory.
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
