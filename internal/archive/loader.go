package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"nemgrid/internal/config"
	"nemgrid/internal/feed"
	"nemgrid/internal/nemweb"
)

// Fetcher downloads one raw archive. *nemweb.Client satisfies it.
type Fetcher interface {
	FetchArchive(ctx context.Context, archiveURL string) ([]byte, error)
}

// Loader turns one descriptor into one period matrix.
type Loader struct {
	paths   *config.Paths
	fetcher Fetcher
	logger  *slog.Logger
}

// NewLoader creates a loader over the configured paths and fetcher.
func NewLoader(paths *config.Paths, fetcher Fetcher, logger *slog.Logger) *Loader {
	return &Loader{
		paths:   paths,
		fetcher: fetcher,
		logger:  logger.With(slog.String("component", "loader")),
	}
}

// Load produces the dense matrix for one period. Cache-tier loads
// deserialize the stored artifact directly; mirror and remote loads
// parse the raw archive and then write a cache artifact so the next
// run over this period skips the fetch and parse entirely.
func (l *Loader) Load(ctx context.Context, f feed.Feed, d feed.Descriptor) (*Matrix, error) {
	if d.Tier == feed.TierCache {
		m, err := ReadCache(d.Locator)
		if err != nil {
			return nil, fmt.Errorf("read cache artifact %s: %w", d.Locator, err)
		}
		return m, nil
	}

	raw, err := l.fetchRaw(ctx, d)
	if err != nil {
		return nil, err
	}

	m, err := l.parseArchive(ctx, f, d, raw)
	if err != nil {
		return nil, err
	}

	cachePath := l.paths.GetCachePath(f.WebSubdir, f.CacheFilename(d.Period))
	if err := WriteCache(cachePath, m); err != nil {
		return nil, fmt.Errorf("write cache artifact: %w", err)
	}
	l.logger.InfoContext(ctx, "saved cache artifact",
		slog.String("feed", f.Name),
		slog.String("period", d.Period),
		slog.String("path", cachePath))

	return m, nil
}

// fetchRaw obtains the raw archive bytes for a mirror or remote
// descriptor. Failure to obtain bytes is the one fatal error kind.
func (l *Loader) fetchRaw(ctx context.Context, d feed.Descriptor) ([]byte, error) {
	switch d.Tier {
	case feed.TierMirror:
		data, err := os.ReadFile(d.Locator)
		if err != nil {
			return nil, fmt.Errorf("%w: reading mirror copy %s: %v", nemweb.ErrFetchFailed, d.Locator, err)
		}
		l.logger.InfoContext(ctx, "read mirror archive",
			slog.String("path", d.Locator),
			slog.Int("bytes", len(data)))
		return data, nil
	case feed.TierRemote:
		return l.fetcher.FetchArchive(ctx, d.Locator)
	default:
		return nil, fmt.Errorf("unexpected tier %s for raw load", d.Tier)
	}
}

// parseArchive opens the outer archive and parses every inner archive's
// payload into the period matrix.
func (l *Loader) parseArchive(ctx context.Context, f feed.Feed, d feed.Descriptor, raw []byte) (*Matrix, error) {
	outer, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open archive for period %s: %w", d.Period, err)
	}

	start, err := f.PeriodStart(d.Period)
	if err != nil {
		return nil, err
	}

	if len(outer.File) != f.IntervalsPerArchive {
		l.logger.WarnContext(ctx, "unexpected inner archive count",
			slog.String("feed", f.Name),
			slog.String("period", d.Period),
			slog.Int("got", len(outer.File)),
			slog.Int("expected", f.IntervalsPerArchive))
	}

	pc := newParseContext(f, d.Period, start, l.logger)
	pc.archiveName = f.ArchiveFilename(d.Period)

	for _, inner := range outer.File {
		if !strings.EqualFold(path.Ext(inner.Name), ".zip") {
			l.logger.WarnContext(ctx, "unexpected file in archive",
				slog.String("archive", pc.archiveName),
				slog.String("name", inner.Name))
			continue
		}
		if err := l.parseInner(ctx, pc, inner); err != nil {
			return nil, err
		}
	}

	return pc.finalize(d.Period), nil
}

// parseInner reads one interval zip and parses its single payload.
func (l *Loader) parseInner(ctx context.Context, pc *parseContext, inner *zip.File) error {
	pc.innerName = inner.Name

	rc, err := inner.Open()
	if err != nil {
		return fmt.Errorf("open inner archive %s: %w", inner.Name, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("read inner archive %s: %w", inner.Name, err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open inner archive %s: %w", inner.Name, err)
	}

	for _, payload := range zr.File { // should be exactly one
		if !strings.EqualFold(path.Ext(payload.Name), ".csv") {
			l.logger.WarnContext(ctx, "unexpected file in inner archive",
				slog.String("inner", inner.Name),
				slog.String("name", payload.Name))
			continue
		}
		pc.payloadName = payload.Name

		idx, ok := pc.intervalIndex(payload.Name)
		if !ok {
			l.logger.WarnContext(ctx, "cannot derive interval from payload name",
				slog.String("inner", inner.Name),
				slog.String("payload", payload.Name))
			continue
		}
		pc.interval = idx

		pr, err := payload.Open()
		if err != nil {
			return fmt.Errorf("open payload %s: %w", payload.Name, err)
		}
		pc.parsePayload(ctx, pr)
		pr.Close()
	}
	return nil
}
