// Package catalog reconciles the three storage tiers for each feed
// into one priority-ordered descriptor list per period, and computes
// the rolling 12-month window those lists can supply.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"sort"

	"nemgrid/internal/config"
	"nemgrid/internal/feed"
)

// Lister lists the raw archives published for one feed subdirectory.
// *nemweb.Client satisfies it; tests substitute a fixture.
type Lister interface {
	ListArchives(ctx context.Context, subdir string) ([]string, error)
}

// Catalog builds merged descriptor lists across the cache, mirror and
// remote tiers.
type Catalog struct {
	paths  *config.Paths
	remote Lister
	logger *slog.Logger
}

// New creates a catalog over the configured paths and remote lister.
func New(paths *config.Paths, remote Lister, logger *slog.Logger) *Catalog {
	return &Catalog{
		paths:  paths,
		remote: remote,
		logger: logger.With(slog.String("component", "catalog")),
	}
}

// Build returns one merged, period-ordered descriptor list for a feed,
// spanning the union of all three tiers' date ranges. Ties on a period
// keep the highest-priority tier: cache over mirror over remote. No
// window filtering happens here.
func (c *Catalog) Build(ctx context.Context, f feed.Feed) ([]feed.Descriptor, error) {
	cache := c.listCache(ctx, f)
	mirror := c.listMirror(ctx, f)

	remote, err := c.listRemote(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list remote archives for %s: %w", f.Name, err)
	}

	merged := mergeTiers(cache, mirror, remote)
	if len(merged) == 0 {
		return nil, fmt.Errorf("no archives found in any tier for %s", f.Name)
	}

	c.logger.InfoContext(ctx, "merged source lists",
		slog.String("feed", f.Name),
		slog.Int("cache", len(cache)),
		slog.Int("mirror", len(mirror)),
		slog.Int("remote", len(remote)),
		slog.String("first_period", merged[0].Period),
		slog.String("last_period", merged[len(merged)-1].Period))
	return merged, nil
}

// listCache globs the local processed artifacts for a feed.
func (c *Catalog) listCache(ctx context.Context, f feed.Feed) []feed.Descriptor {
	pattern := c.paths.GetCachePath(f.WebSubdir, f.FilenamePrefix+"*.gob")
	return c.globTier(ctx, f, feed.TierCache, pattern)
}

// listMirror globs the optional local raw archive copies for a feed.
func (c *Catalog) listMirror(ctx context.Context, f feed.Feed) []feed.Descriptor {
	dir := c.paths.GetMirrorPath(f.WebSubdir)
	if dir == "" {
		return nil
	}
	pattern := filepath.Join(dir, f.FilenamePrefix+"*.zip")
	return c.globTier(ctx, f, feed.TierMirror, pattern)
}

func (c *Catalog) globTier(ctx context.Context, f feed.Feed, tier feed.Tier, pattern string) []feed.Descriptor {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		// Only malformed patterns error here; treat as an empty tier.
		c.logger.WarnContext(ctx, "bad glob pattern",
			slog.String("pattern", pattern),
			slog.String("error", err.Error()))
		return nil
	}
	sort.Strings(matches)

	descs := make([]feed.Descriptor, 0, len(matches))
	for _, m := range matches {
		period, ok := feed.PeriodFromName(m)
		if !ok {
			c.logger.WarnContext(ctx, "skipping file without period key",
				slog.String("tier", tier.String()),
				slog.String("path", m))
			continue
		}
		descs = append(descs, feed.Descriptor{Tier: tier, Locator: m, Period: period})
	}
	return descs
}

// listRemote fetches and sanitizes the remote directory index.
func (c *Catalog) listRemote(ctx context.Context, f feed.Feed) ([]feed.Descriptor, error) {
	urls, err := c.remote.ListArchives(ctx, f.WebSubdir)
	if err != nil {
		return nil, err
	}
	sort.Strings(urls) // index pages have always arrived sorted; don't rely on it

	urls = trimTrailingVariants(urls)

	descs := make([]feed.Descriptor, 0, len(urls))
	for _, u := range urls {
		period, ok := feed.PeriodFromName(u)
		if !ok {
			c.logger.WarnContext(ctx, "skipping listing entry without period key",
				slog.String("url", u))
			continue
		}
		descs = append(descs, feed.Descriptor{Tier: feed.TierRemote, Locator: u, Period: period})
	}
	return descs, nil
}

// trimTrailingVariants drops trailing entries whose filename length
// differs from the first entry's. The published rooftop index appends
// satellite-measurement variants after the regular files; the length
// mismatch is the only thing that distinguishes them. Isolated here so
// it can be replaced if the listing format changes.
func trimTrailingVariants(urls []string) []string {
	if len(urls) == 0 {
		return urls
	}
	validLen := len(path.Base(urls[0]))
	for len(urls) > 0 && len(path.Base(urls[len(urls)-1])) != validLen {
		urls = urls[:len(urls)-1]
	}
	return urls
}

// mergeTiers merges the per-tier lists by ascending period key. The
// tier slices arrive in priority order; a later tier only wins a step
// when its key is strictly smaller, so equal keys keep the
// first-checked, highest-priority tier. Every cursor sitting on the
// selected key advances, which also deduplicates within a tier.
func mergeTiers(tiers ...[]feed.Descriptor) []feed.Descriptor {
	cursors := make([]int, len(tiers))

	var merged []feed.Descriptor
	for {
		best := -1
		var bestKey string
		for i, list := range tiers {
			if cursors[i] >= len(list) {
				continue
			}
			key := list[cursors[i]].Period
			if best == -1 || key < bestKey {
				best = i
				bestKey = key
			}
		}
		if best == -1 {
			break
		}

		merged = append(merged, tiers[best][cursors[best]])

		for i, list := range tiers {
			for cursors[i] < len(list) && list[cursors[i]].Period == bestKey {
				cursors[i]++
			}
		}
	}
	return merged
}
