package grid

import (
	"context"
	"log/slog"
	"time"
)

// MergeSecondary projects the secondary feed's lower-resolution series
// onto the master grid's region columns by linear interpolation
// between consecutive samples. Samples are resolved by timestamp
// against each matrix's start, so a stream that begins after the
// window start (partial data) or is missing a week mid-window reads
// zeros for the absent stretch instead of shifting later weeks.
//
// For each pair of samples (v0, v1) spanning one block of k grid rows,
// the block receives v0 + i*(v1-v0)/k for i = 0..k-1; v1 itself is
// only ever the seed of the next block. A block whose v0 is exactly
// zero is left untouched: exact zeros are nighttime, and ramping into
// them from nothing would invent generation that never happened.
func MergeSecondary(ctx context.Context, logger *slog.Logger, g *MasterGrid, secondary *Stream, dailyStart time.Time) {
	f := secondary.Feed

	secondaryInterval := time.Duration(f.IntervalMinutes) * time.Minute
	k := int(secondaryInterval / g.Interval)
	blocks := g.Rows() / k

	for regionCol, regionID := range f.RegionIDs {
		dstCol, ok := g.ColumnIndex(regionID)
		if !ok {
			logger.WarnContext(ctx, "region column missing from master grid",
				slog.String("region", regionID))
			continue
		}

		v0 := sampleAt(secondary, dailyStart, regionCol)
		for block := 0; block < blocks; block++ {
			v1 := sampleAt(secondary, dailyStart.Add(time.Duration(block+1)*secondaryInterval), regionCol)
			if v0 != 0 {
				delta := (v1 - v0) / float64(k)
				y := v0
				for i := 0; i < k; i++ {
					g.Values[block*k+i][dstCol] = y
					y += delta
				}
			}
			v0 = v1
		}
	}

	logger.InfoContext(ctx, "merged secondary feed into master grid",
		slog.String("feed", f.Name),
		slog.Int("blocks", blocks),
		slog.Int("regions", len(f.RegionIDs)))
}

// sampleAt reads the sample stamped ts from the stream. The matrices
// are period-ordered, so a timestamp that precedes the next candidate
// falls either before the stream or inside a gap between matrices and
// reads as zero, as does one past the last matrix: the final half hour
// of a window that ends exactly with the last week is simply absent
// from the feed, and it is always nighttime.
func sampleAt(s *Stream, ts time.Time, col int) float64 {
	interval := time.Duration(s.Feed.IntervalMinutes) * time.Minute
	for _, m := range s.Matrices {
		idx := int(ts.Sub(m.Start) / interval)
		if idx < 0 {
			return 0
		}
		if idx < len(m.Values) {
			if col >= len(m.Channels) {
				return 0
			}
			return m.Values[idx][col]
		}
	}
	return 0
}
