// Package grid assembles the per-period matrices into the single dense
// 12-month master grid at 5-minute resolution, repairs short outages
// in the primary data and projects the secondary feed onto the grid.
package grid

import (
	"sort"
	"time"

	"nemgrid/internal/archive"
	"nemgrid/internal/feed"
)

// Stream is one feed's per-period matrices in chronological order.
type Stream struct {
	Feed     feed.Feed
	Matrices []*archive.Matrix
}

// NewStream orders a feed's loaded matrices by period.
func NewStream(f feed.Feed, matrices []*archive.Matrix) *Stream {
	sorted := make([]*archive.Matrix, len(matrices))
	copy(sorted, matrices)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Period < sorted[j].Period
	})
	return &Stream{Feed: f, Matrices: sorted}
}

// ChannelUnion returns every channel identifier seen across the
// stream's matrices, unordered and deduplicated.
func (s *Stream) ChannelUnion() []string {
	seen := make(map[string]bool)
	var union []string
	for _, m := range s.Matrices {
		for _, id := range m.Channels {
			if !seen[id] {
				seen[id] = true
				union = append(union, id)
			}
		}
	}
	return union
}

// MasterGrid is the one dense matrix for the whole run. The row index
// has no holes: row i's timestamp is Start + i*Interval. Values start
// zero-filled and are mutated in place by gap repair and resampling;
// the shape never changes after assembly.
type MasterGrid struct {
	Start    time.Time
	Interval time.Duration
	Columns  []string
	Values   [][]float64

	colIndex map[string]int
}

// Rows returns the number of 5-minute ticks in the window.
func (g *MasterGrid) Rows() int {
	return len(g.Values)
}

// Timestamp returns the timestamp of one row.
func (g *MasterGrid) Timestamp(row int) time.Time {
	return g.Start.Add(time.Duration(row) * g.Interval)
}

// ColumnIndex looks up a channel's column.
func (g *MasterGrid) ColumnIndex(id string) (int, bool) {
	idx, ok := g.colIndex[id]
	return idx, ok
}

// BuildMaster allocates the master grid for the daily window and fills
// it from the primary stream. Columns are the sorted union of every
// channel discovered across the primary matrices plus the fixed region
// identifiers. Only non-zero values are copied; everything else stays
// at the zero fill.
func BuildMaster(dailyStart, dailyEnd time.Time, primary *Stream, regionIDs []string) *MasterGrid {
	f := primary.Feed

	columns := append(primary.ChannelUnion(), regionIDs...)
	sort.Strings(columns)

	days := int(dailyEnd.Sub(dailyStart).Hours() / 24)
	rows := days * f.IntervalsPerArchive
	interval := time.Duration(f.IntervalMinutes) * time.Minute

	g := &MasterGrid{
		Start:    dailyStart.Add(time.Duration(f.BeginMinute) * time.Minute),
		Interval: interval,
		Columns:  columns,
		Values:   make([][]float64, rows),
		colIndex: make(map[string]int, len(columns)),
	}
	for i := range g.Values {
		g.Values[i] = make([]float64, len(columns))
	}
	for i, id := range columns {
		g.colIndex[id] = i
	}

	for _, m := range primary.Matrices {
		firstRow := int(m.Start.Sub(g.Start).Hours()/24) * f.IntervalsPerArchive
		for srcCol, id := range m.Channels {
			dstCol, ok := g.colIndex[id]
			if !ok {
				continue
			}
			for srcRow := range m.Values {
				dstRow := firstRow + srcRow
				if dstRow < 0 || dstRow >= rows {
					continue
				}
				if v := m.Values[srcRow][srcCol]; v != 0 {
					g.Values[dstRow][dstCol] = v
				}
			}
		}
	}

	return g
}

// PrimaryTotalsGW derives the per-row total over every primary column
// (the region columns are excluded), scaled from MW to GW. The gap
// repairer judges plausibility against this series.
func PrimaryTotalsGW(g *MasterGrid, regionIDs []string) []float64 {
	regions := make(map[string]bool, len(regionIDs))
	for _, id := range regionIDs {
		regions[id] = true
	}

	totals := make([]float64, g.Rows())
	for row := range g.Values {
		var sum float64
		for col, id := range g.Columns {
			if regions[id] {
				continue
			}
			sum += g.Values[row][col]
		}
		totals[row] = sum / 1000
	}
	return totals
}
