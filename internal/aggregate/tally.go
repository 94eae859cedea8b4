package aggregate

import (
	"context"
	"log/slog"

	"nemgrid/internal/grid"
)

// RatioFloorMW is the minimum average inflow magnitude before the
// out/in ratio is computed. Below it the ratio is noise and stays 0.
const RatioFloorMW = 0.1

// Tally holds the two derived, read-only output matrices.
type Tally struct {
	// Categories is the final category list, with UnknownCategory
	// appended only when unmapped channels were encountered.
	Categories []string
	// CategoryColumns names ByRow's columns: every "-category" then
	// every "+category".
	CategoryColumns []string
	// ByRow holds per-row signed sums per category, aligned with the
	// master grid's rows. Negative columns first, then positive.
	ByRow [][]float64

	// Channels names ByChannel's rows, in grid column order.
	Channels []string
	// ByChannel holds per-channel [in, out, ratio]: average MW drawn
	// from and put onto the grid over the window, and out/|in|.
	ByChannel [][3]float64

	// UnknownChannels lists identifiers that fell into the Unknown
	// category, for reporting at run end.
	UnknownChannels []string
}

// BuildTallies scans the finished master grid once and produces both
// tallies. The grid is only read.
func BuildTallies(ctx context.Context, logger *slog.Logger, g *grid.MasterGrid, cm *CategoryMap) *Tally {
	rowCount := g.Rows()
	numCat := cm.Len() + 1 // reserve the trailing Unknown slot

	byRow := make([][]float64, rowCount)
	for i := range byRow {
		byRow[i] = make([]float64, numCat*2)
	}
	byChannel := make([][3]float64, len(g.Columns))

	var unknown []string
	for col, channel := range g.Columns {
		cc, ok := cm.Lookup(channel)
		if !ok {
			cc = ChannelCategory{Index: numCat - 1}
			unknown = append(unknown, channel)
		}

		for row := range g.Values {
			v := g.Values[row][col]
			if v == 0 {
				continue
			}
			if cc.IsLoad {
				// Battery loads report draw as positive.
				v = -v
			}
			if v < 0 {
				byRow[row][cc.Index] += v
				byChannel[col][0] += v
			} else {
				byRow[row][numCat+cc.Index] += v
				byChannel[col][1] += v
			}
		}
	}

	// Totals become averages over the window.
	for col := range byChannel {
		byChannel[col][0] /= float64(rowCount)
		byChannel[col][1] /= float64(rowCount)
		if -byChannel[col][0] > RatioFloorMW {
			byChannel[col][2] = byChannel[col][1] / -byChannel[col][0]
		}
	}

	categories := make([]string, cm.Len())
	copy(categories, cm.Categories)
	if len(unknown) > 0 {
		categories = append(categories, UnknownCategory)
		logger.WarnContext(ctx, "channels without category mapping",
			slog.Int("count", len(unknown)),
			slog.Any("channels", unknown))
	} else {
		// Drop the reserved, empty Unknown columns.
		for row := range byRow {
			trimmed := make([]float64, 0, (numCat-1)*2)
			trimmed = append(trimmed, byRow[row][:numCat-1]...)
			trimmed = append(trimmed, byRow[row][numCat:2*numCat-1]...)
			byRow[row] = trimmed
		}
	}

	columns := make([]string, 0, len(categories)*2)
	for _, sign := range []string{"-", "+"} {
		for _, cat := range categories {
			columns = append(columns, sign+cat)
		}
	}

	t := &Tally{
		Categories:      categories,
		CategoryColumns: columns,
		ByRow:           byRow,
		Channels:        g.Columns,
		ByChannel:       byChannel,
		UnknownChannels: unknown,
	}

	logger.InfoContext(ctx, "built category tallies",
		slog.Int("rows", rowCount),
		slog.Int("channels", len(g.Columns)),
		slog.Int("categories", len(categories)))
	return t
}
