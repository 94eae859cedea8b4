package grid

import (
	"context"
	"log/slog"
)

// RepairThresholdGW is the physical-plausibility floor for the per-row
// primary total. The grid never generates this little; rows below it
// are missing data.
const RepairThresholdGW = 2.0

// RepairGaps finds runs of rows whose total falls below the threshold
// and overwrites them in place by linear interpolation from the
// bounding rows. A run touching the first or last row has only one
// bound and is filled flat from it. No record is kept of which cells
// were interpolated.
func RepairGaps(ctx context.Context, logger *slog.Logger, g *MasterGrid, totalsGW []float64, thresholdGW float64) {
	start := -1
	for i, totalGW := range totalsGW {
		if start < 0 {
			if totalGW < thresholdGW {
				start = i
			}
			continue
		}
		if totalGW < thresholdGW {
			continue
		}

		// Run closed at row i.
		end := i
		if start > 0 {
			interpolateRun(g, start, end)
		} else {
			fillRun(g, start, end, end)
		}
		logRepair(ctx, logger, g, start, end)
		start = -1
	}

	if start > 0 {
		// Run extends to the last row.
		end := len(totalsGW)
		fillRun(g, start, end, start-1)
		logRepair(ctx, logger, g, start, end)
	} else if start == 0 {
		// Every row is below threshold; nothing valid to repair from.
		logger.WarnContext(ctx, "entire window below repair threshold; leaving data as-is",
			slog.Float64("threshold_gw", thresholdGW))
	}
}

// interpolateRun overwrites rows [start, end) with the straight line
// from row start-1 to row end, per column. Row start takes the prior
// row's value; row end keeps its own.
func interpolateRun(g *MasterGrid, start, end int) {
	steps := float64(end - start)
	for col := range g.Columns {
		v0 := g.Values[start-1][col]
		delta := (g.Values[end][col] - v0) / steps
		y := v0
		for row := start; row < end; row++ {
			g.Values[row][col] = y
			y += delta
		}
	}
}

// fillRun overwrites rows [start, end) with the constant values of the
// single bounding row (flat extrapolation at the window edges).
func fillRun(g *MasterGrid, start, end, boundRow int) {
	for row := start; row < end; row++ {
		copy(g.Values[row], g.Values[boundRow])
	}
}

func logRepair(ctx context.Context, logger *slog.Logger, g *MasterGrid, start, end int) {
	logger.InfoContext(ctx, "repaired missing interval run",
		slog.Int("intervals", end-start),
		slog.Time("from", g.Timestamp(start)),
		slog.Time("to", g.Timestamp(end-1)))
}
