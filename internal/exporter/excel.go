package exporter

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xuri/excelize/v2"

	"nemgrid/internal/aggregate"
	"nemgrid/internal/config"
	"nemgrid/internal/grid"
)

const (
	categorySheet = "Year by Category"
	inOutSheet    = "In Out List"
	gridSheet     = "Year"

	timestampLayout = "2006-01-02 15:04"
)

// ExcelWriter renders the two XLSX reports.
type ExcelWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewExcelWriter creates an Excel report writer.
func NewExcelWriter(paths *config.Paths, logger *slog.Logger) *ExcelWriter {
	return &ExcelWriter{paths: paths, logger: logger}
}

// WriteCategoryReport writes the full-window category matrix, one row
// per interval with a timestamp column followed by every signed
// category column. The row count runs to six figures, so the sheet is
// written through a stream writer.
func (w *ExcelWriter) WriteCategoryReport(g *grid.MasterGrid, t *aggregate.Tally) error {
	err := w.writeStreamSheet(w.paths.CategoryReportXLSX, categorySheet, t.CategoryColumns,
		len(t.ByRow), func(row int) (string, []float64) {
			return g.Timestamp(row).Format(timestampLayout), t.ByRow[row]
		})
	if err != nil {
		return fmt.Errorf("failed to write category report: %w", err)
	}

	w.logger.Info("Wrote category report",
		slog.String("path", w.paths.CategoryReportXLSX),
		slog.Int("rows", len(t.ByRow)),
		slog.Int("columns", len(t.CategoryColumns)))
	return nil
}

// WriteGridReport dumps the entire master grid, one column per
// channel. The sheet runs to six figures of rows times hundreds of
// columns, so this is slow and off by default.
func (w *ExcelWriter) WriteGridReport(g *grid.MasterGrid) error {
	err := w.writeStreamSheet(w.paths.GridReportXLSX, gridSheet, g.Columns,
		g.Rows(), func(row int) (string, []float64) {
			return g.Timestamp(row).Format(timestampLayout), g.Values[row]
		})
	if err != nil {
		return fmt.Errorf("failed to write grid report: %w", err)
	}

	w.logger.Info("Wrote full grid report",
		slog.String("path", w.paths.GridReportXLSX),
		slog.Int("rows", g.Rows()),
		slog.Int("columns", len(g.Columns)))
	return nil
}

// writeStreamSheet stream-writes one sheet: a Timestamp column plus
// the named value columns, one row per call to rowFn.
func (w *ExcelWriter) writeStreamSheet(path, sheet string, columns []string, rowCount int, rowFn func(row int) (string, []float64)) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	header := make([]interface{}, 0, len(columns)+1)
	header = append(header, "Timestamp")
	for _, col := range columns {
		header = append(header, col)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for row := 0; row < rowCount; row++ {
		stamp, values := rowFn(row)
		cells := make([]interface{}, 0, len(values)+1)
		cells = append(cells, stamp)
		for _, v := range values {
			cells = append(cells, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, row+2)
		if err != nil {
			return fmt.Errorf("failed to resolve cell: %w", err)
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush stream writer: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// WriteInOutReport writes one row per channel with its average inflow,
// average outflow and the out/in ratio where the inflow is large
// enough to make the ratio meaningful.
func (w *ExcelWriter) WriteInOutReport(t *aggregate.Tally, cm *aggregate.CategoryMap) error {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(inOutSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}

	header := []interface{}{"Channel", "Category", "In", "Out", "Out-In"}
	if err := f.SetSheetRow(inOutSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, channel := range t.Channels {
		category := aggregate.UnknownCategory
		if cc, ok := cm.Lookup(channel); ok {
			category = cm.Categories[cc.Index]
		}
		row := []interface{}{
			channel,
			category,
			t.ByChannel[i][0],
			t.ByChannel[i][1],
			t.ByChannel[i][2],
		}
		cell := "A" + strconv.Itoa(i+2)
		if err := f.SetSheetRow(inOutSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", channel, err)
		}
	}

	if err := f.SaveAs(w.paths.InOutReportXLSX); err != nil {
		return fmt.Errorf("failed to save in/out report: %w", err)
	}

	w.logger.Info("Wrote in/out report",
		slog.String("path", w.paths.InOutReportXLSX),
		slog.Int("channels", len(t.Channels)))
	return nil
}

// WriteChannelSummary writes the CSV companion to the in/out report.
func (w *ExcelWriter) WriteChannelSummary(t *aggregate.Tally, cm *aggregate.CategoryMap) error {
	records := make([][]string, 0, len(t.Channels))
	for i, channel := range t.Channels {
		category := aggregate.UnknownCategory
		if cc, ok := cm.Lookup(channel); ok {
			category = cm.Categories[cc.Index]
		}
		records = append(records, []string{
			channel,
			category,
			strconv.FormatFloat(t.ByChannel[i][0], 'f', 3, 64),
			strconv.FormatFloat(t.ByChannel[i][1], 'f', 3, 64),
			strconv.FormatFloat(t.ByChannel[i][2], 'f', 3, 64),
		})
	}

	csvWriter := NewCSVWriter(w.paths)
	headers := []string{"channel", "category", "in_mw", "out_mw", "out_in_ratio"}
	if err := csvWriter.WriteSimpleCSV(w.paths.ChannelSummaryCSV, headers, records); err != nil {
		return fmt.Errorf("failed to write channel summary: %w", err)
	}

	w.logger.Info("Wrote channel summary",
		slog.String("path", w.paths.ChannelSummaryCSV),
		slog.Int("channels", len(t.Channels)))
	return nil
}
