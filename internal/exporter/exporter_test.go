package exporter

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"nemgrid/internal/aggregate"
	"nemgrid/internal/config"
	"nemgrid/internal/grid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	paths, err := config.NewPaths(config.PathsConfig{
		DataDir:        filepath.Join(t.TempDir(), "data"),
		OutputDir:      t.TempDir(),
		LogsDir:        filepath.Join(t.TempDir(), "logs"),
		CategoriesFile: filepath.Join(t.TempDir(), "categories.csv"),
	})
	require.NoError(t, err)
	return paths
}

func testFixtures(t *testing.T) (*grid.MasterGrid, *aggregate.Tally, *aggregate.CategoryMap) {
	t.Helper()

	g := &grid.MasterGrid{
		Start:    time.Date(2025, 3, 1, 0, 5, 0, 0, time.UTC),
		Interval: 5 * time.Minute,
		Columns:  []string{"BATTG1", "COAL1"},
		Values: [][]float64{
			{10, 500},
			{0, 520},
		},
	}

	path := filepath.Join(t.TempDir(), "categories.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"DUID,Category,Load\nCOAL1,Coal,\nBATTG1,Battery,y\n"), 0o644))
	cm, err := aggregate.LoadCategories(path)
	require.NoError(t, err)

	tally := &aggregate.Tally{
		Categories:      []string{"Coal", "Battery"},
		CategoryColumns: []string{"-Coal", "-Battery", "+Coal", "+Battery"},
		ByRow: [][]float64{
			{0, -10, 500, 0},
			{0, 0, 520, 0},
		},
		Channels:  []string{"BATTG1", "COAL1"},
		ByChannel: [][3]float64{{-5, 0, 0}, {0, 510, 0}},
	}
	return g, tally, cm
}

func TestWriteCategoryReport(t *testing.T) {
	paths := testPaths(t)
	g, tally, _ := testFixtures(t)

	w := NewExcelWriter(paths, testLogger())
	require.NoError(t, w.WriteCategoryReport(g, tally))
	require.FileExists(t, paths.CategoryReportXLSX)

	f, err := excelize.OpenFile(paths.CategoryReportXLSX)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(categorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Timestamp", "-Coal", "-Battery", "+Coal", "+Battery"}, rows[0])
	assert.Equal(t, "2025-03-01 00:05", rows[1][0])
	assert.Equal(t, "500", rows[1][3])
	assert.Equal(t, "-10", rows[1][2])
	assert.Equal(t, "2025-03-01 00:10", rows[2][0])
	assert.Equal(t, "520", rows[2][3])
}

func TestWriteInOutReport(t *testing.T) {
	paths := testPaths(t)
	_, tally, cm := testFixtures(t)

	w := NewExcelWriter(paths, testLogger())
	require.NoError(t, w.WriteInOutReport(tally, cm))
	require.FileExists(t, paths.InOutReportXLSX)

	f, err := excelize.OpenFile(paths.InOutReportXLSX)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(inOutSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Channel", "Category", "In", "Out", "Out-In"}, rows[0])
	assert.Equal(t, "BATTG1", rows[1][0])
	assert.Equal(t, "Battery", rows[1][1])
	assert.Equal(t, "-5", rows[1][2])
	assert.Equal(t, "COAL1", rows[2][0])
	assert.Equal(t, "510", rows[2][3])
}

func TestWriteGridReport(t *testing.T) {
	paths := testPaths(t)
	g, _, _ := testFixtures(t)

	w := NewExcelWriter(paths, testLogger())
	require.NoError(t, w.WriteGridReport(g))
	require.FileExists(t, paths.GridReportXLSX)

	f, err := excelize.OpenFile(paths.GridReportXLSX)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(gridSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"Timestamp", "BATTG1", "COAL1"}, rows[0])
	assert.Equal(t, "10", rows[1][1])
	assert.Equal(t, "520", rows[2][2])
}

func TestWriteChannelSummary(t *testing.T) {
	paths := testPaths(t)
	_, tally, cm := testFixtures(t)

	w := NewExcelWriter(paths, testLogger())
	require.NoError(t, w.WriteChannelSummary(tally, cm))
	require.FileExists(t, paths.ChannelSummaryCSV)

	data, err := os.ReadFile(paths.ChannelSummaryCSV)
	require.NoError(t, err)

	// The writer prefixes a UTF-8 BOM.
	text := strings.TrimPrefix(string(data), "\xef\xbb\xbf")
	records, err := csv.NewReader(strings.NewReader(text)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"channel", "category", "in_mw", "out_mw", "out_in_ratio"}, records[0])
	assert.Equal(t, []string{"BATTG1", "Battery", "-5.000", "0.000", "0.000"}, records[1])
	assert.Equal(t, []string{"COAL1", "Coal", "0.000", "510.000", "0.000"}, records[2])
}

func TestWriteSimpleCSVRelativePath(t *testing.T) {
	paths := testPaths(t)

	w := NewCSVWriter(paths)
	require.NoError(t, w.WriteSimpleCSV("nested/report.csv",
		[]string{"a", "b"}, [][]string{{"1", "2"}}))

	assert.FileExists(t, filepath.Join(paths.OutputDir, "nested", "report.csv"))
}
