package archive

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strconv"
	"time"

	"nemgrid/internal/feed"
)

// parseContext is the short-lived scratch state for one archive load.
// One value per load keeps period loads independent of each other; the
// only thing that outlives it is the finished Matrix.
type parseContext struct {
	f      feed.Feed
	logger *slog.Logger

	archiveName string
	innerName   string
	payloadName string
	interval    int

	start time.Time

	// channels and index form the append-only channel registry for
	// discovery feeds. Fixed feeds pre-populate them from RegionIDs.
	channels []string
	index    map[string]int

	// rows[i] holds interval i's values, sized to the channel count
	// known when the interval was parsed. A nil row means the interval
	// never arrived (left all-zero by finalize).
	rows [][]float64
}

func newParseContext(f feed.Feed, period string, start time.Time, logger *slog.Logger) *parseContext {
	pc := &parseContext{
		f:      f,
		logger: logger,
		start:  start,
		index:  make(map[string]int),
		rows:   make([][]float64, f.IntervalsPerArchive),
	}
	for i, id := range f.RegionIDs {
		pc.channels = append(pc.channels, id)
		pc.index[id] = i
	}
	if pc.fixedChannels() {
		for i := range pc.rows {
			pc.rows[i] = make([]float64, len(f.RegionIDs))
		}
	}
	return pc
}

// fixedChannels reports whether the feed's channel set is known up
// front rather than discovered while parsing.
func (pc *parseContext) fixedChannels() bool {
	return len(pc.f.RegionIDs) > 0
}

// intervalIndex derives an inner payload's row index from the
// timestamp embedded in its filename.
func (pc *parseContext) intervalIndex(payloadName string) (int, bool) {
	tail := payloadName[len(pc.f.FilenamePrefix):]
	if len(tail) < 14 {
		return 0, false
	}
	stamp, err := time.Parse("20060102150405", tail[:14])
	if err != nil {
		return 0, false
	}
	seconds := stamp.Sub(pc.start).Seconds()
	idx := int(seconds/float64(60*pc.f.IntervalMinutes) + 0.5)
	if idx < 0 || idx >= len(pc.rows) {
		return 0, false
	}
	return idx, true
}

// parsePayload reads one delimited-text payload into the row selected
// by pc.interval. Rows are dispatched on the leading discriminator:
// C comment, I header, D data. Header column positions are re-resolved
// for every payload; the published schema order is not assumed fixed.
func (pc *parseContext) parsePayload(ctx context.Context, r io.Reader) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // comment rows have their own shapes

	tsCol, chCol, valCol := -1, -1, -1

	var row []float64
	if pc.fixedChannels() {
		row = pc.rows[pc.interval]
	} else {
		row = make([]float64, len(pc.channels))
	}

	for lineno := 1; ; lineno++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			pc.warn(ctx, "unreadable payload record", lineno, slog.String("error", err.Error()))
			continue
		}
		if len(record) == 0 {
			continue
		}

		switch record[0] {
		case "C":
			// First and last records: report envelope, ignored.

		case "I":
			tsCol = columnOf(record, pc.f.TimestampField)
			chCol = columnOf(record, pc.f.ChannelField)
			valCol = columnOf(record, pc.f.ValueField)
			if tsCol < 0 || chCol < 0 || valCol < 0 {
				pc.warn(ctx, "header row missing expected columns", lineno,
					slog.String("timestamp_field", pc.f.TimestampField),
					slog.String("channel_field", pc.f.ChannelField),
					slog.String("value_field", pc.f.ValueField))
			}

		case "D":
			if chCol < 0 || valCol < 0 || len(record) <= chCol || len(record) <= valCol {
				pc.warn(ctx, "data row before usable header", lineno)
				continue
			}
			pc.parseDataRecord(ctx, record, lineno, chCol, valCol, &row)

		default:
			pc.warn(ctx, "unexpected record discriminator", lineno,
				slog.String("discriminator", record[0]))
		}
	}

	if !pc.fixedChannels() {
		pc.rows[pc.interval] = row
	}
}

// parseDataRecord stores one data row's value against its channel.
func (pc *parseContext) parseDataRecord(ctx context.Context, record []string, lineno, chCol, valCol int, row *[]float64) {
	value := record[valCol]
	if value == "0" {
		// "Not transmitted"; indistinguishable from true zero.
		return
	}

	channel := record[chCol]

	if pc.fixedChannels() {
		idx, ok := pc.index[channel]
		if !ok {
			// Only the five region totals are wanted.
			return
		}
		if value == "" {
			pc.warn(ctx, "missing value left unrepaired", lineno,
				slog.String("channel", channel))
			return
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			pc.warn(ctx, "unparseable value treated as zero", lineno,
				slog.String("channel", channel),
				slog.String("value", value))
			return
		}
		(*row)[idx] = v
		return
	}

	idx, ok := pc.index[channel]
	if !ok {
		idx = len(pc.channels)
		pc.channels = append(pc.channels, channel)
		pc.index[channel] = idx
		*row = append(*row, 0)
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		pc.warn(ctx, "unparseable value treated as zero", lineno,
			slog.String("channel", channel),
			slog.String("value", value))
		return
	}
	(*row)[idx] = v
}

// finalize produces the dense period matrix from the parsed rows.
func (pc *parseContext) finalize(period string) *Matrix {
	m := newMatrix(period, pc.start, pc.channels, len(pc.rows))
	for i, row := range pc.rows {
		// A nil row is a missing interval; its zeros stand until the
		// grid-level gap repair runs.
		copy(m.Values[i], row)
	}
	return m
}

// warn logs one non-fatal parse anomaly with its full location.
func (pc *parseContext) warn(ctx context.Context, msg string, lineno int, attrs ...any) {
	args := []any{
		slog.String("archive", pc.archiveName),
		slog.String("inner", pc.innerName),
		slog.String("payload", pc.payloadName),
		slog.Int("line", lineno),
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	pc.logger.WarnContext(ctx, msg, args...)
}

// columnOf locates a named column in a header record, -1 when absent.
func columnOf(record []string, name string) int {
	for i, cell := range record {
		if cell == name {
			return i
		}
	}
	return -1
}
