package archive

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nemgrid/internal/feed"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scadaFeed is the primary feed shrunk to four intervals so fixtures
// stay readable.
var scadaFeed = feed.Feed{
	Name:                "dispatch_scada",
	WebSubdir:           "Dispatch_SCADA/",
	FilenamePrefix:      "PUBLIC_DISPATCHSCADA_",
	IntervalMinutes:     5,
	IntervalsPerArchive: 4,
	PeriodDays:          1,
	BeginMinute:         5,
	TimestampField:      "SETTLEMENTDATE",
	ChannelField:        "DUID",
	ValueField:          "SCADAVALUE",
}

// pvFeed is the secondary feed shrunk to four intervals.
var pvFeed = feed.Feed{
	Name:                "rooftop_pv",
	WebSubdir:           "ROOFTOP_PV/ACTUAL/",
	FilenamePrefix:      "PUBLIC_ROOFTOP_PV_ACTUAL_MEASUREMENT_",
	IntervalMinutes:     30,
	IntervalsPerArchive: 4,
	PeriodDays:          7,
	BeginMinute:         0,
	RegionIDs:           []string{"NSW1", "QLD1", "SA1", "TAS1", "VIC1"},
	TimestampField:      "INTERVAL_DATETIME",
	ChannelField:        "REGIONID",
	ValueField:          "POWER",
}

func newTestContext(t *testing.T, f feed.Feed, period string) *parseContext {
	t.Helper()
	start, err := f.PeriodStart(period)
	require.NoError(t, err)
	return newParseContext(f, period, start, testLogger())
}

func TestParsePayloadDiscovery(t *testing.T) {
	pc := newTestContext(t, scadaFeed, "20250301")
	pc.interval = 0

	payload := strings.Join([]string{
		`C,NEMP.WORLD,DISPATCHSCADA,AEMO,PUBLIC,2025/03/01,00:05:00`,
		`I,DISPATCH,UNIT_SCADA,1,SETTLEMENTDATE,DUID,SCADAVALUE`,
		`D,DISPATCH,UNIT_SCADA,1,"2025/03/01 00:05:00",UNIT_A,101.5`,
		`D,DISPATCH,UNIT_SCADA,1,"2025/03/01 00:05:00",UNIT_B,-12.25`,
		`C,END OF REPORT,4`,
	}, "\n")

	pc.parsePayload(context.Background(), strings.NewReader(payload))
	m := pc.finalize("20250301")

	require.Equal(t, []string{"UNIT_A", "UNIT_B"}, m.Channels)
	assert.Equal(t, 101.5, m.Values[0][0])
	assert.Equal(t, -12.25, m.Values[0][1])
}

func TestParsePayloadHeaderReresolved(t *testing.T) {
	pc := newTestContext(t, scadaFeed, "20250301")

	// First payload: standard column order.
	pc.interval = 0
	first := strings.Join([]string{
		`I,DISPATCH,UNIT_SCADA,1,SETTLEMENTDATE,DUID,SCADAVALUE`,
		`D,DISPATCH,UNIT_SCADA,1,"2025/03/01 00:05:00",UNIT_A,100`,
	}, "\n")
	pc.parsePayload(context.Background(), strings.NewReader(first))

	// Second payload: value and channel columns swapped.
	pc.interval = 1
	second := strings.Join([]string{
		`I,DISPATCH,UNIT_SCADA,1,SETTLEMENTDATE,SCADAVALUE,DUID`,
		`D,DISPATCH,UNIT_SCADA,1,"2025/03/01 00:10:00",200,UNIT_A`,
	}, "\n")
	pc.parsePayload(context.Background(), strings.NewReader(second))

	m := pc.finalize("20250301")
	assert.Equal(t, 100.0, m.Values[0][0])
	assert.Equal(t, 200.0, m.Values[1][0])
}

func TestParsePayloadZeroValueSkipped(t *testing.T) {
	pc := newTestContext(t, scadaFeed, "20250301")
	pc.interval = 0

	payload := strings.Join([]string{
		`I,DISPATCH,UNIT_SCADA,1,SETTLEMENTDATE,DUID,SCADAVALUE`,
		`D,DISPATCH,UNIT_SCADA,1,"2025/03/01 00:05:00",UNIT_ZERO,0`,
		`D,DISPATCH,UNIT_SCADA,1,"2025/03/01 00:05:00",UNIT_REAL,50`,
	}, "\n")
	pc.parsePayload(context.Background(), strings.NewReader(payload))

	m := pc.finalize("20250301")
	// "0" means not transmitted; the channel is never even registered
	// unless some other interval reports it.
	assert.Equal(t, []string{"UNIT_REAL"}, m.Channels)
}

func TestParsePayloadBadValueTreatedAsZero(t *testing.T) {
	pc := newTestContext(t, scadaFeed, "20250301")
	pc.interval = 0

	payload := strings.Join([]string{
		`I,DISPATCH,UNIT_SCADA,1,SETTLEMENTDATE,DUID,SCADAVALUE`,
		`D,DISPATCH,UNIT_SCADA,1,"2025/03/01 00:05:00",UNIT_A,garbage`,
		`D,DISPATCH,UNIT_SCADA,1,"2025/03/01 00:05:00",UNIT_B,75`,
	}, "\n")
	pc.parsePayload(context.Background(), strings.NewReader(payload))

	m := pc.finalize("20250301")
	require.Equal(t, []string{"UNIT_A", "UNIT_B"}, m.Channels)
	assert.Equal(t, 0.0, m.Values[0][0])
	assert.Equal(t, 75.0, m.Values[0][1])
}

func TestParsePayloadFixedRegions(t *testing.T) {
	pc := newTestContext(t, pvFeed, "20250306")
	pc.interval = 2

	payload := strings.Join([]string{
		`I,ROOFTOP,ACTUAL,2,INTERVAL_DATETIME,REGIONID,POWER,QI,TYPE,LASTCHANGED`,
		`D,ROOFTOP,ACTUAL,2,"2025/03/06 01:00:00",NSW1,1234.5,1,MEASUREMENT,x`,
		`D,ROOFTOP,ACTUAL,2,"2025/03/06 01:00:00",QLD1,987.6,1,MEASUREMENT,x`,
		`D,ROOFTOP,ACTUAL,2,"2025/03/06 01:00:00",NSW1X,555,1,MEASUREMENT,x`,
		`D,ROOFTOP,ACTUAL,2,"2025/03/06 01:00:00",TAS1,,1,MEASUREMENT,x`,
	}, "\n")
	pc.parsePayload(context.Background(), strings.NewReader(payload))

	m := pc.finalize("20250306")
	require.Equal(t, pvFeed.RegionIDs, m.Channels)
	assert.Equal(t, 1234.5, m.Values[2][0])
	assert.Equal(t, 987.6, m.Values[2][1])
	// Sub-region identifiers are ignored, empty values stay zero.
	assert.Equal(t, 0.0, m.Values[2][3])
	assert.Equal(t, 0.0, m.Values[2][4])
}

func TestParsePayloadDataBeforeHeader(t *testing.T) {
	pc := newTestContext(t, scadaFeed, "20250301")
	pc.interval = 0

	payload := strings.Join([]string{
		`D,DISPATCH,UNIT_SCADA,1,"2025/03/01 00:05:00",UNIT_A,100`,
		`I,DISPATCH,UNIT_SCADA,1,SETTLEMENTDATE,DUID,SCADAVALUE`,
		`D,DISPATCH,UNIT_SCADA,1,"2025/03/01 00:05:00",UNIT_B,25`,
	}, "\n")
	pc.parsePayload(context.Background(), strings.NewReader(payload))

	m := pc.finalize("20250301")
	// The premature data row is dropped, not guessed at.
	assert.Equal(t, []string{"UNIT_B"}, m.Channels)
}

func TestIntervalIndex(t *testing.T) {
	pc := newTestContext(t, scadaFeed, "20250301")

	tests := []struct {
		name     string
		payload  string
		expected int
		ok       bool
	}{
		{
			name:     "first interval",
			payload:  "PUBLIC_DISPATCHSCADA_20250301000500_0000000456789.CSV",
			expected: 0,
			ok:       true,
		},
		{
			name:     "third interval",
			payload:  "PUBLIC_DISPATCHSCADA_20250301001500_0000000456790.CSV",
			expected: 2,
			ok:       true,
		},
		{
			name:    "before the period",
			payload: "PUBLIC_DISPATCHSCADA_20250228235500_0000000456788.CSV",
			ok:      false,
		},
		{
			name:    "past the last interval",
			payload: "PUBLIC_DISPATCHSCADA_20250301010500_0000000456799.CSV",
			ok:      false,
		},
		{
			name:    "garbled timestamp",
			payload: "PUBLIC_DISPATCHSCADA_2025030100XX00_0000000456789.CSV",
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := pc.intervalIndex(tt.payload)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, idx)
			}
		})
	}
}

func TestFinalizeMissingIntervalsStayZero(t *testing.T) {
	pc := newTestContext(t, scadaFeed, "20250301")
	pc.interval = 3

	payload := strings.Join([]string{
		`I,DISPATCH,UNIT_SCADA,1,SETTLEMENTDATE,DUID,SCADAVALUE`,
		`D,DISPATCH,UNIT_SCADA,1,"2025/03/01 00:20:00",UNIT_A,42`,
	}, "\n")
	pc.parsePayload(context.Background(), strings.NewReader(payload))

	m := pc.finalize("20250301")
	require.Equal(t, 4, m.Rows())
	assert.Equal(t, 0.0, m.Values[0][0])
	assert.Equal(t, 0.0, m.Values[1][0])
	assert.Equal(t, 0.0, m.Values[2][0])
	assert.Equal(t, 42.0, m.Values[3][0])
	assert.Equal(t, time.Date(2025, 3, 1, 0, 5, 0, 0, time.UTC), m.Start)
}
