package feed

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Tier identifies where an archive for one period can be obtained from.
// Lower values win when the same period is available from several tiers.
type Tier int

const (
	// TierCache is a locally stored, already-parsed matrix artifact.
	TierCache Tier = iota
	// TierMirror is a raw archive in an optional local mirror directory.
	TierMirror
	// TierRemote is a raw archive on the nemweb.com.au archive server.
	TierRemote
)

// String returns a short tier label for logging.
func (t Tier) String() string {
	switch t {
	case TierCache:
		return "cache"
	case TierMirror:
		return "mirror"
	case TierRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Descriptor points at exactly one period's archive in one tier.
// Locator is a filesystem path for cache/mirror tiers and a URL for
// the remote tier. Period is the archive's embedded date as YYYYMMDD.
type Descriptor struct {
	Tier    Tier
	Locator string
	Period  string
}

// Feed describes one of the two published data sources. All the
// per-feed constants live here so the catalog, loader and assemblers
// never hard-code them.
type Feed struct {
	// Name is a short identifier used in logs and cache sub-paths.
	Name string
	// WebSubdir is the archive directory below the archive base URL,
	// with a trailing slash, e.g. "Dispatch_SCADA/".
	WebSubdir string
	// FilenamePrefix is the leading part of every archive and payload
	// filename for this feed.
	FilenamePrefix string
	// IntervalMinutes is the feed's native sampling interval.
	IntervalMinutes int
	// IntervalsPerArchive is the fixed inner-archive count (288 daily,
	// 336 weekly).
	IntervalsPerArchive int
	// PeriodDays is the coverage of one archive in days.
	PeriodDays int
	// BeginMinute is the minute-of-day at which the first interval of a
	// period ends. SCADA stamps intervals at interval end, so the first
	// daily stamp is 00:05; the weekly feed's first stamp is 00:00.
	BeginMinute int
	// RegionIDs is the fixed channel list for feeds whose channels are
	// known up front. Nil means channels are discovered while parsing.
	RegionIDs []string
	// TimestampField, ChannelField and ValueField name the payload
	// columns holding the interval timestamp, the channel identifier
	// and the reported value. Positions are resolved from each
	// payload's header row, never assumed.
	TimestampField string
	ChannelField   string
	ValueField     string
}

// DispatchSCADA is the primary feed: daily archives of 5-minute power
// readings for every dispatchable unit on the grid.
var DispatchSCADA = Feed{
	Name:                "dispatch_scada",
	WebSubdir:           "Dispatch_SCADA/",
	FilenamePrefix:      "PUBLIC_DISPATCHSCADA_",
	IntervalMinutes:     5,
	IntervalsPerArchive: 288,
	PeriodDays:          1,
	BeginMinute:         5,
	TimestampField:      "SETTLEMENTDATE",
	ChannelField:        "DUID",
	ValueField:          "SCADAVALUE",
}

// RooftopPV is the secondary feed: Thursday-to-Wednesday weekly
// archives of 30-minute rooftop solar totals per region.
var RooftopPV = Feed{
	Name:                "rooftop_pv",
	WebSubdir:           "ROOFTOP_PV/ACTUAL/",
	FilenamePrefix:      "PUBLIC_ROOFTOP_PV_ACTUAL_MEASUREMENT_",
	IntervalMinutes:     30,
	IntervalsPerArchive: 336,
	PeriodDays:          7,
	BeginMinute:         0,
	RegionIDs:           []string{"NSW1", "QLD1", "SA1", "TAS1", "VIC1"},
	TimestampField:      "INTERVAL_DATETIME",
	ChannelField:        "REGIONID",
	ValueField:          "POWER",
}

// WeeklyAnchorWeekday is the weekday the weekly feed's periods start
// on. Rooftop archives always carry a Thursday date.
const WeeklyAnchorWeekday = time.Thursday

// ArchiveFilename returns the raw archive filename for one period.
func (f Feed) ArchiveFilename(period string) string {
	return f.FilenamePrefix + period + ".zip"
}

// CacheFilename returns the processed artifact filename for one period.
func (f Feed) CacheFilename(period string) string {
	return f.FilenamePrefix + period + ".gob"
}

// PeriodStart returns the timestamp of the first interval in a period.
func (f Feed) PeriodStart(period string) (time.Time, error) {
	day, err := ParsePeriod(period)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(f.BeginMinute) * time.Minute), nil
}

// ParsePeriod converts a YYYYMMDD period key to its midnight timestamp.
func ParsePeriod(period string) (time.Time, error) {
	t, err := time.Parse("20060102", period)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid period key %q: %w", period, err)
	}
	return t, nil
}

// FormatPeriod converts a timestamp to its YYYYMMDD period key.
func FormatPeriod(t time.Time) string {
	return t.Format("20060102")
}

// PeriodFromName extracts the YYYYMMDD key embedded at the tail of an
// archive or artifact name, before the extension. Returns false when
// the name does not carry one.
func PeriodFromName(name string) (string, bool) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if len(stem) < 8 {
		return "", false
	}
	key := stem[len(stem)-8:]
	for _, r := range key {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	if _, err := ParsePeriod(key); err != nil {
		return "", false
	}
	return key, true
}
