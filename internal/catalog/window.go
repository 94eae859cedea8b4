package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nemgrid/internal/feed"
)

// Window is the exact date range each feed must supply for one run.
// Daily bounds fall on the first of a month one year apart; weekly
// bounds pad outward to the Thursday anchor so the weekly data fully
// covers the daily range. All bounds are half-open: [start, end).
type Window struct {
	DailyStart  time.Time
	DailyEnd    time.Time
	WeeklyStart time.Time
	WeeklyEnd   time.Time
}

// SelectWindow computes the latest fully-available rolling 12-month
// window from both feeds' merged descriptor lists. When either feed's
// earliest period is later than the computed start the run proceeds
// with partial data and a warning is logged.
func SelectWindow(ctx context.Context, logger *slog.Logger, daily, weekly []feed.Descriptor) (Window, error) {
	if len(daily) == 0 || len(weekly) == 0 {
		return Window{}, fmt.Errorf("cannot select window: empty descriptor list")
	}

	lastDaily, err := feed.ParsePeriod(daily[len(daily)-1].Period)
	if err != nil {
		return Window{}, err
	}
	lastWeekly, err := feed.ParsePeriod(weekly[len(weekly)-1].Period)
	if err != nil {
		return Window{}, err
	}

	// The earliest end either feed can reach: one day past the last
	// daily period, one week past the last weekly period.
	earliestEnd := lastDaily.AddDate(0, 0, 1)
	if weeklyEnd := lastWeekly.AddDate(0, 0, 7); weeklyEnd.Before(earliestEnd) {
		earliestEnd = weeklyEnd
	}

	end := time.Date(earliestEnd.Year(), earliestEnd.Month(), 1, 0, 0, 0, 0, earliestEnd.Location())
	start := end.AddDate(-1, 0, 0)

	// Weekly archives carry Thursday dates; bracket the daily year
	// with the prior and following anchor days.
	back := (int(start.Weekday()) - int(feed.WeeklyAnchorWeekday) + 7) % 7
	forward := (int(feed.WeeklyAnchorWeekday) - int(end.Weekday()) + 7) % 7
	w := Window{
		DailyStart:  start,
		DailyEnd:    end,
		WeeklyStart: start.AddDate(0, 0, -back),
		WeeklyEnd:   end.AddDate(0, 0, forward),
	}

	firstDaily, err := feed.ParsePeriod(daily[0].Period)
	if err != nil {
		return Window{}, err
	}
	firstWeekly, err := feed.ParsePeriod(weekly[0].Period)
	if err != nil {
		return Window{}, err
	}
	if w.DailyStart.Before(firstDaily) || w.WeeklyStart.Before(firstWeekly) {
		logger.WarnContext(ctx, "data for a full twelve months is not available; proceeding with partial data",
			slog.Time("daily_start", w.DailyStart),
			slog.Time("first_daily", firstDaily),
			slog.Time("weekly_start", w.WeeklyStart),
			slog.Time("first_weekly", firstWeekly))
	}

	logger.InfoContext(ctx, "selected twelve month window",
		slog.String("daily_start", w.DailyStart.Format("2006-01-02")),
		slog.String("daily_end", w.DailyEnd.Format("2006-01-02")),
		slog.String("weekly_start", w.WeeklyStart.Format("2006-01-02")),
		slog.String("weekly_end", w.WeeklyEnd.Format("2006-01-02")))
	return w, nil
}

// PeriodsInWindow filters a merged descriptor list down to the periods
// a feed must load for its window bounds: entries before the start are
// skipped and at most (end-start)/periodDays entries are taken.
func PeriodsInWindow(list []feed.Descriptor, f feed.Feed, start, end time.Time) []feed.Descriptor {
	needed := int(end.Sub(start).Hours()/24) / f.PeriodDays
	startKey := feed.FormatPeriod(start)

	var selected []feed.Descriptor
	for _, d := range list {
		if d.Period < startKey {
			continue
		}
		selected = append(selected, d)
		if len(selected) >= needed {
			break
		}
	}
	return selected
}

// Bounds returns a feed's window bounds: the daily pair for the
// primary feed and the weekly pair for the secondary feed.
func (w Window) Bounds(f feed.Feed) (time.Time, time.Time) {
	if f.PeriodDays == 7 {
		return w.WeeklyStart, w.WeeklyEnd
	}
	return w.DailyStart, w.DailyEnd
}
