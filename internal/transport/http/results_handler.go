// Package http serves a finished run's results as a small read-only
// JSON API. The handlers never mutate the grid or the tallies.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"nemgrid/internal/aggregate"
	"nemgrid/internal/catalog"
	"nemgrid/internal/grid"
)

// ResultsHandler handles result-related HTTP requests
type ResultsHandler struct {
	window catalog.Window
	grid   *grid.MasterGrid
	tally  *aggregate.Tally
	logger *slog.Logger
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(w catalog.Window, g *grid.MasterGrid, t *aggregate.Tally, logger *slog.Logger) *ResultsHandler {
	return &ResultsHandler{
		window: w,
		grid:   g,
		tally:  t,
		logger: logger.With(slog.String("handler", "results")),
	}
}

// Routes returns the router for result endpoints
func (h *ResultsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", h.HealthCheck)
	r.Get("/summary", h.GetSummary)
	r.Get("/channels", h.GetChannels)
	r.Get("/categories", h.GetCategories)
	r.Get("/rows/{timestamp}", h.GetRow)

	return r
}

// HealthCheck handles GET /api/health
func (h *ResultsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetSummary handles GET /api/summary
func (h *ResultsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"window": map[string]string{
			"daily_start":  h.window.DailyStart.Format("2006-01-02"),
			"daily_end":    h.window.DailyEnd.Format("2006-01-02"),
			"weekly_start": h.window.WeeklyStart.Format("2006-01-02"),
			"weekly_end":   h.window.WeeklyEnd.Format("2006-01-02"),
		},
		"rows":             h.grid.Rows(),
		"interval_minutes": int(h.grid.Interval / time.Minute),
		"channels":         len(h.grid.Columns),
		"categories":       h.tally.Categories,
		"unknown_channels": h.tally.UnknownChannels,
	})
}

// channelResponse is one row of the channel listing.
type channelResponse struct {
	Channel string  `json:"channel"`
	In      float64 `json:"in_mw"`
	Out     float64 `json:"out_mw"`
	Ratio   float64 `json:"out_in_ratio"`
}

// GetChannels handles GET /api/channels
func (h *ResultsHandler) GetChannels(w http.ResponseWriter, r *http.Request) {
	channels := make([]channelResponse, len(h.tally.Channels))
	for i, channel := range h.tally.Channels {
		channels[i] = channelResponse{
			Channel: channel,
			In:      h.tally.ByChannel[i][0],
			Out:     h.tally.ByChannel[i][1],
			Ratio:   h.tally.ByChannel[i][2],
		}
	}
	render.JSON(w, r, map[string]interface{}{
		"channels": channels,
		"count":    len(channels),
	})
}

// GetCategories handles GET /api/categories
func (h *ResultsHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	totals := make(map[string]float64, len(h.tally.CategoryColumns))
	for _, row := range h.tally.ByRow {
		for i, col := range h.tally.CategoryColumns {
			totals[col] += row[i]
		}
	}
	if rows := len(h.tally.ByRow); rows > 0 {
		for col := range totals {
			totals[col] /= float64(rows)
		}
	}
	render.JSON(w, r, map[string]interface{}{
		"columns":  h.tally.CategoryColumns,
		"averages": totals,
	})
}

// GetRow handles GET /api/rows/{timestamp}
func (h *ResultsHandler) GetRow(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "timestamp")
	ts, err := time.Parse("2006-01-02T15:04", raw)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Invalid row timestamp",
			slog.String("timestamp", raw))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]interface{}{
			"error": "timestamp must use format 2006-01-02T15:04",
		})
		return
	}

	row := int(ts.Sub(h.grid.Start) / h.grid.Interval)
	if row < 0 || row >= h.grid.Rows() || !h.grid.Timestamp(row).Equal(ts) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]interface{}{
			"error": "timestamp outside the processed window",
		})
		return
	}

	values := make(map[string]float64, len(h.tally.CategoryColumns))
	for i, col := range h.tally.CategoryColumns {
		values[col] = h.tally.ByRow[row][i]
	}
	render.JSON(w, r, map[string]interface{}{
		"timestamp":  ts.Format("2006-01-02T15:04"),
		"categories": values,
	})
}
