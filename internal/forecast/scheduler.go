// scheduler.go gates forecast generation on daily data density.
package forecast

import (
	"context"
	"log/slog"
	"time"

	"github.com/mkallio/skycast-go/internal/conf"
	"github.com/mkallio/skycast-go/internal/datastore"
	"github.com/mkallio/skycast-go/internal/logging"
)

// Scheduler decides after each ingested reading whether a forecast run is
// justified, and hands qualifying readings to the queue. Forecasting from a
// near-empty day, right after local midnight for example, produces noise, so
// a minimum sample count gates the pipeline.
type Scheduler struct {
	settings *conf.Settings
	ds       datastore.Interface
	queue    *Queue
	log      *slog.Logger
}

// NewScheduler wires the scheduler to a datastore and an engine-backed queue.
func NewScheduler(settings *conf.Settings, ds datastore.Interface, engine *Engine) *Scheduler {
	return &Scheduler{
		settings: settings,
		ds:       ds,
		queue:    NewQueue(settings.Forecast.QueueSize, engine.Run),
		log:      logging.ForService("forecast"),
	}
}

// Start launches the queue worker.
func (s *Scheduler) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains outstanding forecast work.
func (s *Scheduler) Stop() {
	s.queue.Stop()
}

// Drain blocks until all queued forecast runs have completed.
func (s *Scheduler) Drain() {
	s.queue.Drain()
}

// GateDay returns the calendar day whose reading count gates forecasting for
// a reading with the given timestamp: the reading's day in the station's
// local offset, minus one day. The result is midnight in the station zone.
func (s *Scheduler) GateDay(ts time.Time) time.Time {
	loc := s.settings.StationLocation()
	local := ts.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return day.AddDate(0, 0, -1)
}

// MaybeSchedule applies the density gate and enqueues a forecast run when it
// passes. It returns whether a run was scheduled. Errors never propagate to
// the ingestion request; they are logged and the reading stands.
func (s *Scheduler) MaybeSchedule(readingID uint, ts time.Time) bool {
	gateDay := s.GateDay(ts)

	count, err := s.ds.CountReadingsForDay(gateDay)
	if err != nil {
		s.log.Error("Scheduling gate query failed, skipping forecast",
			"reading_id", readingID,
			"gate_day", gateDay.Format("2006-01-02"),
			"error", err)
		return false
	}

	if count < int64(s.settings.Forecast.MinDailySamples) {
		s.log.Debug("Below daily sample gate, skipping forecast",
			"reading_id", readingID,
			"gate_day", gateDay.Format("2006-01-02"),
			"count", count,
			"required", s.settings.Forecast.MinDailySamples)
		return false
	}

	if err := s.queue.Enqueue(readingID); err != nil {
		s.log.Warn("Could not enqueue forecast run",
			"reading_id", readingID,
			"error", err)
		return false
	}

	s.log.Debug("Forecast run scheduled",
		"reading_id", readingID,
		"gate_day", gateDay.Format("2006-01-02"),
		"count", count)
	return true
}
