// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

const sweepTimeout = 10 * time.Minute

// Scheduler runs the upload archive retention sweep.
type Scheduler struct {
	cron      *cron.Cron
	archive   storage.Storage
	retention time.Duration
	schedule  string
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduler creates a scheduler that deletes archived uploads older than
// retention on the given 5-field cron schedule.
func NewScheduler(archive storage.Storage, retention time.Duration, schedule string, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		archive:   archive,
		retention: retention,
		schedule:  schedule,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the sweep and begins scheduling. A non-positive retention
// keeps archives forever and schedules nothing.
func (s *Scheduler) Start() error {
	if s.retention <= 0 {
		s.logger.Info("archive retention disabled, cron scheduler idle")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.pruneArchive); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers the sweep immediately in the background.
func (s *Scheduler) RunNow() {
	go s.pruneArchive()
}

func (s *Scheduler) pruneArchive() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	cutoff := s.now().Add(-s.retention)
	s.logger.Info("starting archive retention sweep", slog.Time("cutoff", cutoff))

	removed, err := storage.PruneOlderThan(ctx, s.archive, cutoff, s.logger)
	if err != nil {
		s.logger.Error("archive retention sweep failed", slog.Any("error", err))
		return
	}

	s.logger.Info("archive retention sweep completed", slog.Int("removed", removed))
}
