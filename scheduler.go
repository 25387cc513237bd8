package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Zachkp/folio/internal/metrics"
)

// scheduler runs the periodic privacy jobs.
type scheduler struct {
	cron *cron.Cron
	srv  *server
	log  zerolog.Logger
}

func newScheduler(srv *server, log zerolog.Logger) (*scheduler, error) {
	s := &scheduler{cron: cron.New(), srv: srv, log: log}

	// nightly at 3 AM
	if _, err := s.cron.AddFunc("0 3 * * *", s.cleanupVisitors); err != nil {
		return nil, fmt.Errorf("schedule visitor cleanup: %w", err)
	}
	if _, err := s.cron.AddFunc("@hourly", s.purgeFlags); err != nil {
		return nil, fmt.Errorf("schedule flag purge: %w", err)
	}
	return s, nil
}

func (s *scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *scheduler) cleanupVisitors() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.srv.cleanupOldVisitors(ctx); err != nil {
		s.log.Error().Err(err).Msg("visitor cleanup")
	}
}

// purgeFlags drops session flags older than the session TTL.
func (s *scheduler) purgeFlags() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.srv.flags.Purge(ctx, time.Now().Add(-s.srv.cfg.SessionTTL))
	if err != nil {
		s.log.Error().Err(err).Msg("session flag purge")
		return
	}
	if n > 0 {
		metrics.CleanupRemoved.WithLabelValues("session_flags").Add(float64(n))
		s.log.Info().Int64("rows", n).Msg("purged expired session flags")
	}
}
