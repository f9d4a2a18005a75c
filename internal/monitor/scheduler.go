package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/kochj23/SceneFixer/internal/auditor"
	"github.com/kochj23/SceneFixer/internal/prober"
)

// Run prunes stored history once, then refreshes the catalogs and runs a
// health check followed by an audit of every scene each sweep interval
// until ctx is cancelled. With a zero interval it returns after pruning.
func (s *Service) Run(ctx context.Context) {
	s.pruneHistory(ctx)
	if s.interval <= 0 {
		return
	}
	s.logger.Info("periodic sweeps enabled", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

// sweepOnce runs one scheduled cycle. A sweep already started by a user
// is left to finish and the cycle skipped.
func (s *Service) sweepOnce(ctx context.Context) {
	s.pruneHistory(ctx)
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("scheduled refresh failed", "error", err)
		return
	}

	if _, err := s.RunFullHealthCheck(ctx, nil); err != nil {
		if errors.Is(err, prober.ErrSweepInProgress) {
			s.logger.Debug("scheduled health check skipped, sweep in progress")
		} else {
			s.logger.Warn("scheduled health check stopped", "error", err)
			return
		}
	}

	if _, err := s.AuditAll(ctx, nil); err != nil {
		if errors.Is(err, auditor.ErrSweepInProgress) {
			s.logger.Debug("scheduled audit skipped, sweep in progress")
			return
		}
		s.logger.Warn("scheduled audit stopped", "error", err)
	}
}

// pruneHistory deletes stored results older than health.history_max_age.
// In-memory histories are left alone; they follow the retention policy.
func (s *Service) pruneHistory(ctx context.Context) {
	if s.maxAge <= 0 {
		return
	}
	p, ok := s.history.(HistoryPruner)
	if !ok {
		return
	}
	n, err := p.Prune(ctx, s.maxAge)
	if err != nil {
		s.logger.Warn("pruning test history failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("pruned test history", "deleted", n, "older_than", s.maxAge.String())
	}
}
