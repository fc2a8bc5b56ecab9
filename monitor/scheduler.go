package monitor

import (
	"context"
	"time"
)

// Run executes cycles on a fixed interval until ctx is cancelled. The
// first cycle runs immediately. Cycle errors are reported through the
// sink (when configured) and logged; they never stop the loop.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	if _, err := s.Cycle(ctx); err != nil {
		s.logger.Error("monitor: cycle failed", "error", err)
		if s.sink != nil {
			if nerr := s.sink.SendError(ctx, err.Error()); nerr != nil {
				s.logger.Warn("monitor: error notification failed", "error", nerr)
			}
		}
	}
}
