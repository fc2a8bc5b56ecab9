package notify

import (
	"context"
	"log/slog"
)

// Router fans a summary out to all configured sinks. One sink error does
// not block the others; errors are logged and the first encountered is
// returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Send(ctx context.Context, s Summary) error {
	var firstErr error
	for _, sink := range r.sinks {
		if err := sink.Send(ctx, s); err != nil {
			r.logger.Warn("notify: send failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) SendError(ctx context.Context, message string) error {
	var firstErr error
	for _, sink := range r.sinks {
		if err := sink.SendError(ctx, message); err != nil {
			r.logger.Warn("notify: send error failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
