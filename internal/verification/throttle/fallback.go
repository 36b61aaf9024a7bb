package throttle

import (
	"context"
	"log/slog"

	"zkworkspace/pkg/platform/circuit"
)

// Limiter is the shape shared by the Memory and Redis throttles.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Fallback consults the shared primary limiter and answers from the local
// secondary whenever the primary errors or its circuit has not yet closed again.
type Fallback struct {
	primary   Limiter
	secondary Limiter
	breaker   *circuit.Breaker
	logger    *slog.Logger
}

func NewFallback(primary, secondary Limiter, breaker *circuit.Breaker, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{primary: primary, secondary: secondary, breaker: breaker, logger: logger}
}

func (f *Fallback) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := f.primary.Allow(ctx, key)
	if err != nil {
		if _, change := f.breaker.RecordFailure(); change.Opened {
			f.logger.WarnContext(ctx, "throttle circuit opened, using local window",
				"breaker", f.breaker.Name(), "error", err)
		}
		return f.secondary.Allow(ctx, key)
	}

	usePrimary, change := f.breaker.RecordSuccess()
	if change.Closed {
		f.logger.InfoContext(ctx, "throttle circuit closed", "breaker", f.breaker.Name())
	}
	if !usePrimary {
		return f.secondary.Allow(ctx, key)
	}
	return allowed, nil
}
