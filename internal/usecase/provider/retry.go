package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

const maxAttempts = 5

// withRetry runs fn up to maxAttempts times, doubling the delay between
// attempts starting from base. Only busy and timeout conditions are retried;
// auth and network failures surface immediately.
func withRetry(ctx context.Context, logger *zap.Logger, vendor string, base time.Duration, fn func(context.Context) error) error {
	delay := base
	var err error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !domain.Retryable(err) || attempt == maxAttempts {
			return err
		}

		metrics.ProviderRetriesTotal.WithLabelValues(vendor).Inc()
		logger.Warn("provider call failed, retrying",
			zap.String("vendor", vendor),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return err
}
