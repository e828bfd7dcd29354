package service

import (
	"context"
	"time"

	"github.com/pantrymind/pantrymind-backend/pkg/database"
	"github.com/pantrymind/pantrymind-backend/pkg/errors"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/pantrymind/pantrymind-backend/pkg/metrics"
)

// txPolicy bounds every mutating transaction: a timeout per attempt and a
// number of attempts on serialization or deadlock failures.
type txPolicy struct {
	runner     TxRunner
	timeout    time.Duration
	maxRetries int
	logger     *logger.Logger
}

// run executes fn in a transaction, retrying it from the start while the
// database reports a retryable conflict. Once the attempts are used up the
// caller sees ConcurrentAggregateConflict.
func (p txPolicy) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if !database.IsRetryable(err) {
			if appErr := database.MapPQError(err); appErr != nil {
				return appErr
			}
			return err
		}

		metrics.TxRetries.WithLabelValues(op).Inc()
		p.logger.Warn().Err(err).
			Str("operation", op).
			Int("attempt", attempt).
			Msg("transaction conflict, retrying")
	}

	return errors.ConcurrentAggregateConflict(err)
}

func (p txPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.runner.WithTx(ctx, fn)
}
