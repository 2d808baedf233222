package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/tempora/internal/logging"
	"go.uber.org/zap"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsTransientError reports whether err is a gRPC failure worth retrying:
// unavailability, deadlines, aborts and exhausted resources.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// retrier retries transient transport errors with exponential backoff.
type retrier struct {
	backend    string
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
}

func (r retrier) do(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	backoff := r.backoff
	start := time.Now()

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				r.logger.Info(ctx, "index operation recovered after retries",
					zap.String("op", op),
					zap.Int("attempts", attempt),
					zap.Duration("total_time", time.Since(start)),
				)
			}
			return nil
		}
		lastErr = err

		if !IsTransientError(err) {
			return err
		}
		if attempt == r.maxRetries {
			break
		}

		RetriesTotal.WithLabelValues(r.backend, op).Inc()
		r.logger.Debug(ctx, "retrying index operation after transient error",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", op, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	r.logger.Warn(ctx, "index operation failed after all retries",
		zap.String("op", op),
		zap.Int("total_attempts", r.maxRetries+1),
		zap.Error(lastErr),
	)
	return fmt.Errorf("%s failed after %d retries: %w", op, r.maxRetries, lastErr)
}
