package storesync

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/storeadmin_backend/config"
	"bitbucket.org/mmdatafocus/storeadmin_backend/utils"
	"github.com/sirupsen/logrus"
)

// retryBackoffBase is the unit of the linear backoff: attempt n sleeps
// n * retryBackoffBase before retrying. Package-level so tests can shorten it.
var retryBackoffBase = 500 * time.Millisecond

// IsTransient classifies a remote failure as a gateway/availability problem
// worth retrying.
func IsTransient(err error) bool {
	status := RemoteStatus(err)
	return status >= 502 && status <= 504
}

// retryCall runs fn up to maxRetries+1 times, retrying transient failures
// with linear backoff and logging one line per attempt. Non-transient
// failures stop immediately. Severity is decided by the callers: RetryRead
// degrades to a default, RetryWrite propagates.
func retryCall[T any](ctx context.Context, op string, maxRetries int, fn func(context.Context) (T, error)) (T, error) {
	logger := config.GetLogger()
	var result T
	var err error

	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		result, err = fn(ctx)
		fields := logrus.Fields{"op": op, "attempt": attempt}
		if tenant, ok := utils.GetTenantFromContext(ctx); ok {
			fields["tenant"] = tenant
		}
		if err == nil {
			if attempt > 1 {
				logger.WithFields(fields).Info("remote call recovered")
			}
			return result, nil
		}

		logger.WithFields(fields).Warn(err.Error())
		if !IsTransient(err) || attempt == maxRetries+1 {
			return result, err
		}

		select {
		case <-time.After(time.Duration(attempt) * retryBackoffBase):
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}
	return result, err
}

// RetryRead wraps a read operation. Failures, transient or not, never
// propagate as hard errors: after classification and bounded retries the
// declared default is returned together with the terminal error, which
// callers surface as a warning at most.
func RetryRead[T any](ctx context.Context, op string, maxRetries int, def T, fn func(context.Context) (T, error)) (T, error) {
	result, err := retryCall(ctx, op, maxRetries, fn)
	if err != nil {
		if IsNotFound(err) {
			// No data is not a failure on a read.
			return def, nil
		}
		config.LogError(config.GetLogger(), "storesync", "RetryRead", op, nil, err)
		return def, err
	}
	return result, nil
}

// RetryWrite wraps a write operation. After bounded retries the tagged
// remote error is returned; callers must branch on it explicitly.
func RetryWrite[T any](ctx context.Context, op string, maxRetries int, fn func(context.Context) (T, error)) (T, error) {
	return retryCall(ctx, op, maxRetries, fn)
}
