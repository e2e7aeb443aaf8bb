package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "weibocrawl/pkg/errors"
	"weibocrawl/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts (0 means unlimited)
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf decides whether an error is worth another attempt
	RetryIf func(error) bool
	// OnRetry is called before sleeping ahead of each retry
	OnRetry func(attempt int, err error, delay time.Duration)
	Context context.Context
	Logger  logger.Logger
	// Operation names the work in log lines
	Operation string
}

// DefaultConfig returns three attempts one second apart
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Second},
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.GetLogger(),
		Operation:   "operation",
	}
}

// DefaultRetryIf retries typed errors by type, never retries context errors
// and retries anything else.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	return true
}

// Do executes an operation with retry logic
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = &ConstantBackoff{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"operation": cfg.Operation,
					"attempt":   attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
		}

		delay := backoff.NextDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		logger.LogRetry(log, cfg.Operation, attempt, delay, err)

		if werr := Wait(ctx, delay); werr != nil {
			return fmt.Errorf("retry cancelled: %w", werr)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)
	return result, err
}
