package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "weibocrawl/pkg/errors"
	"weibocrawl/pkg/logger"
)

func fastConfig(max int) *Config {
	return &Config{
		MaxAttempts: max,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     func(error) bool { return true },
		Context:     context.Background(),
		Logger:      logger.NewNopLogger(),
	}
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestConstantBackoff(t *testing.T) {
	b := &ConstantBackoff{Delay: 30 * time.Second}
	assert.Equal(t, time.Duration(0), b.NextDelay(0))
	assert.Equal(t, 30*time.Second, b.NextDelay(1))
	assert.Equal(t, 30*time.Second, b.NextDelay(99))
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryMaxAttemptsExceeded(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		return errors.New("persistent")
	}, fastConfig(3))

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "persistent")
}

func TestRetryUnlimitedUntilSuccess(t *testing.T) {
	attempts := 0
	cfg := fastConfig(0)
	cfg.RetryIf = errs.IsTransient

	err := Do(func() error {
		attempts++
		if attempts < 25 {
			return errs.Wrap(errs.ErrorTypeNetwork, errors.New("reset"), "fetch")
		}
		return nil
	}, cfg)

	require.NoError(t, err)
	assert.Equal(t, 25, attempts)
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	authoritative := &errs.Error{Type: errs.ErrorTypeAuthoritative, Message: "status 403", Code: 403}
	cfg := fastConfig(0)
	cfg.RetryIf = DefaultRetryIf

	err := Do(func() error {
		attempts++
		return authoritative
	}, cfg)

	assert.Same(t, authoritative, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	cfg := fastConfig(0)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}
	cfg.Context = ctx
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	err := Do(func() error {
		attempts++
		return errors.New("down")
	}, cfg)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	got, err := DoWithResult(func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeAsset, "status 503")))
	assert.False(t, DefaultRetryIf(errs.New(errs.ErrorTypeSchemaMismatch, "6 columns")))
	assert.True(t, DefaultRetryIf(errors.New("unknown")))
}

func TestWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Wait(context.Background(), time.Millisecond))
}
