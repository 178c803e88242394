package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipvault/pkg/config"
	errs "clipvault/pkg/errors"
	"clipvault/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int) *Config {
	return &Config{
		MaxAttempts: maxAttempts,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
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
		{9, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}
	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
	}
}

func TestDoSucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	var retried []int

	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
	}

	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errs.New(errs.ErrorTypeServerError, 503, "unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func(ctx context.Context) error {
		calls++
		return errs.New(errs.ErrorTypeAuth, 401, "bad token")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, errs.ErrorTypeAuth, errs.TypeOf(err))
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	cause := errs.New(errs.ErrorTypeNetwork, 0, "connection refused")

	err := Do(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		return cause
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(0)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	calls := 0
	err := Do(ctx, cfg, func(ctx context.Context) error {
		calls++
		cancel()
		return errs.New(errs.ErrorTypeNetwork, 0, "reset")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	value, err := DoWithResult(context.Background(), fastConfig(3), func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "page", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "page", value)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(errs.New(errs.ErrorTypeNotFound, 404, "gone")))
	assert.True(t, DefaultRetryIf(errs.New(errs.ErrorTypeRateLimit, 429, "slow down")))
	assert.True(t, DefaultRetryIf(errors.New("unknown")))
}

func TestFromSettings(t *testing.T) {
	disabled := FromSettings(config.RetryConfig{Enabled: false, MaxAttempts: 9}, nil)
	assert.Equal(t, 1, disabled.MaxAttempts)

	enabled := FromSettings(config.RetryConfig{
		Enabled:      true,
		MaxAttempts:  4,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   3,
	}, logger.NewNopLogger())
	assert.Equal(t, 4, enabled.MaxAttempts)

	backoff, ok := enabled.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, backoff.MaxDelay)
	assert.Equal(t, 3.0, backoff.Multiplier)
}

func TestWait(t *testing.T) {
	assert.NoError(t, Wait(context.Background(), 0))
	assert.NoError(t, Wait(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
