package reliability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterTwoFailures(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
		Multiplier:  2,
		ShouldRetry: func(err error) bool { return true },
	}

	calls := 0
	result, err := WithRetry(cfg, func() (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 3, calls)
}

func TestWithRetryShortCircuitsOnNonRetryable(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Millisecond,
		ShouldRetry: func(err error) bool { return false },
	}

	calls := 0
	_, err := WithRetry(cfg, func() (any, error) {
		calls++
		return nil, errors.New("fatal")
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestWithRetryRespectsMaxAttempts(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Millisecond,
		ShouldRetry: func(err error) bool { return true },
	}

	calls := 0
	_, err := WithRetry(cfg, func() (any, error) {
		calls++
		return nil, errors.New("always fails")
	})

	require.Error(t, err)
	require.Equal(t, 3, calls)
}
