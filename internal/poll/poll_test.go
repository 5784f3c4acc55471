package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntil_ReturnsImmediately_WhenConditionHolds(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Config{MaxAttempts: 5, Delay: time.Hour}, func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestUntil_SucceedsOnLaterAttempt(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Config{MaxAttempts: 5, Delay: time.Millisecond}, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntil_TimesOutAfterBudget(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Config{MaxAttempts: 4, Delay: time.Millisecond}, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 4, calls)
}

func TestUntil_ConditionErrorAbortsLoop(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Until(context.Background(), Config{MaxAttempts: 10, Delay: time.Millisecond}, func(ctx context.Context) (bool, error) {
		calls++
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestUntil_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)

	go func() {
		done <- Until(ctx, Config{MaxAttempts: 1000, Delay: time.Hour}, func(ctx context.Context) (bool, error) {
			calls++
			return false, nil
		})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Until did not return after cancel")
	}
}

func TestUntil_ZeroAttemptsStillEvaluatesOnce(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Config{}, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 1, calls)
}

func TestConfig_Budget(t *testing.T) {
	assert.Equal(t, 2900*time.Millisecond, DefaultConfig().Budget())
	assert.Equal(t, time.Duration(0), Config{MaxAttempts: 1, Delay: time.Second}.Budget())
}
