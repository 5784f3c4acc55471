// Package poll provides a bounded retry-with-timeout loop for waiting on
// external state that becomes ready on its own (an unlocking wallet, a set of
// contract bindings being published).
package poll

import (
	"context"
	"fmt"
	"time"
)

// ErrTimeout is returned by Until when the attempt budget is exhausted
var ErrTimeout = fmt.Errorf("poll: condition not met within attempt budget")

// Config bounds a polling loop. The total wait is at most
// (MaxAttempts-1) * Delay.
type Config struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultConfig polls every 100ms for about 3 seconds
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 30,
		Delay:       100 * time.Millisecond,
	}
}

// Budget returns the longest time Until can sleep with this config
func (c Config) Budget() time.Duration {
	if c.MaxAttempts <= 1 {
		return 0
	}
	return time.Duration(c.MaxAttempts-1) * c.Delay
}

// Condition reports whether the awaited state has been reached.
// A non-nil error aborts the loop and is returned as is.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond immediately and then after every Delay until it
// returns true, returns an error, the context is done, or MaxAttempts
// evaluations have been made. A config with MaxAttempts < 1 still evaluates
// cond once.
func Until(ctx context.Context, cfg Config, cond Condition) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if i == attempts-1 {
			break
		}

		if timer == nil {
			timer = time.NewTimer(cfg.Delay)
		} else {
			timer.Reset(cfg.Delay)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w after %d attempts", ErrTimeout, attempts)
}
