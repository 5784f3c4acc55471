package petconnect

import (
	"context"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"
)

// MismatchHandler is called when the external wallet sits on a different
// chain than the resolved network. It typically shows a switch prompt.
type MismatchHandler func(ctx context.Context, expected Network, walletChainID uint64)

// NetworkWatcher periodically compares the external wallet's chain with the
// resolved network. Prompts are rate limited so the user is not nagged.
type NetworkWatcher struct {
	r          *Resolver
	onMismatch MismatchHandler

	interval    time.Duration
	minReprompt time.Duration

	mu         sync.Mutex
	lastPrompt time.Time
}

// WatcherOption configures a NetworkWatcher
type WatcherOption func(*NetworkWatcher)

// WithWatchInterval sets how often the wallet is checked
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *NetworkWatcher) {
		w.interval = d
	}
}

// WithMinReprompt sets the minimum time between two mismatch prompts
func WithMinReprompt(d time.Duration) WatcherOption {
	return func(w *NetworkWatcher) {
		w.minReprompt = d
	}
}

// NewNetworkWatcher creates a watcher over r's external provider
func (r *Resolver) NewNetworkWatcher(onMismatch MismatchHandler, opts ...WatcherOption) *NetworkWatcher {
	w := &NetworkWatcher{
		r:           r,
		onMismatch:  onMismatch,
		interval:    DefaultWatchInterval,
		minReprompt: DefaultMinRepromptDelay,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run checks the wallet every interval until ctx is done
func (w *NetworkWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check performs one comparison and reports whether the handler was called
func (w *NetworkWatcher) Check(ctx context.Context) bool {
	r := w.r
	if r.provider == nil {
		return false
	}

	pctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	accounts, err := requestAccounts(pctx, r.provider)
	if err != nil || len(accounts) == 0 {
		return false
	}
	chainID, err := requestChainID(pctx, r.provider)
	if err != nil {
		logger.WithFields(logger.Fields{
			"error": err,
		}).Debug("Watcher couldn't read wallet chain id")
		return false
	}

	expected := r.network()
	if chainID == expected.ChainID() {
		return false
	}

	w.mu.Lock()
	now := r.now()
	if !w.lastPrompt.IsZero() && now.Sub(w.lastPrompt) < w.minReprompt {
		w.mu.Unlock()
		return false
	}
	w.lastPrompt = now
	w.mu.Unlock()

	logger.WithFields(logger.Fields{
		"expected": expected,
		"chain_id": chainID,
	}).Info("External wallet is on the wrong network")

	if w.onMismatch != nil {
		w.onMismatch(ctx, expected, chainID)
	}
	return true
}
