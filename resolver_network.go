package petconnect

import (
	"context"
	"net/url"

	"github.com/KyberNetwork/logger"
)

// NetworkChangeListener is notified when the resolved network changes
type NetworkChangeListener func(old, new Network)

// OnNetworkChange registers a listener for network changes
func (r *Resolver) OnNetworkChange(l NetworkChangeListener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Resolver) notifyNetworkChange(old, new Network) {
	r.listenersMu.RLock()
	listeners := make([]NetworkChangeListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.listenersMu.RUnlock()

	for _, l := range listeners {
		l(old, new)
	}
}

// setNetwork updates the session and notifies listeners when the value changed
func (r *Resolver) setNetwork(n Network) {
	old := r.session.swapNetwork(n)
	if old == n {
		return
	}
	logger.WithFields(logger.Fields{
		"old": old,
		"new": n,
	}).Info("Network changed")
	if old != "" {
		r.notifyNetworkChange(old, n)
	}
}

// network returns the resolved network or the default when none is resolved yet
func (r *Resolver) network() Network {
	if n, ok := r.session.Network(); ok {
		return n
	}
	return DefaultNetwork
}

func (r *Resolver) rpcURLsFor(n Network) []string {
	if urls, ok := r.rpcURLs[n]; ok && len(urls) > 0 {
		return urls
	}
	return n.RPCURLs()
}

// DetectNetwork resolves the network preference. The first of these wins:
//  1. the network already set on the session
//  2. the persisted preference
//  3. the "network" query parameter of the page URL
//  4. the chain of an already connected external wallet
//  5. DefaultNetwork
//
// The result is written back to the session and the preference store.
func (r *Resolver) DetectNetwork(ctx context.Context) Network {
	n, from := r.detectNetwork(ctx)

	r.session.SetNetwork(n)
	r.savePreference(ctx, n)

	logger.WithFields(logger.Fields{
		"network": n,
		"from":    from,
	}).Debug("Detected network")

	return n
}

func (r *Resolver) detectNetwork(ctx context.Context) (Network, string) {
	if n, ok := r.session.Network(); ok && n.Valid() {
		return n, "session"
	}

	if r.prefStore != nil {
		n, ok, err := r.prefStore.LoadNetwork(ctx)
		if err != nil {
			logger.WithFields(logger.Fields{
				"error": err,
			}).Warn("Couldn't load network preference. Ignore and continue")
		} else if ok && n.Valid() {
			return n, "storage"
		}
	}

	if n, ok := networkFromPageURL(r.pageURL); ok {
		return n, "url"
	}

	if r.provider != nil {
		if n, ok := r.walletNetwork(ctx); ok {
			return n, "wallet"
		}
	}

	return DefaultNetwork, "default"
}

func networkFromPageURL(pageURL string) (Network, bool) {
	if pageURL == "" {
		return "", false
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	return ParseNetwork(u.Query().Get("network"))
}

// walletNetwork reads the chain of the external wallet, only when it is
// already connected
func (r *Resolver) walletNetwork(ctx context.Context) (Network, bool) {
	pctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	accounts, err := requestAccounts(pctx, r.provider)
	if err != nil || len(accounts) == 0 {
		return "", false
	}
	chainID, err := requestChainID(pctx, r.provider)
	if err != nil {
		return "", false
	}
	return NetworkForChainID(chainID)
}

func (r *Resolver) savePreference(ctx context.Context, n Network) {
	if r.prefStore == nil {
		return
	}
	if err := r.prefStore.SaveNetwork(ctx, n); err != nil {
		logger.WithFields(logger.Fields{
			"network": n,
			"error":   err,
		}).Warn("Couldn't persist network preference. Ignore and continue")
	}
}

// adoptWalletNetwork makes the wallet's chain authoritative for the rest of
// the session. It is not persisted here.
func (r *Resolver) adoptWalletNetwork(chainID uint64) {
	n, ok := NetworkForChainID(chainID)
	if !ok {
		logger.WithFields(logger.Fields{
			"chain_id": chainID,
			"network":  r.network(),
		}).Warn("External wallet is on an unsupported chain")
		return
	}
	r.setNetwork(n)
}
