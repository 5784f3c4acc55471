package petconnect

import (
	"context"

	"github.com/KyberNetwork/logger"
)

// ProbeStatus queries the wallets without changing their state. A missing
// wallet is a valid state and a failing provider counts as unavailable.
// RPCConnected and NetworkDetected are left false; they describe the
// connection made by a strategy, not the wallets.
func (r *Resolver) ProbeStatus(ctx context.Context) ConnectionStatus {
	var st ConnectionStatus

	if r.keyWallet != nil {
		st.HasPrivateKey = r.keyWallet.KeyCount() > 0
		if addr, ok := r.keyWallet.Address(); ok {
			st.PrivateKeyAddress = &addr
		}
		st.IsPrivateKeyReady = r.keyWallet.IsReady() &&
			!r.keyWallet.IsLocked() &&
			st.PrivateKeyAddress != nil
	}

	if r.provider != nil {
		st.HasExternalWallet = true

		pctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
		accounts, err := requestAccounts(pctx, r.provider)
		cancel()

		switch {
		case err != nil:
			logger.WithFields(logger.Fields{
				"error": err,
			}).Debug("External wallet account query failed, treating as not connected")
		case len(accounts) > 0:
			st.IsExternalWalletConnected = true
			account := accounts[0]
			st.ExternalAccount = &account
		}
	}

	logger.WithFields(logger.Fields{
		"has_private_key":              st.HasPrivateKey,
		"is_private_key_ready":         st.IsPrivateKeyReady,
		"has_external_wallet":          st.HasExternalWallet,
		"is_external_wallet_connected": st.IsExternalWalletConnected,
	}).Debug("Probed wallet status")

	return st
}
