package petconnect

var strategies = map[StrategyKind]Strategy{
	StrategyPrivateKey: {
		Kind:        StrategyPrivateKey,
		Priority:    1,
		Description: "Use the unlocked private key wallet",
		RequiresRPC: true,
	},
	StrategyPrivateKeyInit: {
		Kind:        StrategyPrivateKeyInit,
		Priority:    2,
		Description: "Wait for the private key wallet to become ready",
		RequiresRPC: true,
	},
	StrategyExternalWallet: {
		Kind:        StrategyExternalWallet,
		Priority:    3,
		Description: "Use the connected external wallet",
		RequiresRPC: true,
	},
	StrategyExternalWalletConnect: {
		Kind:        StrategyExternalWalletConnect,
		Priority:    4,
		Description: "Ask the user to connect the external wallet",
		RequiresRPC: false,
	},
	StrategyNoWallet: {
		Kind:        StrategyNoWallet,
		Priority:    5,
		Description: "Read-only connection through a public RPC endpoint",
		RequiresRPC: true,
	},
}

// StrategyFor returns the catalogue entry of a strategy kind
func StrategyFor(kind StrategyKind) (Strategy, bool) {
	s, ok := strategies[kind]
	return s, ok
}

// SelectStrategy picks the highest priority strategy whose precondition
// holds in st. It performs no I/O and always returns a strategy.
func SelectStrategy(st ConnectionStatus) Strategy {
	var s Strategy
	switch {
	case st.IsPrivateKeyReady:
		s = strategies[StrategyPrivateKey]
		s.Address = st.PrivateKeyAddress
	case st.HasPrivateKey:
		s = strategies[StrategyPrivateKeyInit]
	case st.IsExternalWalletConnected:
		s = strategies[StrategyExternalWallet]
		s.Address = st.ExternalAccount
	case st.HasExternalWallet:
		s = strategies[StrategyExternalWalletConnect]
	default:
		s = strategies[StrategyNoWallet]
	}
	return s
}
