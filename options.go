package petconnect

import (
	"time"

	"github.com/tranvictor/petconnect/internal/poll"
)

// ResolverOption is a function that configures a Resolver
type ResolverOption func(*Resolver)

// WithPrivateKeyWallet sets the application's own key wallet
func WithPrivateKeyWallet(w PrivateKeyWallet) ResolverOption {
	return func(r *Resolver) {
		r.keyWallet = w
	}
}

// WithExternalProvider sets the external wallet provider
func WithExternalProvider(p ExternalProvider) ResolverOption {
	return func(r *Resolver) {
		r.provider = p
	}
}

// WithPreferenceStore sets where the network preference is persisted
func WithPreferenceStore(store PreferenceStore) ResolverOption {
	return func(r *Resolver) {
		r.prefStore = store
	}
}

// WithPageURL sets the URL whose "network" query parameter is consulted
// during network detection, e.g. "https://petworld.example/shop?network=main"
func WithPageURL(pageURL string) ResolverOption {
	return func(r *Resolver) {
		r.pageURL = pageURL
	}
}

// WithSession publishes into an existing session instead of a new one
func WithSession(s *Session) ResolverOption {
	return func(r *Resolver) {
		r.session = s
	}
}

// WithDialer sets a custom dialer for read-only RPC clients
func WithDialer(d Dialer) ResolverOption {
	return func(r *Resolver) {
		r.dialer = d
	}
}

// WithProviderClientFactory sets how a client bound to the external provider is built
func WithProviderClientFactory(f ProviderClientFactory) ResolverOption {
	return func(r *Resolver) {
		r.providerClientFactory = f
	}
}

// WithReadyPolling bounds the wait for a private key wallet to become ready
func WithReadyPolling(maxAttempts int, delay time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.readyPoll = poll.Config{MaxAttempts: maxAttempts, Delay: delay}
	}
}

// WithRPCTimeout sets the timeout of each liveness and network id request
func WithRPCTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.rpcTimeout = timeout
	}
}

// WithProbeTimeout sets the timeout of each provider request made while probing
func WithProbeTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.probeTimeout = timeout
	}
}

// WithRPCURLs overrides the ordered read-only endpoints of a network
func WithRPCURLs(network Network, urls ...string) ResolverOption {
	return func(r *Resolver) {
		if r.rpcURLs == nil {
			r.rpcURLs = map[Network][]string{}
		}
		r.rpcURLs[network] = urls
	}
}

// WithAddressBook sets the loader of the contract address table
func WithAddressBook(loader AddressBookLoader) ResolverOption {
	return func(r *Resolver) {
		r.addressBook = loader
	}
}

// WithContract registers the initializer of a logical contract name
func WithContract(name string, init ContractInitializer) ResolverOption {
	return func(r *Resolver) {
		if r.initializers == nil {
			r.initializers = map[string]ContractInitializer{}
		}
		r.initializers[name] = init
	}
}

// WithAutoContracts makes every successful Init or Refresh initialise the
// named contracts. With no names, all registered contracts are initialised.
func WithAutoContracts(names ...string) ResolverOption {
	return func(r *Resolver) {
		r.autoContracts = true
		r.autoContractNames = names
	}
}

// WithNetworkChangeListener registers a listener at construction time
func WithNetworkChangeListener(l NetworkChangeListener) ResolverOption {
	return func(r *Resolver) {
		r.listeners = append(r.listeners, l)
	}
}

// WithClock overrides time.Now, mainly for result timestamps in tests
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}
