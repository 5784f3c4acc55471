// deps.go defines minimal interfaces for the collaborators the resolver consumes.
// None of them is implemented here; keywallet, provider, addressbook and
// persistence/redis provide concrete versions and tests provide mocks.
package petconnect

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Client is the verified handle published to the rest of the application.
// *ethclient.Client satisfies it.
type Client interface {
	// BlockNumber returns the latest block number, used as liveness check
	BlockNumber(ctx context.Context) (uint64, error)

	// NetworkID returns the net_version of the node
	NetworkID(ctx context.Context) (*big.Int, error)

	// ChainID returns the eth_chainId of the node
	ChainID(ctx context.Context) (*big.Int, error)
}

// PrivateKeyWallet is a locally stored, password-encrypted signing key
// managed by the application itself
type PrivateKeyWallet interface {
	// KeyCount returns how many keys are stored
	KeyCount() int

	// IsReady reports whether a key is unlocked and its client is built
	IsReady() bool

	// IsLocked reports whether the user explicitly locked the wallet
	IsLocked() bool

	// Address returns the address of the unlocked key
	Address() (common.Address, bool)

	// Client returns the pre-built client bound to the unlocked key, or nil
	Client() Client
}

// ExternalProvider is a wallet that manages its own keys and exposes an
// authorization-gated request API (eth_accounts, eth_chainId,
// wallet_switchEthereumChain, wallet_addEthereumChain, ...).
// The call shape mirrors rpc.Client.CallContext.
type ExternalProvider interface {
	Request(ctx context.Context, result interface{}, method string, params ...interface{}) error
}

// PreferenceStore persists the user's network choice across runs
type PreferenceStore interface {
	// LoadNetwork returns the stored network, ok is false when nothing is stored
	LoadNetwork(ctx context.Context) (network Network, ok bool, err error)

	// SaveNetwork stores the network choice
	SaveNetwork(ctx context.Context, network Network) error
}

// AddressBookLoader performs the explicit load-or-fetch of the contract
// address table
type AddressBookLoader interface {
	LoadAddressBook(ctx context.Context) (AddressBook, error)
}

// Contract is a bound contract published on the session
type Contract interface {
	Address() common.Address
}

// AddressLookup resolves a logical contract name on the active network
type AddressLookup func(name string) (common.Address, error)

// ContractInitializer builds one contract binding on top of a verified client
type ContractInitializer func(ctx context.Context, client Client, lookup AddressLookup) (Contract, error)

// Dialer creates a read-only client for an RPC URL.
// This allows injecting mock clients for testing.
type Dialer func(ctx context.Context, url string) (Client, error)

// ProviderClientFactory creates a client that sends its requests through an
// external wallet provider.
// This allows injecting mock clients for testing.
type ProviderClientFactory func(ctx context.Context, provider ExternalProvider) (Client, error)
