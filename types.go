package petconnect

import (
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tranvictor/jarvis/networks"
)

// Constants for connection resolution
const (
	DefaultRPCTimeout   = 10 * time.Second
	DefaultProbeTimeout = 3 * time.Second

	// Network mismatch watcher
	DefaultWatchInterval    = 5 * time.Second
	DefaultMinRepromptDelay = 60 * time.Second

	ChainIDMain uint64 = 56
	ChainIDTest uint64 = 97

	// errCodeUnrecognizedChain is returned by wallets on wallet_switchEthereumChain
	// when the chain has never been added to them
	errCodeUnrecognizedChain = 4902
)

// Network identifies which Petworld deployment the front-end talks to
type Network string

const (
	NetworkMain Network = "MAIN"
	NetworkTest Network = "TEST"

	DefaultNetwork = NetworkTest
)

var mainRPCURLs = []string{
	"https://bsc-dataseed.binance.org/",
	"https://bsc-dataseed1.defibit.io/",
	"https://bsc-dataseed1.ninicoin.io/",
}

var testRPCURLs = []string{
	"https://data-seed-prebsc-1-s1.binance.org:8545/",
	"https://data-seed-prebsc-2-s1.binance.org:8545/",
	"https://data-seed-prebsc-1-s2.binance.org:8545/",
}

// ParseNetwork accepts the spellings found in URLs, storage and CLI flags
func ParseNetwork(s string) (Network, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "main", "mainnet", "bsc", "56":
		return NetworkMain, true
	case "test", "testnet", "bsc-test", "bsc-testnet", "97":
		return NetworkTest, true
	}
	return "", false
}

// NetworkForChainID maps a chain id to the deployment running on it
func NetworkForChainID(chainID uint64) (Network, bool) {
	switch chainID {
	case ChainIDMain:
		return NetworkMain, true
	case ChainIDTest:
		return NetworkTest, true
	}
	return "", false
}

func (n Network) Valid() bool {
	return n == NetworkMain || n == NetworkTest
}

func (n Network) String() string {
	return string(n)
}

// ChainID returns the chain id the network's contracts are deployed on
func (n Network) ChainID() uint64 {
	if n == NetworkMain {
		return ChainIDMain
	}
	return ChainIDTest
}

// ChainIDHex is the 0x-prefixed quantity wallets use in requests
func (n Network) ChainIDHex() string {
	if n == NetworkMain {
		return "0x38"
	}
	return "0x61"
}

// Chain returns the jarvis network description of n
func (n Network) Chain() networks.Network {
	if n == NetworkMain {
		return networks.BSCMainnet
	}
	return networks.BSCTestnet
}

// RPCURLs returns the ordered fallback endpoints for n. A node configured
// through the jarvis node variable (BSC_MAINNET_NODE, BSC_TESTNET_NODE)
// comes first.
func (n Network) RPCURLs() []string {
	defaults := testRPCURLs
	if n == NetworkMain {
		defaults = mainRPCURLs
	}

	urls := make([]string, 0, len(defaults)+1)
	if custom := strings.TrimSpace(os.Getenv(n.Chain().GetNodeVariableName())); custom != "" {
		urls = append(urls, custom)
	}
	return append(urls, defaults...)
}

// ExplorerURL is used when asking a wallet to add the chain
func (n Network) ExplorerURL() string {
	if n == NetworkMain {
		return "https://bscscan.com"
	}
	return "https://testnet.bscscan.com"
}

// ConnectionStatus is the snapshot of what the resolver knows about the
// available wallets and the active connection
type ConnectionStatus struct {
	HasPrivateKey             bool `json:"hasPrivateKey"`
	IsPrivateKeyReady         bool `json:"isPrivateKeyReady"`
	HasExternalWallet         bool `json:"hasExternalWallet"`
	IsExternalWalletConnected bool `json:"isExternalWalletConnected"`
	RPCConnected              bool `json:"rpcConnected"`
	NetworkDetected           bool `json:"networkDetected"`

	// Addresses seen while probing
	PrivateKeyAddress *common.Address `json:"privateKeyAddress,omitempty"`
	ExternalAccount   *common.Address `json:"externalAccount,omitempty"`
}

// StrategyKind names one of the fixed connection approaches
type StrategyKind string

const (
	StrategyPrivateKey            StrategyKind = "private_key"
	StrategyPrivateKeyInit        StrategyKind = "private_key_init"
	StrategyExternalWallet        StrategyKind = "external_wallet"
	StrategyExternalWalletConnect StrategyKind = "external_wallet_connect"
	StrategyNoWallet              StrategyKind = "no_wallet"
)

// Strategy is the approach selected for a ConnectionStatus
type Strategy struct {
	Kind        StrategyKind    `json:"type"`
	Priority    int             `json:"priority"`
	Description string          `json:"description"`
	RequiresRPC bool            `json:"requiresRPC"`
	Address     *common.Address `json:"address,omitempty"`
}

// ContractFailure records a contract that could not be bound
type ContractFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// ContractsResult is the outcome of a contract initialisation batch
type ContractsResult struct {
	Network Network           `json:"network"`
	Loaded  []string          `json:"loaded"`
	Failed  []ContractFailure `json:"failed,omitempty"`
}

// Result is what Init and Refresh report to the UI layer.
// Message is always suitable for direct display.
type Result struct {
	Success            bool             `json:"success"`
	Strategy           StrategyKind     `json:"strategy"`
	Network            Network          `json:"network"`
	Address            *common.Address  `json:"address"`
	ReadOnly           bool             `json:"readOnly"`
	RPCConnected       bool             `json:"rpcConnected"`
	RequiresUserAction bool             `json:"requiresUserAction"`
	Message            string           `json:"message"`
	Error              string           `json:"error,omitempty"`
	Status             ConnectionStatus `json:"status"`
	Contracts          *ContractsResult `json:"contracts,omitempty"`
	Timestamp          time.Time        `json:"timestamp"`

	// Source is the verified connection behind a successful result
	Source Source `json:"-"`
}
