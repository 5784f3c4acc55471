// adapters.go provides the default go-ethereum backed factories and the
// typed helpers over the untyped ExternalProvider request API.
package petconnect

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// rpcBacked is implemented by providers that talk JSON-RPC through a
// go-ethereum rpc.Client (see the provider package)
type rpcBacked interface {
	RPCClient() *rpc.Client
}

// DefaultDialer dials an HTTP or websocket endpoint with ethclient
func DefaultDialer(ctx context.Context, url string) (Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("couldn't dial %s: %w", url, err)
	}
	return c, nil
}

// DefaultProviderClientFactory binds an ethclient to the provider's own
// rpc.Client. Providers that are not backed by an rpc.Client need a custom
// factory via WithProviderClientFactory.
func DefaultProviderClientFactory(ctx context.Context, p ExternalProvider) (Client, error) {
	if backed, ok := p.(rpcBacked); ok && backed.RPCClient() != nil {
		return ethclient.NewClient(backed.RPCClient()), nil
	}
	return nil, fmt.Errorf("%w: provider %T has no rpc client", ErrNoClient, p)
}

// requestAccounts lists the authorized accounts without prompting the user
func requestAccounts(ctx context.Context, p ExternalProvider) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.Request(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

// connectAccounts asks the wallet to show its connection prompt
func connectAccounts(ctx context.Context, p ExternalProvider) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.Request(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

// requestChainID reads the chain the wallet is currently on
func requestChainID(ctx context.Context, p ExternalProvider) (uint64, error) {
	var raw string
	if err := p.Request(ctx, &raw, "eth_chainId"); err != nil {
		return 0, err
	}
	id, err := hexutil.DecodeUint64(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: eth_chainId returned %q: %v", ErrMalformedResponse, raw, err)
	}
	return id, nil
}

type switchChainParams struct {
	ChainID string `json:"chainId"`
}

type nativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint64 `json:"decimals"`
}

type addChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    nativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls"`
}

func newAddChainParams(n Network) addChainParams {
	chain := n.Chain()
	name := "BNB Smart Chain"
	if n == NetworkTest {
		name = "BNB Smart Chain Testnet"
	}
	return addChainParams{
		ChainID:   n.ChainIDHex(),
		ChainName: name,
		NativeCurrency: nativeCurrency{
			Name:     chain.GetNativeTokenSymbol(),
			Symbol:   chain.GetNativeTokenSymbol(),
			Decimals: uint64(chain.GetNativeTokenDecimal()),
		},
		RPCURLs:           n.RPCURLs(),
		BlockExplorerURLs: []string{n.ExplorerURL()},
	}
}

// switchChain asks the wallet to move to n, adding the chain first when
// the wallet does not know it
func switchChain(ctx context.Context, p ExternalProvider, n Network) error {
	err := p.Request(ctx, nil, "wallet_switchEthereumChain", switchChainParams{ChainID: n.ChainIDHex()})
	if err == nil {
		return nil
	}
	if !isUnrecognizedChain(err) {
		return fmt.Errorf("couldn't switch wallet to %s: %w", n, err)
	}
	if err := p.Request(ctx, nil, "wallet_addEthereumChain", newAddChainParams(n)); err != nil {
		return fmt.Errorf("couldn't add %s to wallet: %w", n, err)
	}
	return nil
}

func isUnrecognizedChain(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode() == errCodeUnrecognizedChain
	}
	return false
}
