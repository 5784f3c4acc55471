// Package fakechain serves a minimal node and wallet over an in-process
// go-ethereum rpc.Server. It answers the calls the resolver makes
// (eth_blockNumber, eth_chainId, net_version, eth_accounts,
// eth_requestAccounts, wallet_switchEthereumChain, wallet_addEthereumChain)
// and is meant for tests.
package fakechain

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// CodeUnrecognizedChain is what wallets answer when asked to switch to a
// chain they do not know
const CodeUnrecognizedChain = 4902

// CodeUserRejected is what wallets answer when the user dismisses a prompt
const CodeUserRejected = 4001

// Error is a JSON-RPC error carrying a code
type Error struct {
	Code int
	Msg  string
}

func (e *Error) Error() string  { return e.Msg }
func (e *Error) ErrorCode() int { return e.Code }

// Chain is the state behind the fake node/wallet
type Chain struct {
	mu sync.Mutex

	chainID   uint64
	networkID uint64
	block     uint64

	accounts        []common.Address
	pendingAccounts []common.Address
	rejectConnect   bool
	knownChains     map[uint64]bool

	blockErr   error
	chainIDRaw string

	calls []string
}

// New creates a chain whose chain id and network id are both chainID
func New(chainID uint64) *Chain {
	return &Chain{
		chainID:     chainID,
		networkID:   chainID,
		block:       1,
		knownChains: map[uint64]bool{chainID: true},
	}
}

// SetAccounts sets the accounts already authorized for the caller
func (c *Chain) SetAccounts(accounts ...common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts = accounts
}

// SetPendingAccounts sets the accounts eth_requestAccounts authorizes
func (c *Chain) SetPendingAccounts(accounts ...common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingAccounts = accounts
}

// RejectConnect makes eth_requestAccounts fail with CodeUserRejected
func (c *Chain) RejectConnect(reject bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectConnect = reject
}

// SetChainID moves the chain, network id included
func (c *Chain) SetChainID(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chainID = id
	c.networkID = id
	c.knownChains[id] = true
}

// SetNetworkID overrides net_version only
func (c *Chain) SetNetworkID(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.networkID = id
}

// SetRawChainID makes eth_chainId answer raw verbatim
func (c *Chain) SetRawChainID(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chainIDRaw = raw
}

// SetBlockNumberError makes eth_blockNumber fail
func (c *Chain) SetBlockNumberError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockErr = err
}

// ForgetChain makes wallet_switchEthereumChain to id fail with CodeUnrecognizedChain
func (c *Chain) ForgetChain(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.knownChains, id)
}

// Calls returns the methods called so far, in order
func (c *Chain) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many times method was called
func (c *Chain) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.calls {
		if m == method {
			n++
		}
	}
	return n
}

func (c *Chain) record(method string) {
	c.calls = append(c.calls, method)
}

// Server returns an rpc.Server exposing the chain
func (c *Chain) Server() *rpc.Server {
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", &ethAPI{c}); err != nil {
		panic(err)
	}
	if err := srv.RegisterName("net", &netAPI{c}); err != nil {
		panic(err)
	}
	if err := srv.RegisterName("wallet", &walletAPI{c}); err != nil {
		panic(err)
	}
	return srv
}

// Dial returns an in-process rpc client connected to the chain
func (c *Chain) Dial() *rpc.Client {
	return rpc.DialInProc(c.Server())
}

// EthClient returns an ethclient connected to the chain
func (c *Chain) EthClient() *ethclient.Client {
	return ethclient.NewClient(c.Dial())
}

type ethAPI struct{ c *Chain }

func (api *ethAPI) BlockNumber() (hexutil.Uint64, error) {
	c := api.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("eth_blockNumber")
	if c.blockErr != nil {
		return 0, c.blockErr
	}
	c.block++
	return hexutil.Uint64(c.block), nil
}

func (api *ethAPI) ChainId() (string, error) {
	c := api.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("eth_chainId")
	if c.chainIDRaw != "" {
		return c.chainIDRaw, nil
	}
	return hexutil.EncodeUint64(c.chainID), nil
}

func (api *ethAPI) Accounts() []common.Address {
	c := api.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("eth_accounts")
	out := make([]common.Address, len(c.accounts))
	copy(out, c.accounts)
	return out
}

func (api *ethAPI) RequestAccounts() ([]common.Address, error) {
	c := api.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("eth_requestAccounts")
	if c.rejectConnect {
		return nil, &Error{Code: CodeUserRejected, Msg: "User rejected the request."}
	}
	if len(c.pendingAccounts) > 0 {
		c.accounts = c.pendingAccounts
		c.pendingAccounts = nil
	}
	out := make([]common.Address, len(c.accounts))
	copy(out, c.accounts)
	return out, nil
}

type netAPI struct{ c *Chain }

func (api *netAPI) Version() string {
	c := api.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("net_version")
	return strconv.FormatUint(c.networkID, 10)
}

type walletAPI struct{ c *Chain }

type SwitchParams struct {
	ChainID string `json:"chainId"`
}

type AddParams struct {
	ChainID   string   `json:"chainId"`
	ChainName string   `json:"chainName"`
	RPCURLs   []string `json:"rpcUrls"`
}

func (api *walletAPI) SwitchEthereumChain(p SwitchParams) error {
	c := api.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("wallet_switchEthereumChain")
	id, err := hexutil.DecodeUint64(p.ChainID)
	if err != nil {
		return &Error{Code: -32602, Msg: fmt.Sprintf("invalid chainId %q", p.ChainID)}
	}
	if !c.knownChains[id] {
		return &Error{Code: CodeUnrecognizedChain, Msg: fmt.Sprintf("Unrecognized chain ID %q", p.ChainID)}
	}
	c.chainID = id
	c.networkID = id
	return nil
}

func (api *walletAPI) AddEthereumChain(p AddParams) error {
	c := api.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("wallet_addEthereumChain")
	id, err := hexutil.DecodeUint64(p.ChainID)
	if err != nil {
		return &Error{Code: -32602, Msg: fmt.Sprintf("invalid chainId %q", p.ChainID)}
	}
	// wallets switch to a chain right after adding it
	c.knownChains[id] = true
	c.chainID = id
	c.networkID = id
	return nil
}
