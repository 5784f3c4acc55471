package petconnect

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
)

// ============================================================
// Mock Implementations
// ============================================================

// mockClient implements Client for testing
type mockClient struct {
	mu sync.Mutex

	// Function hooks - set these to customize behavior
	BlockNumberFn func(ctx context.Context) (uint64, error)
	NetworkIDFn   func(ctx context.Context) (*big.Int, error)
	ChainIDFn     func(ctx context.Context) (*big.Int, error)

	// Call tracking for assertions
	BlockNumberCalls int
	NetworkIDCalls   int
	ChainIDCalls     int
	Closed           int
}

// newMockClient returns a healthy client on chainID
func newMockClient(chainID uint64) *mockClient {
	return &mockClient{
		BlockNumberFn: func(ctx context.Context) (uint64, error) { return 100, nil },
		NetworkIDFn:   func(ctx context.Context) (*big.Int, error) { return new(big.Int).SetUint64(chainID), nil },
		ChainIDFn:     func(ctx context.Context) (*big.Int, error) { return new(big.Int).SetUint64(chainID), nil },
	}
}

func (m *mockClient) BlockNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	m.BlockNumberCalls++
	m.mu.Unlock()
	if m.BlockNumberFn != nil {
		return m.BlockNumberFn(ctx)
	}
	return 1, nil
}

func (m *mockClient) NetworkID(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	m.NetworkIDCalls++
	m.mu.Unlock()
	if m.NetworkIDFn != nil {
		return m.NetworkIDFn(ctx)
	}
	return big.NewInt(int64(ChainIDTest)), nil
}

func (m *mockClient) ChainID(ctx context.Context) (*big.Int, error) {
	m.mu.Lock()
	m.ChainIDCalls++
	m.mu.Unlock()
	if m.ChainIDFn != nil {
		return m.ChainIDFn(ctx)
	}
	return big.NewInt(int64(ChainIDTest)), nil
}

func (m *mockClient) Close() {
	m.mu.Lock()
	m.Closed++
	m.mu.Unlock()
}

// mockKeyWallet implements PrivateKeyWallet for testing
type mockKeyWallet struct {
	mu sync.Mutex

	keyCount int
	ready    bool
	locked   bool
	address  *common.Address
	client   Client

	// IsReadyFn overrides the ready flag, e.g. to become ready after N polls
	IsReadyFn func(call int) bool

	IsReadyCalls int
}

func (m *mockKeyWallet) KeyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keyCount
}

func (m *mockKeyWallet) IsReady() bool {
	m.mu.Lock()
	m.IsReadyCalls++
	call := m.IsReadyCalls
	fn := m.IsReadyFn
	ready := m.ready
	m.mu.Unlock()
	if fn != nil {
		return fn(call)
	}
	return ready
}

func (m *mockKeyWallet) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

func (m *mockKeyWallet) Address() (common.Address, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.address == nil {
		return common.Address{}, false
	}
	return *m.address, true
}

func (m *mockKeyWallet) Client() Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

func (m *mockKeyWallet) setLocked(locked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = locked
}

// mockProvider implements ExternalProvider for testing. Answers go through
// a JSON round trip, like they would over a real transport.
type mockProvider struct {
	mu sync.Mutex

	accounts []common.Address
	chainID  string

	// RequestFn overrides the default answers for a method when it returns handled=true
	RequestFn func(method string, params []interface{}) (answer interface{}, handled bool, err error)

	Calls []string
}

func newMockProvider(chainIDHex string, accounts ...common.Address) *mockProvider {
	return &mockProvider{accounts: accounts, chainID: chainIDHex}
}

func (m *mockProvider) Request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, method)
	fn := m.RequestFn
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	var answer interface{}
	handled := false
	if fn != nil {
		var err error
		answer, handled, err = fn(method, params)
		if err != nil {
			return err
		}
	}

	if !handled {
		m.mu.Lock()
		switch method {
		case "eth_accounts", "eth_requestAccounts":
			answer = append([]common.Address{}, m.accounts...)
		case "eth_chainId":
			answer = m.chainID
		case "wallet_switchEthereumChain", "wallet_addEthereumChain":
			answer = nil
		default:
			m.mu.Unlock()
			return fmt.Errorf("method %s not supported", method)
		}
		m.mu.Unlock()
	}

	if result == nil {
		return nil
	}
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}

func (m *mockProvider) setChainID(hex string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chainID = hex
}

func (m *mockProvider) setAccounts(accounts ...common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = accounts
}

func (m *mockProvider) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// rpcCodeError is a JSON-RPC error with a code, as wallets return them
type rpcCodeError struct {
	code int
	msg  string
}

func (e *rpcCodeError) Error() string  { return e.msg }
func (e *rpcCodeError) ErrorCode() int { return e.code }

// ============================================================
// Test Helpers
// ============================================================

var (
	testKeyAddr      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testExternalAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testContractAddr = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testFixedNow     = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
)

func addrPtr(a common.Address) *common.Address { return &a }

// testSetup holds the collaborators shared by resolver tests
type testSetup struct {
	t *testing.T

	nodeClient     *mockClient // returned by the read-only dialer
	providerClient *mockClient // bound to the external provider
	keyWallet      *mockKeyWallet
	provider       *mockProvider
	prefs          *MemoryPreferenceStore

	dialed []string
	dialMu sync.Mutex
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()
	return &testSetup{
		t:              t,
		nodeClient:     newMockClient(ChainIDTest),
		providerClient: newMockClient(ChainIDTest),
		prefs:          NewMemoryPreferenceStore(),
	}
}

// withReadyKeyWallet installs an unlocked key wallet on chainID
func (s *testSetup) withReadyKeyWallet(chainID uint64) *mockKeyWallet {
	s.keyWallet = &mockKeyWallet{
		keyCount: 1,
		ready:    true,
		address:  addrPtr(testKeyAddr),
		client:   newMockClient(chainID),
	}
	return s.keyWallet
}

// withConnectedProvider installs an external wallet with one authorized account
func (s *testSetup) withConnectedProvider(chainIDHex string) *mockProvider {
	s.provider = newMockProvider(chainIDHex, testExternalAddr)
	return s.provider
}

func (s *testSetup) dialer(ctx context.Context, url string) (Client, error) {
	s.dialMu.Lock()
	s.dialed = append(s.dialed, url)
	s.dialMu.Unlock()
	return s.nodeClient, nil
}

func (s *testSetup) dialedURLs() []string {
	s.dialMu.Lock()
	defer s.dialMu.Unlock()
	return append([]string{}, s.dialed...)
}

// resolver builds a Resolver over the setup with fast polling and fixed endpoints
func (s *testSetup) resolver(opts ...ResolverOption) *Resolver {
	base := []ResolverOption{
		WithPreferenceStore(s.prefs),
		WithDialer(s.dialer),
		WithProviderClientFactory(func(ctx context.Context, p ExternalProvider) (Client, error) {
			return s.providerClient, nil
		}),
		WithReadyPolling(5, time.Millisecond),
		WithRPCTimeout(time.Second),
		WithProbeTimeout(time.Second),
		WithRPCURLs(NetworkMain, "https://main-1.example", "https://main-2.example"),
		WithRPCURLs(NetworkTest, "https://test-1.example", "https://test-2.example"),
		WithClock(func() time.Time { return testFixedNow }),
	}
	if s.keyWallet != nil {
		base = append(base, WithPrivateKeyWallet(s.keyWallet))
	}
	if s.provider != nil {
		base = append(base, WithExternalProvider(s.provider))
	}
	return New(append(base, opts...)...)
}
