package petconnect

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// private_key
// ============================================================

func TestExecute_PrivateKeyReady(t *testing.T) {
	s := newTestSetup(t)
	w := s.withReadyKeyWallet(ChainIDTest)
	r := s.resolver()

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StrategyPrivateKey, res.Strategy)
	assert.True(t, res.RPCConnected)
	assert.False(t, res.ReadOnly)
	require.NotNil(t, res.Address)
	assert.Equal(t, testKeyAddr, *res.Address)
	assert.Equal(t, NetworkTest, res.Network)

	src, ok := res.Source.(*PrivateKeySource)
	require.True(t, ok)
	assert.Equal(t, testKeyAddr, src.Address)
	assert.Same(t, w.client, r.Session().Client())

	st := r.Status()
	assert.True(t, st.RPCConnected)
	assert.True(t, st.NetworkDetected)
	assert.Empty(t, s.dialedURLs())
}

func TestExecute_PrivateKeyLivenessFailure(t *testing.T) {
	s := newTestSetup(t)
	w := s.withReadyKeyWallet(ChainIDTest)
	w.client.(*mockClient).BlockNumberFn = func(ctx context.Context) (uint64, error) {
		return 0, errors.New("connection refused")
	}
	r := s.resolver()

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StrategyPrivateKey, res.Strategy)
	assert.False(t, res.RequiresUserAction)
	assert.Contains(t, res.Error, "connection refused")
	assert.NotEmpty(t, res.Message)
	assert.False(t, r.Status().RPCConnected)
	assert.Nil(t, r.Session().Client())
}

func TestExecute_PrivateKeyWithoutClient(t *testing.T) {
	s := newTestSetup(t)
	w := s.withReadyKeyWallet(ChainIDTest)
	w.client = nil
	r := s.resolver()

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrNoClient.Error())
}

// ============================================================
// private_key_init
// ============================================================

func TestExecute_PrivateKeyInit_LockedFailsWithoutPolling(t *testing.T) {
	s := newTestSetup(t)
	s.keyWallet = &mockKeyWallet{keyCount: 1, locked: true}
	r := s.resolver(WithReadyPolling(1000, time.Hour))

	start := time.Now()
	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, StrategyPrivateKeyInit, res.Strategy)
	assert.True(t, res.RequiresUserAction)
	assert.Contains(t, res.Error, ErrWalletLocked.Error())
	// only the probe asked
	assert.Equal(t, 1, s.keyWallet.IsReadyCalls)
	// a user action failure is not followed by a fallback
	assert.Empty(t, s.dialedURLs())
}

func TestExecute_PrivateKeyInit_NoKeysFailsWithoutPolling(t *testing.T) {
	s := newTestSetup(t)
	s.keyWallet = &mockKeyWallet{keyCount: 0}
	r := s.resolver(WithReadyPolling(1000, time.Hour))

	res, err := r.executePrivateKeyInit(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.RequiresUserAction)
	assert.Contains(t, res.Error, ErrWalletNotSetUp.Error())
	assert.Equal(t, 0, s.keyWallet.IsReadyCalls)
}

func TestExecute_PrivateKeyInit_BecomesReady(t *testing.T) {
	s := newTestSetup(t)
	s.keyWallet = &mockKeyWallet{
		keyCount:  1,
		address:   addrPtr(testKeyAddr),
		client:    newMockClient(ChainIDTest),
		IsReadyFn: func(call int) bool { return call >= 3 },
	}
	r := s.resolver()

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StrategyPrivateKey, res.Strategy)
	assert.True(t, res.RPCConnected)
	require.NotNil(t, res.Address)
	assert.Equal(t, testKeyAddr, *res.Address)
	assert.True(t, r.Status().IsPrivateKeyReady)
}

func TestExecute_PrivateKeyInit_LockedWhileWaiting(t *testing.T) {
	s := newTestSetup(t)
	w := &mockKeyWallet{keyCount: 1}
	w.IsReadyFn = func(call int) bool {
		if call == 2 {
			w.setLocked(true)
		}
		return false
	}
	s.keyWallet = w
	r := s.resolver(WithReadyPolling(200, 5*time.Millisecond))

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.RequiresUserAction)
	assert.Contains(t, res.Error, ErrWalletLocked.Error())
}

// ============================================================
// external_wallet / external_wallet_connect
// ============================================================

func TestExecute_ExternalWallet(t *testing.T) {
	s := newTestSetup(t)
	p := s.withConnectedProvider("0x61")
	r := s.resolver()

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StrategyExternalWallet, res.Strategy)
	require.NotNil(t, res.Address)
	assert.Equal(t, testExternalAddr, *res.Address)
	assert.Equal(t, NetworkTest, res.Network)

	src, ok := res.Source.(*ExternalSource)
	require.True(t, ok)
	assert.Same(t, p, src.Provider)
	assert.True(t, r.Status().NetworkDetected)
}

func TestExecute_ExternalWallet_AdoptsWalletNetwork(t *testing.T) {
	s := newTestSetup(t)
	s.withConnectedProvider("0x61")
	require.NoError(t, s.prefs.SaveNetwork(context.Background(), NetworkMain))

	var changes [][2]Network
	r := s.resolver(WithNetworkChangeListener(func(old, new Network) {
		changes = append(changes, [2]Network{old, new})
	}))

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, NetworkTest, res.Network)
	assert.Equal(t, [][2]Network{{NetworkMain, NetworkTest}}, changes)

	n, ok := r.Session().Network()
	assert.True(t, ok)
	assert.Equal(t, NetworkTest, n)

	// adoption is session-only until the next detection writes it back
	stored, _, err := s.prefs.LoadNetwork(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NetworkMain, stored)

	_, err = r.Refresh(context.Background())
	require.NoError(t, err)
	stored, _, err = s.prefs.LoadNetwork(context.Background())
	require.NoError(t, err)
	assert.Equal(t, NetworkTest, stored)
	assert.Len(t, changes, 1)
}

func TestExecute_ExternalWallet_UnknownChainKeepsNetwork(t *testing.T) {
	s := newTestSetup(t)
	s.withConnectedProvider("0x1")
	require.NoError(t, s.prefs.SaveNetwork(context.Background(), NetworkMain))

	fired := 0
	r := s.resolver(WithNetworkChangeListener(func(old, new Network) { fired++ }))

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, NetworkMain, res.Network)
	assert.Equal(t, 0, fired)
}

func TestExecute_ExternalWallet_MalformedChainID(t *testing.T) {
	s := newTestSetup(t)
	s.withConnectedProvider("banana")
	r := s.resolver()

	res, err := r.Init(context.Background())

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExecute_ExternalWallet_ClientFactoryFailure(t *testing.T) {
	s := newTestSetup(t)
	s.withConnectedProvider("0x61")
	r := s.resolver(WithProviderClientFactory(func(ctx context.Context, p ExternalProvider) (Client, error) {
		return nil, errors.New("no transport")
	}))

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.RequiresUserAction)
	assert.Contains(t, res.Error, "no transport")
}

func TestExecute_ExternalWalletConnect(t *testing.T) {
	s := newTestSetup(t)
	s.provider = newMockProvider("0x61")
	r := s.resolver()

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StrategyExternalWalletConnect, res.Strategy)
	assert.True(t, res.RequiresUserAction)
	assert.NotEmpty(t, res.Message)
	assert.Equal(t, 0, s.provider.callCount("eth_requestAccounts"))
	assert.Empty(t, s.dialedURLs())
}

func TestProbeStatus_ProviderErrorMeansNotConnected(t *testing.T) {
	s := newTestSetup(t)
	s.provider = newMockProvider("0x61", testExternalAddr)
	s.provider.RequestFn = func(method string, params []interface{}) (interface{}, bool, error) {
		return nil, false, errors.New("provider crashed")
	}
	r := s.resolver()

	st := r.ProbeStatus(context.Background())

	assert.True(t, st.HasExternalWallet)
	assert.False(t, st.IsExternalWalletConnected)
	assert.Nil(t, st.ExternalAccount)
	assert.False(t, st.RPCConnected)
	assert.False(t, st.NetworkDetected)
}

func TestProbeStatus_NoWallets(t *testing.T) {
	r := newTestSetup(t).resolver()

	assert.Equal(t, ConnectionStatus{}, r.ProbeStatus(context.Background()))
}

// ============================================================
// no_wallet
// ============================================================

func TestExecute_NoWallet(t *testing.T) {
	s := newTestSetup(t)
	r := s.resolver()

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StrategyNoWallet, res.Strategy)
	assert.True(t, res.ReadOnly)
	assert.True(t, res.RPCConnected)
	assert.Nil(t, res.Address)
	assert.Equal(t, []string{"https://test-1.example"}, s.dialedURLs())

	src, ok := res.Source.(*ReadOnlySource)
	require.True(t, ok)
	assert.Equal(t, "https://test-1.example", src.URL)
}

func TestExecute_NoWallet_NetworkMismatch(t *testing.T) {
	s := newTestSetup(t)
	s.nodeClient = newMockClient(ChainIDMain)
	r := s.resolver()

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.RequiresUserAction)
	assert.Contains(t, res.Error, ErrNetworkMismatch.Error())
	// a wrong network is not retried on the next endpoint
	assert.Equal(t, []string{"https://test-1.example"}, s.dialedURLs())
	assert.Equal(t, 1, s.nodeClient.Closed)
	assert.Nil(t, r.Session().Client())
}

func TestExecute_NoWallet_WalksEndpointsOnTransportFailure(t *testing.T) {
	s := newTestSetup(t)
	good := newMockClient(ChainIDTest)
	bad := newMockClient(ChainIDTest)
	bad.NetworkIDFn = func(ctx context.Context) (*big.Int, error) { return nil, errors.New("timeout") }

	var dialed []string
	r := s.resolver(WithDialer(func(ctx context.Context, url string) (Client, error) {
		dialed = append(dialed, url)
		if url == "https://test-1.example" {
			return bad, nil
		}
		return good, nil
	}))

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"https://test-1.example", "https://test-2.example"}, dialed)
	assert.Equal(t, 1, bad.Closed)
	assert.Same(t, good, r.Session().Client())
}

func TestExecute_NoWallet_AllEndpointsDown(t *testing.T) {
	s := newTestSetup(t)
	var dialed []string
	r := s.resolver(WithDialer(func(ctx context.Context, url string) (Client, error) {
		dialed = append(dialed, url)
		return nil, errors.New("dial failed")
	}))

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.RequiresUserAction)
	assert.Contains(t, res.Error, ErrNoClient.Error())
	assert.Len(t, dialed, 2)
	assert.False(t, r.Status().RPCConnected)
}

func TestExecute_UsesResolvedNetworkEndpoints(t *testing.T) {
	s := newTestSetup(t)
	s.nodeClient = newMockClient(ChainIDMain)
	r := s.resolver(WithPageURL("https://petworld.example/?network=main"))

	res, err := r.Init(context.Background())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, NetworkMain, res.Network)
	assert.Equal(t, []string{"https://main-1.example"}, s.dialedURLs())
}

func TestExecute_UnknownStrategy(t *testing.T) {
	r := newTestSetup(t).resolver()

	_, err := r.execute(context.Background(), Strategy{Kind: "carrier_pigeon"})

	assert.Error(t, err)
}
