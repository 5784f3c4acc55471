package petconnect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/KyberNetwork/logger"

	"github.com/tranvictor/petconnect/internal/poll"
)

// Resolver picks one connection among
//  1. the application's own private key wallet (ready, or still unlocking)
//  2. an external wallet provider (connected, or waiting for the user)
//  3. a read-only public RPC endpoint
//
// verifies it and publishes it on its Session. Init and Refresh run the
// same pipeline: network detection, wallet probing, strategy selection and
// strategy execution, in that order.
type Resolver struct {
	// serializes the pipeline (Init, Refresh, Connect, SwitchNetwork)
	runMu sync.Mutex

	// collaborators, any of them may be nil
	keyWallet PrivateKeyWallet
	provider  ExternalProvider
	prefStore PreferenceStore

	pageURL string
	rpcURLs map[Network][]string

	session *Session

	// factories (injectable for testing)
	dialer                Dialer
	providerClientFactory ProviderClientFactory

	readyPoll    poll.Config
	rpcTimeout   time.Duration
	probeTimeout time.Duration

	// contract initialisation
	addressBook       AddressBookLoader
	initializers      map[string]ContractInitializer
	autoContracts     bool
	autoContractNames []string

	listenersMu sync.RWMutex
	listeners   []NetworkChangeListener

	statusMu sync.RWMutex
	status   ConnectionStatus

	now func() time.Time
}

// New creates a Resolver with optional configuration
func New(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		readyPoll:    poll.DefaultConfig(),
		rpcTimeout:   DefaultRPCTimeout,
		probeTimeout: DefaultProbeTimeout,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.session == nil {
		r.session = NewSession()
	}
	if r.dialer == nil {
		r.dialer = DefaultDialer
	}
	if r.providerClientFactory == nil {
		r.providerClientFactory = DefaultProviderClientFactory
	}
	if r.now == nil {
		r.now = time.Now
	}

	return r
}

// Session returns the session the resolver publishes into
func (r *Resolver) Session() *Session {
	return r.session
}

// Status returns the latest connection status
func (r *Resolver) Status() ConnectionStatus {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.status
}

func (r *Resolver) setStatus(st ConnectionStatus) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	r.status = st
}

func (r *Resolver) updateStatus(fn func(st *ConnectionStatus)) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	fn(&r.status)
}

// Init resolves and publishes a connection. The returned error is non-nil
// only for context cancellation or a collaborator answering in an
// unexpected shape; every expected failure is described by the Result.
func (r *Resolver) Init(ctx context.Context) (*Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	logger.WithFields(logger.Fields{
		"has_key_wallet": r.keyWallet != nil,
		"has_provider":   r.provider != nil,
	}).Debug("Initializing wallet connection")

	return r.run(ctx)
}

// Refresh re-runs the Init pipeline, e.g. after the user reconnected a wallet
func (r *Resolver) Refresh(ctx context.Context) (*Result, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	logger.WithFields(logger.Fields{
		"status": r.Status(),
	}).Debug("Refreshing wallet connection")

	return r.run(ctx)
}

func (r *Resolver) run(ctx context.Context) (*Result, error) {
	network := r.DetectNetwork(ctx)

	status := r.ProbeStatus(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.setStatus(status)

	strategy := SelectStrategy(status)
	logger.WithFields(logger.Fields{
		"strategy": strategy.Kind,
		"priority": strategy.Priority,
		"network":  network,
	}).Info("Selected connection strategy")

	result, err := r.execute(ctx, strategy)
	if err != nil {
		return nil, err
	}

	if strategy.Kind == StrategyPrivateKeyInit && !result.Success && !result.RequiresUserAction {
		result, err = r.fallback(ctx, result)
		if err != nil {
			return nil, err
		}
	}

	if result.Success {
		r.publishSource(result.Source)

		if r.autoContracts {
			if err := r.attachContracts(ctx, result); err != nil {
				return nil, err
			}
		}
	}

	r.finish(result)

	logger.WithFields(logger.Fields{
		"strategy":             result.Strategy,
		"success":              result.Success,
		"network":              result.Network,
		"read_only":            result.ReadOnly,
		"requires_user_action": result.RequiresUserAction,
		"error":                result.Error,
	}).Info("Wallet connection resolved")

	return result, nil
}

// publishSource replaces the session source. A replaced read-only client
// was dialed by the resolver and is closed here; wallet-bound clients
// belong to their wallet.
func (r *Resolver) publishSource(src Source) {
	old, ok := r.session.swapSource(src).(*ReadOnlySource)
	if !ok || old.Client() == nil || old.Client() == src.Client() {
		return
	}
	logger.WithFields(logger.Fields{
		"rpc_url": old.URL,
	}).Debug("Closing replaced read-only client")
	closeClient(old.Client())
}

// fallback runs after a private key wallet did not become ready in time:
// a connected external wallet first, a read-only endpoint otherwise
func (r *Resolver) fallback(ctx context.Context, failed *Result) (*Result, error) {
	logger.WithFields(logger.Fields{
		"error": failed.Error,
	}).Info("Private key wallet not ready, falling back")

	status := r.ProbeStatus(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.setStatus(status)

	if status.IsExternalWalletConnected {
		result, err := r.executeExternal(ctx, status.ExternalAccount)
		if err != nil {
			return nil, err
		}
		if result.Success {
			return result, nil
		}
		logger.WithFields(logger.Fields{
			"error": result.Error,
		}).Info("External wallet fallback failed, trying read-only connection")
	}

	return r.executeNoWallet(ctx)
}

func (r *Resolver) attachContracts(ctx context.Context, result *Result) error {
	contracts, err := r.InitContracts(ctx, r.autoContractNames...)
	if err == nil {
		result.Contracts = contracts
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrMalformedResponse) {
		return err
	}

	result.Success = false
	result.RequiresUserAction = errors.Is(err, ErrNetworkMismatch)
	result.Error = err.Error()
	result.Message = "Connected, but the game contracts could not be loaded. Please check your network and try again."
	return nil
}

func (r *Resolver) finish(result *Result) {
	if network, ok := r.session.Network(); ok {
		result.Network = network
	}
	if result.Source != nil && result.Address == nil {
		result.Address = sourceAddress(result.Source)
	}
	result.Status = r.Status()
	result.Timestamp = r.now()
}

// Connect shows the external wallet's connection prompt and refreshes.
// It is the action the UI takes when a result requires user action and the
// strategy was external_wallet_connect.
func (r *Resolver) Connect(ctx context.Context) (*Result, error) {
	if r.provider == nil {
		res := r.failure(StrategyExternalWalletConnect, ErrNoWallet, true,
			"No wallet found. Please install a wallet extension to continue.")
		r.finish(res)
		return res, nil
	}

	accounts, err := connectAccounts(ctx, r.provider)
	if err != nil || len(accounts) == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil {
			err = ErrNotConnected
		}
		res := r.failure(StrategyExternalWalletConnect, err, true,
			"Wallet connection was not approved. Please connect your wallet to continue.")
		r.finish(res)
		return res, nil
	}

	logger.WithFields(logger.Fields{
		"account": accounts[0].Hex(),
	}).Info("External wallet connected")

	return r.Refresh(ctx)
}

// SwitchNetwork changes the resolved network, persists it and refreshes.
// An external wallet is asked to follow.
func (r *Resolver) SwitchNetwork(ctx context.Context, n Network) (*Result, error) {
	if !n.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, n)
	}

	r.setNetwork(n)
	r.savePreference(ctx, n)

	if src, ok := r.session.Source().(*ExternalSource); ok {
		if err := switchChain(ctx, src.Provider, n); err != nil {
			logger.WithFields(logger.Fields{
				"network": n,
				"error":   err,
			}).Warn("Wallet did not switch network")
		}
	}

	return r.Refresh(ctx)
}

func (r *Resolver) failure(kind StrategyKind, err error, userAction bool, message string) *Result {
	res := &Result{
		Success:            false,
		Strategy:           kind,
		RequiresUserAction: userAction,
		Message:            message,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
