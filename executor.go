package petconnect

import (
	"context"
	"errors"
	"fmt"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tranvictor/petconnect/internal/poll"
)

// execute runs one strategy. Expected failures are returned as an
// unsuccessful Result; the error is reserved for context cancellation and
// malformed collaborator responses.
func (r *Resolver) execute(ctx context.Context, s Strategy) (*Result, error) {
	switch s.Kind {
	case StrategyPrivateKey:
		return r.executePrivateKey(ctx, s.Address)
	case StrategyPrivateKeyInit:
		return r.executePrivateKeyInit(ctx)
	case StrategyExternalWallet:
		return r.executeExternal(ctx, s.Address)
	case StrategyExternalWalletConnect:
		return r.executeExternalConnect(), nil
	case StrategyNoWallet:
		return r.executeNoWallet(ctx)
	}
	return nil, fmt.Errorf("unknown strategy %q", s.Kind)
}

// liveness fetches the latest block number through client
func (r *Resolver) liveness(ctx context.Context, client Client) (uint64, error) {
	tctx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
	defer cancel()
	return client.BlockNumber(tctx)
}

// detectChain reads the chain id of an active connection and records
// whether it could be read
func (r *Resolver) detectChain(ctx context.Context, client Client) {
	tctx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
	defer cancel()
	_, err := client.ChainID(tctx)
	r.updateStatus(func(st *ConnectionStatus) {
		st.NetworkDetected = err == nil
	})
}

func (r *Resolver) executePrivateKey(ctx context.Context, addr *common.Address) (*Result, error) {
	if r.keyWallet == nil {
		return r.failure(StrategyPrivateKey, ErrNoWallet, true,
			"No wallet found. Please set up a wallet to continue."), nil
	}

	if addr == nil {
		a, ok := r.keyWallet.Address()
		if !ok {
			return r.failure(StrategyPrivateKey, ErrWalletNotReady, true,
				"Your wallet is not unlocked. Please unlock it to continue."), nil
		}
		addr = &a
	}

	client := r.keyWallet.Client()
	if client == nil {
		r.updateStatus(func(st *ConnectionStatus) { st.RPCConnected = false })
		res := r.failure(StrategyPrivateKey, ErrNoClient, false,
			"Your wallet has no network connection. Please try again later.")
		res.Address = addr
		return res, nil
	}

	block, err := r.liveness(ctx, client)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.WithFields(logger.Fields{
			"address": addr.Hex(),
			"error":   err,
		}).Warn("Private key wallet liveness check failed")
		r.updateStatus(func(st *ConnectionStatus) { st.RPCConnected = false })
		res := r.failure(StrategyPrivateKey, err, false,
			"Could not reach the network with your wallet. Please try again later.")
		res.Address = addr
		return res, nil
	}

	r.updateStatus(func(st *ConnectionStatus) { st.RPCConnected = true })
	r.detectChain(ctx, client)

	logger.WithFields(logger.Fields{
		"address": addr.Hex(),
		"block":   block,
	}).Debug("Private key wallet connected")

	return &Result{
		Success:      true,
		Strategy:     StrategyPrivateKey,
		Address:      addr,
		RPCConnected: true,
		Message:      fmt.Sprintf("Connected with wallet %s", addr.Hex()),
		Source:       NewPrivateKeySource(*addr, client),
	}, nil
}

func (r *Resolver) executePrivateKeyInit(ctx context.Context) (*Result, error) {
	w := r.keyWallet
	if w == nil {
		return r.failure(StrategyPrivateKeyInit, ErrNoWallet, true,
			"No wallet found. Please set up a wallet to continue."), nil
	}

	// a locked or empty wallet needs a human, never wait for it
	if w.IsLocked() {
		return r.failure(StrategyPrivateKeyInit, ErrWalletLocked, true,
			"Your wallet is locked. Please unlock it to continue."), nil
	}
	if w.KeyCount() == 0 {
		return r.failure(StrategyPrivateKeyInit, ErrWalletNotSetUp, true,
			"No wallet found. Please set up a wallet to continue."), nil
	}

	var addr common.Address
	err := poll.Until(ctx, r.readyPoll, func(ctx context.Context) (bool, error) {
		if w.IsLocked() {
			return false, ErrWalletLocked
		}
		if !w.IsReady() {
			return false, nil
		}
		a, ok := w.Address()
		if !ok {
			return false, nil
		}
		addr = a
		return true, nil
	})

	switch {
	case err == nil:
	case errors.Is(err, poll.ErrTimeout):
		logger.WithFields(logger.Fields{
			"budget": r.readyPoll.Budget().String(),
		}).Info("Private key wallet did not become ready in time")
		return r.failure(StrategyPrivateKeyInit, errors.Join(ErrWalletNotReady, err), false,
			"Your wallet is still initializing. Trying another connection."), nil
	case errors.Is(err, ErrWalletLocked):
		return r.failure(StrategyPrivateKeyInit, ErrWalletLocked, true,
			"Your wallet is locked. Please unlock it to continue."), nil
	default:
		return nil, err
	}

	r.updateStatus(func(st *ConnectionStatus) {
		st.IsPrivateKeyReady = true
		a := addr
		st.PrivateKeyAddress = &a
	})

	return r.executePrivateKey(ctx, &addr)
}

func (r *Resolver) executeExternal(ctx context.Context, addr *common.Address) (*Result, error) {
	if r.provider == nil {
		return r.failure(StrategyExternalWallet, ErrNoWallet, true,
			"No wallet found. Please install a wallet extension to continue."), nil
	}

	if addr == nil {
		pctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
		accounts, err := requestAccounts(pctx, r.provider)
		cancel()
		if err != nil || len(accounts) == 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return r.failure(StrategyExternalWallet, ErrNotConnected, true,
				"Please connect your wallet to continue."), nil
		}
		addr = &accounts[0]
	}

	client, err := r.providerClientFactory(ctx, r.provider)
	if err != nil {
		r.updateStatus(func(st *ConnectionStatus) { st.RPCConnected = false })
		res := r.failure(StrategyExternalWallet, err, false,
			"Could not use your wallet's network connection. Please try again later.")
		res.Address = addr
		return res, nil
	}

	block, err := r.liveness(ctx, client)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.WithFields(logger.Fields{
			"address": addr.Hex(),
			"error":   err,
		}).Warn("External wallet liveness check failed")
		r.updateStatus(func(st *ConnectionStatus) { st.RPCConnected = false })
		res := r.failure(StrategyExternalWallet, err, false,
			"Could not reach the network through your wallet. Please try again later.")
		res.Address = addr
		return res, nil
	}
	r.updateStatus(func(st *ConnectionStatus) { st.RPCConnected = true })

	pctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	chainID, err := requestChainID(pctx, r.provider)
	cancel()
	switch {
	case err == nil:
		r.updateStatus(func(st *ConnectionStatus) { st.NetworkDetected = true })
		r.adoptWalletNetwork(chainID)
	case errors.Is(err, ErrMalformedResponse):
		return nil, err
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		logger.WithFields(logger.Fields{
			"error": err,
		}).Warn("Couldn't read external wallet chain id")
		r.updateStatus(func(st *ConnectionStatus) { st.NetworkDetected = false })
	}

	logger.WithFields(logger.Fields{
		"address":  addr.Hex(),
		"block":    block,
		"chain_id": chainID,
	}).Debug("External wallet connected")

	return &Result{
		Success:      true,
		Strategy:     StrategyExternalWallet,
		Address:      addr,
		RPCConnected: true,
		Message:      fmt.Sprintf("Connected with wallet %s", addr.Hex()),
		Source:       NewExternalSource(*addr, r.provider, client),
	}, nil
}

// executeExternalConnect only signals that the UI has to show a connect prompt
func (r *Resolver) executeExternalConnect() *Result {
	return r.failure(StrategyExternalWalletConnect, ErrNotConnected, true,
		"Please connect your wallet to continue.")
}

// executeNoWallet builds a read-only client. Endpoints are tried in order
// while they fail to answer; an endpoint on the wrong network ends the
// attempt.
func (r *Resolver) executeNoWallet(ctx context.Context) (*Result, error) {
	network := r.network()
	expected := network.ChainID()

	var errs []error
	for _, url := range r.rpcURLsFor(network) {
		client, id, err := r.dialAndIdentify(ctx, url)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.WithFields(logger.Fields{
				"url":   url,
				"error": err,
			}).Debug("Read-only endpoint unavailable, trying next")
			errs = append(errs, err)
			continue
		}

		r.updateStatus(func(st *ConnectionStatus) { st.NetworkDetected = true })

		if id != expected {
			closeClient(client)
			logger.WithFields(logger.Fields{
				"url":        url,
				"network":    network,
				"network_id": id,
				"expected":   expected,
			}).Warn("Read-only endpoint is on the wrong network")
			res := r.failure(StrategyNoWallet,
				fmt.Errorf("%w: %s reports network id %d, %s expects %d", ErrNetworkMismatch, url, id, network, expected),
				true, "Could not connect to the game network. Please install or connect a wallet.")
			return res, nil
		}

		r.updateStatus(func(st *ConnectionStatus) { st.RPCConnected = true })
		return &Result{
			Success:      true,
			Strategy:     StrategyNoWallet,
			ReadOnly:     true,
			RPCConnected: true,
			Message:      "Connected in read-only mode. Connect a wallet to play.",
			Source:       NewReadOnlySource(url, client),
		}, nil
	}

	r.updateStatus(func(st *ConnectionStatus) { st.RPCConnected = false })
	errs = append([]error{ErrNoClient}, errs...)
	return r.failure(StrategyNoWallet, errors.Join(errs...), true,
		"Could not connect to the game network. Please install or connect a wallet."), nil
}

func (r *Resolver) dialAndIdentify(ctx context.Context, url string) (Client, uint64, error) {
	tctx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
	defer cancel()

	client, err := r.dialer(tctx, url)
	if err != nil {
		return nil, 0, err
	}
	id, err := client.NetworkID(tctx)
	if err != nil {
		closeClient(client)
		return nil, 0, fmt.Errorf("couldn't read network id from %s: %w", url, err)
	}
	return client, id.Uint64(), nil
}

func closeClient(c Client) {
	if closer, ok := c.(interface{ Close() }); ok {
		closer.Close()
	}
}
