package petconnect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// AddressBook maps network -> logical contract name -> deployed address
type AddressBook map[Network]map[string]common.Address

// Lookup returns the address of a contract on a network
func (b AddressBook) Lookup(n Network, name string) (common.Address, error) {
	addr, ok := b[n][name]
	if !ok || addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no %s address for %s", ErrUnknownContract, n, name)
	}
	return addr, nil
}

// BoundContract is the default binding built from an ABI
type BoundContract struct {
	Name string
	ABI  abi.ABI
	*bind.BoundContract

	address common.Address
}

func (c *BoundContract) Address() common.Address {
	return c.address
}

// NewABIInitializer returns an initializer binding the contract found
// under name in the address book with the given ABI. The client has to be
// a full contract backend such as *ethclient.Client.
func NewABIInitializer(name, abiJSON string) (ContractInitializer, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("couldn't parse %s abi: %w", name, err)
	}

	return func(ctx context.Context, client Client, lookup AddressLookup) (Contract, error) {
		addr, err := lookup(name)
		if err != nil {
			return nil, err
		}
		backend, ok := client.(bind.ContractBackend)
		if !ok {
			return nil, fmt.Errorf("client %T can't back contract bindings", client)
		}
		return &BoundContract{
			Name:          name,
			ABI:           parsed,
			BoundContract: bind.NewBoundContract(addr, parsed, backend, backend, backend),
			address:       addr,
		}, nil
	}, nil
}

// ContractNames returns the sorted names of all registered initializers
func (r *Resolver) ContractNames() []string {
	names := make([]string, 0, len(r.initializers))
	for name := range r.initializers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitContracts binds the named contracts (all registered ones when no
// name is given) on the published connection and publishes them on the
// session. Individual failures are collected in the result; the error is
// returned when nothing can be bound at all: no connection, no address
// book, or a network mismatch that cannot be fixed.
func (r *Resolver) InitContracts(ctx context.Context, names ...string) (*ContractsResult, error) {
	src := r.session.Source()
	if src == nil {
		return nil, ErrNoClient
	}
	if r.addressBook == nil {
		return nil, ErrNoAddressBook
	}
	network := r.network()

	book, err := r.addressBook.LoadAddressBook(ctx)
	if err != nil {
		return nil, fmt.Errorf("couldn't load contract addresses: %w", err)
	}

	if err := r.verifyNetwork(ctx, src, network); err != nil {
		return nil, err
	}

	if len(names) == 0 {
		names = r.ContractNames()
	}

	lookup := func(name string) (common.Address, error) {
		return book.Lookup(network, name)
	}

	result := &ContractsResult{
		Network: network,
		Loaded:  []string{},
	}
	for _, name := range names {
		initFn, ok := r.initializers[name]
		if !ok {
			result.Failed = append(result.Failed, ContractFailure{
				Name:  name,
				Error: fmt.Errorf("%w: no initializer for %s", ErrUnknownContract, name).Error(),
			})
			continue
		}

		c, err := initFn(ctx, src.Client(), lookup)
		if err != nil {
			logger.WithFields(logger.Fields{
				"contract": name,
				"network":  network,
				"error":    err,
			}).Warn("Couldn't initialize contract")
			result.Failed = append(result.Failed, ContractFailure{Name: name, Error: err.Error()})
			continue
		}

		r.session.publishContract(name, c)
		result.Loaded = append(result.Loaded, name)
	}

	logger.WithFields(logger.Fields{
		"network": network,
		"loaded":  result.Loaded,
		"failed":  len(result.Failed),
	}).Info("Contracts initialized")

	return result, nil
}

// verifyNetwork checks the live network id against the resolved network.
// Only an external wallet can be asked to switch; the other sources have
// no user-controlled way to change network.
func (r *Resolver) verifyNetwork(ctx context.Context, src Source, network Network) error {
	id, err := r.networkID(ctx, src.Client())
	if err != nil {
		return fmt.Errorf("couldn't verify network: %w", err)
	}
	if id == network.ChainID() {
		return nil
	}

	mismatch := fmt.Errorf("%w: connected to network id %d, %s expects %d", ErrNetworkMismatch, id, network, network.ChainID())

	switch s := src.(type) {
	case *ExternalSource:
		logger.WithFields(logger.Fields{
			"network_id": id,
			"network":    network,
		}).Info("Asking external wallet to switch network")

		if err := switchChain(ctx, s.Provider, network); err != nil {
			return errors.Join(mismatch, err)
		}
		id, err = r.networkID(ctx, s.Client())
		if err != nil {
			return fmt.Errorf("couldn't verify network after switch: %w", err)
		}
		if id != network.ChainID() {
			return fmt.Errorf("%w: wallet still on network id %d after switch", ErrNetworkMismatch, id)
		}
		return nil
	case *PrivateKeySource, *ReadOnlySource:
		return mismatch
	}
	return mismatch
}

func (r *Resolver) networkID(ctx context.Context, client Client) (uint64, error) {
	tctx, cancel := context.WithTimeout(ctx, r.rpcTimeout)
	defer cancel()
	id, err := client.NetworkID(tctx)
	if err != nil {
		return 0, err
	}
	return id.Uint64(), nil
}
