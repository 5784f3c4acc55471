package petconnect

import (
	"github.com/ethereum/go-ethereum/common"
)

// Source is the wallet a verified client is backed by. It is one of
// *PrivateKeySource, *ExternalSource or *ReadOnlySource.
type Source interface {
	// Client returns the verified client of the connection
	Client() Client

	// Kind returns the strategy the source was produced by
	Kind() StrategyKind

	isSource()
}

// PrivateKeySource is a connection signed by the application's own key
type PrivateKeySource struct {
	Address common.Address
	client  Client
}

// ExternalSource is a connection through an external wallet provider
type ExternalSource struct {
	Address  common.Address
	Provider ExternalProvider
	client   Client
}

// ReadOnlySource is a connection to a public RPC endpoint with no signer
type ReadOnlySource struct {
	URL    string
	client Client
}

func NewPrivateKeySource(addr common.Address, client Client) *PrivateKeySource {
	return &PrivateKeySource{Address: addr, client: client}
}

func NewExternalSource(addr common.Address, provider ExternalProvider, client Client) *ExternalSource {
	return &ExternalSource{Address: addr, Provider: provider, client: client}
}

func NewReadOnlySource(url string, client Client) *ReadOnlySource {
	return &ReadOnlySource{URL: url, client: client}
}

func (s *PrivateKeySource) Client() Client     { return s.client }
func (s *PrivateKeySource) Kind() StrategyKind { return StrategyPrivateKey }
func (*PrivateKeySource) isSource()            {}

func (s *ExternalSource) Client() Client     { return s.client }
func (s *ExternalSource) Kind() StrategyKind { return StrategyExternalWallet }
func (*ExternalSource) isSource()            {}

func (s *ReadOnlySource) Client() Client     { return s.client }
func (s *ReadOnlySource) Kind() StrategyKind { return StrategyNoWallet }
func (*ReadOnlySource) isSource()            {}

// sourceAddress returns the signing address of s, nil for read-only sources
func sourceAddress(s Source) *common.Address {
	switch src := s.(type) {
	case *PrivateKeySource:
		addr := src.Address
		return &addr
	case *ExternalSource:
		addr := src.Address
		return &addr
	case *ReadOnlySource:
		return nil
	}
	return nil
}
