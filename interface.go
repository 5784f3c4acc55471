package petconnect

import (
	"context"
)

// Connector defines the connection operations page code relies on.
// This interface allows for easy mocking in consumers and provides a stable API contract.
type Connector interface {
	// Pipeline
	Init(ctx context.Context) (*Result, error)
	Refresh(ctx context.Context) (*Result, error)

	// Pipeline steps, usable on their own
	DetectNetwork(ctx context.Context) Network
	ProbeStatus(ctx context.Context) ConnectionStatus

	// User driven actions
	Connect(ctx context.Context) (*Result, error)
	SwitchNetwork(ctx context.Context, n Network) (*Result, error)

	// Contracts
	InitContracts(ctx context.Context, names ...string) (*ContractsResult, error)

	// Published state
	Status() ConnectionStatus
	Session() *Session
	OnNetworkChange(l NetworkChangeListener)
}

// Compile-time check that Resolver implements Connector
var _ Connector = (*Resolver)(nil)
