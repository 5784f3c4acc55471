// Package provider connects to an external wallet that exposes the
// EIP-1193 request methods over JSON-RPC, such as desktop wallets serving
// http://127.0.0.1:1248 or a browser bridge.
package provider

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/tranvictor/petconnect"
)

// DefaultURL is where Frame-style desktop wallets listen
const DefaultURL = "http://127.0.0.1:1248"

// Provider forwards requests to the wallet's JSON-RPC endpoint
type Provider struct {
	url    string
	client *rpc.Client
}

// Dial connects to the wallet endpoint at url (http, ws or ipc)
func Dial(ctx context.Context, url string) (*Provider, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to wallet at %s: %w", url, err)
	}
	return &Provider{url: url, client: c}, nil
}

// New wraps an existing rpc client
func New(client *rpc.Client) *Provider {
	return &Provider{client: client}
}

// Request sends one request to the wallet and decodes the answer into result.
// Wallet errors keep their JSON-RPC code (see rpc.Error).
func (p *Provider) Request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	return p.client.CallContext(ctx, result, method, params...)
}

// RPCClient returns the underlying client, letting the resolver bind an
// ethclient to the same connection
func (p *Provider) RPCClient() *rpc.Client {
	return p.client
}

func (p *Provider) URL() string {
	return p.url
}

func (p *Provider) Close() {
	p.client.Close()
}

// Compile-time check that Provider implements petconnect.ExternalProvider
var _ petconnect.ExternalProvider = (*Provider)(nil)
