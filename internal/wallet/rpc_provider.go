package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCProvider speaks the wallet protocol over a JSON-RPC endpoint, the way
// a hosted wallet service exposes it.
type RPCProvider struct {
	client *rpc.Client
}

// DialRPC connects to the wallet provider endpoint.
func DialRPC(ctx context.Context, url string) (*RPCProvider, error) {
	if url == "" {
		return nil, fmt.Errorf("wallet rpc url is required")
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial wallet rpc: %w", err)
	}
	return &RPCProvider{client: client}, nil
}

func (p *RPCProvider) Request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	return p.client.CallContext(ctx, result, method, params...)
}

func (p *RPCProvider) Close() {
	p.client.Close()
}
