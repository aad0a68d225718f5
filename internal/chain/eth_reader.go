package chain

import (
	"context"
	"fmt"
	"math/big"

	"umanity/internal/contract"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthReader reads the donation contract and the funding token over a fixed
// RPC endpoint. It is read-only: all writes go through the wallet provider.
type EthReader struct {
	client   *ethclient.Client
	donation *bind.BoundContract
	token    *bind.BoundContract
	tokenAdr common.Address
	donAdr   common.Address
}

type EthReaderConfig struct {
	RPCURL          string
	DonationAddress string
	TokenAddress    string
}

// NewEthReader dials the RPC endpoint and binds both contracts.
func NewEthReader(ctx context.Context, cfg EthReaderConfig) (*EthReader, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.DonationAddress == "" {
		return nil, fmt.Errorf("donation contract address is required")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	donAdr := common.HexToAddress(cfg.DonationAddress)
	donDesc, err := contract.NewDescriptor(contract.DonationABI, donAdr)
	if err != nil {
		return nil, err
	}

	tokenAdr := common.HexToAddress(cfg.TokenAddress)
	tokenDesc, err := contract.NewDescriptor(contract.ERC20ABI, tokenAdr)
	if err != nil {
		return nil, err
	}

	return &EthReader{
		client:   cli,
		donation: bind.NewBoundContract(donAdr, donDesc.ABI, cli, cli, cli),
		token:    bind.NewBoundContract(tokenAdr, tokenDesc.ABI, cli, cli, cli),
		tokenAdr: tokenAdr,
		donAdr:   donAdr,
	}, nil
}

func (r *EthReader) DonorStats(ctx context.Context, donor common.Address) (DonorStats, error) {
	var out []interface{}
	if err := r.donation.Call(&bind.CallOpts{Context: ctx}, &out, "getDonorStats", donor); err != nil {
		return DonorStats{}, fmt.Errorf("getDonorStats: %w", err)
	}
	if len(out) != 3 {
		return DonorStats{}, fmt.Errorf("getDonorStats: unexpected return arity %d", len(out))
	}
	return DonorStats{
		TotalDonated:  out[0].(*big.Int),
		DonationCount: out[1].(*big.Int),
		Rank:          out[2].(*big.Int),
	}, nil
}

func (r *EthReader) PlatformStats(ctx context.Context) (PlatformStats, error) {
	var out []interface{}
	if err := r.donation.Call(&bind.CallOpts{Context: ctx}, &out, "getPlatformStats"); err != nil {
		return PlatformStats{}, fmt.Errorf("getPlatformStats: %w", err)
	}
	if len(out) != 3 {
		return PlatformStats{}, fmt.Errorf("getPlatformStats: unexpected return arity %d", len(out))
	}
	return PlatformStats{
		TotalDonated:   out[0].(*big.Int),
		DonationCount:  out[1].(*big.Int),
		RecipientCount: out[2].(*big.Int),
	}, nil
}

func (r *EthReader) Pools(ctx context.Context) ([]Pool, error) {
	var out []interface{}
	if err := r.donation.Call(&bind.CallOpts{Context: ctx}, &out, "getAllPools"); err != nil {
		return nil, fmt.Errorf("getAllPools: %w", err)
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("getAllPools: unexpected return arity %d", len(out))
	}

	names := out[0].([]string)
	totals := out[1].([]*big.Int)
	available := out[2].([]*big.Int)
	if len(totals) != len(names) || len(available) != len(names) {
		return nil, fmt.Errorf("getAllPools: mismatched slice lengths")
	}

	pools := make([]Pool, len(names))
	for i := range names {
		pools[i] = Pool{Name: names[i], Total: totals[i], Available: available[i]}
	}
	return pools, nil
}

func (r *EthReader) Recipients(ctx context.Context) ([]common.Address, error) {
	var out []interface{}
	if err := r.donation.Call(&bind.CallOpts{Context: ctx}, &out, "getAllRecipients"); err != nil {
		return nil, fmt.Errorf("getAllRecipients: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getAllRecipients: unexpected return arity %d", len(out))
	}
	return out[0].([]common.Address), nil
}

func (r *EthReader) TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	var out []interface{}
	if err := r.token.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", owner); err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("balanceOf: unexpected return arity %d", len(out))
	}
	return out[0].(*big.Int), nil
}

func (r *EthReader) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	bal, err := r.client.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("balance at: %w", err)
	}
	return bal, nil
}

func (r *EthReader) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	var out []interface{}
	if err := r.token.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", owner, spender); err != nil {
		return nil, fmt.Errorf("allowance: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("allowance: unexpected return arity %d", len(out))
	}
	return out[0].(*big.Int), nil
}

// Ping reports RPC liveness for the health endpoint.
func (r *EthReader) Ping(ctx context.Context) error {
	_, err := r.client.BlockNumber(ctx)
	return err
}
