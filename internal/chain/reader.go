package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DonorStats mirrors getDonorStats. Rank 0 means unranked.
type DonorStats struct {
	TotalDonated  *big.Int
	DonationCount *big.Int
	Rank          *big.Int
}

// PlatformStats mirrors getPlatformStats.
type PlatformStats struct {
	TotalDonated   *big.Int
	DonationCount  *big.Int
	RecipientCount *big.Int
}

// Pool is one named cause bucket inside the donation contract.
type Pool struct {
	Name      string
	Total     *big.Int
	Available *big.Int
}

// Reader abstracts read-only contract state. Everything it returns is a
// disposable snapshot; the chain stays the source of truth and callers
// refresh by re-querying, never by patching locally.
type Reader interface {
	DonorStats(ctx context.Context, donor common.Address) (DonorStats, error)
	PlatformStats(ctx context.Context) (PlatformStats, error)
	Pools(ctx context.Context) ([]Pool, error)
	Recipients(ctx context.Context) ([]common.Address, error)
	TokenBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
}

// HealthChecker is implemented by readers backed by a live RPC endpoint.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
