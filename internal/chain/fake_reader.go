package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FakeReader serves canned contract state for local development and tests.
type FakeReader struct {
	Donors    map[common.Address]DonorStats
	Platform  PlatformStats
	PoolState []Pool
	Balances  map[common.Address]*big.Int
	Native    map[common.Address]*big.Int
	// Allowances is keyed by owner; the spender is implied.
	Allowances map[common.Address]*big.Int
}

// NewFakeReader seeds a small, plausible platform snapshot.
func NewFakeReader() *FakeReader {
	return &FakeReader{
		Donors: map[common.Address]DonorStats{},
		Platform: PlatformStats{
			TotalDonated:   big.NewInt(12_500_000),
			DonationCount:  big.NewInt(12),
			RecipientCount: big.NewInt(4),
		},
		PoolState: []Pool{
			{Name: "Education", Total: big.NewInt(4_000_000), Available: big.NewInt(1_500_000)},
			{Name: "Healthcare", Total: big.NewInt(6_000_000), Available: big.NewInt(2_250_000)},
			{Name: "Emergency", Total: big.NewInt(2_500_000), Available: big.NewInt(500_000)},
		},
		Balances:   map[common.Address]*big.Int{},
		Native:     map[common.Address]*big.Int{},
		Allowances: map[common.Address]*big.Int{},
	}
}

func (f *FakeReader) DonorStats(_ context.Context, donor common.Address) (DonorStats, error) {
	if s, ok := f.Donors[donor]; ok {
		return s, nil
	}
	return DonorStats{
		TotalDonated:  big.NewInt(0),
		DonationCount: big.NewInt(0),
		Rank:          big.NewInt(0),
	}, nil
}

func (f *FakeReader) PlatformStats(context.Context) (PlatformStats, error) {
	return f.Platform, nil
}

func (f *FakeReader) Pools(context.Context) ([]Pool, error) {
	return f.PoolState, nil
}

func (f *FakeReader) Recipients(context.Context) ([]common.Address, error) {
	return []common.Address{
		common.HexToAddress("0x40ceeEdE9fA9ee09e594aFFb63CFc4994aF5B14e"),
	}, nil
}

func (f *FakeReader) TokenBalance(_ context.Context, owner common.Address) (*big.Int, error) {
	if b, ok := f.Balances[owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *FakeReader) NativeBalance(_ context.Context, owner common.Address) (*big.Int, error) {
	if b, ok := f.Native[owner]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (f *FakeReader) Allowance(_ context.Context, owner, _ common.Address) (*big.Int, error) {
	if a, ok := f.Allowances[owner]; ok {
		return new(big.Int).Set(a), nil
	}
	return big.NewInt(0), nil
}
