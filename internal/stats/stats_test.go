package stats

import (
	"context"
	"math/big"
	"testing"

	"umanity/internal/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		amount   int64
		decimals int
		places   int
		want     string
	}{
		{1_500_000, 6, 2, "1.50"},
		{0, 6, 2, "0.00"},
		{12_345_678, 6, 2, "12.35"},
		{1_000_000, 6, 2, "1.00"},
		{1_000_000_000_000_000, 18, 4, "0.0010"},
		{999_999, 6, 2, "1.00"},
	}
	for _, tc := range cases {
		got := FormatUnits(big.NewInt(tc.amount), tc.decimals, tc.places)
		assert.Equal(t, tc.want, got, "amount %d", tc.amount)
	}

	assert.Equal(t, "0.00", FormatUnits(nil, 6, 2))
}

func TestFormatRank(t *testing.T) {
	assert.Equal(t, "--", FormatRank(0))
	assert.Equal(t, "#1", FormatRank(1))
	assert.Equal(t, "#42", FormatRank(42))
}

func TestRefreshWithDonor(t *testing.T) {
	donor := common.HexToAddress("0x1111111111111111111111111111111111111111")
	reader := chain.NewFakeReader()
	reader.Donors[donor] = chain.DonorStats{
		TotalDonated:  big.NewInt(3_000_000),
		DonationCount: big.NewInt(3),
		Rank:          big.NewInt(7),
	}
	reader.Platform = chain.PlatformStats{
		TotalDonated:   big.NewInt(1_500_000),
		DonationCount:  big.NewInt(2),
		RecipientCount: big.NewInt(5),
	}

	recon := NewReconciler(reader, 6, nil)
	snap, err := recon.Refresh(context.Background(), &donor)
	require.NoError(t, err)

	assert.Equal(t, "1.50", snap.Platform.TotalDonated)
	assert.Equal(t, uint64(5), snap.Platform.RecipientCount)
	assert.Equal(t, "3.00", snap.Donor.TotalDonated)
	assert.Equal(t, uint64(3), snap.Donor.DonationCount)
	assert.Equal(t, "#7", snap.Donor.Rank)
}

func TestRefreshWithoutDonorZeroesSnapshot(t *testing.T) {
	recon := NewReconciler(chain.NewFakeReader(), 6, nil)
	snap, err := recon.Refresh(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "0.00", snap.Donor.TotalDonated)
	assert.Equal(t, uint64(0), snap.Donor.DonationCount)
	assert.Equal(t, "--", snap.Donor.Rank)
	assert.NotEqual(t, "0.00", snap.Platform.TotalDonated)
}

func TestUnrankedDonorRendersPlaceholder(t *testing.T) {
	donor := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recon := NewReconciler(chain.NewFakeReader(), 6, nil)

	snap, err := recon.Refresh(context.Background(), &donor)
	require.NoError(t, err)
	assert.Equal(t, "--", snap.Donor.Rank, `rank 0 renders "--", never "#0"`)
}

func TestPools(t *testing.T) {
	recon := NewReconciler(chain.NewFakeReader(), 6, nil)
	pools, err := recon.Pools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 3)
	assert.Equal(t, "Education", pools[0].Name)
	assert.Equal(t, "4.00", pools[0].TotalDonated)
	assert.Equal(t, "1.50", pools[0].Available)
}
