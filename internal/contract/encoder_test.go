package contract

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDeterministic(t *testing.T) {
	desc, err := NewDescriptor(DonationABI, common.HexToAddress("0x1"))
	require.NoError(t, err)

	first, err := desc.Encode("donateToPool", uint8(1), big.NewInt(1_000_000))
	require.NoError(t, err)
	second, err := desc.Encode("donateToPool", uint8(1), big.NewInt(1_000_000))
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second), "identical inputs must encode identically")
}

func TestEncodeSelectorPrefix(t *testing.T) {
	erc20, err := NewDescriptor(ERC20ABI, common.HexToAddress("0x2"))
	require.NoError(t, err)

	data, err := erc20.Encode("approve", common.HexToAddress("0x3"), big.NewInt(1_000_000))
	require.NoError(t, err)

	// approve(address,uint256) selector per EIP-20.
	assert.Equal(t, []byte{0x09, 0x5e, 0xa7, 0xb3}, data[:4])
	assert.Len(t, data, 4+32+32)
}

func TestEncodeNoArguments(t *testing.T) {
	desc, err := NewDescriptor(DonationABI, common.HexToAddress("0x1"))
	require.NoError(t, err)

	data, err := desc.Encode("donateRandom")
	require.NoError(t, err)
	assert.Len(t, data, 4)
}

func TestEncodeRejectsUnknownFunction(t *testing.T) {
	desc, err := NewDescriptor(DonationABI, common.HexToAddress("0x1"))
	require.NoError(t, err)

	_, err = desc.Encode("withdrawEverything")
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestEncodeRejectsArityMismatch(t *testing.T) {
	desc, err := NewDescriptor(DonationABI, common.HexToAddress("0x1"))
	require.NoError(t, err)

	_, err = desc.Encode("donateToPool", uint8(1))
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestEncodeRejectsTypeMismatch(t *testing.T) {
	desc, err := NewDescriptor(DonationABI, common.HexToAddress("0x1"))
	require.NoError(t, err)

	_, err = desc.Encode("donateToPool", "education", big.NewInt(1))
	assert.ErrorIs(t, err, ErrEncoding)
}
