package orchestrator

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"umanity/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainID = 84532 // 0x14a34

var (
	signer   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenAdr = common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	poolAdr  = common.HexToAddress("0x00000000000000000000000000000000000000AA")
)

func TestSubmitBatchPreservesOrderAndValues(t *testing.T) {
	fp := wallet.NewFakeProvider(signer.Hex())
	orch := New(fp, chainID, nil)

	batch := CallBatch{
		{To: tokenAdr, Data: []byte{0x09, 0x5e, 0xa7, 0xb3}},
		{To: poolAdr, Data: []byte{0xaa, 0xbb}},
	}

	res, err := orch.Submit(context.Background(), batch, signer)
	require.NoError(t, err)
	assert.Equal(t, KindBundle, res.Kind)
	assert.NotEmpty(t, res.ID)

	var sent sendCallsParams
	for _, r := range fp.Requests {
		if r.Method == "wallet_sendCalls" {
			require.Len(t, r.Params, 1)
			sent = r.Params[0].(sendCallsParams)
		}
	}

	require.Len(t, sent.Calls, 2)
	assert.Equal(t, tokenAdr.Hex(), sent.Calls[0].To, "approval first")
	assert.Equal(t, poolAdr.Hex(), sent.Calls[1].To, "spend second")
	assert.Equal(t, "0x0", sent.Calls[0].Value)
	assert.Equal(t, "0x0", sent.Calls[1].Value)
	assert.Equal(t, "2.0.0", sent.Version)
	assert.Equal(t, "0x14a34", sent.ChainID)
	assert.Equal(t, signer.Hex(), sent.From)
	assert.True(t, sent.AtomicRequired)
}

func TestSubmitSingleWithoutAtomicSupport(t *testing.T) {
	fp := wallet.NewFakeProvider(signer.Hex())
	fp.AtomicBatch = false
	orch := New(fp, chainID, nil)

	value := big.NewInt(1_000_000_000_000_000) // 0.001 ETH
	batch := CallBatch{{To: poolAdr, Data: []byte{0x01}, Value: value}}

	res, err := orch.Submit(context.Background(), batch, signer)
	require.NoError(t, err)
	assert.Equal(t, KindSingleTx, res.Kind)

	assert.Equal(t, 1, fp.RequestCount("eth_sendTransaction"))
	assert.Equal(t, 0, fp.RequestCount("wallet_sendCalls"))

	var sent sendTxParams
	for _, r := range fp.Requests {
		if r.Method == "eth_sendTransaction" {
			sent = r.Params[0].(sendTxParams)
		}
	}
	assert.Equal(t, "0x38d7ea4c68000", sent.Value)
	assert.Equal(t, poolAdr.Hex(), sent.To)
	assert.Equal(t, signer.Hex(), sent.From)
}

func TestSubmitMultiCallWithoutAtomicSupport(t *testing.T) {
	fp := wallet.NewFakeProvider(signer.Hex())
	fp.AtomicBatch = false
	orch := New(fp, chainID, nil)

	batch := CallBatch{
		{To: tokenAdr, Data: []byte{0x01}},
		{To: poolAdr, Data: []byte{0x02}},
	}

	_, err := orch.Submit(context.Background(), batch, signer)
	assert.ErrorIs(t, err, ErrBatchUnsupported)
	assert.Equal(t, 0, fp.RequestCount("eth_sendTransaction"))
	assert.Equal(t, 0, fp.RequestCount("wallet_sendCalls"))
}

func TestSubmitEmptyBatch(t *testing.T) {
	orch := New(wallet.NewFakeProvider(signer.Hex()), chainID, nil)
	_, err := orch.Submit(context.Background(), nil, signer)
	assert.Error(t, err)
}

func TestSubmitUserRejection(t *testing.T) {
	fp := wallet.NewFakeProvider(signer.Hex())
	orch := New(fp, chainID, nil)
	// Prime the capability probe so the rejection hits the send itself.
	orch.supportsAtomicBatch(context.Background(), signer)
	fp.RejectNext = true

	_, err := orch.Submit(context.Background(), CallBatch{{To: poolAdr}}, signer)
	assert.ErrorIs(t, err, wallet.ErrUserRejected)
}

func TestCapabilityProbeMemoized(t *testing.T) {
	fp := wallet.NewFakeProvider(signer.Hex())
	orch := New(fp, chainID, nil)

	for i := 0; i < 3; i++ {
		_, err := orch.Submit(context.Background(), CallBatch{{To: poolAdr}}, signer)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fp.RequestCount("wallet_getCapabilities"))
}

func TestDecodeBundleID(t *testing.T) {
	id, err := decodeBundleID(json.RawMessage(`"0xabc"`))
	require.NoError(t, err)
	assert.Equal(t, "0xabc", id)

	id, err = decodeBundleID(json.RawMessage(`{"id":"0xdef"}`))
	require.NoError(t, err)
	assert.Equal(t, "0xdef", id)

	_, err = decodeBundleID(json.RawMessage(`42`))
	assert.Error(t, err)

	_, err = decodeBundleID(nil)
	assert.Error(t, err)
}

func TestEncodeValue(t *testing.T) {
	assert.Equal(t, "0x0", encodeValue(nil))
	assert.Equal(t, "0x0", encodeValue(big.NewInt(0)))
	assert.Equal(t, "0xf4240", encodeValue(big.NewInt(1_000_000)))
}
