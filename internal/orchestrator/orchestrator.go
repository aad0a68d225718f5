package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"umanity/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

// sendCallsVersion is the wallet_sendCalls payload version the relay speaks.
const sendCallsVersion = "2.0.0"

// Orchestrator submits encoded call batches through the wallet provider and
// hands back pending submission identifiers. It never resubmits on its own;
// retry is always a fresh user-initiated batch.
type Orchestrator struct {
	provider wallet.Provider
	chainID  uint64
	log      *zap.Logger

	capMu  sync.Mutex
	atomic *bool // memoized wallet_getCapabilities probe
}

func New(provider wallet.Provider, chainID uint64, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{provider: provider, chainID: chainID, log: log}
}

// walletCall is one entry of the wallet_sendCalls payload.
type walletCall struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

type sendCallsParams struct {
	Version        string       `json:"version"`
	ChainID        string       `json:"chainId"`
	From           string       `json:"from"`
	Calls          []walletCall `json:"calls"`
	AtomicRequired bool         `json:"atomicRequired"`
}

type sendTxParams struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data"`
}

// Submit sends the batch as one atomic unit from the user's perspective.
// Single-entry batches fall back to a plain transaction when the wallet
// lacks atomic batching; multi-entry batches require it. The returned
// identifier is pending: nothing has settled yet.
func (o *Orchestrator) Submit(ctx context.Context, batch CallBatch, signer common.Address) (SubmissionResult, error) {
	if len(batch) == 0 {
		return SubmissionResult{}, fmt.Errorf("%w: empty call batch", ErrNetwork)
	}

	atomic := o.supportsAtomicBatch(ctx, signer)
	if !atomic && len(batch) > 1 {
		return SubmissionResult{}, ErrBatchUnsupported
	}

	if !atomic {
		return o.submitSingle(ctx, batch[0], signer)
	}
	return o.submitBatch(ctx, batch, signer)
}

func (o *Orchestrator) submitSingle(ctx context.Context, call CallSpec, signer common.Address) (SubmissionResult, error) {
	params := sendTxParams{
		From:  signer.Hex(),
		To:    call.To.Hex(),
		Value: encodeValue(call.Value),
		Data:  hexutil.Encode(call.Data),
	}

	var txHash string
	if err := o.provider.Request(ctx, &txHash, "eth_sendTransaction", params); err != nil {
		o.log.Warn("single-call submission failed", zap.Error(err))
		return SubmissionResult{}, classifySubmitError(err)
	}

	o.log.Info("submitted transaction",
		zap.String("tx_hash", txHash),
		zap.String("signer", signer.Hex()),
	)
	return SubmissionResult{Kind: KindSingleTx, ID: txHash}, nil
}

func (o *Orchestrator) submitBatch(ctx context.Context, batch CallBatch, signer common.Address) (SubmissionResult, error) {
	calls := make([]walletCall, len(batch))
	for i, c := range batch {
		calls[i] = walletCall{
			To:    c.To.Hex(),
			Data:  hexutil.Encode(c.Data),
			Value: encodeValue(c.Value),
		}
	}

	params := sendCallsParams{
		Version:        sendCallsVersion,
		ChainID:        hexutil.EncodeUint64(o.chainID),
		From:           signer.Hex(),
		Calls:          calls,
		AtomicRequired: len(batch) > 1,
	}

	// Wallets disagree on the result shape: a bare identifier string or
	// an object carrying an id field.
	var raw json.RawMessage
	if err := o.provider.Request(ctx, &raw, "wallet_sendCalls", params); err != nil {
		o.log.Warn("batch submission failed", zap.Int("calls", len(batch)), zap.Error(err))
		return SubmissionResult{}, classifySubmitError(err)
	}

	id, err := decodeBundleID(raw)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	o.log.Info("submitted call bundle",
		zap.String("bundle_id", id),
		zap.Int("calls", len(batch)),
		zap.String("signer", signer.Hex()),
	)
	return SubmissionResult{Kind: KindBundle, ID: id}, nil
}

// supportsAtomicBatch probes wallet_getCapabilities once and remembers the
// answer. Probe failures and unknown shapes count as unsupported.
func (o *Orchestrator) supportsAtomicBatch(ctx context.Context, signer common.Address) bool {
	o.capMu.Lock()
	defer o.capMu.Unlock()
	if o.atomic != nil {
		return *o.atomic
	}

	supported := false
	var caps map[string]struct {
		Atomic struct {
			Status string `json:"status"`
		} `json:"atomic"`
		AtomicBatch struct {
			Supported bool `json:"supported"`
		} `json:"atomicBatch"`
	}
	err := o.provider.Request(ctx, &caps, "wallet_getCapabilities", signer.Hex())
	if err != nil {
		if !wallet.IsUnsupportedMethod(err) {
			// Transient failure: report unsupported for this call but
			// leave the probe unmemoized so a later submit retries it.
			o.log.Warn("capability probe failed", zap.Error(err))
			return false
		}
	} else {
		chainCaps, ok := caps[hexutil.EncodeUint64(o.chainID)]
		if ok && (chainCaps.Atomic.Status == "supported" || chainCaps.Atomic.Status == "ready" || chainCaps.AtomicBatch.Supported) {
			supported = true
		}
	}

	o.atomic = &supported
	return supported
}

func decodeBundleID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("empty wallet_sendCalls result")
	}

	var id string
	if err := json.Unmarshal(raw, &id); err == nil && id != "" {
		return id, nil
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.ID != "" {
		return obj.ID, nil
	}
	return "", fmt.Errorf("unrecognized wallet_sendCalls result %s", string(raw))
}

// encodeValue renders an attached value as the quantity hex wallets expect,
// with "0x0" for empty.
func encodeValue(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0x0"
	}
	return hexutil.EncodeBig(v)
}
