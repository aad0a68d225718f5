package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"umanity/internal/wallet"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ConfirmMode selects how settlement is observed.
type ConfirmMode string

const (
	// ConfirmFixedDelay waits a constant duration after submission and
	// samples the receipt once. This mirrors the original product's
	// pacing and is the default.
	ConfirmFixedDelay ConfirmMode = "fixed"
	// ConfirmPoll retries the receipt read with exponential backoff until
	// it appears or the budget runs out.
	ConfirmPoll ConfirmMode = "poll"
)

// ConfirmPolicy configures the tracker. Zero fields fall back to the
// defaults observed in production: 3s for single transactions, 5s for
// bundles.
type ConfirmPolicy struct {
	Mode        ConfirmMode
	SingleDelay time.Duration
	BatchDelay  time.Duration

	// Poll mode only.
	PollInitialInterval time.Duration
	PollMaxElapsed      time.Duration
}

func (p ConfirmPolicy) withDefaults() ConfirmPolicy {
	if p.Mode == "" {
		p.Mode = ConfirmFixedDelay
	}
	if p.SingleDelay <= 0 {
		p.SingleDelay = 3 * time.Second
	}
	if p.BatchDelay <= 0 {
		p.BatchDelay = 5 * time.Second
	}
	if p.PollInitialInterval <= 0 {
		p.PollInitialInterval = time.Second
	}
	if p.PollMaxElapsed <= 0 {
		p.PollMaxElapsed = 45 * time.Second
	}
	return p
}

// Tracker observes eventual settlement of accepted submissions.
type Tracker struct {
	provider wallet.Provider
	policy   ConfirmPolicy
	log      *zap.Logger
}

func NewTracker(provider wallet.Provider, policy ConfirmPolicy, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{provider: provider, policy: policy.withDefaults(), log: log}
}

// Await blocks until the policy says the submission should have settled,
// then returns whatever receipt exists. A missing receipt is reported as
// ErrReceiptUnavailable, which callers treat as silent degradation: success
// was already reported at submission time.
func (t *Tracker) Await(ctx context.Context, res SubmissionResult) (*Receipt, error) {
	switch t.policy.Mode {
	case ConfirmPoll:
		return t.awaitPolling(ctx, res)
	default:
		return t.awaitFixedDelay(ctx, res)
	}
}

// awaitFixedDelay is fire, wait, sample once. It does not poll until the
// chain confirms; it assumes settlement within the window and reads
// whatever state exists afterwards.
func (t *Tracker) awaitFixedDelay(ctx context.Context, res SubmissionResult) (*Receipt, error) {
	delay := t.policy.SingleDelay
	if res.Kind == KindBundle {
		delay = t.policy.BatchDelay
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	receipt, err := t.fetch(ctx, res)
	if err != nil {
		t.log.Debug("settlement sample came up empty",
			zap.String("kind", res.Kind.String()),
			zap.String("id", res.ID),
			zap.Error(err),
		)
		return nil, ErrReceiptUnavailable
	}
	return receipt, nil
}

func (t *Tracker) awaitPolling(ctx context.Context, res SubmissionResult) (*Receipt, error) {
	var receipt *Receipt

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = t.policy.PollInitialInterval
	expBackoff.MaxElapsedTime = t.policy.PollMaxElapsed

	operation := func() error {
		r, err := t.fetch(ctx, res)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrReceiptUnavailable
	}
	return receipt, nil
}

// fetch reads the receipt for a submission; bundle receipts come from
// wallet_getCallsStatus, plain transactions from eth_getTransactionReceipt.
func (t *Tracker) fetch(ctx context.Context, res SubmissionResult) (*Receipt, error) {
	if res.Kind == KindBundle {
		return t.fetchBundle(ctx, res.ID)
	}
	return t.fetchSingle(ctx, res.ID)
}

func (t *Tracker) fetchSingle(ctx context.Context, txHash string) (*Receipt, error) {
	var receipt *Receipt
	if err := t.provider.Request(ctx, &receipt, "eth_getTransactionReceipt", txHash); err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("transaction %s not yet settled", txHash)
	}
	return receipt, nil
}

func (t *Tracker) fetchBundle(ctx context.Context, bundleID string) (*Receipt, error) {
	var status struct {
		Status   json.RawMessage `json:"status"`
		Receipts []Receipt       `json:"receipts"`
	}
	if err := t.provider.Request(ctx, &status, "wallet_getCallsStatus", bundleID); err != nil {
		return nil, err
	}
	if len(status.Receipts) == 0 {
		return nil, fmt.Errorf("bundle %s not yet settled", bundleID)
	}

	// Flatten logs across the bundle so event extraction sees every call.
	merged := Receipt{Status: "0x1"}
	for _, r := range status.Receipts {
		merged.Logs = append(merged.Logs, r.Logs...)
	}
	return &merged, nil
}
