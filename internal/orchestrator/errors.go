package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"umanity/internal/wallet"
)

var (
	// ErrInsufficientFunds blocks a submission whose signer cannot cover
	// it, either from the pre-flight check or from the provider.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNetwork covers transport and endpoint failures. Recoverable by a
	// fresh user-initiated attempt; never retried automatically.
	ErrNetwork = errors.New("network error")

	// ErrBatchUnsupported is returned when a multi-call batch targets a
	// wallet without atomic batching. Splitting the batch would break the
	// approve-before-spend ordering guarantee.
	ErrBatchUnsupported = errors.New("wallet does not support atomic call batches")

	// ErrReceiptUnavailable means the settlement sample found nothing.
	// Best-effort enrichment only; callers must not surface it.
	ErrReceiptUnavailable = errors.New("receipt unavailable")
)

// classifySubmitError maps a raw provider failure onto the relay taxonomy.
func classifySubmitError(err error) error {
	if err == nil {
		return nil
	}
	if wallet.IsUserRejection(err) {
		return fmt.Errorf("%w: %v", wallet.ErrUserRejected, err)
	}
	if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
