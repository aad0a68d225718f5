package orchestrator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CallSpec is one encoded contract call. Immutable once built.
type CallSpec struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// CallBatch is an ordered sequence of calls submitted as one user-approved
// unit. Order is semantic: a token approval must precede the spend that
// consumes it.
type CallBatch []CallSpec

// ResultKind distinguishes the two submission identifier shapes.
type ResultKind int

const (
	// KindSingleTx is a transaction hash from eth_sendTransaction.
	KindSingleTx ResultKind = iota
	// KindBundle is a call-bundle identifier from wallet_sendCalls.
	KindBundle
)

func (k ResultKind) String() string {
	if k == KindBundle {
		return "bundle"
	}
	return "tx"
}

// SubmissionResult identifies an accepted, still-unconfirmed submission.
// Consumers must treat both kinds as pending until the chain settles.
type SubmissionResult struct {
	Kind ResultKind
	ID   string
}

// Receipt is the subset of a settled transaction's record the relay reads.
type Receipt struct {
	Status string `json:"status"`
	Logs   []Log  `json:"logs"`
}

// Log is one emitted event entry.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}
