package wallet

import (
	"context"
	"errors"
	"strings"
)

// Provider is the JSON-RPC request surface of the user's wallet. Every
// method may block until the user acts on a prompt, and may come back with
// an EIP-1193 rejection.
type Provider interface {
	Request(ctx context.Context, result interface{}, method string, params ...interface{}) error
}

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
)

var (
	// ErrUserRejected means the signer declined the prompt. Recoverable;
	// never retried automatically.
	ErrUserRejected = errors.New("user rejected the request")

	// ErrNoAccounts means authorization succeeded but the wallet exposed
	// no addresses.
	ErrNoAccounts = errors.New("wallet returned no accounts")
)

// codedError matches the rpc.Error shape go-ethereum's client returns.
type codedError interface {
	error
	ErrorCode() int
}

// IsUserRejection reports whether err is the signer declining.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	var coded codedError
	if errors.As(err, &coded) && coded.ErrorCode() == CodeUserRejected {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "rejected")
}

// IsUnsupportedMethod reports whether the wallet does not implement the
// requested method, which is how capability probing fails on older wallets.
func IsUnsupportedMethod(err error) bool {
	if err == nil {
		return false
	}
	var coded codedError
	if errors.As(err, &coded) {
		switch coded.ErrorCode() {
		case CodeUnsupportedMethod, -32601:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "method not found") || strings.Contains(msg, "not supported")
}
