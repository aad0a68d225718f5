package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
)

// FakeProvider emulates a wallet endpoint for local development and tests.
// Identifiers are derived by hashing the request payload so behavior stays
// deterministic across runs.
type FakeProvider struct {
	// Accounts returned by eth_accounts / eth_requestAccounts.
	Accounts []string
	// AtomicBatch controls the advertised wallet_sendCalls capability.
	AtomicBatch bool
	// RejectNext makes the next interactive request fail like a declined
	// prompt.
	RejectNext bool

	mu        sync.Mutex
	Requests  []FakeRequest
	submitted map[string]bool
}

// FakeRequest records one provider call for assertions.
type FakeRequest struct {
	Method string
	Params []interface{}
}

type fakeRPCError struct {
	code int
	msg  string
}

func (e *fakeRPCError) Error() string  { return e.msg }
func (e *fakeRPCError) ErrorCode() int { return e.code }

func NewFakeProvider(accounts ...string) *FakeProvider {
	return &FakeProvider{Accounts: accounts, AtomicBatch: true}
}

func (f *FakeProvider) Request(_ context.Context, result interface{}, method string, params ...interface{}) error {
	f.mu.Lock()
	f.Requests = append(f.Requests, FakeRequest{Method: method, Params: params})
	reject := f.RejectNext
	if reject {
		f.RejectNext = false
	}
	f.mu.Unlock()

	switch method {
	case "eth_accounts", "eth_requestAccounts":
		if reject {
			return &fakeRPCError{code: CodeUserRejected, msg: "user rejected the request"}
		}
		return assign(result, f.Accounts)

	case "eth_sendTransaction":
		if reject {
			return &fakeRPCError{code: CodeUserRejected, msg: "user rejected the request"}
		}
		return assign(result, f.recordSubmission(fakeID("tx", params)))

	case "wallet_sendCalls":
		if reject {
			return &fakeRPCError{code: CodeUserRejected, msg: "user rejected the request"}
		}
		if !f.AtomicBatch {
			return &fakeRPCError{code: CodeUnsupportedMethod, msg: "method not supported"}
		}
		return assign(result, map[string]string{"id": f.recordSubmission(fakeID("bundle", params))})

	case "wallet_getCapabilities":
		status := "unsupported"
		if f.AtomicBatch {
			status = "supported"
		}
		caps := map[string]map[string]map[string]string{
			"0x14a34": {"atomic": {"status": status}},
		}
		return assign(result, caps)

	case "eth_getTransactionReceipt":
		if !f.knownSubmission(params) {
			return assign(result, nil)
		}
		return assign(result, map[string]interface{}{"status": "0x1", "logs": []interface{}{}})

	case "wallet_getCallsStatus":
		if !f.knownSubmission(params) {
			return assign(result, map[string]interface{}{"status": 100})
		}
		return assign(result, map[string]interface{}{
			"status": 200,
			"receipts": []interface{}{
				map[string]interface{}{"status": "0x1", "logs": []interface{}{}},
			},
		})

	default:
		return &fakeRPCError{code: CodeUnsupportedMethod, msg: fmt.Sprintf("method %s not found", method)}
	}
}

// recordSubmission marks an issued identifier as settled so later receipt
// lookups see a confirmed state.
func (f *FakeProvider) recordSubmission(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitted == nil {
		f.submitted = make(map[string]bool)
	}
	f.submitted[id] = true
	return id
}

func (f *FakeProvider) knownSubmission(params []interface{}) bool {
	if len(params) == 0 {
		return false
	}
	id, ok := params[0].(string)
	if !ok {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitted[id]
}
func (f *FakeProvider) RequestCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.Requests {
		if r.Method == method {
			n++
		}
	}
	return n
}

func fakeID(kind string, params []interface{}) string {
	blob, _ := json.Marshal(params)
	sum := sha256.Sum256(append([]byte(kind), blob...))
	return "0x" + hex.EncodeToString(sum[:])
}

// assign round-trips value through JSON into the caller's result pointer,
// matching how a real RPC client decodes responses.
func assign(result, value interface{}) error {
	if result == nil {
		return nil
	}
	blob, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(blob, result)
}
