package contract

import (
	"errors"
	"fmt"
)

// ErrEncoding marks argument/arity mismatches against the descriptor. These
// are programming or configuration errors, not user-recoverable ones.
var ErrEncoding = errors.New("call encoding failed")

// Encode packs a function call against the descriptor's ABI. It is pure and
// deterministic: the same function and arguments always yield the same
// payload, so payloads are safe to compare, log, or cache.
func (d *Descriptor) Encode(name string, args ...interface{}) ([]byte, error) {
	if _, ok := d.ABI.Methods[name]; !ok {
		return nil, fmt.Errorf("%w: unknown function %q", ErrEncoding, name)
	}
	data, err := d.ABI.Pack(name, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %v", ErrEncoding, name, err)
	}
	return data, nil
}
