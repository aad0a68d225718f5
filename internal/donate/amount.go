package donate

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"umanity/internal/contract"
)

// ParseAmount converts a human decimal string ("2.50") into minor token
// units. It refuses amounts with more precision than the token carries
// rather than rounding someone's donation.
func ParseAmount(s string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", contract.ErrEncoding, s, err)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", contract.ErrEncoding)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: amount %q exceeds %d decimal places", contract.ErrEncoding, s, decimals)
	}
	return scaled.BigInt(), nil
}
