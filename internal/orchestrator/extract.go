package orchestrator

import (
	"umanity/internal/contract"

	"github.com/ethereum/go-ethereum/common"
)

// ExtractRecipient recovers the donation recipient from a receipt's
// DonationMade log: the lower 20 bytes of the third indexed topic. This is
// best-effort enrichment for display; absence never blocks success
// reporting, so the function is total and never panics.
func ExtractRecipient(receipt *Receipt) (common.Address, bool) {
	if receipt == nil || len(receipt.Logs) == 0 {
		return common.Address{}, false
	}

	for _, log := range receipt.Logs {
		if len(log.Topics) < 3 {
			continue
		}
		if log.Topics[0] != contract.DonationMadeTopic {
			continue
		}
		return common.BytesToAddress(log.Topics[2].Bytes()[12:]), true
	}
	return common.Address{}, false
}
