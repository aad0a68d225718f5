package contract

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DonationABI describes the deployed Umanity donation contract.
const DonationABI = `[
  {"type":"function","name":"donateRandom","inputs":[],"outputs":[],"stateMutability":"payable"},
  {"type":"function","name":"donateRandomToken","inputs":[{"name":"_amount","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"donateToPool","inputs":[{"name":"_pool","type":"uint8"},{"name":"_amount","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"applyAsRecipient","inputs":[{"name":"_name","type":"string"},{"name":"_story","type":"string"},{"name":"_proofUrl","type":"string"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"getDonorStats","inputs":[{"name":"_donor","type":"address"}],"outputs":[{"name":"totalDonated_","type":"uint256"},{"name":"donationCount_","type":"uint256"},{"name":"rank_","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"getPlatformStats","inputs":[],"outputs":[{"name":"totalDonated_","type":"uint256"},{"name":"totalDonationCount_","type":"uint256"},{"name":"recipientCount_","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"getAllPools","inputs":[],"outputs":[{"name":"names_","type":"string[]"},{"name":"totals_","type":"uint256[]"},{"name":"available_","type":"uint256[]"}],"stateMutability":"view"},
  {"type":"function","name":"getAllRecipients","inputs":[],"outputs":[{"name":"","type":"address[]"}],"stateMutability":"view"},
  {"type":"function","name":"donorTotals","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"donorCounts","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"event","name":"DonationMade","anonymous":false,"inputs":[{"name":"donor","type":"address","indexed":true},{"name":"recipient","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},{"name":"timestamp","type":"uint256","indexed":false}]}
]`

// ERC20ABI covers the subset of EIP-20 the relay touches.
const ERC20ABI = `[
  {"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"allowance","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"decimals","inputs":[],"outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"}
]`

// DonationMadeTopic is topic[0] of the DonationMade event log.
var DonationMadeTopic = crypto.Keccak256Hash([]byte("DonationMade(address,address,uint256,uint256)"))

// Descriptor binds a parsed ABI to a deployed address. It carries no
// behavior beyond encoding; the chain and wallet layers decide where the
// resulting payloads go.
type Descriptor struct {
	ABI     abi.ABI
	Address common.Address
}

// NewDescriptor parses abiJSON and pins it to the contract address.
func NewDescriptor(abiJSON string, address common.Address) (*Descriptor, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}
	return &Descriptor{ABI: parsed, Address: address}, nil
}
