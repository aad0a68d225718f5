// Package donate composes encoded calls into the donation flows the
// product exposes: random one-tap donations, cause-pool donations, and
// recipient applications.
package donate

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"umanity/internal/chain"
	"umanity/internal/contract"
	"umanity/internal/orchestrator"
	"umanity/internal/stats"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Config pins the deployed contracts and unit conventions.
type Config struct {
	ChainID         uint64
	DonationAddress common.Address
	TokenAddress    common.Address
	TokenDecimals   int
	// NativeAmount is the fixed value attached to a native one-tap
	// donation (the product's 0.001 ETH).
	NativeAmount *big.Int
	// SettleBudget bounds how long a background settlement watch may
	// run before the outcome is left unknown.
	SettleBudget time.Duration
}

// Status of a tracked submission.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusUnknown   Status = "unknown"
)

// Outcome is the relay's view of one submission. Recipient is best-effort
// enrichment and may stay empty even for confirmed donations.
type Outcome struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Status    Status `json:"status"`
	Recipient string `json:"recipient,omitempty"`
}

// Service builds call batches, pre-flights balances, submits through the
// orchestrator, and watches settlement in the background.
type Service struct {
	cfg      Config
	donation *contract.Descriptor
	token    *contract.Descriptor
	reader   chain.Reader
	orch     *orchestrator.Orchestrator
	tracker  *orchestrator.Tracker
	recon    *stats.Reconciler
	log      *zap.Logger

	mu       sync.Mutex
	outcomes map[string]Outcome

	// OnSettled, when set, observes every settlement watch result.
	OnSettled func(status Status)
}

func NewService(cfg Config, reader chain.Reader, orch *orchestrator.Orchestrator, tracker *orchestrator.Tracker, recon *stats.Reconciler, log *zap.Logger) (*Service, error) {
	donation, err := contract.NewDescriptor(contract.DonationABI, cfg.DonationAddress)
	if err != nil {
		return nil, err
	}
	token, err := contract.NewDescriptor(contract.ERC20ABI, cfg.TokenAddress)
	if err != nil {
		return nil, err
	}
	if cfg.NativeAmount == nil {
		cfg.NativeAmount = big.NewInt(1_000_000_000_000_000) // 0.001 ETH
	}
	if cfg.SettleBudget <= 0 {
		cfg.SettleBudget = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		donation: donation,
		token:    token,
		reader:   reader,
		orch:     orch,
		tracker:  tracker,
		recon:    recon,
		log:      log,
		outcomes: make(map[string]Outcome),
	}, nil
}

// DonateRandomNative submits a native-value donation into the random pool.
// A nil amount uses the configured one-tap value.
func (s *Service) DonateRandomNative(ctx context.Context, signer common.Address, amount *big.Int) (orchestrator.SubmissionResult, error) {
	if amount == nil {
		amount = s.cfg.NativeAmount
	}
	if err := s.preflightNative(ctx, signer, amount); err != nil {
		return orchestrator.SubmissionResult{}, err
	}

	data, err := s.donation.Encode("donateRandom")
	if err != nil {
		return orchestrator.SubmissionResult{}, err
	}

	batch := orchestrator.CallBatch{{To: s.cfg.DonationAddress, Data: data, Value: amount}}
	return s.submit(ctx, batch, signer)
}

// DonateRandomToken submits a token donation into the random pool:
// approve, then donate, as one atomic unit.
func (s *Service) DonateRandomToken(ctx context.Context, signer common.Address, amount *big.Int) (orchestrator.SubmissionResult, error) {
	if err := validateAmount(amount); err != nil {
		return orchestrator.SubmissionResult{}, err
	}
	if err := s.preflightToken(ctx, signer, amount); err != nil {
		return orchestrator.SubmissionResult{}, err
	}

	donateData, err := s.donation.Encode("donateRandomToken", amount)
	if err != nil {
		return orchestrator.SubmissionResult{}, err
	}
	batch, err := s.batchFor(ctx, signer, amount, donateData)
	if err != nil {
		return orchestrator.SubmissionResult{}, err
	}
	return s.submit(ctx, batch, signer)
}

// DonateToPool submits a token donation into a named cause pool.
func (s *Service) DonateToPool(ctx context.Context, signer common.Address, pool uint8, amount *big.Int) (orchestrator.SubmissionResult, error) {
	if err := validateAmount(amount); err != nil {
		return orchestrator.SubmissionResult{}, err
	}
	if err := s.preflightToken(ctx, signer, amount); err != nil {
		return orchestrator.SubmissionResult{}, err
	}

	donateData, err := s.donation.Encode("donateToPool", pool, amount)
	if err != nil {
		return orchestrator.SubmissionResult{}, err
	}
	batch, err := s.batchFor(ctx, signer, amount, donateData)
	if err != nil {
		return orchestrator.SubmissionResult{}, err
	}
	return s.submit(ctx, batch, signer)
}

// ApplyAsRecipient submits a recipient application. No funds move, so
// there is no pre-flight.
func (s *Service) ApplyAsRecipient(ctx context.Context, signer common.Address, name, story, proofURL string) (orchestrator.SubmissionResult, error) {
	if name == "" || story == "" {
		return orchestrator.SubmissionResult{}, fmt.Errorf("%w: name and story are required", contract.ErrEncoding)
	}

	data, err := s.donation.Encode("applyAsRecipient", name, story, proofURL)
	if err != nil {
		return orchestrator.SubmissionResult{}, err
	}

	batch := orchestrator.CallBatch{{To: s.cfg.DonationAddress, Data: data}}
	return s.submit(ctx, batch, signer)
}

// Outcome reports the tracked state of a prior submission.
func (s *Service) Outcome(id string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outcomes[id]
	return out, ok
}

// batchFor builds the spend batch, prefixing a token approval unless the
// contract already holds enough allowance. Order is load bearing when the
// approval is present: the spend consumes what the first call grants.
func (s *Service) batchFor(ctx context.Context, signer common.Address, amount *big.Int, spendData []byte) (orchestrator.CallBatch, error) {
	if s.hasAllowance(ctx, signer, amount) {
		return orchestrator.CallBatch{{To: s.cfg.DonationAddress, Data: spendData}}, nil
	}
	approveData, err := s.token.Encode("approve", s.cfg.DonationAddress, amount)
	if err != nil {
		return nil, err
	}
	return orchestrator.CallBatch{
		{To: s.cfg.TokenAddress, Data: approveData},
		{To: s.cfg.DonationAddress, Data: spendData},
	}, nil
}

// hasAllowance reads the current allowance. A read failure means approve
// again; re-approving is always safe, skipping it is only an optimization.
func (s *Service) hasAllowance(ctx context.Context, signer common.Address, amount *big.Int) bool {
	allowance, err := s.reader.Allowance(ctx, signer, s.cfg.DonationAddress)
	if err != nil || allowance == nil {
		return false
	}
	return allowance.Cmp(amount) >= 0
}

func (s *Service) submit(ctx context.Context, batch orchestrator.CallBatch, signer common.Address) (orchestrator.SubmissionResult, error) {
	res, err := s.orch.Submit(ctx, batch, signer)
	if err != nil {
		return orchestrator.SubmissionResult{}, err
	}

	s.mu.Lock()
	s.outcomes[res.ID] = Outcome{ID: res.ID, Kind: res.Kind.String(), Status: StatusPending}
	s.mu.Unlock()

	go s.watchSettlement(res, signer)
	return res, nil
}

// watchSettlement runs detached from the request: the caller already got
// its pending identifier, and a late or failed settlement read must never
// surface as a request error.
func (s *Service) watchSettlement(res orchestrator.SubmissionResult, signer common.Address) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SettleBudget)
	defer cancel()

	status := StatusConfirmed
	var recipient string

	receipt, err := s.tracker.Await(ctx, res)
	if err != nil {
		// Best-effort: the submission may well have settled anyway.
		status = StatusUnknown
	} else if addr, ok := orchestrator.ExtractRecipient(receipt); ok {
		recipient = addr.Hex()
	}

	s.mu.Lock()
	if out, ok := s.outcomes[res.ID]; ok {
		out.Status = status
		out.Recipient = recipient
		s.outcomes[res.ID] = out
	}
	s.mu.Unlock()

	if s.OnSettled != nil {
		s.OnSettled(status)
	}

	if _, err := s.recon.Refresh(ctx, &signer); err != nil {
		s.log.Debug("post-settlement stats refresh failed", zap.Error(err))
	}

	s.log.Info("settlement watch finished",
		zap.String("id", res.ID),
		zap.String("status", string(status)),
		zap.Bool("recipient_known", recipient != ""),
	)
}

func (s *Service) preflightToken(ctx context.Context, signer common.Address, amount *big.Int) error {
	balance, err := s.reader.TokenBalance(ctx, signer)
	if err != nil {
		return fmt.Errorf("%w: balance check: %v", orchestrator.ErrNetwork, err)
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s below donation %s", orchestrator.ErrInsufficientFunds, balance, amount)
	}
	return nil
}

func (s *Service) preflightNative(ctx context.Context, signer common.Address, amount *big.Int) error {
	balance, err := s.reader.NativeBalance(ctx, signer)
	if err != nil {
		return fmt.Errorf("%w: balance check: %v", orchestrator.ErrNetwork, err)
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s below donation %s", orchestrator.ErrInsufficientFunds, balance, amount)
	}
	return nil
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: donation amount must be positive", contract.ErrEncoding)
	}
	return nil
}
