package stats

import (
	"context"
	"fmt"

	"umanity/internal/chain"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DonorStats is a display-ready donor snapshot.
type DonorStats struct {
	TotalDonated  string `json:"totalDonated"`
	DonationCount uint64 `json:"donationCount"`
	Rank          string `json:"rank"`
}

// PlatformStats is a display-ready platform snapshot.
type PlatformStats struct {
	TotalDonated   string `json:"totalDonated"`
	DonationCount  uint64 `json:"donationCount"`
	RecipientCount uint64 `json:"recipientCount"`
}

// Pool is a display-ready cause bucket.
type Pool struct {
	Name         string `json:"name"`
	TotalDonated string `json:"totalDonated"`
	Available    string `json:"available"`
}

// Snapshot bundles one refresh. It is a disposable cache copy: nothing in
// it is merged or patched, only replaced wholesale by the next refresh.
type Snapshot struct {
	Donor    DonorStats    `json:"donor"`
	Platform PlatformStats `json:"platform"`
}

// Reconciler re-reads contract figures after submissions are believed
// settled, and on demand.
type Reconciler struct {
	reader   chain.Reader
	decimals int
	places   int
	log      *zap.Logger
}

func NewReconciler(reader chain.Reader, decimals int, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{reader: reader, decimals: decimals, places: 2, log: log}
}

// Refresh re-queries platform figures and, when a donor address is given,
// that donor's figures. Without an address the donor snapshot is zeroed
// rather than queried.
func (r *Reconciler) Refresh(ctx context.Context, donor *common.Address) (Snapshot, error) {
	platform, err := r.reader.PlatformStats(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("platform stats: %w", err)
	}

	snap := Snapshot{
		Donor: DonorStats{
			TotalDonated: FormatUnits(nil, r.decimals, r.places),
			Rank:         FormatRank(0),
		},
		Platform: PlatformStats{
			TotalDonated:   FormatUnits(platform.TotalDonated, r.decimals, r.places),
			DonationCount:  platform.DonationCount.Uint64(),
			RecipientCount: platform.RecipientCount.Uint64(),
		},
	}

	if donor != nil {
		ds, err := r.reader.DonorStats(ctx, *donor)
		if err != nil {
			return Snapshot{}, fmt.Errorf("donor stats: %w", err)
		}
		snap.Donor = DonorStats{
			TotalDonated:  FormatUnits(ds.TotalDonated, r.decimals, r.places),
			DonationCount: ds.DonationCount.Uint64(),
			Rank:          FormatRank(ds.Rank.Uint64()),
		}
	}

	r.log.Debug("stats refreshed",
		zap.Bool("with_donor", donor != nil),
		zap.String("platform_total", snap.Platform.TotalDonated),
	)
	return snap, nil
}

// Pools re-reads the cause pools.
func (r *Reconciler) Pools(ctx context.Context) ([]Pool, error) {
	pools, err := r.reader.Pools(ctx)
	if err != nil {
		return nil, fmt.Errorf("pools: %w", err)
	}

	out := make([]Pool, len(pools))
	for i, p := range pools {
		out[i] = Pool{
			Name:         p.Name,
			TotalDonated: FormatUnits(p.Total, r.decimals, r.places),
			Available:    FormatUnits(p.Available, r.decimals, r.places),
		}
	}
	return out, nil
}
