package stats

import (
	"math"
	"math/big"
	"strconv"
)

// FormatUnits renders a minor-unit amount as a fixed-point decimal string:
// divide by 10^decimals as a float, then print with the requested number of
// fractional digits. The float conversion loses precision above 2^53 minor
// units, which is far beyond any realistic donation total here.
func FormatUnits(amount *big.Int, decimals, places int) string {
	if amount == nil {
		return strconv.FormatFloat(0, 'f', places, 64)
	}
	scale := math.Pow10(decimals)
	value, _ := new(big.Float).SetInt(amount).Float64()
	return strconv.FormatFloat(value/scale, 'f', places, 64)
}

// FormatRank renders a leaderboard rank, with "--" for the unranked zero.
func FormatRank(rank uint64) string {
	if rank == 0 {
		return "--"
	}
	return "#" + strconv.FormatUint(rank, 10)
}
