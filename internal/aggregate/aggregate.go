// Package aggregate combines per-battery readings into one logical power
// source and decides whether the critical-battery condition holds.
package aggregate

import (
	"errors"
	"math"
	"math/big"
	"math/bits"

	"github.com/cptspacemanspiff/power-notify/internal/collector"
)

// ErrZeroCapacity is returned when the summed full capacity is zero, which
// leaves the combined percentage undefined.
var ErrZeroCapacity = errors.New("total full energy is zero")

// Combined is the aggregate state of all monitored batteries for one poll.
type Combined struct {
	Percent     int
	AnyCharging bool
}

// CombineEnergy returns floor(100 * sum(now) / sum(full)) over all readings.
// Energies are summed before dividing so that batteries of different capacity
// are weighted by capacity. A current energy above full capacity is passed
// through and yields a value above 100.
func CombineEnergy(readings []collector.EnergyReading) (int, error) {
	var fullHi, fullLo, nowHi, nowLo uint64
	for _, r := range readings {
		var carry uint64
		fullLo, carry = bits.Add64(fullLo, r.FullCapacity, 0)
		fullHi += carry
		nowLo, carry = bits.Add64(nowLo, r.CurrentEnergy, 0)
		nowHi += carry
	}
	if fullHi == 0 && fullLo == 0 {
		return 0, ErrZeroCapacity
	}

	pct := uint128(nowHi, nowLo)
	pct.Mul(pct, big.NewInt(100))
	pct.Quo(pct, uint128(fullHi, fullLo))
	if !pct.IsInt64() || pct.Int64() > math.MaxInt32 {
		return math.MaxInt32, nil
	}
	return int(pct.Int64()), nil
}

func uint128(hi, lo uint64) *big.Int {
	v := new(big.Int).SetUint64(hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(lo))
}

// AnyCharging reports whether at least one status is Charging. Unknown does
// not count as charging.
func AnyCharging(statuses []collector.Status) bool {
	for _, s := range statuses {
		if s == collector.Charging {
			return true
		}
	}
	return false
}

// ShouldAlert reports the critical condition: nothing charging and the
// combined percentage strictly below threshold.
func ShouldAlert(anyCharging bool, percent, threshold int) bool {
	return !anyCharging && percent < threshold
}

// Alert applies ShouldAlert to c.
func (c Combined) Alert(threshold int) bool {
	return ShouldAlert(c.AnyCharging, c.Percent, threshold)
}
