package escrow

import (
	"fmt"
	"math/big"
)

const (
	// MaxMilestones bounds the milestone vector of a single escrow.
	MaxMilestones = 20
	// DefaultFeeBps applies when initialize is called without a fee (0.5%).
	DefaultFeeBps int64 = 50
	// BpsDenominator is the basis-point scale: 10000 bps = 100%.
	BpsDenominator int64 = 10_000
)

var (
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// inInt128 reports whether v fits a signed 128-bit integer.
func inInt128(v *big.Int) bool {
	return v.Cmp(minInt128) >= 0 && v.Cmp(maxInt128) <= 0
}

func checked(v *big.Int) (*big.Int, error) {
	if !inInt128(v) {
		return nil, ErrInvalidMilestoneAmount
	}
	return v, nil
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	return checked(new(big.Int).Add(a, b))
}

func checkedSub(a, b *big.Int) (*big.Int, error) {
	return checked(new(big.Int).Sub(a, b))
}

func checkedMul(a, b *big.Int) (*big.Int, error) {
	return checked(new(big.Int).Mul(a, b))
}

// checkedDiv truncates toward zero like fixed-width integer division.
func checkedDiv(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrInvalidMilestoneAmount
	}
	return checked(new(big.Int).Quo(a, b))
}

// ValidateFeeBps enforces fee_bps ∈ [0, 10000].
func ValidateFeeBps(feeBps int64) error {
	if feeBps < 0 || feeBps > BpsDenominator {
		return fmt.Errorf("%w: %d bps", ErrInvalidFeeConfiguration, feeBps)
	}
	return nil
}

// ValidateMilestones checks the milestone vector and returns the checked sum
// of its amounts. Milestones are examined in order and the first failure wins.
func ValidateMilestones(milestones []*Milestone) (*big.Int, error) {
	if len(milestones) > MaxMilestones {
		return nil, fmt.Errorf("%w: %d > %d", ErrVectorTooLarge, len(milestones), MaxMilestones)
	}
	total := big.NewInt(0)
	for i, m := range milestones {
		if m == nil || m.Amount == nil || m.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("%w: milestone %d", ErrZeroAmount, i)
		}
		if !inInt128(m.Amount) {
			return nil, fmt.Errorf("%w: milestone %d", ErrInvalidMilestoneAmount, i)
		}
		sum, err := checkedAdd(total, m.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: total overflows at milestone %d", err, i)
		}
		total = sum
	}
	return total, nil
}

// CalculateFee returns floor(amount * feeBps / 10000).
//
// For amount = 10000 and feeBps = 50: fee = 10000 * 50 / 10000 = 50.
func CalculateFee(amount *big.Int, feeBps int64) (*big.Int, error) {
	if amount == nil {
		return nil, ErrInvalidMilestoneAmount
	}
	numerator, err := checkedMul(amount, big.NewInt(feeBps))
	if err != nil {
		return nil, err
	}
	return checkedDiv(numerator, big.NewInt(BpsDenominator))
}

// SplitPayout divides a milestone amount into the platform fee and the
// recipient payout.
func SplitPayout(amount *big.Int, feeBps int64) (fee, payout *big.Int, err error) {
	fee, err = CalculateFee(amount, feeBps)
	if err != nil {
		return nil, nil, err
	}
	payout, err = checkedSub(amount, fee)
	if err != nil {
		return nil, nil, err
	}
	return fee, payout, nil
}
