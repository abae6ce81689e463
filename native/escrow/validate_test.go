package escrow

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateFeeFloorsBasisPoints(t *testing.T) {
	cases := []struct {
		amount int64
		bps    int64
		fee    int64
		payout int64
	}{
		{amount: 10_000, bps: 50, fee: 50, payout: 9_950},
		{amount: 100, bps: 50, fee: 0, payout: 100},
		{amount: 200, bps: 50, fee: 1, payout: 199},
		{amount: 1_000_000, bps: 100, fee: 10_000, payout: 990_000},
		{amount: 1_000, bps: 0, fee: 0, payout: 1_000},
		{amount: 1_000, bps: 10_000, fee: 1_000, payout: 0},
		{amount: 19_999, bps: 1, fee: 1, payout: 19_998},
	}
	for _, tc := range cases {
		fee, payout, err := SplitPayout(big.NewInt(tc.amount), tc.bps)
		require.NoError(t, err)
		require.Equalf(t, tc.fee, fee.Int64(), "fee for %d @ %d bps", tc.amount, tc.bps)
		require.Equalf(t, tc.payout, payout.Int64(), "payout for %d @ %d bps", tc.amount, tc.bps)
	}
}

func TestCalculateFeeOverflow(t *testing.T) {
	_, err := CalculateFee(new(big.Int).Set(maxInt128), 2)
	require.ErrorIs(t, err, ErrInvalidMilestoneAmount)

	fee, err := CalculateFee(new(big.Int).Set(maxInt128), 1)
	require.NoError(t, err)
	expected := new(big.Int).Quo(maxInt128, big.NewInt(BpsDenominator))
	require.Zero(t, expected.Cmp(fee))

	_, err = CalculateFee(nil, 50)
	require.ErrorIs(t, err, ErrInvalidMilestoneAmount)
}

func TestValidateFeeBps(t *testing.T) {
	require.NoError(t, ValidateFeeBps(0))
	require.NoError(t, ValidateFeeBps(10_000))
	require.ErrorIs(t, ValidateFeeBps(10_001), ErrInvalidFeeConfiguration)
	require.ErrorIs(t, ValidateFeeBps(-1), ErrInvalidFeeConfiguration)
}

func TestValidateMilestones(t *testing.T) {
	total, err := ValidateMilestones(nil)
	require.NoError(t, err)
	require.Zero(t, total.Sign())

	for n := 1; n <= MaxMilestones; n++ {
		amounts := make([]int64, n)
		var want int64
		for i := range amounts {
			amounts[i] = int64(i+1) * 1_000
			want += amounts[i]
		}
		total, err := ValidateMilestones(testMilestones(amounts...))
		require.NoError(t, err)
		require.Equal(t, want, total.Int64())
	}

	tooMany := make([]int64, MaxMilestones+1)
	for i := range tooMany {
		tooMany[i] = 1
	}
	_, err = ValidateMilestones(testMilestones(tooMany...))
	require.ErrorIs(t, err, ErrVectorTooLarge)

	_, err = ValidateMilestones(testMilestones(100, 0, 100))
	require.ErrorIs(t, err, ErrZeroAmount)
	_, err = ValidateMilestones(testMilestones(100, -5))
	require.ErrorIs(t, err, ErrZeroAmount)
	_, err = ValidateMilestones([]*Milestone{nil})
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestValidateMilestonesOverflow(t *testing.T) {
	huge := []*Milestone{
		{Amount: new(big.Int).Set(maxInt128)},
		{Amount: big.NewInt(1)},
	}
	_, err := ValidateMilestones(huge)
	require.ErrorIs(t, err, ErrInvalidMilestoneAmount)

	outOfRange := []*Milestone{{Amount: new(big.Int).Add(maxInt128, big.NewInt(1))}}
	_, err = ValidateMilestones(outOfRange)
	require.ErrorIs(t, err, ErrInvalidMilestoneAmount)

	// The overflow is reached before the trailing zero amount is examined.
	ordered := []*Milestone{
		{Amount: new(big.Int).Set(maxInt128)},
		{Amount: new(big.Int).Set(maxInt128)},
		{Amount: big.NewInt(0)},
	}
	_, err = ValidateMilestones(ordered)
	require.ErrorIs(t, err, ErrInvalidMilestoneAmount)
}

func TestErrorCodes(t *testing.T) {
	code, ok := CodeOf(errors.Join(errors.New("ctx"), ErrSelfDealing))
	require.True(t, ok)
	require.Equal(t, CodeSelfDealing, code)
	require.Equal(t, ErrorCode(15), code)
	require.Equal(t, "SelfDealing", code.String())
	require.Equal(t, ErrorCode(1), CodeEscrowNotFound)

	_, ok = CodeOf(ErrAuthorization)
	require.False(t, ok)
	require.Len(t, codeNames, 15)
}
