package wager

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiplierBands(t *testing.T) {
	tests := []struct {
		diff uint64
		want uint64
	}{
		{0, 10000},
		{100, 10000},
		{101, 5000},
		{500, 5000},
		{501, 2000},
		{1000, 2000},
		{1001, 1000},
		{2000, 1000},
		{2001, 0},
		{math.MaxUint64, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Multiplier(tt.diff), "diff=%d", tt.diff)
	}
}

func TestPredictionError(t *testing.T) {
	assert.Equal(t, uint64(50), PredictionError(1000, 1050))
	assert.Equal(t, uint64(50), PredictionError(1050, 1000))
	assert.Equal(t, uint64(math.MaxUint64), PredictionError(0, math.MaxUint64))
}

func TestComputeOutcome(t *testing.T) {
	tests := []struct {
		name      string
		amount    uint64
		predicted uint64
		actual    uint64
		edge      uint16
		want      Outcome
	}{
		{
			name: "exact hit, 5% edge", amount: 1000, predicted: 60000, actual: 60000, edge: 500,
			want: Outcome{Diff: 0, Multiplier: 10000, Won: true, Gross: 10000, Fee: 500, Payout: 9500},
		},
		{
			name: "5x band", amount: 1000, predicted: 60000, actual: 60300, edge: 0,
			want: Outcome{Diff: 300, Multiplier: 5000, Won: true, Gross: 5000, Payout: 5000},
		},
		{
			name: "1x band returns stake minus fee", amount: 1000, predicted: 5000, actual: 3500, edge: 100,
			want: Outcome{Diff: 1500, Multiplier: 1000, Won: true, Gross: 1000, Fee: 10, Payout: 990},
		},
		{
			name: "outside bands", amount: 1000, predicted: 0, actual: 2001, edge: 500,
			want: Outcome{Diff: 2001},
		},
		{
			name: "fee rounds down", amount: 3, predicted: 1, actual: 1, edge: 333,
			want: Outcome{Multiplier: 10000, Won: true, Gross: 30, Fee: 0, Payout: 30},
		},
		{
			name: "full edge leaves nothing", amount: 1000, predicted: 1, actual: 1, edge: 10000,
			want: Outcome{Multiplier: 10000, Won: true, Gross: 10000, Fee: 10000, Payout: 0},
		},
		{
			name: "gross floors fractional stake", amount: 7, predicted: 0, actual: 1500, edge: 0,
			want: Outcome{Diff: 1500, Multiplier: 1000, Won: true, Gross: 7, Payout: 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeOutcome(tt.amount, tt.predicted, tt.actual, tt.edge)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeOutcomeBounds(t *testing.T) {
	got, err := ComputeOutcome(MaxStake, 0, 0, 10000)
	require.NoError(t, err)
	assert.Equal(t, uint64(MaxStake*10), got.Gross)
	assert.Equal(t, got.Gross, got.Fee)
	assert.Zero(t, got.Payout)

	_, err = ComputeOutcome(MaxStake+1, 0, 0, 0)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = ComputeOutcome(1000, 0, 0, 10001)
	assert.ErrorIs(t, err, ErrInvalidPoolConfig)

	// perda não toca a aritmética
	got, err = ComputeOutcome(math.MaxUint64, 0, 5000, 0)
	require.NoError(t, err)
	assert.False(t, got.Won)
}

func TestAddChecked(t *testing.T) {
	v, err := addChecked(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)

	_, err = addChecked(math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}
