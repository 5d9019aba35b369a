package simulation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/makerbot/internal/ledger"
)

func newTestSimulator(seed int64) *Simulator {
	return New(Config{SpreadBps: 12, SizeQuote: 6}, rand.New(rand.NewSource(seed)), ledger.New())
}

func TestSimulator_LongRunNeverErrors(t *testing.T) {
	sim := newTestSimulator(7)
	for i := 0; i < 10000; i++ {
		res, err := sim.Step()
		require.NoError(t, err, "tick=%d", i)
		require.True(t, res.Quote.Bid.Price < res.Quote.Mid && res.Quote.Mid < res.Quote.Ask.Price, "tick=%d", i)

		st := sim.Stats()
		require.False(t, math.IsNaN(st.RealizedUSDC) || math.IsNaN(st.InventoryUSDC), "tick=%d", i)
		require.NotNil(t, st.AvgSpreadBps)
	}
	assert.Equal(t, int64(20000), sim.Stats().Cancels)
	assert.GreaterOrEqual(t, sim.Mid(), DefaultMinMid)
}

func TestSimulator_InventoryNeverNegative(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		sim := newTestSimulator(seed)
		for i := 0; i < 2000; i++ {
			_, err := sim.Step()
			require.NoError(t, err)
			require.GreaterOrEqual(t, sim.Ledger().State().NetInventoryBase, 0.0, "seed=%d tick=%d", seed, i)
			require.GreaterOrEqual(t, sim.Stats().RealizedUSDC, 0.0, "seed=%d tick=%d", seed, i)
		}
	}
}

func TestSimulator_FillsCountOnlyAppliedFills(t *testing.T) {
	sim := newTestSimulator(11)
	var applied int64
	for i := 0; i < 5000; i++ {
		res, err := sim.Step()
		require.NoError(t, err)
		if res.Filled {
			applied++
		}
	}
	assert.Equal(t, applied, sim.Stats().Fills)
	// 25% 成交概率，5000 步应在合理区间内（accumulate 全部生效，liquidate 部分生效）
	assert.Greater(t, applied, int64(500))
	assert.Less(t, applied, int64(1500))
}

func TestSimulator_SpreadAverageMatchesConfiguredSpread(t *testing.T) {
	sim := newTestSimulator(3)
	for i := 0; i < 100; i++ {
		_, err := sim.Step()
		require.NoError(t, err)
	}
	require.NotNil(t, sim.Stats().AvgSpreadBps)
	assert.InDelta(t, 12.0, *sim.Stats().AvgSpreadBps, 1e-6)
}

func TestSimulator_MidFlooredAtMinimum(t *testing.T) {
	sim := New(Config{SpreadBps: 12, SizeQuote: 6, BaselineMid: 1.05, DriftRange: 5}, rand.New(rand.NewSource(1)), nil)
	for i := 0; i < 1000; i++ {
		_, err := sim.Step()
		require.NoError(t, err)
		require.GreaterOrEqual(t, sim.Mid(), 1.0)
	}
}
