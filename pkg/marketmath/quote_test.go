package marketmath

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeQuote_DefaultParams(t *testing.T) {
	q, err := ComputeQuote(150, 12, 6)
	require.NoError(t, err)

	assert.InDelta(t, 149.91, q.BidPrice, 1e-9)
	assert.InDelta(t, 150.09, q.AskPrice, 1e-9)
	assert.InDelta(t, 6.0/149.91, q.BidSize, 1e-12)
	assert.InDelta(t, 6.0/150.09, q.AskSize, 1e-12)
}

// 对任意 m>0、spreadBps>0：bid < m < ask，且两边名义金额等于 sizeQuote，
// 并且从报价反推的点差等于配置点差。
func TestProperty_QuoteBracketsMidAndKeepsNotional(t *testing.T) {
	property := func(rawMid, rawSpread, rawSize float64) bool {
		mid := 0.0001 + math.Mod(math.Abs(rawMid), 1e6)
		spread := 0.01 + math.Mod(math.Abs(rawSpread), 5000)
		size := 0.01 + math.Mod(math.Abs(rawSize), 1e5)
		if math.IsNaN(mid) || math.IsNaN(spread) || math.IsNaN(size) {
			return true
		}

		q, err := ComputeQuote(mid, spread, size)
		if err != nil {
			t.Logf("unexpected err: mid=%v spread=%v size=%v err=%v", mid, spread, size, err)
			return false
		}
		if !(q.BidPrice < mid && mid < q.AskPrice) {
			t.Logf("bid/ask 未包住中间价: bid=%v mid=%v ask=%v", q.BidPrice, mid, q.AskPrice)
			return false
		}
		tol := 1e-9 * size
		if math.Abs(q.BidPrice*q.BidSize-size) > tol || math.Abs(q.AskPrice*q.AskSize-size) > tol {
			t.Logf("名义金额不一致: bid=%v ask=%v size=%v", q.BidPrice*q.BidSize, q.AskPrice*q.AskSize, size)
			return false
		}
		if math.Abs(SpreadBps(q.BidPrice, q.AskPrice, mid)-spread) > 1e-6*spread {
			t.Logf("点差不一致: got=%v want=%v", SpreadBps(q.BidPrice, q.AskPrice, mid), spread)
			return false
		}
		return true
	}

	cfg := &quick.Config{MaxCount: 2000, Rand: rand.New(rand.NewSource(42))}
	if err := quick.Check(property, cfg); err != nil {
		t.Fatalf("property failed: %v", err)
	}
}

func TestComputeQuote_RejectsInvalidMidpoint(t *testing.T) {
	for _, mid := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ComputeQuote(mid, 12, 6)
		require.Error(t, err, "mid=%v", mid)
		assert.True(t, errors.Is(err, ErrInvalidMidpoint), "mid=%v", mid)
	}
}

func TestComputeQuote_RejectsInvalidSpreadAndSize(t *testing.T) {
	_, err := ComputeQuote(100, 0, 6)
	assert.Error(t, err)
	_, err = ComputeQuote(100, -5, 6)
	assert.Error(t, err)
	_, err = ComputeQuote(100, 12, 0)
	assert.Error(t, err)
	_, err = ComputeQuote(100, 20000, 6)
	assert.Error(t, err)
}

func TestMidpoint(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	m := Midpoint(f(99), f(101))
	require.NotNil(t, m)
	assert.Equal(t, 100.0, *m)

	m = Midpoint(f(99), nil)
	require.NotNil(t, m)
	assert.Equal(t, 99.0, *m)

	m = Midpoint(nil, f(101))
	require.NotNil(t, m)
	assert.Equal(t, 101.0, *m)

	assert.Nil(t, Midpoint(nil, nil))
	assert.Nil(t, Midpoint(f(0), f(math.NaN())))
}
