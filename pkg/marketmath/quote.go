package marketmath

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidMidpoint 中间价非法（<=0 / NaN / Inf）。
// 报价计算不做任何钳制，调用方必须先校验中间价。
var ErrInvalidMidpoint = errors.New("marketmath: midpoint must be a finite positive number")

// QuotePrices 双边报价的价格与数量。
//
// 价格单位为 quote 币；数量单位为 base 币，按 sizeQuote/price 换算，
// 因此 BidPrice*BidSize == AskPrice*AskSize == sizeQuote（浮点误差内）。
type QuotePrices struct {
	Mid      float64
	BidPrice float64
	AskPrice float64
	BidSize  float64
	AskSize  float64
}

// ComputeQuote 围绕中间价生成对称报价：
//
//	bid = m * (1 - spreadBps/20000)
//	ask = m * (1 + spreadBps/20000)
//
// 纯函数，无副作用。
func ComputeQuote(mid, spreadBps, sizeQuote float64) (QuotePrices, error) {
	if !isPositiveFinite(mid) {
		return QuotePrices{}, fmt.Errorf("%w: got %v", ErrInvalidMidpoint, mid)
	}
	if !isPositiveFinite(spreadBps) {
		return QuotePrices{}, fmt.Errorf("marketmath: spreadBps must be > 0, got %v", spreadBps)
	}
	if !isPositiveFinite(sizeQuote) {
		return QuotePrices{}, fmt.Errorf("marketmath: sizeQuote must be > 0, got %v", sizeQuote)
	}

	half := spreadBps / 2 / 10000
	bid := mid * (1 - half)
	ask := mid * (1 + half)
	if bid <= 0 {
		// spread >= 20000bps 时 bid 不再为正
		return QuotePrices{}, fmt.Errorf("marketmath: spreadBps=%v produces non-positive bid", spreadBps)
	}
	return QuotePrices{
		Mid:      mid,
		BidPrice: bid,
		AskPrice: ask,
		BidSize:  sizeQuote / bid,
		AskSize:  sizeQuote / ask,
	}, nil
}

// Midpoint 由最优买卖价推导中间价：
// - 双边都有：取平均
// - 只有一边：取该边价格
// - 都没有：nil
func Midpoint(bestBid, bestAsk *float64) *float64 {
	bid := validSide(bestBid)
	ask := validSide(bestAsk)
	switch {
	case bid != nil && ask != nil:
		m := (*bid + *ask) / 2
		return &m
	case bid != nil:
		m := *bid
		return &m
	case ask != nil:
		m := *ask
		return &m
	default:
		return nil
	}
}

// SpreadBps 相对中间价的点差（bps）
func SpreadBps(bid, ask, mid float64) float64 {
	if mid <= 0 {
		return 0
	}
	return (ask - bid) / mid * 10000
}

func validSide(p *float64) *float64 {
	if p == nil || !isPositiveFinite(*p) {
		return nil
	}
	return p
}

func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
