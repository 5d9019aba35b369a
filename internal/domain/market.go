package domain

import "math"

// MarketSnapshot 单个 tick 的盘口快照（只替换，不修改）
type MarketSnapshot struct {
	MarketID string
	BestBid  *float64 // 最优买价（nil 表示买盘为空）
	BestAsk  *float64 // 最优卖价（nil 表示卖盘为空）
	Mid      *float64 // 中间价（nil 表示无可用价格）
	Slot     uint64   // 场所返回的序号（可选）
}

// HasPrice 检查快照是否有可报价的中间价
func (s *MarketSnapshot) HasPrice() bool {
	if s == nil || s.Mid == nil {
		return false
	}
	m := *s.Mid
	return m > 0 && !math.IsNaN(m) && !math.IsInf(m, 0)
}

// MidOrZero 返回中间价，缺失时返回 0
func (s *MarketSnapshot) MidOrZero() float64 {
	if s == nil || s.Mid == nil {
		return 0
	}
	return *s.Mid
}
