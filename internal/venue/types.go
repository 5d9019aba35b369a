package venue

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/makerbot/internal/domain"
)

// SelfTradeCancelProvide 自成交时撤掉挂单方
const SelfTradeCancelProvide = "cancel_provide"

// MarketInfo 市场静态信息（GET /markets）
type MarketInfo struct {
	ID          string  `json:"id"`
	Base        string  `json:"base"`
	Quote       string  `json:"quote"`
	TickSize    float64 `json:"tick_size"`     // 每 tick 对应的 quote 价格
	BaseLotSize float64 `json:"base_lot_size"` // 每 lot 对应的 base 数量
}

// Level 盘口一档
type Level struct {
	PriceInTicks   int64 `json:"price_in_ticks"`
	SizeInBaseLots int64 `json:"size_in_base_lots"`
}

// Ladder 盘口（GET /markets/{id}/book）
type Ladder struct {
	Market string  `json:"market"`
	Slot   uint64  `json:"slot"`
	Bids   []Level `json:"bids"`
	Asks   []Level `json:"asks"`
}

// MarketState 本地缓存的市场状态
type MarketState struct {
	Info      MarketInfo
	Ladder    Ladder
	UpdatedAt time.Time
}

// TicksToPrice tick 转价格
func (m *MarketState) TicksToPrice(ticks int64) float64 {
	return float64(ticks) * m.Info.TickSize
}

// BestBid 最高买价（无买盘返回 nil）
func (m *MarketState) BestBid() *float64 {
	if len(m.Ladder.Bids) == 0 {
		return nil
	}
	best := m.Ladder.Bids[0].PriceInTicks
	for _, lv := range m.Ladder.Bids[1:] {
		if lv.PriceInTicks > best {
			best = lv.PriceInTicks
		}
	}
	p := m.TicksToPrice(best)
	return &p
}

// BestAsk 最低卖价（无卖盘返回 nil）
func (m *MarketState) BestAsk() *float64 {
	if len(m.Ladder.Asks) == 0 {
		return nil
	}
	best := m.Ladder.Asks[0].PriceInTicks
	for _, lv := range m.Ladder.Asks[1:] {
		if lv.PriceInTicks < best {
			best = lv.PriceInTicks
		}
	}
	p := m.TicksToPrice(best)
	return &p
}

func (m *MarketState) clone() *MarketState {
	cp := *m
	cp.Ladder.Bids = append([]Level(nil), m.Ladder.Bids...)
	cp.Ladder.Asks = append([]Level(nil), m.Ladder.Asks...)
	return &cp
}

// LimitOrderTemplate 限价单模板（POST /orders/batch 的单个元素）。
// 价格和数量用十进制字符串传输，由场所按 tick/lot 换算。
type LimitOrderTemplate struct {
	Side                  domain.Side `json:"side"`
	Price                 string      `json:"price"`
	Size                  string      `json:"size"`
	SelfTradeBehavior     string      `json:"self_trade_behavior"`
	MatchLimit            *uint64     `json:"match_limit"`
	ClientOrderID         uint64      `json:"client_order_id"`
	ExpiresAt             int64       `json:"expires_at"`
	UseOnlyDepositedFunds bool        `json:"use_only_deposited_funds"`
}

// NewLimitOrderTemplate 由报价生成下单模板
func NewLimitOrderTemplate(q domain.Quote) LimitOrderTemplate {
	return LimitOrderTemplate{
		Side:                  q.Side,
		Price:                 decimal.NewFromFloat(q.Price).Round(9).String(),
		Size:                  decimal.NewFromFloat(q.Size).Round(9).String(),
		SelfTradeBehavior:     SelfTradeCancelProvide,
		MatchLimit:            nil,
		ClientOrderID:         q.ClientOrderID,
		ExpiresAt:             q.ExpiresAt,
		UseOnlyDepositedFunds: false,
	}
}

type cancelAllRequest struct {
	Market string `json:"market"`
	Trader string `json:"trader"`
}

type batchRequest struct {
	Market string               `json:"market"`
	Trader string               `json:"trader"`
	Orders []LimitOrderTemplate `json:"orders"`
}
