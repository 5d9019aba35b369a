package domain

// Side 报价方向
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Quote 单边报价
type Quote struct {
	Side          Side
	Price         float64 // 报价（quote 币计价）
	Size          float64 // 数量（base 单位）
	ClientOrderID uint64  // 每个 tick 随机分配，不复用
	ExpiresAt     int64   // 失效时间（Unix 秒）
}

// Notional 报价名义金额（quote 币）
func (q Quote) Notional() float64 {
	return q.Price * q.Size
}

// QuotePair 一个 tick 的双边报价，下一 tick 整体替换
type QuotePair struct {
	Bid Quote
	Ask Quote
	Mid float64
}

// SpreadBps 报价点差（bps，相对中间价）
func (p QuotePair) SpreadBps() float64 {
	if p.Mid <= 0 {
		return 0
	}
	return (p.Ask.Price - p.Bid.Price) / p.Mid * 10000
}
