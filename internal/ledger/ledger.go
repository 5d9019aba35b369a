// Package ledger 累计做市过程中的已实现利润、净库存与平滑点差。
//
// Ledger 只被引擎主循环访问（单 goroutine），因此不加锁。
package ledger

// 点差指数平滑系数：avg = 0.95*prev + 0.05*cur
const spreadSmoothing = 0.05

// FillSide 成交类型
type FillSide int

const (
	// SideAccumulate 在买价成交，库存增加
	SideAccumulate FillSide = iota
	// SideLiquidate 在卖价成交，库存减少并锁定点差利润
	SideLiquidate
)

func (s FillSide) String() string {
	if s == SideLiquidate {
		return "liquidate"
	}
	return "accumulate"
}

// Fill 一次成交（模拟或真实）
type Fill struct {
	Side           FillSide
	Price          float64
	Size           float64 // base 单位
	CapturedSpread float64 // 每单位捕获的点差（ask-bid），仅 liquidate 使用
}

// State 账本状态。除 NetInventoryBase 与 RealizedProfit 外均非负。
type State struct {
	RealizedProfit   float64
	NetInventoryBase float64
	AvgSpreadBps     *float64
	Fills            int64
	Cancels          int64
}

// Ledger 库存账本
type Ledger struct {
	state State
}

// New 创建空账本
func New() *Ledger {
	return &Ledger{}
}

// RecordFill 记录一次成交，返回是否生效。
// liquidate 超出可用库存时为 no-op（该路径不会让库存变为负数）。
func (l *Ledger) RecordFill(f Fill) bool {
	if f.Size <= 0 {
		return false
	}
	switch f.Side {
	case SideAccumulate:
		l.state.NetInventoryBase += f.Size
	case SideLiquidate:
		if l.state.NetInventoryBase < f.Size {
			return false
		}
		l.state.NetInventoryBase -= f.Size
		l.state.RealizedProfit += f.CapturedSpread * f.Size
	default:
		return false
	}
	l.state.Fills++
	return true
}

// RecordCancelPair 记录一次双边撤单（bid + ask）
func (l *Ledger) RecordCancelPair() {
	l.state.Cancels += 2
}

// ObserveSpread 平滑观测点差，首次观测直接作为初值
func (l *Ledger) ObserveSpread(bps float64) {
	if l.state.AvgSpreadBps == nil {
		v := bps
		l.state.AvgSpreadBps = &v
		return
	}
	v := (1-spreadSmoothing)*(*l.state.AvgSpreadBps) + spreadSmoothing*bps
	l.state.AvgSpreadBps = &v
}

// State 返回状态副本
func (l *Ledger) State() State {
	s := l.state
	if s.AvgSpreadBps != nil {
		v := *s.AvgSpreadBps
		s.AvgSpreadBps = &v
	}
	return s
}
