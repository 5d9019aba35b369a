// Package simulation 在没有真实场所时生成合成价格与概率成交。
package simulation

import (
	"fmt"
	"math/rand"

	"github.com/betbot/makerbot/internal/domain"
	"github.com/betbot/makerbot/internal/ledger"
	"github.com/betbot/makerbot/pkg/marketmath"
)

const (
	// DefaultBaselineMid 合成中间价初值（quote 币）
	DefaultBaselineMid = 150.0
	// DefaultDriftRange 每 tick 对称扰动范围：mid += (U-0.5)*DriftRange
	DefaultDriftRange = 0.2
	// DefaultMinMid 中间价下限
	DefaultMinMid = 1.0
	// DefaultFillProbability 每 tick 模拟成交概率
	DefaultFillProbability = 0.25
)

// Config 模拟参数
type Config struct {
	SpreadBps       float64
	SizeQuote       float64
	BaselineMid     float64
	DriftRange      float64
	MinMid          float64
	FillProbability float64
}

func (c *Config) applyDefaults() {
	if c.BaselineMid <= 0 {
		c.BaselineMid = DefaultBaselineMid
	}
	if c.DriftRange <= 0 {
		c.DriftRange = DefaultDriftRange
	}
	if c.MinMid <= 0 {
		c.MinMid = DefaultMinMid
	}
	if c.FillProbability <= 0 || c.FillProbability > 1 {
		c.FillProbability = DefaultFillProbability
	}
}

// StepResult 单步模拟结果
type StepResult struct {
	Quote  domain.QuotePair
	Filled bool
	Fill   ledger.Fill
}

// Simulator 合成价格源 + 撮合。
// 每一步都视为“撤掉上一轮双边报价，重新挂出”，因此 cancels 每步 +2。
type Simulator struct {
	cfg    Config
	rng    *rand.Rand
	ledger *ledger.Ledger
	mid    float64
}

// New 创建模拟器。rng 为 nil 时 panic；由调用方决定种子以便复现。
func New(cfg Config, rng *rand.Rand, l *ledger.Ledger) *Simulator {
	if rng == nil {
		panic("simulation: rng is required")
	}
	if l == nil {
		l = ledger.New()
	}
	cfg.applyDefaults()
	return &Simulator{
		cfg:    cfg,
		rng:    rng,
		ledger: l,
		mid:    cfg.BaselineMid,
	}
}

// Mid 当前合成中间价
func (s *Simulator) Mid() float64 {
	return s.mid
}

// Ledger 返回模拟器写入的账本
func (s *Simulator) Ledger() *ledger.Ledger {
	return s.ledger
}

// Step 推进一个 tick
func (s *Simulator) Step() (StepResult, error) {
	s.mid += (s.rng.Float64() - 0.5) * s.cfg.DriftRange
	if s.mid < s.cfg.MinMid {
		s.mid = s.cfg.MinMid
	}

	q, err := marketmath.ComputeQuote(s.mid, s.cfg.SpreadBps, s.cfg.SizeQuote)
	if err != nil {
		return StepResult{}, fmt.Errorf("simulated quote: %w", err)
	}
	res := StepResult{
		Quote: domain.QuotePair{
			Mid: s.mid,
			Bid: domain.Quote{Side: domain.SideBid, Price: q.BidPrice, Size: q.BidSize},
			Ask: domain.Quote{Side: domain.SideAsk, Price: q.AskPrice, Size: q.AskSize},
		},
	}

	s.ledger.RecordCancelPair()

	if s.rng.Float64() < s.cfg.FillProbability {
		var f ledger.Fill
		if s.rng.Float64() < 0.5 {
			f = ledger.Fill{Side: ledger.SideAccumulate, Price: q.BidPrice, Size: q.BidSize}
		} else {
			f = ledger.Fill{
				Side:           ledger.SideLiquidate,
				Price:          q.AskPrice,
				Size:           q.AskSize,
				CapturedSpread: q.AskPrice - q.BidPrice,
			}
		}
		res.Filled = s.ledger.RecordFill(f)
		res.Fill = f
	}

	s.ledger.ObserveSpread(marketmath.SpreadBps(q.BidPrice, q.AskPrice, s.mid))
	return res, nil
}

// Stats 以当前中间价估值库存
func (s *Simulator) Stats() domain.LedgerStats {
	st := s.ledger.State()
	return domain.LedgerStats{
		RealizedUSDC:  st.RealizedProfit,
		InventoryUSDC: st.NetInventoryBase * s.mid,
		AvgSpreadBps:  st.AvgSpreadBps,
		Fills:         st.Fills,
		Cancels:       st.Cancels,
	}
}
