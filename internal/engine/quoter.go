package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/makerbot/internal/domain"
	"github.com/betbot/makerbot/internal/ledger"
	"github.com/betbot/makerbot/internal/metrics"
	"github.com/betbot/makerbot/internal/services"
	"github.com/betbot/makerbot/internal/simulation"
	"github.com/betbot/makerbot/pkg/config"
)

// Quoter 一个模式下的单 tick 报价逻辑
type Quoter interface {
	Mode() domain.Mode
	Tick(ctx context.Context) TickResult
	Stats() domain.LedgerStats
}

// NewQuoter 按模式决策组装报价逻辑
func NewQuoter(d Decision, cfg *config.Config, rng *rand.Rand, log logrus.FieldLogger) (Quoter, error) {
	if rng == nil {
		return nil, errors.New("rng is required")
	}
	switch d.Mode {
	case domain.ModeLive:
		if d.Venue == nil {
			return nil, errors.New("live mode without venue")
		}
		md := services.NewMarketDataService(d.Venue, cfg.MarketID, cfg.RequestTimeout(), log)
		lc := services.NewOrderLifecycle(d.Venue, ledger.New(), services.LifecycleConfig{
			MarketID:       cfg.MarketID,
			SpreadBps:      cfg.SpreadBps,
			SizeQuote:      cfg.SizeQuote,
			OrderTTL:       cfg.OrderTTL(),
			RequestTimeout: cfg.RequestTimeout(),
		}, rng, nil, log)
		return NewLiveQuoter(md, lc, cfg.SpreadBps), nil
	default:
		sim := simulation.New(simulation.Config{SpreadBps: cfg.SpreadBps, SizeQuote: cfg.SizeQuote}, rng, ledger.New())
		return NewDryQuoter(sim), nil
	}
}

// DryQuoter 模拟模式
type DryQuoter struct {
	sim *simulation.Simulator
}

// NewDryQuoter 创建模拟报价
func NewDryQuoter(sim *simulation.Simulator) *DryQuoter {
	return &DryQuoter{sim: sim}
}

func (q *DryQuoter) Mode() domain.Mode { return domain.ModeSimulated }

func (q *DryQuoter) Tick(_ context.Context) TickResult {
	res, err := q.sim.Step()
	if err != nil {
		return TickResult{Kind: KindLogic, Err: err}
	}
	detail := fmt.Sprintf("mid=%.4f bid=%.4f ask=%.4f", res.Quote.Mid, res.Quote.Bid.Price, res.Quote.Ask.Price)
	if res.Filled {
		detail += fmt.Sprintf(" fill=%s size=%.6f", res.Fill.Side, res.Fill.Size)
	}
	return TickResult{Kind: KindOK, Detail: detail}
}

func (q *DryQuoter) Stats() domain.LedgerStats { return q.sim.Stats() }

// MarketData 行情来源
type MarketData interface {
	Snapshot(ctx context.Context) (domain.MarketSnapshot, error)
}

// Lifecycle 报价刷新
type Lifecycle interface {
	Refresh(ctx context.Context, mid float64) (services.RefreshResult, error)
	Ledger() *ledger.Ledger
}

// LiveQuoter 实盘模式：读盘口 → 撤单 → 挂单
type LiveQuoter struct {
	md        MarketData
	lc        Lifecycle
	spreadBps float64
}

// NewLiveQuoter 创建实盘报价
func NewLiveQuoter(md MarketData, lc Lifecycle, spreadBps float64) *LiveQuoter {
	return &LiveQuoter{md: md, lc: lc, spreadBps: spreadBps}
}

func (q *LiveQuoter) Mode() domain.Mode { return domain.ModeLive }

func (q *LiveQuoter) Tick(ctx context.Context) TickResult {
	snap, err := q.md.Snapshot(ctx)
	if err != nil {
		if errors.Is(err, services.ErrNoPrice) {
			return TickResult{Kind: KindSkipped, Err: err}
		}
		return TickResult{Kind: KindTransient, Err: err}
	}

	res, err := q.lc.Refresh(ctx, snap.MidOrZero())
	if err != nil {
		return TickResult{Kind: KindLogic, Err: err}
	}
	if res.CancelErr != nil {
		metrics.CancelFailures.Add(1)
	}
	if res.PlaceErr != nil {
		metrics.PlaceFailures.Add(1)
		return TickResult{Kind: KindTransient, Err: fmt.Errorf("place orders: %w", res.PlaceErr)}
	}
	return TickResult{
		Kind: KindOK,
		Detail: fmt.Sprintf("bid %.4f x %.4f, ask %.4f x %.4f",
			res.Quote.Bid.Price, res.Quote.Bid.Size, res.Quote.Ask.Price, res.Quote.Ask.Size),
	}
}

// Stats 实盘只统计撤单数；点差报告配置值，成交/利润/库存为 0
func (q *LiveQuoter) Stats() domain.LedgerStats {
	st := q.lc.Ledger().State()
	spread := q.spreadBps
	return domain.LedgerStats{
		AvgSpreadBps: &spread,
		Cancels:      st.Cancels,
	}
}

// NewRand 按种子创建随机源（seed 为 0 时按时间取种子）
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}
