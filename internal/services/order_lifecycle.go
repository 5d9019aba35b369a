package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/makerbot/internal/domain"
	"github.com/betbot/makerbot/internal/ledger"
	"github.com/betbot/makerbot/internal/venue"
	"github.com/betbot/makerbot/pkg/marketmath"
)

// OrderVenue 下单/撤单所需的场所能力
type OrderVenue interface {
	CancelAllOrders(ctx context.Context, marketID string) error
	PlaceOrders(ctx context.Context, marketID string, orders []venue.LimitOrderTemplate) error
}

// LifecycleConfig 报价生命周期参数
type LifecycleConfig struct {
	MarketID       string
	SpreadBps      float64
	SizeQuote      float64
	OrderTTL       time.Duration // 报价有效期
	RequestTimeout time.Duration // 单次场所调用超时
}

// RefreshResult 一次刷新的结果。撤单或挂单失败都不会中断主循环，只记录在这里。
type RefreshResult struct {
	Quote     domain.QuotePair
	Cancelled bool
	CancelErr error
	Placed    bool
	PlaceErr  error
}

// OrderLifecycle 撤掉上一轮报价，再以一个原子批次挂出新的双边报价
type OrderLifecycle struct {
	venue  OrderVenue
	ledger *ledger.Ledger
	cfg    LifecycleConfig
	rng    *rand.Rand
	now    func() time.Time
	log    logrus.FieldLogger

	firstRun bool
}

// NewOrderLifecycle 创建生命周期管理器。rng 用于生成客户端订单号；now 为 nil 时使用 time.Now。
func NewOrderLifecycle(v OrderVenue, l *ledger.Ledger, cfg LifecycleConfig, rng *rand.Rand, now func() time.Time, log logrus.FieldLogger) *OrderLifecycle {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	if l == nil {
		l = ledger.New()
	}
	return &OrderLifecycle{
		venue:    v,
		ledger:   l,
		cfg:      cfg,
		rng:      rng,
		now:      now,
		log:      log.WithField("component", "order_lifecycle"),
		firstRun: true,
	}
}

// Ledger 生命周期写入的账本（实盘只记撤单数）
func (o *OrderLifecycle) Ledger() *ledger.Ledger {
	return o.ledger
}

// Refresh 围绕 mid 刷新报价：
//  1. 非首次刷新时撤销本交易者的全部挂单（失败只告警，继续挂单）
//  2. 计算双边报价
//  3. 两个订单放在同一个请求里提交
//
// 返回 error 仅表示报价无法计算（中间价非法），网络失败体现在 RefreshResult 中。
func (o *OrderLifecycle) Refresh(ctx context.Context, mid float64) (RefreshResult, error) {
	q, err := marketmath.ComputeQuote(mid, o.cfg.SpreadBps, o.cfg.SizeQuote)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("compute quote: %w", err)
	}

	var res RefreshResult
	if !o.firstRun {
		cctx, cancel := withTimeout(ctx, o.cfg.RequestTimeout)
		err := o.venue.CancelAllOrders(cctx, o.cfg.MarketID)
		cancel()
		if err != nil {
			res.CancelErr = err
			o.log.Warnf("撤单失败（继续挂单）: %v", err)
		} else {
			res.Cancelled = true
			o.ledger.RecordCancelPair()
		}
	}
	o.firstRun = false

	expiresAt := o.now().Add(o.cfg.OrderTTL).Unix()
	res.Quote = domain.QuotePair{
		Mid: q.Mid,
		Bid: domain.Quote{Side: domain.SideBid, Price: q.BidPrice, Size: q.BidSize, ClientOrderID: o.rng.Uint64(), ExpiresAt: expiresAt},
		Ask: domain.Quote{Side: domain.SideAsk, Price: q.AskPrice, Size: q.AskSize, ClientOrderID: o.rng.Uint64(), ExpiresAt: expiresAt},
	}
	orders := []venue.LimitOrderTemplate{
		venue.NewLimitOrderTemplate(res.Quote.Bid),
		venue.NewLimitOrderTemplate(res.Quote.Ask),
	}

	pctx, cancel := withTimeout(ctx, o.cfg.RequestTimeout)
	err = o.venue.PlaceOrders(pctx, o.cfg.MarketID, orders)
	cancel()
	if err != nil {
		res.PlaceErr = err
		o.log.Warnf("挂单失败: %v", err)
		return res, nil
	}
	res.Placed = true
	o.log.Debugf("报价已挂出: bid=%.6f x %.6f ask=%.6f x %.6f", q.BidPrice, q.BidSize, q.AskPrice, q.AskSize)
	return res, nil
}
