package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/makerbot/internal/domain"
	"github.com/betbot/makerbot/internal/venue"
	"github.com/betbot/makerbot/pkg/marketmath"
)

// ErrNoPrice 盘口没有可用中间价（两侧都空或价格非法）。本 tick 跳过，不撤单不挂单。
var ErrNoPrice = errors.New("no usable midpoint")

// MarketVenue 读取盘口所需的场所能力
type MarketVenue interface {
	RefreshMarket(ctx context.Context, marketID string) (*venue.MarketState, error)
}

// MarketDataService 市场数据服务：刷新盘口并计算中间价
type MarketDataService struct {
	venue    MarketVenue
	marketID string
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewMarketDataService 创建市场数据服务。timeout 为单次刷新超时（<=0 表示只受调用方 ctx 约束）。
func NewMarketDataService(v MarketVenue, marketID string, timeout time.Duration, log logrus.FieldLogger) *MarketDataService {
	return &MarketDataService{
		venue:    v,
		marketID: marketID,
		timeout:  timeout,
		log:      log.WithField("component", "market_data"),
	}
}

// Snapshot 刷新并返回盘口快照。
// 返回 ErrNoPrice 时快照仍然有效（可能带单边价格），调用方应跳过本 tick。
func (s *MarketDataService) Snapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	snap := domain.MarketSnapshot{MarketID: s.marketID}

	callCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	state, err := s.venue.RefreshMarket(callCtx, s.marketID)
	if err != nil {
		return snap, fmt.Errorf("refresh market %s: %w", s.marketID, err)
	}
	if state == nil {
		return snap, fmt.Errorf("market %s state missing after refresh: %w", s.marketID, ErrNoPrice)
	}

	snap.Slot = state.Ladder.Slot
	snap.BestBid = state.BestBid()
	snap.BestAsk = state.BestAsk()
	snap.Mid = marketmath.Midpoint(snap.BestBid, snap.BestAsk)

	if !snap.HasPrice() {
		return snap, ErrNoPrice
	}
	s.log.Debugf("盘口: bid=%v ask=%v mid=%.6f slot=%d", fmtPrice(snap.BestBid), fmtPrice(snap.BestAsk), *snap.Mid, snap.Slot)
	return snap, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func fmtPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.6f", *p)
}
