package services

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/makerbot/internal/domain"
	"github.com/betbot/makerbot/internal/ledger"
	"github.com/betbot/makerbot/internal/venue"
	"github.com/betbot/makerbot/pkg/logger"
	"github.com/betbot/makerbot/pkg/marketmath"
)

type stubVenue struct {
	state      *venue.MarketState
	refreshErr error

	calls       []string
	cancelErrs  []error // 按调用顺序消费
	placeErr    error
	placed      [][]venue.LimitOrderTemplate
	sawDeadline bool
}

func (s *stubVenue) RefreshMarket(ctx context.Context, marketID string) (*venue.MarketState, error) {
	s.calls = append(s.calls, "refresh")
	_, s.sawDeadline = ctx.Deadline()
	return s.state, s.refreshErr
}

func (s *stubVenue) CancelAllOrders(ctx context.Context, marketID string) error {
	s.calls = append(s.calls, "cancel")
	if len(s.cancelErrs) > 0 {
		err := s.cancelErrs[0]
		s.cancelErrs = s.cancelErrs[1:]
		return err
	}
	return nil
}

func (s *stubVenue) PlaceOrders(ctx context.Context, marketID string, orders []venue.LimitOrderTemplate) error {
	s.calls = append(s.calls, "place")
	_, s.sawDeadline = ctx.Deadline()
	s.placed = append(s.placed, orders)
	return s.placeErr
}

func marketState(bids, asks []int64) *venue.MarketState {
	st := &venue.MarketState{Info: venue.MarketInfo{ID: "M", TickSize: 0.01}}
	for _, b := range bids {
		st.Ladder.Bids = append(st.Ladder.Bids, venue.Level{PriceInTicks: b, SizeInBaseLots: 1})
	}
	for _, a := range asks {
		st.Ladder.Asks = append(st.Ladder.Asks, venue.Level{PriceInTicks: a, SizeInBaseLots: 1})
	}
	return st
}

func TestSnapshotTwoSided(t *testing.T) {
	v := &stubVenue{state: marketState([]int64{14990}, []int64{15010})}
	svc := NewMarketDataService(v, "M", 100*time.Millisecond, logger.Discard())

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.True(t, snap.HasPrice())
	assert.InDelta(t, 150.0, *snap.Mid, 1e-9)
	assert.True(t, v.sawDeadline)
}

func TestSnapshotOneSidedFallsBack(t *testing.T) {
	v := &stubVenue{state: marketState(nil, []int64{15010})}
	snap, err := NewMarketDataService(v, "M", 0, logger.Discard()).Snapshot(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 150.10, *snap.Mid, 1e-9)
	assert.Nil(t, snap.BestBid)
}

func TestSnapshotEmptyBookSkips(t *testing.T) {
	v := &stubVenue{state: marketState(nil, nil)}
	snap, err := NewMarketDataService(v, "M", 0, logger.Discard()).Snapshot(context.Background())
	require.ErrorIs(t, err, ErrNoPrice)
	assert.Nil(t, snap.Mid)
}

func TestSnapshotZeroPriceSkips(t *testing.T) {
	v := &stubVenue{state: marketState([]int64{0}, []int64{0})}
	_, err := NewMarketDataService(v, "M", 0, logger.Discard()).Snapshot(context.Background())
	require.ErrorIs(t, err, ErrNoPrice)
}

func TestSnapshotMissingState(t *testing.T) {
	v := &stubVenue{}
	_, err := NewMarketDataService(v, "M", 0, logger.Discard()).Snapshot(context.Background())
	require.ErrorIs(t, err, ErrNoPrice)
}

func TestSnapshotVenueError(t *testing.T) {
	boom := errors.New("rpc down")
	v := &stubVenue{refreshErr: boom}
	_, err := NewMarketDataService(v, "M", 0, logger.Discard()).Snapshot(context.Background())
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoPrice)
}

func newLifecycle(v *stubVenue, l *ledger.Ledger) *OrderLifecycle {
	now := func() time.Time { return time.Unix(1_700_000_000, 0) }
	cfg := LifecycleConfig{MarketID: "M", SpreadBps: 12, SizeQuote: 6, OrderTTL: 30 * time.Second, RequestTimeout: 50 * time.Millisecond}
	return NewOrderLifecycle(v, l, cfg, rand.New(rand.NewSource(1)), now, logger.Discard())
}

func TestRefreshFirstRunSkipsCancel(t *testing.T) {
	v := &stubVenue{}
	l := ledger.New()
	o := newLifecycle(v, l)

	res, err := o.Refresh(context.Background(), 150)
	require.NoError(t, err)
	assert.Equal(t, []string{"place"}, v.calls)
	assert.False(t, res.Cancelled)
	assert.True(t, res.Placed)
	assert.Equal(t, int64(0), l.State().Cancels)

	res, err = o.Refresh(context.Background(), 150)
	require.NoError(t, err)
	assert.Equal(t, []string{"place", "cancel", "place"}, v.calls)
	assert.True(t, res.Cancelled)
	assert.Equal(t, int64(2), l.State().Cancels)
}

func TestRefreshBatchShape(t *testing.T) {
	v := &stubVenue{}
	o := newLifecycle(v, nil)

	res, err := o.Refresh(context.Background(), 150)
	require.NoError(t, err)
	require.Len(t, v.placed, 1)
	batch := v.placed[0]
	require.Len(t, batch, 2)

	want, _ := marketmath.ComputeQuote(150, 12, 6)
	assert.Equal(t, domain.SideBid, batch[0].Side)
	assert.Equal(t, domain.SideAsk, batch[1].Side)
	assert.InDelta(t, want.BidPrice, res.Quote.Bid.Price, 1e-12)
	assert.InDelta(t, want.AskPrice, res.Quote.Ask.Price, 1e-12)
	assert.Equal(t, int64(1_700_000_030), batch[0].ExpiresAt)
	assert.Equal(t, venue.SelfTradeCancelProvide, batch[0].SelfTradeBehavior)
	assert.NotEqual(t, batch[0].ClientOrderID, batch[1].ClientOrderID)
	assert.True(t, v.sawDeadline)

	_, err = o.Refresh(context.Background(), 150)
	require.NoError(t, err)
	// 客户端订单号不复用
	assert.NotEqual(t, batch[0].ClientOrderID, v.placed[1][0].ClientOrderID)
}

func TestRefreshCancelFailureStillPlaces(t *testing.T) {
	v := &stubVenue{cancelErrs: []error{errors.New("timeout")}}
	l := ledger.New()
	o := newLifecycle(v, l)

	_, err := o.Refresh(context.Background(), 150)
	require.NoError(t, err)

	res, err := o.Refresh(context.Background(), 150)
	require.NoError(t, err)
	require.Error(t, res.CancelErr)
	assert.True(t, res.Placed)
	assert.Equal(t, int64(0), l.State().Cancels)

	// 下一 tick 撤单恢复
	res, err = o.Refresh(context.Background(), 150)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, int64(2), l.State().Cancels)
	assert.Equal(t, []string{"place", "cancel", "place", "cancel", "place"}, v.calls)
}

func TestRefreshPlaceFailureReported(t *testing.T) {
	v := &stubVenue{placeErr: errors.New("rejected")}
	o := newLifecycle(v, nil)

	res, err := o.Refresh(context.Background(), 150)
	require.NoError(t, err)
	assert.False(t, res.Placed)
	require.Error(t, res.PlaceErr)
	assert.Len(t, v.placed, 1, "no retry within the tick")
}

func TestRefreshInvalidMidTouchesNothing(t *testing.T) {
	v := &stubVenue{}
	o := newLifecycle(v, nil)

	_, err := o.Refresh(context.Background(), 0)
	require.ErrorIs(t, err, marketmath.ErrInvalidMidpoint)
	assert.Empty(t, v.calls)
}
