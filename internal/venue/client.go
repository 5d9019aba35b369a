package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/makerbot/pkg/ratelimit"
)

// ErrUnknownMarket 市场未注册
var ErrUnknownMarket = errors.New("market not registered")

// Options 客户端选项
type Options struct {
	Endpoint    string
	Signer      *Signer
	LadderDepth int
	// Timeout 传输层超时（兜底；单次调用的超时由调用方 ctx 控制）
	Timeout time.Duration
	// Limits 按端点分组的速率限制（为 nil 时使用 ratelimit.NewVenueManager）
	Limits *ratelimit.Manager
	Logger logrus.FieldLogger
}

// Client 订单簿场所 REST 客户端。不做重试：每个 tick 的调用失败由上层记录后进入下一 tick。
type Client struct {
	http   *resty.Client
	signer *Signer
	depth  int
	limits *ratelimit.Manager
	log    logrus.FieldLogger

	mu      sync.RWMutex
	markets map[string]*MarketState
}

// NewClient 创建客户端
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("venue endpoint is empty")
	}
	if opts.Signer == nil {
		return nil, errors.New("venue signer is nil")
	}
	if opts.LadderDepth <= 0 {
		opts.LadderDepth = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Limits == nil {
		opts.Limits = ratelimit.NewVenueManager()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	host := strings.TrimSuffix(strings.TrimSpace(opts.Endpoint), "/")
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "makerbot")

	return &Client{
		http:    client,
		signer:  opts.Signer,
		depth:   opts.LadderDepth,
		limits:  opts.Limits,
		log:     opts.Logger.WithField("component", "venue"),
		markets: make(map[string]*MarketState),
	}, nil
}

// Timeout 传输层超时
func (c *Client) Timeout() time.Duration {
	return c.http.GetClient().Timeout
}

// Trader 交易者地址（小写十六进制）
func (c *Client) Trader() string {
	return strings.ToLower(c.signer.Address().Hex())
}

// AddMarket 注册市场：拉取市场列表，找到则缓存其静态信息。
// 列表中不存在该市场时不返回错误，由调用方通过 Market 判断。
func (c *Client) AddMarket(ctx context.Context, marketID string) error {
	if err := c.limits.Wait(ctx, ratelimit.VenueMarketsGet); err != nil {
		return errors.Wrap(err, "list markets: rate limit")
	}
	var infos []MarketInfo
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/markets")
	if err := decodeResponse(resp, err, "list markets", &infos); err != nil {
		return err
	}

	for _, info := range infos {
		if info.ID != marketID {
			continue
		}
		if info.TickSize <= 0 {
			return errors.Errorf("market %s has invalid tick size %v", marketID, info.TickSize)
		}
		c.mu.Lock()
		c.markets[marketID] = &MarketState{Info: info}
		c.mu.Unlock()
		c.log.Infof("市场已注册: id=%s base=%s quote=%s tick=%v", info.ID, info.Base, info.Quote, info.TickSize)
		return nil
	}
	c.log.Warnf("市场列表中没有 %s（共 %d 个市场）", marketID, len(infos))
	return nil
}

// Market 返回已注册市场状态的副本
func (c *Client) Market(marketID string) (*MarketState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.markets[marketID]
	if !ok {
		return nil, false
	}
	return m.clone(), true
}

// RefreshMarket 刷新盘口，返回最新状态副本
func (c *Client) RefreshMarket(ctx context.Context, marketID string) (*MarketState, error) {
	c.mu.RLock()
	_, ok := c.markets[marketID]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Wrap(ErrUnknownMarket, marketID)
	}

	if err := c.limits.Wait(ctx, ratelimit.VenueBookGet); err != nil {
		return nil, errors.Wrap(err, "get book: rate limit")
	}
	var ladder Ladder
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("depth", fmt.Sprint(c.depth)).
		Get("/markets/" + url.PathEscape(marketID) + "/book")
	if err := decodeResponse(resp, err, "get book", &ladder); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.markets[marketID]
	if !ok {
		return nil, errors.Wrap(ErrUnknownMarket, marketID)
	}
	m.Ladder = ladder
	m.UpdatedAt = time.Now()
	return m.clone(), nil
}

// CancelAllOrders 撤销本交易者在该市场的全部挂单
func (c *Client) CancelAllOrders(ctx context.Context, marketID string) error {
	body := cancelAllRequest{Market: marketID, Trader: c.Trader()}
	return c.postSigned(ctx, "/orders/cancel-all", body, "cancel all")
}

// PlaceOrders 在一个请求里提交全部订单（场所侧原子处理）
func (c *Client) PlaceOrders(ctx context.Context, marketID string, orders []LimitOrderTemplate) error {
	if len(orders) == 0 {
		return nil
	}
	body := batchRequest{Market: marketID, Trader: c.Trader(), Orders: orders}
	return c.postSigned(ctx, "/orders/batch", body, "place batch")
}

func (c *Client) postSigned(ctx context.Context, path string, payload any, op string) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, op)
	}
	sig, err := c.signer.Sign(b)
	if err != nil {
		return errors.Wrap(err, op)
	}
	if err := c.limits.Wait(ctx, ratelimit.VenueOrdersPost); err != nil {
		return errors.Wrap(err, op+": rate limit")
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(HeaderTrader, c.Trader()).
		SetHeader(HeaderSignature, sig).
		SetBody(b).
		Post(path)
	return checkResponse(resp, err, op)
}

// decodeResponse 检查响应后按 JSON 解码响应体，不看 Content-Type
func decodeResponse(resp *resty.Response, err error, op string, out any) error {
	if err := checkResponse(resp, err, op); err != nil {
		return err
	}
	raw := resp.Body()
	if len(strings.TrimSpace(string(raw))) == 0 {
		return errors.Errorf("%s: empty response body", op)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "%s: decode response", op)
	}
	return nil
}

// checkResponse 统一处理传输错误和非 2xx 响应
func checkResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		return errors.Wrap(err, op)
	}
	if resp.IsSuccess() {
		return nil
	}
	var body any
	raw := resp.Body()
	_ = json.Unmarshal(raw, &body)
	if body == nil {
		body = strings.TrimSpace(string(raw))
	}
	return errors.Errorf("%s: http %d: %v", op, resp.StatusCode(), body)
}
