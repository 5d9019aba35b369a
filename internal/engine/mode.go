package engine

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/makerbot/internal/domain"
	"github.com/betbot/makerbot/internal/services"
	"github.com/betbot/makerbot/internal/venue"
	"github.com/betbot/makerbot/pkg/config"
)

// 回退到模拟模式的原因
const (
	ReasonExplicitDryRun = "explicit dry run"
	ReasonMissingMarket  = "missing market"
	ReasonVenueInitFmt   = "venue init failed: %s"
	ReasonMarketNotFound = "market not found"
)

// ErrKeyMaterial 私钥不可用（启动失败，进程退出）
var ErrKeyMaterial = errors.New("key material unavailable")

// LiveVenue 实盘模式需要的场所能力
type LiveVenue interface {
	services.MarketVenue
	services.OrderVenue
	AddMarket(ctx context.Context, marketID string) error
	Market(marketID string) (*venue.MarketState, bool)
}

// KeyLoader 读取私钥
type KeyLoader func(path string) (*ecdsa.PrivateKey, error)

// VenueConnector 建立场所连接
type VenueConnector func(ctx context.Context, cfg *config.Config, key *ecdsa.PrivateKey) (LiveVenue, error)

// SelectDeps 模式选择的外部依赖（测试可替换）
type SelectDeps struct {
	LoadKey KeyLoader
	Connect VenueConnector
	Logger  logrus.FieldLogger
}

// Decision 模式决策结果
type Decision struct {
	Mode   domain.Mode
	Reason string
	Venue  LiveVenue          // 仅 Live
	Market *venue.MarketState // 仅 Live
}

type selection struct {
	cfg  *config.Config
	deps SelectDeps

	key    *ecdsa.PrivateKey
	venue  LiveVenue
	market *venue.MarketState
}

// selectionRule 返回非空 fallback 表示回退到模拟模式；err 表示致命错误
type selectionRule struct {
	name string
	eval func(ctx context.Context, s *selection) (fallback string, err error)
}

var selectionRules = []selectionRule{
	{
		name: "dry_run",
		eval: func(_ context.Context, s *selection) (string, error) {
			if s.cfg.DryRun {
				return ReasonExplicitDryRun, nil
			}
			return "", nil
		},
	},
	{
		name: "market_configured",
		eval: func(_ context.Context, s *selection) (string, error) {
			if strings.TrimSpace(s.cfg.MarketID) == "" {
				return ReasonMissingMarket, nil
			}
			return "", nil
		},
	},
	{
		name: "key_material",
		eval: func(_ context.Context, s *selection) (string, error) {
			key, err := s.deps.LoadKey(s.cfg.KeyFile)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrKeyMaterial, err)
			}
			s.key = key
			return "", nil
		},
	},
	{
		name: "venue_init",
		eval: func(ctx context.Context, s *selection) (string, error) {
			v, err := s.deps.Connect(ctx, s.cfg, s.key)
			if err == nil {
				cctx, cancel := withTimeout(ctx, s.cfg.RequestTimeout())
				err = v.AddMarket(cctx, s.cfg.MarketID)
				cancel()
			}
			if err != nil {
				return fmt.Sprintf(ReasonVenueInitFmt, err.Error()), nil
			}
			s.venue = v
			return "", nil
		},
	},
	{
		name: "market_resolved",
		eval: func(_ context.Context, s *selection) (string, error) {
			m, ok := s.venue.Market(s.cfg.MarketID)
			if !ok || m == nil {
				return ReasonMarketNotFound, nil
			}
			s.market = m
			return "", nil
		},
	},
}

// SelectMode 按顺序评估规则，启动时调用一次。
// 返回 error 仅在私钥不可用时（致命）；其他前置条件不满足时回退到模拟模式。
func SelectMode(ctx context.Context, cfg *config.Config, deps SelectDeps) (Decision, error) {
	if deps.LoadKey == nil {
		deps.LoadKey = venue.LoadKeyFile
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Connect == nil {
		deps.Connect = NewVenueConnector(deps.Logger)
	}
	log := deps.Logger.WithField("component", "mode_selector")

	s := &selection{cfg: cfg, deps: deps}
	for _, rule := range selectionRules {
		fallback, err := rule.eval(ctx, s)
		if err != nil {
			log.WithField("rule", rule.name).Errorf("启动失败: %v", err)
			return Decision{}, err
		}
		if fallback != "" {
			log.WithField("rule", rule.name).Warnf("回退到模拟模式: %s", fallback)
			return Decision{Mode: domain.ModeSimulated, Reason: fallback}, nil
		}
	}

	log.Infof("实盘模式: market=%s", cfg.MarketID)
	return Decision{Mode: domain.ModeLive, Venue: s.venue, Market: s.market}, nil
}

// NewVenueConnector 默认连接器：REST 客户端 + 请求签名
func NewVenueConnector(log logrus.FieldLogger) VenueConnector {
	return func(_ context.Context, cfg *config.Config, key *ecdsa.PrivateKey) (LiveVenue, error) {
		if key == nil {
			return nil, errors.New("private key is nil")
		}
		c, err := venue.NewClient(venue.Options{
			Endpoint:    cfg.Endpoint,
			Signer:      venue.NewSigner(key),
			LadderDepth: cfg.LadderDepth,
			Timeout:     cfg.RequestTimeout(),
			Logger:      log,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
