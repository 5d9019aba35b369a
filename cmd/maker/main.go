package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betbot/makerbot/internal/domain"
	"github.com/betbot/makerbot/internal/engine"
	"github.com/betbot/makerbot/internal/metrics"
	"github.com/betbot/makerbot/internal/stats"
	"github.com/betbot/makerbot/internal/statusapi"
	"github.com/betbot/makerbot/pkg/config"
	"github.com/betbot/makerbot/pkg/logger"
	"github.com/betbot/makerbot/pkg/shutdown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "配置文件路径（.yaml, .yml），优先于环境变量")
	envFile := flag.String("env-file", "", ".env 文件路径（默认当前目录 .env，不存在则忽略）")
	flag.Parse()

	cfg, err := config.Load(*configPath, config.LoadOptions{EnvFile: *envFile})
	if err != nil {
		return err
	}

	base := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})
	runID := uuid.NewString()
	log := base.WithField("run_id", runID)

	log.WithFields(logrus.Fields{
		"market":     cfg.MarketID,
		"spread_bps": cfg.SpreadBps,
		"size":       cfg.SizeQuote,
		"refresh_ms": cfg.RefreshMs,
		"dry_run":    cfg.DryRun,
	}).Info("做市进程启动")

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decision, err := engine.SelectMode(rootCtx, cfg, engine.SelectDeps{Logger: log})
	if err != nil {
		log.Errorf("fatal: %v", err)
		return err
	}
	if decision.Mode == domain.ModeSimulated {
		log.Warnf("模拟模式: %s", decision.Reason)
	}

	quoter, err := engine.NewQuoter(decision, cfg, engine.NewRand(cfg.SimSeed), log)
	if err != nil {
		log.Errorf("fatal: %v", err)
		return err
	}

	latest := stats.NewLatest(decision.Mode, decision.Reason, runID)
	publisher := stats.Multi{stats.NewFilePublisher(cfg.StatsFile), latest}

	shutdownMgr := shutdown.NewManager(log)
	serverCtx, cancelServers := context.WithCancel(context.Background())
	defer cancelServers()

	if cfg.MetricsAddr != "" {
		srv, err := metrics.StartAsync(serverCtx, cfg.MetricsAddr, log)
		if err != nil {
			log.Errorf("metrics/pprof 启动失败: %v", err)
		} else {
			shutdownMgr.OnShutdown("metrics", func(ctx context.Context) { _ = srv.Shutdown(ctx) })
		}
	}
	if cfg.StatusAddr != "" {
		srv, err := statusapi.New(latest, log).StartAsync(serverCtx, cfg.StatusAddr)
		if err != nil {
			log.Errorf("状态接口启动失败: %v", err)
		} else {
			shutdownMgr.OnShutdown("statusapi", func(ctx context.Context) { _ = srv.Shutdown(ctx) })
		}
	}

	runner := engine.NewRunner(quoter, publisher, engine.RunnerOptions{
		RefreshInterval: cfg.RefreshInterval(),
		RefreshMs:       cfg.RefreshMs,
		Logger:          log,
	})
	runErr := runner.Run(rootCtx)

	log.Info("收到停止信号，正在关闭...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if left := shutdownMgr.Shutdown(shutdownCtx); len(left) > 0 {
		log.Warnf("以下服务未能按时关闭: %v", left)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Errorf("fatal: %v", runErr)
		return runErr
	}
	log.WithField("ticks", runner.Ticks()).Info("做市进程已退出")
	return nil
}
