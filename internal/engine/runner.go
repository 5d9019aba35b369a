package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/makerbot/internal/domain"
	"github.com/betbot/makerbot/internal/metrics"
	"github.com/betbot/makerbot/internal/stats"
)

// ErrorKind tick 结果分类
type ErrorKind int

const (
	KindOK        ErrorKind = iota
	KindSkipped             // 无可用价格，本 tick 不动作
	KindTransient           // 网络/场所失败，下一 tick 重试
	KindLogic               // 意外错误或 panic
	KindFatal               // 终止主循环
)

func (k ErrorKind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindSkipped:
		return "skipped"
	case KindTransient:
		return "transient"
	case KindLogic:
		return "logic"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TickResult 单个 tick 的结果
type TickResult struct {
	Kind   ErrorKind
	Err    error
	Detail string
}

// Clock 时间源
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 系统时钟
var SystemClock Clock = systemClock{}

// SleepFunc 等待 d；ctx 取消时提前返回 ctx.Err()
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext 默认等待实现
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunnerOptions 主循环参数
type RunnerOptions struct {
	RefreshInterval time.Duration
	RefreshMs       int
	Clock           Clock
	Sleep           SleepFunc
	Logger          logrus.FieldLogger
}

// Runner 主循环：tick → 发布快照 → 等待。单 goroutine，tick 之间不重叠。
type Runner struct {
	quoter    Quoter
	publisher stats.Publisher
	builder   *stats.Builder
	interval  time.Duration
	clock     Clock
	sleep     SleepFunc
	log       logrus.FieldLogger

	ticks int64
}

// NewRunner 创建主循环
func NewRunner(q Quoter, pub stats.Publisher, opts RunnerOptions) *Runner {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Sleep == nil {
		opts.Sleep = SleepContext
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.RefreshMs <= 0 {
		opts.RefreshMs = int(opts.RefreshInterval / time.Millisecond)
	}
	return &Runner{
		quoter:    q,
		publisher: pub,
		builder:   stats.NewBuilder(q.Mode(), opts.RefreshMs),
		interval:  opts.RefreshInterval,
		clock:     opts.Clock,
		sleep:     opts.Sleep,
		log:       opts.Logger.WithFields(logrus.Fields{"component": "engine", "mode": q.Mode().Status()}),
	}
}

// Ticks 已执行的 tick 数
func (r *Runner) Ticks() int64 {
	return r.ticks
}

// RunOnce 执行一个 tick。panic 被恢复为 KindLogic，主循环继续。
func (r *Runner) RunOnce(ctx context.Context) (res TickResult) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Debugf("panic stack: %s", debug.Stack())
			res = TickResult{Kind: KindLogic, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return r.quoter.Tick(ctx)
}

// Run 运行直到 ctx 取消（返回 nil）或出现致命错误
func (r *Runner) Run(ctx context.Context) error {
	return r.run(ctx, -1)
}

// RunTicks 最多运行 n 个 tick（测试用）
func (r *Runner) RunTicks(ctx context.Context, n int) error {
	return r.run(ctx, n)
}

func (r *Runner) run(ctx context.Context, limit int) error {
	r.publish(r.builder.Initial(r.clock.Now()))
	r.log.Infof("主循环启动: refresh=%s", r.interval)

	for n := 0; limit < 0 || n < limit; n++ {
		if ctx.Err() != nil {
			r.log.Info("主循环退出")
			return nil
		}

		res := r.RunOnce(ctx)
		r.ticks++
		metrics.Ticks.Add(1)
		metrics.MarkTick(r.clock.Now())
		r.report(res)
		if res.Kind == KindFatal {
			return fmt.Errorf("fatal tick error: %w", res.Err)
		}

		r.publish(r.builder.Build(r.quoter.Stats(), r.clock.Now()))

		if limit >= 0 && n+1 >= limit {
			break
		}
		if err := r.sleep(ctx, r.interval); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.log.Info("主循环退出")
				return nil
			}
			return fmt.Errorf("sleep: %w", err)
		}
	}
	return nil
}

func (r *Runner) report(res TickResult) {
	log := r.log.WithField("tick", r.ticks)
	switch res.Kind {
	case KindOK:
		if res.Detail != "" {
			log.Debug(res.Detail)
		}
	case KindSkipped:
		metrics.SkippedTicks.Add(1)
		log.Infof("无可用中间价，跳过本 tick: %v", res.Err)
	case KindTransient:
		metrics.TickErrors.Add(1)
		log.Warnf("tick 失败（下一 tick 重试）: %v", res.Err)
	case KindLogic:
		metrics.TickErrors.Add(1)
		log.Errorf("loop error: %v", res.Err)
	case KindFatal:
		metrics.TickErrors.Add(1)
		log.Errorf("fatal: %v", res.Err)
	}
}

// publish 快照写入失败只告警，不影响主循环
func (r *Runner) publish(rec domain.StatsRecord) {
	if err := r.publisher.Publish(rec); err != nil {
		r.log.Warnf("写入快照失败: %v", err)
	}
}
