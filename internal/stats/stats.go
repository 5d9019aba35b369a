// Package stats 把账本状态整理成快照记录并发布（文件 + 内存）。
package stats

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/makerbot/internal/domain"
	"github.com/betbot/makerbot/internal/metrics"
	"github.com/betbot/makerbot/pkg/persistence"
)

// Publisher 快照发布者
type Publisher interface {
	Publish(rec domain.StatsRecord) error
}

// Builder 生成快照记录。updated 单调不减（时钟回拨时沿用上一次的值）。
type Builder struct {
	mode      domain.Mode
	refreshMs int
	last      int64
}

// NewBuilder 创建 Builder
func NewBuilder(mode domain.Mode, refreshMs int) *Builder {
	return &Builder{mode: mode, refreshMs: refreshMs}
}

// Build 按当前账本状态生成记录：金额保留 6 位小数，点差保留 2 位
func (b *Builder) Build(s domain.LedgerStats, now time.Time) domain.StatsRecord {
	updated := now.Unix()
	if updated < b.last {
		updated = b.last
	}
	b.last = updated

	rec := domain.StatsRecord{
		RealizedUSDC:  round(s.RealizedUSDC, 6),
		InventoryUSDC: round(s.InventoryUSDC, 6),
		Fills:         s.Fills,
		Cancels:       s.Cancels,
		RefreshMs:     b.refreshMs,
		Status:        b.mode.Status(),
		Updated:       updated,
	}
	if s.AvgSpreadBps != nil {
		v := round(*s.AvgSpreadBps, 2)
		rec.AvgSpreadBps = &v
	}
	return rec
}

// Initial 启动时的零值记录（avg_spread_bps 为 null）
func (b *Builder) Initial(now time.Time) domain.StatsRecord {
	return b.Build(domain.LedgerStats{}, now)
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FilePublisher 把记录原子地写到快照文件（整文件替换）
type FilePublisher struct {
	store *persistence.JSONFileStore
}

// NewFilePublisher 创建文件发布者
func NewFilePublisher(path string) *FilePublisher {
	return &FilePublisher{store: persistence.NewJSONFileStore(path, false)}
}

// Path 快照文件路径
func (p *FilePublisher) Path() string {
	return p.store.Path()
}

// Publish 写入快照
func (p *FilePublisher) Publish(rec domain.StatsRecord) error {
	if err := p.store.Save(rec); err != nil {
		return fmt.Errorf("write stats %s: %w", p.store.Path(), err)
	}
	metrics.SnapshotWrites.Add(1)
	return nil
}

// Latest 内存中最新的一条记录，供状态 API 并发读取
type Latest struct {
	mu     sync.RWMutex
	rec    domain.StatsRecord
	has    bool
	mode   domain.Mode
	reason string
	runID  string
}

// NewLatest 创建内存发布者，mode/reason 为启动时的模式决策
func NewLatest(mode domain.Mode, reason, runID string) *Latest {
	return &Latest{mode: mode, reason: reason, runID: runID}
}

// Publish 保存记录
func (l *Latest) Publish(rec domain.StatsRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rec = rec
	l.has = true
	return nil
}

// Get 返回最新记录
func (l *Latest) Get() (domain.StatsRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec := l.rec
	if rec.AvgSpreadBps != nil {
		v := *rec.AvgSpreadBps
		rec.AvgSpreadBps = &v
	}
	return rec, l.has
}

// Mode 运行模式
func (l *Latest) Mode() domain.Mode { return l.mode }

// Reason 模式决策原因
func (l *Latest) Reason() string { return l.reason }

// RunID 进程运行标识
func (l *Latest) RunID() string { return l.runID }

// Multi 依次发布到多个发布者；单个失败不影响其他发布者
type Multi []Publisher

// Publish 发布到全部发布者，返回合并后的错误
func (m Multi) Publish(rec domain.StatsRecord) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
