package metrics

import (
	"expvar"
	"sync/atomic"
	"time"
)

// 做市循环计数器（/debug/vars）
var (
	Ticks          = expvar.NewInt("maker_ticks")
	TickErrors     = expvar.NewInt("maker_tick_errors")
	SkippedTicks   = expvar.NewInt("maker_skipped_ticks")
	CancelFailures = expvar.NewInt("maker_cancel_failures")
	PlaceFailures  = expvar.NewInt("maker_place_failures")
	SnapshotWrites = expvar.NewInt("maker_snapshot_writes")
)

// lastTick 最近一次 tick 结束时间（unix 毫秒），0 表示尚未运行
var lastTick atomic.Int64

func init() {
	expvar.Publish("maker_last_tick_unix_ms", expvar.Func(func() any { return lastTick.Load() }))
}

// MarkTick 记录一次 tick 结束
func MarkTick(now time.Time) {
	lastTick.Store(now.UnixMilli())
}

// LastTick 最近一次 tick 结束时间；尚未运行时 ok 为 false
func LastTick() (t time.Time, ok bool) {
	ms := lastTick.Load()
	if ms == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
