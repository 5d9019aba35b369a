package stats

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/makerbot/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func TestBuildRounding(t *testing.T) {
	b := NewBuilder(domain.ModeSimulated, 600)
	rec := b.Build(domain.LedgerStats{
		RealizedUSDC:  0.123456789,
		InventoryUSDC: -1.0000004,
		AvgSpreadBps:  ptr(11.99876),
		Fills:         3,
		Cancels:       8,
	}, time.Unix(1000, 0))

	assert.Equal(t, 0.123457, rec.RealizedUSDC)
	assert.Equal(t, -1.0, rec.InventoryUSDC)
	require.NotNil(t, rec.AvgSpreadBps)
	assert.Equal(t, 12.0, *rec.AvgSpreadBps)
	assert.Equal(t, "dry", rec.Status)
	assert.Equal(t, 600, rec.RefreshMs)
	assert.Equal(t, int64(1000), rec.Updated)
}

func TestBuildUpdatedMonotonic(t *testing.T) {
	b := NewBuilder(domain.ModeLive, 600)
	r1 := b.Build(domain.LedgerStats{}, time.Unix(2000, 0))
	r2 := b.Build(domain.LedgerStats{}, time.Unix(1990, 0))
	r3 := b.Build(domain.LedgerStats{}, time.Unix(2001, 0))
	assert.Equal(t, int64(2000), r1.Updated)
	assert.Equal(t, int64(2000), r2.Updated)
	assert.Equal(t, int64(2001), r3.Updated)
	assert.Equal(t, "live", r3.Status)
}

func TestFilePublisherWritesExactFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "maker_stats.json")
	p := NewFilePublisher(path)
	b := NewBuilder(domain.ModeSimulated, 600)

	require.NoError(t, p.Publish(b.Initial(time.Unix(1700000000, 0))))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{
		"realized_usdc", "inventory_usdc", "avg_spread_bps", "fills", "cancels", "refresh_ms", "status", "updated",
	}, keys)
	assert.Nil(t, m["avg_spread_bps"])
	assert.Equal(t, "dry", m["status"])
	assert.Equal(t, float64(1700000000), m["updated"])

	// 第二次写入整体替换
	require.NoError(t, p.Publish(b.Build(domain.LedgerStats{Fills: 1, AvgSpreadBps: ptr(12)}, time.Unix(1700000001, 0))))
	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	var rec domain.StatsRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, int64(1), rec.Fills)
	require.NotNil(t, rec.AvgSpreadBps)
}

func TestLatestCopies(t *testing.T) {
	l := NewLatest(domain.ModeSimulated, "explicit dry run", "run-1")
	_, ok := l.Get()
	assert.False(t, ok)

	require.NoError(t, l.Publish(domain.StatsRecord{AvgSpreadBps: ptr(5), Cancels: 2}))
	rec, ok := l.Get()
	require.True(t, ok)
	*rec.AvgSpreadBps = 99

	again, _ := l.Get()
	assert.Equal(t, 5.0, *again.AvgSpreadBps)
	assert.Equal(t, "explicit dry run", l.Reason())
	assert.Equal(t, domain.ModeSimulated, l.Mode())
	assert.Equal(t, "run-1", l.RunID())
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(domain.StatsRecord) error { return f.err }

func TestMultiContinuesAfterFailure(t *testing.T) {
	boom := errors.New("disk full")
	l := NewLatest(domain.ModeLive, "", "")
	m := Multi{failingPublisher{err: boom}, l}

	err := m.Publish(domain.StatsRecord{Fills: 4})
	require.ErrorIs(t, err, boom)
	rec, ok := l.Get()
	require.True(t, ok)
	assert.Equal(t, int64(4), rec.Fills)
}
