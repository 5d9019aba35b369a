package domain

// StatsRecord 每个 tick 整体重写的快照记录。
// JSON 字段名与外部监控约定一致，不能修改。
type StatsRecord struct {
	RealizedUSDC  float64  `json:"realized_usdc"`
	InventoryUSDC float64  `json:"inventory_usdc"`
	AvgSpreadBps  *float64 `json:"avg_spread_bps"`
	Fills         int64    `json:"fills"`
	Cancels       int64    `json:"cancels"`
	RefreshMs     int      `json:"refresh_ms"`
	Status        string   `json:"status"`
	Updated       int64    `json:"updated"`
}

// LedgerStats 由报价模式提供的账本部分（不含 refresh/status/updated）
type LedgerStats struct {
	RealizedUSDC  float64
	InventoryUSDC float64
	AvgSpreadBps  *float64
	Fills         int64
	Cancels       int64
}
