package domain

// Mode 运行模式，启动时决定一次，运行期间不切换
type Mode int

const (
	ModeSimulated Mode = iota
	ModeLive
)

// Status 快照中的 status 字段
func (m Mode) Status() string {
	if m == ModeLive {
		return "live"
	}
	return "dry"
}

func (m Mode) String() string {
	if m == ModeLive {
		return "Live"
	}
	return "Simulated"
}
