package shutdown

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Handler 关闭处理函数，应在 ctx 到期前返回
type Handler func(ctx context.Context)

// Manager 按名称登记关闭动作（HTTP 服务等），退出时统一执行
type Manager struct {
	log logrus.FieldLogger

	mu       sync.Mutex
	names    []string
	handlers map[string]Handler
}

// NewManager 创建关闭管理器
func NewManager(log logrus.FieldLogger) *Manager {
	return &Manager{
		log:      log.WithField("component", "shutdown"),
		handlers: make(map[string]Handler),
	}
}

// OnShutdown 登记关闭动作；同名再次登记会替换之前的动作
func (m *Manager) OnShutdown(name string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handlers[name]; !ok {
		m.names = append(m.names, name)
	}
	m.handlers[name] = h
}

// Shutdown 并发执行全部关闭动作，直到全部完成或 ctx 到期。
// 返回 ctx 到期时仍未完成的动作名（已排序）。
func (m *Manager) Shutdown(ctx context.Context) []string {
	m.mu.Lock()
	pending := make(map[string]Handler, len(m.handlers))
	for _, name := range m.names {
		pending[name] = m.handlers[name]
	}
	m.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	m.log.Infof("开始优雅关闭: %d 个动作", len(pending))

	finished := make(chan string, len(pending))
	for name, h := range pending {
		go func(name string, h Handler) {
			h(ctx)
			finished <- name
		}(name, h)
	}

	for len(pending) > 0 {
		select {
		case name := <-finished:
			delete(pending, name)
			m.log.Debugf("已关闭: %s", name)
		case <-ctx.Done():
			left := make([]string, 0, len(pending))
			for name := range pending {
				left = append(left, name)
			}
			sort.Strings(left)
			m.log.Warnf("关闭超时，未完成: %v", left)
			return left
		}
	}
	m.log.Info("关闭完成")
	return nil
}
