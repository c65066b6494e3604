package topology

import (
	"sync"
	"sync/atomic"
)

// Holder 一次性初始化的 Topology 容器
//
// 第一次成功的 Init 生效，之后的 Init 直接返回已缓存的实例，不做合并；
// 初始化失败不会锁定，允许重试。
type Holder struct {
	mu   sync.Mutex
	topo atomic.Pointer[Topology]
}

// Init 解析配置并缓存，已初始化时忽略 raw
func (h *Holder) Init(raw map[string]any) (*Topology, error) {
	if t := h.topo.Load(); t != nil {
		return t, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if t := h.topo.Load(); t != nil {
		return t, nil
	}
	t, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	h.topo.Store(t)
	return t, nil
}

// Get 返回已初始化的实例
func (h *Holder) Get() (*Topology, error) {
	if t := h.topo.Load(); t != nil {
		return t, nil
	}
	return nil, ErrNotInitialized
}
