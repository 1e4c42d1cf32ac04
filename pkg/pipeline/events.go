package pipeline

import (
	"sync"

	"github.com/iWorld-y/invest_radar/pkg/logger"
)

// 流水线检查点事件名
const (
	EventProviderSearch      = "provider_search"
	EventDimensionMissing    = "dimension_missing"
	EventDimensionFailed     = "dimension_failed"
	EventFallbackTriggered   = "fallback_triggered"
	EventRSSFetch            = "rss_fetch"
	EventStructuringDegraded = "structuring_degraded"
)

// Event 单个检查点事件
type Event struct {
	Stage     string
	Dimension string
	Detail    string
}

// Recorder 接收检查点事件，测试可以据此断言事件序列
type Recorder interface {
	Record(e Event)
}

// logRecorder 默认实现：写结构化日志
type logRecorder struct{}

func (logRecorder) Record(e Event) {
	if e.Dimension != "" {
		logger.Log.Infof("[pipeline:%s] dimension=%s %s", e.Stage, e.Dimension, e.Detail)
		return
	}
	logger.Log.Infof("[pipeline:%s] %s", e.Stage, e.Detail)
}

// MemoryRecorder 留存全部事件，测试用
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

// Record 实现 Recorder
func (r *MemoryRecorder) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events 返回已记录事件的快照
func (r *MemoryRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Stages 返回按序的事件名列表
func (r *MemoryRecorder) Stages() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Stage
	}
	return out
}
